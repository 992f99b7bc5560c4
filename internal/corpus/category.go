package corpus

import "strings"

// Category classifies a document by its structural role in the content tree.
type Category int

const (
	// CategoryUnknown marks files outside the recognized subtrees.
	// Query code also uses it as the "no filter" value.
	CategoryUnknown Category = iota
	// CategorySetting is a character/world setting document.
	CategorySetting
	// CategoryChapter is chapter prose from a numbered volume.
	CategoryChapter
	// CategorySubplotPlan is a cross-volume subplot design document.
	CategorySubplotPlan
)

// String returns the canonical payload value stored in the vector store.
func (c Category) String() string {
	switch c {
	case CategorySetting:
		return "setting"
	case CategoryChapter:
		return "chapter"
	case CategorySubplotPlan:
		return "subplot_plan"
	default:
		return ""
	}
}

// ParseCategory resolves a filter_type argument to a Category.
// It accepts the canonical English names and the labels used in the
// original content tree. Unrecognized values return CategoryUnknown.
func ParseCategory(s string) Category {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "setting", "settings", "设定":
		return CategorySetting
	case "chapter", "chapters", "章节":
		return CategoryChapter
	case "subplot", "subplot_plan", "支线":
		return CategorySubplotPlan
	default:
		return CategoryUnknown
	}
}
