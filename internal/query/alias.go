package query

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AliasEntry maps a group of equivalent names to the canonical search
// terms used when any of them is queried.
type AliasEntry struct {
	// Terms are the names that trigger this entry. Matching is case- and
	// numeral-form-insensitive.
	Terms []string `yaml:"terms"`
	// Canonical are the search terms the alias expands to. Must be
	// non-empty.
	Canonical []string `yaml:"canonical"`
}

type aliasFile struct {
	Aliases []AliasEntry `yaml:"aliases"`
}

// AliasTable resolves character name aliases to canonical search terms.
// It is built once at startup and never mutated, so concurrent queries
// can share it without locking.
type AliasTable struct {
	entries map[string][]string
}

// NewAliasTable builds a table from entries, indexing every term by its
// normalized form.
func NewAliasTable(entries []AliasEntry) (*AliasTable, error) {
	t := &AliasTable{entries: make(map[string][]string)}
	for i, e := range entries {
		if len(e.Terms) == 0 {
			return nil, fmt.Errorf("alias entry %d has no terms", i)
		}
		if len(e.Canonical) == 0 {
			return nil, fmt.Errorf("alias entry %d has no canonical terms", i)
		}
		for _, term := range e.Terms {
			key := normalizeAlias(term)
			if key == "" {
				return nil, fmt.Errorf("alias entry %d has a blank term", i)
			}
			t.entries[key] = e.Canonical
		}
	}
	return t, nil
}

// LoadAliasTable reads the alias configuration from a YAML file. An empty
// path or a missing file falls back to the built-in defaults.
func LoadAliasTable(path string) (*AliasTable, error) {
	if path == "" {
		return NewAliasTable(defaultAliasEntries())
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewAliasTable(defaultAliasEntries())
	}
	if err != nil {
		return nil, fmt.Errorf("read alias config: %w", err)
	}

	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse alias config: %w", err)
	}
	return NewAliasTable(f.Aliases)
}

// Expand returns the canonical terms for a query that matches an alias,
// or the query itself when no alias matches. The second return reports
// whether an alias matched.
func (t *AliasTable) Expand(query string) ([]string, bool) {
	if canonical, ok := t.entries[normalizeAlias(query)]; ok {
		out := make([]string, len(canonical))
		copy(out, canonical)
		return out, true
	}
	return []string{query}, false
}

// normalizeAlias lowercases, strips whitespace and folds numeral forms so
// that spelled-out and digit forms of the same name hit the same entry
// (e.g. 小一 and 小1, or 二十一号 and 21号).
func normalizeAlias(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "")
	return foldNumerals(s)
}

var cjkDigits = map[rune]int{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5,
	'六': 6, '七': 7, '八': 8, '九': 9,
}

var fullWidthDigits = map[rune]rune{
	'０': '0', '１': '1', '２': '2', '３': '3', '４': '4',
	'５': '5', '６': '6', '７': '7', '８': '8', '９': '9',
}

// foldNumerals rewrites runs of CJK numerals as Arabic digits and maps
// full-width digits to ASCII. Values up to 99 (the 十 form) are handled,
// which covers the persona numbering in the content.
func foldNumerals(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); {
		if d, ok := fullWidthDigits[runes[i]]; ok {
			b.WriteRune(d)
			i++
			continue
		}
		if !isCJKNumeral(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isCJKNumeral(runes[j]) {
			j++
		}
		b.WriteString(convertCJKNumeral(runes[i:j]))
		i = j
	}
	return b.String()
}

func isCJKNumeral(r rune) bool {
	if r == '十' {
		return true
	}
	_, ok := cjkDigits[r]
	return ok
}

// convertCJKNumeral converts one numeral run. Runs containing 十 are read
// as tens+units; other runs are read as positional digit sequences.
func convertCJKNumeral(run []rune) string {
	for i, r := range run {
		if r != '十' {
			continue
		}
		tens := 1
		if i > 0 {
			if len(run[:i]) != 1 {
				break // Malformed, fall through to digit concatenation
			}
			tens = cjkDigits[run[0]]
		}
		units := 0
		if i+1 < len(run) {
			if len(run[i+1:]) != 1 {
				break
			}
			units = cjkDigits[run[i+1]]
		}
		return strconv.Itoa(tens*10 + units)
	}

	var b strings.Builder
	for _, r := range run {
		if r == '十' {
			b.WriteString("10")
			continue
		}
		b.WriteString(strconv.Itoa(cjkDigits[r]))
	}
	return b.String()
}

// defaultAliasEntries mirrors the persona naming of the source content:
// each numbered persona of 林晚晚 is reachable by nickname, numeral form
// and epithets.
func defaultAliasEntries() []AliasEntry {
	return []AliasEntry{
		{
			Terms:     []string{"小一", "1号", "林晚晚-1", "病娇"},
			Canonical: []string{"小一", "林晚晚-1", "病娇", "收藏家", "恋爱游戏"},
		},
		{
			Terms:     []string{"小二", "2号", "林晚晚-2", "吃货"},
			Canonical: []string{"小二", "林晚晚-2", "吃货", "美食家", "消化器"},
		},
		{
			Terms:     []string{"小七", "7号", "林晚晚-7", "数学家"},
			Canonical: []string{"小七", "林晚晚-7", "数学家", "计算姬", "公式女王"},
		},
		{
			Terms:     []string{"小二十一", "21号", "林晚晚-21"},
			Canonical: []string{"小二十一", "林晚晚-21", "二十一号", "幼态"},
		},
		{
			Terms:     []string{"小三十五", "35号", "林晚晚-35"},
			Canonical: []string{"小三十五", "林晚晚-35", "三十五号", "律师"},
		},
		{
			Terms:     []string{"小四十二", "42号", "林晚晚-42"},
			Canonical: []string{"小四十二", "林晚晚-42", "四十二号", "答案守护者"},
		},
	}
}
