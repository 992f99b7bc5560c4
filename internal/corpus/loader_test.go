package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input string
		want  Category
	}{
		{"setting", CategorySetting},
		{"Settings", CategorySetting},
		{"设定", CategorySetting},
		{"chapter", CategoryChapter},
		{"章节", CategoryChapter},
		{"subplot_plan", CategorySubplotPlan},
		{"支线", CategorySubplotPlan},
		{"", CategoryUnknown},
		{"nonsense", CategoryUnknown},
	}

	for _, tt := range tests {
		if got := ParseCategory(tt.input); got != tt.want {
			t.Errorf("ParseCategory(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCategoryString(t *testing.T) {
	tests := []struct {
		cat  Category
		want string
	}{
		{CategorySetting, "setting"},
		{CategoryChapter, "chapter"},
		{CategorySubplotPlan, "subplot_plan"},
		{CategoryUnknown, ""},
	}

	for _, tt := range tests {
		if got := tt.cat.String(); got != tt.want {
			t.Errorf("Category.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestLoader_Categorize(t *testing.T) {
	loader := NewLoader(t.TempDir(), DefaultLayout())

	tests := []struct {
		relPath string
		want    Category
	}{
		{"设定/人物/林晚晚.md", CategorySetting},
		{"设定/世界观.md", CategorySetting},
		{"设定/跨卷支线剧情设计/主线伏笔.md", CategorySubplotPlan},
		{"Vol1/第1章.md", CategoryChapter},
		{"Vol12/第300章.md", CategoryChapter},
		{"Volume1/第1章.md", CategoryUnknown},
		{"Vol1x/第1章.md", CategoryUnknown},
		{"README.md", CategoryUnknown},
		{"notes/random.md", CategoryUnknown},
		{"Vol1.md", CategoryUnknown},
	}

	for _, tt := range tests {
		if got := loader.Categorize(tt.relPath); got != tt.want {
			t.Errorf("Categorize(%q) = %v, want %v", tt.relPath, got, tt.want)
		}
	}
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoader_Scan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "设定/人物/林晚晚.md", "# 林晚晚\n\n设定内容")
	writeFile(t, root, "设定/跨卷支线剧情设计/伏笔.md", "# 伏笔\n\n支线内容")
	writeFile(t, root, "Vol1/第1章.md", "正文第一段。\n\n正文第二段。")
	writeFile(t, root, "Vol1/notes.txt", "not markdown")
	writeFile(t, root, "README.md", "outside recognized subtrees")
	writeFile(t, root, ".obsidian/workspace.md", "editor state")
	writeFile(t, root, "chroma_db/segment.md", "vendor data")

	loader := NewLoader(root, DefaultLayout())
	docs, err := loader.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []struct {
		path     string
		category Category
	}{
		{"Vol1/第1章.md", CategoryChapter},
		{"设定/人物/林晚晚.md", CategorySetting},
		{"设定/跨卷支线剧情设计/伏笔.md", CategorySubplotPlan},
	}

	if len(docs) != len(want) {
		t.Fatalf("Scan() returned %d documents, want %d", len(docs), len(want))
	}
	for i, w := range want {
		if docs[i].Path != w.path {
			t.Errorf("docs[%d].Path = %q, want %q", i, docs[i].Path, w.path)
		}
		if docs[i].Category != w.category {
			t.Errorf("docs[%d].Category = %v, want %v", i, docs[i].Category, w.category)
		}
		if docs[i].ContentHash == "" {
			t.Errorf("docs[%d].ContentHash is empty", i)
		}
		if docs[i].RawText == "" {
			t.Errorf("docs[%d].RawText is empty", i)
		}
	}
}

func TestLoader_Scan_HashChangesWithContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Vol1/第1章.md", "第一版内容")

	loader := NewLoader(root, DefaultLayout())
	docs, err := loader.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	first := docs[0].ContentHash

	writeFile(t, root, "Vol1/第1章.md", "第二版内容")
	docs, err = loader.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if docs[0].ContentHash == first {
		t.Error("ContentHash did not change after content change")
	}
}

func TestLoader_Scan_SkipsMalformedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "Vol1/第1章.md", "正常内容")
	writeFile(t, root, "Vol1/坏文件.md", "text with a NUL \x00 byte")
	writeFile(t, root, "Vol1/非utf8.md", string([]byte{0xff, 0xfe, 0xfd}))

	loader := NewLoader(root, DefaultLayout())
	docs, err := loader.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(docs) != 1 {
		t.Fatalf("Scan() returned %d documents, want 1", len(docs))
	}
	if docs[0].Path != "Vol1/第1章.md" {
		t.Errorf("docs[0].Path = %q, want Vol1/第1章.md", docs[0].Path)
	}
}

func TestLoader_Scan_MissingRoot(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "does-not-exist"), DefaultLayout())
	if _, err := loader.Scan(context.Background()); err == nil {
		t.Error("Scan() expected error for missing root, got nil")
	}
}
