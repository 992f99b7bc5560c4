package corpus

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"storyrag/internal/contextutil"
)

// Document is a markdown file loaded from the content tree.
// Documents are transient: only their derived chunks are persisted.
type Document struct {
	Path        string // Relative path from the content root, forward slashes
	Category    Category
	RawText     string
	ContentHash string // SHA256 hex of RawText, used for incremental indexing
}

// Layout describes which subtrees of the content root hold which document
// category. Defaults match the original project tree.
type Layout struct {
	SettingsDir   string // e.g. "设定"
	SubplotDir    string // e.g. "设定/跨卷支线剧情设计", must be checked before SettingsDir
	ChapterPrefix string // volume directory prefix, e.g. "Vol" for Vol1, Vol2, ...
}

// DefaultLayout returns the layout of the original serialized-novel tree.
func DefaultLayout() Layout {
	return Layout{
		SettingsDir:   "设定",
		SubplotDir:    "设定/跨卷支线剧情设计",
		ChapterPrefix: "Vol",
	}
}

// ignoreDirs are directory names skipped entirely during scanning.
var ignoreDirs = map[string]struct{}{
	".git":         {},
	".obsidian":    {},
	".venv":        {},
	"venv":         {},
	"env":          {},
	"__pycache__":  {},
	"node_modules": {},
	"chroma_db":    {},
}

// Loader walks a content tree and produces Documents for recognized files.
type Loader struct {
	root      string
	layout    Layout
	volumeRe  *regexp.Regexp
	logger    *slog.Logger
}

// NewLoader creates a loader rooted at the given directory.
func NewLoader(root string, layout Layout) *Loader {
	return &Loader{
		root:     root,
		layout:   layout,
		volumeRe: regexp.MustCompile("^" + regexp.QuoteMeta(layout.ChapterPrefix) + `\d+$`),
		logger:   slog.Default(),
	}
}

// Categorize assigns a category from the path prefix alone.
// Files outside the recognized subtrees get CategoryUnknown and are skipped
// by Scan; extraneous files are never an error.
func (l *Loader) Categorize(relPath string) Category {
	relPath = filepath.ToSlash(relPath)
	if strings.HasPrefix(relPath, l.layout.SubplotDir+"/") {
		return CategorySubplotPlan
	}
	if strings.HasPrefix(relPath, l.layout.SettingsDir+"/") {
		return CategorySetting
	}
	if top, _, ok := strings.Cut(relPath, "/"); ok && l.volumeRe.MatchString(top) {
		return CategoryChapter
	}
	return CategoryUnknown
}

// Scan walks the content root and returns all recognized documents in
// path order. A missing root is a fatal error; unreadable or malformed
// individual files are skipped with a log entry.
func (l *Loader) Scan(ctx context.Context) ([]Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	info, err := os.Stat(l.root)
	if err != nil {
		return nil, fmt.Errorf("content root %s: %w", l.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", l.root)
	}

	var docs []Document
	err = filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("access %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if _, skip := ignoreDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") && path != l.root {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") || filepath.Ext(path) != ".md" {
			return nil
		}

		relPath, err := filepath.Rel(l.root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		category := l.Categorize(relPath)
		if category == CategoryUnknown {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			logger.WarnContext(ctx, "skipping unreadable file", "rel_path", relPath, "error", err)
			return nil
		}
		if !utf8.Valid(raw) || bytes.ContainsRune(raw, 0) {
			logger.WarnContext(ctx, "skipping malformed file", "rel_path", relPath)
			return nil
		}

		hash := sha256.Sum256(raw)
		docs = append(docs, Document{
			Path:        relPath,
			Category:    category,
			RawText:     string(raw),
			ContentHash: fmt.Sprintf("%x", hash),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan content root: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}
