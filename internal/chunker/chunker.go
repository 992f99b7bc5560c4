package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"storyrag/internal/corpus"
)

const (
	// minChunkSize is the merge-forward threshold for paragraph chunks,
	// in runes. Short dialogue paragraphs are merged until a group
	// reaches this size.
	minChunkSize = 50
	// maxChunkSize bounds chunk text in runes so embeddings stay
	// meaningful. Oversized sections are re-split at paragraph
	// boundaries.
	maxChunkSize = 2000
)

// Chunk is a retrievable unit of text derived from one document.
type Chunk struct {
	ID         string // Deterministic, derived from (source path, position)
	SourcePath string
	Category   corpus.Category
	Position   int    // Order within the document, starts at 0
	Heading    string // Deepest enclosing heading, empty for paragraph chunks
	Text       string
}

// ChunkID derives the stable identifier for a chunk position within a
// document. Re-indexing a document produces the same IDs, so vector store
// upserts overwrite instead of duplicating.
func ChunkID(sourcePath string, position int) string {
	name := fmt.Sprintf("storyrag://%s#%d", sourcePath, position)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Chunker splits documents into chunks using a strategy selected by
// document category.
type Chunker struct {
	parser goldmark.Markdown
}

// New creates a chunker.
func New() *Chunker {
	return &Chunker{parser: goldmark.New()}
}

// section is an intermediate split unit before positions and IDs are
// assigned.
type section struct {
	heading string
	text    string
}

// strategyFor maps a document category to its split function.
func (c *Chunker) strategyFor(cat corpus.Category) func(string) []section {
	switch cat {
	case corpus.CategoryChapter:
		return paragraphSections
	default:
		// Setting and subplot documents are heading-structured.
		return c.headingSections
	}
}

// Chunk converts a document into its ordered chunk sequence.
// An empty document produces zero chunks; whitespace-only sections are
// dropped. Chunks are non-overlapping and order-preserving.
func (c *Chunker) Chunk(doc corpus.Document) []Chunk {
	if strings.TrimSpace(doc.RawText) == "" {
		return nil
	}

	sections := c.strategyFor(doc.Category)(doc.RawText)

	chunks := make([]Chunk, 0, len(sections))
	for _, s := range sections {
		text := strings.TrimSpace(s.text)
		if text == "" {
			continue
		}
		pos := len(chunks)
		chunks = append(chunks, Chunk{
			ID:         ChunkID(doc.Path, pos),
			SourcePath: doc.Path,
			Category:   doc.Category,
			Position:   pos,
			Heading:    s.heading,
			Text:       text,
		})
	}
	return chunks
}

// headingMark records where a heading line starts in the source text.
type headingMark struct {
	offset int // byte offset of the heading line start
	level  int
	title  string
}

// headingSections splits text at markdown headings of any level. Each
// section spans from its heading line to the next heading line, so
// concatenating section texts reconstructs the document. Sections larger
// than maxChunkSize are re-split at paragraph boundaries, keeping the
// heading.
func (c *Chunker) headingSections(text string) []section {
	source := []byte(text)
	doc := c.parser.Parser().Parse(gmtext.NewReader(source))

	var marks []headingMark
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := heading.Lines().At(0)
		marks = append(marks, headingMark{
			offset: lineStart(source, seg.Start),
			level:  heading.Level,
			title:  headingTitle(heading, source),
		})
		return ast.WalkSkipChildren, nil
	})

	if len(marks) == 0 {
		return splitOversized(section{text: text})
	}

	var sections []section
	if preamble := text[:marks[0].offset]; strings.TrimSpace(preamble) != "" {
		sections = append(sections, splitOversized(section{text: preamble})...)
	}
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1].offset
		}
		sections = append(sections, splitOversized(section{
			heading: m.title,
			text:    text[m.offset:end],
		})...)
	}
	return sections
}

// lineStart walks back from a byte offset to the beginning of its line.
// Heading segments start after the "#" markers, but a section must include
// the full heading line for chunk coverage.
func lineStart(source []byte, offset int) int {
	for offset > 0 && source[offset-1] != '\n' {
		offset--
	}
	return offset
}

// headingTitle extracts the plain text of a heading node.
func headingTitle(heading *ast.Heading, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(heading, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(source))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// paragraphSections splits chapter prose at blank-line boundaries and
// merges consecutive short paragraphs forward until the group reaches
// minChunkSize, so dialogue exchanges stay in one chunk. The trailing
// group is emitted even if it stays short.
func paragraphSections(text string) []section {
	paragraphs := splitParagraphs(text)

	var sections []section
	var group []string
	groupRunes := 0

	flush := func() {
		if len(group) == 0 {
			return
		}
		sections = append(sections, splitOversized(section{
			text: strings.Join(group, "\n\n"),
		})...)
		group = group[:0]
		groupRunes = 0
	}

	for _, para := range paragraphs {
		if strings.TrimSpace(para) == "" {
			continue
		}
		group = append(group, para)
		groupRunes += utf8.RuneCountInString(para)
		if groupRunes >= minChunkSize {
			flush()
		}
	}
	flush()

	return sections
}

// splitParagraphs splits text into runs separated by blank lines.
func splitParagraphs(text string) []string {
	lines := strings.Split(text, "\n")
	var paragraphs []string
	var current []string

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, strings.Join(current, "\n"))
				current = current[:0]
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, "\n"))
	}
	return paragraphs
}

// splitOversized re-splits a section exceeding maxChunkSize at paragraph
// boundaries, falling back to line and sentence boundaries, and finally to
// a hard rune split. Sub-parts keep the section heading. Sizes are in
// runes, not bytes.
func splitOversized(s section) []section {
	if utf8.RuneCountInString(s.text) <= maxChunkSize {
		return []section{s}
	}

	runes := []rune(s.text)
	var parts []section
	start := 0
	for start < len(runes) {
		end := start + maxChunkSize
		if end >= len(runes) {
			parts = append(parts, section{heading: s.heading, text: string(runes[start:])})
			break
		}

		window := string(runes[start:end])
		split := end
		if i := strings.LastIndex(window, "\n\n"); i != -1 {
			split = start + utf8.RuneCountInString(window[:i+2])
		} else if i := strings.LastIndex(window, "\n"); i != -1 {
			split = start + utf8.RuneCountInString(window[:i+1])
		} else if i := lastSentenceEnd(window); i != -1 {
			split = start + utf8.RuneCountInString(window[:i])
		}

		parts = append(parts, section{heading: s.heading, text: string(runes[start:split])})
		start = split
	}
	return parts
}

// lastSentenceEnd finds the byte offset just past the last sentence
// terminator, handling both CJK and Latin punctuation. Returns -1 if none.
func lastSentenceEnd(s string) int {
	best := -1
	for _, term := range []string{"。", "！", "？", ". "} {
		if i := strings.LastIndex(s, term); i != -1 && i+len(term) > best {
			best = i + len(term)
		}
	}
	return best
}
