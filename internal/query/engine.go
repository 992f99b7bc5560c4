package query

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks storyrag/internal/query Engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"storyrag/internal/contextutil"
	"storyrag/internal/corpus"
	"storyrag/internal/llm"
	"storyrag/internal/vectorstore"
)

var (
	// ErrInvalidQuery is returned for empty or blank query text.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidArgument is returned for out-of-range parameters such as
	// a non-positive top_k.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable wraps failures of the embedding service or the
	// vector store.
	ErrUnavailable = errors.New("collaborator unavailable")
)

// characterQueryTemplates compose focused retrieval queries for a
// character name, one per facet of a persona profile.
var characterQueryTemplates = []string{
	"%s 人格设定 性格特点",
	"%s 能力 出场",
	"%s 对话风格 台词",
}

// plotQueryTemplate steers a thread keyword toward foreshadowing and
// plot material.
const plotQueryTemplate = "%s 伏笔 剧情"

// Result is one retrieved chunk with its relevance score.
type Result struct {
	ChunkID    string  `json:"chunk_id"`
	Content    string  `json:"content"`
	SourcePath string  `json:"source_path"`
	Category   string  `json:"category"`
	Heading    string  `json:"heading,omitempty"`
	Position   int     `json:"position"`
	Score      float32 `json:"score"`
}

// Engine answers retrieval queries over the indexed corpus.
type Engine interface {
	// Search runs a general query. category filters results when set;
	// corpus.CategoryUnknown searches everything.
	Search(ctx context.Context, query string, topK int, category corpus.Category) ([]Result, error)
	// SearchCharacter retrieves persona material for a character name,
	// expanding aliases and preferring setting documents.
	SearchCharacter(ctx context.Context, name string, topK int) ([]Result, error)
	// SearchPlotThread retrieves plot and foreshadowing material for a
	// thread keyword across subplot plans and settings.
	SearchPlotThread(ctx context.Context, keyword string, topK int) ([]Result, error)
}

type engine struct {
	embedder   llm.Embedder
	store      vectorstore.VectorStore
	collection string
	aliases    *AliasTable
}

// NewEngine creates a query engine over the given collaborators.
func NewEngine(embedder llm.Embedder, store vectorstore.VectorStore, collection string, aliases *AliasTable) Engine {
	return &engine{
		embedder:   embedder,
		store:      store,
		collection: collection,
		aliases:    aliases,
	}
}

func (e *engine) Search(ctx context.Context, query string, topK int, category corpus.Category) ([]Result, error) {
	if err := validate(query, topK); err != nil {
		return nil, err
	}

	logger := contextutil.LoggerFromContext(ctx)

	terms, expanded := e.aliases.Expand(query)
	if expanded {
		logger.DebugContext(ctx, "expanded query alias", "query", query, "terms", len(terms))
	}

	merged, err := e.searchTerms(ctx, terms, topK, []corpus.Category{category})
	if err != nil {
		return nil, err
	}
	return rank(merged, topK), nil
}

func (e *engine) SearchCharacter(ctx context.Context, name string, topK int) ([]Result, error) {
	if err := validate(name, topK); err != nil {
		return nil, err
	}

	logger := contextutil.LoggerFromContext(ctx)

	terms, _ := e.aliases.Expand(name)
	queries := make([]string, 0, len(terms)*len(characterQueryTemplates))
	for _, term := range terms {
		for _, tmpl := range characterQueryTemplates {
			queries = append(queries, fmt.Sprintf(tmpl, term))
		}
	}

	merged, err := e.searchTerms(ctx, queries, topK, []corpus.Category{corpus.CategorySetting})
	if err != nil {
		return nil, err
	}

	// A character may only appear in chapters so far. Retry without the
	// category filter using the bare names.
	if len(merged) == 0 {
		logger.DebugContext(ctx, "no setting chunks for character, widening search", "name", name)
		merged, err = e.searchTerms(ctx, terms, topK, []corpus.Category{corpus.CategoryUnknown})
		if err != nil {
			return nil, err
		}
	}

	return rank(merged, topK), nil
}

func (e *engine) SearchPlotThread(ctx context.Context, keyword string, topK int) ([]Result, error) {
	if err := validate(keyword, topK); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(plotQueryTemplate, keyword)
	categories := []corpus.Category{corpus.CategorySubplotPlan, corpus.CategorySetting}

	merged, err := e.searchTerms(ctx, []string{query}, topK, categories)
	if err != nil {
		return nil, err
	}
	return rank(merged, topK), nil
}

func validate(query string, topK int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: empty query text", ErrInvalidQuery)
	}
	if topK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	return nil
}

// searchTerms embeds each query, searches each category and merges
// everything by chunk ID, keeping the best score per chunk.
func (e *engine) searchTerms(ctx context.Context, queries []string, topK int, categories []corpus.Category) (map[string]Result, error) {
	merged := make(map[string]Result)

	for _, q := range queries {
		vecs, err := e.embedder.EmbedTexts(ctx, []string{q})
		if err != nil {
			return nil, fmt.Errorf("%w: embed query: %v", ErrUnavailable, err)
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("%w: embedding count mismatch: expected 1, got %d", ErrUnavailable, len(vecs))
		}

		for _, cat := range categories {
			hits, err := e.store.Search(ctx, e.collection, vecs[0], topK, cat.String())
			if err != nil {
				return nil, fmt.Errorf("%w: vector search: %v", ErrUnavailable, err)
			}
			for _, hit := range hits {
				prev, seen := merged[hit.PointID]
				if !seen || hit.Score > prev.Score {
					merged[hit.PointID] = toResult(hit)
				}
			}
		}
	}

	return merged, nil
}

func toResult(hit vectorstore.SearchResult) Result {
	return Result{
		ChunkID:    hit.PointID,
		Content:    hit.Text,
		SourcePath: hit.Meta.SourcePath,
		Category:   hit.Meta.Category,
		Heading:    hit.Meta.Heading,
		Position:   hit.Meta.Position,
		Score:      hit.Score,
	}
}

// rank orders merged results by score descending, breaking ties by
// source path then position so equal-score output is stable, and
// truncates to topK.
func rank(merged map[string]Result, topK int) []Result {
	results := make([]Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].SourcePath != results[j].SourcePath {
			return results[i].SourcePath < results[j].SourcePath
		}
		return results[i].Position < results[j].Position
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
