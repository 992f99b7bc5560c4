package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"storyrag/internal/chunker"
	"storyrag/internal/contextutil"
	"storyrag/internal/corpus"
	"storyrag/internal/llm"
	"storyrag/internal/storage"
	"storyrag/internal/vectorstore"
)

const (
	// defaultWorkers bounds parallel embedding across documents. Kept
	// small to respect embedding service throughput limits.
	defaultWorkers = 4
	// embedBatchSize is the number of chunk texts sent per embeddings
	// request.
	embedBatchSize = 20
)

// Summary reports the outcome of one indexing pass.
type Summary struct {
	Indexed int // Documents re-indexed (new or changed)
	Skipped int // Documents unchanged since the last pass
	Failed  int // Documents that failed and will be retried next run
}

// Pipeline orchestrates loading, chunking, embedding and upserting
// documents into the vector store, incrementally by content hash.
type Pipeline struct {
	loader      *corpus.Loader
	chunker     *chunker.Chunker
	hashes      storage.HashStore
	embedder    llm.Embedder
	vectorStore vectorstore.VectorStore
	collection  string
	workers     int
	batchSize   int
}

// NewPipeline creates an indexing pipeline. workers <= 0 selects the
// default parallelism.
func NewPipeline(
	loader *corpus.Loader,
	hashes storage.HashStore,
	embedder llm.Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	workers int,
) *Pipeline {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Pipeline{
		loader:      loader,
		chunker:     chunker.New(),
		hashes:      hashes,
		embedder:    embedder,
		vectorStore: vectorStore,
		collection:  collection,
		workers:     workers,
		batchSize:   embedBatchSize,
	}
}

// IndexAll scans the content tree and brings the vector store in sync
// with it. Documents whose recorded hash matches are skipped without any
// embedding calls or store writes. A failure in one document is counted
// and logged but does not stop the pass; the failed document's hash
// record is left untouched so it is retried on the next run.
//
// With force set, recorded hashes are ignored and everything is
// re-indexed.
func (p *Pipeline) IndexAll(ctx context.Context, force bool) (Summary, error) {
	logger := contextutil.LoggerFromContext(ctx)

	docs, err := p.loader.Scan(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("scan documents: %w", err)
	}

	logger.InfoContext(ctx, "starting indexing", "documents", len(docs), "workers", p.workers, "force", force)

	var (
		mu      sync.Mutex
		summary Summary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			indexed, err := p.indexDocument(gctx, doc, force)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil && errors.Is(err, context.Canceled):
				return err
			case err != nil:
				summary.Failed++
				logger.ErrorContext(gctx, "failed to index document", "path", doc.Path, "error", err)
			case indexed:
				summary.Indexed++
			default:
				summary.Skipped++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	logger.InfoContext(ctx, "indexing completed",
		"indexed", summary.Indexed, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

// indexDocument indexes one document if its content hash differs from the
// recorded one. Returns true when the document was (re)indexed.
//
// Write ordering: chunks are deleted and upserted before the hash record
// is updated, so a crash mid-way leaves a stale record and the document
// is safely re-indexed next run.
func (p *Pipeline) indexDocument(ctx context.Context, doc corpus.Document, force bool) (bool, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if !force {
		prev, err := p.hashes.Get(ctx, doc.Path)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return false, fmt.Errorf("read hash record: %w", err)
		}
		if err == nil && prev == doc.ContentHash {
			logger.DebugContext(ctx, "skipping unchanged document", "path", doc.Path)
			return false, nil
		}
	}

	chunks := p.chunker.Chunk(doc)

	// Embed everything before touching the store, so an embedding failure
	// leaves the previous index state intact.
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		batch, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return false, fmt.Errorf("embed chunks: %w", err)
		}
		if len(batch) != len(texts) {
			return false, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(batch))
		}
		vectors = append(vectors, batch...)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.Point{
			ID:   c.ID,
			Vec:  vectors[i],
			Text: c.Text,
			Meta: vectorstore.Meta{
				SourcePath: c.SourcePath,
				Category:   c.Category.String(),
				Position:   c.Position,
				Heading:    c.Heading,
			},
		}
	}

	// Delete first: the new chunk set may be shorter than the old one and
	// deterministic IDs only overwrite positions that still exist.
	if err := p.vectorStore.DeleteBySourcePath(ctx, p.collection, doc.Path); err != nil {
		return false, fmt.Errorf("delete stale chunks: %w", err)
	}
	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		return false, fmt.Errorf("upsert chunks: %w", err)
	}

	if err := p.hashes.Set(ctx, doc.Path, doc.ContentHash); err != nil {
		return false, fmt.Errorf("record hash: %w", err)
	}

	logger.InfoContext(ctx, "indexed document", "path", doc.Path, "category", doc.Category.String(), "chunks", len(chunks))
	return true, nil
}
