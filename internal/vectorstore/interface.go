package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks storyrag/internal/vectorstore VectorStore

import "context"

// Meta is the provenance payload stored alongside each chunk vector.
type Meta struct {
	SourcePath string // Relative path of the source document
	Category   string // Canonical category value (corpus.Category.String())
	Position   int    // Chunk order within the document
	Heading    string // Deepest enclosing heading, may be empty
}

// Point is a chunk ready for upsert: deterministic ID, embedding vector,
// chunk text, and provenance.
type Point struct {
	ID   string
	Vec  []float32
	Text string
	Meta Meta
}

// SearchResult is a nearest-neighbor hit.
type SearchResult struct {
	PointID string
	Score   float32
	Text    string
	Meta    Meta
}

// VectorStore is the persistent vector store collaborator. It must support
// concurrent readers; only the indexer writes.
type VectorStore interface {
	// EnsureCollection creates the collection if missing and validates the
	// vector size if it exists.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// Upsert inserts or overwrites points by ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns up to k nearest neighbors by the store's similarity
	// metric. A non-empty category restricts results to that category.
	Search(ctx context.Context, collection string, query []float32, k int, category string) ([]SearchResult, error)

	// DeleteBySourcePath removes all points belonging to one document.
	DeleteBySourcePath(ctx context.Context, collection, sourcePath string) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)
}
