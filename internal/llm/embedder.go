package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks storyrag/internal/llm Embedder

import "context"

// Embedder computes embedding vectors for texts.
// Implementations are assumed deterministic for identical input.
type Embedder interface {
	// EmbedTexts returns one vector per input text, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
