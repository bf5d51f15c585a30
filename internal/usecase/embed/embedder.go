package embed

import "context"

// Embedder turns text into a vector in a single named model space.
// Implemented by internal/infra/embedder against whichever provider backs
// the configured embedding model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dims() int
	Name() string
}
