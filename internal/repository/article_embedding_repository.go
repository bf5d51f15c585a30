package repository

import (
	"context"
	"time"

	"trendpulse/internal/domain/entity"
)

// EmbeddingSpaceRepository manages EmbeddingSpace registry rows.
type EmbeddingSpaceRepository interface {
	// GetOrCreate resolves a space by (name, version), creating it with the
	// given provider/dims if it doesn't exist yet. If dims has drifted from
	// the stored value, the first writer wins: the existing row is returned
	// unchanged.
	GetOrCreate(ctx context.Context, name, version, provider string, dims int) (*entity.EmbeddingSpace, error)
	Get(ctx context.Context, id int64) (*entity.EmbeddingSpace, error)
}

// ArticleEmbeddingRepository stores and searches article vectors within a
// single EmbeddingSpace.
type ArticleEmbeddingRepository interface {
	// Upsert is idempotent on (space_id, article_id): inserting an embedding
	// for a pair that already exists replaces the stored vector.
	Upsert(ctx context.Context, embedding *entity.ArticleEmbedding) error

	Get(ctx context.Context, spaceID, articleID int64) (*entity.ArticleEmbedding, error)

	// KNN performs a windowed cosine-distance search: only embeddings of
	// articles created at or after since are considered, excludeArticleID is
	// never returned, and results come back ordered by ascending cosine
	// distance (i.e. descending similarity), capped at k.
	KNN(ctx context.Context, spaceID int64, vector []float32, since time.Time, excludeArticleID int64, k int) ([]entity.Neighbor, error)
}
