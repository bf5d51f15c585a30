package repository

import (
	"context"

	"trendpulse/internal/domain/entity"
)

// SourceSimhash is the slice element returned by ListSourceSimhashes: just
// enough to run a source-scoped Hamming scan without loading full articles.
type SourceSimhash struct {
	ArticleID int64
	Simhash64 uint64
}

// InsertResult is returned by InsertArticle. When DuplicateOf is non-nil the
// article is an exact or near duplicate of the referenced, already-stored
// article; it is still inserted as its own row, just linked via ArticleDuplicate.
type InsertResult struct {
	ArticleID   int64
	DuplicateOf *int64
	Kind        entity.DuplicateKind
}

// ArticleRepository manages Article records and their dedup bookkeeping.
type ArticleRepository interface {
	// InsertArticle performs hash_64-exact dedup first, then falls back to a
	// source-scoped SimHash scan (Hamming distance <= fingerprint.NearDuplicateThreshold).
	// The article row is always inserted (article_duplicates.article_id
	// references it), but on either hit an ArticleDuplicate row links it to
	// the earlier article and DuplicateOf is set, signalling callers to skip
	// it in the embedding and clustering pipeline.
	InsertArticle(ctx context.Context, article *entity.Article) (*InsertResult, error)

	// ListSourceSimhashes returns the simhash of every article from the
	// given source, for the near-duplicate scan in InsertArticle.
	ListSourceSimhashes(ctx context.Context, sourceID int64) ([]SourceSimhash, error)

	Get(ctx context.Context, id int64) (*entity.Article, error)

	// ListByCluster returns the articles assigned to a cluster within a run,
	// most recently published first, for the summariser collaborator.
	ListByCluster(ctx context.Context, runID, clusterID int64) ([]*entity.Article, error)
}
