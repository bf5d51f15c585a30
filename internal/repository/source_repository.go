package repository

import (
	"context"
	"time"

	"trendpulse/internal/domain/entity"
)

// SourceRepository manages Source records.
type SourceRepository interface {
	Get(ctx context.Context, id int64) (*entity.Source, error)
	List(ctx context.Context) ([]*entity.Source, error)
	ListActive(ctx context.Context) ([]*entity.Source, error)
	Create(ctx context.Context, source *entity.Source) error
	Update(ctx context.Context, source *entity.Source) error
	Delete(ctx context.Context, id int64) error
	// TouchFetchedAt records the timestamp of the most recent successful
	// ingestion pass for a source, used to drive the dispatcher's schedule.
	TouchFetchedAt(ctx context.Context, id int64, t time.Time) error
	// RecordFetchError nudges a source's rolling error_rate upward; used by
	// the ingestion dispatcher when a source's fetch fails.
	RecordFetchError(ctx context.Context, id int64, rate float64) error
}
