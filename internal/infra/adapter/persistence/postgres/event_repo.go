package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

// EventRepo implements EventRepository for PostgreSQL.
type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) repository.EventRepository {
	return &EventRepo{db: db}
}

func (repo *EventRepo) Insert(ctx context.Context, event *entity.Event) (int64, error) {
	if err := event.Validate(); err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}

	const query = `
INSERT INTO events (run_id, cluster_id, score, severity, label, window_start, window_end)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, detected_at`

	var id int64
	if err := repo.db.QueryRowContext(ctx, query, event.RunID, event.ClusterID, event.Score,
		event.Severity, nullableString(event.Label), event.WindowStart, event.WindowEnd).
		Scan(&id, &event.DetectedAt); err != nil {
		return 0, fmt.Errorf("Insert: %w", err)
	}
	event.ID = id
	return id, nil
}

func (repo *EventRepo) ExistsSince(ctx context.Context, clusterID int64, since time.Time) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM events WHERE cluster_id = $1 AND detected_at >= $2)`

	var exists bool
	if err := repo.db.QueryRowContext(ctx, query, clusterID, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("ExistsSince: %w", err)
	}
	return exists, nil
}
