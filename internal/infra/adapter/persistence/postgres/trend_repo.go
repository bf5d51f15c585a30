package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

// TrendMetricRepo implements TrendMetricRepository for PostgreSQL.
type TrendMetricRepo struct{ db *sql.DB }

func NewTrendMetricRepo(db *sql.DB) repository.TrendMetricRepository {
	return &TrendMetricRepo{db: db}
}

func (repo *TrendMetricRepo) Insert(ctx context.Context, metric *entity.TrendMetric) error {
	const query = `
INSERT INTO trend_metrics (ts, cluster_id, run_id, doc_count, unique_sources, velocity, acceleration, novelty)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (ts, cluster_id, run_id) DO UPDATE SET
    doc_count = EXCLUDED.doc_count,
    unique_sources = EXCLUDED.unique_sources,
    velocity = EXCLUDED.velocity,
    acceleration = EXCLUDED.acceleration,
    novelty = EXCLUDED.novelty`

	if _, err := repo.db.ExecContext(ctx, query, metric.TS, metric.ClusterID, metric.RunID,
		metric.DocCount, metric.UniqueSources, metric.Velocity, metric.Acceleration, metric.Novelty); err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

func (repo *TrendMetricRepo) Previous(ctx context.Context, runID, clusterID int64, since, before time.Time) (*entity.TrendMetric, error) {
	const query = `
SELECT ts, cluster_id, run_id, doc_count, unique_sources, velocity, acceleration, novelty
FROM trend_metrics
WHERE run_id = $1 AND cluster_id = $2 AND ts >= $3 AND ts < $4
ORDER BY ts DESC LIMIT 1`

	metric, err := scanTrendMetric(repo.db.QueryRowContext(ctx, query, runID, clusterID, since, before))
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Previous: %w", err)
	}
	return metric, nil
}

func (repo *TrendMetricRepo) Latest(ctx context.Context, runID int64, since time.Time) ([]*entity.TrendMetric, error) {
	const query = `
SELECT DISTINCT ON (cluster_id) ts, cluster_id, run_id, doc_count, unique_sources, velocity, acceleration, novelty
FROM trend_metrics
WHERE run_id = $1 AND ts >= $2
ORDER BY cluster_id, ts DESC`

	rows, err := repo.db.QueryContext(ctx, query, runID, since)
	if err != nil {
		return nil, fmt.Errorf("Latest: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var metrics []*entity.TrendMetric
	for rows.Next() {
		var m entity.TrendMetric
		if err := rows.Scan(&m.TS, &m.ClusterID, &m.RunID, &m.DocCount, &m.UniqueSources,
			&m.Velocity, &m.Acceleration, &m.Novelty); err != nil {
			return nil, fmt.Errorf("Latest: Scan: %w", err)
		}
		metrics = append(metrics, &m)
	}
	return metrics, rows.Err()
}

func (repo *TrendMetricRepo) DocCountSince(ctx context.Context, runID, clusterID int64, since, ts time.Time) (int, error) {
	const query = `
SELECT COUNT(DISTINCT a.id)
FROM article_clusters ac
JOIN articles a ON a.id = ac.article_id
WHERE ac.run_id = $1 AND ac.cluster_id = $2 AND a.created_at BETWEEN $3 AND $4`

	var count int
	if err := repo.db.QueryRowContext(ctx, query, runID, clusterID, since, ts).Scan(&count); err != nil {
		return 0, fmt.Errorf("DocCountSince: %w", err)
	}
	return count, nil
}

func (repo *TrendMetricRepo) UniqueSourceCount(ctx context.Context, runID, clusterID int64, ts time.Time) (int, error) {
	const query = `
SELECT COUNT(DISTINCT a.source_id)
FROM article_clusters ac
JOIN articles a ON a.id = ac.article_id
WHERE ac.run_id = $1 AND ac.cluster_id = $2 AND a.created_at <= $3`

	var count int
	if err := repo.db.QueryRowContext(ctx, query, runID, clusterID, ts).Scan(&count); err != nil {
		return 0, fmt.Errorf("UniqueSourceCount: %w", err)
	}
	return count, nil
}

func scanTrendMetric(row interface{ Scan(dest ...interface{}) error }) (*entity.TrendMetric, error) {
	var m entity.TrendMetric
	if err := row.Scan(&m.TS, &m.ClusterID, &m.RunID, &m.DocCount, &m.UniqueSources,
		&m.Velocity, &m.Acceleration, &m.Novelty); err != nil {
		return nil, err
	}
	return &m, nil
}
