package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

// ClusterRunRepo implements ClusterRunRepository for PostgreSQL.
type ClusterRunRepo struct{ db *sql.DB }

func NewClusterRunRepo(db *sql.DB) repository.ClusterRunRepository {
	return &ClusterRunRepo{db: db}
}

func (repo *ClusterRunRepo) ActiveRun(ctx context.Context, spaceID int64) (*entity.ClusterRun, error) {
	const query = `
SELECT id, space_id, algo, params, started_at, finished_at, status, is_active, notes
FROM cluster_runs WHERE space_id = $1 AND is_active LIMIT 1`

	run, err := repo.scanRun(repo.db.QueryRowContext(ctx, query, spaceID))
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ActiveRun: %w", err)
	}
	return run, nil
}

func (repo *ClusterRunRepo) Create(ctx context.Context, run *entity.ClusterRun) (int64, error) {
	if err := run.Validate(); err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return 0, fmt.Errorf("Create: marshal params: %w", err)
	}

	const query = `
INSERT INTO cluster_runs (space_id, algo, params, status, notes)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, started_at`

	var id int64
	if err := repo.db.QueryRowContext(ctx, query, run.SpaceID, run.Algo, params, run.Status, nullableString(run.Notes)).
		Scan(&id, &run.StartedAt); err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}
	run.ID = id
	return id, nil
}

func (repo *ClusterRunRepo) Activate(ctx context.Context, runID int64) error {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Activate: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const deactivate = `
UPDATE cluster_runs SET is_active = false
WHERE is_active AND space_id = (SELECT space_id FROM cluster_runs WHERE id = $1)`
	if _, err := tx.ExecContext(ctx, deactivate, runID); err != nil {
		return fmt.Errorf("Activate: deactivate: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE cluster_runs SET is_active = true WHERE id = $1`, runID)
	if err != nil {
		return fmt.Errorf("Activate: activate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}

	return tx.Commit()
}

func (repo *ClusterRunRepo) Finish(ctx context.Context, runID int64, status entity.ClusterRunStatus, finishedAt time.Time) error {
	const query = `UPDATE cluster_runs SET status = $2, finished_at = $3 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, runID, status, finishedAt)
	if err != nil {
		return fmt.Errorf("Finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *ClusterRunRepo) scanRun(row interface{ Scan(dest ...interface{}) error }) (*entity.ClusterRun, error) {
	var run entity.ClusterRun
	var params []byte
	var notes sql.NullString
	var finishedAt sql.NullTime

	if err := row.Scan(&run.ID, &run.SpaceID, &run.Algo, &params, &run.StartedAt,
		&finishedAt, &run.Status, &run.IsActive, &notes); err != nil {
		return nil, err
	}

	if len(params) > 0 {
		if err := json.Unmarshal(params, &run.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params: %w", err)
		}
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	run.Notes = notes.String
	return &run, nil
}

// ClusterRepo implements ClusterRepository for PostgreSQL.
type ClusterRepo struct{ db *sql.DB }

func NewClusterRepo(db *sql.DB) repository.ClusterRepository {
	return &ClusterRepo{db: db}
}

func (repo *ClusterRepo) Create(ctx context.Context, cluster *entity.Cluster) (int64, error) {
	const query = `
INSERT INTO clusters (run_id, label, window_start, window_end)
VALUES ($1, $2, $3, $4)
RETURNING id, created_at`

	var id int64
	if err := repo.db.QueryRowContext(ctx, query, cluster.RunID, nullableString(cluster.Label),
		cluster.WindowStart, cluster.WindowEnd).
		Scan(&id, &cluster.CreatedAt); err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}
	cluster.ID = id
	return id, nil
}

func (repo *ClusterRepo) Get(ctx context.Context, id int64) (*entity.Cluster, error) {
	const query = `SELECT id, run_id, label, window_start, window_end, created_at FROM clusters WHERE id = $1`

	var c entity.Cluster
	var label sql.NullString
	err := repo.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.RunID, &label, &c.WindowStart, &c.WindowEnd, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	c.Label = label.String
	return &c, nil
}

func (repo *ClusterRepo) ListActive(ctx context.Context, runID int64, since time.Time) ([]*entity.Cluster, error) {
	const query = `
SELECT id, run_id, label, window_start, window_end, created_at
FROM clusters WHERE run_id = $1 AND created_at >= $2
ORDER BY created_at`

	rows, err := repo.db.QueryContext(ctx, query, runID, since)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clusters []*entity.Cluster
	for rows.Next() {
		var c entity.Cluster
		var label sql.NullString
		if err := rows.Scan(&c.ID, &c.RunID, &label, &c.WindowStart, &c.WindowEnd, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListActive: Scan: %w", err)
		}
		c.Label = label.String
		clusters = append(clusters, &c)
	}
	return clusters, rows.Err()
}

func (repo *ClusterRepo) Assign(ctx context.Context, assignment *entity.ArticleCluster) error {
	const query = `
INSERT INTO article_clusters (run_id, cluster_id, article_id, similarity)
VALUES ($1, $2, $3, $4)
ON CONFLICT (run_id, article_id) DO NOTHING`

	if _, err := repo.db.ExecContext(ctx, query, assignment.RunID, assignment.ClusterID,
		assignment.ArticleID, assignment.Similarity); err != nil {
		return fmt.Errorf("Assign: %w", err)
	}
	return nil
}

func (repo *ClusterRepo) ClusterOf(ctx context.Context, runID, articleID int64) (int64, error) {
	const query = `SELECT cluster_id FROM article_clusters WHERE run_id = $1 AND article_id = $2`

	var clusterID int64
	err := repo.db.QueryRowContext(ctx, query, runID, articleID).Scan(&clusterID)
	if err == sql.ErrNoRows {
		return 0, entity.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ClusterOf: %w", err)
	}
	return clusterID, nil
}

func (repo *ClusterRepo) MemberCount(ctx context.Context, runID, clusterID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM article_clusters WHERE run_id = $1 AND cluster_id = $2`

	var count int
	if err := repo.db.QueryRowContext(ctx, query, runID, clusterID).Scan(&count); err != nil {
		return 0, fmt.Errorf("MemberCount: %w", err)
	}
	return count, nil
}

// ClusterSummaryRepo implements ClusterSummaryRepository for PostgreSQL.
type ClusterSummaryRepo struct{ db *sql.DB }

func NewClusterSummaryRepo(db *sql.DB) repository.ClusterSummaryRepository {
	return &ClusterSummaryRepo{db: db}
}

func (repo *ClusterSummaryRepo) LatestVersion(ctx context.Context, clusterID int64) (int, error) {
	const query = `SELECT COALESCE(MAX(version), 0) FROM cluster_summaries WHERE cluster_id = $1`

	var version int
	if err := repo.db.QueryRowContext(ctx, query, clusterID).Scan(&version); err != nil {
		return 0, fmt.Errorf("LatestVersion: %w", err)
	}
	return version, nil
}

func (repo *ClusterSummaryRepo) ActiveSummary(ctx context.Context, clusterID int64) (*entity.ClusterSummary, error) {
	const query = `
SELECT id, cluster_id, run_id, version, summarizer_engine, engine_version, lang,
       summary_md, timeline_md, is_active, generation_metadata, generated_at
FROM cluster_summaries WHERE cluster_id = $1 AND is_active LIMIT 1`

	summary, err := repo.scanSummary(repo.db.QueryRowContext(ctx, query, clusterID))
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ActiveSummary: %w", err)
	}
	return summary, nil
}

func (repo *ClusterSummaryRepo) Publish(ctx context.Context, summary *entity.ClusterSummary) error {
	if err := summary.Validate(); err != nil {
		return fmt.Errorf("Publish: %w", err)
	}

	metadata, err := json.Marshal(summary.GenerationMetadata)
	if err != nil {
		return fmt.Errorf("Publish: marshal metadata: %w", err)
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Publish: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE cluster_summaries SET is_active = false WHERE cluster_id = $1 AND is_active`,
		summary.ClusterID); err != nil {
		return fmt.Errorf("Publish: deactivate: %w", err)
	}

	const insert = `
INSERT INTO cluster_summaries
    (cluster_id, run_id, version, summarizer_engine, engine_version, lang,
     summary_md, timeline_md, is_active, generation_metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9)
RETURNING id, generated_at`

	if err := tx.QueryRowContext(ctx, insert, summary.ClusterID, summary.RunID, summary.Version,
		summary.SummarizerEngine, nullableString(summary.EngineVersion), summary.Lang,
		nullableString(summary.SummaryMD), nullableString(summary.TimelineMD), metadata).
		Scan(&summary.ID, &summary.GeneratedAt); err != nil {
		return fmt.Errorf("Publish: insert: %w", err)
	}
	summary.IsActive = true

	return tx.Commit()
}

func (repo *ClusterSummaryRepo) scanSummary(row interface{ Scan(dest ...interface{}) error }) (*entity.ClusterSummary, error) {
	var s entity.ClusterSummary
	var engineVersion, summaryMD, timelineMD sql.NullString
	var metadata []byte

	if err := row.Scan(&s.ID, &s.ClusterID, &s.RunID, &s.Version, &s.SummarizerEngine, &engineVersion,
		&s.Lang, &summaryMD, &timelineMD, &s.IsActive, &metadata, &s.GeneratedAt); err != nil {
		return nil, err
	}

	s.EngineVersion = engineVersion.String
	s.SummaryMD = summaryMD.String
	s.TimelineMD = timelineMD.String
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &s.GenerationMetadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &s, nil
}
