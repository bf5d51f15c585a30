package repository

import (
	"context"
	"time"

	"trendpulse/internal/domain/entity"
)

// ClusterRunRepository manages ClusterRun lifecycle and the active-run
// invariant: at most one ClusterRun per embedding space may be active.
type ClusterRunRepository interface {
	// ActiveRun returns the currently active run for a space, or
	// entity.ErrNotFound if none is active.
	ActiveRun(ctx context.Context, spaceID int64) (*entity.ClusterRun, error)
	Create(ctx context.Context, run *entity.ClusterRun) (int64, error)
	// Activate marks run as active and, within the same transaction,
	// deactivates any other active run for the same space.
	Activate(ctx context.Context, runID int64) error
	Finish(ctx context.Context, runID int64, status entity.ClusterRunStatus, finishedAt time.Time) error
}

// ClusterRepository manages Cluster rows and article assignments within a
// ClusterRun.
type ClusterRepository interface {
	Create(ctx context.Context, cluster *entity.Cluster) (int64, error)
	Get(ctx context.Context, id int64) (*entity.Cluster, error)
	// ListActive returns clusters created at or after since under the given
	// run, for the trend metrics worker's sweep.
	ListActive(ctx context.Context, runID int64, since time.Time) ([]*entity.Cluster, error)

	// Assign links an article to a cluster within a run. It is idempotent on
	// the (run_id, article_id) primary key: assigning an already-assigned
	// article is a no-op.
	Assign(ctx context.Context, assignment *entity.ArticleCluster) error
	// ClusterOf returns the cluster id an article is already assigned to
	// within a run, or entity.ErrNotFound if unassigned.
	ClusterOf(ctx context.Context, runID, articleID int64) (int64, error)
	MemberCount(ctx context.Context, runID, clusterID int64) (int, error)
}

// ClusterSummaryRepository manages generated cluster summaries and the
// active-summary invariant: at most one active ClusterSummary per cluster.
type ClusterSummaryRepository interface {
	// LatestVersion returns the highest existing summary version for a
	// cluster, or 0 if none exists.
	LatestVersion(ctx context.Context, clusterID int64) (int, error)
	// ActiveSummary returns the cluster's active summary, or
	// entity.ErrNotFound if none is active.
	ActiveSummary(ctx context.Context, clusterID int64) (*entity.ClusterSummary, error)
	// Publish inserts summary as the new version and, in the same
	// transaction, deactivates every other summary row for the cluster.
	Publish(ctx context.Context, summary *entity.ClusterSummary) error
}
