// Package trend implements the Trend Metrics Worker: a periodic sweep over
// every cluster active in the last day, appending one TrendMetric row per
// cluster per tick.
package trend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

// Tick is how often the worker runs, and TTL bounds how long a scheduled
// tick job may wait before being dropped.
const (
	Tick = 5 * time.Minute
	TTL  = 4 * time.Minute
)

// ClusterWindow bounds how far back a cluster's creation may be for it to
// still be swept.
const ClusterWindow = 24 * time.Hour

const (
	velocityWindow     = 1 * time.Hour
	noveltyWindow      = 6 * time.Hour
	accelerationWindow = 2 * time.Hour
)

// Worker computes one TrendMetric row per active cluster per tick.
type Worker struct {
	ClusterRunRepo repository.ClusterRunRepository
	ClusterRepo    repository.ClusterRepository
	MetricRepo     repository.TrendMetricRepository

	// SpaceID is the embedding space whose active run gets swept. Resolved
	// once at startup, not discovered per tick: EmbeddingSpace rows are
	// effectively static for a running deployment.
	SpaceID int64

	// Now is overridable for tests; defaults to time.Now when nil.
	Now func() time.Time
}

// Stats summarises one tick.
type Stats struct {
	Clusters int
	Metrics  []*entity.TrendMetric
}

// Tick loads the active run for Worker.SpaceID, sweeps every cluster
// created within ClusterWindow, and appends a TrendMetric for each. If no
// run is active, it returns zero-value stats without error: there is
// nothing to measure.
func (w *Worker) Tick(ctx context.Context) (*Stats, error) {
	now := w.now()

	run, err := w.ClusterRunRepo.ActiveRun(ctx, w.SpaceID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			slog.InfoContext(ctx, "no active cluster run, skipping trend tick",
				slog.Int64("space_id", w.SpaceID))
			return &Stats{}, nil
		}
		return nil, fmt.Errorf("trend: load active run: %w", err)
	}

	clusters, err := w.ClusterRepo.ListActive(ctx, run.ID, now.Add(-ClusterWindow))
	if err != nil {
		return nil, fmt.Errorf("trend: list active clusters: %w", err)
	}

	stats := &Stats{Clusters: len(clusters)}
	for _, c := range clusters {
		metric, err := w.measure(ctx, run.ID, c.ID, now)
		if err != nil {
			slog.WarnContext(ctx, "failed to measure cluster, skipping",
				slog.Int64("cluster_id", c.ID), slog.Any("error", err))
			continue
		}
		if err := w.MetricRepo.Insert(ctx, metric); err != nil {
			slog.WarnContext(ctx, "failed to persist trend metric",
				slog.Int64("cluster_id", c.ID), slog.Any("error", err))
			continue
		}
		stats.Metrics = append(stats.Metrics, metric)
	}

	slog.InfoContext(ctx, "trend tick completed",
		slog.Int64("run_id", run.ID), slog.Int("clusters", stats.Clusters))
	return stats, nil
}

// measure computes every metric field for one cluster at ts.
func (w *Worker) measure(ctx context.Context, runID, clusterID int64, ts time.Time) (*entity.TrendMetric, error) {
	docCount, err := w.ClusterRepo.MemberCount(ctx, runID, clusterID)
	if err != nil {
		return nil, fmt.Errorf("doc count: %w", err)
	}

	uniqueSources, err := w.MetricRepo.UniqueSourceCount(ctx, runID, clusterID, ts)
	if err != nil {
		return nil, fmt.Errorf("unique sources: %w", err)
	}

	velocityCount, err := w.MetricRepo.DocCountSince(ctx, runID, clusterID, ts.Add(-velocityWindow), ts)
	if err != nil {
		return nil, fmt.Errorf("velocity: %w", err)
	}
	velocity := float64(velocityCount)

	var novelty float64
	if docCount > 0 {
		noveltyCount, err := w.MetricRepo.DocCountSince(ctx, runID, clusterID, ts.Add(-noveltyWindow), ts)
		if err != nil {
			return nil, fmt.Errorf("novelty: %w", err)
		}
		novelty = float64(noveltyCount) / float64(docCount)
	}

	acceleration, err := w.acceleration(ctx, runID, clusterID, ts, velocity)
	if err != nil {
		return nil, fmt.Errorf("acceleration: %w", err)
	}

	return &entity.TrendMetric{
		TS:            ts,
		ClusterID:     clusterID,
		RunID:         runID,
		DocCount:      docCount,
		UniqueSources: uniqueSources,
		Velocity:      velocity,
		Acceleration:  acceleration,
		Novelty:       novelty,
	}, nil
}

// acceleration compares velocity against the most recent prior measurement
// within accelerationWindow, returning 0 if none exists.
func (w *Worker) acceleration(ctx context.Context, runID, clusterID int64, ts time.Time, velocity float64) (float64, error) {
	previous, err := w.MetricRepo.Previous(ctx, runID, clusterID, ts.Add(-accelerationWindow), ts)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	deltaHours := ts.Sub(previous.TS).Hours()
	if deltaHours <= 0 {
		return 0, nil
	}
	return (velocity - previous.Velocity) / deltaHours, nil
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
