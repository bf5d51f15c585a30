// Package anomaly implements the Event Detector: it scans the most recent
// TrendMetric per cluster, flags anomalous growth, and emits Events subject
// to a per-cluster cooldown.
package anomaly

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

// Window bounds how recent a TrendMetric must be to still be considered.
const Window = 1 * time.Hour

// Publisher broadcasts a detected Event; implemented by *broadcaster.Broadcaster.
type Publisher interface {
	Publish(ctx context.Context, event *entity.Event) error
}

// Detector runs one sweep over the latest metrics for a run.
type Detector struct {
	MetricRepo repository.TrendMetricRepository
	EventRepo  repository.EventRepository
	Publisher  Publisher

	// Now is overridable for tests; defaults to time.Now when nil.
	Now func() time.Time
}

// Stats summarises one sweep.
type Stats struct {
	Considered int
	Emitted    int
}

// Sweep loads the latest TrendMetric per cluster within Window under runID
// and emits an Event for every cluster that clears the anomaly threshold and
// isn't in cooldown.
func (d *Detector) Sweep(ctx context.Context, runID int64) (*Stats, error) {
	now := d.now()

	metrics, err := d.MetricRepo.Latest(ctx, runID, now.Add(-Window))
	if err != nil {
		return nil, fmt.Errorf("anomaly: load latest metrics: %w", err)
	}

	stats := &Stats{Considered: len(metrics)}
	for _, m := range metrics {
		emitted, err := d.evaluate(ctx, m)
		if err != nil {
			slog.WarnContext(ctx, "failed to evaluate cluster for anomaly",
				slog.Int64("cluster_id", m.ClusterID), slog.Any("error", err))
			continue
		}
		if emitted {
			stats.Emitted++
		}
	}

	slog.InfoContext(ctx, "anomaly sweep completed",
		slog.Int64("run_id", runID),
		slog.Int("considered", stats.Considered),
		slog.Int("emitted", stats.Emitted))
	return stats, nil
}

// evaluate applies the suppression rule, anomaly test, and cooldown to a
// single cluster's latest metric, emitting and publishing an Event when all
// three clear.
func (d *Detector) evaluate(ctx context.Context, m *entity.TrendMetric) (bool, error) {
	if m.DocCount < entity.MinDocCountForAnomaly {
		return false, nil
	}
	if !entity.IsAnomaly(m.DocCount, m.Velocity, m.Acceleration) {
		return false, nil
	}

	onCooldown, err := d.EventRepo.ExistsSince(ctx, m.ClusterID, d.now().Add(-entity.EventCooldown))
	if err != nil {
		return false, fmt.Errorf("cooldown check: %w", err)
	}
	if onCooldown {
		return false, nil
	}

	windowStart := m.TS.Add(-Window)
	event := &entity.Event{
		RunID:       m.RunID,
		ClusterID:   m.ClusterID,
		DetectedAt:  m.TS,
		Score:       entity.Score(m.Velocity, m.Acceleration),
		Severity:    entity.SeverityFor(m.Velocity),
		Label:       fmt.Sprintf("Trending: %.0f articles/h", m.Velocity),
		WindowStart: &windowStart,
		WindowEnd:   &m.TS,
	}

	id, err := d.EventRepo.Insert(ctx, event)
	if err != nil {
		return false, fmt.Errorf("persist event: %w", err)
	}
	event.ID = id

	if err := d.Publisher.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish detected event",
			slog.Int64("event_id", event.ID), slog.Any("error", err))
	}

	return true, nil
}

func (d *Detector) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
