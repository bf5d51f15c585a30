// Package ingest implements the Ingestion Dispatcher: a periodic tick that
// enumerates active Sources and submits one fetch job per source, and the
// per-source fetch worker that turns a feed into per-article jobs.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"trendpulse/internal/infra/queue"
	"trendpulse/internal/repository"
)

// Tick is how often the dispatcher runs, and FetchTTL bounds how long an
// enqueued fetch job may wait before being dropped, per the periodic
// schedule (ingest_all_sources: every 900s, TTL 600s).
const (
	Tick     = 15 * time.Minute
	FetchTTL = 10 * time.Minute
)

// DispatchParallelism bounds how many sources are enqueued concurrently in
// one tick.
const DispatchParallelism = 8

// Enqueuer submits jobs; implemented by *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Dispatcher runs one ingestion tick across all active sources.
type Dispatcher struct {
	SourceRepo repository.SourceRepository
	Queue      Enqueuer
}

// Stats summarises one tick.
type Stats struct {
	Sources  int
	Enqueued int
	Failed   int
}

// Tick enumerates active sources and submits one fetch job per source.
// A failure to enqueue one source's job is logged and counted, not fatal
// to the tick: the remaining sources still get a chance to run.
func (d *Dispatcher) Tick(ctx context.Context) (*Stats, error) {
	sources, err := d.SourceRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: list active sources: %w", err)
	}

	stats := &Stats{Sources: len(sources)}
	var enqueued, failed int64

	sem := make(chan struct{}, DispatchParallelism)
	eg, egCtx := errgroup.WithContext(ctx)

	for _, src := range sources {
		src := src
		eg.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			job, err := queue.NewJob(
				fmt.Sprintf("fetch-%d-%d", src.ID, time.Now().UnixNano()),
				queue.JobFetchSource,
				queue.FetchSourcePayload{SourceID: src.ID},
				FetchTTL,
			)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				return nil
			}
			if err := d.Queue.Enqueue(egCtx, job); err != nil {
				atomic.AddInt64(&failed, 1)
				slog.WarnContext(egCtx, "failed to enqueue fetch job",
					slog.Int64("source_id", src.ID), slog.Any("error", err))
				return nil
			}
			atomic.AddInt64(&enqueued, 1)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("ingest: dispatch sources: %w", err)
	}
	stats.Enqueued = int(enqueued)
	stats.Failed = int(failed)

	slog.InfoContext(ctx, "ingestion tick completed",
		slog.Int("sources", stats.Sources),
		slog.Int("enqueued", stats.Enqueued),
		slog.Int("failed", stats.Failed))
	return stats, nil
}
