package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trendpulse/internal/infra/queue"
	"trendpulse/internal/repository"
)

// FeedTimeout bounds the connect+read deadline for one feed download.
const FeedTimeout = 10 * time.Second

// errorRateDecay is the exponential-moving-average weight given to each new
// fetch outcome when nudging a source's rolling error_rate.
const errorRateDecay = 0.2

// FeedItem is one entry parsed out of a source's feed.
type FeedItem struct {
	Title       string
	URL         string
	PublishedAt time.Time
}

// FeedFetcher downloads and parses a source's feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]FeedItem, error)
}

// FetchWorker consumes fetch_source jobs: it downloads one source's feed and
// fans out a process_article job per entry with a non-empty link.
type FetchWorker struct {
	SourceRepo  repository.SourceRepository
	FeedFetcher FeedFetcher
	Queue       Enqueuer
	ArticleTTL  time.Duration
}

// Stats summarises one fetch job.
type Stats struct {
	Items    int
	Enqueued int
}

// ProcessFetchJob downloads and parses the feed for sourceID, enqueuing one
// process_article job per entry. A feed download or parse failure is
// recorded against the source's error_rate and the job ends without error:
// per the ingest job model, a failed fetch is dropped and simply retried by
// the next periodic tick rather than requeued for immediate retry.
func (w *FetchWorker) ProcessFetchJob(ctx context.Context, sourceID int64) (*Stats, error) {
	src, err := w.SourceRepo.Get(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("ingest: get source %d: %w", sourceID, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, FeedTimeout)
	defer cancel()

	items, err := w.FeedFetcher.Fetch(fetchCtx, src.URL)
	if err != nil {
		slog.WarnContext(ctx, "feed fetch failed, dropping job",
			slog.Int64("source_id", sourceID), slog.String("url", src.URL), slog.Any("error", err))
		w.nudgeErrorRate(ctx, src.ID, src.ErrorRate, true)
		return &Stats{}, nil
	}

	w.nudgeErrorRate(ctx, src.ID, src.ErrorRate, false)
	if err := w.SourceRepo.TouchFetchedAt(ctx, src.ID, time.Now()); err != nil {
		slog.WarnContext(ctx, "failed to touch source fetched_at",
			slog.Int64("source_id", sourceID), slog.Any("error", err))
	}

	stats := &Stats{Items: len(items)}
	ttl := w.ArticleTTL
	if ttl <= 0 {
		ttl = FetchTTL
	}

	for _, item := range items {
		if item.URL == "" {
			continue
		}
		job, err := queue.NewJob(
			fmt.Sprintf("process-%d-%s", sourceID, item.URL),
			queue.JobProcessArticle,
			queue.ProcessArticlePayload{URL: item.URL, SourceID: sourceID},
			ttl,
		)
		if err != nil {
			continue
		}
		if err := w.Queue.Enqueue(ctx, job); err != nil {
			slog.WarnContext(ctx, "failed to enqueue process_article job",
				slog.String("url", item.URL), slog.Any("error", err))
			continue
		}
		stats.Enqueued++
	}

	return stats, nil
}

// nudgeErrorRate applies one exponential-moving-average step to a source's
// error_rate: failed pushes it toward 1.0, succeeded pushes it toward 0.0.
func (w *FetchWorker) nudgeErrorRate(ctx context.Context, sourceID int64, current float64, failed bool) {
	signal := 0.0
	if failed {
		signal = 1.0
	}
	newRate := current*(1-errorRateDecay) + signal*errorRateDecay
	if err := w.SourceRepo.RecordFetchError(ctx, sourceID, newRate); err != nil {
		slog.WarnContext(ctx, "failed to record source error_rate",
			slog.Int64("source_id", sourceID), slog.Any("error", err))
	}
}
