package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/domain/fingerprint"
	"trendpulse/internal/infra/queue"
	"trendpulse/internal/repository"
)

// FetchTimeout bounds the HTTP GET for one article page.
const FetchTimeout = 15 * time.Second

// Enqueuer submits follow-up jobs; implemented by *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// DownstreamTTL bounds how long the embed-and-cluster and search-index jobs
// fanned out after a successful insert may sit queued before being dropped.
const DownstreamTTL = 10 * time.Minute

// Processor implements the Article Processor: given (url, source_id) it
// fetches and extracts the page, fingerprints it, inserts it, and on a
// fresh (non-duplicate) insert fans out the embed-and-cluster job.
//
// The search-index job named alongside embed-and-cluster in the job chain
// is enqueued but intentionally has no consumer in this module: full-text
// search indexing is a separate sink, out of scope here.
type Processor struct {
	Extractor   Extractor
	ArticleRepo repository.ArticleRepository
	Queue       Enqueuer
}

// Process runs the full pipeline for one (url, sourceID) job. A duplicate
// insert is not an error: it is reported via the returned Outcome.
func (p *Processor) Process(ctx context.Context, url string, sourceID int64) (*Outcome, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	extraction, err := p.Extractor.Extract(fetchCtx, url)
	if err != nil {
		return nil, fmt.Errorf("article: extract %s: %w", url, err)
	}
	if extraction.Text == "" {
		return nil, ErrEmptyText
	}

	publishedAt := firstNonNil(extraction.PublishedAt, extraction.ModifiedAt)

	canonical := extraction.CanonicalURL
	if canonical == "" {
		canonical = url
	}

	art := &entity.Article{
		SourceID:     sourceID,
		URL:          url,
		URLCanonical: canonical,
		Title:        extraction.Title,
		Author:       extraction.Author,
		Lang:         extraction.Lang,
		PublishedAt:  publishedAt,
		TextContent:  extraction.Text,
		Hash64:       fingerprint.ContentHash(extraction.Text),
		Simhash64:    fingerprint.Simhash64(extraction.Text),
		CreatedAt:    time.Now(),
	}

	result, err := p.ArticleRepo.InsertArticle(ctx, art)
	if err != nil {
		return nil, fmt.Errorf("article: insert: %w", err)
	}

	outcome := &Outcome{ArticleID: result.ArticleID, DuplicateOf: result.DuplicateOf}
	if result.DuplicateOf != nil {
		slog.InfoContext(ctx, "article is a duplicate, skipping fan-out",
			slog.String("url", url),
			slog.Int64("duplicate_of", *result.DuplicateOf),
			slog.String("kind", string(result.Kind)))
		return outcome, nil
	}

	embedJob, err := queue.NewJob(
		fmt.Sprintf("embed-%d", result.ArticleID),
		queue.JobEmbedCluster,
		queue.EmbedClusterPayload{ArticleID: result.ArticleID},
		DownstreamTTL,
	)
	if err != nil {
		return outcome, fmt.Errorf("article: build embed job: %w", err)
	}
	if err := p.Queue.Enqueue(ctx, embedJob); err != nil {
		// Per-job side effects are at-most-once: a successful insert with a
		// failed fan-out is an out-of-band reconciliation concern, not a
		// reason to fail this job.
		slog.WarnContext(ctx, "failed to enqueue embed-and-cluster job",
			slog.Int64("article_id", result.ArticleID), slog.Any("error", err))
	}

	searchJob, err := queue.NewJob(
		fmt.Sprintf("search-%d", result.ArticleID),
		queue.JobSearchIndex,
		queue.SearchIndexPayload{ArticleID: result.ArticleID},
		DownstreamTTL,
	)
	if err == nil {
		if err := p.Queue.Enqueue(ctx, searchJob); err != nil {
			slog.WarnContext(ctx, "failed to enqueue search-index job",
				slog.Int64("article_id", result.ArticleID), slog.Any("error", err))
		}
	}

	return outcome, nil
}

// Outcome summarises what Process did with one job.
type Outcome struct {
	ArticleID   int64
	DuplicateOf *int64
}

func firstNonNil(candidates ...*time.Time) *time.Time {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
