// Package embed implements the Embed-and-Cluster Worker: given an article_id
// it resolves or computes the article's embedding, then runs online
// single-pass incremental clustering against a windowed kNN search, and
// best-effort triggers cluster summarisation once a cluster is large enough.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/infra/queue"
	"trendpulse/internal/repository"
)

const (
	// SpaceName is the default EmbeddingSpace name lazily created by this
	// worker if it doesn't already exist.
	SpaceName = "mistral-embed"

	// DefaultThreshold is used when a run's params carry no "threshold" key.
	DefaultThreshold = 0.80

	// AssignmentWindow bounds the kNN candidate set to recently created
	// articles, enforcing temporal locality of topics.
	AssignmentWindow = 48 * time.Hour

	// KNN is the neighbour count requested per assignment attempt.
	KNN = 5

	// InputCharLimit bounds how much of an article's text is fed to the
	// embedder, after the title.
	InputCharLimit = 2000

	// MinMembersForSummary is the member count a cluster must reach before
	// a summarisation job is triggered.
	MinMembersForSummary = 3
)

var (
	// ErrEmptyArticle is returned when the article has no usable text to embed.
	ErrEmptyArticle = errors.New("embed: article text is empty")
)

// Enqueuer submits follow-up jobs; implemented by *queue.Queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// SummaryTTL bounds how long a triggered summarisation job may sit queued.
const SummaryTTL = 10 * time.Minute

// Worker implements the Embed-and-Cluster Worker.
type Worker struct {
	ArticleRepo       repository.ArticleRepository
	SpaceRepo         repository.EmbeddingSpaceRepository
	EmbeddingRepo     repository.ArticleEmbeddingRepository
	ClusterRunRepo    repository.ClusterRunRepository
	ClusterRepo       repository.ClusterRepository
	ClusterSummaryRepo repository.ClusterSummaryRepository
	Embedder          Embedder
	Queue             Enqueuer
}

// Outcome summarises what ProcessEmbedJob did with one article.
type Outcome struct {
	ArticleID int64
	ClusterID *int64
	Created   bool
	Similarity float64
}

// ProcessEmbedJob runs both worker phases for one article_id.
func (w *Worker) ProcessEmbedJob(ctx context.Context, articleID int64) (*Outcome, error) {
	art, err := w.ArticleRepo.Get(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("embed: get article %d: %w", articleID, err)
	}
	if strings.TrimSpace(art.TextContent) == "" {
		return nil, ErrEmptyArticle
	}

	space, err := w.SpaceRepo.GetOrCreate(ctx, SpaceName, "v1", w.Embedder.Name(), w.Embedder.Dims())
	if err != nil {
		return nil, fmt.Errorf("embed: resolve embedding space: %w", err)
	}

	vector, err := w.ensureEmbedding(ctx, space, art)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{ArticleID: articleID}

	run, err := w.ClusterRunRepo.ActiveRun(ctx, space.ID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			slog.InfoContext(ctx, "no active cluster run, skipping assignment",
				slog.Int64("article_id", articleID), slog.Int64("space_id", space.ID))
			return outcome, nil
		}
		return nil, fmt.Errorf("embed: load active run: %w", err)
	}

	threshold := thresholdFor(run)
	since := art.CreatedAt.Add(-AssignmentWindow)

	neighbors, err := w.EmbeddingRepo.KNN(ctx, space.ID, vector, since, articleID, KNN)
	if err != nil {
		return nil, fmt.Errorf("embed: knn search: %w", err)
	}

	clusterID, similarity, created, err := w.assign(ctx, run.ID, art, neighbors, threshold)
	if err != nil {
		return nil, fmt.Errorf("embed: assign cluster: %w", err)
	}

	outcome.ClusterID = &clusterID
	outcome.Created = created
	outcome.Similarity = similarity

	w.triggerSummaryIfReady(ctx, run.ID, clusterID)

	return outcome, nil
}

// ensureEmbedding returns the article's vector in the given space, computing
// and persisting it only if it doesn't already exist.
func (w *Worker) ensureEmbedding(ctx context.Context, space *entity.EmbeddingSpace, art *entity.Article) ([]float32, error) {
	existing, err := w.EmbeddingRepo.Get(ctx, space.ID, art.ID)
	if err == nil {
		return existing.Vector, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, fmt.Errorf("embed: load existing embedding: %w", err)
	}

	input := buildEmbeddingInput(art.Title, art.TextContent)
	if input == "" {
		return nil, ErrEmptyArticle
	}

	vector, err := w.Embedder.Embed(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("embed: embedder call: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("embed: embedder returned zero-length vector")
	}

	if len(vector) != space.Dims {
		// First-writer-wins drift tolerance: the registry dimension follows
		// whatever the embedder actually returned.
		updated, err := w.SpaceRepo.GetOrCreate(ctx, space.Name, space.Version, space.Provider, len(vector))
		if err != nil {
			return nil, fmt.Errorf("embed: update space dims: %w", err)
		}
		space.Dims = updated.Dims
	}

	embedding := &entity.ArticleEmbedding{
		SpaceID:   space.ID,
		ArticleID: art.ID,
		Vector:    vector,
		CreatedAt: time.Now(),
	}
	if err := w.EmbeddingRepo.Upsert(ctx, embedding); err != nil {
		return nil, fmt.Errorf("embed: persist embedding: %w", err)
	}

	return vector, nil
}

// assign implements Phase 2: first-fit threshold assignment against the
// windowed kNN result, falling back to a new singleton cluster.
func (w *Worker) assign(ctx context.Context, runID int64, art *entity.Article, neighbors []entity.Neighbor, threshold float64) (clusterID int64, similarity float64, created bool, err error) {
	for _, n := range neighbors {
		if n.Similarity < threshold {
			continue
		}
		if n.ClusterID == nil {
			continue
		}
		clusterID, similarity = *n.ClusterID, n.Similarity
		break
	}

	if clusterID == 0 {
		cluster := &entity.Cluster{
			RunID:       runID,
			WindowStart: &art.CreatedAt,
			WindowEnd:   &art.CreatedAt,
			CreatedAt:   art.CreatedAt,
		}
		newID, err := w.ClusterRepo.Create(ctx, cluster)
		if err != nil {
			return 0, 0, false, err
		}
		clusterID, similarity, created = newID, 1.0, true
	}

	sim := similarity
	assignment := &entity.ArticleCluster{
		RunID:      runID,
		ClusterID:  clusterID,
		ArticleID:  art.ID,
		Similarity: &sim,
	}
	if err := w.ClusterRepo.Assign(ctx, assignment); err != nil {
		return 0, 0, false, err
	}

	return clusterID, similarity, created, nil
}

// triggerSummaryIfReady submits a summarisation job once a cluster reaches
// MinMembersForSummary members and has no active summary, per Phase 3. It is
// best-effort: failures are logged, never propagated.
func (w *Worker) triggerSummaryIfReady(ctx context.Context, runID, clusterID int64) {
	count, err := w.ClusterRepo.MemberCount(ctx, runID, clusterID)
	if err != nil {
		slog.WarnContext(ctx, "failed to count cluster members",
			slog.Int64("cluster_id", clusterID), slog.Any("error", err))
		return
	}
	if count < MinMembersForSummary {
		return
	}

	_, err = w.ClusterSummaryRepo.ActiveSummary(ctx, clusterID)
	if err == nil {
		return
	}
	if !errors.Is(err, entity.ErrNotFound) {
		slog.WarnContext(ctx, "failed to check active summary",
			slog.Int64("cluster_id", clusterID), slog.Any("error", err))
		return
	}

	job, err := queue.NewJob(
		fmt.Sprintf("summarize-%d", clusterID),
		queue.JobSummarizeCluster,
		queue.SummarizeClusterPayload{ClusterID: clusterID},
		SummaryTTL,
	)
	if err != nil {
		return
	}
	if err := w.Queue.Enqueue(ctx, job); err != nil {
		slog.WarnContext(ctx, "failed to enqueue summarize job",
			slog.Int64("cluster_id", clusterID), slog.Any("error", err))
	}
}

// buildEmbeddingInput constructs the embedder input: title, a blank line,
// then the first InputCharLimit runes of the article text.
func buildEmbeddingInput(title, text string) string {
	title = strings.TrimSpace(title)
	text = strings.TrimSpace(text)
	if len(text) > InputCharLimit {
		runes := []rune(text)
		if len(runes) > InputCharLimit {
			text = string(runes[:InputCharLimit])
		}
	}
	if title == "" {
		return text
	}
	if text == "" {
		return title
	}
	return title + "\n\n" + text
}

// thresholdFor reads the similarity threshold out of a run's parameter map,
// falling back to DefaultThreshold when absent or the wrong type.
func thresholdFor(run *entity.ClusterRun) float64 {
	if run.Params == nil {
		return DefaultThreshold
	}
	if v, ok := run.Params["threshold"]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return DefaultThreshold
}
