// Package summarize implements the Summariser Collaborator: it turns a
// cluster's articles into a markdown write-up and publishes it under the
// cluster's active-summary invariant.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

// ArticleExcerptLimit bounds how much of each article's text is fed into the
// summarisation prompt.
const ArticleExcerptLimit = 800

// MaxArticlesPerPrompt bounds how many of a cluster's most recent articles
// are included, keeping the prompt within a reasonable token budget.
const MaxArticlesPerPrompt = 20

// Summarizer turns prompt text into generated markdown. Implemented by
// internal/infra/summarizer's Claude, OpenAI, and NoOp types.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Worker publishes a new ClusterSummary version for one cluster per job.
type Worker struct {
	ClusterRepo repository.ClusterRepository
	ArticleRepo repository.ArticleRepository
	SummaryRepo repository.ClusterSummaryRepository
	Summarizer  Summarizer

	// Engine and EngineVersion are recorded on every published summary,
	// identifying which provider produced it.
	Engine        string
	EngineVersion string
	Lang          string

	// Now is overridable for tests; defaults to time.Now when nil.
	Now func() time.Time
}

// ProcessSummarizeJob generates and publishes a new summary version for
// clusterID. A failed Summarizer call leaves any existing active summary
// untouched and returns the error: nothing is published.
func (w *Worker) ProcessSummarizeJob(ctx context.Context, clusterID int64) (*entity.ClusterSummary, error) {
	cluster, err := w.ClusterRepo.Get(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("summarize: get cluster %d: %w", clusterID, err)
	}

	articles, err := w.ArticleRepo.ListByCluster(ctx, cluster.RunID, clusterID)
	if err != nil {
		return nil, fmt.Errorf("summarize: list cluster articles: %w", err)
	}
	if len(articles) == 0 {
		return nil, fmt.Errorf("summarize: cluster %d has no assigned articles", clusterID)
	}
	if len(articles) > MaxArticlesPerPrompt {
		articles = articles[:MaxArticlesPerPrompt]
	}

	summaryMD, err := w.Summarizer.Summarize(ctx, buildSummaryPrompt(articles))
	if err != nil {
		return nil, fmt.Errorf("summarize: generate summary: %w", err)
	}

	timelineMD, err := w.Summarizer.Summarize(ctx, buildTimelinePrompt(articles))
	if err != nil {
		return nil, fmt.Errorf("summarize: generate timeline: %w", err)
	}

	version, err := w.SummaryRepo.LatestVersion(ctx, clusterID)
	if err != nil {
		return nil, fmt.Errorf("summarize: resolve latest version: %w", err)
	}

	summary := &entity.ClusterSummary{
		ClusterID:        clusterID,
		RunID:            cluster.RunID,
		Version:          version + 1,
		SummarizerEngine: w.Engine,
		EngineVersion:    w.EngineVersion,
		Lang:             w.Lang,
		SummaryMD:        summaryMD,
		TimelineMD:       timelineMD,
		IsActive:         true,
		GenerationMetadata: map[string]any{
			"article_count": len(articles),
		},
		GeneratedAt: w.now(),
	}

	if err := w.SummaryRepo.Publish(ctx, summary); err != nil {
		return nil, fmt.Errorf("summarize: publish summary: %w", err)
	}

	return summary, nil
}

// buildSummaryPrompt asks for a narrative summary plus a brief note on
// differing coverage across sources, folded into the single SummaryMD
// section since no separate column exists for it.
func buildSummaryPrompt(articles []*entity.Article) string {
	var b strings.Builder
	b.WriteString("Summarize the following news coverage of one story in two short paragraphs: ")
	b.WriteString("the first describing what happened, the second noting any differences in ")
	b.WriteString("emphasis or framing across the sources below.\n\n")
	writeArticleList(&b, articles)
	return b.String()
}

// buildTimelinePrompt asks for a chronological bullet list of the cluster's
// coverage, most recent first.
func buildTimelinePrompt(articles []*entity.Article) string {
	var b strings.Builder
	b.WriteString("Produce a chronological bullet-point timeline, most recent first, of the ")
	b.WriteString("following articles covering one story. One bullet per article.\n\n")
	writeArticleList(&b, articles)
	return b.String()
}

func writeArticleList(b *strings.Builder, articles []*entity.Article) {
	for i, a := range articles {
		published := "unknown date"
		if a.PublishedAt != nil {
			published = a.PublishedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(b, "%d. [%s] %s\n", i+1, published, a.Title)
		fmt.Fprintln(b, excerpt(a.TextContent))
		b.WriteString("\n")
	}
}

func excerpt(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= ArticleExcerptLimit {
		return string(runes)
	}
	return string(runes[:ArticleExcerptLimit])
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
