package ingest_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/usecase/ingest"
)

type fakeFeedFetcher struct {
	items []ingest.FeedItem
	err   error
}

func (f *fakeFeedFetcher) Fetch(_ context.Context, _ string) ([]ingest.FeedItem, error) {
	return f.items, f.err
}

func TestFetchWorker_ProcessFetchJob_FansOutArticleJobs(t *testing.T) {
	repo := &fakeSourceRepo{
		bySourceID: map[int64]*entity.Source{
			5: {ID: 5, URL: "https://a.example/feed", ErrorRate: 0.3},
		},
	}
	fetcher := &fakeFeedFetcher{items: []ingest.FeedItem{
		{Title: "One", URL: "https://a.example/1", PublishedAt: time.Now()},
		{Title: "Two", URL: "https://a.example/2", PublishedAt: time.Now()},
		{Title: "Skip", URL: ""},
	}}
	q := &fakeQueue{}

	w := &ingest.FetchWorker{SourceRepo: repo, FeedFetcher: fetcher, Queue: q}
	stats, err := w.ProcessFetchJob(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Items)
	assert.Equal(t, 2, stats.Enqueued)
	require.Len(t, q.jobs, 2)

	// Error rate nudged toward 0 on success.
	assert.InDelta(t, 0.3*0.8, repo.errorRates[5], 1e-9)
	assert.NotZero(t, repo.touched[5])
}

func TestFetchWorker_ProcessFetchJob_FeedFailureDropsJobWithoutError(t *testing.T) {
	repo := &fakeSourceRepo{
		bySourceID: map[int64]*entity.Source{
			5: {ID: 5, URL: "https://a.example/feed", ErrorRate: 0.0},
		},
	}
	fetcher := &fakeFeedFetcher{err: errors.New("timeout")}
	q := &fakeQueue{}

	w := &ingest.FetchWorker{SourceRepo: repo, FeedFetcher: fetcher, Queue: q}
	stats, err := w.ProcessFetchJob(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Items)
	assert.Empty(t, q.jobs)
	assert.InDelta(t, 0.2, repo.errorRates[5], 1e-9)
}

func TestFetchWorker_ProcessFetchJob_UnknownSource(t *testing.T) {
	repo := &fakeSourceRepo{bySourceID: map[int64]*entity.Source{}}
	fetcher := &fakeFeedFetcher{}
	q := &fakeQueue{}

	w := &ingest.FetchWorker{SourceRepo: repo, FeedFetcher: fetcher, Queue: q}
	_, err := w.ProcessFetchJob(context.Background(), 99)
	require.Error(t, err)
}
