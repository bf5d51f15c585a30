package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/infra/queue"
	"trendpulse/internal/usecase/ingest"
)

type fakeSourceRepo struct {
	active      []*entity.Source
	activeErr   error
	bySourceID  map[int64]*entity.Source
	touched     map[int64]time.Time
	errorRates  map[int64]float64
	touchErr    error
	recordErr   error
}

func (f *fakeSourceRepo) Get(_ context.Context, id int64) (*entity.Source, error) {
	src, ok := f.bySourceID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return src, nil
}
func (f *fakeSourceRepo) List(_ context.Context) ([]*entity.Source, error) { return f.active, nil }
func (f *fakeSourceRepo) ListActive(_ context.Context) ([]*entity.Source, error) {
	return f.active, f.activeErr
}
func (f *fakeSourceRepo) Create(_ context.Context, _ *entity.Source) error { return nil }
func (f *fakeSourceRepo) Update(_ context.Context, _ *entity.Source) error { return nil }
func (f *fakeSourceRepo) Delete(_ context.Context, _ int64) error          { return nil }
func (f *fakeSourceRepo) TouchFetchedAt(_ context.Context, id int64, t time.Time) error {
	if f.touched == nil {
		f.touched = map[int64]time.Time{}
	}
	f.touched[id] = t
	return f.touchErr
}
func (f *fakeSourceRepo) RecordFetchError(_ context.Context, id int64, rate float64) error {
	if f.errorRates == nil {
		f.errorRates = map[int64]float64{}
	}
	f.errorRates[id] = rate
	return f.recordErr
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, job queue.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return f.err
}

func TestDispatcher_Tick_EnqueuesOneJobPerActiveSource(t *testing.T) {
	repo := &fakeSourceRepo{active: []*entity.Source{
		{ID: 1, URL: "https://a.example/feed"},
		{ID: 2, URL: "https://b.example/feed"},
	}}
	q := &fakeQueue{}

	d := &ingest.Dispatcher{SourceRepo: repo, Queue: q}
	stats, err := d.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 2, stats.Enqueued)
	assert.Equal(t, 0, stats.Failed)
	require.Len(t, q.jobs, 2)
	assert.Equal(t, queue.JobFetchSource, q.jobs[0].Type)
}

func TestDispatcher_Tick_ListFailure(t *testing.T) {
	repo := &fakeSourceRepo{activeErr: errors.New("db down")}
	q := &fakeQueue{}

	d := &ingest.Dispatcher{SourceRepo: repo, Queue: q}
	_, err := d.Tick(context.Background())
	require.Error(t, err)
}

func TestDispatcher_Tick_EnqueueFailureIsCountedNotFatal(t *testing.T) {
	repo := &fakeSourceRepo{active: []*entity.Source{
		{ID: 1, URL: "https://a.example/feed"},
		{ID: 2, URL: "https://b.example/feed"},
	}}
	q := &fakeQueue{err: errors.New("redis unreachable")}

	d := &ingest.Dispatcher{SourceRepo: repo, Queue: q}
	stats, err := d.Tick(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Sources)
	assert.Equal(t, 0, stats.Enqueued)
	assert.Equal(t, 2, stats.Failed)
}
