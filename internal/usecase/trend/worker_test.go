package trend_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/usecase/trend"
)

type fakeRunRepo struct {
	run *entity.ClusterRun
}

func (f *fakeRunRepo) ActiveRun(_ context.Context, _ int64) (*entity.ClusterRun, error) {
	if f.run == nil {
		return nil, entity.ErrNotFound
	}
	return f.run, nil
}
func (f *fakeRunRepo) Create(_ context.Context, _ *entity.ClusterRun) (int64, error) { return 0, nil }
func (f *fakeRunRepo) Activate(_ context.Context, _ int64) error                     { return nil }
func (f *fakeRunRepo) Finish(_ context.Context, _ int64, _ entity.ClusterRunStatus, _ time.Time) error {
	return nil
}

type fakeClusterRepo struct {
	active      []*entity.Cluster
	memberCount map[int64]int
}

func (f *fakeClusterRepo) Create(_ context.Context, _ *entity.Cluster) (int64, error) { return 0, nil }
func (f *fakeClusterRepo) Get(_ context.Context, _ int64) (*entity.Cluster, error)     { return nil, entity.ErrNotFound }
func (f *fakeClusterRepo) ListActive(_ context.Context, _ int64, _ time.Time) ([]*entity.Cluster, error) {
	return f.active, nil
}
func (f *fakeClusterRepo) Assign(_ context.Context, _ *entity.ArticleCluster) error { return nil }
func (f *fakeClusterRepo) ClusterOf(_ context.Context, _, _ int64) (int64, error) {
	return 0, entity.ErrNotFound
}
func (f *fakeClusterRepo) MemberCount(_ context.Context, _, clusterID int64) (int, error) {
	return f.memberCount[clusterID], nil
}

type fakeMetricRepo struct {
	inserted      []*entity.TrendMetric
	docCountSince map[string]int
	uniqueSources map[int64]int
	previous      map[int64]*entity.TrendMetric
}

func (f *fakeMetricRepo) Insert(_ context.Context, m *entity.TrendMetric) error {
	f.inserted = append(f.inserted, m)
	return nil
}

func (f *fakeMetricRepo) Previous(_ context.Context, _, clusterID int64, _, _ time.Time) (*entity.TrendMetric, error) {
	p, ok := f.previous[clusterID]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return p, nil
}

func (f *fakeMetricRepo) Latest(_ context.Context, _ int64, _ time.Time) ([]*entity.TrendMetric, error) {
	return nil, nil
}

func (f *fakeMetricRepo) DocCountSince(_ context.Context, _, clusterID int64, since, ts time.Time) (int, error) {
	// Distinguish velocity (1h) vs novelty (6h) windows by their width.
	width := ts.Sub(since)
	if width <= time.Hour {
		return f.docCountSince["velocity:"+itoa(clusterID)], nil
	}
	return f.docCountSince["novelty:"+itoa(clusterID)], nil
}

func (f *fakeMetricRepo) UniqueSourceCount(_ context.Context, _, clusterID int64, _ time.Time) (int, error) {
	return f.uniqueSources[clusterID], nil
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func TestWorker_Tick_NoActiveRunReturnsEmptyStats(t *testing.T) {
	w := &trend.Worker{
		ClusterRunRepo: &fakeRunRepo{},
		ClusterRepo:    &fakeClusterRepo{},
		MetricRepo:     &fakeMetricRepo{},
	}

	stats, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Clusters)
	assert.Empty(t, stats.Metrics)
}

func TestWorker_Tick_ComputesMetricsPerCluster(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cluster := &entity.Cluster{ID: 1, RunID: 10, CreatedAt: now.Add(-time.Hour)}

	w := &trend.Worker{
		ClusterRunRepo: &fakeRunRepo{run: &entity.ClusterRun{ID: 10, SpaceID: 1}},
		ClusterRepo: &fakeClusterRepo{
			active:      []*entity.Cluster{cluster},
			memberCount: map[int64]int{1: 5},
		},
		MetricRepo: &fakeMetricRepo{
			docCountSince: map[string]int{"velocity:1": 4, "novelty:1": 5},
			uniqueSources: map[int64]int{1: 3},
		},
		SpaceID: 1,
		Now:     func() time.Time { return now },
	}

	stats, err := w.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Clusters)
	require.Len(t, stats.Metrics, 1)

	m := stats.Metrics[0]
	assert.Equal(t, int64(1), m.ClusterID)
	assert.Equal(t, int64(10), m.RunID)
	assert.Equal(t, 5, m.DocCount)
	assert.Equal(t, 3, m.UniqueSources)
	assert.Equal(t, 4.0, m.Velocity)
	assert.InDelta(t, 1.0, m.Novelty, 1e-9)
	assert.Equal(t, 0.0, m.Acceleration, "no previous measurement means zero acceleration")
}

func TestWorker_Tick_ComputesAccelerationAgainstPrevious(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cluster := &entity.Cluster{ID: 2, RunID: 10, CreatedAt: now.Add(-2 * time.Hour)}

	w := &trend.Worker{
		ClusterRunRepo: &fakeRunRepo{run: &entity.ClusterRun{ID: 10, SpaceID: 1}},
		ClusterRepo: &fakeClusterRepo{
			active:      []*entity.Cluster{cluster},
			memberCount: map[int64]int{2: 10},
		},
		MetricRepo: &fakeMetricRepo{
			docCountSince: map[string]int{"velocity:2": 8, "novelty:2": 10},
			uniqueSources: map[int64]int{2: 4},
			previous: map[int64]*entity.TrendMetric{
				2: {TS: now.Add(-1 * time.Hour), ClusterID: 2, RunID: 10, Velocity: 4},
			},
		},
		SpaceID: 1,
		Now:     func() time.Time { return now },
	}

	stats, err := w.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.Metrics, 1)
	assert.InDelta(t, 4.0, stats.Metrics[0].Acceleration, 1e-9, "(8-4)/1h = 4")
}

func TestWorker_Tick_ZeroDocCountGivesZeroNovelty(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cluster := &entity.Cluster{ID: 3, RunID: 10, CreatedAt: now}

	w := &trend.Worker{
		ClusterRunRepo: &fakeRunRepo{run: &entity.ClusterRun{ID: 10, SpaceID: 1}},
		ClusterRepo: &fakeClusterRepo{
			active:      []*entity.Cluster{cluster},
			memberCount: map[int64]int{3: 0},
		},
		MetricRepo: &fakeMetricRepo{},
		SpaceID:    1,
		Now:        func() time.Time { return now },
	}

	stats, err := w.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, stats.Metrics, 1)
	assert.Equal(t, 0.0, stats.Metrics[0].Novelty)
}
