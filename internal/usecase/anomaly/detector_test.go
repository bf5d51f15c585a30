package anomaly_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/usecase/anomaly"
)

type fakeMetricRepo struct {
	latest []*entity.TrendMetric
	err    error
}

func (f *fakeMetricRepo) Insert(_ context.Context, _ *entity.TrendMetric) error { return nil }
func (f *fakeMetricRepo) Previous(_ context.Context, _, _ int64, _, _ time.Time) (*entity.TrendMetric, error) {
	return nil, entity.ErrNotFound
}
func (f *fakeMetricRepo) Latest(_ context.Context, _ int64, _ time.Time) ([]*entity.TrendMetric, error) {
	return f.latest, f.err
}
func (f *fakeMetricRepo) DocCountSince(_ context.Context, _, _ int64, _, _ time.Time) (int, error) {
	return 0, nil
}
func (f *fakeMetricRepo) UniqueSourceCount(_ context.Context, _, _ int64, _ time.Time) (int, error) {
	return 0, nil
}

type fakeEventRepo struct {
	onCooldown map[int64]bool
	inserted   []*entity.Event
	nextID     int64
}

func (f *fakeEventRepo) Insert(_ context.Context, e *entity.Event) (int64, error) {
	f.nextID++
	f.inserted = append(f.inserted, e)
	return f.nextID, nil
}
func (f *fakeEventRepo) ExistsSince(_ context.Context, clusterID int64, _ time.Time) (bool, error) {
	return f.onCooldown[clusterID], nil
}

type fakePublisher struct {
	published []*entity.Event
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, e *entity.Event) error {
	f.published = append(f.published, e)
	return f.err
}

func TestDetector_Sweep_EmitsForAnomalousCluster(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	metrics := &fakeMetricRepo{latest: []*entity.TrendMetric{
		{ClusterID: 1, RunID: 10, TS: now, DocCount: 5, Velocity: 8.0, Acceleration: 1.0},
	}}
	events := &fakeEventRepo{}
	pub := &fakePublisher{}

	d := &anomaly.Detector{MetricRepo: metrics, EventRepo: events, Publisher: pub, Now: func() time.Time { return now }}
	stats, err := d.Sweep(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Considered)
	assert.Equal(t, 1, stats.Emitted)
	require.Len(t, events.inserted, 1)
	assert.Equal(t, entity.SeverityMedium, events.inserted[0].Severity)
	assert.Equal(t, "Trending: 8 articles/h", events.inserted[0].Label)
	require.Len(t, pub.published, 1)
}

func TestDetector_Sweep_SuppressesLowDocCount(t *testing.T) {
	metrics := &fakeMetricRepo{latest: []*entity.TrendMetric{
		{ClusterID: 1, RunID: 10, DocCount: 2, Velocity: 50.0},
	}}
	events := &fakeEventRepo{}
	pub := &fakePublisher{}

	d := &anomaly.Detector{MetricRepo: metrics, EventRepo: events, Publisher: pub}
	stats, err := d.Sweep(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Emitted)
	assert.Empty(t, events.inserted)
}

func TestDetector_Sweep_NotAnomalousBelowThresholds(t *testing.T) {
	metrics := &fakeMetricRepo{latest: []*entity.TrendMetric{
		{ClusterID: 1, RunID: 10, DocCount: 5, Velocity: 1.0, Acceleration: 0.1},
	}}
	events := &fakeEventRepo{}
	pub := &fakePublisher{}

	d := &anomaly.Detector{MetricRepo: metrics, EventRepo: events, Publisher: pub}
	stats, err := d.Sweep(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Emitted)
}

func TestDetector_Sweep_CooldownSuppressesDuplicate(t *testing.T) {
	metrics := &fakeMetricRepo{latest: []*entity.TrendMetric{
		{ClusterID: 1, RunID: 10, DocCount: 5, Velocity: 8.0},
	}}
	events := &fakeEventRepo{onCooldown: map[int64]bool{1: true}}
	pub := &fakePublisher{}

	d := &anomaly.Detector{MetricRepo: metrics, EventRepo: events, Publisher: pub}
	stats, err := d.Sweep(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Emitted)
	assert.Empty(t, events.inserted)
}

func TestDetector_Sweep_SeverityTiers(t *testing.T) {
	cases := []struct {
		velocity float64
		want     entity.Severity
	}{
		{35, entity.SeverityCritical},
		{20, entity.SeverityHigh},
		{10, entity.SeverityMedium},
		{3.5, entity.SeverityLow},
	}
	for _, tc := range cases {
		metrics := &fakeMetricRepo{latest: []*entity.TrendMetric{
			{ClusterID: 1, RunID: 10, DocCount: 5, Velocity: tc.velocity},
		}}
		events := &fakeEventRepo{}
		pub := &fakePublisher{}

		d := &anomaly.Detector{MetricRepo: metrics, EventRepo: events, Publisher: pub}
		_, err := d.Sweep(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, events.inserted, 1)
		assert.Equal(t, tc.want, events.inserted[0].Severity)
	}
}

func TestDetector_Sweep_PublishFailureDoesNotFailSweep(t *testing.T) {
	metrics := &fakeMetricRepo{latest: []*entity.TrendMetric{
		{ClusterID: 1, RunID: 10, DocCount: 5, Velocity: 8.0},
	}}
	events := &fakeEventRepo{}
	pub := &fakePublisher{err: errors.New("redis unreachable")}

	d := &anomaly.Detector{MetricRepo: metrics, EventRepo: events, Publisher: pub}
	stats, err := d.Sweep(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Emitted)
}

func TestDetector_Sweep_MetricLoadFailurePropagates(t *testing.T) {
	metrics := &fakeMetricRepo{err: errors.New("db down")}
	d := &anomaly.Detector{MetricRepo: metrics, EventRepo: &fakeEventRepo{}, Publisher: &fakePublisher{}}

	_, err := d.Sweep(context.Background(), 10)
	require.Error(t, err)
}
