package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendpulse/internal/domain/entity"
	pg "trendpulse/internal/infra/adapter/persistence/postgres"
)

func TestTrendMetricRepo_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ts := time.Now()
	metric := &entity.TrendMetric{TS: ts, ClusterID: 3, RunID: 7, DocCount: 10, UniqueSources: 4, Velocity: 5.5, Acceleration: 1.2, Novelty: 0.3}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trend_metrics")).
		WithArgs(ts, int64(3), int64(7), 10, 4, 5.5, 1.2, 0.3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := pg.NewTrendMetricRepo(db)
	err = repo.Insert(context.Background(), metric)
	require.NoError(t, err)
}

func TestTrendMetricRepo_Previous_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT ts, cluster_id, run_id, doc_count")).
		WithArgs(int64(7), int64(3), now.Add(-2*time.Hour), now).
		WillReturnRows(sqlmock.NewRows([]string{"ts", "cluster_id", "run_id", "doc_count", "unique_sources", "velocity", "acceleration", "novelty"}))

	repo := pg.NewTrendMetricRepo(db)
	got, err := repo.Previous(context.Background(), 7, 3, now.Add(-2*time.Hour), now)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	assert.Nil(t, got)
}

func TestTrendMetricRepo_Latest(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	since := time.Now().Add(-1 * time.Hour)
	now := time.Now()
	mock.ExpectQuery(`FROM trend_metrics`).
		WithArgs(int64(7), since).
		WillReturnRows(sqlmock.NewRows([]string{"ts", "cluster_id", "run_id", "doc_count", "unique_sources", "velocity", "acceleration", "novelty"}).
			AddRow(now, 1, 7, 5, 2, 3.0, 0.5, 0.1).
			AddRow(now, 2, 7, 8, 3, 6.0, 1.0, 0.2))

	repo := pg.NewTrendMetricRepo(db)
	got, err := repo.Latest(context.Background(), 7, since)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestTrendMetricRepo_DocCountSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	since := time.Now().Add(-2 * time.Hour)
	ts := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT a.id)")).
		WithArgs(int64(7), int64(3), since, ts).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(14))

	repo := pg.NewTrendMetricRepo(db)
	count, err := repo.DocCountSince(context.Background(), 7, 3, since, ts)
	require.NoError(t, err)
	assert.Equal(t, 14, count)
}

func TestTrendMetricRepo_UniqueSourceCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	ts := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT a.source_id)")).
		WithArgs(int64(7), int64(3), ts).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	repo := pg.NewTrendMetricRepo(db)
	count, err := repo.UniqueSourceCount(context.Background(), 7, 3, ts)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}
