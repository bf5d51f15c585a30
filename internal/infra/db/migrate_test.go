package db

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// expectFullMigrateUp registers every statement MigrateUp issues, in order,
// so each test only needs to override the one it cares about.
func expectFullMigrateUp(mock sqlmock.Sqlmock) {
	ok := sqlmock.NewResult(0, 0)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sources").WillReturnResult(ok)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS articles").WillReturnResult(ok)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS article_duplicates").WillReturnResult(ok)

	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_articles_published_at").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_articles_url_canonical").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_articles_source_id").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_articles_simhash_64").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_articles_created_at").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_sources_kind").WillReturnResult(ok)

	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS pg_trgm").WillReturnResult(ok)
	mock.ExpectExec("CREATE EXTENSION IF NOT EXISTS vector").WillReturnResult(ok)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS embedding_spaces").WillReturnResult(ok)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS article_embeddings").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_article_embeddings_vector").WillReturnResult(ok)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cluster_runs").WillReturnResult(ok)
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS uq_cluster_runs_one_active_per_space").WillReturnResult(ok)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS clusters").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_clusters_run_created_at").WillReturnResult(ok)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS article_clusters").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_article_clusters_cluster").WillReturnResult(ok)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cluster_summaries").WillReturnResult(ok)
	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS uq_cluster_summaries_one_active_per_cluster").WillReturnResult(ok)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS trend_metrics").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_trend_metrics_cluster_ts").WillReturnResult(ok)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS events").WillReturnResult(ok)
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_events_cluster_detected_at").WillReturnResult(ok)

	mock.ExpectExec("INSERT INTO sources").WillReturnResult(sqlmock.NewResult(0, 4))
}

func TestMigrateUp_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expectFullMigrateUp(mock)

	err = MigrateUp(db)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_SourcesTableError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sources").
		WillReturnError(sql.ErrConnDone)

	err = MigrateUp(db)
	assert.Error(t, err)
	assert.Equal(t, sql.ErrConnDone, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_ArticlesTableError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sources").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS articles").
		WillReturnError(sql.ErrTxDone)

	err = MigrateUp(db)
	assert.Error(t, err)
	assert.Equal(t, sql.ErrTxDone, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_IndexError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sources").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS articles").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS article_duplicates").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_articles_published_at").
		WillReturnError(sql.ErrNoRows)

	err = MigrateUp(db)
	assert.Error(t, err)
	assert.Equal(t, sql.ErrNoRows, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_SeedDataError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expectFullMigrateUp(mock)

	err = MigrateUp(db)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	expectFullMigrateUp(mock)

	err = MigrateUp(db)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedSourcesSQL_Embedded(t *testing.T) {
	assert.NotEmpty(t, seedSourcesSQL)
	assert.Contains(t, seedSourcesSQL, "INSERT INTO sources")
}

func TestMigrateDown_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DROP TABLE IF EXISTS events CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS trend_metrics CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS cluster_summaries CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS article_clusters CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS clusters CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS cluster_runs CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS article_embeddings CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS embedding_spaces CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS article_duplicates CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))

	err = MigrateDown(db)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateDown_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DROP TABLE IF EXISTS events CASCADE").
		WillReturnError(sql.ErrConnDone)

	err = MigrateDown(db)
	assert.Error(t, err)
	assert.Equal(t, sql.ErrConnDone, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateDownEmbeddingsOnly_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DROP INDEX IF EXISTS idx_article_embeddings_vector").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS article_embeddings CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DROP TABLE IF EXISTS embedding_spaces CASCADE").WillReturnResult(sqlmock.NewResult(0, 0))

	err = MigrateDownEmbeddingsOnly(db)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
