package db

import (
	"database/sql"
	_ "embed"
)

//go:embed seeds/sources.sql
var seedSourcesSQL string

// MigrateUp creates the full schema: sources, articles, duplicate links,
// embedding spaces and vectors, clustering state, trend metrics, and events.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS sources (
    id             SERIAL PRIMARY KEY,
    name           TEXT NOT NULL,
    url            TEXT NOT NULL UNIQUE,
    kind           VARCHAR(20) NOT NULL DEFAULT 'rss',
    country_code   VARCHAR(8),
    lang_default   VARCHAR(8),
    trust_tier     VARCHAR(1) NOT NULL DEFAULT 'B',
    scope          VARCHAR(20) NOT NULL DEFAULT 'national',
    home_area_id   BIGINT,
    last_fetch_at  TIMESTAMPTZ,
    error_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT chk_sources_kind CHECK (kind IN ('rss', 'site', 'social', 'api')),
    CONSTRAINT chk_sources_trust_tier CHECK (trust_tier IN ('A', 'B', 'C')),
    CONSTRAINT chk_sources_scope CHECK (scope IN ('local', 'regional', 'national', 'international'))
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS articles (
    id             SERIAL PRIMARY KEY,
    source_id      INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
    url            TEXT UNIQUE,
    url_canonical  TEXT,
    title          TEXT,
    author         TEXT,
    lang           VARCHAR(8),
    published_at   TIMESTAMPTZ,
    raw_html       TEXT,
    text_content   TEXT,
    hash_64        BYTEA,
    simhash_64     BIGINT,
    quality_score  DOUBLE PRECISION,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT chk_articles_quality_score_non_negative CHECK (quality_score IS NULL OR quality_score >= 0)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS article_duplicates (
    article_id      INTEGER PRIMARY KEY REFERENCES articles(id) ON DELETE CASCADE,
    duplicate_of_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    kind            VARCHAR(10) NOT NULL,
    distance        INTEGER,
    CONSTRAINT chk_article_duplicates_kind CHECK (kind IN ('exact', 'near'))
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_url_canonical ON articles(url_canonical)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_source_id ON articles(source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_simhash_64 ON articles(source_id, simhash_64)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_kind ON sources(kind)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// pg_trgm powers the summariser's future keyword lookups; failures are
	// ignored the way the teacher does (missing superuser privilege).
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`)

	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS embedding_spaces (
    id         SERIAL PRIMARY KEY,
    name       TEXT NOT NULL,
    provider   TEXT NOT NULL,
    dims       INTEGER NOT NULL,
    version    TEXT,
    notes      TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE(name, version)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS article_embeddings (
    space_id    INTEGER NOT NULL REFERENCES embedding_spaces(id) ON DELETE CASCADE,
    article_id  INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    embedding   vector(1024) NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (space_id, article_id)
)`); err != nil {
		return err
	}

	_, _ = db.Exec(`
CREATE INDEX IF NOT EXISTS idx_article_embeddings_vector
    ON article_embeddings USING ivfflat (embedding vector_cosine_ops)
    WITH (lists = 100)`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cluster_runs (
    id          SERIAL PRIMARY KEY,
    space_id    INTEGER NOT NULL REFERENCES embedding_spaces(id) ON DELETE CASCADE,
    algo        TEXT NOT NULL,
    params      JSONB NOT NULL DEFAULT '{}'::jsonb,
    started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at TIMESTAMPTZ,
    status      TEXT NOT NULL DEFAULT 'running',
    is_active   BOOLEAN NOT NULL DEFAULT false,
    notes       TEXT,
    CONSTRAINT ck_cluster_runs_status_valid CHECK (status IN ('running', 'complete', 'failed'))
)`); err != nil {
		return err
	}

	// At most one active run per space.
	_, _ = db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS uq_cluster_runs_one_active_per_space
    ON cluster_runs(space_id) WHERE is_active`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS clusters (
    id           SERIAL PRIMARY KEY,
    run_id       INTEGER NOT NULL REFERENCES cluster_runs(id) ON DELETE CASCADE,
    label        TEXT,
    window_start TIMESTAMPTZ,
    window_end   TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE INDEX IF NOT EXISTS idx_clusters_run_created_at ON clusters(run_id, created_at)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS article_clusters (
    run_id     INTEGER NOT NULL REFERENCES cluster_runs(id) ON DELETE CASCADE,
    cluster_id INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
    article_id INTEGER NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    similarity DOUBLE PRECISION,
    PRIMARY KEY (run_id, article_id)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE INDEX IF NOT EXISTS idx_article_clusters_cluster ON article_clusters(run_id, cluster_id)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cluster_summaries (
    id                  SERIAL PRIMARY KEY,
    cluster_id          INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
    run_id              INTEGER NOT NULL REFERENCES cluster_runs(id) ON DELETE CASCADE,
    version             INTEGER NOT NULL DEFAULT 1,
    summarizer_engine   TEXT NOT NULL DEFAULT 'mistral-large-latest',
    engine_version      TEXT,
    lang                TEXT NOT NULL DEFAULT 'en',
    summary_md          TEXT,
    timeline_md         TEXT,
    is_active           BOOLEAN NOT NULL DEFAULT false,
    generation_metadata JSONB DEFAULT '{}'::jsonb,
    generated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE(cluster_id, version)
)`); err != nil {
		return err
	}

	// At most one active summary per cluster.
	_, _ = db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS uq_cluster_summaries_one_active_per_cluster
    ON cluster_summaries(cluster_id) WHERE is_active`)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS trend_metrics (
    ts             TIMESTAMPTZ NOT NULL,
    cluster_id     INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
    run_id         INTEGER NOT NULL REFERENCES cluster_runs(id) ON DELETE CASCADE,
    doc_count      INTEGER,
    unique_sources INTEGER,
    velocity       DOUBLE PRECISION,
    acceleration   DOUBLE PRECISION,
    novelty        DOUBLE PRECISION,
    locality       DOUBLE PRECISION,
    PRIMARY KEY (ts, cluster_id, run_id)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE INDEX IF NOT EXISTS idx_trend_metrics_cluster_ts ON trend_metrics(cluster_id, ts DESC)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS events (
    id           SERIAL PRIMARY KEY,
    run_id       INTEGER NOT NULL REFERENCES cluster_runs(id) ON DELETE CASCADE,
    cluster_id   INTEGER NOT NULL REFERENCES clusters(id) ON DELETE CASCADE,
    detected_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    score        DOUBLE PRECISION NOT NULL,
    severity     TEXT NOT NULL,
    locality     DOUBLE PRECISION,
    label        TEXT,
    window_start TIMESTAMPTZ,
    window_end   TIMESTAMPTZ,
    CONSTRAINT ck_events_severity_valid CHECK (severity IN ('low', 'medium', 'high', 'critical'))
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE INDEX IF NOT EXISTS idx_events_cluster_detected_at ON events(cluster_id, detected_at DESC)`); err != nil {
		return err
	}

	if _, err := db.Exec(seedSourcesSQL); err != nil {
		return err
	}

	return nil
}

// MigrateDown rolls back the clustering/trend schema, leaving sources and
// articles intact.
func MigrateDown(db *sql.DB) error {
	dropStatements := []string{
		`DROP TABLE IF EXISTS events CASCADE`,
		`DROP TABLE IF EXISTS trend_metrics CASCADE`,
		`DROP TABLE IF EXISTS cluster_summaries CASCADE`,
		`DROP TABLE IF EXISTS article_clusters CASCADE`,
		`DROP TABLE IF EXISTS clusters CASCADE`,
		`DROP TABLE IF EXISTS cluster_runs CASCADE`,
		`DROP TABLE IF EXISTS article_embeddings CASCADE`,
		`DROP TABLE IF EXISTS embedding_spaces CASCADE`,
		`DROP TABLE IF EXISTS article_duplicates CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// The vector extension and core sources/articles tables are left in
	// place, the same caution the teacher's MigrateDown applies.
	return nil
}

// MigrateDownEmbeddingsOnly rolls back only the embedding feature, a
// targeted rollback preserving clustering and trend state.
func MigrateDownEmbeddingsOnly(db *sql.DB) error {
	dropStatements := []string{
		`DROP INDEX IF EXISTS idx_article_embeddings_vector`,
		`DROP TABLE IF EXISTS article_embeddings CASCADE`,
		`DROP TABLE IF EXISTS embedding_spaces CASCADE`,
	}

	for _, stmt := range dropStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	return nil
}
