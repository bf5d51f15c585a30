package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/domain/fingerprint"
	"trendpulse/internal/repository"
)

type ArticleRepo struct{ db *sql.DB }

func NewArticleRepo(db *sql.DB) repository.ArticleRepository {
	return &ArticleRepo{db: db}
}

const articleColumns = `id, source_id, url, url_canonical, title, author, lang, published_at, raw_html, text_content, hash_64, simhash_64, quality_score, created_at`

func scanArticle(row interface{ Scan(...interface{}) error }) (*entity.Article, error) {
	var a entity.Article
	var url, urlCanonical, title, author, lang, rawHTML sql.NullString
	var publishedAt sql.NullTime
	var qualityScore sql.NullFloat64
	var simhash sql.NullInt64
	if err := row.Scan(
		&a.ID, &a.SourceID, &url, &urlCanonical, &title, &author, &lang,
		&publishedAt, &rawHTML, &a.TextContent, &a.Hash64, &simhash, &qualityScore, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.URL = url.String
	a.URLCanonical = urlCanonical.String
	a.Title = title.String
	a.Author = author.String
	a.Lang = lang.String
	a.RawHTML = rawHTML.String
	if publishedAt.Valid {
		a.PublishedAt = &publishedAt.Time
	}
	if simhash.Valid {
		a.Simhash64 = uint64(simhash.Int64)
	}
	if qualityScore.Valid {
		a.QualityScore = &qualityScore.Float64
	}
	return &a, nil
}

// InsertArticle dedups against the hash_64 (exact) and source-scoped
// simhash_64 (near) fingerprints before committing the insert, so a single
// transaction either records a fresh article or a duplicate link.
func (repo *ArticleRepo) InsertArticle(ctx context.Context, article *entity.Article) (*repository.InsertResult, error) {
	if err := article.Validate(); err != nil {
		return nil, err
	}

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("InsertArticle: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var duplicateOf *int64
	var dupKind entity.DuplicateKind
	var dupDistance *int

	if len(article.Hash64) > 0 {
		var existingID int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM articles WHERE hash_64 = $1 LIMIT 1`, article.Hash64,
		).Scan(&existingID)
		switch {
		case err == nil:
			duplicateOf = &existingID
			dupKind = entity.DuplicateKindExact
		case err == sql.ErrNoRows:
			// fall through to the near-duplicate scan
		default:
			return nil, fmt.Errorf("InsertArticle: hash lookup: %w", err)
		}
	}

	if duplicateOf == nil {
		rows, err := tx.QueryContext(ctx,
			`SELECT id, simhash_64 FROM articles WHERE source_id = $1 AND simhash_64 IS NOT NULL`, article.SourceID)
		if err != nil {
			return nil, fmt.Errorf("InsertArticle: simhash scan: %w", err)
		}
		for rows.Next() {
			var candidateID int64
			var candidateSimhash int64
			if err := rows.Scan(&candidateID, &candidateSimhash); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("InsertArticle: simhash scan: %w", err)
			}
			if fingerprint.IsNearDuplicate(article.Simhash64, uint64(candidateSimhash)) {
				dist := fingerprint.HammingDistance64(article.Simhash64, uint64(candidateSimhash))
				duplicateOf = &candidateID
				dupKind = entity.DuplicateKindNear
				dupDistance = &dist
				break
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("InsertArticle: simhash scan: %w", err)
		}
		_ = rows.Close()
	}

	const insertQuery = `
INSERT INTO articles
       (source_id, url, url_canonical, title, author, lang, published_at, raw_html, text_content, hash_64, simhash_64, quality_score)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, created_at`
	err = tx.QueryRowContext(ctx, insertQuery,
		article.SourceID, nullableString(article.URL), nullableString(article.URLCanonical),
		nullableString(article.Title), nullableString(article.Author), nullableString(article.Lang),
		article.PublishedAt, nullableString(article.RawHTML), article.TextContent,
		article.Hash64, int64(article.Simhash64), article.QualityScore,
	).Scan(&article.ID, &article.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("InsertArticle: insert: %w", err)
	}

	if duplicateOf != nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO article_duplicates (article_id, duplicate_of_id, kind, distance) VALUES ($1, $2, $3, $4)`,
			article.ID, *duplicateOf, dupKind, dupDistance,
		); err != nil {
			return nil, fmt.Errorf("InsertArticle: duplicate link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("InsertArticle: commit: %w", err)
	}

	return &repository.InsertResult{ArticleID: article.ID, DuplicateOf: duplicateOf, Kind: dupKind}, nil
}

func (repo *ArticleRepo) ListSourceSimhashes(ctx context.Context, sourceID int64) ([]repository.SourceSimhash, error) {
	rows, err := repo.db.QueryContext(ctx,
		`SELECT id, simhash_64 FROM articles WHERE source_id = $1 AND simhash_64 IS NOT NULL`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("ListSourceSimhashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]repository.SourceSimhash, 0, 64)
	for rows.Next() {
		var s repository.SourceSimhash
		var simhash int64
		if err := rows.Scan(&s.ArticleID, &simhash); err != nil {
			return nil, fmt.Errorf("ListSourceSimhashes: %w", err)
		}
		s.Simhash64 = uint64(simhash)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (repo *ArticleRepo) Get(ctx context.Context, id int64) (*entity.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles WHERE id = $1 LIMIT 1`
	article, err := scanArticle(repo.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return article, nil
}

func (repo *ArticleRepo) ListByCluster(ctx context.Context, runID, clusterID int64) ([]*entity.Article, error) {
	query := `
SELECT ` + articleColumns + `
FROM articles a
JOIN article_clusters ac ON ac.article_id = a.id
WHERE ac.run_id = $1 AND ac.cluster_id = $2
ORDER BY a.published_at DESC NULLS LAST`
	rows, err := repo.db.QueryContext(ctx, query, runID, clusterID)
	if err != nil {
		return nil, fmt.Errorf("ListByCluster: %w", err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*entity.Article, 0, 16)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByCluster: %w", err)
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}
