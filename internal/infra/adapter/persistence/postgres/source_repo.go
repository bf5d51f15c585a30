package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"
)

type SourceRepo struct{ db *sql.DB }

func NewSourceRepo(db *sql.DB) repository.SourceRepository {
	return &SourceRepo{db: db}
}

func scanSource(rows *sql.Rows) (*entity.Source, error) {
	var source entity.Source
	var countryCode, langDefault sql.NullString
	var homeAreaID sql.NullInt64
	var lastFetchAt sql.NullTime
	if err := rows.Scan(
		&source.ID, &source.Name, &source.URL, &source.Kind,
		&countryCode, &langDefault, &source.TrustTier, &source.Scope,
		&homeAreaID, &lastFetchAt, &source.ErrorRate, &source.CreatedAt,
	); err != nil {
		return nil, err
	}
	source.CountryCode = countryCode.String
	source.LangDefault = langDefault.String
	if homeAreaID.Valid {
		source.HomeAreaID = &homeAreaID.Int64
	}
	if lastFetchAt.Valid {
		source.LastFetchAt = &lastFetchAt.Time
	}
	return &source, nil
}

const sourceColumns = `id, name, url, kind, country_code, lang_default, trust_tier, scope, home_area_id, last_fetch_at, error_rate, created_at`

func (repo *SourceRepo) Get(ctx context.Context, id int64) (*entity.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE id = $1 LIMIT 1`
	rows, err := repo.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return nil, entity.ErrNotFound
	}
	source, err := scanSource(rows)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return source, rows.Err()
}

func (repo *SourceRepo) List(ctx context.Context) ([]*entity.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("List: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

func (repo *SourceRepo) ListActive(ctx context.Context) ([]*entity.Source, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources WHERE error_rate < 1.0 ORDER BY id ASC`
	rows, err := repo.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ListActive: %w", err)
	}
	defer func() { _ = rows.Close() }()

	active := make([]*entity.Source, 0, 50)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActive: %w", err)
		}
		active = append(active, source)
	}
	return active, rows.Err()
}

func (repo *SourceRepo) Create(ctx context.Context, source *entity.Source) error {
	if err := source.Validate(); err != nil {
		return err
	}

	const query = `
INSERT INTO sources (name, url, kind, country_code, lang_default, trust_tier, scope, home_area_id, error_rate)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`
	err := repo.db.QueryRowContext(ctx, query,
		source.Name, source.URL, source.Kind, nullableString(source.CountryCode),
		nullableString(source.LangDefault), source.TrustTier, source.Scope,
		source.HomeAreaID, source.ErrorRate,
	).Scan(&source.ID, &source.CreatedAt)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (repo *SourceRepo) Update(ctx context.Context, source *entity.Source) error {
	if err := source.Validate(); err != nil {
		return err
	}

	const query = `
UPDATE sources SET
       name          = $1,
       url           = $2,
       kind          = $3,
       country_code  = $4,
       lang_default  = $5,
       trust_tier    = $6,
       scope         = $7,
       home_area_id  = $8,
       error_rate    = $9
WHERE id = $10`
	res, err := repo.db.ExecContext(ctx, query,
		source.Name, source.URL, source.Kind, nullableString(source.CountryCode),
		nullableString(source.LangDefault), source.TrustTier, source.Scope,
		source.HomeAreaID, source.ErrorRate, source.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *SourceRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM sources WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (repo *SourceRepo) TouchFetchedAt(ctx context.Context, id int64, t time.Time) error {
	const query = `UPDATE sources SET last_fetch_at = $1 WHERE id = $2`
	_, err := repo.db.ExecContext(ctx, query, t, id)
	return err
}

func (repo *SourceRepo) RecordFetchError(ctx context.Context, id int64, rate float64) error {
	const query = `UPDATE sources SET error_rate = $1 WHERE id = $2`
	_, err := repo.db.ExecContext(ctx, query, rate, id)
	return err
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
