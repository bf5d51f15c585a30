package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trendpulse/internal/domain/entity"
	"trendpulse/internal/repository"

	"github.com/pgvector/pgvector-go"
)

// DefaultSearchTimeout bounds how long a kNN similarity search may run.
const DefaultSearchTimeout = 5 * time.Second

type EmbeddingSpaceRepo struct{ db *sql.DB }

func NewEmbeddingSpaceRepo(db *sql.DB) repository.EmbeddingSpaceRepository {
	return &EmbeddingSpaceRepo{db: db}
}

func (repo *EmbeddingSpaceRepo) GetOrCreate(ctx context.Context, name, version, provider string, dims int) (*entity.EmbeddingSpace, error) {
	const selectQuery = `SELECT id, name, provider, dims, version, notes, created_at FROM embedding_spaces WHERE name = $1 AND version = $2 LIMIT 1`
	var s entity.EmbeddingSpace
	var notes sql.NullString
	err := repo.db.QueryRowContext(ctx, selectQuery, name, version).
		Scan(&s.ID, &s.Name, &s.Provider, &s.Dims, &s.Version, &notes, &s.CreatedAt)
	if err == nil {
		s.Notes = notes.String
		return &s, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("GetOrCreate: %w", err)
	}

	const insertQuery = `
INSERT INTO embedding_spaces (name, provider, dims, version)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name, version) DO NOTHING
RETURNING id, created_at`
	if err := repo.db.QueryRowContext(ctx, insertQuery, name, provider, dims, version).
		Scan(&s.ID, &s.CreatedAt); err != nil {
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("GetOrCreate: insert: %w", err)
		}
		// Lost the race to a concurrent writer: re-read the winning row.
		if err := repo.db.QueryRowContext(ctx, selectQuery, name, version).
			Scan(&s.ID, &s.Name, &s.Provider, &s.Dims, &s.Version, &notes, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("GetOrCreate: re-read: %w", err)
		}
		s.Notes = notes.String
		return &s, nil
	}
	s.Name, s.Provider, s.Dims, s.Version = name, provider, dims, version
	return &s, nil
}

func (repo *EmbeddingSpaceRepo) Get(ctx context.Context, id int64) (*entity.EmbeddingSpace, error) {
	const query = `SELECT id, name, provider, dims, version, notes, created_at FROM embedding_spaces WHERE id = $1 LIMIT 1`
	var s entity.EmbeddingSpace
	var notes sql.NullString
	err := repo.db.QueryRowContext(ctx, query, id).
		Scan(&s.ID, &s.Name, &s.Provider, &s.Dims, &s.Version, &notes, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	s.Notes = notes.String
	return &s, nil
}

// ArticleEmbeddingRepo implements the ArticleEmbeddingRepository interface for PostgreSQL.
type ArticleEmbeddingRepo struct{ db *sql.DB }

func NewArticleEmbeddingRepo(db *sql.DB) repository.ArticleEmbeddingRepository {
	return &ArticleEmbeddingRepo{db: db}
}

func (repo *ArticleEmbeddingRepo) Upsert(ctx context.Context, embedding *entity.ArticleEmbedding) error {
	if embedding == nil {
		return fmt.Errorf("Upsert: embedding is nil")
	}
	if err := embedding.Validate(0); err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	vector := pgvector.NewVector(embedding.Vector)

	const query = `
INSERT INTO article_embeddings (space_id, article_id, embedding, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (space_id, article_id)
DO UPDATE SET embedding = EXCLUDED.embedding
RETURNING created_at`

	err := repo.db.QueryRowContext(ctx, query, embedding.SpaceID, embedding.ArticleID, vector).
		Scan(&embedding.CreatedAt)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}

func (repo *ArticleEmbeddingRepo) Get(ctx context.Context, spaceID, articleID int64) (*entity.ArticleEmbedding, error) {
	const query = `SELECT space_id, article_id, embedding, created_at FROM article_embeddings WHERE space_id = $1 AND article_id = $2 LIMIT 1`
	var emb entity.ArticleEmbedding
	var vector pgvector.Vector
	err := repo.db.QueryRowContext(ctx, query, spaceID, articleID).
		Scan(&emb.SpaceID, &emb.ArticleID, &vector, &emb.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	emb.Vector = vector.Slice()
	return &emb, nil
}

// KNN finds the k nearest articles to vector within spaceID, restricted to
// articles created at or after since, excluding excludeArticleID, ordered by
// ascending cosine distance via pgvector's <=> operator.
func (repo *ArticleEmbeddingRepo) KNN(ctx context.Context, spaceID int64, vector []float32, since time.Time, excludeArticleID int64, k int) ([]entity.Neighbor, error) {
	searchCtx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if k <= 0 {
		k = 5
	}

	queryVector := pgvector.NewVector(vector)

	const query = `
SELECT ae.article_id, ac.cluster_id, 1 - (ae.embedding <=> $1) AS similarity
FROM article_embeddings ae
JOIN articles a ON a.id = ae.article_id
LEFT JOIN article_clusters ac ON ac.article_id = ae.article_id
WHERE ae.space_id = $2 AND a.created_at >= $3 AND ae.article_id != $4
ORDER BY ae.embedding <=> $1
LIMIT $5`

	rows, err := repo.db.QueryContext(searchCtx, query, queryVector, spaceID, since, excludeArticleID, k)
	if err != nil {
		return nil, fmt.Errorf("KNN: %w", err)
	}
	defer func() { _ = rows.Close() }()

	neighbors := make([]entity.Neighbor, 0, k)
	for rows.Next() {
		var n entity.Neighbor
		var clusterID sql.NullInt64
		if err := rows.Scan(&n.ArticleID, &clusterID, &n.Similarity); err != nil {
			return nil, fmt.Errorf("KNN: Scan: %w", err)
		}
		if clusterID.Valid {
			n.ClusterID = &clusterID.Int64
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}
