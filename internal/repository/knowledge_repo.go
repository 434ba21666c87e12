package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"guidance-llm/internal/domain"
)

// KnowledgeRepository es el contrato estrecho sobre el almacen de documentos: busqueda vectorial,
// busqueda de texto y cruce por entidades.
type KnowledgeRepository interface {
	SearchByVector(ctx context.Context, embedding pgvector.Vector, k int) ([]domain.ScoredDocument, error)
	SearchText(ctx context.Context, text string, k int) ([]domain.ScoredDocument, error)
	FindByEntities(ctx context.Context, entities []string, k int) ([]domain.KnowledgeDocument, error)
}

type PgKnowledgeRepository struct {
	pool *pgxpool.Pool
}

func NewPgKnowledgeRepository(pool *pgxpool.Pool) *PgKnowledgeRepository {
	return &PgKnowledgeRepository{pool: pool}
}

func (r *PgKnowledgeRepository) SearchByVector(ctx context.Context, embedding pgvector.Vector, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		k = 5
	}
	const query = `
		SELECT id, title, content, topics, entities, created_at, 1 - (embedding <=> $1) AS similarity
		FROM knowledge_documents
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, embedding, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredDocuments(rows)
}

// SearchText usa full-text search de Postgres; la similitud es ts_rank.
func (r *PgKnowledgeRepository) SearchText(ctx context.Context, text string, k int) ([]domain.ScoredDocument, error) {
	if k <= 0 {
		k = 5
	}
	const query = `
		SELECT id, title, content, topics, entities, created_at,
		       ts_rank(to_tsvector('english', title || ' ' || content), plainto_tsquery('english', $1)) AS similarity
		FROM knowledge_documents
		WHERE to_tsvector('english', title || ' ' || content) @@ plainto_tsquery('english', $1)
		ORDER BY similarity DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, text, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScoredDocuments(rows)
}

func (r *PgKnowledgeRepository) FindByEntities(ctx context.Context, entities []string, k int) ([]domain.KnowledgeDocument, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 5
	}
	const query = `
		SELECT id, title, content, topics, entities, created_at
		FROM knowledge_documents
		WHERE entities && $1::text[]
		ORDER BY cardinality(ARRAY(SELECT unnest(entities) INTERSECT SELECT unnest($1::text[]))) DESC, created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, entities, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.KnowledgeDocument
	for rows.Next() {
		var d domain.KnowledgeDocument
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.Topics, &d.Entities, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func scanScoredDocuments(rows pgxRows) ([]domain.ScoredDocument, error) {
	var docs []domain.ScoredDocument
	for rows.Next() {
		var d domain.ScoredDocument
		if err := rows.Scan(
			&d.ID,
			&d.Title,
			&d.Content,
			&d.Topics,
			&d.Entities,
			&d.CreatedAt,
			&d.Similarity,
		); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
