package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"guidance-llm/internal/domain"
)

type ModuleRepository interface {
	FindByTopics(ctx context.Context, topics []string, limit int) ([]domain.TrainingModule, error)
}

type PgModuleRepository struct {
	pool *pgxpool.Pool
}

func NewPgModuleRepository(pool *pgxpool.Pool) *PgModuleRepository {
	return &PgModuleRepository{pool: pool}
}

// FindByTopics ordena por cantidad de topics en comun.
func (r *PgModuleRepository) FindByTopics(ctx context.Context, topics []string, limit int) ([]domain.TrainingModule, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 3
	}
	const query = `
		SELECT id, title, summary, topics, difficulty, duration_minutes
		FROM training_modules
		WHERE topics && $1::text[]
		ORDER BY cardinality(ARRAY(SELECT unnest(topics) INTERSECT SELECT unnest($1::text[]))) DESC, title
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, topics, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modules []domain.TrainingModule
	for rows.Next() {
		var m domain.TrainingModule
		if err := rows.Scan(&m.ID, &m.Title, &m.Summary, &m.Topics, &m.Difficulty, &m.DurationMinutes); err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return modules, nil
}
