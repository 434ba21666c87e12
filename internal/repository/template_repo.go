package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"guidance-llm/internal/domain"
)

// TemplateRepository es el almacen de templates de personalidad. Los resultados vienen ordenados por peso descendente.
type TemplateRepository interface {
	FindMatching(ctx context.Context, trait string, min, max int, tags []string) ([]domain.Template, error)
	FindByTraits(ctx context.Context, traits []string, limit int) ([]domain.Template, error)
	UpdateWeight(ctx context.Context, id string, weight float64) error
	Upsert(ctx context.Context, template domain.Template) error
	Count(ctx context.Context) (int, error)
}

type PgTemplateRepository struct {
	pool *pgxpool.Pool
}

func NewPgTemplateRepository(pool *pgxpool.Pool) *PgTemplateRepository {
	return &PgTemplateRepository{pool: pool}
}

const templateColumns = `id, content, subcategory, intensity_min, intensity_max, context_tags, weight, content_type`

// FindMatching busca templates del rasgo cuyo rango se solapa con [min,max] y que comparten alguna etiqueta.
func (r *PgTemplateRepository) FindMatching(ctx context.Context, trait string, min, max int, tags []string) ([]domain.Template, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM personality_templates
		WHERE category = $1
		  AND subcategory = $2
		  AND intensity_min <= $4
		  AND intensity_max >= $3
		  AND context_tags && $5::text[]
		ORDER BY weight DESC, id
	`
	if tags == nil {
		tags = []string{}
	}
	rows, err := r.pool.Query(ctx, query, domain.TemplateCategoryPersonality, trait, min, max, tags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTemplates(rows)
}

// FindByTraits ignora contexto e intensidad: es la ruta de fallback.
func (r *PgTemplateRepository) FindByTraits(ctx context.Context, traits []string, limit int) ([]domain.Template, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT ` + templateColumns + `
		FROM personality_templates
		WHERE category = $1 AND subcategory = ANY($2::text[])
		ORDER BY weight DESC, id
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, domain.TemplateCategoryPersonality, traits, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTemplates(rows)
}

func (r *PgTemplateRepository) UpdateWeight(ctx context.Context, id string, weight float64) error {
	if weight < 0 {
		weight = 0
	}
	_, err := r.pool.Exec(ctx, `UPDATE personality_templates SET weight = $2 WHERE id = $1`, id, weight)
	return err
}

func (r *PgTemplateRepository) Upsert(ctx context.Context, t domain.Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	const query = `
		INSERT INTO personality_templates (id, content, category, subcategory, intensity_min, intensity_max, context_tags, weight, content_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			content = EXCLUDED.content,
			subcategory = EXCLUDED.subcategory,
			intensity_min = EXCLUDED.intensity_min,
			intensity_max = EXCLUDED.intensity_max,
			context_tags = EXCLUDED.context_tags,
			content_type = EXCLUDED.content_type
	`
	tags := t.ContextTags
	if tags == nil {
		tags = []string{}
	}
	weight := t.Weight
	if weight <= 0 {
		weight = 1
	}
	contentType := t.ContentType
	if contentType == "" {
		contentType = "text"
	}
	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.Content,
		domain.TemplateCategoryPersonality,
		t.Subcategory,
		t.IntensityMin,
		t.IntensityMax,
		tags,
		weight,
		contentType,
	)
	return err
}

func (r *PgTemplateRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM personality_templates`).Scan(&n)
	return n, err
}

func scanTemplates(rows pgxRows) ([]domain.Template, error) {
	var templates []domain.Template
	for rows.Next() {
		var t domain.Template
		if err := rows.Scan(
			&t.ID,
			&t.Content,
			&t.Subcategory,
			&t.IntensityMin,
			&t.IntensityMax,
			&t.ContextTags,
			&t.Weight,
			&t.ContentType,
		); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return templates, nil
}
