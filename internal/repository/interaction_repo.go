package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"guidance-llm/internal/domain"
)

// InteractionRepository es el log de interacciones. Solo se agrega y se lee; las unicas
// actualizaciones son la respuesta (una vez) y el feedback (una vez).
type InteractionRepository interface {
	Create(ctx context.Context, interaction domain.Interaction) error
	SaveResponse(ctx context.Context, interaction domain.Interaction) error
	GetByID(ctx context.Context, id string) (domain.Interaction, error)
	ListRecentBySession(ctx context.Context, sessionID string, limit int) ([]domain.Interaction, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	SaveFeedback(ctx context.Context, id string, feedback domain.Feedback, confidence float64) (bool, error)
	ListWithFeedbackSince(ctx context.Context, since time.Time) ([]domain.Interaction, error)
}

type PgInteractionRepository struct {
	pool *pgxpool.Pool
}

func NewPgInteractionRepository(pool *pgxpool.Pool) *PgInteractionRepository {
	return &PgInteractionRepository{pool: pool}
}

const interactionColumns = `id, request_id, user_id, session_id, question, user_state, query_analysis, response, confidence_score, feedback, created_at`

// Create inserta el snapshot previo a la respuesta. Si SaveResponse ya escribio la fila, no la pisa.
func (r *PgInteractionRepository) Create(ctx context.Context, interaction domain.Interaction) error {
	const query = `
		INSERT INTO interactions (id, request_id, user_id, session_id, question, user_state, query_analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	userState, queryAnalysis, err := marshalSnapshots(interaction)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, query,
		interaction.ID,
		interaction.RequestID,
		interaction.UserID,
		nullableString(interaction.SessionID),
		interaction.Question,
		userState,
		queryAnalysis,
		interaction.CreatedAt,
	)
	return err
}

// SaveResponse escribe la respuesta con semantica upsert: la tarea de Create puede llegar despues.
func (r *PgInteractionRepository) SaveResponse(ctx context.Context, interaction domain.Interaction) error {
	if interaction.Response == nil {
		return fmt.Errorf("save response: interaction %s has no response", interaction.ID)
	}
	const query = `
		INSERT INTO interactions (id, request_id, user_id, session_id, question, user_state, query_analysis, response, confidence_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			response = EXCLUDED.response,
			confidence_score = EXCLUDED.confidence_score
		WHERE interactions.response IS NULL
	`
	userState, queryAnalysis, err := marshalSnapshots(interaction)
	if err != nil {
		return err
	}
	response, err := json.Marshal(interaction.Response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	_, err = r.pool.Exec(ctx, query,
		interaction.ID,
		interaction.RequestID,
		interaction.UserID,
		nullableString(interaction.SessionID),
		interaction.Question,
		userState,
		queryAnalysis,
		response,
		interaction.ConfidenceScore,
		interaction.CreatedAt,
	)
	return err
}

func (r *PgInteractionRepository) GetByID(ctx context.Context, id string) (domain.Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions WHERE id = $1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return domain.Interaction{}, err
	}
	defer rows.Close()

	items, err := scanInteractions(rows)
	if err != nil {
		return domain.Interaction{}, err
	}
	if len(items) == 0 {
		return domain.Interaction{}, pgx.ErrNoRows
	}
	return items[0], nil
}

// ListRecentBySession devuelve las ultimas limit interacciones en orden cronologico.
func (r *PgInteractionRepository) ListRecentBySession(ctx context.Context, sessionID string, limit int) ([]domain.Interaction, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT ` + interactionColumns + ` FROM (
			SELECT * FROM interactions
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInteractions(rows)
}

func (r *PgInteractionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM interactions WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

// SaveFeedback registra el feedback una sola vez. Devuelve false si ya existia feedback.
func (r *PgInteractionRepository) SaveFeedback(ctx context.Context, id string, feedback domain.Feedback, confidence float64) (bool, error) {
	const query = `
		UPDATE interactions
		SET feedback = $2, feedback_at = $3, confidence_score = $4
		WHERE id = $1 AND feedback IS NULL
	`
	payload, err := json.Marshal(feedback)
	if err != nil {
		return false, fmt.Errorf("marshal feedback: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query, id, payload, feedback.SubmittedAt, confidence)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgInteractionRepository) ListWithFeedbackSince(ctx context.Context, since time.Time) ([]domain.Interaction, error) {
	query := `
		SELECT ` + interactionColumns + `
		FROM interactions
		WHERE feedback_at IS NOT NULL AND feedback_at >= $1
		ORDER BY feedback_at ASC
	`
	rows, err := r.pool.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanInteractions(rows)
}

func marshalSnapshots(interaction domain.Interaction) ([]byte, []byte, error) {
	userState, err := json.Marshal(interaction.UserState)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal user state: %w", err)
	}
	queryAnalysis, err := json.Marshal(interaction.QueryAnalysis)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal query analysis: %w", err)
	}
	return userState, queryAnalysis, nil
}

func scanInteractions(rows pgxRows) ([]domain.Interaction, error) {
	var items []domain.Interaction
	for rows.Next() {
		var it domain.Interaction
		var sessionID *string
		var userState, queryAnalysis, response, feedback []byte
		var confidence *float64

		if err := rows.Scan(
			&it.ID,
			&it.RequestID,
			&it.UserID,
			&sessionID,
			&it.Question,
			&userState,
			&queryAnalysis,
			&response,
			&confidence,
			&feedback,
			&it.CreatedAt,
		); err != nil {
			return nil, err
		}
		if sessionID != nil {
			it.SessionID = *sessionID
		}
		if confidence != nil {
			it.ConfidenceScore = *confidence
		}
		if len(userState) > 0 {
			if err := json.Unmarshal(userState, &it.UserState); err != nil {
				return nil, fmt.Errorf("decode user state %s: %w", it.ID, err)
			}
		}
		if len(queryAnalysis) > 0 {
			if err := json.Unmarshal(queryAnalysis, &it.QueryAnalysis); err != nil {
				return nil, fmt.Errorf("decode query analysis %s: %w", it.ID, err)
			}
		}
		if len(response) > 0 {
			var resp domain.InteractionResponse
			if err := json.Unmarshal(response, &resp); err != nil {
				return nil, fmt.Errorf("decode response %s: %w", it.ID, err)
			}
			it.Response = &resp
		}
		if len(feedback) > 0 {
			var fb domain.Feedback
			if err := json.Unmarshal(feedback, &fb); err != nil {
				return nil, fmt.Errorf("decode feedback %s: %w", it.ID, err)
			}
			it.Feedback = &fb
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
