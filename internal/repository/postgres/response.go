package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/cohort-match/internal/domain"
)

// ResponseRepo implements matching.ResponseRepository against PostgreSQL.
// Situation answers are stored as a JSONB object of present values.
type ResponseRepo struct{ db *sql.DB }

// NewResponseRepo creates a Postgres-backed response repository.
func NewResponseRepo(db *sql.DB) *ResponseRepo { return &ResponseRepo{db: db} }

func (r *ResponseRepo) FindByRespondentID(ctx context.Context, respondentID string) (*domain.Response, error) {
	var resp domain.Response
	var confidence sql.NullFloat64
	var situations []byte
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, respondent_id, side, cohort, submitted_at, name, normalized_email,
		       confidence, situations, created_at
		FROM survey_responses
		WHERE respondent_id = $1
		ORDER BY seq
		LIMIT 1
	`, respondentID).Scan(&resp.ID, &resp.RespondentID, &resp.Side, &resp.Cohort, &resp.SubmittedAt,
		&resp.Name, &resp.NormalizedEmail, &confidence, &situations, &resp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("response for %s: %w", respondentID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get response: %w", err)
	}
	if confidence.Valid {
		v := confidence.Float64
		resp.Confidence = &v
	}
	if len(situations) > 0 {
		if err := json.Unmarshal(situations, &resp.Situations); err != nil {
			return nil, fmt.Errorf("decode situations: %w", err)
		}
		if len(resp.Situations) == 0 {
			resp.Situations = nil
		}
	}
	return &resp, nil
}

func (r *ResponseRepo) Exists(ctx context.Context, side domain.SurveySide, cohort string, submittedAt time.Time, name, normalizedEmail string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM survey_responses
			WHERE side = $1 AND cohort = $2 AND submitted_at = $3
			  AND ((name <> '' AND name = $4) OR (normalized_email <> '' AND normalized_email = $5))
		)
	`, side, cohort, submittedAt, name, normalizedEmail).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("response exists: %w", err)
	}
	return exists, nil
}

func (r *ResponseRepo) Insert(ctx context.Context, resp *domain.Response) error {
	if resp.RespondentID == "" {
		return fmt.Errorf("insert response: %w: respondent id is empty", domain.ErrInvalidArgument)
	}
	if resp.ID == "" {
		resp.ID = uuid.New().String()
	}

	situations := resp.Situations
	if situations == nil {
		situations = map[string]float64{}
	}
	situationsJSON, err := json.Marshal(situations)
	if err != nil {
		return fmt.Errorf("encode situations: %w", err)
	}
	var confidence sql.NullFloat64
	if resp.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *resp.Confidence, Valid: true}
	}

	err = conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO survey_responses (id, respondent_id, side, cohort, submitted_at, name, normalized_email, confidence, situations, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING created_at
	`, resp.ID, resp.RespondentID, resp.Side, resp.Cohort, resp.SubmittedAt, resp.Name,
		resp.NormalizedEmail, confidence, string(situationsJSON)).Scan(&resp.CreatedAt)
	if err != nil {
		resp.ID = ""
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}
