package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/cohort-match/internal/domain"
)

// PersonRepo implements matching.PersonRepository against PostgreSQL.
type PersonRepo struct{ db *sql.DB }

// NewPersonRepo creates a Postgres-backed respondent repository.
func NewPersonRepo(db *sql.DB) *PersonRepo { return &PersonRepo{db: db} }

const respondentColumns = `id, cohort, side, raw_email, normalized_email, display_name, requires_manual_match, created_at`

func scanRespondent(sc interface{ Scan(...any) error }) (domain.Respondent, error) {
	var p domain.Respondent
	err := sc.Scan(&p.ID, &p.Cohort, &p.Side, &p.RawEmail, &p.NormalizedEmail,
		&p.DisplayName, &p.RequiresManualMatch, &p.CreatedAt)
	return p, err
}

func (r *PersonRepo) FindByID(ctx context.Context, id string) (*domain.Respondent, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("respondent %q: %w", id, domain.ErrNotFound)
	}
	p, err := scanRespondent(conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+respondentColumns+` FROM survey_respondents WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("respondent %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get respondent: %w", err)
	}
	return &p, nil
}

func (r *PersonRepo) FindUnmatched(ctx context.Context, side domain.SurveySide) ([]domain.Respondent, error) {
	var q string
	switch side {
	case domain.SideBefore:
		q = `SELECT ` + respondentColumns + ` FROM survey_respondents r
			WHERE r.side = $1 AND NOT EXISTS (SELECT 1 FROM survey_pairings p WHERE p.before_id = r.id)
			ORDER BY r.seq`
	case domain.SideAfter:
		q = `SELECT ` + respondentColumns + ` FROM survey_respondents r
			WHERE r.side = $1 AND NOT EXISTS (SELECT 1 FROM survey_pairings p WHERE p.after_id = r.id)
			ORDER BY r.seq`
	default:
		return nil, fmt.Errorf("find unmatched: %w: side %q", domain.ErrInvalidArgument, side)
	}
	return r.query(ctx, "find unmatched", q, side)
}

func (r *PersonRepo) FindAll(ctx context.Context, side domain.SurveySide) ([]domain.Respondent, error) {
	return r.query(ctx, "list respondents",
		`SELECT `+respondentColumns+` FROM survey_respondents WHERE side = $1 ORDER BY seq`, side)
}

func (r *PersonRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Respondent, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Respondent
	for rows.Next() {
		p, err := scanRespondent(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PersonRepo) FindCohorts(ctx context.Context) ([]string, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `
		SELECT cohort FROM survey_respondents
		GROUP BY cohort
		ORDER BY MIN(seq)
	`)
	if err != nil {
		return nil, fmt.Errorf("list cohorts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("list cohorts scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PersonRepo) Insert(ctx context.Context, p *domain.Respondent) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	err := conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO survey_respondents (id, cohort, side, raw_email, normalized_email, display_name, requires_manual_match, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`, p.ID, p.Cohort, p.Side, p.RawEmail, p.NormalizedEmail, p.DisplayName, p.RequiresManualMatch).Scan(&p.CreatedAt)
	if err != nil {
		p.ID = ""
		return fmt.Errorf("insert respondent: %w", err)
	}
	return nil
}
