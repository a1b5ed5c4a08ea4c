package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/cohort-match/internal/domain"
	"github.com/lib/pq"
)

// MatchRepo implements matching.MatchRepository against PostgreSQL.
type MatchRepo struct{ db *sql.DB }

// NewMatchRepo creates a Postgres-backed pairing repository.
func NewMatchRepo(db *sql.DB) *MatchRepo { return &MatchRepo{db: db} }

const pairingColumns = `id, cohort, before_id, after_id, origin, confidence, matched_at, matched_by, notes`

func (r *MatchRepo) Exists(ctx context.Context, beforeID, afterID string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM survey_pairings WHERE before_id = $1 AND after_id = $2)`,
		beforeID, afterID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("pairing exists: %w", err)
	}
	return exists, nil
}

func (r *MatchRepo) Insert(ctx context.Context, p *domain.Pairing) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	var confidence sql.NullFloat64
	if p.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *p.Confidence, Valid: true}
	}
	_, err := conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO survey_pairings (id, cohort, before_id, after_id, origin, confidence, matched_at, matched_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Cohort, p.BeforeID, p.AfterID, p.Origin, confidence, p.MatchedAt, p.MatchedBy, p.Notes)
	if err != nil {
		p.ID = ""
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("insert pairing: %w", domain.ErrConflict)
		}
		return fmt.Errorf("insert pairing: %w", err)
	}
	return nil
}

func (r *MatchRepo) FindAll(ctx context.Context) ([]domain.Pairing, error) {
	return r.query(ctx, "list pairings",
		`SELECT `+pairingColumns+` FROM survey_pairings ORDER BY seq`)
}

func (r *MatchRepo) FindByCohort(ctx context.Context, cohort string) ([]domain.Pairing, error) {
	return r.query(ctx, "list cohort pairings",
		`SELECT `+pairingColumns+` FROM survey_pairings WHERE cohort = $1 ORDER BY seq`, cohort)
}

func (r *MatchRepo) query(ctx context.Context, op, q string, args ...any) ([]domain.Pairing, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Pairing
	for rows.Next() {
		var p domain.Pairing
		var confidence sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Cohort, &p.BeforeID, &p.AfterID, &p.Origin,
			&confidence, &p.MatchedAt, &p.MatchedBy, &p.Notes); err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		if confidence.Valid {
			v := confidence.Float64
			p.Confidence = &v
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *MatchRepo) CountByOrigin(ctx context.Context) (map[domain.MatchOrigin]int, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT origin, COUNT(*) FROM survey_pairings GROUP BY origin`)
	if err != nil {
		return nil, fmt.Errorf("count pairings: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.MatchOrigin]int)
	for rows.Next() {
		var origin domain.MatchOrigin
		var n int
		if err := rows.Scan(&origin, &n); err != nil {
			return nil, fmt.Errorf("count pairings scan: %w", err)
		}
		counts[origin] = n
	}
	return counts, rows.Err()
}
