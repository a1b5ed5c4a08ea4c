package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/cohort-match/internal/domain"
)

// PersonRepo implements matching.PersonRepository in memory.
type PersonRepo struct{ s *Store }

func (r *PersonRepo) FindByID(_ context.Context, id string) (*domain.Respondent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.respondents {
		if row.ID == id {
			p := row
			return &p, nil
		}
	}
	return nil, fmt.Errorf("respondent %s: %w", id, domain.ErrNotFound)
}

func (r *PersonRepo) FindUnmatched(_ context.Context, side domain.SurveySide) ([]domain.Respondent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	paired := make(map[string]bool)
	for _, p := range r.s.pairings {
		if side == domain.SideBefore {
			paired[p.BeforeID] = true
		} else {
			paired[p.AfterID] = true
		}
	}
	var out []domain.Respondent
	for _, row := range r.s.respondents {
		if row.Side == side && !paired[row.ID] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *PersonRepo) FindAll(_ context.Context, side domain.SurveySide) ([]domain.Respondent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Respondent
	for _, row := range r.s.respondents {
		if row.Side == side {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *PersonRepo) FindCohorts(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, row := range r.s.respondents {
		if !seen[row.Cohort] {
			seen[row.Cohort] = true
			out = append(out, row.Cohort)
		}
	}
	return out, nil
}

func (r *PersonRepo) Insert(_ context.Context, p *domain.Respondent) error {
	if !p.Side.Valid() {
		return fmt.Errorf("insert respondent: %w: side %q", domain.ErrInvalidArgument, p.Side)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = uuid.New().String()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.s.respondents = append(r.s.respondents, *p)
	return nil
}
