package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/cohort-match/internal/domain"
)

// MatchRepo implements matching.MatchRepository in memory.
type MatchRepo struct{ s *Store }

func (r *MatchRepo) Exists(_ context.Context, beforeID, afterID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.exists(beforeID, afterID), nil
}

func (r *MatchRepo) exists(beforeID, afterID string) bool {
	for _, p := range r.s.pairings {
		if p.BeforeID == beforeID && p.AfterID == afterID {
			return true
		}
	}
	return false
}

func (r *MatchRepo) Insert(_ context.Context, p *domain.Pairing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.exists(p.BeforeID, p.AfterID) {
		return fmt.Errorf("insert pairing %s/%s: %w", p.BeforeID, p.AfterID, domain.ErrConflict)
	}
	p.ID = uuid.New().String()
	r.s.pairings = append(r.s.pairings, *p)
	return nil
}

func (r *MatchRepo) FindAll(_ context.Context) ([]domain.Pairing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.Pairing(nil), r.s.pairings...), nil
}

func (r *MatchRepo) FindByCohort(_ context.Context, cohort string) ([]domain.Pairing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Pairing
	for _, p := range r.s.pairings {
		if p.Cohort == cohort {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MatchRepo) CountByOrigin(_ context.Context) (map[domain.MatchOrigin]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.MatchOrigin]int)
	for _, p := range r.s.pairings {
		counts[p.Origin]++
	}
	return counts, nil
}
