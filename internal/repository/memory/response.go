package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/cohort-match/internal/domain"
)

// ResponseRepo implements matching.ResponseRepository in memory.
type ResponseRepo struct{ s *Store }

func (r *ResponseRepo) FindByRespondentID(_ context.Context, respondentID string) (*domain.Response, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.responses {
		if row.RespondentID == respondentID {
			resp := row
			return &resp, nil
		}
	}
	return nil, fmt.Errorf("response for %s: %w", respondentID, domain.ErrNotFound)
}

func (r *ResponseRepo) Exists(_ context.Context, side domain.SurveySide, cohort string, submittedAt time.Time, name, normalizedEmail string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.responses {
		if row.Side != side || row.Cohort != cohort || !row.SubmittedAt.Equal(submittedAt) {
			continue
		}
		if (name != "" && row.Name == name) || (normalizedEmail != "" && row.NormalizedEmail == normalizedEmail) {
			return true, nil
		}
	}
	return false, nil
}

func (r *ResponseRepo) Insert(_ context.Context, resp *domain.Response) error {
	if resp.RespondentID == "" {
		return fmt.Errorf("insert response: %w: respondent id is empty", domain.ErrInvalidArgument)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	resp.ID = uuid.New().String()
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now()
	}
	r.s.responses = append(r.s.responses, *resp)
	return nil
}
