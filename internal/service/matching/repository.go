package matching

import (
	"context"
	"time"

	"github.com/ignite/cohort-match/internal/domain"
)

// PersonRepository is the data access contract for respondents.
type PersonRepository interface {
	// FindByID returns domain.ErrNotFound when no respondent has the id.
	FindByID(ctx context.Context, id string) (*domain.Respondent, error)

	// FindUnmatched returns respondents of side that appear in no pairing on
	// that side, in insertion order. Manual-only respondents are included.
	FindUnmatched(ctx context.Context, side domain.SurveySide) ([]domain.Respondent, error)

	// FindAll returns every respondent of side in insertion order.
	FindAll(ctx context.Context, side domain.SurveySide) ([]domain.Respondent, error)

	// FindCohorts returns the distinct cohort labels in first-seen order.
	FindCohorts(ctx context.Context) ([]string, error)

	// Insert assigns r.ID and r.CreatedAt and stores the respondent.
	Insert(ctx context.Context, r *domain.Respondent) error
}

// MatchRepository is the data access contract for pairings.
type MatchRepository interface {
	Exists(ctx context.Context, beforeID, afterID string) (bool, error)

	// Insert assigns p.ID and stores the pairing.
	Insert(ctx context.Context, p *domain.Pairing) error

	FindAll(ctx context.Context) ([]domain.Pairing, error)
	FindByCohort(ctx context.Context, cohort string) ([]domain.Pairing, error)
	CountByOrigin(ctx context.Context) (map[domain.MatchOrigin]int, error)
}

// ResponseRepository is the data access contract for questionnaire responses.
type ResponseRepository interface {
	// FindByRespondentID returns domain.ErrNotFound when the respondent has
	// no stored response.
	FindByRespondentID(ctx context.Context, respondentID string) (*domain.Response, error)

	// Exists reports whether a response of side with the same cohort and
	// submission time was stored for the same name or normalized email.
	Exists(ctx context.Context, side domain.SurveySide, cohort string, submittedAt time.Time, name, normalizedEmail string) (bool, error)

	// Insert assigns resp.ID and stores the response.
	Insert(ctx context.Context, resp *domain.Response) error
}

// TxRunner runs fn in one transaction. Repositories called with the ctx
// passed to fn participate in it. A non-nil error from fn rolls back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OverrideStore is the durable record of manual pairings.
type OverrideStore interface {
	Save(ctx context.Context, before domain.RespondentRef, beforeTS *time.Time,
		after domain.RespondentRef, afterTS *time.Time, notes, createdBy string) (*domain.ManualOverrideEntry, error)
	AllEntries(ctx context.Context) ([]domain.ManualOverrideEntry, error)
}
