package ingest

import (
	"context"
	"time"

	"github.com/ignite/cohort-match/internal/domain"
)

// PersonWriter stores respondents. Insert must assign r.ID.
type PersonWriter interface {
	Insert(ctx context.Context, r *domain.Respondent) error
}

// ResponseStore checks for and stores responses.
type ResponseStore interface {
	Exists(ctx context.Context, side domain.SurveySide, cohort string, submittedAt time.Time, name, normalizedEmail string) (bool, error)
	Insert(ctx context.Context, resp *domain.Response) error
}

// TxRunner runs fn in one transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
