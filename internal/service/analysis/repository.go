package analysis

import (
	"context"

	"github.com/ignite/cohort-match/internal/domain"
)

// PairingSource lists pairings.
type PairingSource interface {
	FindAll(ctx context.Context) ([]domain.Pairing, error)
}

// ResponseSource looks up a respondent's response. It returns
// domain.ErrNotFound when there is none.
type ResponseSource interface {
	FindByRespondentID(ctx context.Context, respondentID string) (*domain.Response, error)
}

// RespondentSource counts respondents and lists cohorts.
type RespondentSource interface {
	FindAll(ctx context.Context, side domain.SurveySide) ([]domain.Respondent, error)
	FindCohorts(ctx context.Context) ([]string, error)
}
