package override

import (
	"fmt"

	"github.com/ignite/cohort-match/internal/domain"
)

// Sentinel errors for the override store.
var (
	ErrMissingCohort = fmt.Errorf("%w: before cohort is required", domain.ErrInvalidArgument)
	ErrMissingAfter  = fmt.Errorf("%w: after cohort is required", domain.ErrInvalidArgument)
)
