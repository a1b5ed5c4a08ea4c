package matching

import (
	"fmt"

	"github.com/ignite/cohort-match/internal/domain"
)

// Sentinel errors for the matching service layer.
var (
	ErrWrongSide        = fmt.Errorf("%w: respondent is on the wrong survey side", domain.ErrInvalidArgument)
	ErrDuplicatePairing = fmt.Errorf("%w: pairing already exists", domain.ErrConflict)
	ErrNoOverrideStore  = fmt.Errorf("%w: no override store configured", domain.ErrInvalidArgument)
)
