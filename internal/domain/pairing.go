package domain

import "time"

// MatchOrigin records how a pairing was produced.
type MatchOrigin string

const (
	OriginAutoEmail MatchOrigin = "auto_email"
	OriginAutoName  MatchOrigin = "auto_name"
	OriginManual    MatchOrigin = "manual"
)

// Valid reports whether o is a known origin.
func (o MatchOrigin) Valid() bool {
	switch o {
	case OriginAutoEmail, OriginAutoName, OriginManual:
		return true
	}
	return false
}

// SystemMatcher is recorded as MatchedBy on automatic pairings.
const SystemMatcher = "system"

// Pairing links a BEFORE respondent to the AFTER respondent believed to be
// the same person. Confidence is nil for manual pairings.
type Pairing struct {
	ID         string      `json:"id" db:"id"`
	Cohort     string      `json:"cohort" db:"cohort"`
	BeforeID   string      `json:"before_id" db:"before_id"`
	AfterID    string      `json:"after_id" db:"after_id"`
	Origin     MatchOrigin `json:"origin" db:"origin"`
	Confidence *float64    `json:"confidence" db:"confidence"`
	MatchedAt  time.Time   `json:"matched_at" db:"matched_at"`
	MatchedBy  string      `json:"matched_by" db:"matched_by"`
	Notes      string      `json:"notes,omitempty" db:"notes"`
}
