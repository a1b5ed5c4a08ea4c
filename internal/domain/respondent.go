package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// SurveySide identifies which questionnaire a respondent answered.
type SurveySide string

const (
	SideBefore SurveySide = "before"
	SideAfter  SurveySide = "after"
)

// Valid reports whether s is one of the two known sides.
func (s SurveySide) Valid() bool {
	return s == SideBefore || s == SideAfter
}

// ParseSurveySide accepts "before"/"pre" and "after"/"post" in any case.
func ParseSurveySide(raw string) (SurveySide, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "before", "pre":
		return SideBefore, nil
	case "after", "post":
		return SideAfter, nil
	}
	return "", fmt.Errorf("%w: unknown survey side %q", ErrInvalidArgument, raw)
}

// UnknownCohort is assigned to rows whose cohort could not be determined.
// Respondents in it are never matched automatically.
const UnknownCohort = "unknown cohort"

// Respondent is one anonymous person as seen by a single questionnaire.
type Respondent struct {
	ID                  string     `json:"id" db:"id"`
	Cohort              string     `json:"cohort" db:"cohort"`
	Side                SurveySide `json:"side" db:"side"`
	RawEmail            string     `json:"raw_email" db:"raw_email"`
	NormalizedEmail     string     `json:"normalized_email" db:"normalized_email"`
	DisplayName         string     `json:"display_name" db:"display_name"`
	RequiresManualMatch bool       `json:"requires_manual_match" db:"requires_manual_match"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// NewRespondent builds a respondent with derived fields filled in.
func NewRespondent(cohort string, side SurveySide, email, name string) *Respondent {
	cohort = NormalizeCohort(cohort)
	return &Respondent{
		Cohort:              cohort,
		Side:                side,
		RawEmail:            email,
		NormalizedEmail:     NormalizeEmail(email),
		DisplayName:         strings.TrimSpace(name),
		RequiresManualMatch: cohort == UnknownCohort,
	}
}

// NormalizeEmail lower-cases an address and strips all whitespace.
// A blank address normalizes to "".
func NormalizeEmail(email string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, email)
	return strings.ToLower(stripped)
}

// NormalizeCohort trims a cohort label; blank labels become UnknownCohort.
func NormalizeCohort(cohort string) string {
	cohort = strings.TrimSpace(cohort)
	if cohort == "" {
		return UnknownCohort
	}
	return cohort
}

// NormalizeName returns the comparison form of a display name: NFC-composed,
// trimmed and case-folded. It is never stored.
func NormalizeName(name string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}
