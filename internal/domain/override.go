package domain

import (
	"strings"
	"time"
)

// RespondentRef is the content-level identity of one side of a manual match.
// It deliberately carries no database id.
type RespondentRef struct {
	Cohort string `json:"cohort"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// RefOf returns the content reference for a stored respondent.
func RefOf(r *Respondent) RespondentRef {
	return RespondentRef{Cohort: r.Cohort, Email: r.RawEmail, Name: r.DisplayName}
}

// OverrideKey is the lookup key of a manual override: the BEFORE side's
// cohort, response timestamp, normalized email and name.
type OverrideKey struct {
	Cohort          string
	Timestamp       *time.Time
	NormalizedEmail string
	Name            string
}

// NewOverrideKey normalizes the inputs the same way on save and on lookup.
func NewOverrideKey(cohort string, ts *time.Time, email, name string) OverrideKey {
	return OverrideKey{
		Cohort:          strings.TrimSpace(cohort),
		Timestamp:       ts,
		NormalizedEmail: NormalizeEmail(email),
		Name:            strings.TrimSpace(name),
	}
}

// ManualOverrideEntry is an operator-confirmed pairing recorded by content so
// it can be replayed after the relational store is rebuilt.
type ManualOverrideEntry struct {
	BeforeCohort    string     `json:"before_cohort"`
	BeforeTimestamp *time.Time `json:"before_timestamp"`
	BeforeEmail     string     `json:"before_email"`
	BeforeName      string     `json:"before_name"`
	AfterCohort     string     `json:"after_cohort"`
	AfterTimestamp  *time.Time `json:"after_timestamp"`
	AfterEmail      string     `json:"after_email"`
	AfterName       string     `json:"after_name"`
	Notes           string     `json:"notes"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       *time.Time `json:"created_at"`
}

// Key returns the entry's lookup key.
func (e ManualOverrideEntry) Key() OverrideKey {
	return NewOverrideKey(e.BeforeCohort, e.BeforeTimestamp, e.BeforeEmail, e.BeforeName)
}

// AfterKey returns the key-shaped tuple of the AFTER side, used to locate the
// AFTER respondent when an entry is replayed.
func (e ManualOverrideEntry) AfterKey() OverrideKey {
	return NewOverrideKey(e.AfterCohort, e.AfterTimestamp, e.AfterEmail, e.AfterName)
}

// LocalDateTimeLayout is the ISO-8601 local date-time form of override
// timestamps. Zone and offset are not part of it.
const LocalDateTimeLayout = "2006-01-02T15:04:05.999999999"

// FormatLocalDateTime renders the wall-clock reading of t, or "" for nil.
func FormatLocalDateTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(LocalDateTimeLayout)
}

// Equal compares two keys the way the override file stores them: timestamps
// by wall-clock reading, whatever their location.
func (k OverrideKey) Equal(o OverrideKey) bool {
	if k.Cohort != o.Cohort || k.NormalizedEmail != o.NormalizedEmail || k.Name != o.Name {
		return false
	}
	if k.Timestamp == nil || o.Timestamp == nil {
		return k.Timestamp == nil && o.Timestamp == nil
	}
	return FormatLocalDateTime(k.Timestamp) == FormatLocalDateTime(o.Timestamp)
}
