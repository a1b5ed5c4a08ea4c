package domain

import "time"

// Response is one submitted questionnaire. Confidence is the primary tracked
// metric; Situations holds the per-situation sub-metrics that were answered.
// A missing answer is a missing key (or nil Confidence), never a zero.
type Response struct {
	ID              string             `json:"id" db:"id"`
	RespondentID    string             `json:"respondent_id" db:"respondent_id"`
	Side            SurveySide         `json:"side" db:"side"`
	Cohort          string             `json:"cohort" db:"cohort"`
	SubmittedAt     time.Time          `json:"submitted_at" db:"submitted_at"`
	Name            string             `json:"name" db:"name"`
	NormalizedEmail string             `json:"normalized_email" db:"normalized_email"`
	Confidence      *float64           `json:"confidence" db:"confidence"`
	Situations      map[string]float64 `json:"situations,omitempty" db:"situations"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
}
