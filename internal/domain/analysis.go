package domain

import "strconv"

// Average is a rounded mean. HasData is false when no value contributed,
// which keeps "no responses" distinguishable from an average of exactly 0.
type Average struct {
	Value   float64
	HasData bool
}

// NoData is the sentinel average over zero present values.
var NoData = Average{}

// MarshalJSON renders the value with two decimals, or null for NoData.
func (a Average) MarshalJSON() ([]byte, error) {
	if !a.HasData {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(a.Value, 'f', 2, 64)), nil
}

// UnmarshalJSON accepts a number or null.
func (a *Average) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*a = NoData
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*a = Average{Value: v, HasData: true}
	return nil
}

func (a Average) String() string {
	if !a.HasData {
		return "n/a"
	}
	return strconv.FormatFloat(a.Value, 'f', 2, 64)
}

// SituationValues holds one situation's before/after answers for a pair.
type SituationValues struct {
	Before *float64 `json:"before"`
	After  *float64 `json:"after"`
	Delta  *float64 `json:"delta"`
}

// MatchedPairMetrics is derived on demand from a pairing and its two responses.
type MatchedPairMetrics struct {
	PairingID      string                     `json:"pairing_id"`
	Cohort         string                     `json:"cohort"`
	RespondentName string                     `json:"respondent_name"`
	Origin         MatchOrigin                `json:"origin"`
	Before         *float64                   `json:"before"`
	After          *float64                   `json:"after"`
	Delta          *float64                   `json:"delta"`
	Situations     map[string]SituationValues `json:"situations,omitempty"`
}

// MetricSummary aggregates one tracked metric across pairs.
type MetricSummary struct {
	Before Average `json:"before_average"`
	After  Average `json:"after_average"`
	Delta  Average `json:"delta_average"`
}

// SituationSummary is a MetricSummary for one named situation.
type SituationSummary struct {
	Situation string `json:"situation"`
	MetricSummary
}

// CohortSummary is a MetricSummary restricted to one cohort.
type CohortSummary struct {
	Cohort       string `json:"cohort"`
	Pairings     int    `json:"pairings"`
	MatchedPairs int    `json:"matched_pairs"`
	MetricSummary
}

// AnalysisResult is the output of a change-metrics run.
type AnalysisResult struct {
	BeforeRespondents int                  `json:"before_respondents"`
	AfterRespondents  int                  `json:"after_respondents"`
	TotalPairings     int                  `json:"total_pairings"`
	MatchedPairs      int                  `json:"matched_pairs"`
	Cohorts           []string             `json:"cohorts"`
	Overall           MetricSummary        `json:"overall"`
	Situations        []SituationSummary   `json:"situations"`
	ByCohort          []CohortSummary      `json:"by_cohort"`
	Pairs             []MatchedPairMetrics `json:"pairs"`
}
