package report

import (
	"testing"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func avg(v float64) domain.Average { return domain.Average{Value: v, HasData: true} }

func TestRenderer_Text(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Text(&domain.AnalysisResult{
		BeforeRespondents: 12,
		AfterRespondents:  10,
		TotalPairings:     9,
		MatchedPairs:      8,
		Overall:           domain.MetricSummary{Before: avg(2.5), After: avg(3.75), Delta: avg(1.25)},
		Situations: []domain.SituationSummary{
			{Situation: "presenting", MetricSummary: domain.MetricSummary{Before: avg(2), After: avg(1.5), Delta: avg(-0.5)}},
			{Situation: "networking", MetricSummary: domain.MetricSummary{Before: avg(3), After: domain.NoData, Delta: domain.NoData}},
		},
		ByCohort: []domain.CohortSummary{
			{Cohort: "C1", Pairings: 9, MatchedPairs: 8, MetricSummary: domain.MetricSummary{Before: avg(2.5), After: avg(3.75), Delta: avg(1.25)}},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Respondents: 12 before, 10 after")
	assert.Contains(t, out, "9 (8 with both responses)")
	assert.Contains(t, out, "before 2.50  after 3.75  change +1.25")
	assert.Contains(t, out, "change -0.50")
	assert.Contains(t, out, "after n/a  change n/a")
	assert.Contains(t, out, "8/9 pairs")
}

func TestRenderer_EmptyResult(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Text(&domain.AnalysisResult{})
	require.NoError(t, err)
	assert.Contains(t, out, "before n/a  after n/a  change n/a")
	assert.NotContains(t, out, "Situations")
	assert.NotContains(t, out, "Cohorts")
}
