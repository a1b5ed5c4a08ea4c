// Package report renders change-metrics results as plain text for the CLI
// and the analysis endpoint.
package report

import (
	"fmt"
	"strings"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/osteele/liquid"
)

const summaryTemplate = `Change metrics
==============
Respondents: {{ before_respondents }} before, {{ after_respondents }} after
Pairings:    {{ total_pairings }} ({{ matched_pairs }} with both responses)

Overall confidence
  before {{ overall.before }}  after {{ overall.after }}  change {{ overall.delta | signed }}
{% if has_situations %}
Situations
{% for s in situations %}  {{ s.name | pad: 24 }} before {{ s.before }}  after {{ s.after }}  change {{ s.delta | signed }}
{% endfor %}{% endif %}{% if has_cohorts %}
Cohorts
{% for c in cohorts %}  {{ c.name | pad: 24 }} {{ c.matched }}/{{ c.pairings }} pairs  before {{ c.before }}  after {{ c.after }}  change {{ c.delta | signed }}
{% endfor %}{% endif %}`

// Renderer turns analysis results into text.
type Renderer struct {
	tpl *liquid.Template
}

// NewRenderer compiles the summary template.
func NewRenderer() (*Renderer, error) {
	engine := liquid.NewEngine()

	// Sign prefix for changes: {{ delta | signed }}
	engine.RegisterFilter("signed", func(s string) string {
		if s == "" || s == domain.NoData.String() || strings.HasPrefix(s, "-") {
			return s
		}
		if strings.Trim(s, "0.") == "" {
			return s
		}
		return "+" + s
	})

	// Left-justify in a column: {{ name | pad: 20 }}
	engine.RegisterFilter("pad", func(s string, width int) string {
		if n := len([]rune(s)); n < width {
			return s + strings.Repeat(" ", width-n)
		}
		return s
	})

	tpl, err := engine.ParseString(summaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("report: parse template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

func metricBindings(m domain.MetricSummary) map[string]interface{} {
	return map[string]interface{}{
		"before": m.Before.String(),
		"after":  m.After.String(),
		"delta":  m.Delta.String(),
	}
}

// Text renders the summary of res.
func (r *Renderer) Text(res *domain.AnalysisResult) (string, error) {
	situations := make([]interface{}, 0, len(res.Situations))
	for _, s := range res.Situations {
		b := metricBindings(s.MetricSummary)
		b["name"] = s.Situation
		situations = append(situations, b)
	}
	cohorts := make([]interface{}, 0, len(res.ByCohort))
	for _, c := range res.ByCohort {
		b := metricBindings(c.MetricSummary)
		b["name"] = c.Cohort
		b["pairings"] = c.Pairings
		b["matched"] = c.MatchedPairs
		cohorts = append(cohorts, b)
	}

	out, err := r.tpl.RenderString(map[string]interface{}{
		"before_respondents": res.BeforeRespondents,
		"after_respondents":  res.AfterRespondents,
		"total_pairings":     res.TotalPairings,
		"matched_pairs":      res.MatchedPairs,
		"overall":            metricBindings(res.Overall),
		"situations":         situations,
		"cohorts":            cohorts,
		"has_situations":     len(situations) > 0,
		"has_cohorts":        len(cohorts) > 0,
	})
	if err != nil {
		return "", fmt.Errorf("report: render: %w", err)
	}
	return out, nil
}
