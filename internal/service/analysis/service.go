package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/logger"
)

// Service computes change metrics.
type Service struct {
	people    RespondentSource
	pairings  PairingSource
	responses ResponseSource
}

// NewService creates an analysis service.
func NewService(people RespondentSource, pairings PairingSource, responses ResponseSource) *Service {
	return &Service{people: people, pairings: pairings, responses: responses}
}

// Analyze joins every pairing to its two responses and aggregates the
// result. Pairings missing either response count toward TotalPairings but
// contribute no metrics.
func (s *Service) Analyze(ctx context.Context) (*domain.AnalysisResult, error) {
	befores, err := s.people.FindAll(ctx, domain.SideBefore)
	if err != nil {
		return nil, domain.NewStorageError("analysis.respondents", err)
	}
	afters, err := s.people.FindAll(ctx, domain.SideAfter)
	if err != nil {
		return nil, domain.NewStorageError("analysis.respondents", err)
	}
	cohorts, err := s.people.FindCohorts(ctx)
	if err != nil {
		return nil, domain.NewStorageError("analysis.cohorts", err)
	}
	pairings, err := s.pairings.FindAll(ctx)
	if err != nil {
		return nil, domain.NewStorageError("analysis.pairings", err)
	}

	result := &domain.AnalysisResult{
		BeforeRespondents: len(befores),
		AfterRespondents:  len(afters),
		TotalPairings:     len(pairings),
		Cohorts:           cohorts,
		Pairs:             []domain.MatchedPairMetrics{},
	}

	var overall summary
	situations := make(map[string]*summary)
	type cohortAgg struct {
		pairings, matched int
		summary
	}
	byCohort := make(map[string]*cohortAgg)
	var cohortOrder []string

	for _, p := range pairings {
		agg, ok := byCohort[p.Cohort]
		if !ok {
			agg = &cohortAgg{}
			byCohort[p.Cohort] = agg
			cohortOrder = append(cohortOrder, p.Cohort)
		}
		agg.pairings++

		m, ok, err := s.pairMetrics(ctx, p)
		if err != nil {
			return nil, domain.NewStorageError("analysis.responses", err)
		}
		if !ok {
			continue
		}
		agg.matched++
		result.Pairs = append(result.Pairs, m)

		overall.add(m.Before, m.After, m.Delta)
		agg.add(m.Before, m.After, m.Delta)
		for name, sv := range m.Situations {
			sum, ok := situations[name]
			if !ok {
				sum = &summary{}
				situations[name] = sum
			}
			sum.add(sv.Before, sv.After, sv.Delta)
		}
	}

	result.MatchedPairs = len(result.Pairs)
	result.Overall = overall.result()

	names := make([]string, 0, len(situations))
	for name := range situations {
		names = append(names, name)
	}
	sort.Strings(names)
	result.Situations = make([]domain.SituationSummary, 0, len(names))
	for _, name := range names {
		result.Situations = append(result.Situations, domain.SituationSummary{
			Situation:     name,
			MetricSummary: situations[name].result(),
		})
	}

	result.ByCohort = make([]domain.CohortSummary, 0, len(cohortOrder))
	for _, c := range cohortOrder {
		agg := byCohort[c]
		result.ByCohort = append(result.ByCohort, domain.CohortSummary{
			Cohort:        c,
			Pairings:      agg.pairings,
			MatchedPairs:  agg.matched,
			MetricSummary: agg.result(),
		})
	}

	logger.Info("[analysis] change metrics computed",
		"pairings", result.TotalPairings, "matched_pairs", result.MatchedPairs,
		"situations", len(result.Situations))
	return result, nil
}

// pairMetrics builds the metrics of one pairing. ok is false when either
// response is missing.
func (s *Service) pairMetrics(ctx context.Context, p domain.Pairing) (domain.MatchedPairMetrics, bool, error) {
	before, err := s.response(ctx, p.BeforeID)
	if err != nil || before == nil {
		return domain.MatchedPairMetrics{}, false, err
	}
	after, err := s.response(ctx, p.AfterID)
	if err != nil || after == nil {
		return domain.MatchedPairMetrics{}, false, err
	}

	name := before.Name
	if name == "" {
		name = after.Name
	}
	m := domain.MatchedPairMetrics{
		PairingID:      p.ID,
		Cohort:         p.Cohort,
		RespondentName: name,
		Origin:         p.Origin,
		Before:         primaryValue(before),
		After:          primaryValue(after),
	}
	m.Delta = delta(m.Before, m.After)

	if len(before.Situations) > 0 || len(after.Situations) > 0 {
		m.Situations = make(map[string]domain.SituationValues)
		for name, v := range before.Situations {
			if !isFinite(v) {
				continue
			}
			v := v
			sv := m.Situations[name]
			sv.Before = &v
			m.Situations[name] = sv
		}
		for name, v := range after.Situations {
			if !isFinite(v) {
				continue
			}
			v := v
			sv := m.Situations[name]
			sv.After = &v
			m.Situations[name] = sv
		}
		for name, sv := range m.Situations {
			sv.Delta = delta(sv.Before, sv.After)
			m.Situations[name] = sv
		}
	}
	return m, true, nil
}

func (s *Service) response(ctx context.Context, respondentID string) (*domain.Response, error) {
	resp, err := s.responses.FindByRespondentID(ctx, respondentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("response of %s: %w", respondentID, err)
	}
	return resp, nil
}

// primaryValue is the response's overall confidence. Without a finite one it
// is the rounded mean of the situations that were answered.
func primaryValue(resp *domain.Response) *float64 {
	if resp.Confidence != nil && isFinite(*resp.Confidence) {
		return resp.Confidence
	}
	var acc accumulator
	for _, v := range resp.Situations {
		v := v
		acc.add(&v)
	}
	mean := acc.average()
	if !mean.HasData {
		return nil
	}
	return &mean.Value
}

func delta(before, after *float64) *float64 {
	if before == nil || after == nil || !isFinite(*before) || !isFinite(*after) {
		return nil
	}
	d := difference(*before, *after)
	return &d
}
