package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/logger"
)

// Service implements respondent matching. It holds no state between calls;
// callers must not run RunAutoMatch concurrently (see distlock.AutoMatchKey).
type Service struct {
	people    PersonRepository
	matches   MatchRepository
	responses ResponseRepository
	tx        TxRunner
	overrides OverrideStore
	now       func() time.Time
}

// NewService creates a matching service. overrides may be nil, in which case
// manual pairings are not mirrored and RestoreOverrides is unavailable.
func NewService(people PersonRepository, matches MatchRepository, responses ResponseRepository, tx TxRunner, overrides OverrideStore) *Service {
	return &Service{
		people:    people,
		matches:   matches,
		responses: responses,
		tx:        tx,
		overrides: overrides,
		now:       time.Now,
	}
}

// AutoMatchResult counts the pairings created by one automatic run.
type AutoMatchResult struct {
	EmailMatches int `json:"email_matches"`
	NameMatches  int `json:"name_matches"`
}

// Total returns the number of pairings created.
func (r AutoMatchResult) Total() int { return r.EmailMatches + r.NameMatches }

// RunAutoMatch pairs unmatched respondents cohort by cohort. The run is one
// transaction: on any repository failure nothing is kept and the error is
// returned as a domain.StorageError.
func (s *Service) RunAutoMatch(ctx context.Context) (AutoMatchResult, error) {
	start := s.now()
	var result AutoMatchResult

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		result = AutoMatchResult{}

		befores, err := s.people.FindUnmatched(ctx, domain.SideBefore)
		if err != nil {
			return fmt.Errorf("find unmatched before: %w", err)
		}
		afters, err := s.people.FindUnmatched(ctx, domain.SideAfter)
		if err != nil {
			return fmt.Errorf("find unmatched after: %w", err)
		}

		beforeByCohort, order := partitionByCohort(befores)
		afterByCohort, _ := partitionByCohort(afters)

		for _, cohort := range order {
			pool := afterByCohort[cohort]
			if len(pool) == 0 {
				continue
			}
			r, err := s.matchCohort(ctx, cohort, beforeByCohort[cohort], pool)
			if err != nil {
				return err
			}
			result.EmailMatches += r.EmailMatches
			result.NameMatches += r.NameMatches
		}
		return nil
	})
	if err != nil {
		logger.Error("[matching] auto-match rolled back", "error", err.Error())
		return AutoMatchResult{}, domain.NewStorageError("match.run", err)
	}

	logger.Info("[matching] auto-match complete",
		"email_matches", result.EmailMatches,
		"name_matches", result.NameMatches,
		"duration_ms", s.now().Sub(start).Milliseconds())
	return result, nil
}

// partitionByCohort groups respondents by cohort, keeping repository order
// inside each group and returning cohorts in first-seen order. Respondents
// that need a manual match are left out.
func partitionByCohort(rs []domain.Respondent) (map[string][]domain.Respondent, []string) {
	groups := make(map[string][]domain.Respondent)
	var order []string
	for _, r := range rs {
		if r.RequiresManualMatch {
			continue
		}
		if _, seen := groups[r.Cohort]; !seen {
			order = append(order, r.Cohort)
		}
		groups[r.Cohort] = append(groups[r.Cohort], r)
	}
	return groups, order
}

// matchCohort runs both phases over one cohort's pools. Pools are read-only
// snapshots; a respondent leaves its pool by being marked used.
func (s *Service) matchCohort(ctx context.Context, cohort string, befores, afters []domain.Respondent) (AutoMatchResult, error) {
	var result AutoMatchResult
	beforeUsed := make([]bool, len(befores))
	afterUsed := make([]bool, len(afters))

	// Phase 1: exact normalized email. First unused AFTER with the same
	// address wins.
	for i := range befores {
		b := &befores[i]
		if b.NormalizedEmail == "" {
			continue
		}
		for j := range afters {
			a := &afters[j]
			if afterUsed[j] || a.NormalizedEmail != b.NormalizedEmail {
				continue
			}
			created, err := s.insertAuto(ctx, cohort, b, a, domain.OriginAutoEmail, 1.0)
			if err != nil {
				return result, err
			}
			if created {
				result.EmailMatches++
			}
			beforeUsed[i], afterUsed[j] = true, true
			break
		}
	}

	// Phase 2: fuzzy name over what is left. The strictly highest score at
	// or above the threshold wins; on a tie the first candidate seen stays.
	afterNames := make([]string, len(afters))
	for j := range afters {
		afterNames[j] = domain.NormalizeName(afters[j].DisplayName)
	}
	for i := range befores {
		if beforeUsed[i] {
			continue
		}
		b := &befores[i]
		name := domain.NormalizeName(b.DisplayName)
		if name == "" {
			continue
		}

		best, bestScore := -1, 0.0
		for j := range afters {
			if afterUsed[j] {
				continue
			}
			score := similarity(name, afterNames[j])
			if score >= NameThreshold && score > bestScore {
				best, bestScore = j, score
			}
		}
		if best < 0 {
			continue
		}

		created, err := s.insertAuto(ctx, cohort, b, &afters[best], domain.OriginAutoName, bestScore)
		if err != nil {
			return result, err
		}
		if created {
			result.NameMatches++
		}
		beforeUsed[i], afterUsed[best] = true, true
	}

	logger.Debug("[matching] cohort matched", "cohort", cohort,
		"email_matches", result.EmailMatches, "name_matches", result.NameMatches)
	return result, nil
}

// insertAuto stores an automatic pairing unless one already exists for the
// same two respondents.
func (s *Service) insertAuto(ctx context.Context, cohort string, b, a *domain.Respondent, origin domain.MatchOrigin, confidence float64) (bool, error) {
	exists, err := s.matches.Exists(ctx, b.ID, a.ID)
	if err != nil {
		return false, fmt.Errorf("check pairing: %w", err)
	}
	if exists {
		return false, nil
	}

	p := &domain.Pairing{
		Cohort:     cohort,
		BeforeID:   b.ID,
		AfterID:    a.ID,
		Origin:     origin,
		Confidence: &confidence,
		MatchedAt:  s.now(),
		MatchedBy:  domain.SystemMatcher,
	}
	if err := s.matches.Insert(ctx, p); err != nil {
		return false, fmt.Errorf("insert %s pairing: %w", origin, err)
	}
	return true, nil
}

// CreateManualPairing records an operator's decision that beforeID and
// afterID are the same person. Existing automatic pairings of either
// respondent are not consulted. When an override store is configured the
// override is written first, so a failure between the two writes leaves a
// replayable override rather than an unrecorded pairing.
func (s *Service) CreateManualPairing(ctx context.Context, beforeID, afterID, createdBy, notes string) (*domain.Pairing, error) {
	before, err := s.people.FindByID(ctx, beforeID)
	if err != nil {
		return nil, domain.NewStorageError("match.manual", err)
	}
	after, err := s.people.FindByID(ctx, afterID)
	if err != nil {
		return nil, domain.NewStorageError("match.manual", err)
	}
	if before.Side != domain.SideBefore {
		return nil, fmt.Errorf("%w: %s is a %s respondent", ErrWrongSide, before.ID, before.Side)
	}
	if after.Side != domain.SideAfter {
		return nil, fmt.Errorf("%w: %s is a %s respondent", ErrWrongSide, after.ID, after.Side)
	}

	exists, err := s.matches.Exists(ctx, before.ID, after.ID)
	if err != nil {
		return nil, domain.NewStorageError("match.manual", err)
	}
	if exists {
		return nil, ErrDuplicatePairing
	}

	createdBy = strings.TrimSpace(createdBy)
	if s.overrides != nil {
		if err := s.saveOverride(ctx, before, after, notes, createdBy); err != nil {
			return nil, err
		}
	}

	p := &domain.Pairing{
		Cohort:    pairingCohort(before, after),
		BeforeID:  before.ID,
		AfterID:   after.ID,
		Origin:    domain.OriginManual,
		MatchedAt: s.now(),
		MatchedBy: createdBy,
		Notes:     notes,
	}
	if err := s.matches.Insert(ctx, p); err != nil {
		return nil, domain.NewStorageError("match.manual", err)
	}

	logger.Info("[matching] manual pairing created",
		"pairing_id", p.ID, "cohort", p.Cohort, "created_by", createdBy)
	return p, nil
}

func (s *Service) saveOverride(ctx context.Context, before, after *domain.Respondent, notes, createdBy string) error {
	beforeTS, err := s.responseTime(ctx, before.ID)
	if err != nil {
		return domain.NewStorageError("match.manual", err)
	}
	afterTS, err := s.responseTime(ctx, after.ID)
	if err != nil {
		return domain.NewStorageError("match.manual", err)
	}
	if _, err := s.overrides.Save(ctx, domain.RefOf(before), beforeTS, domain.RefOf(after), afterTS, notes, createdBy); err != nil {
		return domain.NewStorageError("match.manual.override", err)
	}
	return nil
}

// pairingCohort labels a manual pairing with the BEFORE cohort, falling back
// to the AFTER cohort when the BEFORE respondent has none.
func pairingCohort(before, after *domain.Respondent) string {
	if before.Cohort == domain.UnknownCohort && after.Cohort != "" {
		return after.Cohort
	}
	return before.Cohort
}

// responseTime returns the submission time of a respondent's response, or
// nil when none is stored.
func (s *Service) responseTime(ctx context.Context, respondentID string) (*time.Time, error) {
	resp, err := s.responses.FindByRespondentID(ctx, respondentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ts := resp.SubmittedAt
	return &ts, nil
}

// Unmatched lists respondents of side that have no pairing, including those
// that can only be matched by hand.
func (s *Service) Unmatched(ctx context.Context, side domain.SurveySide) ([]domain.Respondent, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: side %q", domain.ErrInvalidArgument, side)
	}
	rs, err := s.people.FindUnmatched(ctx, side)
	if err != nil {
		return nil, domain.NewStorageError("match.unmatched", err)
	}
	return rs, nil
}

// PairingsByCohort lists the pairings of one cohort.
func (s *Service) PairingsByCohort(ctx context.Context, cohort string) ([]domain.Pairing, error) {
	cohort = strings.TrimSpace(cohort)
	if cohort == "" {
		return nil, fmt.Errorf("%w: cohort is required", domain.ErrInvalidArgument)
	}
	ps, err := s.matches.FindByCohort(ctx, cohort)
	if err != nil {
		return nil, domain.NewStorageError("match.by_cohort", err)
	}
	return ps, nil
}

// Stats summarizes matching progress.
type Stats struct {
	TotalPairings    int                        `json:"total_pairings"`
	ByOrigin         map[domain.MatchOrigin]int `json:"by_origin"`
	UnmatchedBefore  int                        `json:"unmatched_before"`
	UnmatchedAfter   int                        `json:"unmatched_after"`
	ManualOnlyBefore int                        `json:"manual_only_before"`
	ManualOnlyAfter  int                        `json:"manual_only_after"`
}

// Stats counts pairings by origin and respondents still unmatched.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	byOrigin, err := s.matches.CountByOrigin(ctx)
	if err != nil {
		return nil, domain.NewStorageError("match.stats", err)
	}
	stats := &Stats{ByOrigin: make(map[domain.MatchOrigin]int)}
	for _, o := range []domain.MatchOrigin{domain.OriginAutoEmail, domain.OriginAutoName, domain.OriginManual} {
		stats.ByOrigin[o] = byOrigin[o]
		stats.TotalPairings += byOrigin[o]
	}

	for _, side := range []domain.SurveySide{domain.SideBefore, domain.SideAfter} {
		rs, err := s.people.FindUnmatched(ctx, side)
		if err != nil {
			return nil, domain.NewStorageError("match.stats", err)
		}
		manual := 0
		for _, r := range rs {
			if r.RequiresManualMatch {
				manual++
			}
		}
		if side == domain.SideBefore {
			stats.UnmatchedBefore, stats.ManualOnlyBefore = len(rs), manual
		} else {
			stats.UnmatchedAfter, stats.ManualOnlyAfter = len(rs), manual
		}
	}
	return stats, nil
}
