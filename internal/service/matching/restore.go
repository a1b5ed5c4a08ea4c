package matching

import (
	"context"
	"fmt"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/logger"
)

// RestoreResult counts the outcome of replaying the override store.
type RestoreResult struct {
	// Restored is the number of manual pairings re-created.
	Restored int `json:"restored"`
	// Missing is the number of entries whose BEFORE respondent was found but
	// whose AFTER respondent was not among the unmatched.
	Missing int `json:"missing"`
}

// candidate is an unmatched respondent with its response time resolved.
type candidate struct {
	r   *domain.Respondent
	key domain.OverrideKey
}

// RestoreOverrides re-creates manual pairings from the override store for
// respondents that are currently unmatched, typically after the relational
// store has been rebuilt from the original exports. It runs in one
// transaction.
func (s *Service) RestoreOverrides(ctx context.Context) (RestoreResult, error) {
	if s.overrides == nil {
		return RestoreResult{}, ErrNoOverrideStore
	}

	entries, err := s.overrides.AllEntries(ctx)
	if err != nil {
		return RestoreResult{}, domain.NewStorageError("match.restore", err)
	}
	if len(entries) == 0 {
		return RestoreResult{}, nil
	}

	var result RestoreResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		result = RestoreResult{}

		befores, err := s.candidates(ctx, domain.SideBefore)
		if err != nil {
			return err
		}
		afters, err := s.candidates(ctx, domain.SideAfter)
		if err != nil {
			return err
		}
		afterUsed := make([]bool, len(afters))

		for _, b := range befores {
			entry := findEntry(entries, b.key)
			if entry == nil {
				continue
			}

			want := entry.AfterKey()
			idx := -1
			for j := range afters {
				if !afterUsed[j] && afters[j].key.Equal(want) {
					idx = j
					break
				}
			}
			if idx < 0 {
				result.Missing++
				logger.Warn("[matching] override has no unmatched after respondent",
					"cohort", entry.AfterCohort, "after_email", entry.AfterEmail)
				continue
			}
			a := afters[idx].r

			exists, err := s.matches.Exists(ctx, b.r.ID, a.ID)
			if err != nil {
				return fmt.Errorf("check pairing: %w", err)
			}
			afterUsed[idx] = true
			if exists {
				continue
			}

			matchedAt := s.now()
			if entry.CreatedAt != nil {
				matchedAt = *entry.CreatedAt
			}
			p := &domain.Pairing{
				Cohort:    pairingCohort(b.r, a),
				BeforeID:  b.r.ID,
				AfterID:   a.ID,
				Origin:    domain.OriginManual,
				MatchedAt: matchedAt,
				MatchedBy: entry.CreatedBy,
				Notes:     entry.Notes,
			}
			if err := s.matches.Insert(ctx, p); err != nil {
				return fmt.Errorf("insert restored pairing: %w", err)
			}
			result.Restored++
		}
		return nil
	})
	if err != nil {
		return RestoreResult{}, domain.NewStorageError("match.restore", err)
	}

	logger.Info("[matching] overrides restored", "restored", result.Restored, "missing", result.Missing)
	return result, nil
}

func (s *Service) candidates(ctx context.Context, side domain.SurveySide) ([]candidate, error) {
	rs, err := s.people.FindUnmatched(ctx, side)
	if err != nil {
		return nil, fmt.Errorf("find unmatched %s: %w", side, err)
	}
	out := make([]candidate, 0, len(rs))
	for i := range rs {
		ts, err := s.responseTime(ctx, rs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("response of %s: %w", rs[i].ID, err)
		}
		out = append(out, candidate{
			r:   &rs[i],
			key: domain.NewOverrideKey(rs[i].Cohort, ts, rs[i].RawEmail, rs[i].DisplayName),
		})
	}
	return out, nil
}

// findEntry returns the last entry with key k; later entries shadow earlier
// ones.
func findEntry(entries []domain.ManualOverrideEntry, k domain.OverrideKey) *domain.ManualOverrideEntry {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Key().Equal(k) {
			return &entries[i]
		}
	}
	return nil
}
