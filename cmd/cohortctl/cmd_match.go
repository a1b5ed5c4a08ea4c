package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/distlock"
	"github.com/ignite/cohort-match/internal/service/matching"
	"github.com/spf13/cobra"
)

type matchOutcome struct {
	Restored *matching.RestoreResult  `json:"restored,omitempty"`
	Matched  matching.AutoMatchResult `json:"matched"`
}

// runMatch replays overrides when asked and then auto-matches, holding the
// single-flight lock for both.
func runMatch(ctx context.Context, env *cliEnv, restore bool) (matchOutcome, error) {
	var out matchOutcome
	err := distlock.WithLock(ctx, env.app.Lock(distlock.AutoMatchKey), func(ctx context.Context) error {
		if restore {
			r, err := env.app.Matcher.RestoreOverrides(ctx)
			if err != nil {
				return err
			}
			out.Restored = &r
		}
		m, err := env.app.Matcher.RunAutoMatch(ctx)
		if err != nil {
			return err
		}
		out.Matched = m
		return nil
	})
	if errors.Is(err, distlock.ErrNotAcquired) {
		return out, fmt.Errorf("another matching run is in progress: %w", err)
	}
	return out, err
}

func newMatchCmd(env *cliEnv) *cobra.Command {
	var restore, noRestore bool

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Pair unmatched respondents automatically",
		Long: `Pair unmatched BEFORE and AFTER respondents cohort by cohort: first by
normalized email, then by name similarity of at least 0.80. Respondents
without a known cohort are left for manual pairing.

With --restore (or matching.restore_overrides in the config) the manual
override file is replayed first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doRestore := (restore || env.app.Config.Matching.RestoreOverrides) && !noRestore
			outcome, err := runMatch(cmd.Context(), env, doRestore)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if env.jsonOut {
				return printJSON(w, outcome)
			}
			if outcome.Restored != nil {
				fmt.Fprintf(w, "restored %d manual pairings (%d without an AFTER respondent)\n",
					outcome.Restored.Restored, outcome.Restored.Missing)
			}
			fmt.Fprintf(w, "matched %d pairs: %d by email, %d by name\n",
				outcome.Matched.Total(), outcome.Matched.EmailMatches, outcome.Matched.NameMatches)
			return nil
		},
	}
	cmd.Flags().BoolVar(&restore, "restore", false, "Replay the manual override file before matching")
	cmd.Flags().BoolVar(&noRestore, "no-restore", false, "Skip replaying overrides even if the config enables it")
	return cmd
}

func newPairCmd(env *cliEnv) *cobra.Command {
	var createdBy, notes string

	cmd := &cobra.Command{
		Use:   "pair <before-id> <after-id>",
		Short: "Record a manual pairing",
		Long: `Pair a BEFORE respondent with an AFTER respondent by hand. The decision is
written to the manual override file before the pairing is stored, so it
survives a database rebuild.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if createdBy == "" {
				createdBy = currentUser()
			}
			var pairing *domain.Pairing
			err := distlock.WithLock(cmd.Context(), env.app.Lock(distlock.OverrideWriteKey), func(ctx context.Context) error {
				var err error
				pairing, err = env.app.Matcher.CreateManualPairing(ctx, args[0], args[1], createdBy, notes)
				return err
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if env.jsonOut {
				return printJSON(w, pairing)
			}
			fmt.Fprintf(w, "paired %s -> %s in %s (id %s)\n", pairing.BeforeID, pairing.AfterID, pairing.Cohort, pairing.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&createdBy, "by", "", "Operator recorded on the pairing (default: $USER)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form note stored with the pairing")
	return cmd
}

func newUnmatchedCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "unmatched <before|after>",
		Short: "List respondents without a pairing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := domain.ParseSurveySide(args[0])
			if err != nil {
				return err
			}
			people, err := env.app.Matcher.Unmatched(cmd.Context(), side)
			if err != nil {
				return err
			}

			if env.jsonOut {
				if people == nil {
					people = []domain.Respondent{}
				}
				return printJSON(cmd.OutOrStdout(), people)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCOHORT\tNAME\tEMAIL\tMANUAL ONLY")
			for _, p := range people {
				manual := ""
				if p.RequiresManualMatch {
					manual = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Cohort, p.DisplayName, p.RawEmail, manual)
			}
			return tw.Flush()
		},
	}
}

func newCohortCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "cohort <name>",
		Short: "List the pairings of one cohort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairings, err := env.app.Matcher.PairingsByCohort(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if env.jsonOut {
				if pairings == nil {
					pairings = []domain.Pairing{}
				}
				return printJSON(cmd.OutOrStdout(), pairings)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BEFORE\tAFTER\tORIGIN\tCONFIDENCE\tMATCHED BY")
			for _, p := range pairings {
				conf := "-"
				if p.Confidence != nil {
					conf = fmt.Sprintf("%.2f", *p.Confidence)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.BeforeID, p.AfterID, p.Origin, conf, p.MatchedBy)
			}
			return tw.Flush()
		},
	}
}

func newStatsCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pairings by origin and unmatched counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := env.app.Matcher.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if env.jsonOut {
				return printJSON(w, stats)
			}
			var origins []string
			for _, o := range []domain.MatchOrigin{domain.OriginAutoEmail, domain.OriginAutoName, domain.OriginManual} {
				origins = append(origins, fmt.Sprintf("%s %d", o, stats.ByOrigin[o]))
			}
			fmt.Fprintf(w, "pairings:  %d (%s)\n", stats.TotalPairings, strings.Join(origins, ", "))
			fmt.Fprintf(w, "unmatched: %d before (%d manual only), %d after (%d manual only)\n",
				stats.UnmatchedBefore, stats.ManualOnlyBefore, stats.UnmatchedAfter, stats.ManualOnlyAfter)
			return nil
		},
	}
}
