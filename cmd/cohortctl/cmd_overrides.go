package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/distlock"
	"github.com/ignite/cohort-match/internal/service/matching"
	"github.com/spf13/cobra"
)

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cohortctl"
}

func newOverridesCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "overrides",
		Short: "Inspect and replay the manual override file",
	}
	cmd.AddCommand(newOverridesListCmd(env))
	cmd.AddCommand(newOverridesRestoreCmd(env))
	return cmd
}

func newOverridesListCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded manual pairings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := env.app.Overrides.AllEntries(cmd.Context())
			if err != nil {
				return err
			}

			if env.jsonOut {
				if entries == nil {
					entries = []domain.ManualOverrideEntry{}
				}
				return printJSON(cmd.OutOrStdout(), entries)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "BEFORE COHORT\tBEFORE\tAFTER COHORT\tAFTER\tBY\tAT")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.BeforeCohort, who(e.BeforeName, e.BeforeEmail),
					e.AfterCohort, who(e.AfterName, e.AfterEmail),
					e.CreatedBy, when(e.CreatedAt))
			}
			return tw.Flush()
		},
	}
}

func who(name, email string) string {
	switch {
	case name == "":
		return email
	case email == "":
		return name
	}
	return name + " <" + email + ">"
}

func when(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func newOverridesRestoreCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Re-create manual pairings from the override file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result matching.RestoreResult
			err := distlock.WithLock(cmd.Context(), env.app.Lock(distlock.AutoMatchKey), func(ctx context.Context) error {
				var err error
				result, err = env.app.Matcher.RestoreOverrides(ctx)
				return err
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if env.jsonOut {
				return printJSON(w, result)
			}
			fmt.Fprintf(w, "restored %d manual pairings (%d without an AFTER respondent)\n", result.Restored, result.Missing)
			return nil
		},
	}
}
