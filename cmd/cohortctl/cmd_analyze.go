package main

import (
	"fmt"
	"io"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/report"
	"github.com/spf13/cobra"
)

func printAnalysis(w io.Writer, res *domain.AnalysisResult, asJSON bool) error {
	if asJSON {
		return printJSON(w, res)
	}
	renderer, err := report.NewRenderer()
	if err != nil {
		return err
	}
	text, err := renderer.Text(res)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

func newAnalyzeCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze",
		Short: "Report confidence change across all pairings",
		Long: `Compute before, after and change averages over every pairing, overall,
per situation and per cohort. Averages are rounded half-up to two
decimals; a metric without any answers is shown as n/a.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := env.app.Analyzer.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			return printAnalysis(cmd.OutOrStdout(), res, env.jsonOut)
		},
	}
}

func newPipelineCmd(env *cliEnv) *cobra.Command {
	var beforePath, afterPath string
	var noRestore bool

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Import both exports, match and analyze in one run",
		Long: `Import the BEFORE and AFTER exports, replay the manual override file,
match automatically and print the change report. Combined with --memory
this needs no database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, in := range []struct {
				side domain.SurveySide
				path string
			}{{domain.SideBefore, beforePath}, {domain.SideAfter, afterPath}} {
				result, rejected, err := importFile(cmd, env, in.side, in.path)
				if err != nil {
					return fmt.Errorf("import %s: %w", in.side, err)
				}
				if !env.jsonOut {
					printImport(w, in.side, result, rejected)
				}
			}

			outcome, err := runMatch(cmd.Context(), env, !noRestore)
			if err != nil {
				return err
			}
			if !env.jsonOut {
				if outcome.Restored != nil {
					fmt.Fprintf(w, "restored %d manual pairings\n", outcome.Restored.Restored)
				}
				fmt.Fprintf(w, "matched %d pairs: %d by email, %d by name\n\n",
					outcome.Matched.Total(), outcome.Matched.EmailMatches, outcome.Matched.NameMatches)
			}

			res, err := env.app.Analyzer.Analyze(cmd.Context())
			if err != nil {
				return err
			}
			return printAnalysis(w, res, env.jsonOut)
		},
	}
	cmd.Flags().StringVar(&beforePath, "before", "", "BEFORE export (CSV)")
	cmd.Flags().StringVar(&afterPath, "after", "", "AFTER export (CSV)")
	cmd.Flags().BoolVar(&noRestore, "no-restore", false, "Do not replay the manual override file")
	_ = cmd.MarkFlagRequired("before")
	_ = cmd.MarkFlagRequired("after")
	return cmd
}
