package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/intake"
	"github.com/ignite/cohort-match/internal/service/ingest"
	"github.com/spf13/cobra"
)

func newImportCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "import <before|after> <file.csv>",
		Short: "Import a survey export for one side",
		Long: `Import a CSV export of the BEFORE or AFTER questionnaire. Rows already
stored (same side, cohort, submission time and name or email) are skipped,
so the same export can be imported again safely. Use "-" to read stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := domain.ParseSurveySide(args[0])
			if err != nil {
				return err
			}
			result, rejected, err := importFile(cmd, env, side, args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if env.jsonOut {
				return printJSON(out, map[string]any{"side": side, "result": result, "rejected": rejected})
			}
			printImport(out, side, result, rejected)
			return nil
		},
	}
}

func importFile(cmd *cobra.Command, env *cliEnv, side domain.SurveySide, path string) (ingest.Result, []domain.ParseWarning, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return ingest.Result{}, nil, fmt.Errorf("open export: %w", err)
		}
		defer f.Close()
		r = f
	}
	return intake.Import(cmd.Context(), env.app.Ingester, side, r, env.app.Config.Ingest.SituationPrefix)
}

func printImport(w io.Writer, side domain.SurveySide, result ingest.Result, rejected []domain.ParseWarning) {
	fmt.Fprintf(w, "%s: %d imported, %d skipped, %d failed\n", side, result.Imported, result.Skipped, result.Failed)
	for _, r := range rejected {
		fmt.Fprintf(w, "  rejected %s\n", r)
	}
}
