// Command cohortctl imports survey exports, matches respondents and reports
// change metrics from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ignite/cohort-match/internal/app"
	"github.com/ignite/cohort-match/internal/config"
	"github.com/ignite/cohort-match/internal/pkg/logger"
	"github.com/spf13/cobra"
)

// cliEnv is shared by all subcommands. The application is built on first
// use unless a test has already provided one.
type cliEnv struct {
	configPath string
	memory     bool
	logLevel   string
	jsonOut    bool

	app *app.App
}

func (e *cliEnv) load(ctx context.Context) error {
	if e.app != nil {
		return nil
	}
	cfg, err := config.LoadFromEnv(e.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	level := cfg.Logging.Level
	if e.logLevel != "" {
		level = e.logLevel
	}
	logger.Configure(level, cfg.Logging.Redact())

	a, err := app.New(ctx, cfg, app.Options{Memory: e.memory})
	if err != nil {
		return err
	}
	e.app = a
	return nil
}

func (e *cliEnv) close() {
	if e.app != nil {
		e.app.Close()
	}
}

// printJSON writes v indented.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(env *cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:   "cohortctl",
		Short: "Match before/after survey respondents and report change metrics",
		Long: `cohortctl pairs anonymous respondents of a BEFORE questionnaire with the
same people in an AFTER questionnaire, cohort by cohort, and reports how
their confidence changed.

Respondents are matched by normalized email first and by name similarity
second. Pairings an operator confirms by hand are recorded in the manual
override file and can be replayed after the database is rebuilt.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.load(cmd.Context())
		},
	}

	root.PersistentFlags().StringVarP(&env.configPath, "config", "c", "config/config.yaml", "Config file path")
	root.PersistentFlags().BoolVar(&env.memory, "memory", false, "Keep respondents and pairings in memory for this run only")
	root.PersistentFlags().StringVar(&env.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&env.jsonOut, "json", false, "Print results as JSON")

	root.AddCommand(newImportCmd(env))
	root.AddCommand(newMatchCmd(env))
	root.AddCommand(newPairCmd(env))
	root.AddCommand(newUnmatchedCmd(env))
	root.AddCommand(newCohortCmd(env))
	root.AddCommand(newStatsCmd(env))
	root.AddCommand(newAnalyzeCmd(env))
	root.AddCommand(newPipelineCmd(env))
	root.AddCommand(newOverridesCmd(env))
	return root
}

func main() {
	env := &cliEnv{}
	defer env.close()

	if err := newRootCmd(env).ExecuteContext(context.Background()); err != nil {
		env.close()
		os.Exit(1)
	}
}
