// Command triage clusters CI test failures by similar failure text and
// serves the clusters over HTTP.
//
// Usage:
//
//	triage summarize BUILDS TESTS... [--previous FILE] [--owners FILE] [--output FILE]
//	triage serve
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/triage/internal/config"
	"github.com/kiranshivaraju/triage/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

const migrationsDir = "migrations"

// app carries state shared by subcommands once the root has loaded it.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var logLevel string

	root := &cobra.Command{
		Use:   "triage",
		Short: "Cluster CI test failures by similar failure text",
		Long: `triage groups failed test cases whose failure messages are nearly
identical, so that one root cause across many tests and jobs shows up as
one cluster.

Settings are read from TRIAGE_* environment variables; see internal/config.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			level, err := logging.ParseLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (default $TRIAGE_LOG_LEVEL or info)")

	root.AddCommand(newSummarizeCmd(a))
	root.AddCommand(newServeCmd(a))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("triage failed", "error", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
