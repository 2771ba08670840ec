package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nao1215/ringscan/internal/config"
	ringlog "github.com/nao1215/ringscan/internal/log"
)

// NewRootCmd creates the root command for ringscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ringscan",
		Short: "Capture coverage guide for AR object scanning",
		Long: `ringscan guides a photogrammetry capture around an object placed in AR.

Two rings of 72 markers each surround the anchored object. Every accepted
photo lights up the marker of the angle it was taken from, and the scan is
complete when both rings are lit.

The CLI replays recorded pose traces through the capture session, prints
coverage reports and keeps a history of replays in a local database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json-log", false, "Write logs as JSON lines")
	cmd.PersistentFlags().Int("log-precision", config.DefaultLogPrecision,
		"Decimals kept for float values in logs")

	cmd.AddCommand(NewReplayCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewQuantizeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// logFlags reads the persistent logging flags into cfg. Flags missing
// from cmd, as when a subcommand runs without the root, keep the defaults.
func logFlags(cmd *cobra.Command, cfg *config.Config) error {
	var err error
	flags := cmd.Flags()

	if flags.Lookup("verbose") != nil {
		if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
			return err
		}
	}
	if flags.Lookup("json-log") != nil {
		if cfg.JSONLog, err = flags.GetBool("json-log"); err != nil {
			return err
		}
	}
	if flags.Lookup("log-precision") != nil {
		if cfg.LogPrecision, err = flags.GetInt("log-precision"); err != nil {
			return err
		}
	}
	return nil
}

// setupLogger creates the structured logger for cfg. Logs go to stderr so
// reports on stdout stay machine readable.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	if cfg.JSONLog {
		return ringlog.NewJSONLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogPrecision)
	}
	return ringlog.NewLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.LogPrecision)
}
