package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/ringscan/internal/config"
	"github.com/nao1215/ringscan/internal/database"
	"github.com/nao1215/ringscan/internal/model"
	"github.com/nao1215/ringscan/internal/pipeline"
	"github.com/nao1215/ringscan/internal/report"
)

// ErrReplayFailed is returned when at least one replay errored or did not
// match its trace's expectations.
var ErrReplayFailed = errors.New("replay failed")

// NewReplayCmd creates the replay command.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <trace.yaml>...",
		Short: "Replay recorded pose traces through a capture session",
		Long: `Replay feeds the events of one or more trace files to a fresh capture
session each and reports the resulting ring coverage.

A trace places the anchor, attempts captures from recorded camera poses,
orbits rings, rescales the rings and resets the session. Captures may state
the outcome they expect; a replay whose outcomes differ is reported as
failed and the command exits with a non-zero status.

Examples:
  # Replay a single trace
  ringscan replay traces/desk.yaml

  # Replay every trace of a directory, four at a time
  ringscan replay -b 4 traces/*.yaml

  # Markdown report written to a file
  ringscan replay --markdown -o report.md traces/desk.yaml

  # Use a custom configuration file
  ringscan replay -c myconfig.yaml traces/desk.yaml

Trace file example:
  name: desk
  events:
    - placeAnchor: {position: [0, 0, 0]}
    - capture: {position: [0.5, 0, 0], brightness: 420}
    - orbit: {ring: lower, brightness: 500}
    - capture: {position: [0.5, 0, 0], expect: duplicate_angle}`,
		Args: cobra.MinimumNArgs(1),
		RunE: runReplayCmd,
	}

	// Replay behavior flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of concurrent replays")
	cmd.Flags().Bool("allow-duplicates", false,
		"Accept captures from already covered angles unless a trace says otherwise")
	cmd.Flags().Bool("continue-on-error", true,
		"Keep replaying remaining traces after one fails to load or run")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .ringscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("attempts", "a", false,
		"List every capture attempt in the text report")

	// History flags
	cmd.Flags().Bool("no-save", false,
		"Do not record the replays in the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runReplayCmd executes the replay command.
func runReplayCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildReplayConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	attempts, err := cmd.Flags().GetBool("attempts")
	if err != nil {
		return err
	}

	return runReplay(ctx, cmd, cfg, attempts, logger)
}

// buildReplayConfig creates a Config from cobra command flags.
func buildReplayConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	if err := logFlags(cmd, cfg); err != nil {
		return nil, err
	}

	var err error
	flags := cmd.Flags()

	cfg.BatchSize, err = flags.GetInt("batch")
	if err != nil {
		return nil, err
	}
	cfg.AllowDuplicates, err = flags.GetBool("allow-duplicates")
	if err != nil {
		return nil, err
	}
	cfg.ContinueOnError, err = flags.GetBool("continue-on-error")
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if err := loadConfigFile(cfg); err != nil {
		return nil, err
	}

	cfg.JSONReport, err = flags.GetBool("json")
	if err != nil {
		return nil, err
	}
	cfg.MarkdownReport, err = flags.GetBool("markdown")
	if err != nil {
		return nil, err
	}
	cfg.ReportFile, err = flags.GetString("output")
	if err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave
	cfg.DBDir, err = flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}

	cfg.Traces = args
	return cfg, nil
}

// loadConfigFile loads the configuration file into cfg.File.
// An explicitly given path must exist; otherwise a missing file leaves
// cfg.File nil and the built-in defaults apply.
func loadConfigFile(cfg *config.Config) error {
	path := config.FindConfigFile(cfg.ConfigFilePath)
	if path == "" {
		if cfg.ConfigFilePath != "" {
			return fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
		}
		return nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	cfg.File = file
	return nil
}

// runReplay replays the traces, writes the reports and records them.
func runReplay(ctx context.Context, cmd *cobra.Command, cfg *config.Config, attempts bool, logger *slog.Logger) error {
	logger.Info("starting replay",
		"traces", len(cfg.Traces),
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	newPipeline := func() *pipeline.Pipeline {
		return pipeline.DefaultPipeline(cfg,
			[]pipeline.Option{pipeline.WithLogger(logger)},
			pipeline.WithPipelineSessionLogger(logger),
		)
	}

	start := time.Now()
	var reports []*model.ReplayReport
	var runErr error
	if len(cfg.Traces) > 1 && cfg.BatchSize > 1 {
		reports, runErr = replayBatch(ctx, cmd.ErrOrStderr(), cfg, newPipeline, logger)
	} else {
		reports, runErr = replaySequential(ctx, cfg, newPipeline, logger)
	}
	logger.Info("replay finished", "elapsed", time.Since(start).Round(time.Millisecond))

	// Reports are stored even when the run was interrupted.
	saveCtx := context.WithoutCancel(ctx)
	for _, r := range reports {
		if err := saveReplayReport(saveCtx, db, r, logger); err != nil {
			logger.Error("failed to save replay report", "trace", r.TracePath, "error", err)
		}
	}

	if err := outputReports(cmd.OutOrStdout(), cfg, attempts, reports); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		return runErr
	}
	return failedError(reports, len(cfg.Traces))
}

// replaySequential replays traces one at a time.
func replaySequential(ctx context.Context, cfg *config.Config, newPipeline func() *pipeline.Pipeline, logger *slog.Logger) ([]*model.ReplayReport, error) {
	reports := make([]*model.ReplayReport, 0, len(cfg.Traces))
	for _, path := range cfg.Traces {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		run := pipeline.NewRun(path)
		err := newPipeline().Execute(ctx, run)
		reports = append(reports, run.Report)
		if err == nil {
			continue
		}

		logger.Error("replay failed", "trace", path, "error", err)
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		if !cfg.ContinueOnError {
			break
		}
	}
	return reports, nil
}

// replayBatch replays traces concurrently using BatchProcessor. Reports
// come back in argument order.
func replayBatch(ctx context.Context, progress io.Writer, cfg *config.Config, newPipeline func() *pipeline.Pipeline, logger *slog.Logger) ([]*model.ReplayReport, error) {
	fmt.Fprintf(progress, "Replaying %d traces (concurrency: %d)...\n", len(cfg.Traces), cfg.BatchSize)

	bp := pipeline.NewBatchProcessor(newPipeline,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	results := make([]*model.ReplayReport, len(cfg.Traces))
	var mu sync.Mutex
	done := 0
	err := bp.ProcessBatchWithCallback(ctx, cfg.Traces, func(r *model.ReplayReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		results[index] = r
		done++
		fmt.Fprintf(progress, "[%d/%d] %s\n", done, len(cfg.Traces), r.TracePath)
	})

	reports := make([]*model.ReplayReport, 0, len(results))
	for _, r := range results {
		if r != nil {
			reports = append(reports, r)
		}
	}
	return reports, err
}

// failedError returns ErrReplayFailed when any report failed.
func failedError(reports []*model.ReplayReport, total int) error {
	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
	}
	if failed == 0 && len(reports) == total {
		return nil
	}
	return fmt.Errorf("%w: %d of %d trace(s) did not pass", ErrReplayFailed, failed+total-len(reports), total)
}

// outputReports writes the reports in the requested format. A batch gets
// a summary after the individual reports; JSON output of a batch is a
// single array.
func outputReports(stdout io.Writer, cfg *config.Config, attempts bool, reports []*model.ReplayReport) error {
	output := stdout
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	w := newReportWriter(output, cfg, attempts)

	if cfg.JSONReport && len(reports) != 1 {
		_, err := w.WriteSummary(reports)
		return err
	}

	for _, r := range reports {
		if _, err := w.Write(r); err != nil {
			return err
		}
	}
	if len(reports) > 1 {
		_, err := w.WriteSummary(reports)
		return err
	}
	return nil
}

// newReportWriter returns the writer for the configured report format.
func newReportWriter(output io.Writer, cfg *config.Config, attempts bool) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(attempts))
	}
}

// saveReplayReport saves the report to the database.
// If db is nil, this function is a no-op.
func saveReplayReport(ctx context.Context, db *database.HistoryDB, r *model.ReplayReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	id, err := db.SaveReplay(ctx, r)
	if err != nil {
		return err
	}

	logger.Info("replay report saved to database", "trace", r.TraceName, "id", id)
	return nil
}
