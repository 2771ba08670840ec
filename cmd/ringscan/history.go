package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/ringscan/internal/config"
	"github.com/nao1215/ringscan/internal/database"
	"github.com/nao1215/ringscan/internal/report"
	"github.com/nao1215/ringscan/pkg/geometry"
)

// NewHistoryCmd creates the history command.
// This command lists replays stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [trace-name]",
		Short: "Show stored replay results",
		Long: `History lists replays recorded by 'ringscan replay'.

Without arguments every stored replay is listed, newest first. With a trace
name only that trace's replays are shown, followed by the rejection reasons
counted over all of them.

Examples:
  # List all replays
  ringscan history

  # Replays of one trace
  ringscan history desk

  # List the traces that have stored replays
  ringscan history --list-traces

  # Show a stored report by ID
  ringscan history --id 12

  # Stored report as Markdown
  ringscan history --id 12 --markdown

  # Delete a stored replay
  ringscan history --delete 12`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("list-traces", "L", false,
		"List all traces with stored replays")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the stored report with this ID")
	cmd.Flags().Int64("delete", 0,
		"Delete the stored replay with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output a stored report in Markdown format (with --id)")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	listTraces, err := flags.GetBool("list-traces")
	if err != nil {
		return err
	}
	id, err := flags.GetInt64("id")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetInt64("delete")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	// Validate before opening the database so a bad invocation does not
	// create an empty one.
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	if markdownOutput && id == 0 {
		return errors.New("--markdown requires --id")
	}

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case deleteID != 0:
		return deleteStoredReplay(ctx, out, db, deleteID)
	case listTraces:
		return listStoredTraces(ctx, out, db, jsonOutput)
	case id != 0:
		return showStoredReport(ctx, out, db, id, jsonOutput, markdownOutput)
	default:
		traceName := ""
		if len(args) > 0 {
			traceName = args[0]
		}
		return listReplayHistory(ctx, out, db, traceName, jsonOutput)
	}
}

// listStoredTraces lists all traces that have replay records.
func listStoredTraces(ctx context.Context, out io.Writer, db *database.HistoryDB, jsonOutput bool) error {
	traces, err := db.ListTraces(ctx)
	if err != nil {
		return fmt.Errorf("failed to list traces: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, traces)
	}

	if len(traces) == 0 {
		fmt.Fprintln(out, "No replays found in the database.")
		fmt.Fprintln(out, "\nUse 'ringscan replay <trace.yaml>' to replay a trace.")
		return nil
	}

	fmt.Fprintf(out, "Replayed traces (%d):\n\n", len(traces))
	for _, name := range traces {
		fmt.Fprintf(out, "  • %s\n", name)
	}
	fmt.Fprintln(out, "\nUse 'ringscan history <trace-name>' to see the replays of a trace.")
	return nil
}

// listReplayHistory lists replay records, optionally of one trace.
func listReplayHistory(ctx context.Context, out io.Writer, db *database.HistoryDB, traceName string, jsonOutput bool) error {
	history, err := db.GetReplayHistory(ctx, traceName)
	if err != nil {
		return fmt.Errorf("failed to get replay history: %w", err)
	}

	var rejections map[string]int
	if traceName != "" {
		rejections, err = db.RejectionCounts(ctx, traceName)
		if err != nil {
			return fmt.Errorf("failed to count rejections: %w", err)
		}
	}

	if jsonOutput {
		return writeJSON(out, struct {
			Replays    []database.ReplayMetadata `json:"replays"`
			Rejections map[string]int            `json:"rejections,omitempty"`
		}{Replays: history, Rejections: rejections})
	}

	if len(history) == 0 {
		if traceName != "" {
			fmt.Fprintf(out, "No replay history found for %s\n", traceName)
		} else {
			fmt.Fprintln(out, "No replays found in the database.")
		}
		fmt.Fprintln(out, "\nUse 'ringscan replay <trace.yaml>' to replay a trace.")
		return nil
	}

	title := "Replay history"
	if traceName != "" {
		title += " for " + traceName
	}
	fmt.Fprintf(out, "%s (%d replays):\n\n", title, len(history))
	fmt.Fprintf(out, "  %-6s  %-20s  %-20s  %-14s  %7s  %s\n", "ID", "Date", "Trace", "Coverage", "Unique", "Status")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 84))

	for _, meta := range history {
		fmt.Fprintf(out, "  %-6d  %-20s  %-20s  %-14s  %3d/%-3d  %s\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			meta.TraceName,
			orDash(meta.CoverageLevel),
			meta.UniqueAngles,
			geometry.TotalSlots,
			historyStatus(meta),
		)
	}

	if len(rejections) > 0 {
		fmt.Fprintf(out, "\nRejections over all replays: %s\n", formatRejections(rejections))
	}

	fmt.Fprintln(out, "\nUse 'ringscan history --id <id>' to show a stored report.")
	return nil
}

// showStoredReport writes a stored report in the requested format.
func showStoredReport(ctx context.Context, out io.Writer, db *database.HistoryDB, id int64, jsonOutput, markdownOutput bool) error {
	stored, err := db.GetReplayByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get replay %d: %w", id, err)
	}
	if stored == nil {
		return fmt.Errorf("replay %d not found (use 'ringscan history' to list IDs)", id)
	}

	var w report.Writer
	switch {
	case jsonOutput:
		w = report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOutput:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out)
	}
	_, err = w.Write(stored)
	return err
}

// deleteStoredReplay removes a replay and its attempts.
func deleteStoredReplay(ctx context.Context, out io.Writer, db *database.HistoryDB, id int64) error {
	deleted, err := db.DeleteReplay(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete replay %d: %w", id, err)
	}
	if !deleted {
		return fmt.Errorf("replay %d not found (use 'ringscan history' to list IDs)", id)
	}
	fmt.Fprintf(out, "Deleted replay %d\n", id)
	return nil
}

// historyStatus summarizes a stored replay's outcome.
func historyStatus(meta database.ReplayMetadata) string {
	switch {
	case meta.Mismatches > 0:
		return fmt.Sprintf("FAILED (%d mismatches)", meta.Mismatches)
	case meta.Failed:
		return "ERROR"
	case meta.Complete:
		return "complete"
	default:
		return "ok"
	}
}

// formatRejections formats rejection counts as "too_dark:3 not_in_focus:1",
// largest first.
func formatRejections(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
