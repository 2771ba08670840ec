package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/nao1215/ringscan/internal/model"
	"github.com/nao1215/ringscan/pkg/scan"
)

const (
	ruleWidth = 70
	gapLimit  = 8
)

// SimpleWriter outputs human-readable text reports.
type SimpleWriter struct {
	baseWriter

	// verbose lists every attempt and adds rejection hints.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ReplayReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeCoverage(&sb, report)
	w.writeAttempts(&sb, report)
	w.writeEvents(&sb, report)
	w.writeMismatches(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

// WriteSummary outputs one line per replay.
func (w *SimpleWriter) WriteSummary(reports []*model.ReplayReport) (int, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	fmt.Fprintf(&sb, "%-24s %-14s %8s %8s  %s\n", "TRACE", "COVERAGE", "UNIQUE", "PHOTOS", "STATUS")
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	for _, r := range reports {
		if r == nil {
			continue
		}
		level, unique, total := "-", 0, 0
		if r.Coverage != nil {
			level = r.Coverage.LevelText
			unique = r.Coverage.UniqueAnglesTaken
			total = r.Coverage.TotalPhotosTaken
		}
		fmt.Fprintf(&sb, "%-24s %-14s %8d %8d  %s\n", traceLabel(r), level, unique, total, statusText(r))
	}
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")

	return io.WriteString(w.output, sb.String())
}

func traceLabel(r *model.ReplayReport) string {
	if r.TraceName != "" {
		return r.TraceName
	}
	return r.TracePath
}

// writeHeader writes the report header with replay information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ReplayReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("                       RINGSCAN REPLAY REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Trace:        %s\n", traceLabel(report))
	fmt.Fprintf(sb, "File:         %s\n", report.TracePath)
	if report.Description != "" {
		fmt.Fprintf(sb, "Description:  %s\n", report.Description)
	}
	fmt.Fprintf(sb, "Replayed:     %s\n", report.DateReplayed.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Status:       %s\n", statusText(report))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}

// writeCoverage writes the per-ring coverage section.
func (w *SimpleWriter) writeCoverage(sb *strings.Builder, report *model.ReplayReport) {
	section(sb, "COVERAGE")

	c := report.Coverage
	if c == nil {
		sb.WriteString("  Not available\n\n")
		return
	}

	info := model.GetLevelInfo(c.Level)
	fmt.Fprintf(sb, "  Level:      %s - %s\n", c.LevelText, info.Description)
	fmt.Fprintf(sb, "  Photos:     %d taken, %d unique, %d remaining\n",
		c.TotalPhotosTaken, c.UniqueAnglesTaken, c.RemainingAngles)
	for _, ring := range c.Rings {
		fmt.Fprintf(sb, "  %-10s  %2d/%d (%5.1f%%)  gaps: %s\n",
			ringTitle(ring.Ring)+":", ring.Visited, ring.Visited+ring.Missing, ring.Percent,
			formatGaps(ring.Gaps, gapLimit))
	}
	fmt.Fprintf(sb, "\n  Next step:  %s\n\n", info.Recommendation)
}

// writeAttempts writes acceptance and rejection statistics.
func (w *SimpleWriter) writeAttempts(sb *strings.Builder, report *model.ReplayReport) {
	section(sb, "ATTEMPTS")

	c := report.Coverage
	if c == nil {
		c = model.Summarize(scan.Snapshot{}, report.Attempts)
	}
	fmt.Fprintf(sb, "  Accepted:   %d of %d (%.0f%%)\n", c.Accepted, c.Attempts, c.AcceptanceRate()*100)

	if len(c.Rejections) > 0 {
		sb.WriteString("  Rejected:\n")
		for _, reason := range sortedKeys(c.Rejections) {
			fmt.Fprintf(sb, "    [%s] %d", reason, c.Rejections[reason])
			if r, err := scan.ParseRejectReason(reason); err == nil {
				info := scan.GetReasonInfo(r)
				fmt.Fprintf(sb, " - %s", info.Message)
				if w.verbose {
					fmt.Fprintf(sb, " (%s)", info.Hint)
				}
			}
			sb.WriteString("\n")
		}
	}

	if w.verbose && len(report.Attempts) > 0 {
		sb.WriteString("\n  Event  Ring   Slot  Angle   Outcome\n")
		for _, a := range report.Attempts {
			ring := a.Ring
			if ring == "" {
				ring = "-"
			}
			fmt.Fprintf(sb, "  %5d  %-5s  %4d  %5.3f  %s\n", a.Event, ring, a.Slot, a.AngleToAnchor, a.Outcome())
		}
	}
	sb.WriteString("\n")
}

// writeEvents writes the callbacks fired during the replay.
func (w *SimpleWriter) writeEvents(sb *strings.Builder, report *model.ReplayReport) {
	if len(report.Events) == 0 {
		return
	}
	section(sb, "EVENTS")
	for _, e := range report.Events {
		fmt.Fprintf(sb, "  %-22s after %d attempt(s)\n", e.Name, e.AfterAttempt)
	}
	sb.WriteString("\n")
}

// writeMismatches writes attempts that did not match the trace's
// expectations.
func (w *SimpleWriter) writeMismatches(sb *strings.Builder, report *model.ReplayReport) {
	if len(report.Mismatches) == 0 {
		return
	}
	section(sb, "MISMATCHES")
	for _, m := range report.Mismatches {
		fmt.Fprintf(sb, "  event %d: expected %s, got %s\n", m.Event, m.Expected, m.Got)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString("Report generated by ringscan\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
