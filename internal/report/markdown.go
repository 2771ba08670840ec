package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/ringscan/internal/model"
	"github.com/nao1215/ringscan/pkg/scan"
)

// MarkdownWriter outputs reports in GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ReplayReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeCoverage(md, report)
	w.writeRejections(md, report)
	w.writeEvents(md, report)
	w.writeMismatches(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs a table with one row per replay.
func (w *MarkdownWriter) WriteSummary(reports []*model.ReplayReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Ringscan Replay Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		if r == nil {
			continue
		}
		level, unique := "-", "-"
		if r.Coverage != nil {
			level = r.Coverage.LevelText
			unique = fmt.Sprintf("%d/%d", r.Coverage.UniqueAnglesTaken,
				r.Coverage.UniqueAnglesTaken+r.Coverage.RemainingAngles)
		}
		rows = append(rows, []string{"`" + traceLabel(r) + "`", level, unique, statusText(r)})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Trace", "Coverage", "Unique Angles", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with replay information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ReplayReport) {
	md.H1("Ringscan Replay Report")
	md.PlainText("")

	rows := [][]string{
		{"Trace", "`" + traceLabel(report) + "`"},
		{"File", "`" + report.TracePath + "`"},
		{"Replayed", report.DateReplayed.Format("2006-01-02 15:04:05 MST")},
		{"Status", w.getStatusText(report)},
	}
	if report.Description != "" {
		rows = append(rows, []string{"Description", report.Description})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.ReplayReport) string {
	switch {
	case report.ErrorMessage != "":
		return "❌ Error - " + report.ErrorMessage
	case len(report.Mismatches) > 0:
		return fmt.Sprintf("⚠️ %d expectation mismatch(es)", len(report.Mismatches))
	default:
		return "✅ Complete"
	}
}

// writeCoverage writes the ring coverage table and the level alert.
func (w *MarkdownWriter) writeCoverage(md *markdown.Markdown, report *model.ReplayReport) {
	md.H2("Coverage")
	md.PlainText("")

	c := report.Coverage
	if c == nil {
		md.PlainText("Coverage is not available for this replay.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(c.Rings)+1)
	for _, ring := range c.Rings {
		rows = append(rows, []string{
			ringTitle(ring.Ring),
			fmt.Sprintf("%d/%d", ring.Visited, ring.Visited+ring.Missing),
			strconv.FormatFloat(ring.Percent, 'f', 1, 64) + "%",
			formatGaps(ring.Gaps, gapLimit),
		})
	}
	rows = append(rows, []string{
		"**Total**",
		fmt.Sprintf("**%d/%d**", c.UniqueAnglesTaken, c.UniqueAnglesTaken+c.RemainingAngles),
		"",
		fmt.Sprintf("%d photos taken", c.TotalPhotosTaken),
	})
	md.Table(markdown.TableSet{
		Header: []string{"Ring", "Visited", "Percent", "Gaps (slots)"},
		Rows:   rows,
	})
	md.PlainText("")

	w.writeAlert(md, c)
}

// writeAlert writes an alert matching the coverage level.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, c *model.CoverageSummary) {
	info := model.GetLevelInfo(c.Level)
	text := info.Description + " " + info.Recommendation

	switch c.Level {
	case model.CoverageComplete:
		md.Tip(text)
	case model.CoverageRingComplete:
		md.Note(text)
	case model.CoveragePartial:
		md.Important(text)
	case model.CoverageSparse:
		md.Warning(text)
	default:
		md.Caution(text)
	}
	md.PlainText("")
}

// writeRejections writes the outcome chart and the rejection table.
func (w *MarkdownWriter) writeRejections(md *markdown.Markdown, report *model.ReplayReport) {
	c := report.Coverage
	if c == nil || c.Attempts == 0 {
		return
	}

	md.H2("Capture Attempts")
	md.PlainText("")
	md.PlainTextf("%d of %d attempts accepted (%.0f%%).", c.Accepted, c.Attempts, c.AcceptanceRate()*100)
	md.PlainText("")

	if len(c.Rejections) == 0 {
		return
	}

	w.writePieChart(md, c)

	rows := make([][]string, 0, len(c.Rejections))
	for _, reason := range sortedKeys(c.Rejections) {
		message, hint := "-", "-"
		if r, err := scan.ParseRejectReason(reason); err == nil {
			info := scan.GetReasonInfo(r)
			message, hint = info.Message, info.Hint
		}
		rows = append(rows, []string{"`" + reason + "`", strconv.Itoa(c.Rejections[reason]), message, hint})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Reason", "Count", "Message", "Hint"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of attempt outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, c *model.CoverageSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Capture Outcomes"),
		piechart.WithShowData(true),
	)

	if c.Accepted > 0 {
		chart.LabelAndIntValue("accepted", uint64(c.Accepted))
	}
	for _, reason := range sortedKeys(c.Rejections) {
		chart.LabelAndIntValue(reason, uint64(c.Rejections[reason]))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeEvents writes the callbacks fired during the replay.
func (w *MarkdownWriter) writeEvents(md *markdown.Markdown, report *model.ReplayReport) {
	if len(report.Events) == 0 {
		return
	}
	md.H2("Events")
	md.PlainText("")

	items := make([]string, 0, len(report.Events))
	for _, e := range report.Events {
		items = append(items, fmt.Sprintf("`%s` after %d attempt(s)", e.Name, e.AfterAttempt))
	}
	md.BulletList(items...)
	md.PlainText("")
}

// writeMismatches writes attempts whose outcome differed from the trace.
func (w *MarkdownWriter) writeMismatches(md *markdown.Markdown, report *model.ReplayReport) {
	if len(report.Mismatches) == 0 {
		return
	}
	md.H2("Expectation Mismatches")
	md.PlainText("")

	rows := make([][]string, 0, len(report.Mismatches))
	for _, m := range report.Mismatches {
		rows = append(rows, []string{strconv.Itoa(m.Event), "`" + m.Expected + "`", "`" + m.Got + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Event", "Expected", "Got"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [ringscan](https://github.com/nao1215/ringscan)*")
}
