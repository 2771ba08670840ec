package report

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/ringscan/internal/model"
	"github.com/nao1215/ringscan/pkg/geometry"
)

// Writer defines the interface for report output.
type Writer interface {
	// Write outputs one replay report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ReplayReport) (int, error)

	// WriteSummary outputs a one-line-per-trace overview of a batch.
	WriteSummary(reports []*model.ReplayReport) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.ReplayReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the batch summary to all configured Writers.
func (m *MultiWriter) WriteSummary(reports []*model.ReplayReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(reports)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

var titleCaser = cases.Title(language.English)

// ringTitle returns "Lower ring" or "Upper ring".
func ringTitle(ring geometry.Ring) string {
	return titleCaser.String(ring.String()) + " ring"
}

// formatGaps renders gap ranges as "3-9, 70-2, 41". At most limit ranges
// are listed; the rest are counted.
func formatGaps(gaps []model.SlotRange, limit int) string {
	if len(gaps) == 0 {
		return "none"
	}
	parts := make([]string, 0, min(len(gaps), limit)+1)
	for i, g := range gaps {
		if i == limit {
			parts = append(parts, fmt.Sprintf("+%d more", len(gaps)-limit))
			break
		}
		if g.From == g.To {
			parts = append(parts, fmt.Sprintf("%d", g.From))
			continue
		}
		parts = append(parts, fmt.Sprintf("%d-%d", g.From, g.To))
	}
	return strings.Join(parts, ", ")
}

// statusText summarizes how a replay ended.
func statusText(report *model.ReplayReport) string {
	switch {
	case report.ErrorMessage != "":
		return "ERROR - " + report.ErrorMessage
	case len(report.Mismatches) > 0:
		return fmt.Sprintf("FAILED - %d expectation mismatch(es)", len(report.Mismatches))
	default:
		return "Complete"
	}
}
