package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/ringscan/internal/model"
	"github.com/nao1215/ringscan/pkg/geometry"
	"github.com/nao1215/ringscan/pkg/scan"
)

// createTestReport creates a report with one accepted and two rejected
// attempts and a single visited slot on the lower ring.
func createTestReport() *model.ReplayReport {
	report := model.NewReplayReport("traces/desk.yaml")
	report.TraceName = "desk"
	report.Description = "orbit around a desk lamp"
	report.DateReplayed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report.AddAttempt(1, nil, nil, false, &scan.CaptureRecord{Token: "tok-1"}, nil)
	report.AddAttempt(2, nil, nil, false, nil, scan.ReasonTooDark)
	report.AddAttempt(3, nil, nil, false, nil, scan.ReasonDuplicateAngle)
	report.AddEvent("anchor_set")

	var lower scan.SlotSet
	lower.Set(0)
	report.Final = &scan.Snapshot{
		State:    scan.StateScanning,
		Visited:  [geometry.RingCount]scan.SlotSet{lower},
		Progress: scan.Progress{TotalPhotosTaken: 1, UniqueAnglesTaken: 1, RemainingAngles: geometry.TotalSlots - 1},
	}
	report.Coverage = model.Summarize(*report.Final, report.Attempts)
	return report
}

func assertContains(t *testing.T, output string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(output, w) {
			t.Errorf("expected output to contain %q\n%s", w, output)
		}
	}
}

func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and coverage", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		n, err := NewSimpleWriter(&buf).Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != buf.Len() {
			t.Errorf("n = %d, buffer has %d bytes", n, buf.Len())
		}

		assertContains(t, buf.String(),
			"RINGSCAN REPLAY REPORT",
			"desk",
			"orbit around a desk lamp",
			"Status:       Complete",
			"Level:      SPARSE",
			"Lower ring:",
			"Upper ring:",
			"gaps: 1-71",
			"gaps: 0-71",
		)
	})

	t.Run("writes rejection counts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := buf.String()
		assertContains(t, output,
			"Accepted:   1 of 3",
			"[duplicate_angle] 1",
			"[too_dark] 1",
			scan.GetReasonInfo(scan.ReasonTooDark).Message,
		)
		if strings.Contains(output, scan.GetReasonInfo(scan.ReasonTooDark).Hint) {
			t.Error("hints should only appear in verbose mode")
		}
	})

	t.Run("verbose mode lists attempts and hints", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewSimpleWriter(&buf, WithVerbose(true))
		if _, err := w.Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertContains(t, buf.String(),
			scan.GetReasonInfo(scan.ReasonTooDark).Hint,
			"Event  Ring   Slot",
			"accepted",
		)
	})

	t.Run("writes events and mismatches", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.AddMismatch(2, "accepted", "too_dark")

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertContains(t, buf.String(),
			"EVENTS",
			"anchor_set",
			"MISMATCHES",
			"event 2: expected accepted, got too_dark",
			"FAILED - 1 expectation mismatch(es)",
		)
	})

	t.Run("writes error status without coverage", func(t *testing.T) {
		t.Parallel()

		report := model.NewReplayReport("broken.yaml")
		report.SetError(errors.New("trace has no events"))

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertContains(t, buf.String(),
			"ERROR - trace has no events",
			"Not available",
			"Accepted:   0 of 0",
		)
	})
}

func TestSimpleWriterWriteSummary(t *testing.T) {
	t.Parallel()

	failed := model.NewReplayReport("broken.yaml")
	failed.SetError(errors.New("boom"))

	var buf bytes.Buffer
	if _, err := NewSimpleWriter(&buf).WriteSummary([]*model.ReplayReport{createTestReport(), nil, failed}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	assertContains(t, output, "TRACE", "desk", "SPARSE", "broken.yaml", "ERROR - boom")

	lines := strings.Split(strings.TrimSpace(output), "\n")
	// rule, header, rule, two rows, rule
	if len(lines) != 6 {
		t.Errorf("got %d lines, want 6:\n%s", len(lines), output)
	}
}

func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes compact JSON", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		output := strings.TrimSuffix(buf.String(), "\n")
		if strings.Contains(output, "\n") {
			t.Error("compact JSON should be a single line")
		}

		var decoded model.ReplayReport
		if err := json.Unmarshal([]byte(output), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.TraceName != "desk" {
			t.Errorf("TraceName = %q, want desk", decoded.TraceName)
		}
		if len(decoded.Attempts) != 3 {
			t.Errorf("got %d attempts, want 3", len(decoded.Attempts))
		}
		if diff := cmp.Diff(map[string]int{"too_dark": 1, "duplicate_angle": 1}, decoded.Coverage.Rejections); diff != "" {
			t.Errorf("rejections mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("pretty print indents output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"") {
			t.Error("expected two-space indentation")
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent("", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n\t\"") {
			t.Error("expected tab indentation")
		}
	})

	t.Run("summary is a JSON array", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		reports := []*model.ReplayReport{createTestReport(), createTestReport()}
		if _, err := NewJSONWriter(&buf).WriteSummary(reports); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded []model.ReplayReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 {
			t.Errorf("got %d reports, want 2", len(decoded))
		}
	})
}

func TestFullJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("wraps report with version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewFullJSONWriter(&buf, "v1.2.3").Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded JSONReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Version != "v1.2.3" {
			t.Errorf("Version = %q, want v1.2.3", decoded.Version)
		}
		if decoded.Report == nil || decoded.Report.TraceName != "desk" {
			t.Error("expected wrapped report")
		}
	})

	t.Run("summary skips nil reports", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		w := NewFullJSONWriter(&buf, "dev")
		if _, err := w.WriteSummary([]*model.ReplayReport{nil, createTestReport()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded []JSONReport
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 1 {
			t.Errorf("got %d reports, want 1", len(decoded))
		}
	})
}

func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to every writer", func(t *testing.T) {
		t.Parallel()

		var text, js bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewJSONWriter(&js))

		n, err := mw.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != text.Len()+js.Len() {
			t.Errorf("n = %d, want %d", n, text.Len()+js.Len())
		}
		if text.Len() == 0 || js.Len() == 0 {
			t.Error("expected both writers to receive output")
		}
	})

	t.Run("summary goes to every writer", func(t *testing.T) {
		t.Parallel()

		var text, md bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(&text), NewMarkdownWriter(&md))
		if _, err := mw.WriteSummary([]*model.ReplayReport{createTestReport()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(text.String(), "desk") || !strings.Contains(md.String(), "desk") {
			t.Error("expected both writers to list the trace")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		var after bytes.Buffer
		mw := NewMultiWriter(NewSimpleWriter(failingWriter{}), NewSimpleWriter(&after))
		if _, err := mw.Write(createTestReport()); err == nil {
			t.Fatal("expected error")
		}
		if after.Len() != 0 {
			t.Error("writers after a failure should not run")
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes report sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertContains(t, buf.String(),
			"# Ringscan Replay Report",
			"`desk`",
			"✅ Complete",
			"## Coverage",
			"| Lower ring",
			"| Upper ring",
			"**1/144**",
			"[!WARNING]",
			"## Capture Attempts",
			"1 of 3 attempts accepted",
			"```mermaid",
			"pie",
			"Capture Outcomes",
			"`too_dark`",
			"## Events",
			"`anchor_set`",
			"ringscan",
		)
	})

	t.Run("alert follows coverage level", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name  string
			level model.CoverageLevel
			alert string
		}{
			{name: "complete", level: model.CoverageComplete, alert: "[!TIP]"},
			{name: "ring complete", level: model.CoverageRingComplete, alert: "[!NOTE]"},
			{name: "partial", level: model.CoveragePartial, alert: "[!IMPORTANT]"},
			{name: "sparse", level: model.CoverageSparse, alert: "[!WARNING]"},
			{name: "none", level: model.CoverageNone, alert: "[!CAUTION]"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				report := createTestReport()
				report.Coverage.Level = tt.level

				var buf bytes.Buffer
				if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				assertContains(t, buf.String(), tt.alert, model.GetLevelInfo(tt.level).Description)
			})
		}
	})

	t.Run("writes mismatches", func(t *testing.T) {
		t.Parallel()

		report := createTestReport()
		report.AddMismatch(3, "accepted", "duplicate_angle")

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertContains(t, buf.String(),
			"## Expectation Mismatches",
			"`duplicate_angle`",
			"1 expectation mismatch(es)",
		)
	})

	t.Run("handles missing coverage", func(t *testing.T) {
		t.Parallel()

		report := model.NewReplayReport("broken.yaml")
		report.SetError(errors.New("no events"))

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).Write(report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		output := buf.String()
		assertContains(t, output, "❌ Error - no events", "Coverage is not available")
		if strings.Contains(output, "## Capture Attempts") {
			t.Error("attempt section should be omitted without coverage")
		}
	})

	t.Run("writes summary table", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf).WriteSummary([]*model.ReplayReport{createTestReport()}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertContains(t, buf.String(), "# Ringscan Replay Summary", "`desk`", "SPARSE", "1/144")
	})
}

func TestFormatGaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		gaps  []model.SlotRange
		limit int
		want  string
	}{
		{name: "no gaps", gaps: nil, limit: 3, want: "none"},
		{name: "single slot", gaps: []model.SlotRange{{From: 41, To: 41}}, limit: 3, want: "41"},
		{
			name:  "ranges with wrap",
			gaps:  []model.SlotRange{{From: 3, To: 9}, {From: 70, To: 2}},
			limit: 3,
			want:  "3-9, 70-2",
		},
		{
			name:  "over limit",
			gaps:  []model.SlotRange{{From: 1, To: 2}, {From: 5, To: 6}, {From: 9, To: 9}},
			limit: 2,
			want:  "1-2, 5-6, +1 more",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatGaps(tt.gaps, tt.limit); got != tt.want {
				t.Errorf("formatGaps() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRingTitle(t *testing.T) {
	t.Parallel()

	if got := ringTitle(geometry.RingLower); got != "Lower ring" {
		t.Errorf("ringTitle(lower) = %q", got)
	}
	if got := ringTitle(geometry.RingUpper); got != "Upper ring" {
		t.Errorf("ringTitle(upper) = %q", got)
	}
}
