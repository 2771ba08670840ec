package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *Run) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *Run) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeTrace writes body to name inside a fresh temp dir and returns the path.
func writeTrace(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write trace: %v", err)
	}
	return path
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))

		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if diff := cmp.Diff([]string{"first", "second", "third"}, p.StepNames()); diff != "" {
		t.Errorf("StepNames() mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("runs steps in order and records them", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New(WithLogger(discardLogger()))
		for _, name := range []string{"a", "b", "c"} {
			p.AddStep(&mockStep{
				name: name,
				doFunc: func(_ context.Context, _ *Run) error {
					order = append(order, name)
					return nil
				},
			})
		}

		run := NewRun("trace.yaml")
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{"a", "b", "c"}
		if diff := cmp.Diff(want, order); diff != "" {
			t.Errorf("execution order mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(want, run.Report.PerformedSteps); diff != "" {
			t.Errorf("PerformedSteps mismatch (-want +got):\n%s", diff)
		}
		if run.Report.Duration <= 0 {
			t.Error("expected Duration to be set")
		}
	})

	t.Run("stops on first error", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("step failed")
		last := &mockStep{name: "last"}
		p := New(WithLogger(discardLogger()))
		p.AddSteps(
			&mockStep{name: "failing", doFunc: func(context.Context, *Run) error { return stepErr }},
			last,
		)

		run := NewRun("trace.yaml")
		err := p.Execute(context.Background(), run)

		if !errors.Is(err, stepErr) {
			t.Fatalf("expected step error, got %v", err)
		}
		if last.callCount != 0 {
			t.Error("step after failure should not run")
		}
		if !errors.Is(run.Report.Error, stepErr) || run.Report.ErrorMessage != "step failed" {
			t.Errorf("error not recorded: %+v", run.Report)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		first := errors.New("first")
		p := New(WithLogger(discardLogger()), WithContinueOnError(true))
		p.AddSteps(
			&mockStep{name: "one", doFunc: func(context.Context, *Run) error { return first }},
			&mockStep{name: "two", doFunc: func(context.Context, *Run) error { return errors.New("second") }},
			&mockStep{name: "three"},
		)

		run := NewRun("trace.yaml")
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(run.Report.PerformedSteps) != 3 {
			t.Errorf("expected 3 performed steps, got %v", run.Report.PerformedSteps)
		}
		if !errors.Is(run.Report.Error, first) {
			t.Errorf("expected the first error to be kept, got %v", run.Report.Error)
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		step := &mockStep{name: "never"}
		p := New(WithLogger(discardLogger()))
		p.AddStep(step)

		cancel()
		run := NewRun("trace.yaml")
		err := p.Execute(ctx, run)

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not run after cancellation")
		}
		if !run.Report.Failed() {
			t.Error("cancelled run should be failed")
		}
	})
}

func TestNewRun(t *testing.T) {
	t.Parallel()

	run := NewRun("traces/desk.yaml")

	if run.Path != "traces/desk.yaml" || run.Report == nil {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Report.TracePath != run.Path {
		t.Errorf("report path = %q", run.Report.TracePath)
	}
	if run.Trace != nil || run.Session != nil {
		t.Error("trace and session are set by steps")
	}
}
