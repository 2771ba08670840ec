package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/ringscan/internal/model"
	"github.com/nao1215/ringscan/internal/trace"
	"github.com/nao1215/ringscan/pkg/scan"
)

// Run carries the state of one trace replay from step to step.
type Run struct {
	// Path is the trace file to replay.
	Path string

	// Trace is set by the load step.
	Trace *trace.Trace

	// Session and Recorder are set by the session step.
	Session  *scan.Session
	Recorder *trace.Recorder

	// Report accumulates the results.
	Report *model.ReplayReport
}

// NewRun creates a Run for the trace at path. The report is named after
// the file until the trace is loaded.
func NewRun(path string) *Run {
	report := model.NewReplayReport(path)
	report.TraceName = trace.NameFromPath(path)
	return &Run{
		Path:   path,
		Report: report,
	}
}

// Step defines the interface that all pipeline steps must implement.
type Step interface {
	// Do executes the step. Returning an error stops the pipeline unless
	// it was built with WithContinueOnError.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. The first error is still recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence. Cancellation is checked
// before each step; the replay step also checks it between trace events.
//
// Returns the first error encountered if continueOnError is false,
// or nil if all steps complete.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	report := run.Report
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
	}()

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.SetError(ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"trace", run.Path,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"trace", run.Path,
				"error", err,
			)

			if report.Error == nil {
				report.SetError(err)
			}
			if !p.continueOnError {
				return err
			}
		} else {
			p.logger.Debug("step completed",
				"step", step.Name(),
				"trace", run.Path,
			)
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
