package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/ringscan/internal/config"
	"github.com/nao1215/ringscan/internal/model"
	"github.com/nao1215/ringscan/internal/trace"
	"github.com/nao1215/ringscan/pkg/scan"
)

// ErrStepOrder is returned when a step runs before the step it depends on.
var ErrStepOrder = errors.New("pipeline step out of order")

// LoadTraceStep reads and validates the trace file.
type LoadTraceStep struct{}

// NewLoadTraceStep creates a new trace loading step.
func NewLoadTraceStep() *LoadTraceStep {
	return &LoadTraceStep{}
}

// Name returns the step name.
func (s *LoadTraceStep) Name() string {
	return "load_trace"
}

// Do executes the load step.
func (s *LoadTraceStep) Do(_ context.Context, run *Run) error {
	tr, err := trace.Load(run.Path)
	if err != nil {
		return err
	}
	run.Trace = tr
	run.Report.TraceName = tr.Name
	run.Report.Description = tr.Description
	return nil
}

// SessionStep builds the scan session for the loaded trace. Per-trace
// profiles from the configuration file are applied here.
type SessionStep struct {
	cfg      *config.Config
	logger   *slog.Logger
	now      func() time.Time
	newToken func() string
}

// SessionStepOption configures a SessionStep.
type SessionStepOption func(*SessionStep)

// WithSessionLogger sets the logger handed to each session.
func WithSessionLogger(logger *slog.Logger) SessionStepOption {
	return func(s *SessionStep) {
		s.logger = logger
	}
}

// WithSessionClock sets the clock used for capture timestamps.
func WithSessionClock(now func() time.Time) SessionStepOption {
	return func(s *SessionStep) {
		s.now = now
	}
}

// WithSessionTokenSource sets the capture token generator.
func WithSessionTokenSource(next func() string) SessionStepOption {
	return func(s *SessionStep) {
		s.newToken = next
	}
}

// NewSessionStep creates a session step reading settings from cfg.
func NewSessionStep(cfg *config.Config, opts ...SessionStepOption) *SessionStep {
	s := &SessionStep{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *SessionStep) Name() string {
	return "configure_session"
}

// Do executes the session step.
func (s *SessionStep) Do(_ context.Context, run *Run) error {
	if run.Trace == nil {
		return fmt.Errorf("%w: %s needs a loaded trace", ErrStepOrder, s.Name())
	}

	scanCfg, allow, err := s.cfg.SessionConfig(run.Trace.Name)
	if err != nil {
		return err
	}
	if allow {
		run.Trace.AllowDuplicates = true
	}

	rec := trace.NewRecorder(run.Report)
	opts := []scan.Option{
		scan.WithLogger(s.logger.With("trace", run.Trace.Name)),
		scan.WithRenderer(rec),
		scan.WithHaptics(rec),
	}
	if s.now != nil {
		opts = append(opts, scan.WithClock(s.now))
	}
	if s.newToken != nil {
		opts = append(opts, scan.WithTokenSource(s.newToken))
	}

	session, err := scan.NewSession(scanCfg, opts...)
	if err != nil {
		return err
	}
	rec.Watch(session)

	run.Session = session
	run.Recorder = rec
	run.Report.Config = scanCfg
	return nil
}

// ReplayStep drives the session through the trace events.
type ReplayStep struct {
	replayer *trace.Replayer
}

// NewReplayStep creates a replay step.
func NewReplayStep(replayer *trace.Replayer) *ReplayStep {
	return &ReplayStep{replayer: replayer}
}

// Name returns the step name.
func (s *ReplayStep) Name() string {
	return "replay"
}

// Do executes the replay step. The final session snapshot is stored even
// when the replay stops early.
func (s *ReplayStep) Do(ctx context.Context, run *Run) error {
	if run.Session == nil {
		return fmt.Errorf("%w: %s needs a session", ErrStepOrder, s.Name())
	}
	err := s.replayer.Replay(ctx, run.Trace, run.Session, run.Recorder)
	snap := run.Session.Snapshot()
	run.Report.Final = &snap
	return err
}

// SummaryStep computes the coverage summary.
type SummaryStep struct{}

// NewSummaryStep creates a summary step.
func NewSummaryStep() *SummaryStep {
	return &SummaryStep{}
}

// Name returns the step name.
func (s *SummaryStep) Name() string {
	return "summarize"
}

// Do executes the summary step.
func (s *SummaryStep) Do(_ context.Context, run *Run) error {
	if run.Report.Final == nil {
		return fmt.Errorf("%w: %s needs a replayed session", ErrStepOrder, s.Name())
	}
	run.Report.Coverage = model.Summarize(*run.Report.Final, run.Report.Attempts)
	return nil
}

// DefaultPipelineConfig holds the knobs of the default pipeline.
type DefaultPipelineConfig struct {
	// SessionLogger is handed to every scan session.
	SessionLogger *slog.Logger

	// Clock and TokenSource replace the session's time and capture token
	// sources. Nil keeps the session defaults.
	Clock       func() time.Time
	TokenSource func() string
}

// DefaultPipelineOption configures a DefaultPipelineConfig.
type DefaultPipelineOption func(*DefaultPipelineConfig)

// WithPipelineSessionLogger sets the logger used by sessions and the
// replayer.
func WithPipelineSessionLogger(logger *slog.Logger) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.SessionLogger = logger
	}
}

// WithPipelineClock sets the capture clock.
func WithPipelineClock(now func() time.Time) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.Clock = now
	}
}

// WithPipelineTokenSource sets the capture token generator.
func WithPipelineTokenSource(next func() string) DefaultPipelineOption {
	return func(c *DefaultPipelineConfig) {
		c.TokenSource = next
	}
}

// DefaultPipeline creates the standard replay pipeline: load, configure,
// replay, summarize.
func DefaultPipeline(cfg *config.Config, pipelineOpts []Option, configOpts ...DefaultPipelineOption) *Pipeline {
	p := New(pipelineOpts...)

	pc := &DefaultPipelineConfig{
		SessionLogger: slog.Default(),
	}
	for _, opt := range configOpts {
		opt(pc)
	}

	sessionOpts := []SessionStepOption{
		WithSessionLogger(pc.SessionLogger),
	}
	if pc.Clock != nil {
		sessionOpts = append(sessionOpts, WithSessionClock(pc.Clock))
	}
	if pc.TokenSource != nil {
		sessionOpts = append(sessionOpts, WithSessionTokenSource(pc.TokenSource))
	}

	p.AddSteps(
		NewLoadTraceStep(),
		NewSessionStep(cfg, sessionOpts...),
		NewReplayStep(trace.NewReplayer(trace.WithLogger(pc.SessionLogger))),
		NewSummaryStep(),
	)

	return p
}
