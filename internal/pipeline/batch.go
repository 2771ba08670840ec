package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/ringscan/internal/model"
)

// DefaultConcurrency is the number of traces replayed at once when no
// limit is configured.
const DefaultConcurrency = 4

// BatchProcessor replays multiple traces concurrently, each through a fresh
// pipeline and session.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each replay.
	pipelineFactory func() *Pipeline

	concurrency int

	logger *slog.Logger

	// results is indexed like the input paths.
	results []*model.ReplayReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent replays.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
		results:         make([]*model.ReplayReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch replays the traces at paths concurrently.
//
// Returns one report per path in input order, including reports of failed
// replays. A report is nil only when the batch was cancelled before its
// replay started; the error is then the context error.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, paths []string) ([]*model.ReplayReport, error) {
	bp.logger.Info("starting batch replay",
		"total_traces", len(paths),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.ReplayReport, len(paths))
	bp.mu.Unlock()

	err := bp.run(ctx, paths, func(report *model.ReplayReport, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})

	bp.logger.Info("batch replay complete",
		"total_traces", len(paths),
		"elapsed", time.Since(startTime),
	)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback replays the traces and calls callback for each
// completed replay, from the goroutine that ran it.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	paths []string,
	callback func(report *model.ReplayReport, index int),
) error {
	bp.logger.Info("starting batch replay with callback",
		"total_traces", len(paths),
		"concurrency", bp.concurrency,
	)
	return bp.run(ctx, paths, callback)
}

func (bp *BatchProcessor) run(ctx context.Context, paths []string, done func(*model.ReplayReport, int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("replaying trace",
				"trace", path,
				"index", i+1,
				"total", len(paths),
			)

			run := NewRun(path)
			if err := bp.pipelineFactory().Execute(ctx, run); err != nil {
				// The error is recorded in the report; other replays go on.
				bp.logger.Warn("replay failed",
					"trace", path,
					"error", err,
				)
			} else {
				bp.logger.Info("replay completed",
					"trace", path,
					"mismatches", len(run.Report.Mismatches),
				)
			}

			done(run.Report, i)
			return nil
		})
	}

	return g.Wait()
}
