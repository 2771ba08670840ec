package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/ringscan/internal/config"
	"github.com/nao1215/ringscan/internal/model"
)

func TestBatchProcessorNew(t *testing.T) {
	t.Parallel()

	t.Run("creates processor with defaults", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() })

		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected default concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})

	t.Run("applies WithConcurrency option", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(7))

		if bp.concurrency != 7 {
			t.Errorf("expected concurrency 7, got %d", bp.concurrency)
		}
	})

	t.Run("ignores non-positive concurrency", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithConcurrency(-3))

		if bp.concurrency != DefaultConcurrency {
			t.Errorf("expected concurrency %d, got %d", DefaultConcurrency, bp.concurrency)
		}
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline { return New() }, WithBatchLogger(nil))

		if bp.logger == nil {
			t.Error("expected non-nil logger")
		}
	})
}

func TestBatchProcessorProcessBatch(t *testing.T) {
	t.Parallel()

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		var maxConcurrent atomic.Int32
		var currentConcurrent atomic.Int32
		var mu sync.Mutex

		bp := NewBatchProcessor(
			func() *Pipeline {
				p := New(WithLogger(discardLogger()))
				p.AddStep(&mockStep{
					name: "concurrent-counter",
					doFunc: func(_ context.Context, _ *Run) error {
						current := currentConcurrent.Add(1)

						mu.Lock()
						if current > maxConcurrent.Load() {
							maxConcurrent.Store(current)
						}
						mu.Unlock()

						time.Sleep(20 * time.Millisecond)

						currentConcurrent.Add(-1)
						return nil
					},
				})
				return p
			},
			WithConcurrency(2),
			WithBatchLogger(discardLogger()),
		)

		paths := make([]string, 8)
		for i := range paths {
			paths[i] = "trace.yaml"
		}

		if _, err := bp.ProcessBatch(context.Background(), paths); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if maxConcurrent.Load() > 2 {
			t.Errorf("max concurrent was %d, expected <= 2", maxConcurrent.Load())
		}
	})

	t.Run("maintains result order", func(t *testing.T) {
		t.Parallel()

		bp := NewBatchProcessor(func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{name: "noop"})
			return p
		}, WithBatchLogger(discardLogger()))

		paths := []string{"first.yaml", "second.yaml", "third.yaml"}

		results, err := bp.ProcessBatch(context.Background(), paths)

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, result := range results {
			if result.TracePath != paths[i] {
				t.Errorf("result[%d]: got %q, expected %q", i, result.TracePath, paths[i])
			}
		}
	})

	t.Run("continues after individual replay failure", func(t *testing.T) {
		t.Parallel()

		var processed atomic.Int32

		bp := NewBatchProcessor(func() *Pipeline {
			p := New(WithLogger(discardLogger()))
			p.AddStep(&mockStep{
				name: "sometimes-fails",
				doFunc: func(_ context.Context, run *Run) error {
					processed.Add(1)
					if run.Path == "broken.yaml" {
						return errors.New("simulated replay failure")
					}
					return nil
				},
			})
			return p
		}, WithBatchLogger(discardLogger()))

		results, err := bp.ProcessBatch(context.Background(), []string{"a.yaml", "broken.yaml", "c.yaml"})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if processed.Load() != 3 {
			t.Errorf("expected 3 processed, got %d", processed.Load())
		}
		if results[1].Error == nil {
			t.Error("expected error in second result")
		}
		if results[0].Error != nil || results[2].Error != nil {
			t.Error("expected no error in other results")
		}
	})

	t.Run("cancelled batch leaves unstarted results nil", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bp := NewBatchProcessor(func() *Pipeline { return New(WithLogger(discardLogger())) },
			WithBatchLogger(discardLogger()))

		results, err := bp.ProcessBatch(ctx, []string{"a.yaml", "b.yaml"})

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		for i, r := range results {
			if r != nil {
				t.Errorf("result[%d] should be nil, got %+v", i, r)
			}
		}
	})

	t.Run("replays real traces", func(t *testing.T) {
		t.Parallel()

		good := writeTrace(t, "good.yaml", fullOrbitTrace)
		bad := writeTrace(t, "bad.yaml", "events:\n  - tutorial: skipped\n")

		bp := NewBatchProcessor(func() *Pipeline { return testPipeline(config.NewConfig()) },
			WithConcurrency(2), WithBatchLogger(discardLogger()))

		results, err := bp.ProcessBatch(context.Background(), []string{good, bad})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if results[0].Coverage == nil || results[0].Coverage.Level != model.CoverageComplete {
			t.Errorf("good trace coverage = %+v", results[0].Coverage)
		}
		if !results[1].Failed() || results[1].Coverage != nil {
			t.Errorf("bad trace should fail before summary: %+v", results[1])
		}
	})
}

func TestBatchProcessorWithCallback(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := make(map[int]string)

	bp := NewBatchProcessor(func() *Pipeline {
		p := New(WithLogger(discardLogger()))
		p.AddStep(&mockStep{name: "noop"})
		return p
	}, WithBatchLogger(discardLogger()))

	paths := []string{"x.yaml", "y.yaml", "z.yaml"}
	err := bp.ProcessBatchWithCallback(context.Background(), paths, func(report *model.ReplayReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		seen[index] = report.TracePath
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, path := range paths {
		if seen[i] != path {
			t.Errorf("callback for index %d got %q, expected %q", i, seen[i], path)
		}
	}
}
