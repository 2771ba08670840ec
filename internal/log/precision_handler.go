package log

import (
	"context"
	"io"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// PrecisionHandler wraps an slog.Handler and rounds numeric attributes to a
// fixed number of decimals before passing them on.
type PrecisionHandler struct {
	handler slog.Handler
	scale   float64
}

// NewPrecisionHandler creates a PrecisionHandler keeping the given number of
// decimals. If handler is nil, slog.Default().Handler() is used.
func NewPrecisionHandler(handler slog.Handler, decimals int) *PrecisionHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if decimals < 0 {
		decimals = 0
	}
	return &PrecisionHandler{handler: handler, scale: math.Pow10(decimals)}
}

// Enabled delegates to the underlying handler.
func (h *PrecisionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rounds the record's attributes and passes it to the underlying handler.
func (h *PrecisionHandler) Handle(ctx context.Context, r slog.Record) error {
	rounded := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		rounded.AddAttrs(h.roundAttr(a))
		return true
	})
	return h.handler.Handle(ctx, rounded)
}

// WithAttrs returns a new handler with the given attributes rounded and added.
func (h *PrecisionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	rounded := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		rounded[i] = h.roundAttr(a)
	}
	return &PrecisionHandler{handler: h.handler.WithAttrs(rounded), scale: h.scale}
}

// WithGroup returns a new handler with the given group name.
func (h *PrecisionHandler) WithGroup(name string) slog.Handler {
	return &PrecisionHandler{handler: h.handler.WithGroup(name), scale: h.scale}
}

func (h *PrecisionHandler) roundAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	switch v.Kind() {
	case slog.KindGroup:
		attrs := v.Group()
		rounded := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			rounded[i] = h.roundAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(rounded...)}
	case slog.KindFloat64:
		return slog.Float64(a.Key, h.round(v.Float64()))
	case slog.KindAny:
		switch x := v.Any().(type) {
		case r3.Vec:
			return slog.Any(a.Key, h.roundVec(x))
		case *r3.Vec:
			if x != nil {
				return slog.Any(a.Key, h.roundVec(*x))
			}
		case quat.Number:
			return slog.Any(a.Key, quat.Number{
				Real: h.round(x.Real),
				Imag: h.round(x.Imag),
				Jmag: h.round(x.Jmag),
				Kmag: h.round(x.Kmag),
			})
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func (h *PrecisionHandler) roundVec(v r3.Vec) r3.Vec {
	return r3.Vec{X: h.round(v.X), Y: h.round(v.Y), Z: h.round(v.Z)}
}

func (h *PrecisionHandler) round(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	r := math.Round(f*h.scale) / h.scale
	if r == 0 {
		// Drop the sign of -0 so it prints as 0.
		return 0
	}
	return r
}

// NewLogger creates a text logger whose float attributes are rounded to
// decimals places.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
//   - decimals: Number of decimals kept for floats, vectors and quaternions
func NewLogger(w io.Writer, verbose bool, decimals int) *slog.Logger {
	return slog.New(NewPrecisionHandler(slog.NewTextHandler(w, handlerOptions(verbose)), decimals))
}

// NewJSONLogger creates a JSON logger whose float attributes are rounded to
// decimals places. Useful for structured log aggregation.
func NewJSONLogger(w io.Writer, verbose bool, decimals int) *slog.Logger {
	return slog.New(NewPrecisionHandler(slog.NewJSONHandler(w, handlerOptions(verbose)), decimals))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
