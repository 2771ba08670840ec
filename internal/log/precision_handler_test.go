package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// TestPrecisionHandler_RoundsFloats tests rounding of plain float attributes.
func TestPrecisionHandler_RoundsFloats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		decimals int
		value    any
		want     string
	}{
		{name: "float64 rounded to 3 decimals", decimals: 3, value: 0.123456, want: "v=0.123"},
		{name: "float64 rounded up", decimals: 2, value: 1.005001, want: "v=1.01"},
		{name: "float32 rounded", decimals: 1, value: float32(2.25), want: "v=2.3"},
		{name: "negative zero printed as zero", decimals: 2, value: -0.0001, want: "v=0"},
		{name: "zero decimals", decimals: 0, value: 41.7, want: "v=42"},
		{name: "NaN kept", decimals: 2, value: math.NaN(), want: "v=NaN"},
		{name: "integers untouched", decimals: 0, value: 12345, want: "v=12345"},
		{name: "strings untouched", decimals: 1, value: "0.123456", want: "v=0.123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := NewLogger(&buf, true, tt.decimals)
			logger.Info("msg", "v", tt.value)

			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q in output, got %q", tt.want, buf.String())
			}
		})
	}
}

// TestPrecisionHandler_RoundsGeometry tests rounding of vectors and quaternions.
func TestPrecisionHandler_RoundsGeometry(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, true, 2)

	vec := r3.Vec{X: 0.123456, Y: -1.987654, Z: 3}
	logger.Info("pose",
		"position", vec,
		"position_ptr", &vec,
		"orientation", quat.Number{Real: 0.70710678, Jmag: 0.70710678},
	)

	var got struct {
		Position    r3.Vec      `json:"position"`
		PositionPtr r3.Vec      `json:"position_ptr"`
		Orientation quat.Number `json:"orientation"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}

	want := r3.Vec{X: 0.12, Y: -1.99, Z: 3}
	if got.Position != want {
		t.Errorf("position = %v, want %v", got.Position, want)
	}
	if got.PositionPtr != want {
		t.Errorf("position_ptr = %v, want %v", got.PositionPtr, want)
	}
	if got.Orientation.Real != 0.71 || got.Orientation.Jmag != 0.71 {
		t.Errorf("orientation = %v", got.Orientation)
	}
}

// TestPrecisionHandler_Groups tests that grouped and With attributes are rounded.
func TestPrecisionHandler_Groups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(&buf, true, 1).With("radius", 0.1234)
	logger.Info("msg", slog.Group("camera", slog.Float64("angle", 0.5678)))

	out := buf.String()
	for _, want := range []string{"radius=0.1", "camera.angle=0.6"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}

	buf.Reset()
	logger.WithGroup("g").Info("msg", "v", 9.99)
	if !strings.Contains(buf.String(), "g.v=10") {
		t.Errorf("expected grouped rounding, got %q", buf.String())
	}
}

type lazyFloat float64

func (l lazyFloat) LogValue() slog.Value { return slog.Float64Value(float64(l)) }

// TestPrecisionHandler_ResolvesLogValuer tests that LogValuer values are rounded.
func TestPrecisionHandler_ResolvesLogValuer(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewLogger(&buf, true, 2).Info("msg", "v", lazyFloat(3.14159))
	if !strings.Contains(buf.String(), "v=3.14") {
		t.Errorf("expected resolved value, got %q", buf.String())
	}
}

// TestNewLogger_Levels tests the verbose switch.
func TestNewLogger_Levels(t *testing.T) {
	t.Parallel()

	t.Run("non-verbose hides info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := NewLogger(&buf, false, 2)
		logger.Info("hidden")
		logger.Warn("shown")

		if strings.Contains(buf.String(), "hidden") {
			t.Error("info message should not be logged")
		}
		if !strings.Contains(buf.String(), "shown") {
			t.Error("warn message should be logged")
		}
	})

	t.Run("verbose shows debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		NewJSONLogger(&buf, true, 2).Debug("detail")
		if !strings.Contains(buf.String(), `"msg":"detail"`) {
			t.Errorf("debug message missing: %q", buf.String())
		}
	})
}

// TestNewPrecisionHandler_NilHandler tests the fallback to the default handler.
func TestNewPrecisionHandler_NilHandler(t *testing.T) {
	t.Parallel()

	h := NewPrecisionHandler(nil, -3)
	if h.handler == nil {
		t.Error("expected default handler")
	}
	if h.scale != 1 {
		t.Errorf("negative decimals should clamp to 0, scale = %v", h.scale)
	}
}
