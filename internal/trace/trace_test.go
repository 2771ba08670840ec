package trace

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nao1215/ringscan/pkg/geometry"
	"github.com/nao1215/ringscan/pkg/scan"
)

const sampleTrace = `
name: sample
description: one of everything
allowDuplicates: false
events:
  - tutorial: opened
  - placeAnchor:
      position: [0, 0, 0]
      yaw: 90
  - capture:
      position: [0.5, 0, 0]
      brightness: 0.4
      unit: normalized
      expect: accepted
  - orbit:
      ring: upper
      from: 0
      to: 20
  - rescale: 2
  - reset: true
`

func TestParse(t *testing.T) {
	t.Parallel()

	tr, err := Parse(strings.NewReader(sampleTrace), "fallback")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if tr.Name != "sample" || tr.Description != "one of everything" {
		t.Errorf("header = %q / %q", tr.Name, tr.Description)
	}

	kinds := make([]string, 0, len(tr.Events))
	for _, e := range tr.Events {
		kinds = append(kinds, e.Kind())
	}
	want := []string{"tutorial", "placeAnchor", "capture", "orbit", "rescale", "reset"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("event kinds mismatch (-want +got):\n%s", diff)
	}

	b, err := tr.Events[2].Capture.Sample(scan.UnitLux)
	if err != nil {
		t.Fatalf("Sample() error: %v", err)
	}
	if diff := cmp.Diff(&scan.Brightness{Value: 0.4, Unit: scan.UnitNormalized}, b); diff != "" {
		t.Errorf("brightness mismatch (-want +got):\n%s", diff)
	}

	if got := tr.Captures(); got != 5 {
		t.Errorf("Captures() = %d, want 5", got)
	}
}

func TestParseDefaultName(t *testing.T) {
	t.Parallel()

	tr, err := Parse(strings.NewReader("events:\n  - reset: true\n"), "walkaround")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if tr.Name != "walkaround" {
		t.Errorf("Name = %q, want walkaround", tr.Name)
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		input     string
		wantIndex int
	}{
		{"no event type", "events:\n  - {}\n", 0},
		{"two event types", "events:\n  - reset: true\n    rescale: 2\n", 0},
		{"bad ring", "events:\n  - reset: true\n  - orbit: {ring: middle}\n", 1},
		{"negative rescale", "events:\n  - reset: true\n  - reset: true\n  - rescale: -1\n", 2},
		{"bad unit", "events:\n  - capture: {position: [0, 0, 1], brightness: 3, unit: candela}\n", 0},
		{"unknown expectation", "events:\n  - capture: {position: [0, 0, 1], expect: blurry}\n", 0},
		{"forward and lookAt", "events:\n  - capture: {position: [0, 0, 1], forward: [0, 0, -1], lookAt: [0, 0, 0]}\n", 0},
		{"bad tutorial", "events:\n  - tutorial: skipped\n", 0},
		{"empty orbit range", "events:\n  - orbit: {ring: lower, from: 90, to: 90}\n", 0},
		{"orbit step too small", "events:\n  - placeAnchor: {position: [0, 0, 0]}\n  - orbit: {ring: lower, step: 0.0000000001}\n", 1},
		{"orbit range too long", "events:\n  - orbit: {ring: upper, from: 0, to: 1000000}\n", 0},
		{"infinite orbit end", "events:\n  - orbit: {ring: lower, to: .inf}\n", 0},
		{"infinite orbit step", "events:\n  - orbit: {ring: lower, step: .inf}\n", 0},
		{"NaN orbit start", "events:\n  - orbit: {ring: lower, from: .nan}\n", 0},
		{"infinite orbit height", "events:\n  - orbit: {ring: lower, height: -.inf}\n", 0},
		{"image and brightness", "events:\n  - capture: {position: [0, 0, 1], image: a.jpg, brightness: 3}\n", 0},
		{"normalized image", "events:\n  - orbit: {ring: upper, image: a.jpg, unit: normalized}\n", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(strings.NewReader(tc.input), "x")
			if err == nil {
				t.Fatal("expected an error")
			}
			var eventErr *EventError
			if !errors.As(err, &eventErr) {
				t.Fatalf("error %v is not an *EventError", err)
			}
			if eventErr.Index != tc.wantIndex {
				t.Errorf("Index = %d, want %d", eventErr.Index, tc.wantIndex)
			}
			if !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("error %v does not wrap ErrInvalidEvent", err)
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("events:\n  - capture: {positon: [0, 0, 1]}\n"), "x")
	if err == nil {
		t.Fatal("expected an error for a misspelled field")
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "name: nothing\n"} {
		if _, err := Parse(strings.NewReader(input), "x"); !errors.Is(err, ErrNoEvents) {
			t.Errorf("Parse(%q) error = %v, want ErrNoEvents", input, err)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "desk-orbit.yaml")
	if err := os.WriteFile(path, []byte("events:\n  - orbit: {ring: lower}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tr, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tr.Name != "desk-orbit" {
		t.Errorf("Name = %q, want desk-orbit", tr.Name)
	}
	if tr.Dir != dir {
		t.Errorf("Dir = %q, want %q", tr.Dir, dir)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestExposureImagePath(t *testing.T) {
	t.Parallel()

	abs := filepath.Join(t.TempDir(), "b.jpg")
	tests := []struct {
		image string
		want  string
	}{
		{"", ""},
		{"a.jpg", filepath.Join("traces", "a.jpg")},
		{filepath.Join("photos", "a.jpg"), filepath.Join("traces", "photos", "a.jpg")},
		{abs, abs},
	}
	for _, tt := range tests {
		if got := (Exposure{Image: tt.image}).ImagePath("traces"); got != tt.want {
			t.Errorf("ImagePath(%q) = %q, want %q", tt.image, got, tt.want)
		}
	}
}

func TestOrbitSampleCount(t *testing.T) {
	t.Parallel()

	f := func(v float64) *float64 { return &v }

	testCases := []struct {
		name  string
		orbit OrbitEvent
		want  int
	}{
		{"full turn", OrbitEvent{}, geometry.SlotCount},
		{"at the cap", OrbitEvent{To: f(MaxOrbitSamples)}, MaxOrbitSamples / geometry.SlotWidthDegrees},
		{"tiny step", OrbitEvent{Step: 1e-10}, -1},
		{"just over the cap", OrbitEvent{Step: 360.0 / (MaxOrbitSamples + 1)}, -1},
		{"infinite end", OrbitEvent{To: f(math.Inf(1))}, -1},
		{"NaN start", OrbitEvent{From: math.NaN()}, -1},
		{"reversed range", OrbitEvent{From: 90, To: f(10)}, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := tc.orbit.SampleCount(); got != tc.want {
				t.Errorf("SampleCount() = %d, want %d", got, tc.want)
			}
			if got := len(tc.orbit.Azimuths()); got != max(tc.want, 0) {
				t.Errorf("len(Azimuths()) = %d, want %d", got, max(tc.want, 0))
			}
		})
	}
}

func TestOrbitAzimuths(t *testing.T) {
	t.Parallel()

	to := func(v float64) *float64 { return &v }

	testCases := []struct {
		name  string
		orbit OrbitEvent
		count int
		first float64
		last  float64
	}{
		{"full turn", OrbitEvent{}, geometry.SlotCount, 0, 355},
		{"partial", OrbitEvent{From: 90, To: to(180)}, 18, 90, 175},
		{"coarse step", OrbitEvent{Step: 90}, 4, 0, 270},
		{"uneven step", OrbitEvent{To: to(10), Step: 4}, 3, 0, 8},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := tc.orbit.Azimuths()
			if len(got) != tc.count {
				t.Fatalf("len = %d, want %d", len(got), tc.count)
			}
			if got[0] != tc.first || got[len(got)-1] != tc.last {
				t.Errorf("range = %v..%v, want %v..%v", got[0], got[len(got)-1], tc.first, tc.last)
			}
		})
	}
}

func TestOrbitLocalPosition(t *testing.T) {
	t.Parallel()

	rings := geometry.DefaultRingConfig()
	o := OrbitEvent{}

	got := o.LocalPosition(rings, geometry.RingUpper, 90)
	want := r3.Vec{Y: rings.Height(geometry.RingUpper), Z: DefaultOrbitRadius}
	if r3.Norm(r3.Sub(got, want)) > 1e-9 {
		t.Errorf("LocalPosition() = %v, want %v", got, want)
	}

	h := 1.5
	o = OrbitEvent{Radius: 2, Height: &h}
	got = o.LocalPosition(rings, geometry.RingLower, 0)
	if r3.Norm(r3.Sub(got, r3.Vec{X: 2, Y: 1.5})) > 1e-9 {
		t.Errorf("LocalPosition() with overrides = %v", got)
	}
}

func TestAnchorEventPose(t *testing.T) {
	t.Parallel()

	t.Run("yaw", func(t *testing.T) {
		t.Parallel()
		p := AnchorEvent{Yaw: 90}.Pose()
		if got := p.ToWorld(r3.Vec{X: 1}); r3.Norm(r3.Sub(got, r3.Vec{Z: -1})) > 1e-9 {
			t.Errorf("local +X maps to %v, want (0, 0, -1)", got)
		}
	})

	t.Run("orientation", func(t *testing.T) {
		t.Parallel()
		half := math.Sqrt2 / 2
		p := AnchorEvent{Orientation: &[4]float64{half, 0, half, 0}}.Pose()
		if got := p.ToWorld(r3.Vec{X: 1}); r3.Norm(r3.Sub(got, r3.Vec{Z: -1})) > 1e-9 {
			t.Errorf("local +X maps to %v, want (0, 0, -1)", got)
		}
	})

	t.Run("matrix", func(t *testing.T) {
		t.Parallel()
		m := [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 4, 5, 6, 1}
		p := AnchorEvent{Position: Vec3{9, 9, 9}, Matrix: &m}.Pose()
		if p.Position != (r3.Vec{X: 4, Y: 5, Z: 6}) {
			t.Errorf("Position = %v, want matrix translation", p.Position)
		}
	})
}

func TestCaptureEventCamera(t *testing.T) {
	t.Parallel()

	anchor := r3.Vec{X: 1}

	if cam := (CaptureEvent{NoCamera: true}).Camera(anchor); cam != nil {
		t.Errorf("NoCamera should give nil, got %+v", cam)
	}

	cam := CaptureEvent{Position: Vec3{1, 0, 2}}.Camera(anchor)
	if r3.Norm(r3.Sub(r3.Unit(cam.Forward), r3.Vec{Z: -1})) > 1e-9 {
		t.Errorf("default forward = %v, want toward the anchor", cam.Forward)
	}

	fwd := Vec3{0, -1, 0}
	cam = CaptureEvent{Position: Vec3{1, 0, 2}, Forward: &fwd}.Camera(anchor)
	if cam.Forward != (r3.Vec{Y: -1}) {
		t.Errorf("explicit forward = %v", cam.Forward)
	}
}
