package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/ringscan/pkg/geometry"
	"github.com/nao1215/ringscan/pkg/scan"
)

// DefaultOrbitRadius is the camera distance from the anchor used by orbits
// that do not set one.
const DefaultOrbitRadius = 0.5

// MaxOrbitSamples caps the captures a single orbit may expand into.
const MaxOrbitSamples = geometry.SlotCount * 100

// ExpectAccepted is the expectation value for a capture that must succeed.
const ExpectAccepted = "accepted"

// Trace is a recorded sequence of host events.
type Trace struct {
	// Name identifies the trace in reports and history. Defaults to the file
	// base name without extension.
	Name string `yaml:"name"`

	// Description is free text copied into reports.
	Description string `yaml:"description"`

	// AllowDuplicates is the default unlimited mode for every capture.
	AllowDuplicates bool `yaml:"allowDuplicates"`

	// Events are replayed in order.
	Events []Event `yaml:"events"`

	// Dir is the directory relative image paths are resolved against. Load
	// sets it to the trace file's directory.
	Dir string `yaml:"-"`
}

// Vec3 is an [x, y, z] triple.
type Vec3 [3]float64

// Vec returns v as an r3.Vec.
func (v Vec3) Vec() r3.Vec {
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// Event is one host event. Exactly one field must be set.
type Event struct {
	PlaceAnchor *AnchorEvent  `yaml:"placeAnchor,omitempty"`
	Capture     *CaptureEvent `yaml:"capture,omitempty"`
	Orbit       *OrbitEvent   `yaml:"orbit,omitempty"`
	Rescale     *float64      `yaml:"rescale,omitempty"`
	Reset       bool          `yaml:"reset,omitempty"`
	// Tutorial is "opened" or "completed".
	Tutorial string `yaml:"tutorial,omitempty"`
}

// Kind returns the name of the event's populated field.
func (e Event) Kind() string {
	switch {
	case e.PlaceAnchor != nil:
		return "placeAnchor"
	case e.Capture != nil:
		return "capture"
	case e.Orbit != nil:
		return "orbit"
	case e.Rescale != nil:
		return "rescale"
	case e.Reset:
		return "reset"
	case e.Tutorial != "":
		return "tutorial"
	default:
		return ""
	}
}

func (e Event) fieldCount() int {
	n := 0
	for _, set := range []bool{
		e.PlaceAnchor != nil,
		e.Capture != nil,
		e.Orbit != nil,
		e.Rescale != nil,
		e.Reset,
		e.Tutorial != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// AnchorEvent places the anchor. Matrix, when set, is a column-major 4x4
// transform and overrides the other fields.
type AnchorEvent struct {
	Position Vec3 `yaml:"position"`
	// Orientation is a [w, x, y, z] quaternion.
	Orientation *[4]float64 `yaml:"orientation,omitempty"`
	// Yaw rotates the anchor about +Y, in degrees. Ignored when Orientation
	// is set.
	Yaw    float64      `yaml:"yaw,omitempty"`
	Matrix *[16]float64 `yaml:"matrix,omitempty"`
}

// Pose returns the anchor pose described by the event.
func (a AnchorEvent) Pose() geometry.Pose {
	if a.Matrix != nil {
		return geometry.PoseFromColumnMajor(*a.Matrix)
	}
	if a.Orientation != nil {
		o := *a.Orientation
		return geometry.NewPose(a.Position.Vec(), quat.Number{Real: o[0], Imag: o[1], Jmag: o[2], Kmag: o[3]})
	}
	if a.Yaw != 0 {
		rot := r3.NewRotation(a.Yaw*math.Pi/180, r3.Vec{Y: 1})
		return geometry.NewPose(a.Position.Vec(), quat.Number(rot))
	}
	return geometry.PoseAt(a.Position.Vec())
}

// Exposure is a light estimate attached to captures.
type Exposure struct {
	// Brightness is the sample value. Captures without one skip the light
	// check.
	Brightness *float64 `yaml:"brightness,omitempty"`
	// Unit is "lux" or "normalized". Defaults to the session's threshold
	// unit.
	Unit string `yaml:"unit,omitempty"`
	// Image is a photo whose EXIF exposure settings give a lux sample. It
	// replaces Brightness.
	Image string `yaml:"image,omitempty"`
}

// ImagePath returns Image resolved against dir.
func (x Exposure) ImagePath(dir string) string {
	if x.Image == "" || filepath.IsAbs(x.Image) {
		return x.Image
	}
	return filepath.Join(dir, x.Image)
}

// Sample returns the brightness sample, or nil when none is set.
func (x Exposure) Sample(fallback scan.BrightnessUnit) (*scan.Brightness, error) {
	if x.Brightness == nil {
		return nil, nil
	}
	unit := fallback
	if x.Unit != "" {
		if err := unit.UnmarshalText([]byte(x.Unit)); err != nil {
			return nil, err
		}
	}
	return &scan.Brightness{Value: *x.Brightness, Unit: unit}, nil
}

// CaptureEvent is a single capture attempt.
type CaptureEvent struct {
	Position Vec3 `yaml:"position"`
	// Forward is the camera viewing direction. When neither Forward nor
	// LookAt is set the camera looks at the anchor.
	Forward *Vec3 `yaml:"forward,omitempty"`
	LookAt  *Vec3 `yaml:"lookAt,omitempty"`
	// Matrix, when set, is the camera's column-major transform.
	Matrix *[16]float64 `yaml:"matrix,omitempty"`
	// NoCamera simulates lost tracking.
	NoCamera bool `yaml:"noCamera,omitempty"`

	Exposure `yaml:",inline"`

	// AllowDuplicates overrides the trace default.
	AllowDuplicates *bool `yaml:"allowDuplicates,omitempty"`
	// Expect is "accepted" or a rejection reason such as "too_dark".
	Expect string `yaml:"expect,omitempty"`
}

// Camera returns the camera sample, or nil when the event simulates lost
// tracking. anchor is the current anchor position.
func (c CaptureEvent) Camera(anchor r3.Vec) *geometry.CameraSample {
	var cam geometry.CameraSample
	switch {
	case c.NoCamera:
		return nil
	case c.Matrix != nil:
		cam = geometry.CameraSampleFromColumnMajor(*c.Matrix)
	case c.Forward != nil:
		cam = geometry.CameraSample{Position: c.Position.Vec(), Forward: c.Forward.Vec()}
	case c.LookAt != nil:
		cam = geometry.LookAt(c.Position.Vec(), c.LookAt.Vec())
	default:
		cam = geometry.LookAt(c.Position.Vec(), anchor)
	}
	return &cam
}

// OrbitEvent expands into one capture per step around a ring, with the
// camera in the anchor's frame looking at the anchor.
type OrbitEvent struct {
	Ring string `yaml:"ring"`
	// Radius is the camera distance from the anchor axis. Defaults to
	// DefaultOrbitRadius.
	Radius float64 `yaml:"radius,omitempty"`
	// Height is the camera height in the anchor frame. Defaults to the
	// ring height.
	Height *float64 `yaml:"height,omitempty"`
	// From and To bound the azimuth in degrees; To is exclusive. They
	// default to a full turn.
	From float64  `yaml:"from,omitempty"`
	To   *float64 `yaml:"to,omitempty"`
	// Step is the azimuth increment in degrees. Defaults to one slot.
	Step float64 `yaml:"step,omitempty"`

	Exposure `yaml:",inline"`

	AllowDuplicates *bool  `yaml:"allowDuplicates,omitempty"`
	Expect          string `yaml:"expect,omitempty"`
}

func (o OrbitEvent) bounds() (to, step float64) {
	to = o.From + 360
	if o.To != nil {
		to = *o.To
	}
	step = o.Step
	if step == 0 {
		step = geometry.SlotWidthDegrees
	}
	return to, step
}

// SampleCount returns the number of azimuths the orbit expands into, or -1
// when the range is not finite or exceeds MaxOrbitSamples.
func (o OrbitEvent) SampleCount() int {
	to, step := o.bounds()
	if !finiteAll([]float64{o.From, to, step}) || step <= 0 {
		return -1
	}
	n := math.Ceil((to-o.From)/step - 1e-9)
	if math.IsNaN(n) || n > MaxOrbitSamples {
		return -1
	}
	return max(int(n), 0)
}

// Azimuths returns the sampled azimuths in degrees. An orbit rejected by
// SampleCount yields none.
func (o OrbitEvent) Azimuths() []float64 {
	n := o.SampleCount()
	if n <= 0 {
		return nil
	}
	_, step := o.bounds()
	out := make([]float64, 0, n)
	for k := range n {
		out = append(out, o.From+float64(k)*step)
	}
	return out
}

// LocalPosition returns the camera position in the anchor frame for
// azimuth deg.
func (o OrbitEvent) LocalPosition(rings geometry.RingConfig, ring geometry.Ring, deg float64) r3.Vec {
	radius := o.Radius
	if radius == 0 {
		radius = DefaultOrbitRadius
	}
	height := rings.Height(ring)
	if o.Height != nil {
		height = *o.Height
	}
	rad := deg * math.Pi / 180
	return r3.Vec{X: radius * math.Cos(rad), Y: height, Z: radius * math.Sin(rad)}
}

// Load reads and validates the trace at path.
func Load(path string) (*Trace, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is supplied by the user
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}
	tr, err := Parse(bytes.NewReader(data), NameFromPath(path))
	if err != nil {
		return nil, err
	}
	tr.Dir = filepath.Dir(path)
	return tr, nil
}

// NameFromPath returns the file base name without extension, the name of a
// trace that does not declare one.
func NameFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Parse decodes and validates a trace. defaultName is used when the trace
// does not declare a name.
func Parse(r io.Reader, defaultName string) (*Trace, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var tr Trace
	if err := dec.Decode(&tr); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoEvents
		}
		return nil, fmt.Errorf("failed to parse trace: %w", err)
	}
	if tr.Name == "" {
		tr.Name = defaultName
	}
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Validate checks every event. The first problem is returned as an
// *EventError.
func (t *Trace) Validate() error {
	if len(t.Events) == 0 {
		return ErrNoEvents
	}
	for i, e := range t.Events {
		if err := validateEvent(i, e); err != nil {
			return err
		}
	}
	return nil
}

// Captures returns the number of capture attempts the trace will make.
func (t *Trace) Captures() int {
	n := 0
	for _, e := range t.Events {
		switch {
		case e.Capture != nil:
			n++
		case e.Orbit != nil:
			n += len(e.Orbit.Azimuths())
		}
	}
	return n
}

func validateEvent(i int, e Event) error {
	switch e.fieldCount() {
	case 0:
		return eventErrorf(i, "no event type set")
	case 1:
	default:
		return eventErrorf(i, "more than one event type set")
	}

	switch {
	case e.PlaceAnchor != nil:
		if m := e.PlaceAnchor.Matrix; m != nil && !finiteAll(m[:]) {
			return eventErrorf(i, "anchor matrix is not finite")
		}
	case e.Capture != nil:
		c := e.Capture
		if c.Forward != nil && c.LookAt != nil {
			return eventErrorf(i, "capture sets both forward and lookAt")
		}
		if err := validateExposure(i, c.Exposure); err != nil {
			return err
		}
		return validateExpect(i, c.Expect)
	case e.Orbit != nil:
		o := e.Orbit
		if _, err := geometry.ParseRing(o.Ring); err != nil {
			return eventErrorf(i, "orbit: %v", err)
		}
		if o.Step < 0 || o.Radius < 0 {
			return eventErrorf(i, "orbit step and radius must not be negative")
		}
		if to, step := o.bounds(); !finiteAll([]float64{o.From, to, step, o.Radius}) {
			return eventErrorf(i, "orbit from, to, step and radius must be finite")
		}
		if o.Height != nil && !finiteAll([]float64{*o.Height}) {
			return eventErrorf(i, "orbit height must be finite")
		}
		if o.To != nil && *o.To <= o.From {
			return eventErrorf(i, "orbit to (%v) must be greater than from (%v)", *o.To, o.From)
		}
		if o.SampleCount() < 0 {
			return eventErrorf(i, "orbit expands into more than %d captures", MaxOrbitSamples)
		}
		if err := validateExposure(i, o.Exposure); err != nil {
			return err
		}
		return validateExpect(i, o.Expect)
	case e.Rescale != nil:
		if f := *e.Rescale; f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return eventErrorf(i, "rescale factor must be positive, got %v", f)
		}
	case e.Tutorial != "":
		if e.Tutorial != "opened" && e.Tutorial != "completed" {
			return eventErrorf(i, "tutorial must be opened or completed, got %q", e.Tutorial)
		}
	}
	return nil
}

func validateExposure(i int, x Exposure) error {
	if x.Image != "" {
		if x.Brightness != nil {
			return eventErrorf(i, "image and brightness cannot both be set")
		}
		if x.Unit != "" && x.Unit != scan.UnitLux.String() {
			return eventErrorf(i, "image exposure is measured in lux, got unit %q", x.Unit)
		}
	}
	if _, err := x.Sample(scan.UnitLux); err != nil {
		return eventErrorf(i, "%v", err)
	}
	return nil
}

func validateExpect(i int, expect string) error {
	if expect == "" || expect == ExpectAccepted {
		return nil
	}
	if _, err := scan.ParseRejectReason(expect); err != nil {
		return eventErrorf(i, "unknown expectation %q", expect)
	}
	return nil
}

func finiteAll(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
