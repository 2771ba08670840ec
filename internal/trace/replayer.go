package trace

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/nao1215/ringscan/internal/exposure"
	"github.com/nao1215/ringscan/pkg/geometry"
	"github.com/nao1215/ringscan/pkg/scan"
)

// Replayer drives a scan session through the events of a trace.
type Replayer struct {
	logger *slog.Logger
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Replayer) {
		r.logger = logger
	}
}

// NewReplayer creates a Replayer.
func NewReplayer(opts ...Option) *Replayer {
	r := &Replayer{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// staticPose is a scan.PoseProvider returning fixed samples.
type staticPose struct {
	camera     *geometry.CameraSample
	brightness *scan.Brightness
}

func (p staticPose) CameraSample() (geometry.CameraSample, bool) {
	if p.camera == nil {
		return geometry.CameraSample{}, false
	}
	return *p.camera, true
}

func (p staticPose) Brightness() (scan.Brightness, bool) {
	if p.brightness == nil {
		return scan.Brightness{}, false
	}
	return *p.brightness, true
}

// Replay runs every event of tr against s and records outcomes through rec.
// Cancellation is checked between events and between orbit samples.
func (r *Replayer) Replay(ctx context.Context, tr *Trace, s *scan.Session, rec *Recorder) error {
	for i, e := range tr.Events {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("replay stopped before event %d: %w", i, err)
		}

		r.logger.Debug("replaying event", "index", i, "kind", e.Kind())

		switch {
		case e.PlaceAnchor != nil:
			if !s.PlaceAnchor(e.PlaceAnchor.Pose()) {
				r.logger.Info("anchor already placed", "index", i)
			}
		case e.Capture != nil:
			if err := r.capture(i, tr, s, rec, e.Capture); err != nil {
				return err
			}
		case e.Orbit != nil:
			if err := r.orbit(ctx, i, tr, s, rec, e.Orbit); err != nil {
				return err
			}
		case e.Rescale != nil:
			if err := s.Rescale(*e.Rescale); err != nil {
				return &EventError{Index: i, Err: err}
			}
		case e.Reset:
			s.Reset()
		case e.Tutorial == "opened":
			s.NotifyTutorialOpened()
		case e.Tutorial == "completed":
			s.NotifyTutorialCompleted()
		}
	}
	return nil
}

func (r *Replayer) capture(i int, tr *Trace, s *scan.Session, rec *Recorder, c *CaptureEvent) error {
	anchor, _ := s.Anchor()
	b, err := r.sample(tr, s, c.Exposure)
	if err != nil {
		return &EventError{Index: i, Err: err}
	}
	allow := tr.AllowDuplicates
	if c.AllowDuplicates != nil {
		allow = *c.AllowDuplicates
	}
	r.attempt(i, s, rec, staticPose{camera: c.Camera(anchor.Position), brightness: b}, allow, c.Expect)
	return nil
}

// sample returns the brightness for x, reading the image's EXIF settings
// when one is named.
func (r *Replayer) sample(tr *Trace, s *scan.Session, x Exposure) (*scan.Brightness, error) {
	if x.Image == "" {
		return x.Sample(s.Config().MinBrightness.Unit)
	}
	settings, err := exposure.ReadFile(x.ImagePath(tr.Dir))
	if err != nil {
		return nil, err
	}
	b := settings.Brightness()
	r.logger.Debug("brightness from image",
		"image", x.Image,
		"f_number", settings.FNumber,
		"exposure_time", settings.ExposureTime,
		"iso", settings.ISO,
		"lux", b.Value,
	)
	return &b, nil
}

func (r *Replayer) orbit(ctx context.Context, i int, tr *Trace, s *scan.Session, rec *Recorder, o *OrbitEvent) error {
	ring, err := geometry.ParseRing(o.Ring)
	if err != nil {
		return &EventError{Index: i, Err: err}
	}
	b, err := r.sample(tr, s, o.Exposure)
	if err != nil {
		return &EventError{Index: i, Err: err}
	}
	allow := tr.AllowDuplicates
	if o.AllowDuplicates != nil {
		allow = *o.AllowDuplicates
	}

	// Without an anchor the orbit runs around the world origin and every
	// attempt is rejected.
	anchor, ok := s.Anchor()
	if !ok {
		anchor = geometry.PoseAt(r3.Vec{})
	}
	rings := s.Config().Rings

	for _, deg := range o.Azimuths() {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("replay stopped during event %d: %w", i, err)
		}
		local := o.LocalPosition(rings, ring, deg)
		cam := geometry.LookAt(anchor.ToWorld(local), anchor.Position)
		r.attempt(i, s, rec, staticPose{camera: &cam, brightness: b}, allow, o.Expect)
	}
	return nil
}

func (r *Replayer) attempt(i int, s *scan.Session, rec *Recorder, pose staticPose, allow bool, expect string) {
	res, err := s.CaptureDetailed(pose, allow)
	attempt := rec.record(i, res.Quantized, pose.brightness, allow, res.Record, err)

	if want := normalizeExpect(expect); want != "" && want != attempt.Outcome() {
		r.logger.Warn("unexpected capture outcome",
			"index", i, "expected", want, "got", attempt.Outcome(), "position", cameraPosition(pose.camera))
		rec.mismatch(i, want, attempt.Outcome())
	}
}

func normalizeExpect(expect string) string {
	if expect == "" || expect == ExpectAccepted {
		return expect
	}
	if reason, err := scan.ParseRejectReason(expect); err == nil {
		return reason.String()
	}
	return expect
}

func cameraPosition(cam *geometry.CameraSample) r3.Vec {
	if cam == nil {
		return r3.Vec{}
	}
	return cam.Position
}
