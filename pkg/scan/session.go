package scan

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/ringscan/pkg/geometry"
)

// State is the lifecycle stage of a Session.
type State int

const (
	// StateEmpty has no anchor.
	StateEmpty State = iota
	// StateAnchorPlaced has an anchor but no accepted capture.
	StateAnchorPlaced
	// StateScanning has at least one accepted capture.
	StateScanning
	// StateComplete has every slot of both rings visited.
	StateComplete
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAnchorPlaced:
		return "anchor_placed"
	case StateScanning:
		return "scanning"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Progress is the derived counters of a session.
type Progress struct {
	TotalPhotosTaken  int  `json:"total_photos_taken"`
	UniqueAnglesTaken int  `json:"unique_angles_taken"`
	RemainingAngles   int  `json:"remaining_angles"`
	Complete          bool `json:"complete"`
}

// CaptureRecord describes an accepted capture.
type CaptureRecord struct {
	// Token identifies the capture. Hosts use it to name the saved image.
	Token string        `json:"token"`
	Ring  geometry.Ring `json:"ring"`
	Slot  int           `json:"slot"`
	// NewAngle is true when the slot was not visited before this capture.
	NewAngle bool `json:"new_angle"`
	// RingCompleted is true when this capture filled the ring.
	RingCompleted     bool      `json:"ring_completed"`
	TotalPhotosTaken  int       `json:"total_photos_taken"`
	UniqueAnglesTaken int       `json:"unique_angles_taken"`
	CapturedAt        time.Time `json:"captured_at"`
}

// Snapshot is an immutable copy of session state.
type Snapshot struct {
	State   State                       `json:"state"`
	Anchor  *geometry.Pose              `json:"anchor,omitempty"`
	Rings   geometry.RingConfig         `json:"rings"`
	Ready   bool                        `json:"ready"`
	Visited [geometry.RingCount]SlotSet `json:"visited"`
	Progress
}

// Session is the scan-coverage state of one AR view. All methods are safe for
// concurrent use; capture attempts are serialized.
type Session struct {
	mu sync.Mutex

	cfg       Config
	quantizer *geometry.Quantizer
	gate      Gate

	anchor    geometry.Pose
	hasAnchor bool
	visited   [geometry.RingCount]SlotSet
	total     int
	unique    int
	state     State

	rebuilding bool
	rendered   [geometry.RingCount]SlotSet

	events Events

	renderer Renderer
	haptics  Haptics
	logger   *slog.Logger
	now      func() time.Time
	newToken func() string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithRenderer sets the marker renderer.
func WithRenderer(r Renderer) Option {
	return func(s *Session) {
		s.renderer = r
	}
}

// WithHaptics sets the haptic feedback collaborator.
func WithHaptics(h Haptics) Option {
	return func(s *Session) {
		s.haptics = h
	}
}

// WithClock sets the time source used for capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithTokenSource sets the generator of capture tokens. Defaults to random UUIDs.
func WithTokenSource(next func() string) Option {
	return func(s *Session) {
		s.newToken = next
	}
}

// NewSession returns an empty session.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:       cfg,
		quantizer: geometry.NewQuantizer(cfg.Rings),
		gate:      NewGate(cfg.MinBrightness),
		state:     StateEmpty,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newToken == nil {
		s.newToken = uuid.NewString
	}
	return s, nil
}

// PlaceAnchor sets the anchor and clears coverage. It returns false and
// changes nothing when an anchor is already placed.
func (s *Session) PlaceAnchor(pose geometry.Pose) bool {
	s.mu.Lock()
	if s.hasAnchor {
		s.mu.Unlock()
		s.logger.Debug("anchor already placed, ignoring placement")
		return false
	}

	s.anchor = geometry.NewPose(pose.Position, pose.Orientation)
	s.hasAnchor = true
	s.clearCoverage()
	s.state = StateAnchorPlaced
	fire := s.events.AnchorSet.take()
	renderer := s.renderer
	s.mu.Unlock()

	s.logger.Info("anchor placed", "position", pose.Position)

	if renderer != nil {
		for _, ring := range geometry.Rings {
			for slot := 0; slot < geometry.SlotCount; slot++ {
				renderer.RenderSlotMarker(ring, slot, MarkerUnvisited)
			}
		}
	}
	runAll([]func(){fire})
	return true
}

// CaptureResult is the outcome of a capture attempt.
type CaptureResult struct {
	// Quantized is the camera address the capture rules were applied to.
	// Nil without an anchor or usable camera data.
	Quantized *geometry.Quantized
	// Record is set when the capture was accepted.
	Record *CaptureRecord
}

// AttemptCapture quantizes camera against the anchor and applies the capture
// rules. camera and brightness may be nil when the host has no data. On
// acceptance the slot is marked and a record is returned; otherwise the error
// is a RejectReason and the session is unchanged.
func (s *Session) AttemptCapture(camera *geometry.CameraSample, brightness *Brightness, allowDuplicates bool) (*CaptureRecord, error) {
	res, err := s.AttemptCaptureDetailed(camera, brightness, allowDuplicates)
	return res.Record, err
}

// AttemptCaptureDetailed is AttemptCapture that also reports the quantized
// address the decision was made on, for accepted and rejected attempts alike.
func (s *Session) AttemptCaptureDetailed(camera *geometry.CameraSample, brightness *Brightness, allowDuplicates bool) (CaptureResult, error) {
	s.mu.Lock()

	attempt := Attempt{Brightness: brightness, AllowDuplicates: allowDuplicates}
	if s.hasAnchor && camera != nil && camera.Valid() {
		q := s.quantizer.Quantize(s.anchor, *camera)
		attempt.Quantized = &q
	}
	if brightness != nil && !brightness.comparableTo(s.cfg.MinBrightness) {
		s.logger.Warn("brightness sample ignored",
			"sample", brightness.String(),
			"unit", s.cfg.MinBrightness.Unit.String(),
		)
	}

	view := StateView{
		AnchorPlaced: s.hasAnchor,
		Ready:        !s.rebuilding,
		Visited:      s.visited,
	}
	if err := s.gate.Decide(view, attempt); err != nil {
		s.mu.Unlock()
		s.logger.Debug("capture rejected", "reason", err)
		return CaptureResult{Quantized: attempt.Quantized}, err
	}

	ring, _ := attempt.Quantized.Ring()
	slot := geometry.ClampSlot(attempt.Quantized.Slot)

	newAngle := s.visited[ring].Set(slot)
	s.total++
	if newAngle {
		s.unique++
	}
	ringCompleted := newAngle && s.visited[ring].Full()

	var fire []func()
	if ringCompleted {
		fire = append(fire, s.events.ringCompleted(ring).take())
	}
	switch {
	case s.unique == geometry.TotalSlots:
		s.state = StateComplete
	case s.state == StateAnchorPlaced:
		s.state = StateScanning
	}

	rec := &CaptureRecord{
		Token:             s.newToken(),
		Ring:              ring,
		Slot:              slot,
		NewAngle:          newAngle,
		RingCompleted:     ringCompleted,
		TotalPhotosTaken:  s.total,
		UniqueAnglesTaken: s.unique,
		CapturedAt:        s.now(),
	}
	renderer, haptics := s.renderer, s.haptics
	s.mu.Unlock()

	s.logger.Debug("capture accepted",
		"ring", ring.String(),
		"slot", slot,
		"new_angle", newAngle,
		"unique", rec.UniqueAnglesTaken,
	)
	if ringCompleted {
		s.logger.Info("ring completed", "ring", ring.String())
	}

	if renderer != nil {
		renderer.RenderSlotMarker(ring, slot, MarkerVisited)
	}
	if haptics != nil {
		haptics.PulseHaptic(HapticLight)
		if ringCompleted {
			haptics.PulseHaptic(HapticStrong)
		}
	}
	runAll(fire)
	return CaptureResult{Quantized: attempt.Quantized, Record: rec}, nil
}

// Capture reads the camera and light estimate from p and attempts a capture.
func (s *Session) Capture(p PoseProvider, allowDuplicates bool) (*CaptureRecord, error) {
	res, err := s.CaptureDetailed(p, allowDuplicates)
	return res.Record, err
}

// CaptureDetailed is Capture returning the full CaptureResult.
func (s *Session) CaptureDetailed(p PoseProvider, allowDuplicates bool) (CaptureResult, error) {
	var camera *geometry.CameraSample
	if sample, ok := p.CameraSample(); ok {
		camera = &sample
	}
	var brightness *Brightness
	if sample, ok := p.Brightness(); ok {
		brightness = &sample
	}
	return s.AttemptCaptureDetailed(camera, brightness, allowDuplicates)
}

// Quantize returns the focus target and slot of camera against the current
// anchor. ok is false when no anchor is placed.
func (s *Session) Quantize(camera geometry.CameraSample) (q geometry.Quantized, ok bool) {
	s.mu.Lock()
	anchor, has, quantizer := s.anchor, s.hasAnchor, s.quantizer
	s.mu.Unlock()

	if !has {
		return geometry.Quantized{}, false
	}
	return quantizer.Quantize(anchor, camera), true
}

// Reset returns the session to StateEmpty. Armed callbacks and the current
// ring scale are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	s.anchor = geometry.Pose{}
	s.hasAnchor = false
	s.clearCoverage()
	s.state = StateEmpty
	s.mu.Unlock()

	s.logger.Info("session reset")
}

// clearCoverage drops visited slots, counters and any rebuild in progress.
// Callers hold s.mu.
func (s *Session) clearCoverage() {
	for i := range s.visited {
		s.visited[i].Clear()
		s.rendered[i].Clear()
	}
	s.total = 0
	s.unique = 0
	s.rebuilding = false
}

// Rescale multiplies the ring radius by factor and re-renders every marker.
// While markers are being rebuilt, captures are rejected with ReasonNotReady.
// Without a Renderer the rebuild finishes immediately.
func (s *Session) Rescale(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor <= 0 {
		return fmt.Errorf("%w: scale factor must be positive, got %v", ErrInvalidConfig, factor)
	}

	s.mu.Lock()
	rings := s.cfg.Rings.Scaled(factor)
	if err := rings.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s.cfg.Rings = rings
	s.quantizer = geometry.NewQuantizer(rings)
	if !s.hasAnchor {
		s.mu.Unlock()
		return nil
	}
	s.startRebuild()
	visited := s.visited
	renderer := s.renderer
	s.mu.Unlock()

	s.logger.Debug("rebuilding ring markers", "radius", rings.Radius)

	if renderer == nil {
		s.finishRebuild()
		return nil
	}
	for _, ring := range geometry.Rings {
		for slot := 0; slot < geometry.SlotCount; slot++ {
			state := MarkerUnvisited
			if visited[ring].Has(slot) {
				state = MarkerVisited
			}
			renderer.RenderSlotMarker(ring, slot, state)
			s.MarkerRendered(ring, slot)
		}
	}
	return nil
}

// BeginRebuild marks every marker as missing. Hosts that render markers
// asynchronously call it before re-creating markers and report each one
// with MarkerRendered. It has no effect without an anchor.
func (s *Session) BeginRebuild() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasAnchor {
		s.startRebuild()
	}
}

// MarkerRendered records that the marker for ring and slot is present again.
// The session becomes ready once all markers of both rings are reported.
func (s *Session) MarkerRendered(ring geometry.Ring, slot int) {
	if !ring.Valid() {
		return
	}

	s.mu.Lock()
	if !s.rebuilding {
		s.mu.Unlock()
		return
	}
	s.rendered[ring].Set(slot)
	done := s.rendered[geometry.RingLower].Full() && s.rendered[geometry.RingUpper].Full()
	if done {
		s.rebuilding = false
	}
	s.mu.Unlock()

	if done {
		s.logger.Debug("ring markers rebuilt")
	}
}

func (s *Session) startRebuild() {
	s.rebuilding = true
	for i := range s.rendered {
		s.rendered[i].Clear()
	}
}

func (s *Session) finishRebuild() {
	s.mu.Lock()
	s.rebuilding = false
	s.mu.Unlock()
}

// Ready reports whether all ring markers are present.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.rebuilding
}

// State returns the lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Anchor returns the placed anchor. ok is false when none is placed.
func (s *Session) Anchor() (pose geometry.Pose, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchor, s.hasAnchor
}

// Config returns the current configuration, including any rescale.
func (s *Session) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Visited returns a copy of the visited slots of ring.
func (s *Session) Visited(ring geometry.Ring) SlotSet {
	if !ring.Valid() {
		return SlotSet{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visited[ring]
}

// TotalPhotosTaken returns the number of accepted captures.
func (s *Session) TotalPhotosTaken() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// UniqueAnglesTaken returns the number of visited slots across both rings.
func (s *Session) UniqueAnglesTaken() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unique
}

// RemainingAngles returns the number of unvisited slots across both rings.
func (s *Session) RemainingAngles() int {
	return geometry.TotalSlots - s.UniqueAnglesTaken()
}

// IsScanComplete reports whether every slot of both rings is visited.
func (s *Session) IsScanComplete() bool {
	return s.UniqueAnglesTaken() == geometry.TotalSlots
}

// Progress returns all counters at once.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress()
}

func (s *Session) progress() Progress {
	return Progress{
		TotalPhotosTaken:  s.total,
		UniqueAnglesTaken: s.unique,
		RemainingAngles:   geometry.TotalSlots - s.unique,
		Complete:          s.unique == geometry.TotalSlots,
	}
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:    s.state,
		Rings:    s.cfg.Rings,
		Ready:    !s.rebuilding,
		Visited:  s.visited,
		Progress: s.progress(),
	}
	if s.hasAnchor {
		anchor := s.anchor
		snap.Anchor = &anchor
	}
	return snap
}

// OnTutorialOpened arms the tutorial-opened callback.
func (s *Session) OnTutorialOpened(fn func()) { s.arm(&s.events.TutorialOpened, fn) }

// OnTutorialCompleted arms the tutorial-completed callback.
func (s *Session) OnTutorialCompleted(fn func()) { s.arm(&s.events.TutorialCompleted, fn) }

// OnAnchorSet arms the callback fired by the next successful PlaceAnchor.
func (s *Session) OnAnchorSet(fn func()) { s.arm(&s.events.AnchorSet, fn) }

// OnLowerRingCompleted arms the callback fired when the lower ring fills.
func (s *Session) OnLowerRingCompleted(fn func()) { s.arm(&s.events.LowerRingCompleted, fn) }

// OnUpperRingCompleted arms the callback fired when the upper ring fills.
func (s *Session) OnUpperRingCompleted(fn func()) { s.arm(&s.events.UpperRingCompleted, fn) }

// NotifyTutorialOpened fires the tutorial-opened callback, if armed.
func (s *Session) NotifyTutorialOpened() bool { return s.fire(&s.events.TutorialOpened) }

// NotifyTutorialCompleted fires the tutorial-completed callback, if armed.
func (s *Session) NotifyTutorialCompleted() bool { return s.fire(&s.events.TutorialCompleted) }

func (s *Session) arm(cb *Callback, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb.Arm(fn)
}

func (s *Session) fire(cb *Callback) bool {
	s.mu.Lock()
	fn := cb.take()
	s.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}
