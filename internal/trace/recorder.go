package trace

import (
	"sync"

	"github.com/nao1215/ringscan/internal/model"
	"github.com/nao1215/ringscan/pkg/geometry"
	"github.com/nao1215/ringscan/pkg/scan"
)

// Recorder stands in for the host's renderer and haptics engine and counts
// their calls into a report.
type Recorder struct {
	mu     sync.Mutex
	report *model.ReplayReport
}

// NewRecorder returns a Recorder writing into report.
func NewRecorder(report *model.ReplayReport) *Recorder {
	return &Recorder{report: report}
}

// RenderSlotMarker implements scan.Renderer.
func (r *Recorder) RenderSlotMarker(_ geometry.Ring, _ int, _ scan.MarkerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.MarkersRendered++
}

// PulseHaptic implements scan.Haptics.
func (r *Recorder) PulseHaptic(strength scan.HapticStrength) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.HapticPulses[strength.String()]++
}

// Callback names recorded in model.EventRecord.
const (
	EventTutorialOpened     = "tutorial_opened"
	EventTutorialCompleted  = "tutorial_completed"
	EventAnchorSet          = "anchor_set"
	EventLowerRingCompleted = "lower_ring_completed"
	EventUpperRingCompleted = "upper_ring_completed"
)

// Watch arms every session callback so that each firing is recorded in the
// report. A recording callback re-arms itself after it runs.
func (r *Recorder) Watch(s *scan.Session) {
	watch := func(name string, register func(func())) {
		var fn func()
		fn = func() {
			r.mu.Lock()
			r.report.AddEvent(name)
			r.mu.Unlock()
			register(fn)
		}
		register(fn)
	}
	watch(EventTutorialOpened, s.OnTutorialOpened)
	watch(EventTutorialCompleted, s.OnTutorialCompleted)
	watch(EventAnchorSet, s.OnAnchorSet)
	watch(EventLowerRingCompleted, s.OnLowerRingCompleted)
	watch(EventUpperRingCompleted, s.OnUpperRingCompleted)
}

// record appends an attempt under the recorder's lock.
func (r *Recorder) record(event int, q *geometry.Quantized, b *scan.Brightness, allow bool, rec *scan.CaptureRecord, err error) model.AttemptRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.report.AddAttempt(event, q, b, allow, rec, err)
}

func (r *Recorder) mismatch(event int, expected, got string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.AddMismatch(event, expected, got)
}
