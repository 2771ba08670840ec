package model

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/ringscan/pkg/geometry"
	"github.com/nao1215/ringscan/pkg/scan"
)

// ReplayReport is the result of replaying one capture trace through a scan
// session.
type ReplayReport struct {
	// ID uniquely identifies the replay in the history database.
	ID string `json:"id"`

	// TracePath is the file the trace was loaded from.
	TracePath string `json:"trace_path"`

	// TraceName is the trace's declared name, or the file base name.
	TraceName string `json:"trace_name"`

	// Description is copied from the trace.
	Description string `json:"description,omitempty"`

	// DateReplayed is when the replay started.
	DateReplayed time.Time `json:"date_replayed"`

	// Duration is the wall time spent in the pipeline.
	Duration time.Duration `json:"duration"`

	// Config is the effective session configuration.
	Config scan.Config `json:"config"`

	// Attempts holds every capture attempt in replay order.
	Attempts []AttemptRecord `json:"attempts"`

	// Events holds the callbacks the session fired.
	Events []EventRecord `json:"events,omitempty"`

	// Mismatches lists attempts whose outcome differed from the trace's
	// expectation.
	Mismatches []Mismatch `json:"mismatches,omitempty"`

	// MarkersRendered counts marker render calls made by the session.
	MarkersRendered int `json:"markers_rendered"`

	// HapticPulses counts haptic pulses by strength.
	HapticPulses map[string]int `json:"haptic_pulses,omitempty"`

	// Final is the session state after the last event.
	Final *scan.Snapshot `json:"final,omitempty"`

	// Coverage is filled by the summary step.
	Coverage *CoverageSummary `json:"coverage,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps"`

	// Error holds the first error that stopped the pipeline.
	Error error `json:"-"`

	// ErrorMessage is Error rendered for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// AttemptRecord is one capture attempt and its outcome.
type AttemptRecord struct {
	// Event is the index of the trace event that produced the attempt.
	Event int `json:"event"`

	// Ring and Slot are the quantized address. Ring is empty when the
	// camera was not aimed at a ring.
	Ring string `json:"ring,omitempty"`
	Slot int    `json:"slot"`

	// Focus is the quantizer's focus target.
	Focus string `json:"focus"`

	// AngleToAnchor is in radians.
	AngleToAnchor float64 `json:"angle_to_anchor"`

	Brightness      *scan.Brightness `json:"brightness,omitempty"`
	AllowDuplicates bool             `json:"allow_duplicates,omitempty"`

	Accepted bool `json:"accepted"`
	// Reason is the rejection reason, empty when accepted.
	Reason string `json:"reason,omitempty"`

	Token         string `json:"token,omitempty"`
	NewAngle      bool   `json:"new_angle,omitempty"`
	RingCompleted bool   `json:"ring_completed,omitempty"`
}

// Outcome returns "accepted" or the rejection reason.
func (a AttemptRecord) Outcome() string {
	if a.Accepted {
		return "accepted"
	}
	return a.Reason
}

// EventRecord is a session callback observed during a replay.
type EventRecord struct {
	Name string `json:"name"`
	// AfterAttempt is the number of attempts recorded when the callback fired.
	AfterAttempt int `json:"after_attempt"`
}

// Mismatch is an attempt whose outcome differs from the trace expectation.
type Mismatch struct {
	Event    int    `json:"event"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

// NewReplayReport creates a report for the trace at path.
func NewReplayReport(path string) *ReplayReport {
	return &ReplayReport{
		ID:             uuid.NewString(),
		TracePath:      path,
		DateReplayed:   time.Now(),
		Attempts:       make([]AttemptRecord, 0),
		HapticPulses:   make(map[string]int),
		PerformedSteps: make([]string, 0),
	}
}

// AddAttempt appends an attempt built from the quantized address and the
// session's answer.
func (r *ReplayReport) AddAttempt(event int, q *geometry.Quantized, b *scan.Brightness, allow bool, rec *scan.CaptureRecord, err error) AttemptRecord {
	a := AttemptRecord{
		Event:           event,
		Focus:           geometry.FocusNone.String(),
		Brightness:      b,
		AllowDuplicates: allow,
	}
	if q != nil {
		a.Focus = q.Focus.String()
		a.Slot = q.Slot
		if !math.IsNaN(q.AngleToAnchor) {
			a.AngleToAnchor = q.AngleToAnchor
		}
		if ring, ok := q.Ring(); ok {
			a.Ring = ring.String()
		}
	}
	if err != nil {
		a.Reason = reasonText(err)
	} else if rec != nil {
		a.Accepted = true
		a.Token = rec.Token
		a.NewAngle = rec.NewAngle
		a.RingCompleted = rec.RingCompleted
	}
	r.Attempts = append(r.Attempts, a)
	return a
}

// AddEvent records a fired callback.
func (r *ReplayReport) AddEvent(name string) {
	r.Events = append(r.Events, EventRecord{Name: name, AfterAttempt: len(r.Attempts)})
}

// AddMismatch records an unexpected attempt outcome.
func (r *ReplayReport) AddMismatch(event int, expected, got string) {
	r.Mismatches = append(r.Mismatches, Mismatch{Event: event, Expected: expected, Got: got})
}

// CountEvents returns how many times the named callback fired.
func (r *ReplayReport) CountEvents(name string) int {
	n := 0
	for _, e := range r.Events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// SetError records err as the pipeline failure.
func (r *ReplayReport) SetError(err error) {
	r.Error = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Failed reports whether the replay errored or any expectation mismatched.
func (r *ReplayReport) Failed() bool {
	return r.Error != nil || r.ErrorMessage != "" || len(r.Mismatches) > 0
}

func reasonText(err error) string {
	var reason scan.RejectReason
	if errors.As(err, &reason) {
		return reason.String()
	}
	return err.Error()
}
