package scan

import "github.com/nao1215/ringscan/pkg/geometry"

// MarkerState is the display state of a ring marker.
type MarkerState int

const (
	// MarkerUnvisited is a slot that has not been captured.
	MarkerUnvisited MarkerState = iota
	// MarkerVisited is a captured slot.
	MarkerVisited
)

// String returns "unvisited" or "visited".
func (s MarkerState) String() string {
	if s == MarkerVisited {
		return "visited"
	}
	return "unvisited"
}

// HapticStrength is the intensity of a haptic pulse.
type HapticStrength int

const (
	// HapticLight acknowledges an accepted capture.
	HapticLight HapticStrength = iota
	// HapticStrong marks a completed ring.
	HapticStrong
)

// String returns "light" or "strong".
func (h HapticStrength) String() string {
	if h == HapticStrong {
		return "strong"
	}
	return "light"
}

// Renderer draws ring markers. Calls are made without the session lock held,
// so implementations may call back into the session.
type Renderer interface {
	RenderSlotMarker(ring geometry.Ring, slot int, state MarkerState)
}

// Haptics plays haptic feedback.
type Haptics interface {
	PulseHaptic(strength HapticStrength)
}

// PoseProvider supplies the current camera state from the host AR layer.
type PoseProvider interface {
	// CameraSample returns the current camera pose. ok is false while
	// tracking is unavailable.
	CameraSample() (sample geometry.CameraSample, ok bool)
	// Brightness returns the current light estimate. ok is false when the
	// device has none.
	Brightness() (sample Brightness, ok bool)
}
