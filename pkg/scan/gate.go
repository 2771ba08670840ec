package scan

import "github.com/nao1215/ringscan/pkg/geometry"

// StateView is the read-only session state a Gate decides against.
type StateView struct {
	AnchorPlaced bool
	// Ready is false while ring markers are being rebuilt.
	Ready   bool
	Visited [geometry.RingCount]SlotSet
}

// Attempt is one capture attempt after quantization.
type Attempt struct {
	// Quantized is nil when no usable camera sample was supplied.
	Quantized *geometry.Quantized
	// Brightness is nil when no light estimate is available.
	Brightness      *Brightness
	AllowDuplicates bool
}

// Gate decides whether a capture attempt is accepted. It never mutates state.
type Gate struct {
	minBrightness Brightness
}

// NewGate returns a gate rejecting samples darker than minBrightness.
func NewGate(minBrightness Brightness) Gate {
	return Gate{minBrightness: minBrightness}
}

// Decide applies the capture rules in order and returns the first matching
// RejectReason, or nil when the attempt is accepted.
func (g Gate) Decide(view StateView, a Attempt) error {
	if !view.AnchorPlaced {
		return ReasonNoAnchor
	}
	if a.Quantized == nil {
		return ReasonNoCameraData
	}
	ring, ok := a.Quantized.Ring()
	if !ok {
		return ReasonNotInFocus
	}
	if !view.Ready {
		return ReasonNotReady
	}
	if !a.AllowDuplicates && view.Visited[ring].Has(a.Quantized.Slot) {
		return ReasonDuplicateAngle
	}
	if g.TooDark(a.Brightness) {
		return ReasonTooDark
	}
	return nil
}

// TooDark reports whether sample is below the minimum. A nil sample, a
// non-finite value or a sample in a different unit is never too dark.
func (g Gate) TooDark(sample *Brightness) bool {
	if sample == nil || !sample.comparableTo(g.minBrightness) {
		return false
	}
	return sample.Value < g.minBrightness.Value
}
