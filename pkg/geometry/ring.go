package geometry

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Layout constants. Both rings carry the same number of slots.
const (
	// SlotCount is the number of angular slots per ring.
	SlotCount = 72
	// SlotWidthDegrees is the angular width of one slot.
	SlotWidthDegrees = 360.0 / SlotCount
	// RingCount is the number of rings around the anchor.
	RingCount = 2
	// TotalSlots is the number of unique angles in a full scan.
	TotalSlots = SlotCount * RingCount
)

// Default ring geometry, in meters and radians.
const (
	DefaultLowerRingHeight = 0.0
	DefaultRingSeparation  = 0.3
	DefaultRingRadius      = 0.1
	DefaultAngleThreshold  = 0.6
	// DefaultSplitFraction places the lower/upper switch-over at 4/5 of the
	// ring separation above the lower ring.
	DefaultSplitFraction = 0.8
)

// ErrInvalidRingConfig is returned by RingConfig.Validate.
var ErrInvalidRingConfig = errors.New("invalid ring configuration")

// Ring identifies one of the two marker rings.
type Ring int

const (
	// RingLower is the ring at LowerRingHeight.
	RingLower Ring = iota
	// RingUpper is the ring RingSeparation above the lower ring.
	RingUpper
)

// Rings lists both rings in index order.
var Rings = [RingCount]Ring{RingLower, RingUpper}

// String returns "lower" or "upper".
func (r Ring) String() string {
	switch r {
	case RingLower:
		return "lower"
	case RingUpper:
		return "upper"
	default:
		return fmt.Sprintf("ring(%d)", int(r))
	}
}

// Valid reports whether r names an existing ring.
func (r Ring) Valid() bool {
	return r == RingLower || r == RingUpper
}

// MarshalText implements encoding.TextMarshaler.
func (r Ring) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("unknown ring %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ring) UnmarshalText(text []byte) error {
	parsed, err := ParseRing(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRing parses "lower" or "upper", case-insensitively.
func ParseRing(s string) (Ring, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lower":
		return RingLower, nil
	case "upper":
		return RingUpper, nil
	default:
		return 0, fmt.Errorf("unknown ring %q (want lower or upper)", s)
	}
}

// FocusTarget is the ring the camera is oriented toward, if any.
type FocusTarget int

const (
	// FocusNone means the camera is not looking at the anchor.
	FocusNone FocusTarget = iota
	// FocusLower targets the lower ring.
	FocusLower
	// FocusUpper targets the upper ring.
	FocusUpper
)

// String returns "none", "lower" or "upper".
func (f FocusTarget) String() string {
	switch f {
	case FocusLower:
		return "lower"
	case FocusUpper:
		return "upper"
	default:
		return "none"
	}
}

// Ring returns the targeted ring. ok is false for FocusNone.
func (f FocusTarget) Ring() (ring Ring, ok bool) {
	switch f {
	case FocusLower:
		return RingLower, true
	case FocusUpper:
		return RingUpper, true
	default:
		return 0, false
	}
}

// RingConfig is the ring geometry relative to the anchor, in the anchor's
// local frame.
type RingConfig struct {
	// LowerRingHeight is the local Y of the lower ring.
	LowerRingHeight float64 `json:"lower_ring_height" yaml:"lowerRingHeight"`
	// RingSeparation is the vertical distance between the rings.
	RingSeparation float64 `json:"ring_separation" yaml:"ringSeparation"`
	// Radius is the ring radius used for marker placement.
	Radius float64 `json:"radius" yaml:"radius"`
	// AngleThreshold is the maximum angle in radians between the camera's
	// forward direction and the direction to the anchor.
	AngleThreshold float64 `json:"angle_threshold" yaml:"angleThreshold"`
	// SplitFraction positions the lower/upper decision height as a fraction
	// of RingSeparation above the lower ring.
	SplitFraction float64 `json:"split_fraction" yaml:"splitFraction"`
}

// DefaultRingConfig returns the stock ring layout.
func DefaultRingConfig() RingConfig {
	return RingConfig{
		LowerRingHeight: DefaultLowerRingHeight,
		RingSeparation:  DefaultRingSeparation,
		Radius:          DefaultRingRadius,
		AngleThreshold:  DefaultAngleThreshold,
		SplitFraction:   DefaultSplitFraction,
	}
}

// Validate checks that the configuration describes a usable layout.
func (c RingConfig) Validate() error {
	switch {
	case !finite(c.LowerRingHeight):
		return fmt.Errorf("%w: lower ring height must be finite", ErrInvalidRingConfig)
	case !finite(c.RingSeparation) || c.RingSeparation <= 0:
		return fmt.Errorf("%w: ring separation must be positive, got %v", ErrInvalidRingConfig, c.RingSeparation)
	case !finite(c.Radius) || c.Radius <= 0:
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidRingConfig, c.Radius)
	case !finite(c.AngleThreshold) || c.AngleThreshold <= 0 || c.AngleThreshold > math.Pi:
		return fmt.Errorf("%w: angle threshold must be in (0, pi], got %v", ErrInvalidRingConfig, c.AngleThreshold)
	case !finite(c.SplitFraction) || c.SplitFraction < 0 || c.SplitFraction > 1:
		return fmt.Errorf("%w: split fraction must be in [0, 1], got %v", ErrInvalidRingConfig, c.SplitFraction)
	}
	return nil
}

// Height returns the local Y of ring.
func (c RingConfig) Height(ring Ring) float64 {
	if ring == RingUpper {
		return c.LowerRingHeight + c.RingSeparation
	}
	return c.LowerRingHeight
}

// SplitHeight is the local Y at and above which the upper ring is targeted.
func (c RingConfig) SplitHeight() float64 {
	return c.LowerRingHeight + c.RingSeparation*c.SplitFraction
}

// Scaled returns a copy with the radius multiplied by factor.
func (c RingConfig) Scaled(factor float64) RingConfig {
	c.Radius *= factor
	return c
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
