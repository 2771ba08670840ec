package scan

import (
	"fmt"
	"math"
	"strings"
)

// BrightnessUnit is the scale a brightness value is measured on.
type BrightnessUnit int

const (
	// UnitLux is an ambient light estimate in lux.
	UnitLux BrightnessUnit = iota
	// UnitNormalized is an average pixel intensity in [0, 1].
	UnitNormalized
)

// Default minimum brightness per unit.
const (
	DefaultMinLux        = 300.0
	DefaultMinNormalized = 0.15
)

// String returns "lux" or "normalized".
func (u BrightnessUnit) String() string {
	switch u {
	case UnitLux:
		return "lux"
	case UnitNormalized:
		return "normalized"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (u BrightnessUnit) MarshalText() ([]byte, error) {
	if u != UnitLux && u != UnitNormalized {
		return nil, fmt.Errorf("unknown brightness unit %d", int(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *BrightnessUnit) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "lux":
		*u = UnitLux
	case "normalized", "normalised":
		*u = UnitNormalized
	default:
		return fmt.Errorf("unknown brightness unit %q (want lux or normalized)", text)
	}
	return nil
}

// DefaultMin returns the stock minimum brightness for the unit.
func (u BrightnessUnit) DefaultMin() Brightness {
	if u == UnitNormalized {
		return Normalized(DefaultMinNormalized)
	}
	return Lux(DefaultMinLux)
}

// Brightness is an ambient brightness sample or threshold.
type Brightness struct {
	Value float64        `json:"value" yaml:"value"`
	Unit  BrightnessUnit `json:"unit" yaml:"unit"`
}

// Lux returns a brightness measured in lux.
func Lux(v float64) Brightness {
	return Brightness{Value: v, Unit: UnitLux}
}

// Normalized returns a brightness measured as normalized pixel intensity.
func Normalized(v float64) Brightness {
	return Brightness{Value: v, Unit: UnitNormalized}
}

// String formats the value with its unit.
func (b Brightness) String() string {
	return fmt.Sprintf("%g %s", b.Value, b.Unit)
}

// comparableTo reports whether b can be checked against threshold.
// Samples in another unit or with a non-finite value cannot.
func (b Brightness) comparableTo(threshold Brightness) bool {
	return b.Unit == threshold.Unit && !math.IsNaN(b.Value) && !math.IsInf(b.Value, 0)
}
