package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Quantized is the discrete address of a camera sample relative to an anchor.
type Quantized struct {
	// Focus is the ring the camera is aimed at, or FocusNone.
	Focus FocusTarget `json:"focus"`
	// Slot is the angular slot index in 0..SlotCount-1. It is meaningful
	// even when Focus is FocusNone, as long as the camera is not directly
	// above or below the anchor.
	Slot int `json:"slot"`
	// AngleToAnchor is the angle in radians between the camera's forward
	// direction and the direction to the anchor. NaN for degenerate input.
	AngleToAnchor float64 `json:"angle_to_anchor"`
	// AzimuthDegrees is the camera azimuth around the anchor's local Y axis,
	// measured from local +X toward local +Z, in [0, 360).
	AzimuthDegrees float64 `json:"azimuth_degrees"`
	// LocalHeight is the camera's height in the anchor frame.
	LocalHeight float64 `json:"local_height"`
}

// Ring returns the targeted ring. ok is false when nothing is in focus.
func (q Quantized) Ring() (Ring, bool) {
	return q.Focus.Ring()
}

// Quantizer converts world poses into ring and slot addresses.
// The zero value is not usable; create one with NewQuantizer.
type Quantizer struct {
	cfg RingConfig
}

// NewQuantizer returns a Quantizer for the given ring layout.
func NewQuantizer(cfg RingConfig) *Quantizer {
	return &Quantizer{cfg: cfg}
}

// Config returns the ring layout the quantizer was built with.
func (q *Quantizer) Config() RingConfig {
	return q.cfg
}

// Quantize computes the focus target and slot of cam relative to anchor.
func (q *Quantizer) Quantize(anchor Pose, cam CameraSample) Quantized {
	local := anchor.ToLocal(cam.Position)
	azimuth := Azimuth(local)

	result := Quantized{
		Focus:          FocusNone,
		Slot:           SlotForAzimuth(azimuth),
		AngleToAnchor:  math.NaN(),
		AzimuthDegrees: azimuth,
		LocalHeight:    local.Y,
	}

	forward, ok := unit(cam.Forward)
	if !ok {
		return result
	}
	toAnchor, ok := unit(r3.Sub(anchor.Position, cam.Position))
	if !ok {
		return result
	}

	// Clamp guards acos against rounding just outside [-1, 1].
	cos := math.Max(-1, math.Min(1, r3.Dot(forward, toAnchor)))
	result.AngleToAnchor = math.Acos(cos)
	if !(result.AngleToAnchor < q.cfg.AngleThreshold) {
		return result
	}

	if local.Y < q.cfg.SplitHeight() {
		result.Focus = FocusLower
	} else {
		result.Focus = FocusUpper
	}
	return result
}

// MarkerPosition returns the anchor-local position of a ring marker.
func (q *Quantizer) MarkerPosition(ring Ring, slot int) r3.Vec {
	theta := float64(ClampSlot(slot)) * SlotWidthDegrees * math.Pi / 180
	return r3.Vec{
		X: q.cfg.Radius * math.Cos(theta),
		Y: q.cfg.Height(ring),
		Z: q.cfg.Radius * math.Sin(theta),
	}
}

// WorldMarkerPosition returns the world position of a ring marker.
func (q *Quantizer) WorldMarkerPosition(anchor Pose, ring Ring, slot int) r3.Vec {
	return anchor.ToWorld(q.MarkerPosition(ring, slot))
}

// Azimuth returns the angle of the anchor-local point around local Y,
// in degrees within [0, 360). Non-finite input yields 0.
func Azimuth(local r3.Vec) float64 {
	deg := math.Atan2(local.Z, local.X) * 180 / math.Pi
	if math.IsNaN(deg) {
		return 0
	}
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// SlotForAzimuth rounds an azimuth in degrees to the nearest slot.
func SlotForAzimuth(deg float64) int {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	return ClampSlot(int(math.Round(math.Mod(deg, 360) / SlotWidthDegrees)))
}

// ClampSlot maps any integer onto 0..SlotCount-1 with a non-negative modulo.
func ClampSlot(slot int) int {
	slot %= SlotCount
	if slot < 0 {
		slot += SlotCount
	}
	return slot
}
