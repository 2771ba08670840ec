package geometry

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a rigid transform in world space: a position and a unit quaternion
// orientation.
type Pose struct {
	Position    r3.Vec      `json:"position"`
	Orientation quat.Number `json:"orientation"`
}

// Identity is the unrotated orientation.
var Identity = quat.Number{Real: 1}

// NewPose returns a pose with a normalized orientation.
// A zero or non-finite quaternion is replaced by the identity.
func NewPose(position r3.Vec, orientation quat.Number) Pose {
	return Pose{Position: position, Orientation: normalizeQuat(orientation)}
}

// PoseAt returns an unrotated pose at position.
func PoseAt(position r3.Vec) Pose {
	return Pose{Position: position, Orientation: Identity}
}

// PoseFromColumnMajor builds a pose from a 4x4 column-major rigid transform,
// the layout ARKit (simd_float4x4) and ARCore (Pose.toMatrix) hand out.
// Element (row r, column c) is m[c*4+r].
func PoseFromColumnMajor(m [16]float64) Pose {
	at := func(r, c int) float64 { return m[c*4+r] }

	var q quat.Number
	trace := at(0, 0) + at(1, 1) + at(2, 2)
	switch {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{
			Real: 0.25 * s,
			Imag: (at(2, 1) - at(1, 2)) / s,
			Jmag: (at(0, 2) - at(2, 0)) / s,
			Kmag: (at(1, 0) - at(0, 1)) / s,
		}
	case at(0, 0) > at(1, 1) && at(0, 0) > at(2, 2):
		s := math.Sqrt(1+at(0, 0)-at(1, 1)-at(2, 2)) * 2
		q = quat.Number{
			Real: (at(2, 1) - at(1, 2)) / s,
			Imag: 0.25 * s,
			Jmag: (at(0, 1) + at(1, 0)) / s,
			Kmag: (at(0, 2) + at(2, 0)) / s,
		}
	case at(1, 1) > at(2, 2):
		s := math.Sqrt(1+at(1, 1)-at(0, 0)-at(2, 2)) * 2
		q = quat.Number{
			Real: (at(0, 2) - at(2, 0)) / s,
			Imag: (at(0, 1) + at(1, 0)) / s,
			Jmag: 0.25 * s,
			Kmag: (at(1, 2) + at(2, 1)) / s,
		}
	default:
		s := math.Sqrt(1+at(2, 2)-at(0, 0)-at(1, 1)) * 2
		q = quat.Number{
			Real: (at(1, 0) - at(0, 1)) / s,
			Imag: (at(0, 2) + at(2, 0)) / s,
			Jmag: (at(1, 2) + at(2, 1)) / s,
			Kmag: 0.25 * s,
		}
	}

	return NewPose(r3.Vec{X: m[12], Y: m[13], Z: m[14]}, q)
}

// ToLocal expresses the world point p in the pose's local frame.
func (p Pose) ToLocal(world r3.Vec) r3.Vec {
	q := normalizeQuat(p.Orientation)
	return r3.Rotation(quat.Conj(q)).Rotate(r3.Sub(world, p.Position))
}

// ToWorld expresses the local point in world coordinates.
func (p Pose) ToWorld(local r3.Vec) r3.Vec {
	q := normalizeQuat(p.Orientation)
	return r3.Add(p.Position, r3.Rotation(q).Rotate(local))
}

// Up returns the pose's local +Y axis in world coordinates.
func (p Pose) Up() r3.Vec {
	return r3.Rotation(normalizeQuat(p.Orientation)).Rotate(r3.Vec{Y: 1})
}

// CameraSample is the per-attempt camera state supplied by the host AR layer.
type CameraSample struct {
	// Position is the camera position in world space.
	Position r3.Vec `json:"position"`
	// Forward is the viewing direction. It need not be normalized.
	Forward r3.Vec `json:"forward"`
}

// CameraSampleFromColumnMajor extracts position and viewing direction from
// a column-major camera transform. AR cameras look down their local -Z axis.
func CameraSampleFromColumnMajor(m [16]float64) CameraSample {
	return CameraSample{
		Position: r3.Vec{X: m[12], Y: m[13], Z: m[14]},
		Forward:  r3.Vec{X: -m[8], Y: -m[9], Z: -m[10]},
	}
}

// Valid reports whether the sample has a finite position and a usable
// viewing direction.
func (c CameraSample) Valid() bool {
	if !finite(c.Position.X) || !finite(c.Position.Y) || !finite(c.Position.Z) {
		return false
	}
	_, ok := unit(c.Forward)
	return ok
}

// LookAt returns a camera at position aimed at target.
func LookAt(position, target r3.Vec) CameraSample {
	return CameraSample{Position: position, Forward: r3.Sub(target, position)}
}

// unit normalizes v. It reports false for zero-length or non-finite vectors.
func unit(v r3.Vec) (r3.Vec, bool) {
	n := r3.Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return r3.Vec{}, false
	}
	return r3.Scale(1/n, v), true
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Identity
	}
	return quat.Scale(1/n, q)
}
