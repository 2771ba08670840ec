// Package geometry maps externally supplied AR poses onto the ring and slot
// layout of a scan.
//
// Vectors are gonum r3.Vec values and orientations are unit quaternions
// (quat.Number). The anchor frame follows the AR convention used by ARKit and
// ARCore: local Y is the plane normal, and the rings lie in planes parallel to
// local XZ.
//
// The main entry point is Quantizer, which turns an anchor pose and a camera
// sample into a focus target (lower ring, upper ring or none) and a slot
// index in 0..71. Quantizer is read-only and safe for concurrent use.
package geometry
