// Package scan tracks photographic coverage around a placed AR anchor.
//
// A Session owns the anchor pose, two rings of 72 visited-slot flags and the
// capture counters. Each capture attempt is quantized against the anchor with
// a geometry.Quantizer, checked by a Gate and, when accepted, applied to the
// session under a single lock, so decision and mutation never interleave
// with another attempt or with a marker rebuild.
//
// Rejections are RejectReason values. They implement error, so callers can
// match them with errors.Is or extract them with errors.As:
//
//	rec, err := session.AttemptCapture(&cam, nil, false)
//	if errors.Is(err, scan.ReasonDuplicateAngle) {
//		// already covered
//	}
//
// Host notifications use single-slot, one-shot callbacks: registering arms
// the slot, firing clears it, and the host must register again to be told
// again. Rendering, haptics and pose acquisition are injected through the
// Renderer, Haptics and PoseProvider interfaces.
package scan
