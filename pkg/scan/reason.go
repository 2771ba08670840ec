package scan

import (
	"fmt"
	"strings"
)

// RejectReason explains why a capture attempt was not accepted.
// It implements error; a nil error from AttemptCapture means acceptance.
type RejectReason int

const (
	// ReasonNoAnchor means no anchor has been placed yet.
	ReasonNoAnchor RejectReason = iota + 1
	// ReasonNoCameraData means the camera pose was unavailable or unusable.
	ReasonNoCameraData
	// ReasonNotInFocus means the camera is not pointed at the anchor.
	ReasonNotInFocus
	// ReasonNotReady means the ring markers are being rebuilt.
	ReasonNotReady
	// ReasonDuplicateAngle means the slot was already captured.
	ReasonDuplicateAngle
	// ReasonTooDark means the brightness sample is below the minimum.
	ReasonTooDark
)

// Reasons lists every reject reason in gate order.
var Reasons = []RejectReason{
	ReasonNoAnchor,
	ReasonNoCameraData,
	ReasonNotInFocus,
	ReasonNotReady,
	ReasonDuplicateAngle,
	ReasonTooDark,
}

// String returns the snake_case identifier of the reason.
func (r RejectReason) String() string {
	switch r {
	case ReasonNoAnchor:
		return "no_anchor"
	case ReasonNoCameraData:
		return "no_camera_data"
	case ReasonNotInFocus:
		return "not_in_focus"
	case ReasonNotReady:
		return "not_ready"
	case ReasonDuplicateAngle:
		return "duplicate_angle"
	case ReasonTooDark:
		return "too_dark"
	default:
		return "unknown"
	}
}

// Error implements error.
func (r RejectReason) Error() string {
	return "capture rejected: " + r.String()
}

// MarshalText implements encoding.TextMarshaler.
func (r RejectReason) MarshalText() ([]byte, error) {
	if _, ok := reasonInfoMapping[r]; !ok {
		return nil, fmt.Errorf("unknown reject reason %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *RejectReason) UnmarshalText(text []byte) error {
	parsed, err := ParseRejectReason(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRejectReason parses the identifier returned by String.
// Hyphens and case are ignored, so "Too-Dark" parses as ReasonTooDark.
func ParseRejectReason(s string) (RejectReason, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, r := range Reasons {
		if r.String() == key {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown reject reason %q", s)
}

// ReasonInfo is the user-facing text for a reject reason.
type ReasonInfo struct {
	Reason  RejectReason
	Message string
	Hint    string
}

// reasonInfoMapping holds the messages a host shows for each rejection.
var reasonInfoMapping = map[RejectReason]ReasonInfo{
	ReasonNoAnchor: {
		Reason:  ReasonNoAnchor,
		Message: "No anchor has been placed.",
		Hint:    "Tap a detected surface to place the anchor.",
	},
	ReasonNoCameraData: {
		Reason:  ReasonNoCameraData,
		Message: "Camera position is not available.",
		Hint:    "Hold the device steady until tracking recovers.",
	},
	ReasonNotInFocus: {
		Reason:  ReasonNotInFocus,
		Message: "The camera is not pointed at the object.",
		Hint:    "Aim the camera at the center of the rings.",
	},
	ReasonNotReady: {
		Reason:  ReasonNotReady,
		Message: "The rings are still being updated.",
		Hint:    "Wait a moment after resizing before taking a photo.",
	},
	ReasonDuplicateAngle: {
		Reason:  ReasonDuplicateAngle,
		Message: "A photo from this angle has already been taken.",
		Hint:    "Move to a marker that has not been captured yet.",
	},
	ReasonTooDark: {
		Reason:  ReasonTooDark,
		Message: "It is too dark to take a photo.",
		Hint:    "Turn on more lights or move to a brighter area.",
	},
}

// GetReasonInfo returns the message and hint for r.
// Unknown values get a generic message.
func GetReasonInfo(r RejectReason) ReasonInfo {
	if info, ok := reasonInfoMapping[r]; ok {
		return info
	}
	return ReasonInfo{
		Reason:  r,
		Message: "The photo could not be taken.",
		Hint:    "Try again.",
	}
}
