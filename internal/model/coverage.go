package model

import (
	"slices"

	"github.com/nao1215/ringscan/pkg/geometry"
	"github.com/nao1215/ringscan/pkg/scan"
)

// CoverageLevel grades how much of the capture rings a replay visited.
// Levels are ordered so they can be compared directly.
type CoverageLevel int

const (
	// CoverageNone means no slot was visited.
	CoverageNone CoverageLevel = iota
	// CoverageSparse means fewer than half of the slots were visited.
	CoverageSparse
	// CoveragePartial means at least half of the slots were visited.
	CoveragePartial
	// CoverageRingComplete means one ring is full and the other is not.
	CoverageRingComplete
	// CoverageComplete means both rings are full.
	CoverageComplete
)

// String returns a human-readable representation of the coverage level.
func (l CoverageLevel) String() string {
	switch l {
	case CoverageNone:
		return "NONE"
	case CoverageSparse:
		return "SPARSE"
	case CoveragePartial:
		return "PARTIAL"
	case CoverageRingComplete:
		return "RING_COMPLETE"
	case CoverageComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// LevelInfo describes a coverage level for reports.
type LevelInfo struct {
	Level          CoverageLevel
	Description    string
	Recommendation string
}

var levelInfoMapping = map[CoverageLevel]LevelInfo{
	CoverageNone: {
		Level:          CoverageNone,
		Description:    "No capture was accepted.",
		Recommendation: "Place the anchor and aim the camera at the marker ring before capturing.",
	},
	CoverageSparse: {
		Level:          CoverageSparse,
		Description:    "Less than half of the capture angles are covered.",
		Recommendation: "Walk around the object and capture the gaps listed for each ring.",
	},
	CoveragePartial: {
		Level:          CoveragePartial,
		Description:    "At least half of the capture angles are covered.",
		Recommendation: "Fill the remaining gaps; reconstruction quality drops sharply at uncovered angles.",
	},
	CoverageRingComplete: {
		Level:          CoverageRingComplete,
		Description:    "One ring is fully covered.",
		Recommendation: "Raise or lower the camera and complete the other ring.",
	},
	CoverageComplete: {
		Level:          CoverageComplete,
		Description:    "Both rings are fully covered.",
		Recommendation: "The capture set is ready for reconstruction.",
	},
}

// GetLevelInfo returns the description of a coverage level.
func GetLevelInfo(level CoverageLevel) LevelInfo {
	if info, ok := levelInfoMapping[level]; ok {
		return info
	}
	return LevelInfo{
		Level:          level,
		Description:    "Unknown coverage level.",
		Recommendation: "Inspect the replay manually.",
	}
}

// LevelFor grades per-ring visited counts.
func LevelFor(visited [geometry.RingCount]int) CoverageLevel {
	full := 0
	unique := 0
	for _, n := range visited {
		unique += n
		if n >= geometry.SlotCount {
			full++
		}
	}
	switch {
	case full == geometry.RingCount:
		return CoverageComplete
	case full > 0:
		return CoverageRingComplete
	case unique == 0:
		return CoverageNone
	case unique*2 >= geometry.TotalSlots:
		return CoveragePartial
	default:
		return CoverageSparse
	}
}

// SlotRange is an inclusive run of consecutive slots on one ring. From may be
// greater than To when the run wraps past slot 0.
type SlotRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Len returns the number of slots in the range.
func (r SlotRange) Len() int {
	return (r.To-r.From+geometry.SlotCount)%geometry.SlotCount + 1
}

// RingCoverage is the coverage of one ring.
type RingCoverage struct {
	Ring     geometry.Ring `json:"ring"`
	Visited  int           `json:"visited"`
	Missing  int           `json:"missing"`
	Complete bool          `json:"complete"`
	Percent  float64       `json:"percent"`
	// Gaps lists the unvisited runs, largest first.
	Gaps []SlotRange `json:"gaps,omitempty"`
}

// CoverageSummary aggregates a finished replay.
type CoverageSummary struct {
	Level     CoverageLevel  `json:"level"`
	LevelText string         `json:"level_text"`
	Rings     []RingCoverage `json:"rings"`

	scan.Progress

	Attempts   int            `json:"attempts"`
	Accepted   int            `json:"accepted"`
	Rejections map[string]int `json:"rejections,omitempty"`
}

// AcceptanceRate returns accepted attempts over all attempts, or 0 when no
// attempt was made.
func (s *CoverageSummary) AcceptanceRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Accepted) / float64(s.Attempts)
}

// Summarize builds a coverage summary from a session snapshot and the
// attempts recorded during a replay.
func Summarize(snap scan.Snapshot, attempts []AttemptRecord) *CoverageSummary {
	summary := &CoverageSummary{
		Progress:   snap.Progress,
		Rings:      make([]RingCoverage, 0, geometry.RingCount),
		Rejections: make(map[string]int),
	}

	var counts [geometry.RingCount]int
	for _, ring := range geometry.Rings {
		set := snap.Visited[ring]
		counts[ring] = set.Count()
		summary.Rings = append(summary.Rings, RingCoverage{
			Ring:     ring,
			Visited:  counts[ring],
			Missing:  geometry.SlotCount - counts[ring],
			Complete: set.Full(),
			Percent:  float64(counts[ring]) * 100 / geometry.SlotCount,
			Gaps:     Gaps(set),
		})
	}
	summary.Level = LevelFor(counts)
	summary.LevelText = summary.Level.String()

	for _, a := range attempts {
		summary.Attempts++
		if a.Accepted {
			summary.Accepted++
			continue
		}
		summary.Rejections[a.Reason]++
	}
	return summary
}

// Gaps returns the unvisited runs of set, largest first. Runs that cross
// slot 0 are merged.
func Gaps(set scan.SlotSet) []SlotRange {
	if set.Full() {
		return nil
	}
	if set.Count() == 0 {
		return []SlotRange{{From: 0, To: geometry.SlotCount - 1}}
	}

	// Start scanning just after a visited slot so no run is split at 0.
	start := 0
	for !set.Has(start) {
		start++
	}

	var gaps []SlotRange
	inGap := false
	var cur SlotRange
	for i := 1; i <= geometry.SlotCount; i++ {
		slot := (start + i) % geometry.SlotCount
		if set.Has(slot) {
			if inGap {
				gaps = append(gaps, cur)
				inGap = false
			}
			continue
		}
		if !inGap {
			cur = SlotRange{From: slot}
			inGap = true
		}
		cur.To = slot
	}

	slices.SortStableFunc(gaps, func(a, b SlotRange) int { return b.Len() - a.Len() })
	return gaps
}
