// Package trace reads capture traces and replays them against a scan session.
//
// A trace is a YAML document listing the host events an AR view would
// produce: anchor placement, capture attempts with camera pose and light
// estimate, orbits that expand into one capture per angle, ring rescales,
// resets and tutorial notifications. Replaying a trace drives a
// scan.Session exactly as a host would and records every outcome in a
// model.ReplayReport.
//
// Example trace:
//
//	name: lower-orbit
//	events:
//	  - placeAnchor:
//	      position: [0, 0, 0]
//	  - orbit:
//	      ring: lower
//	      brightness: 450
//	  - capture:
//	      position: [0.5, 0, 0]
//	      expect: duplicate_angle
package trace
