// Package log builds the slog loggers used by ringscan.
//
// Pose data is noisy: AR tracking reports positions with far more digits than
// the millimeter-level precision a scan cares about. PrecisionHandler wraps
// any slog.Handler and rounds float attributes, gonum r3.Vec vectors and
// quaternions to a fixed number of decimals before they reach the output,
// so a replay log stays readable and diffs cleanly between runs.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true, 4) // verbose, 4 decimals
//	logger.Debug("anchor placed", "position", r3.Vec{X: 0.123456789})
//	// position="{0.1235 0 0}"
package log
