package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTrace is returned when replay is started without a trace file.
	ErrNoTrace = errors.New("no trace specified: provide at least one trace file")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidLogPrecision is returned when the log precision is outside 0..15.
	ErrInvalidLogPrecision = errors.New("invalid log precision: must be between 0 and 15")

	// ErrInvalidBrightnessUnit is returned for a capture.brightnessUnit other
	// than lux or normalized.
	ErrInvalidBrightnessUnit = errors.New("invalid brightness unit: must be lux or normalized")
)
