package config

import (
	"github.com/nao1215/ringscan/pkg/scan"
)

// RingSection overrides ring geometry. Nil fields keep the current value.
type RingSection struct {
	LowerRingHeight *float64 `yaml:"lowerRingHeight,omitempty"`
	RingSeparation  *float64 `yaml:"ringSeparation,omitempty"`
	Radius          *float64 `yaml:"radius,omitempty"`
	AngleThreshold  *float64 `yaml:"angleThreshold,omitempty"`
	SplitFraction   *float64 `yaml:"splitFraction,omitempty"`
}

// CaptureSection overrides capture gating. Nil fields keep the current value.
type CaptureSection struct {
	// MinBrightness is the darkest accepted sample in BrightnessUnit.
	MinBrightness *float64 `yaml:"minBrightness,omitempty"`

	// BrightnessUnit is "lux" or "normalized". Changing the unit without
	// MinBrightness selects that unit's default threshold.
	BrightnessUnit string `yaml:"brightnessUnit,omitempty"`

	// AllowDuplicates is the default capture mode for the trace.
	AllowDuplicates *bool `yaml:"allowDuplicates,omitempty"`
}

// Profile is a set of overrides applied to a session.
type Profile struct {
	Ring    RingSection    `yaml:"ring,omitempty"`
	Capture CaptureSection `yaml:"capture,omitempty"`
}

// File represents the structure of the .ringscan configuration file.
type File struct {
	// Profile holds the top-level ring and capture sections, applied to
	// every trace.
	Profile `yaml:",inline"`

	// Traces maps trace names to trace-specific overrides.
	Traces map[string]Profile `yaml:"traces,omitempty"`
}

// ProfileFor returns the overrides for traceName: the top-level sections
// with the trace-specific values merged over them.
func (cf *File) ProfileFor(traceName string) Profile {
	result := cf.Profile

	trace, ok := cf.Traces[traceName]
	if !ok {
		return result
	}

	r := &result.Ring
	mergeFloat(&r.LowerRingHeight, trace.Ring.LowerRingHeight)
	mergeFloat(&r.RingSeparation, trace.Ring.RingSeparation)
	mergeFloat(&r.Radius, trace.Ring.Radius)
	mergeFloat(&r.AngleThreshold, trace.Ring.AngleThreshold)
	mergeFloat(&r.SplitFraction, trace.Ring.SplitFraction)

	c := &result.Capture
	mergeFloat(&c.MinBrightness, trace.Capture.MinBrightness)
	if trace.Capture.BrightnessUnit != "" {
		if trace.Capture.BrightnessUnit != c.BrightnessUnit && trace.Capture.MinBrightness == nil {
			c.MinBrightness = nil
		}
		c.BrightnessUnit = trace.Capture.BrightnessUnit
	}
	if trace.Capture.AllowDuplicates != nil {
		c.AllowDuplicates = trace.Capture.AllowDuplicates
	}
	return result
}

// Apply returns base with the profile's overrides and validates the result.
func (p Profile) Apply(base scan.Config) (scan.Config, error) {
	cfg := base

	setFloat(&cfg.Rings.LowerRingHeight, p.Ring.LowerRingHeight)
	setFloat(&cfg.Rings.RingSeparation, p.Ring.RingSeparation)
	setFloat(&cfg.Rings.Radius, p.Ring.Radius)
	setFloat(&cfg.Rings.AngleThreshold, p.Ring.AngleThreshold)
	setFloat(&cfg.Rings.SplitFraction, p.Ring.SplitFraction)

	if p.Capture.BrightnessUnit != "" {
		var unit scan.BrightnessUnit
		if err := unit.UnmarshalText([]byte(p.Capture.BrightnessUnit)); err != nil {
			return scan.Config{}, ErrInvalidBrightnessUnit
		}
		if unit != cfg.MinBrightness.Unit {
			cfg.MinBrightness = unit.DefaultMin()
		}
	}
	setFloat(&cfg.MinBrightness.Value, p.Capture.MinBrightness)

	if err := cfg.Validate(); err != nil {
		return scan.Config{}, err
	}
	return cfg, nil
}

func mergeFloat(dst **float64, src *float64) {
	if src != nil {
		*dst = src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
