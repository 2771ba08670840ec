package scan

import (
	"errors"
	"fmt"

	"github.com/nao1215/ringscan/pkg/geometry"
)

// ErrInvalidConfig is returned when a Config or a rescale factor is unusable.
var ErrInvalidConfig = errors.New("invalid scan configuration")

// Config holds the tunables of a Session.
type Config struct {
	// Rings is the marker layout and focus geometry.
	Rings geometry.RingConfig `json:"rings" yaml:"rings"`
	// MinBrightness is the darkest accepted sample. Only samples in the same
	// unit are checked against it.
	MinBrightness Brightness `json:"min_brightness" yaml:"minBrightness"`
}

// DefaultConfig returns the stock ring layout and a 300 lux minimum.
func DefaultConfig() Config {
	return Config{
		Rings:         geometry.DefaultRingConfig(),
		MinBrightness: Lux(DefaultMinLux),
	}
}

// Validate checks the ring layout and the brightness threshold.
func (c Config) Validate() error {
	if err := c.Rings.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.MinBrightness.Unit.MarshalText(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if !c.MinBrightness.comparableTo(c.MinBrightness) || c.MinBrightness.Value < 0 {
		return fmt.Errorf("%w: minimum brightness must be a non-negative number, got %v", ErrInvalidConfig, c.MinBrightness.Value)
	}
	if c.MinBrightness.Unit == UnitNormalized && c.MinBrightness.Value > 1 {
		return fmt.Errorf("%w: normalized minimum brightness must be at most 1, got %v", ErrInvalidConfig, c.MinBrightness.Value)
	}
	return nil
}
