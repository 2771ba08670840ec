package exposure

import (
	"errors"
	"fmt"
	"math"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"

	"github.com/nao1215/ringscan/pkg/scan"
)

// incidentCalibration is the incident-light meter constant C in
// E = 2^EV * C / 100, with EV at ISO 100.
const incidentCalibration = 250.0

var (
	// ErrNoExif is returned when the image carries no EXIF block.
	ErrNoExif = errors.New("no EXIF data found")

	// ErrMissingExposure is returned when aperture, exposure time or ISO is
	// absent or not positive.
	ErrMissingExposure = errors.New("EXIF exposure settings incomplete")
)

// Settings are the exposure parameters recorded by the camera.
type Settings struct {
	// FNumber is the aperture f-number.
	FNumber float64 `json:"f_number"`
	// ExposureTime is the shutter time in seconds.
	ExposureTime float64 `json:"exposure_time"`
	// ISO is the sensor sensitivity.
	ISO float64 `json:"iso"`
}

// Valid reports whether every parameter is a positive finite number.
func (s Settings) Valid() bool {
	for _, v := range []float64{s.FNumber, s.ExposureTime, s.ISO} {
		if !(v > 0) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// EV100 returns the exposure value normalized to ISO 100.
func (s Settings) EV100() float64 {
	return math.Log2(s.FNumber*s.FNumber/s.ExposureTime) - math.Log2(s.ISO/100)
}

// Lux returns the scene illuminance the settings imply.
func (s Settings) Lux() float64 {
	return math.Exp2(s.EV100()) * incidentCalibration / 100
}

// Brightness returns the settings as a lux brightness sample.
func (s Settings) Brightness() scan.Brightness {
	return scan.Lux(s.Lux())
}

// Read extracts exposure settings from image bytes. JPEG, TIFF and HEIC
// files are supported, as is a bare EXIF block.
func Read(data []byte) (Settings, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || rawExif == nil {
		return Settings{}, ErrNoExif
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse EXIF data: %w", err)
	}

	var s Settings
	for _, entry := range entries {
		switch entry.TagName {
		case "FNumber":
			s.FNumber = firstNumber(entry.Value)
		case "ExposureTime":
			s.ExposureTime = firstNumber(entry.Value)
		case "ISOSpeedRatings", "PhotographicSensitivity":
			if s.ISO == 0 {
				s.ISO = firstNumber(entry.Value)
			}
		}
	}

	if !s.Valid() {
		return s, fmt.Errorf("%w: f/%g, %gs, ISO %g", ErrMissingExposure, s.FNumber, s.ExposureTime, s.ISO)
	}
	return s, nil
}

// ReadFile extracts exposure settings from the image at path.
func ReadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from a trace the user supplied
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read image: %w", err)
	}
	s, err := Read(data)
	if err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// firstNumber returns the first element of a decoded EXIF value, or 0.
func firstNumber(value any) float64 {
	switch v := value.(type) {
	case []exifcommon.Rational:
		if len(v) > 0 && v[0].Denominator != 0 {
			return float64(v[0].Numerator) / float64(v[0].Denominator)
		}
	case []exifcommon.SignedRational:
		if len(v) > 0 && v[0].Denominator != 0 {
			return float64(v[0].Numerator) / float64(v[0].Denominator)
		}
	case []uint16:
		if len(v) > 0 {
			return float64(v[0])
		}
	case []uint32:
		if len(v) > 0 {
			return float64(v[0])
		}
	}
	return 0
}
