package astro

import (
	"errors"
	"math"
)

// MinMagnitudeDistance is the distance floor used when converting a
// position to an apparent magnitude. Stars closer than this would
// otherwise dominate the integrated flux.
const MinMagnitudeDistance = 1.2

// ErrEmptyAggregate is returned when integrating an empty set of magnitudes.
var ErrEmptyAggregate = errors.New("cannot integrate an empty set of magnitudes")

// ApparentMagnitude returns the apparent visual magnitude of a sun-like star
// at the given distance in parsecs (distance modulus).
func ApparentMagnitude(distance float64) float64 {
	if distance < MinMagnitudeDistance {
		distance = MinMagnitudeDistance
	}
	return AbsoluteVisualMagnitude + 5*math.Log10(distance/10)
}

// Flux converts a magnitude to relative linear flux.
func Flux(mag float64) float64 {
	return math.Pow(10, -0.4*mag)
}

// MagnitudeFromFlux converts a summed relative flux back to a magnitude.
// The flux must be positive.
func MagnitudeFromFlux(flux float64) (float64, error) {
	if flux <= 0 {
		return 0, ErrEmptyAggregate
	}
	return -2.5 * math.Log10(flux), nil
}

// IntegrateMagnitudes returns the single magnitude equivalent to the
// combined flux of all sources.
func IntegrateMagnitudes(mags []float64) (float64, error) {
	if len(mags) == 0 {
		return 0, ErrEmptyAggregate
	}
	var sum float64
	for _, m := range mags {
		sum += Flux(m)
	}
	return MagnitudeFromFlux(sum)
}

// SurfaceBrightness normalises a combined magnitude by the angular area it
// is spread over, giving magnitudes per square arcsecond.
func SurfaceBrightness(combinedMag, areaSqArcsec float64) float64 {
	return combinedMag + 2.5*math.Log10(areaSqArcsec)
}

// LinearBrightness converts a surface brightness from the logarithmic
// magnitude scale to a linear one.
func LinearBrightness(surfaceBrightness float64) float64 {
	return math.Exp(-surfaceBrightness)
}

// Brightness bundles the photometric values reported for a set of stars.
type Brightness struct {
	CombinedMagnitude float64 `json:"combined_magnitude"`
	SurfaceBrightness float64 `json:"surface_brightness"`
	LinearBrightness  float64 `json:"linear_brightness"`
}

// BrightnessFromFlux derives all reported values from a summed flux using
// the default camera area.
func BrightnessFromFlux(flux float64) (Brightness, error) {
	mag, err := MagnitudeFromFlux(flux)
	if err != nil {
		return Brightness{}, err
	}
	sb := SurfaceBrightness(mag, CameraAreaSqArcsec)
	return Brightness{
		CombinedMagnitude: mag,
		SurfaceBrightness: sb,
		LinearBrightness:  LinearBrightness(sb),
	}, nil
}
