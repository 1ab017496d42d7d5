package astro

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func TestApparentMagnitude(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{"ten parsecs is absolute magnitude", 10, AbsoluteVisualMagnitude},
		{"hundred parsecs adds five", 100, AbsoluteVisualMagnitude + 5},
		{"one parsec is clamped", 1, AbsoluteVisualMagnitude + 5*math.Log10(MinMagnitudeDistance/10)},
		{"origin is clamped", 0, AbsoluteVisualMagnitude + 5*math.Log10(MinMagnitudeDistance/10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApparentMagnitude(tt.distance)
			if math.Abs(got-tt.want) > eps {
				t.Errorf("ApparentMagnitude(%v) = %v, want %v", tt.distance, got, tt.want)
			}
		})
	}
}

func TestIntegrateMagnitudes_Single(t *testing.T) {
	for _, m := range []float64{-1.46, 0, 4.83, 12.5} {
		got, err := IntegrateMagnitudes([]float64{m})
		if err != nil {
			t.Fatalf("IntegrateMagnitudes([%v]) error = %v", m, err)
		}
		if math.Abs(got-m) > eps {
			t.Errorf("IntegrateMagnitudes([%v]) = %v, want %v", m, got, m)
		}
	}
}

func TestIntegrateMagnitudes_TwoEqualSources(t *testing.T) {
	m := 6.0
	got, err := IntegrateMagnitudes([]float64{m, m})
	if err != nil {
		t.Fatalf("IntegrateMagnitudes error = %v", err)
	}
	want := m - 2.5*math.Log10(2)
	if math.Abs(got-want) > eps {
		t.Errorf("IntegrateMagnitudes([m, m]) = %v, want %v", got, want)
	}
}

func TestIntegrateMagnitudes_Empty(t *testing.T) {
	_, err := IntegrateMagnitudes(nil)
	if !errors.Is(err, ErrEmptyAggregate) {
		t.Errorf("IntegrateMagnitudes(nil) error = %v, want ErrEmptyAggregate", err)
	}
	if _, err := MagnitudeFromFlux(0); !errors.Is(err, ErrEmptyAggregate) {
		t.Errorf("MagnitudeFromFlux(0) error = %v, want ErrEmptyAggregate", err)
	}
}

func TestSurfaceAndLinearBrightness(t *testing.T) {
	sb := SurfaceBrightness(10, 100)
	if math.Abs(sb-15) > eps {
		t.Errorf("SurfaceBrightness(10, 100) = %v, want 15", sb)
	}
	if got := LinearBrightness(0); got != 1 {
		t.Errorf("LinearBrightness(0) = %v, want 1", got)
	}
	if got := LinearBrightness(sb); math.Abs(got-math.Exp(-15)) > eps {
		t.Errorf("LinearBrightness(15) = %v", got)
	}
}

func TestBrightnessFromFlux(t *testing.T) {
	flux := Flux(ApparentMagnitude(50)) * 3
	b, err := BrightnessFromFlux(flux)
	if err != nil {
		t.Fatalf("BrightnessFromFlux error = %v", err)
	}
	want, _ := IntegrateMagnitudes([]float64{
		ApparentMagnitude(50), ApparentMagnitude(50), ApparentMagnitude(50),
	})
	if math.Abs(b.CombinedMagnitude-want) > 1e-6 {
		t.Errorf("CombinedMagnitude = %v, want %v", b.CombinedMagnitude, want)
	}
	if b.SurfaceBrightness <= b.CombinedMagnitude {
		t.Error("surface brightness should exceed combined magnitude for areas > 1 arcsec²")
	}
}

func TestFrustumSolidAngle(t *testing.T) {
	// A 180x180 pyramid covers a hemisphere.
	got := FrustumSolidAngle(180, 180)
	if math.Abs(got-2*math.Pi) > 1e-9 {
		t.Errorf("FrustumSolidAngle(180, 180) = %v, want 2π", got)
	}
	if FrustumSolidAngle(CameraHFOVDeg, CameraVFOVDeg) >= 2*math.Pi {
		t.Error("camera frustum should be smaller than a hemisphere")
	}
}
