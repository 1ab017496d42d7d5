package cluster

import (
	"math"
	"time"

	"github.com/litescript/starfield/internal/astro"
	"github.com/litescript/starfield/internal/batch"
)

// CullingFraction is the share of the full sphere seen by the default
// camera frustum. The horizontal opening follows from the vertical field of
// view and the aspect ratio.
var CullingFraction = frustumFraction(astro.CameraVFOVDeg, astro.CameraAspectRatio)

func frustumFraction(vfovDeg, aspect float64) float64 {
	hfov := 2 * math.Atan(aspect*math.Tan(astro.DegToRad(vfovDeg/2)))
	return astro.FrustumSolidAngle(astro.RadToDeg(hfov), vfovDeg) / (4 * math.Pi)
}

// Estimate is a rough prediction of a run.
type Estimate struct {
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
}

// Estimate predicts the run described by c.
func (c Config) Estimate() Estimate {
	ideal := c.Concurrency
	if ideal == 0 {
		ideal = batch.Ideal()
	}
	if c.Method == MethodFractal {
		return EstimateFractal(c.Fractal, c.Pace, ideal)
	}
	return EstimateHalley(c.Halley, c.Pace, ideal)
}

// EstimateHalley predicts the visible star count and placement time of a
// shell run, assuming a fixed share of each shell survives culling.
func EstimateHalley(p HalleyParams, pace time.Duration, ideal int) Estimate {
	var est Estimate
	for n := 0; n < p.ShellCount; n++ {
		visible := int(math.Round(float64(ShellCandidateCount(p, n)) * CullingFraction))
		est.Count += visible
		est.Duration += unitDuration(visible, pace, ideal)
	}
	return est
}

// EstimateFractal predicts the visible star count and placement time of a
// fractal run. Each level's visible share is the ratio between the part of
// the camera cone reaching the level's radius and the level's volume.
func EstimateFractal(p FractalParams, pace time.Duration, ideal int) Estimate {
	est := Estimate{Count: 1}
	if p.LevelCount <= 0 || p.CountPerLevel <= 0 {
		return Estimate{}
	}

	radii := VolumeRadii(p)
	const shift = astro.ClusterCenterDistance
	prev := 1
	for l := 1; l < p.LevelCount; l++ {
		factor := len(LatticeOffsets(p, radii, l))

		projection := 4.0 / 3.0 * math.Pi * math.Pow(shift+radii[l], 3) *
			(astro.CameraHFOVDeg / 360) * (astro.CameraVFOVDeg / 360)
		volume := 4.0 / 3.0 * math.Pi * math.Pow(radii[l], 3)
		fraction := math.Min(projection/volume, 1)

		count := prev * factor
		visible := min(int(math.Floor(float64(count)*fraction*1.1)), count)
		prev = count

		est.Count += visible
		est.Duration += unitDuration(visible, pace, ideal)
		if est.Count > MaxCandidates {
			break
		}
	}
	return est
}

// unitDuration is the wall time for n stars spread over the batches
// Distribute would make, each star costing the pace plus a millisecond of
// overhead.
func unitDuration(n int, pace time.Duration, ideal int) time.Duration {
	if n == 0 {
		return 0
	}
	size := batch.TargetSize(n, ideal)
	groups := max(batch.Count(n, size), 1)
	perStar := pace + time.Millisecond
	return time.Duration(n) * perStar / time.Duration(groups)
}
