package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCullingFraction(t *testing.T) {
	assert.InDelta(t, 0.0729, CullingFraction, 1e-3)
}

func TestEstimateHalley(t *testing.T) {
	p := HalleyParams{ShellCount: 1, ShellThickness: 50, FirstShellDistance: 1.29}

	est := EstimateHalley(p, 10*time.Millisecond, 8)
	assert.Equal(t, 412, est.Count)
	// 412 stars fit in one batch, so they are placed one after another.
	assert.Equal(t, 412*11*time.Millisecond, est.Duration)

	more := EstimateHalley(HalleyParams{ShellCount: 3, ShellThickness: 50, FirstShellDistance: 1.29}, 0, 8)
	assert.Greater(t, more.Count, est.Count)
}

func TestEstimateFractal(t *testing.T) {
	single := EstimateFractal(FractalParams{LevelCount: 1, CountPerLevel: 3}, 10*time.Millisecond, 8)
	assert.Equal(t, Estimate{Count: 1}, single)

	two := EstimateFractal(FractalParams{LevelCount: 2, CountPerLevel: 3}, 10*time.Millisecond, 8)
	assert.Greater(t, two.Count, 1)
	assert.LessOrEqual(t, two.Count, 28)
	assert.Positive(t, two.Duration)

	assert.Equal(t, Estimate{}, EstimateFractal(FractalParams{}, 0, 8))
}

func TestConfigEstimate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Concurrency = 8
	assert.Equal(t, EstimateHalley(cfg.Halley, cfg.Pace, 8), cfg.Estimate())

	cfg.Method = MethodFractal
	assert.Equal(t, EstimateFractal(cfg.Fractal, cfg.Pace, 8), cfg.Estimate())
}
