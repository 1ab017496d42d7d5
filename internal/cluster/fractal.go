package cluster

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"github.com/litescript/starfield/internal/astro"
	"github.com/litescript/starfield/internal/batch"
	"github.com/litescript/starfield/internal/camera"
	"github.com/litescript/starfield/internal/scene"
)

// ClusterCenter is where the root of a fractal cluster sits, straight ahead
// of the default camera.
var ClusterCenter = mgl64.Vec3{0, 0, -astro.ClusterCenterDistance}

// VolumeRadii returns the bounding radius of each level. Level 0 is a single
// star; level l packs CountPerLevel level l-1 spheres along each axis.
func VolumeRadii(p FractalParams) []float64 {
	radii := make([]float64, p.LevelCount)
	radii[0] = astro.StellarRadius
	for l := 1; l < len(radii); l++ {
		inc := 2*radii[l-1] + p.Spacing
		radii[l] = float64(p.CountPerLevel-1)*inc/2 + radii[l-1]
	}
	return radii
}

// LatticeOffsets returns the offsets of the children placed around each
// parent when expanding into level. The lattice has CountPerLevel points per axis centered on the
// parent; points outside the level's sphere are dropped.
func LatticeOffsets(p FractalParams, radii []float64, level int) []mgl64.Vec3 {
	k := p.CountPerLevel
	inner := radii[level-1]
	inc := 2*inner + p.Spacing
	cutoff := radii[level] + inner/2

	// Odd multiples of inc/2 for even k; the middle offset is exactly zero
	// for odd k.
	axis := make([]float64, k)
	for i := range axis {
		axis[i] = float64(2*i-(k-1)) * inc / 2
	}

	offsets := make([]mgl64.Vec3, 0, k*k*k)
	for _, x := range axis {
		for _, y := range axis {
			for _, z := range axis {
				o := mgl64.Vec3{x, y, z}
				if o.Len() < cutoff {
					offsets = append(offsets, o)
				}
			}
		}
	}
	return offsets
}

// GenerateLevels expands the cluster breadth first. The result holds one
// slice per level, level 0 being ClusterCenter.
func GenerateLevels(p FractalParams) [][]mgl64.Vec3 {
	radii := VolumeRadii(p)
	levels := make([][]mgl64.Vec3, p.LevelCount)
	levels[0] = []mgl64.Vec3{ClusterCenter}

	for l := 1; l < p.LevelCount; l++ {
		offsets := LatticeOffsets(p, radii, l)
		next := make([]mgl64.Vec3, 0, len(levels[l-1])*len(offsets))
		for _, parent := range levels[l-1] {
			for _, o := range offsets {
				next = append(next, parent.Add(o))
			}
		}
		levels[l] = next
	}
	return levels
}

// FractalCandidateCount returns how many points GenerateLevels would
// produce, without generating them. It stops counting past MaxCandidates.
func FractalCandidateCount(p FractalParams) int {
	if p.LevelCount <= 0 || p.CountPerLevel <= 0 {
		return 0
	}
	radii := VolumeRadii(p)
	total, perLevel := 1, 1
	for l := 1; l < p.LevelCount; l++ {
		perLevel *= len(LatticeOffsets(p, radii, l))
		total += perLevel
		if total > MaxCandidates {
			break
		}
	}
	return total
}

// PostProcess flattens levels and keeps the points visible from view. When
// PlaceZeroStar is false, points sitting exactly on ClusterCenter are
// dropped. Level order is kept.
func PostProcess(levels [][]mgl64.Vec3, p FractalParams, view camera.View) []mgl64.Vec3 {
	var out []mgl64.Vec3
	for _, level := range levels {
		for _, pt := range level {
			if !p.PlaceZeroStar && pt == ClusterCenter {
				continue
			}
			if camera.IsVisible(pt, view) {
				out = append(out, pt)
			}
		}
	}
	return out
}

// SortByDistance orders points by distance from the origin, nearest first.
func SortByDistance(points []mgl64.Vec3) {
	slices.SortStableFunc(points, func(a, b mgl64.Vec3) int {
		return cmp.Compare(a.Len(), b.Len())
	})
}

// fractal places the whole cluster from one queue, nearest stars first,
// reporting the running aggregate every MinBatch placements.
type fractal struct {
	params FractalParams
	points []mgl64.Vec3

	// Guarded by the generator mutex.
	flux         float64
	window       int
	windowPlaced int
}

func (f *fractal) prepare(g *Generator) error {
	g.setState(StateGeneratingCandidates)
	levels := GenerateLevels(f.params)
	candidates := 0
	for l, level := range levels {
		candidates += len(level)
		g.logger.Debug("level %d: %d candidates", l, len(level))
	}
	if candidates == 0 {
		return &ConfigError{Field: "levels", Reason: "produce no candidate stars"}
	}

	g.setState(StateCulling)
	f.points = PostProcess(levels, f.params, g.cfg.Camera)

	g.setState(StateSorting)
	SortByDistance(f.points)
	g.total = len(f.points)
	return nil
}

func (f *fractal) place(ctx context.Context, g *Generator) error {
	batches := batch.Split(f.points, batch.MinBatch)
	if len(batches) == 0 {
		return nil
	}
	if err := g.scene.ReserveGroups(len(batches)); err != nil {
		return fmt.Errorf("reserve groups: %w", err)
	}

	queue := make(chan batch.Batch, len(batches))
	for _, b := range batches {
		queue <- b
	}
	close(queue)

	workers := min(g.ideal, len(batches))
	eg, egCtx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for b := range queue {
				if g.stopped(egCtx) {
					return nil
				}
				if err := g.placeBatch(egCtx, b, f); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	if !g.stopped(ctx) {
		f.flush(g)
	}
	return nil
}

// flush reports the last window when abandoned batches kept the final
// placement from ever happening.
func (f *fractal) flush(g *Generator) {
	g.mu.Lock()
	defer g.mu.Unlock()

	placed := int(g.placed.Load())
	if placed == g.total || f.windowPlaced == 0 {
		return
	}
	g.emit(UnitCompleteEvent{Row: Row{
		Method:    MethodFractal,
		Unit:      f.window,
		Aggregate: aggregateFromFlux(placed, f.flux),
	}})
}

func (f *fractal) windowTotal(total int) int {
	return min(batch.MinBatch, total-f.window*batch.MinBatch)
}

func (f *fractal) record(g *Generator, s scene.Star) {
	f.flux += astro.Flux(s.Magnitude)
	f.windowPlaced++
	g.emit(UnitProgressEvent{Unit: f.window, Placed: f.windowPlaced, Total: f.windowTotal(g.total)})

	placed := int(g.placed.Load())
	if placed%batch.MinBatch != 0 && placed != g.total {
		return
	}
	g.emit(UnitCompleteEvent{Row: Row{
		Method:    MethodFractal,
		Unit:      f.window,
		Aggregate: aggregateFromFlux(placed, f.flux),
	}})
	if placed < g.total {
		f.window++
		f.windowPlaced = 0
		g.setUnit(f.window)
	}
}

func (f *fractal) current() int {
	return f.window
}
