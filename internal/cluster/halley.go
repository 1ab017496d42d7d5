package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"github.com/litescript/starfield/internal/astro"
	"github.com/litescript/starfield/internal/batch"
	"github.com/litescript/starfield/internal/camera"
	"github.com/litescript/starfield/internal/scene"
)

// ShellBounds returns the inner and outer radius of shell n.
func ShellBounds(p HalleyParams, n int) (near, far float64) {
	near = p.FirstShellDistance + float64(n)*p.ShellThickness
	return near, near + p.ShellThickness
}

// ShellVolume returns the volume enclosed between the bounds of shell n.
func ShellVolume(p HalleyParams, n int) float64 {
	near, far := ShellBounds(p, n)
	return 4.0 / 3.0 * math.Pi * (far*far*far - near*near*near)
}

// ShellCandidateCount returns how many candidate points shell n samples,
// one per StellarDensity cubic parsecs.
func ShellCandidateCount(p HalleyParams, n int) int {
	return int(math.Floor(ShellVolume(p, n) / astro.StellarDensity))
}

// SampleShell draws count points in shell n and keeps the ones visible from
// view, in sampling order. The radius is uniform between the shell bounds,
// so stars are denser towards the inner edge than a uniform volume fill.
func SampleShell(rng *rand.Rand, p HalleyParams, n, count int, view camera.View) []mgl64.Vec3 {
	near, far := ShellBounds(p, n)
	visible := make([]mgl64.Vec3, 0, count/8+1)
	for i := 0; i < count; i++ {
		r := near + rng.Float64()*(far-near)
		z := 2*rng.Float64() - 1
		theta := 2 * math.Pi * rng.Float64()

		s := math.Sqrt(1 - z*z)
		pt := mgl64.Vec3{s * math.Cos(theta) * r, s * math.Sin(theta) * r, z * r}
		if camera.IsVisible(pt, view) {
			visible = append(visible, pt)
		}
	}
	return visible
}

// halley places concentric shells one at a time, reporting the running
// aggregate after each.
type halley struct {
	params HalleyParams
	shells [][]mgl64.Vec3

	// Running aggregate over every reported shell.
	count int
	flux  float64
}

func (h *halley) prepare(g *Generator) error {
	g.setState(StateGeneratingCandidates)
	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))

	h.shells = make([][]mgl64.Vec3, h.params.ShellCount)
	candidates := 0
	for n := range h.shells {
		count := ShellCandidateCount(h.params, n)
		candidates += count
		h.shells[n] = SampleShell(rng, h.params, n, count, g.cfg.Camera)
		g.total += len(h.shells[n])
		g.logger.Debug("shell %d: %d candidates, %d visible", n, count, len(h.shells[n]))
	}
	if candidates == 0 {
		return &ConfigError{Field: "shells", Reason: "produce no candidate stars"}
	}
	return nil
}

// place runs one shell at a time. The workers of shell n+1 are spawned as
// soon as shell n has drained but wait on a gate that opens only after
// shell n has been reported, and acknowledged when AwaitAck is set.
func (h *halley) place(ctx context.Context, g *Generator) error {
	gates := make([]*gate, len(h.shells))
	for i := range gates {
		gates[i] = newGate()
	}

	cur, err := h.launch(ctx, g, 0, gates[0])
	if err != nil {
		return err
	}
	gates[0].open()

	for n := range h.shells {
		if err := cur.Wait(); err != nil {
			return err
		}
		if g.stopped(ctx) {
			return nil
		}

		var next *errgroup.Group
		if n+1 < len(h.shells) {
			if next, err = h.launch(ctx, g, n+1, gates[n+1]); err != nil {
				return err
			}
		}

		h.report(g, n)

		if next == nil {
			break
		}
		if g.cfg.AwaitAck && !g.awaitAck(ctx) {
			return next.Wait()
		}
		if g.stopped(ctx) {
			return next.Wait()
		}
		g.setUnit(n + 1)
		gates[n+1].open()
		cur = next
	}
	return nil
}

// launch reserves scene groups for shell n and starts one worker per batch.
func (h *halley) launch(ctx context.Context, g *Generator, n int, gt *gate) (*errgroup.Group, error) {
	batches := batch.Distribute(h.shells[n], g.ideal)
	if err := g.scene.ReserveGroups(len(batches)); err != nil {
		return nil, fmt.Errorf("reserve groups for shell %d: %w", n, err)
	}

	tracker := &shellTracker{index: n, total: len(h.shells[n])}
	eg, egCtx := errgroup.WithContext(ctx)
	for _, b := range batches {
		eg.Go(func() error {
			if !gt.wait(egCtx, g.stop) {
				return nil
			}
			return g.placeBatch(egCtx, b, tracker)
		})
	}
	return eg, nil
}

// report folds shell n into the running aggregate and posts it.
func (h *halley) report(g *Generator, n int) {
	for _, p := range h.shells[n] {
		h.flux += astro.Flux(astro.ApparentMagnitude(p.Len()))
	}
	h.count += len(h.shells[n])

	row := Row{Method: MethodHalley, Unit: n, Aggregate: aggregateFromFlux(h.count, h.flux)}
	if row.HasBrightness {
		g.logger.Debug("shell %d reported: %d stars, mag %.3f", n, row.Count, row.CombinedMagnitude)
	} else {
		g.logger.Debug("shell %d reported with no visible stars", n)
	}

	g.mu.Lock()
	g.emit(UnitCompleteEvent{Row: row})
	g.mu.Unlock()
}

// shellTracker counts placements within one shell.
type shellTracker struct {
	index  int
	total  int
	placed int
}

func (t *shellTracker) record(g *Generator, _ scene.Star) {
	t.placed++
	g.emit(UnitProgressEvent{Unit: t.index, Placed: t.placed, Total: t.total})
}

func (t *shellTracker) current() int {
	return t.index
}
