package cluster

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/litescript/starfield/internal/batch"
	"github.com/litescript/starfield/internal/scene"
)

// unitTracker receives each placed star. Both methods are called with the
// generator mutex held.
type unitTracker interface {
	record(g *Generator, s scene.Star)
	current() int
}

// gate is a one-shot signal that holds the workers of a unit until the
// previous unit has been reported.
type gate struct {
	once sync.Once
	ch   chan struct{}
}

func newGate() *gate {
	return &gate{ch: make(chan struct{})}
}

func (gt *gate) open() {
	gt.once.Do(func() { close(gt.ch) })
}

// wait blocks until the gate opens. It returns false if the run was stopped
// first.
func (gt *gate) wait(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-gt.ch:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// pace sleeps for the configured per-star delay. It returns false if the
// run was stopped while waiting.
func (g *Generator) pace(ctx context.Context) bool {
	if g.cfg.Pace <= 0 {
		return !g.stopped(ctx)
	}
	t := time.NewTimer(g.cfg.Pace)
	defer t.Stop()
	select {
	case <-t.C:
		return !g.terminate.Load()
	case <-g.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

// placeBatch places every point of b in order. A failing scene call or a
// panic abandons the batch and is reported as a UnitFailedEvent; only an
// unavailable scene is returned, since it ends the whole run.
func (g *Generator) placeBatch(ctx context.Context, b batch.Batch, u unitTracker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			g.batchFailed(b, u, fmt.Errorf("%w: %v", ErrWorkerPanic, r))
			err = nil
		}
	}()

	for _, p := range b.Points {
		if !g.pace(ctx) {
			return nil
		}

		star := scene.NewStar(p, g.cfg.Style)
		if err := g.scene.AddStar(b.Index, star); err != nil {
			if errors.Is(err, scene.ErrUnavailable) {
				return fmt.Errorf("place star in batch %d: %w", b.Index, err)
			}
			g.batchFailed(b, u, err)
			return nil
		}
		g.recordPlacement(u, star)
	}
	return nil
}

func (g *Generator) recordPlacement(u unitTracker, s scene.Star) {
	g.mu.Lock()
	defer g.mu.Unlock()

	placed := int(g.placed.Add(1))
	g.emit(ProgressEvent{Placed: placed, Total: g.total})
	u.record(g, s)
}

func (g *Generator) batchFailed(b batch.Batch, u unitTracker, cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	unit := u.current()
	g.logger.Warn("abandoning batch %d of unit %d (%d points): %v", b.Index, unit, b.Len(), cause)
	g.emit(UnitFailedEvent{
		Unit:  unit,
		Batch: b.Index,
		Err:   &BatchError{Unit: unit, Batch: b.Index, Cause: cause},
	})
}
