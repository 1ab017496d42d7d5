package cluster

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/litescript/starfield/internal/batch"
	"github.com/litescript/starfield/internal/logging"
	"github.com/litescript/starfield/internal/scene"
)

// Scene receives placed stars. Implementations must be safe for concurrent
// use: AddStar is called from every placement worker.
type Scene interface {
	// ReserveGroups opens n groups for the next unit of work.
	ReserveGroups(n int) error
	// AddStar adds s to group of the most recent reservation.
	AddStar(group int, s scene.Star) error
}

// model is implemented by each generative method.
type model interface {
	// prepare generates, culls and orders candidates and records the total.
	prepare(g *Generator) error
	// place drives the workers until every visible star is placed or the
	// run is stopped.
	place(ctx context.Context, g *Generator) error
}

// Generator runs one star-field generation. Create it with New, start it
// with Start and drain Events until the channel is closed.
type Generator struct {
	cfg    Config
	scene  Scene
	logger *logging.Logger
	model  model
	ideal  int
	seed   uint64

	// mu serializes placement bookkeeping with event emission so that
	// observers see progress in the order it happened.
	mu     sync.Mutex
	events chan Event
	total  int

	state     atomic.Int32
	unit      atomic.Int64
	placed    atomic.Int64
	started   atomic.Bool
	terminate atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
	ack      chan struct{}
	done     chan struct{}
	err      error
}

// New validates cfg and returns a generator bound to sc.
func New(cfg Config, sc Scene, logger *logging.Logger) (*Generator, error) {
	if sc == nil {
		return nil, &ConfigError{Field: "scene", Reason: "must not be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	ideal := cfg.Concurrency
	if ideal == 0 {
		ideal = batch.Ideal()
	}
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = DefaultConfig().EventBuffer
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	g := &Generator{
		cfg:    cfg,
		scene:  sc,
		logger: logger.Named(cfg.Method.String()),
		ideal:  ideal,
		seed:   seed,
		events: make(chan Event, buffer),
		stop:   make(chan struct{}),
		ack:    make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	switch cfg.Method {
	case MethodHalley:
		g.model = &halley{params: cfg.Halley}
	case MethodFractal:
		g.model = &fractal{params: cfg.Fractal}
	}
	return g, nil
}

// Start generates and culls the candidates synchronously, then places the
// visible stars in the background. Configuration problems found while
// generating are returned here and no event is ever posted.
func (g *Generator) Start(ctx context.Context) error {
	if !g.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	began := time.Now()
	if err := g.model.prepare(g); err != nil {
		g.logger.Error("prepare failed: %v", err)
		g.err = err
		g.setState(StateCompleted)
		close(g.events)
		close(g.done)
		return err
	}
	g.logger.Info("%d visible stars after culling (seed %d, %d workers, %s)",
		g.total, g.seed, g.ideal, time.Since(began).Round(time.Millisecond))

	if g.terminate.Load() {
		g.setState(StateTerminating)
	} else {
		g.setState(StatePlacing)
	}
	go g.run(ctx)
	return nil
}

func (g *Generator) run(ctx context.Context) {
	began := time.Now()
	err := g.model.place(ctx, g)
	terminated := g.stopped(ctx)

	g.mu.Lock()
	g.err = err
	g.setState(StateCompleted)
	g.events <- FinishedEvent{
		Placed:     int(g.placed.Load()),
		Total:      g.total,
		Terminated: terminated,
		Err:        err,
	}
	close(g.events)
	g.mu.Unlock()

	switch {
	case err != nil:
		g.logger.Error("run failed after %d/%d stars: %v", g.placed.Load(), g.total, err)
	case terminated:
		g.logger.Info("terminated after %d/%d stars", g.placed.Load(), g.total)
	default:
		g.logger.Info("placed %d stars in %s", g.total, time.Since(began).Round(time.Millisecond))
	}
	close(g.done)
}

// Events returns the channel events are posted on. It is closed right after
// the FinishedEvent. Consumers must drain it: a full channel stalls the
// workers.
func (g *Generator) Events() <-chan Event {
	return g.events
}

// Terminate asks the run to stop. Workers finish the star they are on and
// exit; no partial unit is reported. Safe to call more than once and from
// any goroutine.
func (g *Generator) Terminate() {
	if !g.terminate.CompareAndSwap(false, true) {
		return
	}
	for {
		cur := g.state.Load()
		if State(cur) == StateCompleted || g.state.CompareAndSwap(cur, int32(StateTerminating)) {
			break
		}
	}
	g.stopOnce.Do(func() { close(g.stop) })
	g.logger.Debug("termination requested")
}

// Acknowledge releases the next shell when the generator was configured
// with AwaitAck. It is a no-op otherwise.
func (g *Generator) Acknowledge() {
	select {
	case g.ack <- struct{}{}:
	default:
	}
}

// AutoAcknowledge returns an event hook that acknowledges every reported
// shell, for runs where nobody is around to press the key.
func (g *Generator) AutoAcknowledge() func(Event) {
	return func(e Event) {
		if _, ok := e.(UnitCompleteEvent); ok {
			g.Acknowledge()
		}
	}
}

// Done is closed when the run has finished and Events has been closed.
func (g *Generator) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the run finishes and returns its error.
func (g *Generator) Wait() error {
	<-g.done
	return g.err
}

// Err returns the error that ended the run, if any. It is only meaningful
// once Done is closed.
func (g *Generator) Err() error {
	select {
	case <-g.done:
		return g.err
	default:
		return nil
	}
}

// State returns the current lifecycle state and unit.
func (g *Generator) State() Status {
	return Status{
		State: State(g.state.Load()),
		Unit:  int(g.unit.Load()),
	}
}

// Totals returns how many stars have been placed out of the visible total.
// The total is known once Start has returned.
func (g *Generator) Totals() (placed, total int) {
	return int(g.placed.Load()), g.total
}

// Seed returns the seed used for candidate sampling.
func (g *Generator) Seed() uint64 {
	return g.seed
}

func (g *Generator) setState(s State) {
	if g.terminate.Load() && s != StateCompleted {
		s = StateTerminating
	}
	g.state.Store(int32(s))
}

func (g *Generator) setUnit(n int) {
	g.unit.Store(int64(n))
}

// stopped reports whether the run has been asked to stop.
func (g *Generator) stopped(ctx context.Context) bool {
	return g.terminate.Load() || ctx.Err() != nil
}

// emit posts e. Callers hold g.mu.
func (g *Generator) emit(e Event) {
	g.events <- e
}

// awaitAck blocks until Acknowledge is called or the run is stopped.
func (g *Generator) awaitAck(ctx context.Context) bool {
	select {
	case <-g.ack:
		return true
	case <-g.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
