// Package scene holds the visual star representation handed out by the
// generators and an in-memory scene that collects them.
package scene

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/litescript/starfield/internal/astro"
)

// ErrUnavailable is returned once a scene has been closed. Generators treat
// it as a failure of the whole run rather than of a single batch.
var ErrUnavailable = errors.New("scene unavailable")

// Style controls how star size scales with distance.
type Style struct {
	Size        float64
	PowerFactor float64
}

// DefaultStyle returns the stock star size and distance exponent.
func DefaultStyle() Style {
	return Style{Size: 0.05, PowerFactor: 0.3}
}

// Star is the renderable representation of one placed star. Once handed to
// a scene the generator never touches it again.
type Star struct {
	Position  mgl64.Vec3
	Radius    float64 // Mesh radius, grows with distance so far stars stay visible
	Scale     float64 // Per-instance scale used by instanced groups
	Magnitude float64 // Apparent visual magnitude
}

// NewStar builds the visual for a star at p.
func NewStar(p mgl64.Vec3, style Style) Star {
	d := p.Len()
	grow := math.Pow(d, style.PowerFactor)
	scale := 1.0
	if grow > 0 {
		scale = 1 / grow
	}
	return Star{
		Position:  p,
		Radius:    style.Size * grow,
		Scale:     scale,
		Magnitude: astro.ApparentMagnitude(d),
	}
}

// Memory is a scene that keeps every placed star, grouped the way the
// generator reserved them: one unit per ReserveGroups call, one group per
// batch within the unit.
type Memory struct {
	mu     sync.Mutex
	units  [][][]Star
	count  int
	closed bool
}

// NewMemory creates an empty in-memory scene.
func NewMemory() *Memory {
	return &Memory{}
}

// ReserveGroups opens a new unit with n empty groups.
func (m *Memory) ReserveGroups(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrUnavailable
	}
	m.units = append(m.units, make([][]Star, n))
	return nil
}

// AddStar appends s to group index of the most recently reserved unit.
func (m *Memory) AddStar(group int, s Star) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrUnavailable
	}
	if len(m.units) == 0 {
		return fmt.Errorf("add star to group %d: no groups reserved", group)
	}
	unit := m.units[len(m.units)-1]
	if group < 0 || group >= len(unit) {
		return fmt.Errorf("add star: group %d out of range [0, %d)", group, len(unit))
	}
	unit[group] = append(unit[group], s)
	m.count++
	return nil
}

// Count returns the total number of stars placed.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Units returns the number of reserved units.
func (m *Memory) Units() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.units)
}

// Stars returns a copy of every placed star in unit/group order.
func (m *Memory) Stars() []Star {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Star, 0, m.count)
	for _, unit := range m.units {
		for _, group := range unit {
			out = append(out, group...)
		}
	}
	return out
}

// Close makes every later call fail with ErrUnavailable.
func (m *Memory) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
