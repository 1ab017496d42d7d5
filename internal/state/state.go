// Package state provides thread-safe run state shared by the front-ends.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/litescript/starfield/internal/astro"
	"github.com/litescript/starfield/internal/cluster"
)

// EventType represents the type of logged run event.
type EventType string

const (
	EventStarted      EventType = "STARTED"
	EventUnitComplete EventType = "UNIT_COMPLETE"
	EventUnitEmpty    EventType = "UNIT_EMPTY"
	EventBatchFailed  EventType = "BATCH_FAILED"
	EventTerminated   EventType = "TERMINATED"
	EventFinished     EventType = "FINISHED"
	EventFailed       EventType = "FAILED"
)

// Event is one entry of the run log.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Unit      int       `json:"unit"`
	Message   string    `json:"message,omitempty"`
}

// ChartPoint is one point of the brightness curve: surface brightness
// against the number of stars placed so far.
type ChartPoint struct {
	StarCount         int     `json:"star_count"`
	SurfaceBrightness float64 `json:"surface_brightness"`
}

// UnitProgress is the progress within the current shell or report window.
type UnitProgress struct {
	Unit   int `json:"unit"`
	Placed int `json:"placed"`
	Total  int `json:"total"`
}

// Manager handles all shared run state with thread-safe access.
type Manager struct {
	mu sync.RWMutex

	// Run description
	method   cluster.Method
	camera   astro.CameraData
	estimate cluster.Estimate
	started  time.Time
	ended    time.Time

	// Progress
	placed int
	total  int
	unit   UnitProgress

	// Data table and chart
	rows     []cluster.Row
	chart    []ChartPoint
	maxChart int
	failures int

	// Outcome
	finished   bool
	terminated bool
	lastError  error

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int
}

// Config holds configuration for the state manager.
type Config struct {
	MaxEvents      int
	MaxChartPoints int // Zero keeps every point
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		MaxEvents: 50,
	}
}

// NewManager creates a new state manager.
func NewManager(cfg Config) *Manager {
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 50
	}
	return &Manager{
		maxEvents: maxEvents,
		maxChart:  cfg.MaxChartPoints,
		events:    make([]Event, 0, maxEvents),
		camera:    astro.DefaultCameraData(),
	}
}

// Begin records the start of a run with its visible total and estimate.
func (m *Manager) Begin(method cluster.Method, total int, est cluster.Estimate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetLocked()
	m.method = method
	m.total = total
	m.estimate = est
	m.started = time.Now()
	m.addEvent(Event{
		Type:      EventStarted,
		Timestamp: m.started,
		Message:   fmt.Sprintf("%s: %d visible stars", method, total),
	})
}

// Apply folds one generator event into the state.
func (m *Manager) Apply(e cluster.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	switch e := e.(type) {
	case cluster.ProgressEvent:
		m.placed = e.Placed
		m.total = e.Total

	case cluster.UnitProgressEvent:
		m.unit = UnitProgress{Unit: e.Unit, Placed: e.Placed, Total: e.Total}

	case cluster.UnitCompleteEvent:
		m.rows = append(m.rows, e.Row)
		if !e.Row.HasBrightness {
			m.addEvent(Event{Type: EventUnitEmpty, Timestamp: now, Unit: e.Row.Unit, Message: "no visible stars"})
			return
		}
		m.chart = append(m.chart, ChartPoint{StarCount: e.Row.Count, SurfaceBrightness: e.Row.SurfaceBrightness})
		if m.maxChart > 0 && len(m.chart) > m.maxChart {
			m.chart = m.chart[1:]
		}
		m.addEvent(Event{
			Type:      EventUnitComplete,
			Timestamp: now,
			Unit:      e.Row.Unit,
			Message:   fmt.Sprintf("%d stars, %.3f mag/arcsec²", e.Row.Count, e.Row.SurfaceBrightness),
		})

	case cluster.UnitFailedEvent:
		m.failures++
		m.addEvent(Event{Type: EventBatchFailed, Timestamp: now, Unit: e.Unit, Message: errString(e.Err)})

	case cluster.FinishedEvent:
		m.finished = true
		m.terminated = e.Terminated
		m.lastError = e.Err
		m.placed = e.Placed
		m.total = e.Total
		m.ended = now

		entry := Event{Type: EventFinished, Timestamp: now, Unit: m.unit.Unit, Message: fmt.Sprintf("%d/%d stars", e.Placed, e.Total)}
		switch {
		case e.Err != nil:
			entry.Type = EventFailed
			entry.Message = e.Err.Error()
		case e.Terminated:
			entry.Type = EventTerminated
		}
		m.addEvent(entry)
	}
}

// Consume applies every event from events until the channel is closed,
// passing each one to the hooks afterwards.
func (m *Manager) Consume(events <-chan cluster.Event, hooks ...func(cluster.Event)) {
	for e := range events {
		m.Apply(e)
		for _, hook := range hooks {
			hook(e)
		}
	}
}

func (m *Manager) resetLocked() {
	m.placed, m.total = 0, 0
	m.unit = UnitProgress{}
	m.rows = nil
	m.chart = nil
	m.failures = 0
	m.finished, m.terminated = false, false
	m.lastError = nil
	m.started, m.ended = time.Time{}, time.Time{}
	m.events = m.events[:0]
	m.eventWriteAt = 0
}

// addEvent adds an event to the ring buffer.
func (m *Manager) addEvent(e Event) {
	if len(m.events) < m.maxEvents {
		m.events = append(m.events, e)
	} else {
		m.events[m.eventWriteAt] = e
		m.eventWriteAt = (m.eventWriteAt + 1) % m.maxEvents
	}
}

// Snapshot represents an immutable snapshot of current state.
type Snapshot struct {
	Method     cluster.Method
	Camera     astro.CameraData
	Estimate   cluster.Estimate
	Started    time.Time
	Elapsed    time.Duration
	Placed     int
	Total      int
	Unit       UnitProgress
	Rows       []cluster.Row
	Chart      []ChartPoint
	Failures   int
	Finished   bool
	Terminated bool
	LastError  error
	Events     []Event
}

// Percent returns overall progress in the range [0, 100].
func (s Snapshot) Percent() float64 {
	if s.Total == 0 {
		if s.Finished {
			return 100
		}
		return 0
	}
	return 100 * float64(s.Placed) / float64(s.Total)
}

// LastRow returns the most recent data row.
func (s Snapshot) LastRow() (cluster.Row, bool) {
	if len(s.Rows) == 0 {
		return cluster.Row{}, false
	}
	return s.Rows[len(s.Rows)-1], true
}

// Snapshot returns a consistent snapshot of current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]cluster.Row, len(m.rows))
	copy(rows, m.rows)
	chart := make([]ChartPoint, len(m.chart))
	copy(chart, m.chart)

	var elapsed time.Duration
	switch {
	case m.started.IsZero():
	case m.finished:
		elapsed = m.ended.Sub(m.started)
	default:
		elapsed = time.Since(m.started)
	}

	return Snapshot{
		Method:     m.method,
		Camera:     m.camera,
		Estimate:   m.estimate,
		Started:    m.started,
		Elapsed:    elapsed,
		Placed:     m.placed,
		Total:      m.total,
		Unit:       m.unit,
		Rows:       rows,
		Chart:      chart,
		Failures:   m.failures,
		Finished:   m.finished,
		Terminated: m.terminated,
		LastError:  m.lastError,
		Events:     m.getEventsOrdered(),
	}
}

// getEventsOrdered returns events in chronological order.
func (m *Manager) getEventsOrdered() []Event {
	if len(m.events) == 0 {
		return nil
	}

	// If buffer isn't full yet, just copy
	if len(m.events) < m.maxEvents {
		result := make([]Event, len(m.events))
		copy(result, m.events)
		return result
	}

	// Ring buffer is full, reorder from oldest to newest
	result := make([]Event, m.maxEvents)
	for i := 0; i < m.maxEvents; i++ {
		idx := (m.eventWriteAt + i) % m.maxEvents
		result[i] = m.events[idx]
	}
	return result
}

// RecentEvents returns the last n events.
func (m *Manager) RecentEvents(n int) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.getEventsOrdered()
	if len(all) <= n {
		return all
	}
	return all[len(all)-n:]
}

// Finished reports whether the run has ended.
func (m *Manager) Finished() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.finished
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
