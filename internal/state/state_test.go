package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/litescript/starfield/internal/astro"
	"github.com/litescript/starfield/internal/cluster"
)

func row(unit, count int, sb float64) cluster.Row {
	r := cluster.Row{Method: cluster.MethodHalley, Unit: unit}
	r.Count = count
	if count > 0 {
		r.HasBrightness = true
		r.Brightness = astro.Brightness{SurfaceBrightness: sb}
	}
	return r
}

func TestNewManager(t *testing.T) {
	m := NewManager(DefaultConfig())

	if m == nil {
		t.Fatal("NewManager returned nil")
	}
	if m.Finished() {
		t.Error("Finished should be false initially")
	}

	snap := m.Snapshot()
	if snap.Percent() != 0 {
		t.Errorf("Percent = %v, want 0", snap.Percent())
	}
	if snap.Camera != astro.DefaultCameraData() {
		t.Errorf("Camera = %+v, want default camera data", snap.Camera)
	}
}

func TestManager_Begin(t *testing.T) {
	m := NewManager(DefaultConfig())
	est := cluster.Estimate{Count: 400, Duration: 4 * time.Second}
	m.Begin(cluster.MethodFractal, 380, est)

	snap := m.Snapshot()
	if snap.Method != cluster.MethodFractal {
		t.Errorf("Method = %v, want fractal", snap.Method)
	}
	if snap.Total != 380 {
		t.Errorf("Total = %d, want 380", snap.Total)
	}
	if snap.Estimate != est {
		t.Errorf("Estimate = %+v, want %+v", snap.Estimate, est)
	}
	if snap.Started.IsZero() {
		t.Error("Started should be set")
	}
	if len(snap.Events) != 1 || snap.Events[0].Type != EventStarted {
		t.Errorf("Events = %+v, want one STARTED event", snap.Events)
	}
}

func TestManager_Apply(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Begin(cluster.MethodHalley, 10, cluster.Estimate{})

	m.Apply(cluster.ProgressEvent{Placed: 4, Total: 10})
	m.Apply(cluster.UnitProgressEvent{Unit: 1, Placed: 2, Total: 6})
	m.Apply(cluster.UnitCompleteEvent{Row: row(0, 4, 21.5)})

	snap := m.Snapshot()
	if snap.Placed != 4 || snap.Total != 10 {
		t.Errorf("progress = %d/%d, want 4/10", snap.Placed, snap.Total)
	}
	if snap.Percent() != 40 {
		t.Errorf("Percent = %v, want 40", snap.Percent())
	}
	if snap.Unit != (UnitProgress{Unit: 1, Placed: 2, Total: 6}) {
		t.Errorf("Unit = %+v", snap.Unit)
	}
	if len(snap.Rows) != 1 || snap.Rows[0].Count != 4 {
		t.Errorf("Rows = %+v, want one row of 4 stars", snap.Rows)
	}
	if len(snap.Chart) != 1 || snap.Chart[0] != (ChartPoint{StarCount: 4, SurfaceBrightness: 21.5}) {
		t.Errorf("Chart = %+v", snap.Chart)
	}
	last, ok := snap.LastRow()
	if !ok || last.Unit != 0 {
		t.Errorf("LastRow = %+v, %v", last, ok)
	}
}

func TestManager_EmptyUnit(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Apply(cluster.UnitCompleteEvent{Row: row(0, 0, 0)})

	snap := m.Snapshot()
	if len(snap.Rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(snap.Rows))
	}
	if len(snap.Chart) != 0 {
		t.Errorf("an empty unit has no brightness to chart, got %+v", snap.Chart)
	}
	if snap.Events[0].Type != EventUnitEmpty {
		t.Errorf("event type = %q, want UNIT_EMPTY", snap.Events[0].Type)
	}
}

func TestManager_Finished(t *testing.T) {
	tests := []struct {
		name  string
		event cluster.FinishedEvent
		want  EventType
	}{
		{"completed", cluster.FinishedEvent{Placed: 10, Total: 10}, EventFinished},
		{"terminated", cluster.FinishedEvent{Placed: 3, Total: 10, Terminated: true}, EventTerminated},
		{"failed", cluster.FinishedEvent{Placed: 3, Total: 10, Err: errors.New("scene gone")}, EventFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(DefaultConfig())
			m.Begin(cluster.MethodHalley, 10, cluster.Estimate{})
			m.Apply(tt.event)

			snap := m.Snapshot()
			if !snap.Finished || !m.Finished() {
				t.Error("Finished should be true")
			}
			if snap.Terminated != tt.event.Terminated {
				t.Errorf("Terminated = %v, want %v", snap.Terminated, tt.event.Terminated)
			}
			if snap.LastError != tt.event.Err {
				t.Errorf("LastError = %v, want %v", snap.LastError, tt.event.Err)
			}
			if snap.Placed != tt.event.Placed {
				t.Errorf("Placed = %d, want %d", snap.Placed, tt.event.Placed)
			}
			last := snap.Events[len(snap.Events)-1]
			if last.Type != tt.want {
				t.Errorf("last event = %q, want %q", last.Type, tt.want)
			}
		})
	}
}

func TestManager_BatchFailed(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Apply(cluster.UnitFailedEvent{Unit: 2, Batch: 1, Err: errors.New("boom")})

	snap := m.Snapshot()
	if snap.Failures != 1 {
		t.Errorf("Failures = %d, want 1", snap.Failures)
	}
	if snap.Events[0].Type != EventBatchFailed || snap.Events[0].Unit != 2 {
		t.Errorf("event = %+v, want BATCH_FAILED for unit 2", snap.Events[0])
	}
}

func TestManager_Consume(t *testing.T) {
	m := NewManager(DefaultConfig())
	events := make(chan cluster.Event, 4)
	events <- cluster.ProgressEvent{Placed: 1, Total: 2}
	events <- cluster.ProgressEvent{Placed: 2, Total: 2}
	events <- cluster.UnitCompleteEvent{Row: row(0, 2, 20)}
	events <- cluster.FinishedEvent{Placed: 2, Total: 2}
	close(events)

	var seen int
	m.Consume(events, func(cluster.Event) { seen++ })

	if seen != 4 {
		t.Errorf("hook saw %d events, want 4", seen)
	}
	snap := m.Snapshot()
	if !snap.Finished || snap.Percent() != 100 {
		t.Errorf("snapshot = %+v, want finished at 100%%", snap)
	}
}

func TestManager_ChartLimit(t *testing.T) {
	m := NewManager(Config{MaxEvents: 10, MaxChartPoints: 3})
	for i := 0; i < 5; i++ {
		m.Apply(cluster.UnitCompleteEvent{Row: row(i, (i+1)*10, float64(i))})
	}

	snap := m.Snapshot()
	if len(snap.Rows) != 5 {
		t.Errorf("Rows = %d, want 5", len(snap.Rows))
	}
	if len(snap.Chart) != 3 {
		t.Fatalf("Chart = %d points, want 3", len(snap.Chart))
	}
	if snap.Chart[0].StarCount != 30 {
		t.Errorf("oldest chart point = %d stars, want 30", snap.Chart[0].StarCount)
	}
}

func TestManager_BeginClearsPreviousRun(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Begin(cluster.MethodHalley, 10, cluster.Estimate{})
	m.Apply(cluster.UnitCompleteEvent{Row: row(0, 5, 20)})
	m.Apply(cluster.FinishedEvent{Placed: 10, Total: 10})

	m.Begin(cluster.MethodFractal, 20, cluster.Estimate{})

	snap := m.Snapshot()
	if len(snap.Rows) != 0 || len(snap.Chart) != 0 || len(snap.Events) != 1 {
		t.Errorf("Begin left data behind: %+v", snap)
	}
	if snap.Finished || snap.Placed != 0 || snap.Total != 20 {
		t.Errorf("Begin should restart progress: placed %d/%d finished=%v", snap.Placed, snap.Total, snap.Finished)
	}
}

func TestManager_EventRingBuffer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEvents = 5
	m := NewManager(cfg)

	for i := 0; i < 10; i++ {
		m.Apply(cluster.UnitCompleteEvent{Row: row(i, i+1, 20)})
	}

	events := m.RecentEvents(100)
	if len(events) != 5 {
		t.Errorf("events count = %d, want 5 (max)", len(events))
	}

	// Oldest kept event is unit 5
	if events[0].Unit != 5 {
		t.Errorf("oldest event unit = %d, want 5", events[0].Unit)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.Before(events[i-1].Timestamp) {
			t.Errorf("events not in chronological order at index %d", i)
		}
	}

	recent := m.RecentEvents(2)
	if len(recent) != 2 || recent[1].Unit != 9 {
		t.Errorf("RecentEvents(2) = %+v", recent)
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Begin(cluster.MethodFractal, 1000, cluster.Estimate{})

	var wg sync.WaitGroup

	// Writers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Apply(cluster.ProgressEvent{Placed: n*100 + j, Total: 1000})
			}
		}(i)
	}

	// Readers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Snapshot()
				_ = m.RecentEvents(5)
			}
		}()
	}

	wg.Wait()
}

func TestSnapshot_SliceIsolation(t *testing.T) {
	m := NewManager(DefaultConfig())
	m.Apply(cluster.UnitCompleteEvent{Row: row(0, 1, 20)})

	snap := m.Snapshot()
	snap.Rows[0].Count = 99

	if m.Snapshot().Rows[0].Count != 1 {
		t.Error("modifying snapshot rows should not affect the manager")
	}
}
