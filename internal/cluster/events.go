package cluster

import (
	"github.com/litescript/starfield/internal/astro"
)

// Event is a message posted by a running generator. Concrete types are
// ProgressEvent, UnitProgressEvent, UnitCompleteEvent, UnitFailedEvent and
// FinishedEvent.
type Event interface {
	isEvent()
}

// ProgressEvent reports overall placement progress.
type ProgressEvent struct {
	Placed int
	Total  int
}

// Percent returns progress in the range [0, 100].
func (e ProgressEvent) Percent() float64 {
	if e.Total == 0 {
		return 100
	}
	return 100 * float64(e.Placed) / float64(e.Total)
}

// UnitProgressEvent reports progress within the current shell or report
// window.
type UnitProgressEvent struct {
	Unit   int
	Placed int
	Total  int
}

// Aggregate is the running photometric total over every star placed so far.
// When Count is zero there is nothing to integrate and HasBrightness is
// false.
type Aggregate struct {
	Count         int  `json:"count"`
	HasBrightness bool `json:"has_brightness"`
	astro.Brightness
}

// aggregateFromFlux builds an aggregate from a star count and summed flux.
func aggregateFromFlux(count int, flux float64) Aggregate {
	agg := Aggregate{Count: count}
	if count == 0 {
		return agg
	}
	b, err := astro.BrightnessFromFlux(flux)
	if err != nil {
		return agg
	}
	agg.HasBrightness = true
	agg.Brightness = b
	return agg
}

// Row is one data point reported when a unit completes.
type Row struct {
	Method Method `json:"method"`
	Unit   int    `json:"unit"`
	Aggregate
}

// UnitCompleteEvent carries the aggregate after a shell, or a report window
// of the fractal run, has been fully placed.
type UnitCompleteEvent struct {
	Row Row
}

// UnitFailedEvent reports a batch abandoned after a worker error.
type UnitFailedEvent struct {
	Unit  int
	Batch int
	Err   error
}

// FinishedEvent is always the last event of a run.
type FinishedEvent struct {
	Placed     int
	Total      int
	Terminated bool
	Err        error
}

func (ProgressEvent) isEvent()     {}
func (UnitProgressEvent) isEvent() {}
func (UnitCompleteEvent) isEvent() {}
func (UnitFailedEvent) isEvent()   {}
func (FinishedEvent) isEvent()     {}
