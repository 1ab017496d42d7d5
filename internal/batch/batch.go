// Package batch partitions ordered point sets into slices sized for
// parallel placement.
package batch

import (
	"runtime"

	"github.com/go-gl/mathgl/mgl64"
)

// MinBatch is the smallest batch Distribute will produce (except for the
// trailing remainder) and the fixed batch size used by Split callers.
const MinBatch = 500

// Batch is a contiguous slice of a unit's points owned by one worker.
type Batch struct {
	Index  int
	Points []mgl64.Vec3
}

// Len returns the number of points in the batch.
func (b Batch) Len() int {
	return len(b.Points)
}

// Ideal returns the platform's recommended parallelism.
func Ideal() int {
	return runtime.NumCPU()
}

// TargetSize returns the batch size Distribute uses for n points.
func TargetSize(n, idealConcurrency int) int {
	if idealConcurrency <= 0 {
		idealConcurrency = Ideal()
	}
	size := n / idealConcurrency
	if size < MinBatch {
		size = MinBatch
	}
	return size
}

// Distribute splits points into batches of TargetSize, with one trailing
// batch holding any remainder.
func Distribute(points []mgl64.Vec3, idealConcurrency int) []Batch {
	return Split(points, TargetSize(len(points), idealConcurrency))
}

// Split cuts points into full batches of size followed by the remainder.
// Empty batches are never produced; the relative order of points is kept.
func Split(points []mgl64.Vec3, size int) []Batch {
	if size <= 0 {
		size = MinBatch
	}
	full := len(points) / size
	batches := make([]Batch, 0, full+1)

	for i := 0; i < full; i++ {
		batches = append(batches, Batch{
			Index:  i,
			Points: points[i*size : (i+1)*size : (i+1)*size],
		})
	}

	if rest := len(points) % size; rest != 0 {
		batches = append(batches, Batch{
			Index:  full,
			Points: points[full*size:],
		})
	}

	return batches
}

// Count returns how many batches Split would produce for n points.
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}
	return (n + size - 1) / size
}
