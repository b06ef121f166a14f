package presence

import (
	"math"
	"slices"
)

// DefaultWindowSize is the number of distance samples the median is taken
// over.
const DefaultWindowSize = 10

// Window buffers the most recent distance samples.
//
// It is not a ring: a push into a full window first clears it, so the
// window fills up from a single sample again. The median therefore lags
// behind in a sawtooth pattern instead of rolling continuously.
type Window struct {
	values   []float64
	capacity int
}

// NewWindow creates an empty window. A capacity below 1 falls back to
// DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = DefaultWindowSize
	}
	return &Window{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a sample. Invalid samples (NaN, infinite or negative) are
// stored as 0 so that a faulty sensor drifts towards AWAY.
func (w *Window) Push(sample float64) {
	if len(w.values) == w.capacity {
		w.values = w.values[:0]
	}
	w.values = append(w.values, Sanitize(sample))
}

// Median returns the median of the buffered samples, 0 for an empty window.
func (w *Window) Median() float64 {
	n := len(w.values)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(w.values)
	slices.Sort(sorted)
	half := n / 2
	if n%2 == 1 {
		return sorted[half]
	}
	return (sorted[half-1] + sorted[half]) / 2
}

// Len returns the number of buffered samples.
func (w *Window) Len() int {
	return len(w.values)
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Values returns a copy of the buffered samples in insertion order.
func (w *Window) Values() []float64 {
	return slices.Clone(w.values)
}

// Sanitize maps readings that carry no distance to 0.
func Sanitize(sample float64) float64 {
	if math.IsNaN(sample) || math.IsInf(sample, 0) || sample < 0 {
		return 0
	}
	return sample
}
