package platform

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/gammazero/deque"
)

const maxDistanceHistory = 120

var sparkChars = []rune("▁▂▃▄▅▆▇█")

type distanceStats struct {
	min    float64
	max    float64
	mean   float64
	median float64
	stdDev float64
}

// distanceHistory keeps the most recent distance readings for display.
type distanceHistory struct {
	mu     sync.Mutex
	values deque.Deque[float64]
}

func newDistanceHistory() *distanceHistory {
	return &distanceHistory{}
}

func (h *distanceHistory) add(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.values.Len() == maxDistanceHistory {
		h.values.PopFront()
	}
	h.values.PushBack(value)
}

func (h *distanceHistory) snapshot() []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	data := make([]float64, h.values.Len())
	for i := range h.values.Len() {
		data[i] = h.values.At(i)
	}
	return data
}

// render returns a sparkline of the last width readings scaled to maxValue,
// followed by a statistics line.
func (h *distanceHistory) render(width int, maxValue float64) (string, string) {
	data := h.snapshot()
	if len(data) > width {
		data = data[len(data)-width:]
	}
	stats := calculateStats(data)
	return sparkline(data, maxValue),
		fmt.Sprintf("[min|mean|max] [%4.1f|%4.1f|%4.1f]  median %4.1f  stddev %4.1f",
			stats.min, stats.mean, stats.max, stats.median, stats.stdDev)
}

func sparkline(data []float64, maxValue float64) string {
	if maxValue <= 0 {
		maxValue = 1
	}
	var buf strings.Builder
	for _, v := range data {
		if v <= 0 {
			buf.WriteRune(' ')
			continue
		}
		idx := int(math.Round(v / maxValue * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		buf.WriteRune(sparkChars[idx])
	}
	return buf.String()
}

func calculateStats(data []float64) distanceStats {
	if len(data) == 0 {
		return distanceStats{}
	}

	var sum float64
	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += v
	}
	mean := sum / float64(len(data))

	sorted := slices.Clone(data)
	slices.Sort(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2.0
	} else {
		median = sorted[mid]
	}

	var sumOfSquares float64
	for _, v := range data {
		sumOfSquares += (v - mean) * (v - mean)
	}

	return distanceStats{
		min:    lo,
		max:    hi,
		mean:   mean,
		median: median,
		stdDev: math.Sqrt(sumOfSquares / float64(len(data))),
	}
}
