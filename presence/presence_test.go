package presence

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func windowOf(values ...float64) *Window {
	w := NewWindow(DefaultWindowSize)
	for _, v := range values {
		w.Push(v)
	}
	return w
}

func TestWindow_Median(t *testing.T) {
	assert.Equal(t, 0.0, windowOf().Median(), "empty window")
	assert.Equal(t, 5.0, windowOf(5).Median(), "single value")
	assert.Equal(t, 6.0, windowOf(3, 5, 7, 9).Median(), "even count averages the middle values")
	assert.Equal(t, 7.0, windowOf(9, 3, 7).Median(), "odd count takes the middle value")
	assert.Equal(t, 4.5, windowOf(0, 0, 9, 12).Median())
}

func TestWindow_MedianDoesNotReorderValues(t *testing.T) {
	w := windowOf(9, 1, 5)
	w.Median()
	assert.Equal(t, []float64{9, 1, 5}, w.Values())
}

func TestWindow_ResetsWhenFull(t *testing.T) {
	w := NewWindow(DefaultWindowSize)
	for i := 1; i <= 10; i++ {
		w.Push(float64(i))
	}
	assert.Equal(t, 10, w.Len())
	assert.Equal(t, 5.5, w.Median())

	w.Push(42)
	assert.Equal(t, 1, w.Len(), "11th push must start a fresh window")
	assert.Equal(t, []float64{42}, w.Values())
	assert.Equal(t, 42.0, w.Median())
}

func TestWindow_InvalidSamplesBecomeZero(t *testing.T) {
	w := windowOf(math.NaN(), math.Inf(1), -3, 12)
	assert.Equal(t, []float64{0, 0, 0, 12}, w.Values())
	assert.Equal(t, 0.0, w.Median())
}

func TestWindow_DefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultWindowSize, NewWindow(0).Cap())
	assert.Equal(t, 3, NewWindow(3).Cap())
}

func TestTracker_Edges(t *testing.T) {
	tr := NewTracker(0)
	assert.Equal(t, Away, tr.State())

	// Raw reading alone is not enough while the median is still 0.
	_, changed := tr.Evaluate(12, 0)
	assert.False(t, changed)

	st, changed := tr.Evaluate(12, 12)
	assert.True(t, changed)
	assert.Equal(t, Present, st)

	// A single zero reading does not drop presence while the median holds.
	_, changed = tr.Evaluate(0, 6)
	assert.False(t, changed)

	st, changed = tr.Evaluate(0, 0)
	assert.True(t, changed)
	assert.Equal(t, Away, st)
}

func TestTracker_IdempotentOnRepeatedInput(t *testing.T) {
	tr := NewTracker(0)

	_, changed := tr.Evaluate(12, 12)
	assert.True(t, changed)
	for i := 0; i < 5; i++ {
		st, changed := tr.Evaluate(12, 12)
		assert.False(t, changed, "repeat %d", i)
		assert.Equal(t, Present, st)
	}

	_, changed = tr.Evaluate(0, 0)
	assert.True(t, changed)
	for i := 0; i < 5; i++ {
		_, changed := tr.Evaluate(0, 0)
		assert.False(t, changed, "repeat %d", i)
	}
}

func TestTracker_Threshold(t *testing.T) {
	tr := NewTracker(10)

	_, changed := tr.Evaluate(8, 8)
	assert.False(t, changed, "readings at or below the threshold are nobody")

	st, changed := tr.Evaluate(12, 11)
	assert.True(t, changed)
	assert.Equal(t, Present, st)

	st, changed = tr.Evaluate(12, 10)
	assert.True(t, changed)
	assert.Equal(t, Away, st)
}

func TestState_Names(t *testing.T) {
	assert.Equal(t, "AWAY", Away.String())
	assert.Equal(t, "PRESENT", Present.String())

	data, err := json.Marshal(Present)
	assert.NoError(t, err)
	assert.Equal(t, `"PRESENT"`, string(data))

	st, err := ParseState("AWAY")
	assert.NoError(t, err)
	assert.Equal(t, Away, st)
	_, err = ParseState("GONE")
	assert.Error(t, err)
}
