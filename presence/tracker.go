// Package presence derives a debounced AWAY/PRESENT signal from the
// distance sensor.
package presence

import (
	"encoding/json"
	"fmt"
)

// State is the presence of a person in front of the mirror.
type State int

const (
	Away State = iota
	Present
)

func (s State) String() string {
	switch s {
	case Away:
		return "AWAY"
	case Present:
		return "PRESENT"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalJSON encodes the state by name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ParseState converts "AWAY" or "PRESENT" to a State.
func ParseState(str string) (State, error) {
	switch str {
	case "AWAY":
		return Away, nil
	case "PRESENT":
		return Present, nil
	}
	return Away, fmt.Errorf("unknown presence state %q", str)
}

// Tracker holds the current presence state and reports edges only.
// It is not safe for concurrent use; the poll loop serializes access.
type Tracker struct {
	state     State
	threshold float64
}

// NewTracker creates a tracker in state Away. A distance counts as
// "something there" when it is strictly above threshold.
func NewTracker(threshold float64) *Tracker {
	return &Tracker{state: Away, threshold: threshold}
}

// State returns the current state.
func (t *Tracker) State() State {
	return t.state
}

// Evaluate feeds the latest raw reading and the current median. It returns
// the new state and true only when the state changed.
func (t *Tracker) Evaluate(raw, median float64) (State, bool) {
	switch {
	case t.state == Away && raw > t.threshold && median > t.threshold:
		t.state = Present
		return t.state, true
	case t.state == Present && median <= t.threshold:
		t.state = Away
		return t.state, true
	}
	return t.state, false
}
