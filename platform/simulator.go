package platform

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"github.com/T-REX-XP/MMM-Gestures-Modern/gesture"
	"github.com/T-REX-XP/MMM-Gestures-Modern/power"
)

// simDistance is the distance in cm of a simulated person.
const simDistance = 12.0

var errSimulatedFault = errors.New("simulated sensor fault")

// simulator stands in for both sensors and the display when running
// without hardware. Key presses queue gesture flags and move a person in
// front of the mirror or away from it.
type simulator struct {
	mu      sync.Mutex
	flags   gesture.Flags
	present bool
	fault   bool
	power   power.State
	history *distanceHistory
}

func newSimulator() *simulator {
	return &simulator{history: newDistanceHistory()}
}

// inject queues tag for the next gesture read.
func (s *simulator) inject(tag gesture.Tag) {
	bit, ok := gesture.Bit(tag)
	if !ok {
		return
	}
	s.mu.Lock()
	s.flags |= bit
	s.mu.Unlock()
	slog.Debug("Simulated gesture", "tag", string(tag))
}

func (s *simulator) togglePresent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.present = !s.present
	return s.present
}

func (s *simulator) toggleFault() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = !s.fault
	return s.fault
}

func (s *simulator) state() (present, fault bool, pwr power.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.present, s.fault, s.power
}

// ReadFlags returns and clears the queued gestures, like the real register.
func (s *simulator) ReadFlags(ctx context.Context) (gesture.Flags, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault {
		return 0, errSimulatedFault
	}
	f := s.flags
	s.flags = 0
	return f, nil
}

// ReadDistance reports a slightly jittering distance while somebody is
// present and out of range (NaN) otherwise.
func (s *simulator) ReadDistance(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	present, fault := s.present, s.fault
	s.mu.Unlock()

	if fault {
		return 0, errSimulatedFault
	}
	if !present {
		s.history.add(0)
		return math.NaN(), nil
	}
	d := simDistance + rand.Float64()*2 - 1
	s.history.add(d)
	return d, nil
}

func (s *simulator) SetPower(ctx context.Context, state power.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fault {
		return errSimulatedFault
	}
	s.power = state
	slog.Info("Simulated display switched", "state", state.String())
	return nil
}
