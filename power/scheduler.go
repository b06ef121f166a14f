// Package power switches the display on when someone shows up and off
// again after a sustained absence.
package power

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/atomic"

	"github.com/T-REX-XP/MMM-Gestures-Modern/presence"
)

// State of the display.
type State int

const (
	Off State = iota
	On
)

func (s State) String() string {
	if s == On {
		return "ON"
	}
	return "OFF"
}

// MarshalText encodes the state as ON/OFF.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Display is the hardware that is switched. SetPower must be idempotent and
// only return nil once the display has actually been switched.
type Display interface {
	SetPower(ctx context.Context, state State) error
}

// Config holds the timings of the scheduler.
type Config struct {
	// AbsenceDelay is how long nobody must be present before the display
	// is switched off.
	AbsenceDelay time.Duration
	// OffRetryDelay is the wait before a failed power-off is retried. Zero
	// disables retries.
	OffRetryDelay time.Duration
	// CommandTimeout bounds a single SetPower call.
	CommandTimeout time.Duration
	// Initial is the believed display state at construction, used to hand
	// the belief over when the scheduler is rebuilt.
	Initial State
}

// Scheduler is a two state machine (ON/OFF) with a pending power-off
// timer. All transitions happen on the goroutine running Run, so timer
// scheduling, cancellation and firing never interleave with presence
// notifications.
type Scheduler struct {
	display Display
	cfg     Config
	events  chan presence.State
	done    chan struct{}

	state   atomic.Int32
	pending atomic.Bool
	offFail atomic.Int64
}

// NewScheduler creates a scheduler believing the display is in
// cfg.Initial, OFF unless set.
func NewScheduler(display Display, cfg Config) *Scheduler {
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	s := &Scheduler{
		display: display,
		cfg:     cfg,
		events:  make(chan presence.State, 16),
		done:    make(chan struct{}),
	}
	s.state.Store(int32(cfg.Initial))
	return s
}

// State returns the believed state of the display.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Pending reports whether a power-off is scheduled.
func (s *Scheduler) Pending() bool {
	return s.pending.Load()
}

// OffFailures returns the number of consecutive failed power-off commands.
func (s *Scheduler) OffFailures() int64 {
	return s.offFail.Load()
}

// Notify queues a presence event. It never blocks once Run has returned.
func (s *Scheduler) Notify(st presence.State) {
	select {
	case s.events <- st:
	case <-s.done:
	}
}

// Run processes presence events and the absence timer until ctx is
// cancelled. A pending power-off is discarded on shutdown without issuing
// any command.
func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	var timerC <-chan time.Time

	arm := func(d time.Duration) {
		resetTimer(timer, d)
		timerC = timer.C
		s.pending.Store(true)
	}
	cancel := func() {
		if timerC != nil {
			stopTimer(timer)
			timerC = nil
			s.pending.Store(false)
		}
	}

	for {
		select {
		case <-ctx.Done():
			cancel()
			slog.Info("Ending power scheduler go-routine...")
			return nil
		case st := <-s.events:
			switch st {
			case presence.Present:
				if timerC != nil {
					slog.Info("Presence detected, cancelling pending power-off")
				}
				cancel()
				s.offFail.Store(0)
				if s.State() != On {
					s.command(ctx, On)
				}
			case presence.Away:
				if s.State() == On {
					slog.Info("Scheduling display power-off", "in", s.cfg.AbsenceDelay)
					arm(s.cfg.AbsenceDelay)
				}
			}
		case <-timerC:
			timerC = nil
			s.pending.Store(false)
			if s.State() != On {
				continue
			}
			if err := s.command(ctx, Off); err != nil && s.cfg.OffRetryDelay > 0 && ctx.Err() == nil {
				failures := s.offFail.Inc()
				slog.Warn("Retrying display power-off", "in", s.cfg.OffRetryDelay, "failures", failures)
				arm(s.cfg.OffRetryDelay)
			}
		}
	}
}

// command switches the display and updates the belief on success only.
func (s *Scheduler) command(ctx context.Context, target State) error {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	if err := s.display.SetPower(cctx, target); err != nil {
		err = fmt.Errorf("switching display %s: %w", target, err)
		slog.Error("Display power command failed", "target", target.String(), "error", err)
		return err
	}
	s.state.Store(int32(target))
	if target == Off {
		s.offFail.Store(0)
	}
	slog.Info("Display switched", "state", target.String())
	return nil
}

// stopTimer stops t and drains a value that may already be buffered.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	if d < 0 {
		d = 0
	}
	t.Reset(d)
}
