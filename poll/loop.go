// Package poll drives the sensors: on every tick it reads the gesture and
// distance sensor, derives gestures and presence edges, and forwards them to
// the power scheduler and the broadcast sink.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/T-REX-XP/MMM-Gestures-Modern/broadcast"
	"github.com/T-REX-XP/MMM-Gestures-Modern/gesture"
	"github.com/T-REX-XP/MMM-Gestures-Modern/power"
	"github.com/T-REX-XP/MMM-Gestures-Modern/presence"
	"github.com/T-REX-XP/MMM-Gestures-Modern/util"
)

// ErrSensorBusy is reported for a sensor whose read from an earlier tick
// has not returned yet.
var ErrSensorBusy = errors.New("sensor busy")

// failureWarnEvery limits WARN logs while a sensor keeps failing.
const failureWarnEvery = 20

// GestureReader reads and clears the gesture flag register.
type GestureReader interface {
	ReadFlags(ctx context.Context) (gesture.Flags, error)
}

// DistanceReader reads one distance in cm; NaN means nothing in range.
type DistanceReader interface {
	ReadDistance(ctx context.Context) (float64, error)
}

// Scheduler receives presence notifications. *power.Scheduler implements it.
type Scheduler interface {
	Notify(st presence.State)
	State() power.State
	Pending() bool
}

// Config holds the timings and presence parameters of the loop.
type Config struct {
	Interval    time.Duration
	ReadTimeout time.Duration
	WindowSize  int
	Threshold   float64
}

// Status is a snapshot of the loop for the TUI and the web API.
type Status struct {
	Presence         presence.State `json:"presence"`
	Power            power.State    `json:"power"`
	PowerOffPending  bool           `json:"powerOffPending"`
	Distance         float64        `json:"distance"`
	Median           float64        `json:"median"`
	Samples          int            `json:"samples"`
	LastGesture      gesture.Tag    `json:"lastGesture,omitempty"`
	LastGestureAt    time.Time      `json:"lastGestureAt,omitzero"`
	GestureEnabled   bool           `json:"gestureEnabled"`
	DistanceEnabled  bool           `json:"distanceEnabled"`
	GestureFailures  int64          `json:"gestureFailures"`
	DistanceFailures int64          `json:"distanceFailures"`
	Ticks            uint64         `json:"ticks"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// sensor guards one reader against overlapping reads and counts
// consecutive failures.
type sensor struct {
	name     string
	busy     atomic.Bool
	failures atomic.Int64
}

func (s *sensor) failed(err error) {
	n := s.failures.Inc()
	if n == 1 || n%failureWarnEvery == 0 {
		slog.Warn("Sensor read failed", "sensor", s.name, "consecutive", n, "error", err)
	} else {
		slog.Debug("Sensor read failed", "sensor", s.name, "consecutive", n, "error", err)
	}
}

func (s *sensor) succeeded() {
	if n := s.failures.Swap(0); n > 0 {
		slog.Info("Sensor recovered", "sensor", s.name, "after", n)
	}
}

// read runs fn under the timeout unless a previous read is still running.
// The busy flag is released only once fn has really returned.
func read[T any](ctx context.Context, s *sensor, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if !s.busy.CompareAndSwap(false, true) {
		return zero, ErrSensorBusy
	}
	val, done, err := util.CallWithTimeout(ctx, timeout, fn)
	if errors.Is(err, util.ErrTimeout) || (err != nil && ctx.Err() != nil) {
		// fn may still be blocked on the bus
		go func() {
			<-done
			s.busy.Store(false)
			slog.Debug("Late sensor read returned", "sensor", s.name)
		}()
	} else {
		<-done
		s.busy.Store(false)
	}
	if err != nil {
		return zero, fmt.Errorf("%s: %w", s.name, err)
	}
	return val, nil
}

// Loop owns the presence state. Only one tick applies its results at a
// time.
type Loop struct {
	cfg       Config
	gestures  GestureReader
	distance  DistanceReader
	scheduler Scheduler
	sink      broadcast.Sink
	status    *util.Latest[Status]

	gestureSensor  sensor
	distanceSensor sensor

	mu            sync.Mutex
	window        *presence.Window
	tracker       *presence.Tracker
	lastDistance  float64
	lastGesture   gesture.Tag
	lastGestureAt time.Time
	ticks         uint64
}

// New creates a loop. A nil reader disables that sensor; without a
// distance sensor gestures are read on every tick.
func New(cfg Config, gestures GestureReader, distance DistanceReader, scheduler Scheduler, sink broadcast.Sink) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = cfg.Interval / 2
	}
	if sink == nil {
		sink = broadcast.SinkFunc(func(broadcast.Event) {})
	}
	l := &Loop{
		cfg:            cfg,
		gestures:       gestures,
		distance:       distance,
		scheduler:      scheduler,
		sink:           sink,
		status:         util.NewLatest[Status](),
		gestureSensor:  sensor{name: "gesture"},
		distanceSensor: sensor{name: "distance"},
		window:         presence.NewWindow(cfg.WindowSize),
		tracker:        presence.NewTracker(cfg.Threshold),
	}
	l.publish()
	return l
}

// Status returns the latest snapshot.
func (l *Loop) Status() *util.Latest[Status] {
	return l.status
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("Starting poll loop", "interval", l.cfg.Interval, "readTimeout", l.cfg.ReadTimeout,
		"gesture", l.gestures != nil, "distance", l.distance != nil)
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Ending poll loop go-routine")
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick performs one poll cycle. Both sensors are read concurrently; their
// results are applied together under the loop's lock, and the resulting
// events are delivered after the lock has been released.
func (l *Loop) Tick(ctx context.Context) {
	l.mu.Lock()
	readGesture := l.gestures != nil && (l.distance == nil || l.tracker.State() == presence.Present)
	l.mu.Unlock()

	var (
		flags      gesture.Flags
		gestureOK  bool
		dist       float64
		distanceOK bool
		g          errgroup.Group
	)

	if readGesture {
		g.Go(func() error {
			f, err := read(ctx, &l.gestureSensor, l.cfg.ReadTimeout, l.gestures.ReadFlags)
			if err != nil {
				if ctx.Err() == nil {
					l.gestureSensor.failed(err)
				}
				return nil
			}
			l.gestureSensor.succeeded()
			flags, gestureOK = f, true
			return nil
		})
	}
	if l.distance != nil {
		g.Go(func() error {
			d, err := read(ctx, &l.distanceSensor, l.cfg.ReadTimeout, l.distance.ReadDistance)
			if err != nil {
				if ctx.Err() == nil {
					l.distanceSensor.failed(err)
				}
				return nil
			}
			l.distanceSensor.succeeded()
			dist, distanceOK = d, true
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return
	}

	events, notify := l.apply(flags, gestureOK, dist, distanceOK)

	for _, e := range events {
		l.sink.Emit(e)
	}
	if l.scheduler != nil {
		for _, st := range notify {
			l.scheduler.Notify(st)
		}
	}
	l.publish()
}

func (l *Loop) apply(flags gesture.Flags, gestureOK bool, dist float64, distanceOK bool) ([]broadcast.Event, []presence.State) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		events []broadcast.Event
		notify []presence.State
	)
	l.ticks++

	if gestureOK {
		decoded := gesture.Decode(flags)
		if decoded.Near {
			events = append(events, broadcast.Presence(presence.Present))
			notify = append(notify, presence.Present)
		}
		if tag, ok := decoded.Winner(); ok {
			slog.Debug("Gesture", "tag", string(tag), "flags", fmt.Sprintf("%#03x", uint16(flags)))
			events = append(events, broadcast.Gesture(tag))
			l.lastGesture = tag
			l.lastGestureAt = time.Now()
		}
	}

	if distanceOK {
		sample := presence.Sanitize(dist)
		l.window.Push(sample)
		l.lastDistance = sample
		if st, changed := l.tracker.Evaluate(sample, l.window.Median()); changed {
			slog.Info("Presence changed", "state", st.String(), "distance", sample, "median", l.window.Median())
			events = append(events, broadcast.Presence(st))
			notify = append(notify, st)
		}
	}

	return events, notify
}

func (l *Loop) publish() {
	l.mu.Lock()
	st := Status{
		Presence:         l.tracker.State(),
		Distance:         l.lastDistance,
		Median:           l.window.Median(),
		Samples:          l.window.Len(),
		LastGesture:      l.lastGesture,
		LastGestureAt:    l.lastGestureAt,
		GestureEnabled:   l.gestures != nil,
		DistanceEnabled:  l.distance != nil,
		GestureFailures:  l.gestureSensor.failures.Load(),
		DistanceFailures: l.distanceSensor.failures.Load(),
		Ticks:            l.ticks,
		UpdatedAt:        time.Now(),
	}
	l.mu.Unlock()

	if l.scheduler != nil {
		st.Power = l.scheduler.State()
		st.PowerOffPending = l.scheduler.Pending()
	}
	l.status.Publish(st)
}
