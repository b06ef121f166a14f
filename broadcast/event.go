// Package broadcast delivers gesture and presence events to whoever is
// listening: the log, and dashboards connected over websocket.
package broadcast

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/T-REX-XP/MMM-Gestures-Modern/gesture"
	"github.com/T-REX-XP/MMM-Gestures-Modern/presence"
)

type Kind string

const (
	KindGesture  Kind = "GESTURE"
	KindPresence Kind = "PRESENCE"
)

// Event is one broadcast. Payload is the gesture tag or the presence state
// name.
type Event struct {
	Kind    Kind      `json:"kind"`
	Payload string    `json:"payload"`
	Time    time.Time `json:"time"`
}

func Gesture(tag gesture.Tag) Event {
	return Event{Kind: KindGesture, Payload: string(tag), Time: time.Now()}
}

func Presence(state presence.State) Event {
	return Event{Kind: KindPresence, Payload: state.String(), Time: time.Now()}
}

func (e Event) String() string {
	return fmt.Sprintf("%s(%s)", e.Kind, e.Payload)
}

// Sink receives events. Emit must not block the caller for long; it is
// called from the poll loop.
type Sink interface {
	Emit(e Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(e Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Fanout emits every event to all of its sinks in order.
type Fanout []Sink

func (f Fanout) Emit(e Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(e)
		}
	}
}

// LogSink writes every event to the default logger.
type LogSink struct{}

func (LogSink) Emit(e Event) {
	slog.Info("Broadcast", "kind", string(e.Kind), "payload", e.Payload)
}
