package broadcast

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T-REX-XP/MMM-Gestures-Modern/gesture"
	"github.com/T-REX-XP/MMM-Gestures-Modern/presence"
)

func TestEvent_Constructors(t *testing.T) {
	e := Gesture(gesture.Wave)
	assert.Equal(t, KindGesture, e.Kind)
	assert.Equal(t, "WAVE", e.Payload)
	assert.Equal(t, "GESTURE(WAVE)", e.String())

	e = Presence(presence.Present)
	assert.Equal(t, KindPresence, e.Kind)
	assert.Equal(t, "PRESENCE(PRESENT)", e.String())
	assert.False(t, e.Time.IsZero())
}

func TestEvent_JSON(t *testing.T) {
	e := Event{Kind: KindPresence, Payload: "AWAY", Time: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"PRESENCE","payload":"AWAY","time":"2024-01-02T03:04:05Z"}`, string(data))
}

func TestFanout(t *testing.T) {
	var a, b []string
	f := Fanout{
		SinkFunc(func(e Event) { a = append(a, e.String()) }),
		nil,
		SinkFunc(func(e Event) { b = append(b, e.String()) }),
	}
	f.Emit(Gesture(gesture.Up))
	f.Emit(Presence(presence.Away))

	assert.Equal(t, []string{"GESTURE(UP)", "PRESENCE(AWAY)"}, a)
	assert.Equal(t, a, b)
}

func startHub(t *testing.T) (*Hub, string, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		<-stopped
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub, url, _ := startHub(t)

	c1 := dial(t, url)
	c2 := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Emit(Gesture(gesture.Left))
	hub.Emit(Presence(presence.Present))

	for _, c := range []*websocket.Conn{c1, c2} {
		e := readEvent(t, c)
		assert.Equal(t, "GESTURE(LEFT)", e.String())
		e = readEvent(t, c)
		assert.Equal(t, "PRESENCE(PRESENT)", e.String())
	}
}

func TestHub_ReplaysLastPresenceToNewClient(t *testing.T) {
	hub, url, _ := startHub(t)

	c1 := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Emit(Presence(presence.Present))
	hub.Emit(Gesture(gesture.Up))
	readEvent(t, c1)
	readEvent(t, c1)

	c2 := dial(t, url)
	e := readEvent(t, c2)
	assert.Equal(t, "PRESENCE(PRESENT)", e.String())
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, url, _ := startHub(t)

	c := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	c.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, url, cancel := startHub(t)

	c := dial(t, url)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := c.ReadMessage()
	assert.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) ||
		strings.Contains(err.Error(), "EOF"), "unexpected error %v", err)

	// Emit after shutdown must not block.
	for i := 0; i < 2*clientBuffer; i++ {
		hub.Emit(Gesture(gesture.Wave))
	}
}
