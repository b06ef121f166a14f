package web

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T-REX-XP/MMM-Gestures-Modern/broadcast"
	"github.com/T-REX-XP/MMM-Gestures-Modern/config"
	"github.com/T-REX-XP/MMM-Gestures-Modern/gesture"
	"github.com/T-REX-XP/MMM-Gestures-Modern/poll"
	"github.com/T-REX-XP/MMM-Gestures-Modern/power"
	"github.com/T-REX-XP/MMM-Gestures-Modern/presence"
	"github.com/T-REX-XP/MMM-Gestures-Modern/util"
)

func startServer(t *testing.T) (*broadcast.Hub, *util.Latest[poll.Status], string) {
	t.Helper()
	cfile := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(cfile, []byte("MonitorSleepTimeoutSeconds: 60\n"), 0o644))

	hub := broadcast.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	status := util.NewLatest[poll.Status]()
	srv := New("127.0.0.1:0", hub, status, cfile)
	require.NoError(t, srv.Start())
	t.Cleanup(func() {
		cancel()
		<-hubDone
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer scancel()
		assert.NoError(t, srv.Shutdown(sctx))
	})
	return hub, status, srv.Addr().String()
}

func TestServer_Status(t *testing.T) {
	_, status, addr := startServer(t)
	status.Publish(poll.Status{
		Presence:    presence.Present,
		Power:       power.On,
		Median:      14.5,
		Samples:     4,
		LastGesture: gesture.Wave,
	})

	resp, err := http.Get("http://" + addr + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "PRESENT", got["presence"])
	assert.Equal(t, "ON", got["power"])
	assert.Equal(t, "WAVE", got["lastGesture"])
	assert.Equal(t, 14.5, got["median"])
}

func TestServer_StatusRejectsPost(t *testing.T) {
	_, _, addr := startServer(t)
	resp, err := http.Post("http://"+addr+"/api/status", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Config(t *testing.T) {
	_, _, addr := startServer(t)
	resp, err := http.Get("http://" + addr + "/api/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got config.RuntimeConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, 60, got.MonitorSleepTimeoutSeconds)
}

func TestServer_EventStream(t *testing.T) {
	hub, _, addr := startServer(t)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Emit(broadcast.Gesture(gesture.Right))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e broadcast.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, "GESTURE(RIGHT)", e.String())
}

func TestServer_ListenError(t *testing.T) {
	_, _, addr := startServer(t)
	srv := New(addr, http.NotFoundHandler(), util.NewLatest[poll.Status](), "unused.yml")
	assert.Error(t, srv.Start())
	assert.Nil(t, srv.Addr())
	assert.NoError(t, srv.Shutdown(context.Background()))
}
