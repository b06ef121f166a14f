package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// clients only send control frames
	maxMessageSize = 512

	clientBuffer = 64
)

// Hub maintains the connected dashboards and pushes every event to them as
// a JSON text message. A client that cannot keep up is disconnected
// instead of slowing down the others.
//
// New clients first receive the most recent presence event, so a dashboard
// opened while somebody stands in front of the mirror does not wait for
// the next transition.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	count      atomic.Int64

	upgrader websocket.Upgrader
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, clientBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The mirror's dashboard is served from a different origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Emit queues e for all clients. It never blocks; when the hub is
// congested the event is dropped.
func (h *Hub) Emit(e Event) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- e:
	default:
		slog.Warn("Websocket hub congested, dropping event", "event", e.String())
	}
}

// Run serves registrations and broadcasts until ctx is cancelled. All
// client connections are closed on return.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	var lastPresence []byte

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			slog.Info("Ending websocket hub go-routine")
			return nil

		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int64(len(h.clients)))
			if lastPresence != nil {
				c.send <- lastPresence
			}
			slog.Info("Dashboard connected", "remote", c.conn.RemoteAddr().String(), "clients", len(h.clients))

		case c := <-h.unregister:
			if h.clients[c] {
				h.remove(c)
				slog.Info("Dashboard disconnected", "remote", c.conn.RemoteAddr().String(), "clients", len(h.clients))
			}

		case e := <-h.broadcast:
			data, err := json.Marshal(e)
			if err != nil {
				slog.Error("Failed to encode event", "event", e.String(), "error", err)
				continue
			}
			if e.Kind == KindPresence {
				lastPresence = data
			}
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					h.remove(c)
					slog.Warn("Dropped slow dashboard", "remote", c.conn.RemoteAddr().String())
				}
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
}

// ServeHTTP upgrades the request to a websocket and streams events to it
// until either side closes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "error", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, clientBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	c.readPump()
}

// readPump only reads to notice a disconnect and to process pongs.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer of the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
