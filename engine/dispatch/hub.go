package dispatch

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"aegis/engine/models"
)

// Websocket connection tuning, carried over from niceyeti-tabular's
// server/server.go constants.
const (
	writeWait      = 5 * time.Second
	maxMessageSize = 8192
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// message is the envelope this hub writes to a client connection: either a
// join confirmation, a routed floor update, or the legacy global update.
type message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	handle string
	conn   *websocket.Conn
	send   chan message
}

// Hub is a room-based websocket push channel: one room per floorId, plus an
// implicit "all" room for the legacy global broadcast (spec §4.9).
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	presence *Presence
	log      *slog.Logger
}

// NewHub builds a Hub that records joins/leaves into presence.
func NewHub(presence *Presence, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{clients: make(map[string]*client), presence: presence, log: log}
}

// ServeWS upgrades the request and runs the connection's read/write pumps
// until it closes. The client's first text frame must be {"floorId": "..."};
// an unknown floorId closes the connection (spec §4.10).
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("dispatch: websocket upgrade failed", "err", err)
		return
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var join struct {
		FloorID string `json:"floorId"`
	}
	if err := conn.ReadJSON(&join); err != nil {
		_ = conn.Close()
		return
	}

	handle := r.RemoteAddr + "-" + join.FloorID
	confirmation, err := h.presence.Join(r.Context(), handle, join.FloorID)
	if err != nil {
		_ = conn.WriteJSON(message{Event: "registration_error", Data: err.Error()})
		_ = conn.Close()
		return
	}

	c := &client{handle: handle, conn: conn, send: make(chan message, 16)}
	h.mu.Lock()
	h.clients[handle] = c
	h.mu.Unlock()

	c.send <- message{Event: "registration_confirmed", Data: confirmation}

	go h.writePump(c)
	h.readPump(c, join.FloorID)
}

func (h *Hub) readPump(c *client, floorID string) {
	defer h.disconnect(c, floorID)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) disconnect(c *client, floorID string) {
	h.mu.Lock()
	delete(h.clients, c.handle)
	h.mu.Unlock()
	close(c.send)
	h.presence.Leave(c.handle)
}

// PushFloor emits the envelope under event "floor-routes" to subscribers of
// floorID only (spec §4.9 targeted emission).
func (h *Hub) PushFloor(floorID string, env models.Envelope) {
	h.broadcast(floorID, message{Event: "floor-routes", Data: env})
}

// PushGlobal emits the envelope under the legacy event "route_update" to
// every connected client regardless of floor (spec §4.9 global emission).
func (h *Hub) PushGlobal(env models.Envelope) {
	h.broadcast("", message{Event: "route_update", Data: env})
}

// broadcast sends msg to clients whose presence-registered floor matches
// floorID, or to all clients when floorID is empty.
func (h *Hub) broadcast(floorID string, msg message) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for handle, c := range h.clients {
		if floorID == "" || h.presence.floorOf(handle) == floorID {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			h.log.Warn("dispatch: dropping push to slow client", "handle", c.handle)
		}
	}
}
