// Package gateway is the socket.io edge of the live core: browser clients
// connect to the /live namespace, join a room, and get bridged onto the
// room's topics. All room semantics live behind the bridge; the gateway
// only moves frames.
package gateway

import (
	"context"
	"net/http"
	"time"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	"github.com/slidecast/core/internal/transport"
)

func NewHub(broker *transport.Broker, logger *zap.Logger, teacherTokenOK func(string) bool, heartbeat, staleGrace time.Duration) *Hub {
	sio := socketio.NewServer(nil, nil)
	h := &Hub{
		sidRoom:        make(map[string]string),
		roomCount:      make(map[string]int),
		bridges:        make(map[string]*bridge),
		register:       make(chan clientMeta, 256),
		unregister:     make(chan clientMeta, 256),
		broker:         broker,
		logger:         logger,
		sio:            sio,
		teacherTokenOK: teacherTokenOK,
		heartbeat:      heartbeat,
		staleGrace:     staleGrace,
	}
	h.registerNamespace()
	return h
}

// Run drives the membership loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case c := <-h.register:
			h.registerClient(c)

		case c := <-h.unregister:
			h.unregisterClient(c)
		}
	}
}

func (h *Hub) registerClient(c clientMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if oldRoom, ok := h.sidRoom[c.sid]; ok {
		if oldRoom == c.room {
			return
		}
		if h.roomCount[oldRoom] > 0 {
			h.roomCount[oldRoom]--
		}
	}
	h.sidRoom[c.sid] = c.room
	h.roomCount[c.room]++
}

func (h *Hub) unregisterClient(c clientMeta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.sidRoom[c.sid]
	if !ok {
		return
	}
	delete(h.sidRoom, c.sid)
	if h.roomCount[room] > 0 {
		h.roomCount[room]--
	}
	if h.roomCount[room] == 0 {
		delete(h.roomCount, room)
	}
}

func (h *Hub) setBridge(sid string, b *bridge) {
	h.bridgeMu.Lock()
	old := h.bridges[sid]
	h.bridges[sid] = b
	h.bridgeMu.Unlock()
	if old != nil {
		old.close()
	}
}

func (h *Hub) bridgeOf(sid string) *bridge {
	h.bridgeMu.Lock()
	defer h.bridgeMu.Unlock()
	return h.bridges[sid]
}

func (h *Hub) dropBridge(sid string) {
	h.bridgeMu.Lock()
	b := h.bridges[sid]
	delete(h.bridges, sid)
	h.bridgeMu.Unlock()
	if b != nil {
		b.close()
	}
}

// ClientCount returns connected sockets, optionally filtered by room.
func (h *Hub) ClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if room == "" {
		return len(h.sidRoom)
	}
	return h.roomCount[room]
}

// Rooms returns the per-room socket counts.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]int, len(h.roomCount))
	for room, n := range h.roomCount {
		out[room] = n
	}
	return out
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}
