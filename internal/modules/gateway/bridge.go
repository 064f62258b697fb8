package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	"github.com/slidecast/core/internal/modules/presence"
	"github.com/slidecast/core/internal/transport"
)

// bridge ties one socket to the topics of one room. Each topic gets its
// own subscription; pump goroutines relay inbound room traffic back onto
// the socket as "message" events.
type bridge struct {
	room string
	role string

	subs map[string]transport.Subscription

	heartbeat  time.Duration
	staleGrace time.Duration

	closeOnce sync.Once
}

func (h *Hub) openBridge(client *socketio.Socket, room, role string) (*bridge, error) {
	b := &bridge{
		room:       room,
		role:       role,
		subs:       make(map[string]transport.Subscription),
		heartbeat:  h.heartbeat,
		staleGrace: h.staleGrace,
	}

	topics := map[string]string{
		topicSync:     transport.SyncTopic(room),
		topicPresence: transport.PresenceTopic(room),
		topicNotify:   transport.NotifyTopic(room),
	}

	for short, topic := range topics {
		sub, err := h.broker.Subscribe(context.Background(), topic)
		if err != nil {
			b.close()
			return nil, err
		}
		b.subs[short] = sub
		go b.pump(client, short, sub, h.logger)
	}
	return b, nil
}

// pump relays one subscription's traffic to the socket until either side
// goes away.
func (b *bridge) pump(client *socketio.Socket, short string, sub transport.Subscription, logger *zap.Logger) {
	for {
		select {
		case <-sub.Done():
			return

		case data, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := client.Emit("message", gatewayPayload{
				Type: short,
				Data: json.RawMessage(data),
			}); err != nil && logger != nil {
				logger.Debug("socket emit failed", zap.String("room", b.room), zap.Error(err))
			}

		case raws, ok := <-sub.Presence():
			if !ok {
				return
			}
			members := presence.Snapshot(raws, b.heartbeat, b.staleGrace)
			if err := client.Emit("message", gatewayPayload{
				Type: topicPresence,
				Data: members,
			}); err != nil && logger != nil {
				logger.Debug("socket emit failed", zap.String("room", b.room), zap.Error(err))
			}

		case <-sub.States():
			// connection state is a local concern; sockets only see traffic
		}
	}
}

// publish relays an inbound socket frame onto the room. Presence frames
// replace the socket's announcement; everything else is a broadcast.
func (b *bridge) publish(topic string, data []byte) bool {
	sub, ok := b.subs[topic]
	if !ok {
		return false
	}
	if topic == topicPresence {
		sub.Announce(data)
		return true
	}
	sub.Broadcast(data)
	return true
}

func (b *bridge) close() {
	b.closeOnce.Do(func() {
		for _, sub := range b.subs {
			sub.Unsubscribe()
		}
	})
}
