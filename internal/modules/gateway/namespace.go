package gateway

import (
	"encoding/json"
	"strings"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	"github.com/slidecast/core/internal/middleware"
	"github.com/slidecast/core/internal/modules/slidesync"
)

type inboundLiveMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func (h *Hub) registerNamespace() {
	liveNS := h.sio.Of(namespaceLive, nil)
	_ = liveNS.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}
		sid := string(client.Id())
		_ = client.Emit("message", gatewayPayload{Type: "GATEWAY_CONNECT", Data: "WebSocket connected"})

		_ = client.On("message", func(eventArgs ...any) {
			msg, ok := parseInboundLiveMessage(eventArgs...)
			if !ok {
				return
			}

			switch msg.Type {
			case messageJoin:
				room := strFromAny(msg.Payload["room"])
				role := strFromAny(msg.Payload["role"])
				if room == "" || !validRole(role) {
					return
				}
				if role == slidesync.RoleTeacher && !h.teacherAuthorized(client) {
					_ = client.Emit("message", gatewayPayload{Type: "AUTH_FAILED", Data: "auth failed"})
					return
				}
				br, err := h.openBridge(client, room, role)
				if err != nil {
					if h.logger != nil {
						h.logger.Warn("gateway bridge open failed", zap.String("room", room), zap.Error(err))
					}
					return
				}
				h.setBridge(sid, br)
				client.Join(socketio.Room(room))
				h.register <- clientMeta{sid: sid, room: room}
				_ = client.Emit("message", gatewayPayload{Type: "JOINED", Data: room})

			case messageLeave:
				if br := h.bridgeOf(sid); br != nil {
					client.Leave(socketio.Room(br.room))
				}
				h.dropBridge(sid)
				h.unregister <- clientMeta{sid: sid}

			case messagePublish:
				topic := strFromAny(msg.Payload["topic"])
				if topic == "" {
					return
				}
				br := h.bridgeOf(sid)
				if br == nil {
					return
				}
				data, err := json.Marshal(msg.Payload["data"])
				if err != nil {
					return
				}
				br.publish(topic, data)
			}
		})

		_ = client.On("disconnect", func(_ ...any) {
			h.dropBridge(sid)
			h.unregister <- clientMeta{sid: sid}
		})
	})
}

func (h *Hub) teacherAuthorized(client *socketio.Socket) bool {
	token := middleware.NormalizeToken(extractToken(client))
	return token != "" && h.teacherTokenOK != nil && h.teacherTokenOK(token)
}

func validRole(role string) bool {
	return role == slidesync.RoleTeacher || role == slidesync.RoleStudent
}

func extractToken(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	if token := firstValueFromMultiMap(handshake.Query, "token"); token != "" {
		return token
	}
	return firstValueFromMultiMap(handshake.Headers, "authorization")
}

func firstValueFromMultiMap(values map[string][]string, key string) string {
	if len(values) == 0 {
		return ""
	}
	for k, list := range values {
		if !strings.EqualFold(strings.TrimSpace(k), key) || len(list) == 0 {
			continue
		}
		v := strings.TrimSpace(list[0])
		if v != "" {
			return v
		}
	}
	return ""
}

func parseInboundLiveMessage(args ...any) (inboundLiveMessage, bool) {
	if len(args) == 0 || args[0] == nil {
		return inboundLiveMessage{}, false
	}

	var msg inboundLiveMessage
	switch raw := args[0].(type) {
	case map[string]interface{}:
		msg.Type = strFromAny(raw["type"])
		msg.Payload = mapFromAny(raw["payload"])
	case string:
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return inboundLiveMessage{}, false
		}
	case []byte:
		if err := json.Unmarshal(raw, &msg); err != nil {
			return inboundLiveMessage{}, false
		}
	default:
		data, err := json.Marshal(raw)
		if err != nil {
			return inboundLiveMessage{}, false
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return inboundLiveMessage{}, false
		}
	}

	msg.Type = strings.TrimSpace(msg.Type)
	if msg.Type == "" {
		return inboundLiveMessage{}, false
	}
	if msg.Payload == nil {
		msg.Payload = map[string]interface{}{}
	}
	return msg, true
}

func mapFromAny(v interface{}) map[string]interface{} {
	switch typed := v.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return typed
	default:
		data, err := json.Marshal(typed)
		if err != nil {
			return map[string]interface{}{}
		}
		out := map[string]interface{}{}
		if err := json.Unmarshal(data, &out); err != nil {
			return map[string]interface{}{}
		}
		return out
	}
}

func strFromAny(v interface{}) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
