package gateway

import (
	"sync"
	"time"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"

	"github.com/slidecast/core/internal/transport"
)

const (
	namespaceLive = "/live"

	messageJoin    = "join"
	messageLeave   = "leave"
	messagePublish = "publish"

	topicSync     = "sync"
	topicPresence = "presence"
	topicNotify   = "notify"
)

// gatewayPayload is the envelope emitted to sockets for relayed room
// traffic and gateway control messages.
type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clientMeta struct {
	sid  string
	room string
}

// Hub tracks connected sockets and their room membership, and bridges
// each socket onto the room's topics.
type Hub struct {
	mu sync.RWMutex

	sidRoom   map[string]string
	roomCount map[string]int

	bridgeMu sync.Mutex
	bridges  map[string]*bridge

	register   chan clientMeta
	unregister chan clientMeta

	broker         *transport.Broker
	logger         *zap.Logger
	sio            *socketio.Server
	teacherTokenOK func(string) bool

	heartbeat  time.Duration
	staleGrace time.Duration
}
