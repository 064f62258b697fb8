// Package transport defines the pub/sub medium the live channels run over
// and provides an in-process broker implementation with optional Redis
// fan-out between server instances.
//
// The contract is deliberately generic: named topics, fire-and-forget
// broadcasts with best-effort single-publisher ordering, and, for presence
// topics only, one ephemeral record per subscription that the broker
// removes when that subscription goes away.
package transport

import (
	"context"
	"strings"
)

// State is the connectivity signal a subscription reports asynchronously.
type State int

const (
	StateDisconnected State = iota
	StateSubscribing
	StateSubscribed
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// RawPresence is one connection's ephemeral record as held by the transport.
// Several connections may carry records for the same logical identity; the
// transport does not collapse them.
type RawPresence struct {
	ConnID string `json:"connId"`
	Data   []byte `json:"data"`
}

// Subscription is a live handle on one topic. Broadcast and Announce are
// fire-and-forget and never block the caller; after Unsubscribe both are
// no-ops. Channel reads must be paired with Done so readers can bail out
// when the handle is released.
type Subscription interface {
	Topic() string

	// Broadcast delivers payload to every current subscriber of the topic,
	// including the publisher. No delivery acknowledgment, no ordering
	// across publishers.
	Broadcast(payload []byte)

	// Announce replaces this subscription's ephemeral presence record.
	// No-op on topics that are not presence-capable.
	Announce(data []byte)

	Messages() <-chan []byte
	States() <-chan State

	// Presence emits a full raw snapshot whenever the aggregate record set
	// of the topic changes: a subscriber joining, an announce, or a
	// subscription dropping.
	Presence() <-chan []RawPresence

	Done() <-chan struct{}

	// Unsubscribe releases the handle. Safe to call any number of times and
	// concurrently with in-flight operations.
	Unsubscribe()
}

// Client is the subscribe entry point handed to channel wrappers. The
// in-process Broker implements it; tests inject it directly.
type Client interface {
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

const (
	topicPrefix    = "room:"
	suffixSync     = ":sync"
	suffixPresence = ":presence"
	suffixNotify   = ":notify"
)

// SyncTopic names the navigation topic of a room.
func SyncTopic(room string) string { return topicPrefix + room + suffixSync }

// PresenceTopic names the liveness topic of a room.
func PresenceTopic(room string) string { return topicPrefix + room + suffixPresence }

// NotifyTopic names the student→teacher submission topic of a room.
func NotifyTopic(room string) string { return topicPrefix + room + suffixNotify }

// IsPresenceTopic reports whether a topic carries ephemeral presence state.
func IsPresenceTopic(topic string) bool { return strings.HasSuffix(topic, suffixPresence) }

// RoomOfTopic extracts the room key from a topic name, or "" when the topic
// is not room-scoped.
func RoomOfTopic(topic string) string {
	if !strings.HasPrefix(topic, topicPrefix) {
		return ""
	}
	rest := topic[len(topicPrefix):]
	if i := strings.LastIndex(rest, ":"); i > 0 {
		return rest[:i]
	}
	return ""
}
