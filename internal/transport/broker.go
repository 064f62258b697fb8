package transport

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgredis "github.com/slidecast/core/internal/pkg/redis"
	"go.uber.org/zap"
)

const (
	redisChanFanout = "sc:live:fanout"

	opBroadcast = "broadcast"
	opAnnounce  = "announce"
	opRevoke    = "revoke"

	defaultRemoteExpiry = 60 * time.Second

	msgBuffer      = 64
	stateBuffer    = 4
	presenceBuffer = 16
)

// Broker is the in-process pub/sub implementation of Client. All state is
// held in memory; with a Redis client attached, broadcasts and presence
// announces fan out to every other instance sharing the channel.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]*topicState

	instanceID   string
	logger       *zap.Logger
	rc           *pkgredis.Client
	remoteExpiry time.Duration
}

type topicState struct {
	subs    map[string]*subscription
	records map[string][]byte // presence: subscription id -> announced record
	remote  map[string]remoteRecord
}

type remoteRecord struct {
	data   []byte
	seenAt time.Time
}

// fanoutEnvelope is the wire format on the Redis fan-out channel.
type fanoutEnvelope struct {
	Op      string `json:"op"`
	Topic   string `json:"topic"`
	ConnID  string `json:"connId,omitempty"`
	Payload []byte `json:"payload,omitempty"`
	Origin  string `json:"origin"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithRedis attaches a Redis client for cross-instance fan-out.
func WithRedis(rc *pkgredis.Client) Option {
	return func(b *Broker) { b.rc = rc }
}

// WithRemoteExpiry overrides how long a remote presence record survives
// without a refreshing announce. Covers instances that crash without
// publishing revokes.
func WithRemoteExpiry(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.remoteExpiry = d
		}
	}
}

func NewBroker(logger *zap.Logger, opts ...Option) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Broker{
		topics:       make(map[string]*topicState),
		instanceID:   uuid.New().String(),
		logger:       logger,
		remoteExpiry: defaultRemoteExpiry,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a new handle on topic. The subscribed confirmation is
// delivered asynchronously on States.
func (b *Broker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		broker:   b,
		topic:    topic,
		id:       uuid.New().String(),
		msgs:     make(chan []byte, msgBuffer),
		states:   make(chan State, stateBuffer),
		presence: make(chan []RawPresence, presenceBuffer),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	ts := b.topics[topic]
	if ts == nil {
		ts = &topicState{
			subs:    make(map[string]*subscription),
			records: make(map[string][]byte),
			remote:  make(map[string]remoteRecord),
		}
		b.topics[topic] = ts
	}
	ts.subs[sub.id] = sub
	b.mu.Unlock()

	pushState(sub, StateSubscribed)
	if IsPresenceTopic(topic) {
		b.emitPresence(topic)
	}
	return sub, nil
}

// Publish broadcasts on a topic without holding a subscription. Used by
// server-side producers such as manifest refresh pulses.
func (b *Broker) Publish(topic string, payload []byte) {
	b.deliverLocal(topic, payload)
	b.publishFanout(fanoutEnvelope{Op: opBroadcast, Topic: topic, Payload: payload})
}

// PresenceSnapshot returns the current raw record set of a presence topic.
func (b *Broker) PresenceSnapshot(topic string) []RawPresence {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ts := b.topics[topic]
	if ts == nil {
		return nil
	}
	return snapshotLocked(ts)
}

// SubscriberCount returns how many local subscriptions a topic has.
func (b *Broker) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if ts := b.topics[topic]; ts != nil {
		return len(ts.subs)
	}
	return 0
}

// Run drives the Redis fan-out subscriber and the remote record sweep until
// ctx is cancelled. Without a Redis client it only runs the sweep, which
// then has nothing to do; callers may skip Run in that case.
func (b *Broker) Run(ctx context.Context) {
	sweep := time.NewTicker(b.remoteExpiry / 2)
	defer sweep.Stop()

	var fanout <-chan []byte
	if b.rc != nil {
		pubsub := b.rc.Subscribe(ctx, redisChanFanout)
		defer pubsub.Close()
		ch := pubsub.Channel()
		relay := make(chan []byte, msgBuffer)
		go func() {
			for msg := range ch {
				select {
				case relay <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}()
		fanout = relay
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			b.sweepRemote(time.Now())
		case data, ok := <-fanout:
			if !ok {
				return
			}
			b.handleFanout(data)
		}
	}
}

func (b *Broker) handleFanout(data []byte) {
	var env fanoutEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}
	if env.Origin == b.instanceID {
		return
	}

	switch env.Op {
	case opBroadcast:
		b.deliverLocal(env.Topic, env.Payload)
	case opAnnounce:
		key := env.Origin + "/" + env.ConnID
		b.mu.Lock()
		ts := b.topics[env.Topic]
		if ts == nil {
			ts = &topicState{
				subs:    make(map[string]*subscription),
				records: make(map[string][]byte),
				remote:  make(map[string]remoteRecord),
			}
			b.topics[env.Topic] = ts
		}
		ts.remote[key] = remoteRecord{data: env.Payload, seenAt: time.Now()}
		b.mu.Unlock()
		b.emitPresence(env.Topic)
	case opRevoke:
		key := env.Origin + "/" + env.ConnID
		b.mu.Lock()
		changed := false
		if ts := b.topics[env.Topic]; ts != nil {
			if _, ok := ts.remote[key]; ok {
				delete(ts.remote, key)
				changed = true
			}
		}
		b.mu.Unlock()
		if changed {
			b.emitPresence(env.Topic)
		}
	}
}

// sweepRemote drops remote presence records whose owning instance stopped
// refreshing them. In-protocol staleness marks them offline long before
// this fires; the sweep only reclaims the entries.
func (b *Broker) sweepRemote(now time.Time) {
	expireBefore := now.Add(-b.remoteExpiry)
	var affected []string

	b.mu.Lock()
	for topic, ts := range b.topics {
		changed := false
		for key, rec := range ts.remote {
			if rec.seenAt.Before(expireBefore) {
				delete(ts.remote, key)
				changed = true
			}
		}
		if changed {
			affected = append(affected, topic)
		}
		if len(ts.subs) == 0 && len(ts.records) == 0 && len(ts.remote) == 0 {
			delete(b.topics, topic)
		}
	}
	b.mu.Unlock()

	for _, topic := range affected {
		b.emitPresence(topic)
	}
}

func (b *Broker) deliverLocal(topic string, payload []byte) {
	b.mu.RLock()
	ts := b.topics[topic]
	if ts == nil {
		b.mu.RUnlock()
		return
	}
	targets := make([]*subscription, 0, len(ts.subs))
	for _, sub := range ts.subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.msgs <- payload:
		default:
			b.logger.Debug("dropping message for slow subscriber",
				zap.String("topic", topic), zap.String("conn", sub.id))
		}
	}
}

func (b *Broker) emitPresence(topic string) {
	b.mu.RLock()
	ts := b.topics[topic]
	if ts == nil {
		b.mu.RUnlock()
		return
	}
	snapshot := snapshotLocked(ts)
	targets := make([]*subscription, 0, len(ts.subs))
	for _, sub := range ts.subs {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		// Only the latest snapshot matters; shed the oldest queued one
		// instead of blocking.
		select {
		case sub.presence <- snapshot:
		default:
			select {
			case <-sub.presence:
			default:
			}
			select {
			case sub.presence <- snapshot:
			default:
			}
		}
	}
}

func (b *Broker) publishFanout(env fanoutEnvelope) {
	if b.rc == nil {
		return
	}
	env.Origin = b.instanceID
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rc.Publish(ctx, redisChanFanout, string(data)); err != nil {
		b.logger.Warn("fanout publish failed", zap.String("topic", env.Topic), zap.Error(err))
	}
}

func snapshotLocked(ts *topicState) []RawPresence {
	out := make([]RawPresence, 0, len(ts.records)+len(ts.remote))
	for id, data := range ts.records {
		out = append(out, RawPresence{ConnID: id, Data: data})
	}
	for key, rec := range ts.remote {
		out = append(out, RawPresence{ConnID: key, Data: rec.data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnID < out[j].ConnID })
	return out
}

func pushState(sub *subscription, st State) {
	select {
	case sub.states <- st:
	default:
	}
}

type subscription struct {
	broker *Broker
	topic  string
	id     string

	msgs     chan []byte
	states   chan State
	presence chan []RawPresence
	done     chan struct{}
	once     sync.Once
}

func (s *subscription) Topic() string                  { return s.topic }
func (s *subscription) Messages() <-chan []byte        { return s.msgs }
func (s *subscription) States() <-chan State           { return s.states }
func (s *subscription) Presence() <-chan []RawPresence { return s.presence }
func (s *subscription) Done() <-chan struct{}          { return s.done }

func (s *subscription) Broadcast(payload []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	s.broker.deliverLocal(s.topic, payload)
	s.broker.publishFanout(fanoutEnvelope{Op: opBroadcast, Topic: s.topic, Payload: payload})
}

func (s *subscription) Announce(data []byte) {
	if !IsPresenceTopic(s.topic) {
		return
	}
	select {
	case <-s.done:
		return
	default:
	}

	s.broker.mu.Lock()
	ts := s.broker.topics[s.topic]
	if ts == nil || ts.subs[s.id] == nil {
		s.broker.mu.Unlock()
		return
	}
	ts.records[s.id] = data
	s.broker.mu.Unlock()

	s.broker.emitPresence(s.topic)
	s.broker.publishFanout(fanoutEnvelope{Op: opAnnounce, Topic: s.topic, ConnID: s.id, Payload: data})
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)

		b := s.broker
		hadRecord := false
		b.mu.Lock()
		if ts := b.topics[s.topic]; ts != nil {
			delete(ts.subs, s.id)
			if _, ok := ts.records[s.id]; ok {
				delete(ts.records, s.id)
				hadRecord = true
			}
			if len(ts.subs) == 0 && len(ts.records) == 0 && len(ts.remote) == 0 {
				delete(b.topics, s.topic)
			}
		}
		b.mu.Unlock()

		pushState(s, StateDisconnected)
		if IsPresenceTopic(s.topic) {
			b.emitPresence(s.topic)
			if hadRecord {
				b.publishFanout(fanoutEnvelope{Op: opRevoke, Topic: s.topic, ConnID: s.id})
			}
		}
	})
}
