package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/slidecast/core/internal/transport"
	"go.uber.org/zap"
)

// Aggregator owns one room's identity→record map. It is fed raw snapshots
// from the transport and answers consistent member views; classification is
// computed against now at read time so a record goes stale without any
// further event.
type Aggregator struct {
	heartbeat  time.Duration
	staleGrace time.Duration
	now        func() time.Time

	mu         sync.RWMutex
	byIdentity map[string]Record
}

func NewAggregator(heartbeat, staleGrace time.Duration) *Aggregator {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatPeriod
	}
	if staleGrace <= 0 {
		staleGrace = DefaultStaleGrace
	}
	return &Aggregator{
		heartbeat:  heartbeat,
		staleGrace: staleGrace,
		now:        time.Now,
		byIdentity: map[string]Record{},
	}
}

// Apply replaces the aggregate state with the reduction of a raw snapshot.
// Undecodable records are skipped. An identity absent from the snapshot
// disappears entirely, which is how "disconnected" differs from "stale".
func (a *Aggregator) Apply(raws []transport.RawPresence) {
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		if rec, ok := DecodeRecord(raw.Data); ok {
			records = append(records, rec)
		}
	}
	reduced := Reduce(records)

	a.mu.Lock()
	a.byIdentity = reduced
	a.mu.Unlock()
}

// Members returns every known identity with its derived status, sorted by
// display label.
func (a *Aggregator) Members() []Member {
	return a.members(func(Record, time.Time) bool { return true })
}

// Disengaged returns the unfocused/offline subset for teacher views; a
// superset of the offline members.
func (a *Aggregator) Disengaged() []Member {
	return a.members(func(rec Record, now time.Time) bool {
		return Disengaged(rec, now, a.heartbeat, a.staleGrace)
	})
}

func (a *Aggregator) members(keep func(Record, time.Time) bool) []Member {
	now := a.now()

	a.mu.RLock()
	out := make([]Member, 0, len(a.byIdentity))
	for _, rec := range a.byIdentity {
		if !keep(rec, now) {
			continue
		}
		out = append(out, Member{Record: rec, Status: Classify(rec, now, a.heartbeat, a.staleGrace)})
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Label() < out[j].Label() })
	return out
}

// Snapshot applies raws to a throwaway aggregator and returns its members.
// Used by REST handlers that read the broker directly.
func Snapshot(raws []transport.RawPresence, heartbeat, staleGrace time.Duration) []Member {
	agg := NewAggregator(heartbeat, staleGrace)
	agg.Apply(raws)
	return agg.Members()
}

// WatcherOptions configures an observing presence subscription.
type WatcherOptions struct {
	HeartbeatPeriod time.Duration
	StaleGrace      time.Duration
	// OnChange fires with the full member list after every transport sync
	// event and on each recomputation tick.
	OnChange func([]Member)
	Logger   *zap.Logger
}

// Watcher ties a presence-topic subscription to an Aggregator. It only
// observes; teacher participants never announce.
type Watcher struct {
	agg *Aggregator
	sub transport.Subscription

	tick   time.Duration
	opts   WatcherOptions
	logger *zap.Logger

	closeOnce sync.Once
}

// OpenWatcher subscribes to the room's presence topic and starts folding
// snapshots as they arrive.
func OpenWatcher(ctx context.Context, client transport.Client, room string, opts WatcherOptions) (*Watcher, error) {
	sub, err := client.Subscribe(ctx, transport.PresenceTopic(room))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		agg:    NewAggregator(opts.HeartbeatPeriod, opts.StaleGrace),
		sub:    sub,
		tick:   tickPeriod(opts.HeartbeatPeriod),
		opts:   opts,
		logger: logger,
	}
	go w.loop()
	return w, nil
}

func tickPeriod(heartbeat time.Duration) time.Duration {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatPeriod
	}
	return heartbeat
}

// Members returns the current logical member list.
func (w *Watcher) Members() []Member { return w.agg.Members() }

// Disengaged returns the current unfocused/offline subset.
func (w *Watcher) Disengaged() []Member { return w.agg.Disengaged() }

// Close releases the subscription. Idempotent.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() { w.sub.Unsubscribe() })
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.sub.Done():
			return
		case raws := <-w.sub.Presence():
			w.agg.Apply(raws)
			w.notify()
		case <-ticker.C:
			// No new data, but ages moved; re-derive for push consumers.
			w.notify()
		}
	}
}

func (w *Watcher) notify() {
	if w.opts.OnChange != nil {
		w.opts.OnChange(w.agg.Members())
	}
}
