package presence

import (
	"sync"
	"time"

	"github.com/slidecast/core/internal/transport"
)

// Heartbeat re-announces a student's presence record on a fixed interval
// and immediately on engagement transitions (focus/blur, online/offline),
// so teacher views react faster than the timer period. Announcing is
// fire-and-forget; a missed beat is self-corrected by the next tick.
type Heartbeat struct {
	sub      transport.Subscription
	interval time.Duration
	now      func() time.Time

	mu          sync.Mutex
	identity    string
	role        string
	displayName string
	focused     bool

	stopOnce sync.Once
	stop     chan struct{}
}

// StartHeartbeat announces once immediately and then keeps the record
// fresh until Stop. The subscription must be on a presence topic.
func StartHeartbeat(sub transport.Subscription, identity, role, displayName string, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatPeriod
	}
	h := &Heartbeat{
		sub:         sub,
		interval:    interval,
		now:         time.Now,
		identity:    identity,
		role:        role,
		displayName: displayName,
		focused:     true,
		stop:        make(chan struct{}),
	}
	h.announce()
	go h.loop()
	return h
}

// SetFocused records a visibility transition and re-announces out-of-band
// of the timer.
func (h *Heartbeat) SetFocused(focused bool) {
	h.mu.Lock()
	changed := h.focused != focused
	h.focused = focused
	h.mu.Unlock()
	if changed {
		h.announce()
	}
}

// Beat forces an immediate re-announce with a fresh timestamp. Used for
// online/offline transitions surfaced by the host environment.
func (h *Heartbeat) Beat() { h.announce() }

// Stop halts the timer. The transport drops the ephemeral record when the
// owning subscription is released; no in-protocol removal exists.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Heartbeat) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-h.sub.Done():
			return
		case <-ticker.C:
			h.announce()
		}
	}
}

func (h *Heartbeat) announce() {
	h.mu.Lock()
	rec := Record{
		Identity:    h.identity,
		Role:        h.role,
		Focused:     h.focused,
		Timestamp:   h.now().UnixMilli(),
		DisplayName: h.displayName,
	}
	h.mu.Unlock()
	h.sub.Announce(rec.Encode())
}
