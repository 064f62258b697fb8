// Package session composes the three room channels (sync, presence,
// notify) into teacher and student participants with explicit Open/Close
// lifecycles. Every Open releases whatever it acquired on failure paths,
// and Close is idempotent.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slidecast/core/internal/modules/notify"
	"github.com/slidecast/core/internal/modules/presence"
	"github.com/slidecast/core/internal/modules/slidesync"
	"github.com/slidecast/core/internal/transport"
	"go.uber.org/zap"
)

// Identity names a participant. An empty ID falls back to the role
// literal, so anonymous students share the identity "student".
type Identity struct {
	ID          string
	DisplayName string
}

// Options tunes a session. Zero values take the protocol defaults
// (10s heartbeat, 6s stale grace).
type Options struct {
	HeartbeatPeriod time.Duration
	StaleGrace      time.Duration
	Logger          *zap.Logger

	// Forwarder receives accepted submissions on the teacher side; nil
	// disables upstream forwarding.
	Forwarder notify.Forwarder

	// OnMessage fires on the student side for every decoded sync message.
	OnMessage func(slidesync.Message)
	// OnPresenceChange fires on the teacher side with the member list.
	OnPresenceChange func([]presence.Member)
	// OnStateChange fires with the sync channel's connectivity flag.
	OnStateChange func(connected bool)
}

func (o *Options) normalize() {
	if o.HeartbeatPeriod <= 0 {
		o.HeartbeatPeriod = presence.DefaultHeartbeatPeriod
	}
	if o.StaleGrace <= 0 {
		o.StaleGrace = presence.DefaultStaleGrace
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// TeacherSession drives navigation for a room and aggregates what comes
// back: presence and pending unlock requests. Single-writer for goto is a
// convention this type upholds by being the only one that exposes it.
type TeacherSession struct {
	room  string
	sync  *slidesync.Channel
	watch *presence.Watcher
	cons  *notify.Consumer
	queue *notify.Queue

	closeOnce sync.Once
}

// OpenTeacher opens the three channels of a room for the presenter.
func OpenTeacher(ctx context.Context, client transport.Client, room string, opts Options) (*TeacherSession, error) {
	opts.normalize()

	ts := &TeacherSession{
		room:  room,
		queue: notify.NewQueue(),
	}

	ts.sync = slidesync.NewChannel(client, room, slidesync.RoleTeacher, slidesync.Options{
		OnStateChange: opts.OnStateChange,
		Logger:        opts.Logger,
	})
	if err := ts.sync.Open(ctx); err != nil {
		return nil, fmt.Errorf("open sync channel: %w", err)
	}

	watch, err := presence.OpenWatcher(ctx, client, room, presence.WatcherOptions{
		HeartbeatPeriod: opts.HeartbeatPeriod,
		StaleGrace:      opts.StaleGrace,
		OnChange:        opts.OnPresenceChange,
		Logger:          opts.Logger,
	})
	if err != nil {
		ts.sync.Close()
		return nil, fmt.Errorf("open presence watcher: %w", err)
	}
	ts.watch = watch

	cons, err := notify.OpenConsumer(ctx, client, room, ts.queue, opts.Forwarder, opts.Logger)
	if err != nil {
		ts.watch.Close()
		ts.sync.Close()
		return nil, fmt.Errorf("open notify consumer: %w", err)
	}
	ts.cons = cons

	return ts, nil
}

// Goto broadcasts a navigation command without touching the pending queue.
func (t *TeacherSession) Goto(page int, slot, step *int) {
	t.sync.Goto(page, slot, step)
}

// Advance navigates and clears the pending queue wholesale: moving on
// implicitly resolves every outstanding request for the step being left.
func (t *TeacherSession) Advance(page int, slot, step *int) {
	t.sync.Goto(page, slot, step)
	t.queue.Clear()
}

// Refresh broadcasts a cache-invalidation pulse for scope.
func (t *TeacherSession) Refresh(scope string) {
	t.sync.Refresh(scope)
}

// Pending returns the outstanding unlock requests, FIFO by arrival.
func (t *TeacherSession) Pending() []notify.UnlockRequest { return t.queue.Pending() }

// Members returns the room's logical presence list.
func (t *TeacherSession) Members() []presence.Member { return t.watch.Members() }

// Disengaged returns the unfocused/offline subset of the room.
func (t *TeacherSession) Disengaged() []presence.Member { return t.watch.Disengaged() }

// Connected reports the sync channel's connectivity flag.
func (t *TeacherSession) Connected() bool { return t.sync.Connected() }

// Last returns the most recent decoded sync message.
func (t *TeacherSession) Last() (slidesync.Message, bool) { return t.sync.Last() }

// Close releases every channel exactly once.
func (t *TeacherSession) Close() {
	t.closeOnce.Do(func() {
		t.cons.Close()
		t.watch.Close()
		t.sync.Close()
	})
}

// StudentSession follows a room read-only, heartbeats its presence, and
// submits answers upstream.
type StudentSession struct {
	room     string
	identity Identity

	sync   *slidesync.Channel
	prsSub transport.Subscription
	hb     *presence.Heartbeat
	sender *notify.Sender

	closeOnce sync.Once
}

// OpenStudent opens the three channels of a room for a viewer.
func OpenStudent(ctx context.Context, client transport.Client, room string, id Identity, opts Options) (*StudentSession, error) {
	opts.normalize()
	if id.ID == "" {
		id.ID = slidesync.RoleStudent
	}

	ss := &StudentSession{room: room, identity: id}

	ss.sync = slidesync.NewChannel(client, room, slidesync.RoleStudent, slidesync.Options{
		OnMessage:     opts.OnMessage,
		OnStateChange: opts.OnStateChange,
		Logger:        opts.Logger,
	})
	if err := ss.sync.Open(ctx); err != nil {
		return nil, fmt.Errorf("open sync channel: %w", err)
	}

	prsSub, err := client.Subscribe(ctx, transport.PresenceTopic(room))
	if err != nil {
		ss.sync.Close()
		return nil, fmt.Errorf("subscribe presence: %w", err)
	}
	ss.prsSub = prsSub
	ss.hb = presence.StartHeartbeat(prsSub, id.ID, presence.RoleStudent, id.DisplayName, opts.HeartbeatPeriod)

	sender, err := notify.OpenSender(ctx, client, room)
	if err != nil {
		ss.hb.Stop()
		prsSub.Unsubscribe()
		ss.sync.Close()
		return nil, fmt.Errorf("open notify sender: %w", err)
	}
	ss.sender = sender

	return ss, nil
}

// Last returns the most recent decoded sync message.
func (s *StudentSession) Last() (slidesync.Message, bool) { return s.sync.Last() }

// Connected reports the sync channel's connectivity flag.
func (s *StudentSession) Connected() bool { return s.sync.Connected() }

// SetFocused reports a tab visibility transition; the presence record is
// re-announced immediately so the teacher view reacts ahead of the timer.
func (s *StudentSession) SetFocused(focused bool) { s.hb.SetFocused(focused) }

// Beat forces an immediate presence re-announce (online/offline events).
func (s *StudentSession) Beat() { s.hb.Beat() }

// Submit sends an unlock request with this session's student id attached.
func (s *StudentSession) Submit(slide, step int, answer string) {
	s.sender.Submit(notify.UnlockRequest{
		Slide:     slide,
		Step:      step,
		Answer:    answer,
		StudentID: s.identity.ID,
	})
}

// Close releases every channel exactly once. The transport drops the
// ephemeral presence record with the subscription.
func (s *StudentSession) Close() {
	s.closeOnce.Do(func() {
		s.sender.Close()
		s.hb.Stop()
		s.prsSub.Unsubscribe()
		s.sync.Close()
	})
}
