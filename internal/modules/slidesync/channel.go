package slidesync

import (
	"context"
	"errors"
	"sync"

	"github.com/slidecast/core/internal/transport"
	"go.uber.org/zap"
)

// ChannelState is the participant-local connection state of a sync channel.
type ChannelState int

const (
	StateDisconnected ChannelState = iota
	StateSubscribing
	StateConnected
)

// ErrAlreadyOpen is returned when Open is called on a channel that has an
// active subscription.
var ErrAlreadyOpen = errors.New("slidesync: channel already open")

// Options configures a Channel. All callbacks are invoked from the
// channel's own goroutines and must not block.
type Options struct {
	// OnMessage fires for every broadcast that passes shape validation.
	OnMessage func(Message)
	// OnStateChange fires on Connected/Disconnected transitions with the
	// boolean connectivity flag.
	OnStateChange func(connected bool)
	Logger        *zap.Logger
}

// Channel drives one participant's view of a room's sync topic. On every
// transition into Connected it broadcasts hello{role}; reconnections
// re-run that side effect so latest-wins consumers see a fresh record.
type Channel struct {
	client transport.Client
	room   string
	role   string
	opts   Options

	mu    sync.Mutex
	state ChannelState
	gen   int
	sub   transport.Subscription
	last  *Message
}

// NewChannel builds a sync channel for room with the given role. Role is
// advisory: the protocol does not enforce that only teachers send goto,
// that is upheld by the session layer.
func NewChannel(client transport.Client, room, role string, opts Options) *Channel {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Channel{client: client, room: room, role: role, opts: opts}
}

// Open subscribes to the room's sync topic. The hello announcement is sent
// asynchronously once the transport confirms the subscription.
func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	if c.sub != nil {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.gen++
	gen := c.gen
	c.state = StateSubscribing
	c.mu.Unlock()

	sub, err := c.client.Subscribe(ctx, transport.SyncTopic(c.room))
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	if c.gen != gen {
		// Closed while the subscribe was in flight; the late confirmation
		// must not leave observable state behind.
		c.mu.Unlock()
		sub.Unsubscribe()
		return context.Canceled
	}
	c.sub = sub
	c.mu.Unlock()

	go c.watchStates(gen, sub)
	go c.readLoop(gen, sub)
	return nil
}

// Close tears the channel down. Safe to call repeatedly; the underlying
// unsubscribe happens at most once per Open.
func (c *Channel) Close() {
	c.mu.Lock()
	c.gen++
	c.state = StateDisconnected
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Goto broadcasts a navigation command. No-op while disconnected.
func (c *Channel) Goto(page int, slot, step *int) {
	c.send(EncodeGoto(page, slot, step))
}

// Refresh broadcasts a cache-invalidation pulse for scope.
func (c *Channel) Refresh(scope string) {
	c.send(EncodeRefresh(scope))
}

// Last returns the most recent decoded message, if any. Malformed payloads
// never reach it.
func (c *Channel) Last() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Message{}, false
	}
	return *c.last, true
}

// Connected reports the boolean connectivity flag.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// State returns the current lifecycle state.
func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) send(payload []byte) {
	c.mu.Lock()
	sub := c.sub
	connected := c.state == StateConnected
	c.mu.Unlock()

	if sub == nil || !connected {
		c.opts.Logger.Debug("sync send while disconnected, dropping",
			zap.String("room", c.room), zap.String("role", c.role))
		return
	}
	sub.Broadcast(payload)
}

// current reports whether gen is still the active generation; callbacks
// arriving after Close or a reopen are discarded against it.
func (c *Channel) current(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Channel) watchStates(gen int, sub transport.Subscription) {
	for {
		select {
		case <-sub.Done():
			return
		case st := <-sub.States():
			if !c.current(gen) {
				return
			}
			switch st {
			case transport.StateSubscribed:
				c.mu.Lock()
				c.state = StateConnected
				c.mu.Unlock()
				// Announce on every confirmation, not only the first:
				// a resubscribed transport needs a fresh hello.
				sub.Broadcast(EncodeHello(c.role))
				if c.opts.OnStateChange != nil {
					c.opts.OnStateChange(true)
				}
			case transport.StateDisconnected:
				c.mu.Lock()
				if c.gen == gen {
					c.state = StateDisconnected
				}
				c.mu.Unlock()
				if c.opts.OnStateChange != nil {
					c.opts.OnStateChange(false)
				}
			}
		}
	}
}

func (c *Channel) readLoop(gen int, sub transport.Subscription) {
	for {
		select {
		case <-sub.Done():
			return
		case data := <-sub.Messages():
			if !c.current(gen) {
				return
			}
			msg, ok := Decode(data)
			if !ok {
				// Stray or future-incompatible payload from another room
				// listener; not an error.
				c.opts.Logger.Debug("dropping malformed sync payload", zap.String("room", c.room))
				continue
			}
			c.mu.Lock()
			m := msg
			c.last = &m
			c.mu.Unlock()
			if c.opts.OnMessage != nil {
				c.opts.OnMessage(msg)
			}
		}
	}
}
