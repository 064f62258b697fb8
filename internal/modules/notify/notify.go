// Package notify carries discrete student submissions to the teacher over
// a room's notify topic. The channel is asymmetric: students broadcast,
// only the teacher consumes. Delivery is at-most-once and best-effort: a
// submission while the teacher is away is simply lost.
package notify

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/slidecast/core/internal/transport"
	"go.uber.org/zap"
)

const typeUnlockRequest = "unlock_request"

// UnlockRequest is a student's answer submission for a locked step.
type UnlockRequest struct {
	Slide     int    `json:"slide"`
	Step      int    `json:"step"`
	Answer    string `json:"answer"`
	StudentID string `json:"studentId,omitempty"`
}

type wireEvent struct {
	Type      string  `json:"type"`
	Slide     *int    `json:"slide,omitempty"`
	Step      *int    `json:"step,omitempty"`
	Answer    *string `json:"answer,omitempty"`
	StudentID string  `json:"studentId,omitempty"`
}

// Decode parses a notify broadcast, enforcing the shape predicate: numeric
// slide and step, answer present. Malformed events are dropped by callers.
func Decode(data []byte) (UnlockRequest, bool) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return UnlockRequest{}, false
	}
	if w.Type != typeUnlockRequest || w.Slide == nil || w.Step == nil || w.Answer == nil {
		return UnlockRequest{}, false
	}
	return UnlockRequest{Slide: *w.Slide, Step: *w.Step, Answer: *w.Answer, StudentID: w.StudentID}, true
}

// Encode serializes an unlock request for broadcasting.
func Encode(req UnlockRequest) []byte {
	answer := req.Answer
	data, _ := json.Marshal(wireEvent{
		Type:      typeUnlockRequest,
		Slide:     &req.Slide,
		Step:      &req.Step,
		Answer:    &answer,
		StudentID: req.StudentID,
	})
	return data
}

// Forwarder hands accepted submissions to the upstream grading service.
// Implementations must not block the consumer loop; the answer string is
// passed through untouched.
type Forwarder interface {
	Forward(room string, req UnlockRequest)
}

// Queue is the teacher-local ordered buffer of unresolved submissions. It
// is a presentation aid, not a durable log: advancing clears it in full.
type Queue struct {
	mu    sync.Mutex
	items []UnlockRequest
}

func NewQueue() *Queue { return &Queue{} }

// Push appends an event in arrival order.
func (q *Queue) Push(req UnlockRequest) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
}

// Pending returns a copy of the outstanding events, FIFO.
func (q *Queue) Pending() []UnlockRequest {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]UnlockRequest, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports how many events are outstanding.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards every outstanding event. There is no per-item
// acknowledgment: moving on invalidates the whole pile.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// Consumer is the teacher-side end of the notify topic: every decoded
// event is appended to the queue and optionally forwarded upstream.
type Consumer struct {
	room      string
	sub       transport.Subscription
	queue     *Queue
	forwarder Forwarder
	logger    *zap.Logger

	closeOnce sync.Once
}

// OpenConsumer subscribes to the room's notify topic. queue may be nil for
// forward-only consumers.
func OpenConsumer(ctx context.Context, client transport.Client, room string, queue *Queue, forwarder Forwarder, logger *zap.Logger) (*Consumer, error) {
	sub, err := client.Subscribe(ctx, transport.NotifyTopic(room))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Consumer{room: room, sub: sub, queue: queue, forwarder: forwarder, logger: logger}
	go c.loop()
	return c, nil
}

// Close releases the subscription. Idempotent.
func (c *Consumer) Close() {
	c.closeOnce.Do(func() { c.sub.Unsubscribe() })
}

func (c *Consumer) loop() {
	for {
		select {
		case <-c.sub.Done():
			return
		case data := <-c.sub.Messages():
			req, ok := Decode(data)
			if !ok {
				c.logger.Debug("dropping malformed notify payload", zap.String("room", c.room))
				continue
			}
			if c.queue != nil {
				c.queue.Push(req)
			}
			if c.forwarder != nil {
				c.forwarder.Forward(c.room, req)
			}
		}
	}
}

// Sender is the student-side end of the notify topic. Submissions are
// fire-and-forget; there is no acknowledgment message in the protocol.
type Sender struct {
	sub       transport.Subscription
	closeOnce sync.Once
}

// OpenSender subscribes to the room's notify topic for broadcasting.
func OpenSender(ctx context.Context, client transport.Client, room string) (*Sender, error) {
	sub, err := client.Subscribe(ctx, transport.NotifyTopic(room))
	if err != nil {
		return nil, err
	}
	s := &Sender{sub: sub}
	// Students never consume this topic; drain inbound traffic so the
	// subscription buffer stays clear.
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case <-sub.Messages():
			}
		}
	}()
	return s, nil
}

// Submit broadcasts one unlock request. No-op after Close.
func (s *Sender) Submit(req UnlockRequest) {
	s.sub.Broadcast(Encode(req))
}

// Close releases the subscription. Idempotent.
func (s *Sender) Close() {
	s.closeOnce.Do(func() { s.sub.Unsubscribe() })
}
