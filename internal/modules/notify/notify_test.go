package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/slidecast/core/internal/transport"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDecodeValidation(t *testing.T) {
	cases := []struct {
		name string
		data string
		ok   bool
	}{
		{"valid", `{"type":"unlock_request","slide":3,"step":1,"answer":"42"}`, true},
		{"empty answer allowed", `{"type":"unlock_request","slide":0,"step":0,"answer":""}`, true},
		{"missing slide", `{"type":"unlock_request","step":1,"answer":"x"}`, false},
		{"missing step", `{"type":"unlock_request","slide":1,"answer":"x"}`, false},
		{"missing answer", `{"type":"unlock_request","slide":1,"step":1}`, false},
		{"wrong type", `{"type":"lock_request","slide":1,"step":1,"answer":"x"}`, false},
		{"not json", `hello`, false},
	}
	for _, tc := range cases {
		if _, ok := Decode([]byte(tc.data)); ok != tc.ok {
			t.Errorf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req, ok := Decode(Encode(UnlockRequest{Slide: 2, Step: 5, Answer: "pi", StudentID: "s9"}))
	if !ok {
		t.Fatal("round trip rejected")
	}
	if req.Slide != 2 || req.Step != 5 || req.Answer != "pi" || req.StudentID != "s9" {
		t.Fatalf("got %+v", req)
	}
}

func TestQueueFIFOAndClear(t *testing.T) {
	q := NewQueue()
	q.Push(UnlockRequest{Slide: 1, Answer: "a"})
	q.Push(UnlockRequest{Slide: 2, Answer: "b"})
	q.Push(UnlockRequest{Slide: 3, Answer: "c"})

	pending := q.Pending()
	if len(pending) != 3 || pending[0].Answer != "a" || pending[2].Answer != "c" {
		t.Fatalf("pending = %+v", pending)
	}

	// The copy must not alias internal state.
	pending[0].Answer = "mutated"
	if q.Pending()[0].Answer != "a" {
		t.Fatal("Pending returned aliased storage")
	}

	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("Len after Clear = %d", q.Len())
	}
	if len(q.Pending()) != 0 {
		t.Fatal("Pending after Clear not empty")
	}
}

type recordingForwarder struct {
	mu   sync.Mutex
	got  []UnlockRequest
	room string
}

func (f *recordingForwarder) Forward(room string, req UnlockRequest) {
	f.mu.Lock()
	f.room = room
	f.got = append(f.got, req)
	f.mu.Unlock()
}

func (f *recordingForwarder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestConsumerQueuesAndForwards(t *testing.T) {
	b := transport.NewBroker(nil)
	q := NewQueue()
	fwd := &recordingForwarder{}

	cons, err := OpenConsumer(context.Background(), b, "r1", q, fwd, nil)
	if err != nil {
		t.Fatalf("OpenConsumer: %v", err)
	}
	defer cons.Close()

	sender, err := OpenSender(context.Background(), b, "r1")
	if err != nil {
		t.Fatalf("OpenSender: %v", err)
	}
	defer sender.Close()

	sender.Submit(UnlockRequest{Slide: 1, Step: 0, Answer: "first", StudentID: "s1"})
	sender.Submit(UnlockRequest{Slide: 1, Step: 0, Answer: "second", StudentID: "s2"})

	waitFor(t, "both submissions queued", func() bool { return q.Len() == 2 })

	pending := q.Pending()
	if pending[0].Answer != "first" || pending[1].Answer != "second" {
		t.Fatalf("order = %+v", pending)
	}
	waitFor(t, "forwarder to see both", func() bool { return fwd.count() == 2 })
	fwd.mu.Lock()
	if fwd.room != "r1" {
		t.Errorf("forwarded room = %q", fwd.room)
	}
	fwd.mu.Unlock()
}

func TestConsumerDropsMalformed(t *testing.T) {
	b := transport.NewBroker(nil)
	q := NewQueue()

	cons, err := OpenConsumer(context.Background(), b, "r1", q, nil, nil)
	if err != nil {
		t.Fatalf("OpenConsumer: %v", err)
	}
	defer cons.Close()

	raw, _ := b.Subscribe(context.Background(), transport.NotifyTopic("r1"))
	defer raw.Unsubscribe()
	raw.Broadcast([]byte(`{"type":"unlock_request"}`))
	raw.Broadcast([]byte(`garbage`))
	raw.Broadcast(Encode(UnlockRequest{Slide: 4, Step: 1, Answer: "ok"}))

	waitFor(t, "valid submission queued", func() bool { return q.Len() == 1 })
	if got := q.Pending()[0]; got.Slide != 4 || got.Answer != "ok" {
		t.Fatalf("queued = %+v", got)
	}
}

func TestConsumerNilQueueForwardOnly(t *testing.T) {
	b := transport.NewBroker(nil)
	fwd := &recordingForwarder{}

	cons, err := OpenConsumer(context.Background(), b, "r1", nil, fwd, nil)
	if err != nil {
		t.Fatalf("OpenConsumer: %v", err)
	}
	defer cons.Close()

	sender, _ := OpenSender(context.Background(), b, "r1")
	defer sender.Close()
	sender.Submit(UnlockRequest{Slide: 1, Step: 1, Answer: "x"})

	waitFor(t, "forward without queue", func() bool { return fwd.count() == 1 })
}

func TestSenderCloseIdempotent(t *testing.T) {
	b := transport.NewBroker(nil)
	sender, _ := OpenSender(context.Background(), b, "r1")
	sender.Close()
	sender.Close()

	cons, _ := OpenConsumer(context.Background(), b, "r1", NewQueue(), nil, nil)
	cons.Close()
	cons.Close()
}

func TestSubmissionWhileNoConsumerIsLost(t *testing.T) {
	b := transport.NewBroker(nil)
	sender, _ := OpenSender(context.Background(), b, "r1")
	defer sender.Close()

	sender.Submit(UnlockRequest{Slide: 1, Step: 1, Answer: "lost"})

	q := NewQueue()
	cons, _ := OpenConsumer(context.Background(), b, "r1", q, nil, nil)
	defer cons.Close()

	time.Sleep(50 * time.Millisecond)
	if q.Len() != 0 {
		t.Fatalf("late consumer saw %d submissions, want 0", q.Len())
	}
}
