package session

import (
	"context"
	"testing"
	"time"

	"github.com/slidecast/core/internal/modules/presence"
	"github.com/slidecast/core/internal/modules/slidesync"
	"github.com/slidecast/core/internal/transport"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func fastOpts() Options {
	return Options{
		HeartbeatPeriod: 30 * time.Millisecond,
		StaleGrace:      20 * time.Millisecond,
	}
}

func TestLessonFlow(t *testing.T) {
	b := transport.NewBroker(nil)
	ctx := context.Background()
	room := "lesson-42"

	teacher, err := OpenTeacher(ctx, b, room, fastOpts())
	if err != nil {
		t.Fatalf("OpenTeacher: %v", err)
	}
	defer teacher.Close()
	waitFor(t, "teacher connected", teacher.Connected)

	ada, err := OpenStudent(ctx, b, room, Identity{ID: "s1", DisplayName: "Ada"}, fastOpts())
	if err != nil {
		t.Fatalf("OpenStudent ada: %v", err)
	}
	defer ada.Close()

	zoe, err := OpenStudent(ctx, b, room, Identity{ID: "s2", DisplayName: "Zoe"}, fastOpts())
	if err != nil {
		t.Fatalf("OpenStudent zoe: %v", err)
	}
	defer zoe.Close()

	// Teacher sees both students arrive.
	waitFor(t, "two members", func() bool { return len(teacher.Members()) == 2 })

	// Navigation reaches every student.
	step := 0
	teacher.Goto(3, nil, &step)
	for _, s := range []*StudentSession{ada, zoe} {
		waitFor(t, "student to observe page 3", func() bool {
			last, ok := s.Last()
			return ok && last.Kind == slidesync.KindGoto && last.Page == 3
		})
	}

	// Both submit answers for the current step.
	ada.Submit(3, 0, "blue")
	zoe.Submit(3, 0, "red")
	waitFor(t, "two pending submissions", func() bool { return len(teacher.Pending()) == 2 })

	pending := teacher.Pending()
	if pending[0].StudentID != "s1" || pending[1].StudentID != "s2" {
		t.Fatalf("pending order = %+v", pending)
	}

	// Advancing clears the pile and moves everyone on.
	teacher.Advance(4, nil, nil)
	if got := len(teacher.Pending()); got != 0 {
		t.Fatalf("pending after advance = %d, want 0", got)
	}
	waitFor(t, "students on page 4", func() bool {
		last, ok := ada.Last()
		return ok && last.Page == 4
	})
}

func TestTeacherSeesTabAwayStudent(t *testing.T) {
	b := transport.NewBroker(nil)
	ctx := context.Background()
	room := "r1"

	teacher, err := OpenTeacher(ctx, b, room, fastOpts())
	if err != nil {
		t.Fatalf("OpenTeacher: %v", err)
	}
	defer teacher.Close()

	student, err := OpenStudent(ctx, b, room, Identity{ID: "s1"}, fastOpts())
	if err != nil {
		t.Fatalf("OpenStudent: %v", err)
	}
	defer student.Close()

	waitFor(t, "student visible", func() bool { return len(teacher.Members()) == 1 })
	if got := len(teacher.Disengaged()); got != 0 {
		t.Fatalf("disengaged = %d before blur, want 0", got)
	}

	student.SetFocused(false)
	waitFor(t, "student on disengaged list", func() bool {
		members := teacher.Disengaged()
		return len(members) == 1 && members[0].Status == presence.StatusTabAway
	})

	student.SetFocused(true)
	waitFor(t, "student re-engaged", func() bool { return len(teacher.Disengaged()) == 0 })
}

func TestStudentDisconnectRemovesPresence(t *testing.T) {
	b := transport.NewBroker(nil)
	ctx := context.Background()

	teacher, err := OpenTeacher(ctx, b, "r1", fastOpts())
	if err != nil {
		t.Fatalf("OpenTeacher: %v", err)
	}
	defer teacher.Close()

	student, err := OpenStudent(ctx, b, "r1", Identity{ID: "s1"}, fastOpts())
	if err != nil {
		t.Fatalf("OpenStudent: %v", err)
	}

	waitFor(t, "student visible", func() bool { return len(teacher.Members()) == 1 })
	student.Close()
	waitFor(t, "student gone", func() bool { return len(teacher.Members()) == 0 })
}

func TestAnonymousStudentsShareIdentity(t *testing.T) {
	b := transport.NewBroker(nil)
	ctx := context.Background()

	teacher, err := OpenTeacher(ctx, b, "r1", fastOpts())
	if err != nil {
		t.Fatalf("OpenTeacher: %v", err)
	}
	defer teacher.Close()

	s1, err := OpenStudent(ctx, b, "r1", Identity{}, fastOpts())
	if err != nil {
		t.Fatalf("OpenStudent: %v", err)
	}
	defer s1.Close()
	s2, err := OpenStudent(ctx, b, "r1", Identity{}, fastOpts())
	if err != nil {
		t.Fatalf("OpenStudent: %v", err)
	}
	defer s2.Close()

	waitFor(t, "one logical member", func() bool {
		members := teacher.Members()
		return len(members) == 1 && members[0].Identity == "student"
	})
}

func TestCloseIdempotent(t *testing.T) {
	b := transport.NewBroker(nil)
	ctx := context.Background()

	teacher, err := OpenTeacher(ctx, b, "r1", Options{})
	if err != nil {
		t.Fatalf("OpenTeacher: %v", err)
	}
	student, err := OpenStudent(ctx, b, "r1", Identity{ID: "s1"}, Options{})
	if err != nil {
		t.Fatalf("OpenStudent: %v", err)
	}

	teacher.Close()
	teacher.Close()
	student.Close()
	student.Close()

	if got := b.SubscriberCount(transport.SyncTopic("r1")); got != 0 {
		t.Fatalf("sync subscribers after close = %d", got)
	}
	if got := b.SubscriberCount(transport.PresenceTopic("r1")); got != 0 {
		t.Fatalf("presence subscribers after close = %d", got)
	}
	if got := b.SubscriberCount(transport.NotifyTopic("r1")); got != 0 {
		t.Fatalf("notify subscribers after close = %d", got)
	}
}

func TestGotoWithoutClearKeepsPending(t *testing.T) {
	b := transport.NewBroker(nil)
	ctx := context.Background()

	teacher, err := OpenTeacher(ctx, b, "r1", fastOpts())
	if err != nil {
		t.Fatalf("OpenTeacher: %v", err)
	}
	defer teacher.Close()
	waitFor(t, "teacher connected", teacher.Connected)

	student, err := OpenStudent(ctx, b, "r1", Identity{ID: "s1"}, fastOpts())
	if err != nil {
		t.Fatalf("OpenStudent: %v", err)
	}
	defer student.Close()

	student.Submit(1, 0, "answer")
	waitFor(t, "submission pending", func() bool { return len(teacher.Pending()) == 1 })

	teacher.Goto(2, nil, nil)
	time.Sleep(30 * time.Millisecond)
	if got := len(teacher.Pending()); got != 1 {
		t.Fatalf("pending after plain goto = %d, want 1", got)
	}
}
