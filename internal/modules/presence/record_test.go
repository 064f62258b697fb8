package presence

import (
	"testing"
	"time"
)

func TestDecodeRecordValidation(t *testing.T) {
	cases := []struct {
		name string
		data string
		ok   bool
	}{
		{"valid student", `{"identity":"s1","role":"student","focused":true,"timestamp":1000}`, true},
		{"valid teacher", `{"identity":"t","role":"teacher","focused":false,"timestamp":5}`, true},
		{"missing identity", `{"role":"student","timestamp":1000}`, false},
		{"unknown role", `{"identity":"s1","role":"observer","timestamp":1000}`, false},
		{"zero timestamp", `{"identity":"s1","role":"student","timestamp":0}`, false},
		{"negative timestamp", `{"identity":"s1","role":"student","timestamp":-4}`, false},
		{"not json", `oops`, false},
	}
	for _, tc := range cases {
		if _, ok := DecodeRecord([]byte(tc.data)); ok != tc.ok {
			t.Errorf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
		}
	}
}

func TestReduceLatestWins(t *testing.T) {
	reduced := Reduce([]Record{
		{Identity: "s1", Timestamp: 100, Focused: false},
		{Identity: "s1", Timestamp: 300, Focused: true},
		{Identity: "s1", Timestamp: 200, Focused: false},
		{Identity: "s2", Timestamp: 50},
	})
	if len(reduced) != 2 {
		t.Fatalf("reduced to %d identities, want 2", len(reduced))
	}
	if got := reduced["s1"]; got.Timestamp != 300 || !got.Focused {
		t.Fatalf("s1 = %+v, want the timestamp-300 record", got)
	}
}

func TestReduceTimestampTieKeepsFirst(t *testing.T) {
	reduced := Reduce([]Record{
		{Identity: "s1", Timestamp: 100, DisplayName: "first"},
		{Identity: "s1", Timestamp: 100, DisplayName: "second"},
	})
	if got := reduced["s1"].DisplayName; got != "first" {
		t.Fatalf("tie kept %q, want first", got)
	}
}

func TestClassify(t *testing.T) {
	now := time.Now()
	heartbeat := 10 * time.Second
	grace := 6 * time.Second

	fresh := now.Add(-2 * time.Second).UnixMilli()
	edge := now.Add(-15 * time.Second).UnixMilli()
	stale := now.Add(-17 * time.Second).UnixMilli()

	if got := Classify(Record{Focused: true, Timestamp: fresh}, now, heartbeat, grace); got != StatusActive {
		t.Errorf("fresh focused = %v, want active", got)
	}
	if got := Classify(Record{Focused: false, Timestamp: fresh}, now, heartbeat, grace); got != StatusTabAway {
		t.Errorf("fresh unfocused = %v, want tab-away", got)
	}
	if got := Classify(Record{Focused: true, Timestamp: edge}, now, heartbeat, grace); got != StatusActive {
		t.Errorf("within cutoff = %v, want active", got)
	}
	if got := Classify(Record{Focused: true, Timestamp: stale}, now, heartbeat, grace); got != StatusOffline {
		t.Errorf("past cutoff = %v, want offline", got)
	}
	// Staleness beats focus.
	if got := Classify(Record{Focused: false, Timestamp: stale}, now, heartbeat, grace); got != StatusOffline {
		t.Errorf("stale unfocused = %v, want offline", got)
	}
}

func TestDisengagedSupersetOfOffline(t *testing.T) {
	now := time.Now()
	heartbeat := 10 * time.Second
	grace := 6 * time.Second

	cases := []Record{
		{Focused: false, Timestamp: now.UnixMilli()},                       // tab-away
		{Focused: true, Timestamp: now.Add(-17 * time.Second).UnixMilli()}, // offline
		{Focused: true, Timestamp: now.Add(-20 * time.Second).UnixMilli()},
	}
	for i, rec := range cases {
		if !Disengaged(rec, now, heartbeat, grace) {
			t.Errorf("case %d: not disengaged", i)
		}
	}
	// Every offline record must be disengaged.
	stale := Record{Focused: true, Timestamp: now.Add(-30 * time.Second).UnixMilli()}
	if Classify(stale, now, heartbeat, grace) == StatusOffline && !Disengaged(stale, now, heartbeat, grace) {
		t.Error("offline record escaped the disengaged set")
	}

	engaged := Record{Focused: true, Timestamp: now.Add(-time.Second).UnixMilli()}
	if Disengaged(engaged, now, heartbeat, grace) {
		t.Error("fresh focused record marked disengaged")
	}
}

func TestStatusString(t *testing.T) {
	if StatusActive.String() != "active" || StatusTabAway.String() != "tab-away" || StatusOffline.String() != "offline-disconnected" {
		t.Error("status labels changed")
	}
}

func TestRecordLabel(t *testing.T) {
	if got := (Record{Identity: "s1", DisplayName: "Ada"}).Label(); got != "Ada" {
		t.Errorf("Label = %q, want display name", got)
	}
	if got := (Record{Identity: "s1"}).Label(); got != "s1" {
		t.Errorf("Label = %q, want identity fallback", got)
	}
}
