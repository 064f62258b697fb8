// Package presence folds the transport's raw per-connection record set into
// one logical record per identity and derives engagement classification
// from record age. Liveness is inferred entirely from heartbeat staleness;
// a missed heartbeat is data, never an error.
package presence

import (
	"encoding/json"
	"time"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

const (
	// DefaultHeartbeatPeriod is how often students re-announce.
	DefaultHeartbeatPeriod = 10 * time.Second
	// DefaultStaleGrace is slack past the heartbeat period before a record
	// counts as offline.
	DefaultStaleGrace = 6 * time.Second
	// disengageGrace is the looser age threshold feeding the teacher's
	// disengaged list.
	disengageGrace = 6 * time.Second
)

// Record is one participant's announced liveness state. Identity is a
// student id when known, else the role literal; several connections may
// legitimately share it (tab duplication, reconnect races).
type Record struct {
	Identity    string `json:"identity"`
	Role        string `json:"role"`
	Focused     bool   `json:"focused"`
	Timestamp   int64  `json:"timestamp"` // producer wall clock, unix ms
	DisplayName string `json:"displayName,omitempty"`
}

// Label is the string members are sorted by for stable rendering.
func (r Record) Label() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Identity
}

// DecodeRecord parses an announced record, rejecting anything without an
// identity, a known role, or a positive timestamp.
func DecodeRecord(data []byte) (Record, bool) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, false
	}
	if r.Identity == "" || r.Timestamp <= 0 {
		return Record{}, false
	}
	if r.Role != RoleTeacher && r.Role != RoleStudent {
		return Record{}, false
	}
	return r, true
}

// Encode serializes a record for announcing.
func (r Record) Encode() []byte {
	data, _ := json.Marshal(r)
	return data
}

// Status is the three-way display classification of a logical record.
type Status int

const (
	StatusActive  Status = iota // focused, fresh
	StatusTabAway               // unfocused, fresh
	StatusOffline               // stale past the offline cutoff
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusTabAway:
		return "tab-away"
	default:
		return "offline-disconnected"
	}
}

// Member is a logical record with its derived status.
type Member struct {
	Record
	Status Status `json:"status"`
}

// Reduce collapses raw records to one logical record per identity, keeping
// the greatest timestamp. Ties keep whichever record came first; duplicate
// timestamps are not expected in practice.
func Reduce(raws []Record) map[string]Record {
	out := make(map[string]Record, len(raws))
	for _, r := range raws {
		if prev, ok := out[r.Identity]; ok && prev.Timestamp >= r.Timestamp {
			continue
		}
		out[r.Identity] = r
	}
	return out
}

// Classify derives the display status of a logical record at now.
func Classify(rec Record, now time.Time, heartbeat, staleGrace time.Duration) Status {
	age := now.Sub(time.UnixMilli(rec.Timestamp))
	if age > heartbeat+staleGrace {
		return StatusOffline
	}
	if !rec.Focused {
		return StatusTabAway
	}
	return StatusActive
}

// Disengaged reports whether a logical record belongs on the teacher's
// disengaged list: not focused, or stale past the looser threshold. The
// result is a superset of offline.
func Disengaged(rec Record, now time.Time, heartbeat, staleGrace time.Duration) bool {
	if !rec.Focused {
		return true
	}
	age := now.Sub(time.UnixMilli(rec.Timestamp))
	return age > heartbeat+disengageGrace || age > heartbeat+staleGrace
}
