// Package slidesync implements the navigation protocol of a room: the
// teacher broadcasts goto and refresh commands on the room's sync topic,
// students consume them read-only and announce themselves with a hello on
// join.
package slidesync

import (
	"encoding/json"
	"strings"
)

// Kind tags a decoded sync message.
type Kind string

const (
	KindHello   Kind = "hello"
	KindGoto    Kind = "goto"
	KindRefresh Kind = "refresh"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

const (
	ScopeManifest = "manifest"
	ScopeOverlays = "overlays"
)

// Message is one decoded sync broadcast. Kind selects which of the other
// fields are meaningful: Role for hello, Page/Slot/Step for goto, Scope for
// refresh. Slot and Step are nil when the sender omitted them.
type Message struct {
	Kind  Kind
	Role  string
	Page  int
	Slot  *int
	Step  *int
	Scope string
}

type wireMessage struct {
	Type  string `json:"type"`
	Role  string `json:"role,omitempty"`
	Page  *int   `json:"page,omitempty"`
	Slot  *int   `json:"slot,omitempty"`
	Step  *int   `json:"step,omitempty"`
	Scope string `json:"scope,omitempty"`
}

// Decode parses a sync broadcast and applies the per-variant shape
// predicate. The second return is false for anything malformed; callers
// drop such payloads silently.
func Decode(data []byte) (Message, bool) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, false
	}

	switch strings.TrimSpace(w.Type) {
	case string(KindHello):
		if w.Role != RoleTeacher && w.Role != RoleStudent {
			return Message{}, false
		}
		return Message{Kind: KindHello, Role: w.Role}, true

	case string(KindGoto):
		if w.Page == nil {
			return Message{}, false
		}
		return Message{Kind: KindGoto, Page: *w.Page, Slot: w.Slot, Step: w.Step}, true

	case string(KindRefresh):
		if w.Scope != ScopeManifest && w.Scope != ScopeOverlays {
			return Message{}, false
		}
		return Message{Kind: KindRefresh, Scope: w.Scope}, true
	}
	return Message{}, false
}

// EncodeHello builds the join announcement for a role.
func EncodeHello(role string) []byte {
	data, _ := json.Marshal(wireMessage{Type: string(KindHello), Role: role})
	return data
}

// EncodeGoto builds a navigation command. Slot and Step may be nil.
func EncodeGoto(page int, slot, step *int) []byte {
	data, _ := json.Marshal(wireMessage{Type: string(KindGoto), Page: &page, Slot: slot, Step: step})
	return data
}

// EncodeRefresh builds a cache-invalidation pulse for the given scope.
func EncodeRefresh(scope string) []byte {
	data, _ := json.Marshal(wireMessage{Type: string(KindRefresh), Scope: scope})
	return data
}
