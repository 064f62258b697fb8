package gateway

import "testing"

func TestParseInboundLiveMessage(t *testing.T) {
	cases := []struct {
		name string
		arg  any
		ok   bool
		typ  string
	}{
		{"map", map[string]interface{}{"type": "join", "payload": map[string]interface{}{"room": "r1"}}, true, "join"},
		{"json string", `{"type":"publish","payload":{"topic":"sync"}}`, true, "publish"},
		{"json bytes", []byte(`{"type":"leave"}`), true, "leave"},
		{"missing type", map[string]interface{}{"payload": map[string]interface{}{}}, false, ""},
		{"whitespace type", map[string]interface{}{"type": "   "}, false, ""},
		{"bad json string", "{nope", false, ""},
		{"nil", nil, false, ""},
	}
	for _, tc := range cases {
		msg, ok := parseInboundLiveMessage(tc.arg)
		if ok != tc.ok {
			t.Errorf("%s: ok = %v, want %v", tc.name, ok, tc.ok)
			continue
		}
		if ok && msg.Type != tc.typ {
			t.Errorf("%s: type = %q, want %q", tc.name, msg.Type, tc.typ)
		}
		if ok && msg.Payload == nil {
			t.Errorf("%s: payload not defaulted", tc.name)
		}
	}
}

func TestParseInboundNoArgs(t *testing.T) {
	if _, ok := parseInboundLiveMessage(); ok {
		t.Fatal("no args should not parse")
	}
}

func TestFirstValueFromMultiMap(t *testing.T) {
	values := map[string][]string{
		"Authorization": {" Bearer abc "},
		"empty":         {},
	}
	if got := firstValueFromMultiMap(values, "authorization"); got != "Bearer abc" {
		t.Errorf("got %q", got)
	}
	if got := firstValueFromMultiMap(values, "missing"); got != "" {
		t.Errorf("missing key = %q", got)
	}
	if got := firstValueFromMultiMap(nil, "x"); got != "" {
		t.Errorf("nil map = %q", got)
	}
}

func TestValidRole(t *testing.T) {
	if !validRole("teacher") || !validRole("student") {
		t.Error("known roles rejected")
	}
	if validRole("admin") || validRole("") {
		t.Error("unknown roles accepted")
	}
}
