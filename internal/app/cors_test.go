package app

import "testing"

func TestOriginHost(t *testing.T) {
	cases := map[string]string{
		"https://slides.example.com":      "slides.example.com",
		"http://localhost:3000":           "localhost:3000",
		"slides.example.com":              "slides.example.com",
		"https://sub.example.org/path?q=": "sub.example.org",
	}
	for origin, want := range cases {
		if got := originHost(origin); got != want {
			t.Errorf("originHost(%q) = %q, want %q", origin, got, want)
		}
	}
}

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		pattern, host string
		want          bool
	}{
		{"slides.example.com", "slides.example.com", true},
		{"slides.example.com", "evil.example.com", false},
		{"*.example.com", "slides.example.com", true},
		{"*.example.com", "example.org", false},
		{"localhost:*", "localhost:3000", true},
		{"localhost:*", "remotehost:3000", false},
	}
	for _, tc := range cases {
		if got := originAllowed(tc.pattern, tc.host); got != tc.want {
			t.Errorf("originAllowed(%q, %q) = %v, want %v", tc.pattern, tc.host, got, tc.want)
		}
	}
}
