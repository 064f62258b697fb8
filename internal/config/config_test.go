package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if !cfg.IsDev() {
		t.Error("default env should be development")
	}
	if cfg.Live.HeartbeatSeconds != 10 || cfg.Live.StaleGraceSeconds != 6 {
		t.Errorf("live defaults = %+v", cfg.Live)
	}
	if cfg.Seed.Username != "teacher" {
		t.Errorf("seed username = %q", cfg.Seed.Username)
	}
	if cfg.DSN == "" {
		t.Error("DSN should be assembled from database defaults")
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
port: 8080
env: production
dsn: "user:pw@tcp(db:3306)/slidecast"
redis_url: "redis://localhost:6379/0"
jwt_secret: "abc"
allowed_origins:
  - "slides.example.com"
  - "*.example.org"
seed:
  username: prof
  password: s3cret
live:
  heartbeat_seconds: 5
  stale_grace_seconds: 3
grading:
  url: "https://grade.example.com/hook"
  secret: "hmac-key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.Env != "production" || cfg.IsDev() {
		t.Errorf("port/env = %d/%q", cfg.Port, cfg.Env)
	}
	if cfg.DSN != "user:pw@tcp(db:3306)/slidecast" {
		t.Errorf("DSN = %q", cfg.DSN)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.Seed.Username != "prof" || cfg.Seed.Password != "s3cret" {
		t.Errorf("seed = %+v", cfg.Seed)
	}
	if cfg.HeartbeatPeriod() != 5*time.Second || cfg.StaleGrace() != 3*time.Second {
		t.Errorf("durations = %v/%v", cfg.HeartbeatPeriod(), cfg.StaleGrace())
	}
	if cfg.Grading.URL == "" || cfg.Grading.Secret != "hmac-key" {
		t.Errorf("grading = %+v", cfg.Grading)
	}
}

func TestLoadRejectsUnknownEnv(t *testing.T) {
	path := writeConfig(t, "env: staging\n")
	if _, err := Load(path); err == nil {
		t.Fatal("staging env should be rejected")
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := writeConfig(t, "port: [not a number\n")
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml should be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9001")
	t.Setenv("SLIDECAST_ENV", "production")
	t.Setenv("DSN", "env:dsn@tcp(h:3306)/db")
	t.Setenv("GRADING_URL", "https://env.example.com")

	path := writeConfig(t, "port: 8080\nenv: development\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9001 {
		t.Errorf("PORT override ignored: %d", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("SLIDECAST_ENV override ignored: %q", cfg.Env)
	}
	if cfg.DSN != "env:dsn@tcp(h:3306)/db" {
		t.Errorf("DSN override ignored: %q", cfg.DSN)
	}
	if cfg.Grading.URL != "https://env.example.com" {
		t.Errorf("GRADING_URL override ignored: %q", cfg.Grading.URL)
	}
}
