package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort       = 4000
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "slidecast"
	defaultDBCharset  = "utf8mb4"
	defaultRedisURL   = ""

	defaultHeartbeatSeconds  = 10
	defaultStaleGraceSeconds = 6
)

// Load reads the YAML config at path, applies defaults and environment
// overrides, and normalizes it. A missing file is not an error; defaults
// plus environment are used.
func Load(path string) (*AppConfig, error) {
	raw := rawAppConfig{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// config file is optional
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnvOverrides(&raw)
	return normalize(&raw)
}

func applyEnvOverrides(raw *rawAppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			raw.Port = p
		}
	}
	if v := os.Getenv("DSN"); v != "" {
		raw.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		raw.RedisURL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		raw.JWTSecret = v
	}
	if v := os.Getenv("SLIDECAST_ENV"); v != "" {
		raw.Env = v
	}
	if v := os.Getenv("GRADING_URL"); v != "" {
		raw.Grading.URL = v
	}
	if v := os.Getenv("GRADING_SECRET"); v != "" {
		raw.Grading.Secret = v
	}
}

func normalize(raw *rawAppConfig) (*AppConfig, error) {
	cfg := &AppConfig{
		Port:           raw.Port,
		Env:            strings.TrimSpace(raw.Env),
		DSN:            strings.TrimSpace(raw.DSN),
		RedisURL:       strings.TrimSpace(raw.RedisURL),
		JWTSecret:      strings.TrimSpace(raw.JWTSecret),
		AllowedOrigins: raw.AllowedOrigins,
		Seed: SeedConfig{
			Username: strings.TrimSpace(raw.Seed.Username),
			Password: raw.Seed.Password,
		},
		Live: LiveConfig{
			HeartbeatSeconds:  raw.Live.HeartbeatSeconds,
			StaleGraceSeconds: raw.Live.StaleGraceSeconds,
		},
		Grading: GradingConfig{
			URL:    strings.TrimSpace(raw.Grading.URL),
			Secret: raw.Grading.Secret,
		},
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if cfg.Env != "development" && cfg.Env != "production" {
		return nil, fmt.Errorf("invalid env %q: expect development or production", cfg.Env)
	}
	if cfg.DSN == "" {
		cfg.DSN = buildDSN(raw)
	}
	if cfg.Live.HeartbeatSeconds <= 0 {
		cfg.Live.HeartbeatSeconds = defaultHeartbeatSeconds
	}
	if cfg.Live.StaleGraceSeconds <= 0 {
		cfg.Live.StaleGraceSeconds = defaultStaleGraceSeconds
	}
	if cfg.Seed.Username == "" {
		cfg.Seed.Username = "teacher"
	}
	return cfg, nil
}

func buildDSN(raw *rawAppConfig) string {
	host := firstNonEmpty(raw.Database.Host, defaultDBHost)
	port := raw.Database.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := firstNonEmpty(raw.Database.User, defaultDBUser)
	password := firstNonEmpty(raw.Database.Password, defaultDBPassword)
	name := firstNonEmpty(raw.Database.Name, defaultDBName)
	charset := firstNonEmpty(raw.Database.Charset, defaultDBCharset)
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		user, password, host, port, name, charset)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// IsDev reports whether the app runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == "development" }

// HeartbeatPeriod returns the presence heartbeat interval.
func (c *AppConfig) HeartbeatPeriod() time.Duration {
	return time.Duration(c.Live.HeartbeatSeconds) * time.Second
}

// StaleGrace returns the grace window past the heartbeat period before a
// presence record counts as offline.
func (c *AppConfig) StaleGrace() time.Duration {
	return time.Duration(c.Live.StaleGraceSeconds) * time.Second
}
