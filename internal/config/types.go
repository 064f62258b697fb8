package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int
	Env            string // "development" | "production"
	DSN            string // MySQL DSN
	RedisURL       string // empty disables cross-instance fan-out
	JWTSecret      string
	AllowedOrigins []string
	Seed           SeedConfig
	Live           LiveConfig
	Grading        GradingConfig
}

// SeedConfig describes the presenter account created on first start.
type SeedConfig struct {
	Username string
	Password string
}

// LiveConfig tunes the presence subsystem.
type LiveConfig struct {
	HeartbeatSeconds  int
	StaleGraceSeconds int
}

// GradingConfig points at the external grading service. An empty URL
// disables forwarding.
type GradingConfig struct {
	URL    string
	Secret string
}

type rawAppConfig struct {
	Port           int               `yaml:"port"`
	Env            string            `yaml:"env"`
	DSN            string            `yaml:"dsn"`
	Database       rawDatabaseConfig `yaml:"database"`
	RedisURL       string            `yaml:"redis_url"`
	JWTSecret      string            `yaml:"jwt_secret"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	Seed           rawSeedConfig     `yaml:"seed"`
	Live           rawLiveConfig     `yaml:"live"`
	Grading        rawGradingConfig  `yaml:"grading"`
}

type rawDatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
}

type rawSeedConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type rawLiveConfig struct {
	HeartbeatSeconds  int `yaml:"heartbeat_seconds"`
	StaleGraceSeconds int `yaml:"stale_grace_seconds"`
}

type rawGradingConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}
