package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Auth        AuthConfig        `toml:"auth"`
	Database    DatabaseConfig    `toml:"database"`
	Queue       QueueConfig       `toml:"queue"`
	Storage     StorageConfig     `toml:"storage"`
	NLP         NLPConfig         `toml:"nlp"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Logging     LoggingConfig     `toml:"logging"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// AuthConfig controls bearer-token verification. When Disabled is true a
// deterministic synthetic subject is injected and no verification occurs.
type AuthConfig struct {
	Disabled      bool   `toml:"disabled"`
	Domain        string `toml:"domain"`
	Audience      string `toml:"audience"`
	IssuerBaseURL string `toml:"issuer_base_url"`
	HS256Secret   string `toml:"hs256_secret"`
	DevSubject    string `toml:"dev_subject"` // subject used when auth is disabled
}

type DatabaseConfig struct {
	Server           string `toml:"server"`
	Database         string `toml:"database"`
	User             string `toml:"user"`
	Password         string `toml:"password"`
	ConnectTimeoutMS int    `toml:"connect_timeout_ms"`
	RequestTimeoutMS int    `toml:"request_timeout_ms"`
	PoolMax          int    `toml:"pool_max"`
	RetryAttempts    int    `toml:"retry_attempts"`
	RetryBackoffMS   int    `toml:"retry_backoff_ms"`
}

func (d DatabaseConfig) ConnectTimeout() time.Duration {
	return time.Duration(d.ConnectTimeoutMS) * time.Millisecond
}

func (d DatabaseConfig) RequestTimeout() time.Duration {
	return time.Duration(d.RequestTimeoutMS) * time.Millisecond
}

func (d DatabaseConfig) RetryBackoff() time.Duration {
	return time.Duration(d.RetryBackoffMS) * time.Millisecond
}

type QueueConfig struct {
	DataDir           string `toml:"data_dir"`           // Badger directory backing the broker
	PollInterval      string `toml:"poll_interval"`      // e.g. "1s" - how often workers poll for messages
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - message visibility timeout for redelivery
	MaxReceive        int    `toml:"max_receive"`        // Max times a message can be received before it is dropped
	ParseConcurrency  int    `toml:"parse_concurrency"`  // Workers per parse queue
	MatchConcurrency  int    `toml:"match_concurrency"`  // Workers on the match queue
}

// StorageConfig holds the R2 (S3-compatible) object storage settings
type StorageConfig struct {
	AccountID string `toml:"account_id"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Endpoint  string `toml:"endpoint"`
}

type NLPConfig struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout string `toml:"request_timeout"` // e.g. "60s"
}

type WebSocketConfig struct {
	ThrottleIntervals map[string]string `toml:"throttle_intervals"` // event type -> min interval, e.g. "500ms"
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type MaintenanceConfig struct {
	Schedule              string `toml:"schedule"`                // cron schedule for GC + reaper
	StaleThresholdMinutes int    `toml:"stale_threshold_minutes"` // rows stuck in transient states
}

// DefaultConfig returns the built-in defaults applied before file and env overlays
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 4000,
			Host: "0.0.0.0",
		},
		Auth: AuthConfig{
			Disabled:   false,
			DevSubject: "dev|user",
		},
		Database: DatabaseConfig{
			Server:           "localhost",
			Database:         "skillmatch",
			User:             "skillmatch",
			ConnectTimeoutMS: 30000,
			RequestTimeoutMS: 60000,
			PoolMax:          10,
			RetryAttempts:    5,
			RetryBackoffMS:   3000,
		},
		Queue: QueueConfig{
			DataDir:           "./data/queue",
			PollInterval:      "1s",
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			ParseConcurrency:  1,
			MatchConcurrency:  2,
		},
		NLP: NLPConfig{
			BaseURL:        "http://localhost:8000",
			RequestTimeout: "60s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Maintenance: MaintenanceConfig{
			Schedule:              "*/10 * * * *",
			StaleThresholdMinutes: 30,
		},
	}
}

// LoadFromFile loads configuration from a TOML file over the defaults,
// then applies environment variable overrides. A missing path is not an
// error; defaults plus env apply.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies the recognized environment variables on top of
// file values. Names follow the deployment contract, not a prefix scheme.
func applyEnvOverrides(cfg *Config) {
	if env := os.Getenv("GO_ENV"); env != "" {
		cfg.Environment = env
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("AUTH_DISABLED"); v != "" {
		cfg.Auth.Disabled = parseBool(v)
	}
	if v := os.Getenv("AUTH0_DOMAIN"); v != "" {
		cfg.Auth.Domain = v
	}
	if v := os.Getenv("AUTH0_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}
	if v := os.Getenv("AUTH0_ISSUER_BASE_URL"); v != "" {
		cfg.Auth.IssuerBaseURL = v
	}
	if v := os.Getenv("AUTH_HS256_SECRET"); v != "" {
		cfg.Auth.HS256Secret = v
	}

	if v := os.Getenv("SQL_SERVER"); v != "" {
		cfg.Database.Server = v
	}
	if v := os.Getenv("SQL_DATABASE"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("SQL_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SQL_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SQL_CONNECT_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.ConnectTimeoutMS = n
		}
	}
	if v := os.Getenv("SQL_REQUEST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.RequestTimeoutMS = n
		}
	}
	if v := os.Getenv("SQL_POOL_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.PoolMax = n
		}
	}
	if v := os.Getenv("SQL_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.RetryAttempts = n
		}
	}
	if v := os.Getenv("SQL_RETRY_BACKOFF_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.RetryBackoffMS = n
		}
	}

	if v := os.Getenv("QUEUE_DATA_DIR"); v != "" {
		cfg.Queue.DataDir = v
	}
	if v := os.Getenv("QUEUE_POLL_INTERVAL"); v != "" {
		cfg.Queue.PollInterval = v
	}
	if v := os.Getenv("QUEUE_VISIBILITY_TIMEOUT"); v != "" {
		cfg.Queue.VisibilityTimeout = v
	}
	if v := os.Getenv("QUEUE_MAX_RECEIVE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.MaxReceive = n
		}
	}
	if v := os.Getenv("QUEUE_PARSE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.ParseConcurrency = n
		}
	}
	if v := os.Getenv("QUEUE_MATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.MatchConcurrency = n
		}
	}

	if v := os.Getenv("PYTHON_SERVICE_URL"); v != "" {
		cfg.NLP.BaseURL = v
	}

	if v := os.Getenv("R2_ACCOUNT_ID"); v != "" {
		cfg.Storage.AccountID = v
	}
	if v := os.Getenv("R2_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("R2_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("R2_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("R2_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(cfg *Config, port int, host string) {
	if port != 0 {
		cfg.Server.Port = port
	}
	if host != "" {
		cfg.Server.Host = host
	}
}

// ParseDurationOr parses a duration string, falling back to def on empty or
// invalid input.
func ParseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return s == "1" || s == "yes" || s == "on"
	}
	return b
}
