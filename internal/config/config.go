package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable pointing to an optional YAML config file.
const ConfigFileEnv = "SHELF_CONFIG_FILE"

// MinPollInterval is the shortest accepted polling interval for the bookmark list.
const MinPollInterval = time.Second

type Config struct {
	ListenPort      string        `yaml:"listen_port" env:"SHELF_LISTEN_PORT" validate:"required"`       // ex: ":8080"
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHELF_SHUTDOWN_TIMEOUT" validate:"gt=0"` // ex: 5s

	LogLevel  string `yaml:"log_level" env:"SHELF_LOG_LEVEL" validate:"loglevel"` // "debug" | "info" | "warn" | "error"
	PrettyLog bool   `yaml:"pretty_log" env:"SHELF_PRETTY_LOG"`                   // true => zap dev (color), false => zap prod (JSON)

	// Data store (empty DSN => in-process memory store)
	DatabaseDSN      string        `yaml:"database_dsn" env:"SHELF_DATABASE_DSN"`
	DBConnectTimeout time.Duration `yaml:"db_connect_timeout" env:"SHELF_DB_CONNECT_TIMEOUT" validate:"gt=0"`

	// Change feed (empty address => in-process feed)
	RedisAddr           string        `yaml:"redis_addr" env:"SHELF_REDIS_ADDR"`
	RedisUser           string        `yaml:"redis_username" env:"SHELF_REDIS_USERNAME"`
	RedisPassword       string        `yaml:"redis_password" env:"SHELF_REDIS_PASSWORD"`
	RedisDB             int           `yaml:"redis_db" env:"SHELF_REDIS_DB" validate:"gte=0"`
	RedisDT             time.Duration `yaml:"redis_dial_timeout" env:"SHELF_REDIS_DIAL_TIMEOUT"`
	RedisRT             time.Duration `yaml:"redis_read_timeout" env:"SHELF_REDIS_READ_TIMEOUT"`
	RedisWT             time.Duration `yaml:"redis_write_timeout" env:"SHELF_REDIS_WRITE_TIMEOUT"`
	RedisPoolSize       int           `yaml:"redis_pool_size" env:"SHELF_REDIS_POOL_SIZE" validate:"gte=0"`
	RedisConnectTimeout time.Duration `yaml:"redis_connect_timeout" env:"SHELF_REDIS_CONNECT_TIMEOUT"`
	RedisRetryInterval  time.Duration `yaml:"redis_retry_interval" env:"SHELF_REDIS_RETRY_INTERVAL"`
	RedisMaxWait        time.Duration `yaml:"redis_max_wait" env:"SHELF_REDIS_MAX_WAIT"`
	RedisPingTimeout    time.Duration `yaml:"redis_ping_timeout" env:"SHELF_REDIS_PING_TIMEOUT"`
	RedisWarnThreshold  int           `yaml:"redis_warn_threshold" env:"SHELF_REDIS_WARN_THRESHOLD" validate:"gte=0"`

	// Refresh
	PollInterval time.Duration `yaml:"poll_interval" env:"SHELF_POLL_INTERVAL" validate:"pollinterval"` // 0 => push only
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"SHELF_FETCH_TIMEOUT" validate:"gt=0"`

	// Session
	SessionSecret string        `yaml:"session_secret" env:"SHELF_SESSION_SECRET" validate:"required,base64url"`
	SessionTTL    time.Duration `yaml:"session_ttl" env:"SHELF_SESSION_TTL" validate:"gt=0"`
	CookieName    string        `yaml:"cookie_name" env:"SHELF_COOKIE_NAME" validate:"required"`
	CookieSecure  bool          `yaml:"cookie_secure" env:"SHELF_COOKIE_SECURE"`

	// Identity provider (empty client id => google sign-in disabled)
	GoogleClientID     string `yaml:"google_client_id" env:"SHELF_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `yaml:"google_client_secret" env:"SHELF_GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `yaml:"google_redirect_url" env:"SHELF_GOOGLE_REDIRECT_URL" validate:"omitempty,url"`
	UserInfoURL        string `yaml:"userinfo_url" env:"SHELF_USERINFO_URL" validate:"required,url"`

	AllowedHosts []string `yaml:"allowed_hosts" env:"SHELF_ALLOWED_HOSTS" envSeparator:","` // optional, restrict access to specific Host headers
	AllowedCIDRS []string `yaml:"allowed_cidrs" env:"SHELF_ALLOWED_CIDRS" envSeparator:","` // optional, restrict health endpoints to specific IPs
	TrustProxy   bool     `yaml:"trust_proxy" env:"SHELF_TRUST_PROXY"`                      // true => trust X-Forwarded-For headers
}

// Default returns the configuration used when nothing overrides a field.
func Default() *Config {
	return &Config{
		ListenPort:      ":8080",
		ShutdownTimeout: 5 * time.Second,

		LogLevel:  "info",
		PrettyLog: true,

		DBConnectTimeout: 10 * time.Second,

		RedisUser:           "default",
		RedisDT:             5 * time.Second,
		RedisRT:             3 * time.Second,
		RedisWT:             3 * time.Second,
		RedisPoolSize:       10,
		RedisConnectTimeout: 30 * time.Second,
		RedisRetryInterval:  2 * time.Second,
		RedisMaxWait:        10 * time.Second,
		RedisPingTimeout:    5 * time.Second,
		RedisWarnThreshold:  3,

		PollInterval: 30 * time.Second,
		FetchTimeout: 5 * time.Second,

		SessionTTL: 24 * time.Hour,
		CookieName: "shelf_session",

		UserInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",

		TrustProxy: true,
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// SHELF_CONFIG_FILE, a .env file and the environment, in that order, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.AllowedHosts = trimAll(cfg.AllowedHosts)
	cfg.AllowedCIDRS = trimAll(cfg.AllowedCIDRS)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg, nil
}

// Redacted returns a copy with secrets masked, safe to print.
func (c *Config) Redacted() Config {
	cfgCopy := *c
	for _, secret := range []*string{
		&cfgCopy.RedisPassword,
		&cfgCopy.SessionSecret,
		&cfgCopy.GoogleClientSecret,
		&cfgCopy.DatabaseDSN,
	} {
		if *secret != "" {
			*secret = "***REDACTED***"
		}
	}
	return cfgCopy
}

// GoogleEnabled reports whether google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config yaml: %w", err)
	}
	return nil
}

func validate(cfg *Config) error {
	v := validator.New()

	if err := v.RegisterValidation("loglevel", validateLogLevel); err != nil {
		return err
	}
	if err := v.RegisterValidation("pollinterval", validatePollInterval); err != nil {
		return err
	}

	return v.Struct(cfg)
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

// validatePollInterval accepts 0 (polling disabled) or anything from MinPollInterval up.
func validatePollInterval(fl validator.FieldLevel) bool {
	d := time.Duration(fl.Field().Int())
	return d == 0 || d >= MinPollInterval
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return parts
}
