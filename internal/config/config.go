// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingDatabaseURL = errors.New("config: DATABASE_URL is required")
	ErrMissingJWTSecret   = errors.New("config: JWT_SECRET is required")
	ErrUnknownDriver      = errors.New("config: DB_DRIVER must be postgres or pgx")
	ErrUnknownStore       = errors.New("config: STORE must be postgres or memory")
)

// Config holds every runtime setting of the lending service.
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	TimeZone string `yaml:"time_zone"`

	Store          string `yaml:"store"`
	DatabaseURL    string `yaml:"database_url"`
	DBDriver       string `yaml:"db_driver"`
	DBMaxOpenConns int    `yaml:"db_max_open_conns"`
	DBMaxIdleConns int    `yaml:"db_max_idle_conns"`

	JWTSecret          string        `yaml:"jwt_secret"`
	JWTTTL             time.Duration `yaml:"jwt_ttl"`
	LoginRatePerMinute int           `yaml:"login_rate_per_minute"`

	TelegramBotToken string `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
	NotifyQueueSize  int    `yaml:"notify_queue_size"`
	NotifyWorkers    int    `yaml:"notify_workers"`

	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Port:               "8080",
		LogLevel:           "info",
		TimeZone:           "UTC",
		Store:              "postgres",
		DBDriver:           "postgres",
		DBMaxOpenConns:     25,
		DBMaxIdleConns:     10,
		JWTTTL:             24 * time.Hour,
		LoginRatePerMinute: 5,
		NotifyQueueSize:    128,
		NotifyWorkers:      2,
		ServiceName:        "lending",
	}
}

// Load layers defaults, the YAML file named by CONFIG_FILE, a .env file and
// the process environment, in that order. It does not validate; each command
// checks the settings it needs.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env file", "error", err)
	}

	if err := cfg.mergeEnv(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() error {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.TimeZone, "TIME_ZONE")
	setString(&c.Store, "STORE")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.DBDriver, "DB_DRIVER")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.TelegramChatID, "TELEGRAM_CHAT_ID")
	setString(&c.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&c.ServiceName, "OTEL_SERVICE_NAME")

	for key, dst := range map[string]*int{
		"DB_MAX_OPEN_CONNS":     &c.DBMaxOpenConns,
		"DB_MAX_IDLE_CONNS":     &c.DBMaxIdleConns,
		"LOGIN_RATE_PER_MINUTE": &c.LoginRatePerMinute,
		"NOTIFY_QUEUE_SIZE":     &c.NotifyQueueSize,
		"NOTIFY_WORKERS":        &c.NotifyWorkers,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}

	if v, ok := os.LookupEnv("JWT_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_TTL %q: %w", v, err)
		}
		c.JWTTTL = d
	}

	return nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	switch c.Store {
	case "postgres":
		if err := c.ValidateDatabase(); err != nil {
			return err
		}
	case "memory":
	default:
		return ErrUnknownStore
	}
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// ValidateDatabase checks only what opening Postgres needs.
func (c Config) ValidateDatabase() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if c.DBDriver != "postgres" && c.DBDriver != "pgx" {
		return ErrUnknownDriver
	}
	return nil
}

// Location resolves TimeZone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel maps LogLevel onto slog levels.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}
