// Package config reads process settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const EnvProduction = "production"

type Config struct {
	StorageConnectionString string
	StorageDatabase         string
	UsersTable              string
	TasksTable              string

	JWTSecret     string
	JWTIssuer     string
	WebSessionTTL time.Duration
	APITokenTTL   time.Duration

	AllowedOrigin string
	Port          string
	Env           string
	Debug         bool

	RedisConnectionString string
	RateLimitRequests     int
	RateLimitWindow       time.Duration

	MaxPageSize int
	BodyLimit   string

	EventsQueueConnectionString string
	EventsQueue                 string

	TracesExporter  string
	ShutdownTimeout time.Duration
}

func (c *Config) Production() bool {
	return c.Env == EnvProduction
}

// Addr is the listen address derived from Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(os.Getenv)
}

func parse(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}
	cfg := &Config{
		StorageConnectionString: r.required("STORAGE_CONNECTION_STRING"),
		StorageDatabase:         r.str("STORAGE_DATABASE", "todo"),
		UsersTable:              r.str("USERS_TABLE", "users"),
		TasksTable:              r.str("TASKS_TABLE", "tasks"),

		JWTSecret:     r.required("JWT_SECRET"),
		JWTIssuer:     r.str("JWT_ISSUER", "todo-app"),
		WebSessionTTL: r.duration("WEB_SESSION_TTL", 2*time.Hour),
		APITokenTTL:   r.duration("API_TOKEN_TTL", 7*24*time.Hour),

		AllowedOrigin: r.str("ALLOWED_ORIGIN", ""),
		Port:          r.str("PORT", "8080"),
		Env:           strings.ToLower(r.str("APP_ENV", "development")),
		Debug:         r.boolean("DEBUG"),

		RedisConnectionString: r.str("REDIS_CONNECTION_STRING", ""),
		RateLimitRequests:     r.positiveInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:       r.duration("RATE_LIMIT_WINDOW", 15*time.Minute),

		MaxPageSize: r.positiveInt("MAX_PAGE_SIZE", 100),
		BodyLimit:   r.str("BODY_LIMIT", "64K"),

		EventsQueueConnectionString: r.str("EVENTS_QUEUE_CONNECTION_STRING", ""),
		EventsQueue:                 r.str("EVENTS_QUEUE", "todo-events"),

		TracesExporter:  r.str("OTEL_TRACES_EXPORTER", ""),
		ShutdownTimeout: r.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	if r.err != nil {
		return nil, r.err
	}
	return cfg, nil
}

// reader keeps the first error so parse can read every variable in one pass.
type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) required(key string) string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		r.fail(fmt.Errorf("missing %s", key))
	}
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.fail(fmt.Errorf("invalid %s: %q", key, v))
		return def
	}
	return d
}

func (r *reader) positiveInt(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		r.fail(fmt.Errorf("invalid %s: %q", key, v))
		return def
	}
	return n
}

func (r *reader) boolean(key string) bool {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %q", key, v))
	}
	return b
}
