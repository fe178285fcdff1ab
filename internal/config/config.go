package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	// One of these authenticates the private API. Both empty means every
	// protected endpoint answers 500.
	BearerToken       string
	BearerTokenBcrypt string

	PublicBaseURL string

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          getenv("DATABASE_URL", ""),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		BearerToken:          getenv("API_BEARER_TOKEN", ""),
		BearerTokenBcrypt:    getenv("API_BEARER_TOKEN_BCRYPT", ""),
		PublicBaseURL:        getenv("PUBLIC_BASE_URL", ""),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "json"),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("missing env: DATABASE_URL")
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

// AgentConfig configures the device-side sync agent.
type AgentConfig struct {
	APIBaseURL  string
	APIToken    string
	HTTPTimeout time.Duration

	ExportPath string
	WritesPath string
	Timezone   string

	Store         string // sqlite | redis | memory
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SyncInterval time.Duration

	LogLevel  string
	LogFormat string
}

func LoadAgent() (AgentConfig, error) {
	_ = godotenv.Load()

	cfg := AgentConfig{
		APIBaseURL:    getenv("HEALTH_API_BASE_URL", ""),
		APIToken:      getenv("HEALTH_API_TOKEN", ""),
		ExportPath:    getenv("HEALTH_EXPORT_PATH", "health-export.json"),
		WritesPath:    getenv("HEALTH_WRITES_PATH", "health-writes.jsonl"),
		Timezone:      getenv("HEALTH_TIMEZONE", localTimezone()),
		Store:         getenv("AGENT_STORE", "sqlite"),
		SQLitePath:    getenv("AGENT_SQLITE_PATH", "healthsync-agent.db"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFormat:     getenv("LOG_FORMAT", "json"),
	}
	if cfg.APIBaseURL == "" {
		return cfg, fmt.Errorf("missing env: HEALTH_API_BASE_URL")
	}

	var err error
	if cfg.RedisDB, err = strconv.Atoi(getenv("REDIS_DB", "0")); err != nil {
		return cfg, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	if cfg.SyncInterval, err = time.ParseDuration(getenv("SYNC_INTERVAL", "15m")); err != nil {
		return cfg, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}
	if cfg.HTTPTimeout, err = time.ParseDuration(getenv("HTTP_TIMEOUT", "30s")); err != nil {
		return cfg, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err)
	}

	switch cfg.Store {
	case "sqlite", "redis", "memory":
	default:
		return cfg, fmt.Errorf("invalid AGENT_STORE %q (sqlite|redis|memory)", cfg.Store)
	}

	return cfg, nil
}

func localTimezone() string {
	if tz := strings.TrimSpace(os.Getenv("TZ")); tz != "" {
		return tz
	}
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	return "UTC"
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}
