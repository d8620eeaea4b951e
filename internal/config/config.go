package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Session      SessionConfig
	Signaling    SignalingConfig
	Storage      StorageConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines staff authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// SessionConfig governs join links and link-lookup caching.
type SessionConfig struct {
	FrontendURL         string
	LinkTTLHours        int
	LinkCacheTTLSeconds int
}

// SignalingConfig tunes the real-time channel.
type SignalingConfig struct {
	SendQueueSize      int
	PingIntervalSec    int
	PongTimeoutSec     int
	WriteTimeoutSec    int
	JoinAuthTimeoutSec int
}

// StorageConfig configures the binary object store.
type StorageConfig struct {
	Dir                 string
	PublicBaseURL       string
	URLSigningSecret    string
	SignedURLTTLSeconds int
}

// NotificationConfig holds outbound delivery settings.
type NotificationConfig struct {
	SMSFrom    string
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "verification-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8005"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 480),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Session: SessionConfig{
			FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3005"),
			LinkTTLHours:        getEnvAsInt("SESSION_LINK_TTL_HOURS", 24),
			LinkCacheTTLSeconds: getEnvAsInt("SESSION_LINK_CACHE_TTL_SECONDS", 30),
		},
		Signaling: SignalingConfig{
			SendQueueSize:      getEnvAsInt("SIGNALING_SEND_QUEUE_SIZE", 64),
			PingIntervalSec:    getEnvAsInt("SIGNALING_PING_INTERVAL_SECONDS", 25),
			PongTimeoutSec:     getEnvAsInt("SIGNALING_PONG_TIMEOUT_SECONDS", 60),
			WriteTimeoutSec:    getEnvAsInt("SIGNALING_WRITE_TIMEOUT_SECONDS", 10),
			JoinAuthTimeoutSec: getEnvAsInt("SIGNALING_JOIN_AUTH_TIMEOUT_SECONDS", 5),
		},
		Storage: StorageConfig{
			Dir:                 getEnv("STORAGE_DIR", "data/objects"),
			PublicBaseURL:       getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8005"),
			URLSigningSecret:    getEnv("STORAGE_URL_SIGNING_SECRET", "dev-signing-secret"),
			SignedURLTTLSeconds: getEnvAsInt("STORAGE_SIGNED_URL_TTL_SECONDS", 3600),
		},
		Notification: NotificationConfig{
			SMSFrom:    os.Getenv("NOTIFY_SMS_FROM"),
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// LinkTTL returns the join link lifetime.
func (s SessionConfig) LinkTTL() time.Duration {
	if s.LinkTTLHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.LinkTTLHours) * time.Hour
}

// LinkCacheTTL returns how long link lookups may be served from cache.
func (s SessionConfig) LinkCacheTTL() time.Duration {
	return time.Duration(s.LinkCacheTTLSeconds) * time.Second
}

// PingInterval returns the websocket ping period.
func (s SignalingConfig) PingInterval() time.Duration {
	return time.Duration(s.PingIntervalSec) * time.Second
}

// PongTimeout returns how long a silent connection is considered alive.
func (s SignalingConfig) PongTimeout() time.Duration {
	return time.Duration(s.PongTimeoutSec) * time.Second
}

// WriteTimeout returns the per-frame write deadline.
func (s SignalingConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSec) * time.Second
}

// JoinAuthTimeout bounds the store lookup performed at join time.
func (s SignalingConfig) JoinAuthTimeout() time.Duration {
	return time.Duration(s.JoinAuthTimeoutSec) * time.Second
}

// SignedURLTTL returns the signed download URL lifetime.
func (s StorageConfig) SignedURLTTL() time.Duration {
	return time.Duration(s.SignedURLTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
