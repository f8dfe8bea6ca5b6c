package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
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
	Realtime     RealtimeConfig
	Notification NotificationConfig
	Chat         ChatConfig
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
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level       string
	Service     string
	Development bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// RealtimeConfig tunes the channel layer, the event bus and socket sessions.
type RealtimeConfig struct {
	// ChannelLayer selects the group pub/sub backend: "memory" or "redis".
	ChannelLayer       string
	RedisChannelPrefix string
	BusQueueSize       int
	BusWorkers         int
	BusDrainTimeout    time.Duration
	// ResubscribeBackoff caps the wait between redis subscribe attempts.
	ResubscribeBackoff time.Duration
	SendBuffer         int
	CommandRate        float64
	CommandBurst       int
	PingInterval       time.Duration
	MaxFrameBytes      int64
	BroadcastTimeout   time.Duration
}

// NotificationConfig controls what the notification service pushes.
type NotificationConfig struct {
	// RecentLimit caps list commands such as get_recent_orders.
	RecentLimit int
}

// ChatConfig controls conversation routing.
type ChatConfig struct {
	AutoAssign bool
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "storefront-realtime"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          redisDB,
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 20),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 3*time.Second),
		},
		Realtime: RealtimeConfig{
			ChannelLayer:       strings.ToLower(getEnv("CHANNEL_LAYER", "memory")),
			RedisChannelPrefix: getEnv("CHANNEL_LAYER_PREFIX", "channels:"),
			BusQueueSize:       getEnvAsInt("EVENT_BUS_QUEUE_SIZE", 1024),
			BusWorkers:         getEnvAsInt("EVENT_BUS_WORKERS", 4),
			BusDrainTimeout:    getEnvAsDuration("EVENT_BUS_DRAIN_TIMEOUT", 10*time.Second),
			ResubscribeBackoff: getEnvAsDuration("CHANNEL_LAYER_MAX_BACKOFF", 30*time.Second),
			SendBuffer:         getEnvAsInt("WS_SEND_BUFFER", 64),
			CommandRate:        getEnvAsFloat("WS_COMMAND_RATE", 10),
			CommandBurst:       getEnvAsInt("WS_COMMAND_BURST", 20),
			PingInterval:       getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
			MaxFrameBytes:      int64(getEnvAsInt("WS_MAX_FRAME_BYTES", 64*1024)),
			BroadcastTimeout:   getEnvAsDuration("BROADCAST_TIMEOUT", 2*time.Second),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Service:     getEnv("APP_NAME", "storefront-realtime"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			RecentLimit: getEnvAsInt("NOTIFY_RECENT_LIMIT", 10),
		},
		Chat: ChatConfig{
			AutoAssign: getEnvAsBool("CHAT_AUTO_ASSIGN", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Realtime.ChannelLayer {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid CHANNEL_LAYER %q", c.Realtime.ChannelLayer)
	}
	if c.Realtime.BusWorkers <= 0 {
		return fmt.Errorf("EVENT_BUS_WORKERS must be positive")
	}
	if c.Realtime.BusQueueSize <= 0 {
		return fmt.Errorf("EVENT_BUS_QUEUE_SIZE must be positive")
	}
	if c.Realtime.SendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET required")
	}
	return nil
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

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
