package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration. FromEnv builds it from
// TERMTRUST_* environment variables so main stays lean.
type Config struct {
	HTTP       HTTPConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Reputation ReputationConfig
	Auth       AuthConfig
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	// URL is a pgx connection string. Empty means in-memory stores only.
	URL string
}

type RedisConfig struct {
	// URL is a redis:// connection string. Empty disables the reputation cache.
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	// Brokers is a comma-separated seed list. Empty disables the Kafka
	// audit sink; events still land in the audit store.
	Brokers string
	Topic   string
}

type ReputationConfig struct {
	// BaseURL of the geo/ISP lookup collaborator. Empty means lookups always
	// degrade to Unknown geography.
	BaseURL string
	Timeout time.Duration
	// CacheTTL bounds how long a lookup result may be served from Redis.
	CacheTTL time.Duration
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
}

// FromEnv builds the configuration from environment variables with
// development-friendly defaults.
func FromEnv() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            envStr("TERMTRUST_ADDR", ":8080"),
			ShutdownTimeout: envDur("TERMTRUST_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("TERMTRUST_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("TERMTRUST_REDIS_URL"),
			PoolSize:     envInt("TERMTRUST_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TERMTRUST_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDur("TERMTRUST_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDur("TERMTRUST_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDur("TERMTRUST_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: os.Getenv("TERMTRUST_KAFKA_BROKERS"),
			Topic:   envStr("TERMTRUST_KAFKA_AUDIT_TOPIC", "termtrust.audit"),
		},
		Reputation: ReputationConfig{
			BaseURL:  os.Getenv("TERMTRUST_REPUTATION_URL"),
			Timeout:  envDur("TERMTRUST_REPUTATION_TIMEOUT", 2*time.Second),
			CacheTTL: envDur("TERMTRUST_REPUTATION_CACHE_TTL", 6*time.Hour),
		},
		Auth: AuthConfig{
			// Default for development only; override in production.
			JWTSigningKey: envStr("TERMTRUST_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:        envStr("TERMTRUST_JWT_ISSUER", "termtrust"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
