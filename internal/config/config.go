package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBolt  = "bolt"
	StoreRedis = "redis"
	StoreMongo = "mongo"
)

type Config struct {
	HTTPPort       string
	GRPCHealthPort string

	CartStore     string
	BoltPath      string
	RedisAddr     string
	RedisPassword string
	RedisTTL      time.Duration
	MongoURI      string
	MongoDBName   string

	KafkaBrokers []string
	JWTSecret    string
	LogLevel     string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	IdleTimeout     time.Duration
	EvictInterval   time.Duration
}

// Load reads the optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "50060"),
		CartStore:      strings.ToLower(getEnv("CART_STORE", StoreBolt)),
		BoltPath:       getEnv("BOLT_PATH", "cart.db"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:    getEnv("MONGO_DB_NAME", "cartdb"),
		KafkaBrokers:   splitList(getEnv("KAFKA_BROKERS", "")),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	var err error
	durations := []struct {
		key    string
		def    time.Duration
		target *time.Duration
	}{
		{"REDIS_TTL", 30 * 24 * time.Hour, &cfg.RedisTTL},
		{"REQUEST_TIMEOUT", 30 * time.Second, &cfg.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
		{"CART_IDLE_TIMEOUT", 30 * time.Minute, &cfg.IdleTimeout},
		{"CART_EVICT_INTERVAL", time.Minute, &cfg.EvictInterval},
	}
	for _, d := range durations {
		if *d.target, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	switch cfg.CartStore {
	case StoreBolt, StoreRedis, StoreMongo:
	default:
		return nil, fmt.Errorf("unsupported CART_STORE %q", cfg.CartStore)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
