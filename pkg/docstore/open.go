package docstore

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type Config struct {
	Driver string

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// ConfigFromEnv reads STORE_DRIVER, DATABASE_URL and the REDIS_* variables.
func ConfigFromEnv(prefix string) Config {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return Config{
		Driver:        os.Getenv("STORE_DRIVER"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     addr,
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       db,
		RedisPrefix:   prefix,
	}
}

// Open builds the backend named by cfg.Driver and checks it is reachable.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemStore(), nil

	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("docstore: DATABASE_URL is required for driver %q", cfg.Driver)
		}
		s, err := OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("docstore: postgres ping: %w", err)
		}
		if err := s.EnsureSchema(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("docstore: postgres schema: %w", err)
		}
		return s, nil

	case DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s := NewRedisStore(rdb, cfg.RedisPrefix)
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("docstore: redis ping: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("docstore: unknown driver %q", cfg.Driver)
	}
}
