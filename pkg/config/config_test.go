package config

import (
	"strings"
	"testing"
	"time"

	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
)

func validConfig() *Config {
	return &Config{
		MongoURI:          DefaultMongoURI,
		MongoDatabaseName: DefaultMongoDatabaseName,
		MongoConnTimeout:  DefaultMongoConnTimeout,
		Port:              DefaultPort,
		RateLimitRequests: DefaultRateLimitRequests,
		RateLimitWindow:   DefaultRateLimitWindow,
		RequestTimeout:    DefaultRequestTimeout,
		IdempotencyTTL:    DefaultIdempotencyTTL,
		MaxRequestSize:    DefaultMaxRequestSize,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		ShutdownTimeout:   DefaultShutdownTimeout,
		ContenderPolicy:   DefaultContenderPolicy,
		DefaultStrategy:   DefaultStrategy,
		MaxRooms:          DefaultMaxRooms,
		LockTTL:           DefaultLockTTL,
		LockRetryInterval: DefaultLockRetryInterval,
		UpdateMaxRetries:  DefaultUpdateMaxRetries,
		StoreBackend:      DefaultStoreBackend,
		Log:               logger.New(logger.Config{Service: "test"}),
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "memory store skips mongo checks", mutate: func(c *Config) {
			c.StoreBackend = StoreMemory
			c.MongoURI = ""
		}},
		{name: "bad port", mutate: func(c *Config) { c.Port = "99999" }, wantErr: "Port"},
		{name: "unknown store", mutate: func(c *Config) { c.StoreBackend = "redis" }, wantErr: "StoreBackend"},
		{name: "bad mongo uri", mutate: func(c *Config) { c.MongoURI = "postgres://localhost" }, wantErr: "MongoURI"},
		{name: "unknown policy", mutate: func(c *Config) { c.ContenderPolicy = "some" }, wantErr: "ContenderPolicy"},
		{name: "incremental is not a default strategy", mutate: func(c *Config) { c.DefaultStrategy = model.StrategyIncremental }, wantErr: "DefaultStrategy"},
		{name: "no rooms", mutate: func(c *Config) { c.MaxRooms = 0 }, wantErr: "MaxRooms"},
		{name: "retry slower than ttl", mutate: func(c *Config) { c.LockRetryInterval = time.Minute }, wantErr: "LockRetryInterval"},
		{name: "no retries", mutate: func(c *Config) { c.UpdateMaxRetries = 0 }, wantErr: "UpdateMaxRetries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_NumbersEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "0"
	cfg.MaxRooms = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "1. ") || !strings.Contains(err.Error(), "2. ") {
		t.Errorf("expected numbered problems, got %q", err.Error())
	}
}

func TestRedactMongoURI(t *testing.T) {
	got := redactMongoURI("mongodb://admin:secret@db:27017")
	if strings.Contains(got, "secret") || !strings.Contains(got, "***:***@db") {
		t.Errorf("redactMongoURI() = %q", got)
	}
}

func TestNormalizePagination(t *testing.T) {
	if got := NormalizePaginationLimit(0); got != 10 {
		t.Errorf("NormalizePaginationLimit(0) = %d, want 10", got)
	}
	if got := NormalizePaginationLimit(1000); got != DefaultPaginationLimit {
		t.Errorf("NormalizePaginationLimit(1000) = %d, want %d", got, DefaultPaginationLimit)
	}
	if got := NormalizeOffset(-3); got != 0 {
		t.Errorf("NormalizeOffset(-3) = %d, want 0", got)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv(EnvMaxRooms, "12")
	t.Setenv(EnvKafkaEnabled, "true")
	t.Setenv(EnvLockTTL, "3s")
	t.Setenv(EnvUpdateMaxRetries, "not-a-number")

	if got := getEnvNum(EnvMaxRooms, DefaultMaxRooms); got != 12 {
		t.Errorf("getEnvNum() = %d, want 12", got)
	}
	if got := getEnvBool(EnvKafkaEnabled, false); !got {
		t.Errorf("getEnvBool() = false, want true")
	}
	if got := getEnvDuration(EnvLockTTL, DefaultLockTTL); got != 3*time.Second {
		t.Errorf("getEnvDuration() = %s, want 3s", got)
	}
	if got := getEnvNum(EnvUpdateMaxRetries, DefaultUpdateMaxRetries); got != DefaultUpdateMaxRetries {
		t.Errorf("invalid value should fall back, got %d", got)
	}
}
