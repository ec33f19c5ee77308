package config

import (
	"time"

	"rentsplit/pkg/model"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "rentsplit"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100

	DefaultContenderPolicy   = model.ContendersAll
	DefaultStrategy          = model.StrategyOptimal
	DefaultMaxRooms          = 50
	DefaultLockTTL           = 10 * time.Second
	DefaultLockRetryInterval = 50 * time.Millisecond
	DefaultUpdateMaxRetries  = 5

	StoreMongo  = "mongo"
	StoreMemory = "memory"

	DefaultStoreBackend = StoreMongo
	DefaultKafkaEnabled = false
)
