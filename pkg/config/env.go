package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvContenderPolicy   = "CONTENDER_POLICY"
	EnvDefaultStrategy   = "DEFAULT_STRATEGY"
	EnvMaxRooms          = "MAX_ROOMS"
	EnvLockTTL           = "LOCK_TTL"
	EnvLockRetryInterval = "LOCK_RETRY_INTERVAL"
	EnvUpdateMaxRetries  = "UPDATE_MAX_RETRIES"

	EnvStoreBackend = "STORE_BACKEND"
	EnvKafkaEnabled = "KAFKA_ENABLED"
)
