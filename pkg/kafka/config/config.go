package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentsplit/pkg/logger"
)

// Config holds the broker, topic and client settings of the snapshot
// fan-out.
type Config struct {
	Brokers []string

	// SnapshotTopic carries every persisted auction snapshot. Messages the
	// consumer cannot process after its retries go to SnapshotDLQTopic.
	SnapshotTopic    string
	SnapshotDLQTopic string
	// SnapshotGroupID is suffixed with a fresh uuid on every Load so each
	// instance reads the whole topic instead of sharing partitions.
	SnapshotGroupID string

	ProducerMaxAttempts  int
	ProducerBatchTimeout time.Duration
	ProducerRequireAcks  int    // -1 all replicas, 0 none, 1 leader
	ProducerCompression  string // none, gzip, snappy, lz4, zstd
	ProducerAsync        bool

	ConsumerStartOffset       int64 // -1 newest, -2 oldest
	ConsumerMinBytes          int
	ConsumerMaxBytes          int
	ConsumerMaxWait           time.Duration
	ConsumerCommitInterval    time.Duration
	ConsumerHeartbeatInterval time.Duration
	ConsumerSessionTimeout    time.Duration
	ConsumerRebalanceTimeout  time.Duration
	ConsumerMaxRetries        int
	ConsumerRetryBackoff      time.Duration

	EnableMiddleware bool
}

func Load() (*Config, error) {
	cfg := &Config{
		Brokers: parseBrokers(envOr(EnvKafkaBrokers, DefaultKafkaBrokers, parseString)),

		SnapshotTopic:    envOr(EnvSnapshotTopic, DefaultSnapshotTopic, parseString),
		SnapshotDLQTopic: envOr(EnvSnapshotDLQTopic, DefaultSnapshotDLQTopic, parseString),
		SnapshotGroupID:  envOr(EnvSnapshotGroupPrefix, DefaultSnapshotGroupPrefix, parseString) + "-" + uuid.NewString(),

		ProducerMaxAttempts:  envOr(EnvKafkaProducerMaxAttempts, DefaultProducerMaxAttempts, strconv.Atoi),
		ProducerBatchTimeout: envOr(EnvKafkaProducerBatchTimeout, DefaultProducerBatchTimeout, time.ParseDuration),
		ProducerRequireAcks:  envOr(EnvKafkaProducerRequireAcks, DefaultProducerRequireAcks, strconv.Atoi),
		ProducerCompression:  envOr(EnvKafkaProducerCompression, DefaultProducerCompression, parseString),
		ProducerAsync:        envOr(EnvKafkaProducerAsync, DefaultProducerAsync, strconv.ParseBool),

		ConsumerStartOffset:       envOr(EnvKafkaConsumerStartOffset, int64(DefaultConsumerStartOffset), parseInt64),
		ConsumerMinBytes:          envOr(EnvKafkaConsumerMinBytes, DefaultConsumerMinBytes, strconv.Atoi),
		ConsumerMaxBytes:          envOr(EnvKafkaConsumerMaxBytes, DefaultConsumerMaxBytes, strconv.Atoi),
		ConsumerMaxWait:           envOr(EnvKafkaConsumerMaxWait, DefaultConsumerMaxWait, time.ParseDuration),
		ConsumerCommitInterval:    envOr(EnvKafkaConsumerCommitInterval, DefaultConsumerCommitInterval, time.ParseDuration),
		ConsumerHeartbeatInterval: envOr(EnvKafkaConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval, time.ParseDuration),
		ConsumerSessionTimeout:    envOr(EnvKafkaConsumerSessionTimeout, DefaultConsumerSessionTimeout, time.ParseDuration),
		ConsumerRebalanceTimeout:  envOr(EnvKafkaConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout, time.ParseDuration),
		ConsumerMaxRetries:        envOr(EnvKafkaConsumerMaxRetries, DefaultConsumerMaxRetries, strconv.Atoi),
		ConsumerRetryBackoff:      envOr(EnvKafkaConsumerRetryBackoff, DefaultConsumerRetryBackoff, time.ParseDuration),

		EnableMiddleware: envOr(EnvKafkaEnableMiddleware, DefaultEnableMiddleware, strconv.ParseBool),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	var p problems

	p.add(len(cfg.Brokers) == 0, "At least one Kafka broker is required")
	for i, broker := range cfg.Brokers {
		p.add(broker == "", "Broker %d cannot be empty", i)
	}

	p.add(cfg.SnapshotTopic == "", "SnapshotTopic cannot be empty")
	p.add(cfg.SnapshotDLQTopic == "", "SnapshotDLQTopic cannot be empty")
	p.add(cfg.SnapshotTopic != "" && cfg.SnapshotTopic == cfg.SnapshotDLQTopic,
		"SnapshotDLQTopic must differ from SnapshotTopic, both are %q", cfg.SnapshotTopic)
	p.add(cfg.SnapshotGroupID == "", "SnapshotGroupID cannot be empty")

	p.add(cfg.ProducerMaxAttempts <= 0, "ProducerMaxAttempts must be positive, got: %d", cfg.ProducerMaxAttempts)
	p.add(cfg.ProducerBatchTimeout <= 0, "ProducerBatchTimeout must be positive, got: %s", cfg.ProducerBatchTimeout)
	switch cfg.ProducerCompression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		p.add(true, "ProducerCompression must be one of [none, gzip, snappy, lz4, zstd], got: %s", cfg.ProducerCompression)
	}
	switch cfg.ProducerRequireAcks {
	case -1, 0, 1:
	default:
		p.add(true, "ProducerRequireAcks must be -1, 0, or 1, got: %d", cfg.ProducerRequireAcks)
	}

	p.add(cfg.ConsumerStartOffset < -2, "ConsumerStartOffset must be -1 (newest), -2 (oldest), or >= 0, got: %d", cfg.ConsumerStartOffset)
	p.add(cfg.ConsumerMinBytes <= 0, "ConsumerMinBytes must be positive, got: %d", cfg.ConsumerMinBytes)
	p.add(cfg.ConsumerMaxBytes < cfg.ConsumerMinBytes, "ConsumerMaxBytes must be at least ConsumerMinBytes, got: %d", cfg.ConsumerMaxBytes)
	p.add(cfg.ConsumerMaxRetries < 0, "ConsumerMaxRetries cannot be negative, got: %d", cfg.ConsumerMaxRetries)

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"ConsumerMaxWait", cfg.ConsumerMaxWait},
		{"ConsumerCommitInterval", cfg.ConsumerCommitInterval},
		{"ConsumerHeartbeatInterval", cfg.ConsumerHeartbeatInterval},
		{"ConsumerSessionTimeout", cfg.ConsumerSessionTimeout},
		{"ConsumerRebalanceTimeout", cfg.ConsumerRebalanceTimeout},
		{"ConsumerRetryBackoff", cfg.ConsumerRetryBackoff},
	} {
		p.add(d.value <= 0, "%s must be positive, got: %s", d.name, d.value)
	}
	p.add(cfg.ConsumerHeartbeatInterval >= cfg.ConsumerSessionTimeout,
		"ConsumerHeartbeatInterval must be shorter than ConsumerSessionTimeout, got: %s", cfg.ConsumerHeartbeatInterval)

	return p.err()
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded successfully",
		"brokers", cfg.Brokers,
		"snapshot_topic", cfg.SnapshotTopic,
		"snapshot_dlq_topic", cfg.SnapshotDLQTopic,
		"snapshot_group_id", cfg.SnapshotGroupID,
		"producer_max_attempts", cfg.ProducerMaxAttempts,
		"producer_batch_timeout", cfg.ProducerBatchTimeout,
		"producer_require_acks", cfg.ProducerRequireAcks,
		"producer_compression", cfg.ProducerCompression,
		"producer_async", cfg.ProducerAsync,
		"consumer_start_offset", cfg.ConsumerStartOffset,
		"consumer_max_wait", cfg.ConsumerMaxWait,
		"consumer_max_retries", cfg.ConsumerMaxRetries,
		"consumer_retry_backoff", cfg.ConsumerRetryBackoff,
		"enable_middleware", cfg.EnableMiddleware,
	)
}

// problems collects validation failures into one numbered error.
type problems []string

func (p *problems) add(failed bool, format string, args ...any) {
	if failed {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("Configuration validation failed:\n")
	for i, msg := range p {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, msg)
	}
	return fmt.Errorf("%s", b.String())
}

func parseBrokers(list string) []string {
	brokers := strings.Split(list, ",")
	for i, broker := range brokers {
		brokers[i] = strings.TrimSpace(broker)
	}
	return brokers
}

// envOr parses the variable named key, falling back when it is unset or
// malformed.
func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseString(s string) (string, error) { return s, nil }

func parseInt64(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
