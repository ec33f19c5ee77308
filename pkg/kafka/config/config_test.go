package kafka_config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != DefaultKafkaBrokers {
		t.Errorf("Brokers = %v, want [%s]", cfg.Brokers, DefaultKafkaBrokers)
	}
	if cfg.ConsumerRetryBackoff != DefaultConsumerRetryBackoff {
		t.Errorf("ConsumerRetryBackoff = %s", cfg.ConsumerRetryBackoff)
	}
	if cfg.SnapshotTopic != DefaultSnapshotTopic || cfg.SnapshotDLQTopic != DefaultSnapshotDLQTopic {
		t.Errorf("snapshot topics = %s/%s", cfg.SnapshotTopic, cfg.SnapshotDLQTopic)
	}
}

func TestLoad_SnapshotGroupIsPerInstance(t *testing.T) {
	t.Setenv(EnvSnapshotGroupPrefix, "rooms")

	first, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	second, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.HasPrefix(first.SnapshotGroupID, "rooms-") {
		t.Errorf("SnapshotGroupID = %q, want rooms- prefix", first.SnapshotGroupID)
	}
	if first.SnapshotGroupID == second.SnapshotGroupID {
		t.Errorf("two loads share group id %q", first.SnapshotGroupID)
	}
}

func TestValidate_SnapshotTopics(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"dlq collides with topic", func(c *Config) { c.SnapshotDLQTopic = c.SnapshotTopic }, "SnapshotDLQTopic must differ"},
		{"empty topic", func(c *Config) { c.SnapshotTopic = "" }, "SnapshotTopic cannot be empty"},
		{"heartbeat after session", func(c *Config) { c.ConsumerHeartbeatInterval = c.ConsumerSessionTimeout }, "ConsumerHeartbeatInterval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_TrimsBrokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "k1:9092, k2:9092 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Brokers[0] != "k1:9092" || cfg.Brokers[1] != "k2:9092" {
		t.Errorf("Brokers = %q", cfg.Brokers)
	}
}

func TestLoad_InvalidReturnsError(t *testing.T) {
	t.Setenv(EnvKafkaProducerCompression, "brotli")
	t.Setenv(EnvKafkaConsumerRetryBackoff, "-1s")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error")
	}
	for _, want := range []string{"ProducerCompression", "ConsumerRetryBackoff"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err.Error(), want)
		}
	}
}

func TestValidate_EmptyBroker(t *testing.T) {
	cfg, _ := Load()
	cfg.Brokers = []string{"k1:9092", ""}
	cfg.ConsumerMaxWait = time.Duration(0)

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "Broker 1") || !strings.Contains(err.Error(), "ConsumerMaxWait") {
		t.Errorf("Validate() = %v", err)
	}
}
