package kafka_middleware

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"rentsplit/pkg/kafka"
	"rentsplit/pkg/logger"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	m := NewMetrics()
	publish := m.ProducerMiddleware()
	consume := m.ConsumerMiddleware()
	msg := kafka.NewMessage().WithKey("a-1").WithRawValue([]byte("{}")).Build()
	ctx := context.Background()

	ok := func(ctx context.Context, msg kafka.Message) error { return nil }
	fail := func(ctx context.Context, msg kafka.Message) error { return errors.New("boom") }

	_ = publish(ctx, msg, ok)
	_ = publish(ctx, msg, ok)
	_ = publish(ctx, msg, fail)
	_ = consume(ctx, msg, ok)
	_ = consume(ctx, msg, fail)

	got := m.Snapshot()
	if got.MessagesPublished != 2 || got.MessagesPublishedFailed != 1 {
		t.Errorf("publish counters = %d/%d, want 2/1", got.MessagesPublished, got.MessagesPublishedFailed)
	}
	if got.MessagesConsumed != 1 || got.MessagesConsumedFailed != 1 {
		t.Errorf("consume counters = %d/%d, want 1/1", got.MessagesConsumed, got.MessagesConsumedFailed)
	}
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	got := NewMetrics().Snapshot()
	if got.AvgPublishDuration != 0 || got.AvgConsumeDuration != 0 {
		t.Errorf("empty metrics should report zero averages, got %+v", got)
	}
}

func TestLoggingConsumerMiddleware_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Output: &buf, Service: "test"})
	mw := LoggingConsumerMiddleware(log)

	msg := kafka.NewMessage().WithKey("a-1").WithRawValue([]byte("{}")).Build()
	err := mw(context.Background(), msg, func(ctx context.Context, msg kafka.Message) error {
		return errors.New("decode failed")
	})

	if err == nil {
		t.Fatal("middleware must pass the handler error through")
	}
	if !strings.Contains(buf.String(), "decode failed") || !strings.Contains(buf.String(), `"key":"a-1"`) {
		t.Errorf("unexpected log output %q", buf.String())
	}
}
