package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"rentsplit/pkg/kafka"
)

// Metrics counts Kafka traffic of one process. Safe for concurrent use.
type Metrics struct {
	published            atomic.Int64
	publishFailed        atomic.Int64
	publishDurationTotal atomic.Int64
	consumed             atomic.Int64
	consumeFailed        atomic.Int64
	consumeDurationTotal atomic.Int64
}

// MetricsSnapshot is a point-in-time copy suitable for JSON health output.
type MetricsSnapshot struct {
	MessagesPublished       int64         `json:"messages_published"`
	MessagesPublishedFailed int64         `json:"messages_published_failed"`
	AvgPublishDuration      time.Duration `json:"avg_publish_duration_ns"`
	MessagesConsumed        int64         `json:"messages_consumed"`
	MessagesConsumedFailed  int64         `json:"messages_consumed_failed"`
	AvgConsumeDuration      time.Duration `json:"avg_consume_duration_ns"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		MessagesPublished:       m.published.Load(),
		MessagesPublishedFailed: m.publishFailed.Load(),
		AvgPublishDuration:      average(m.publishDurationTotal.Load(), m.published.Load()+m.publishFailed.Load()),
		MessagesConsumed:        m.consumed.Load(),
		MessagesConsumedFailed:  m.consumeFailed.Load(),
		AvgConsumeDuration:      average(m.consumeDurationTotal.Load(), m.consumed.Load()+m.consumeFailed.Load()),
	}
}

func average(total, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(total / count)
}

func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.publishDurationTotal.Add(int64(time.Since(start)))
		if err != nil {
			m.publishFailed.Add(1)
		} else {
			m.published.Add(1)
		}
		return err
	}
}

func (m *Metrics) ConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.consumeDurationTotal.Add(int64(time.Since(start)))
		if err != nil {
			m.consumeFailed.Add(1)
		} else {
			m.consumed.Add(1)
		}
		return err
	}
}
