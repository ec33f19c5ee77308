package notifier

import (
	"context"
	"fmt"
	"strconv"

	"rentsplit/pkg/kafka"
	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
)

const (
	SnapshotEventType     = "auction.snapshot"
	SnapshotSchemaVersion = "1"
)

type snapshotProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher delivers a snapshot to local subscribers right away and
// then to the snapshot topic, keyed by auction id so one auction's
// snapshots stay ordered. Other instances pick it up through
// NewSnapshotHandler.
type KafkaPublisher struct {
	hub        *Hub
	producer   snapshotProducer
	instanceID string
	log        *logger.Logger
}

func NewKafkaPublisher(hub *Hub, producer snapshotProducer, instanceID string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		hub:        hub,
		producer:   producer,
		instanceID: instanceID,
		log:        log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, snapshot model.AuctionSnapshot) error {
	if snapshot.Auction == nil {
		return nil
	}
	if err := p.hub.Publish(ctx, snapshot); err != nil {
		return err
	}

	msg := kafka.NewMessage().
		WithKey(snapshot.Auction.ID).
		WithValue(snapshot).
		WithEventType(SnapshotEventType).
		WithSchemaVersion(SnapshotSchemaVersion).
		WithSource(p.instanceID).
		WithHeader("version", strconv.FormatInt(snapshot.Auction.Version, 10)).
		Build()

	if err := p.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish snapshot of auction %s: %w", snapshot.Auction.ID, err)
	}
	return nil
}

// NewSnapshotHandler feeds snapshots published by other instances into the
// local hub. Messages this instance produced were already delivered.
func NewSnapshotHandler(hub *Hub, instanceID string, log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		if msg.GetSource() == instanceID {
			return nil
		}
		if eventType := msg.GetEventType(); eventType != SnapshotEventType {
			log.Debug("Ignoring message of unexpected type", "event_type", eventType, "key", msg.Key)
			return nil
		}

		var snapshot model.AuctionSnapshot
		if err := msg.DecodeValue(&snapshot); err != nil {
			return kafka.NewPermanentError("decode auction snapshot", err)
		}
		if snapshot.Auction == nil {
			return kafka.NewPermanentError("decode auction snapshot", fmt.Errorf("message %s has no auction", msg.GetEventID()))
		}
		return hub.Publish(ctx, snapshot)
	}
}

type snapshotConsumer interface {
	Start(ctx context.Context) error
}

// SnapshotWorker runs the snapshot consumer for the lifetime of the app.
type SnapshotWorker struct {
	consumer snapshotConsumer
}

func NewSnapshotWorker(consumer snapshotConsumer) *SnapshotWorker {
	return &SnapshotWorker{consumer: consumer}
}

func (w *SnapshotWorker) Name() string {
	return "auction-snapshot-consumer"
}

func (w *SnapshotWorker) Start(ctx context.Context) error {
	return w.consumer.Start(ctx)
}
