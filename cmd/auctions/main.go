package main

import (
	"github.com/google/uuid"

	"rentsplit/internal/auctions/engine"
	"rentsplit/internal/auctions/handler"
	"rentsplit/internal/auctions/notifier"
	"rentsplit/internal/auctions/repository"
	"rentsplit/internal/auctions/service"
	"rentsplit/internal/auctions/validator"
	"rentsplit/pkg/app"
	"rentsplit/pkg/config"
	"rentsplit/pkg/kafka"
	kafka_config "rentsplit/pkg/kafka/config"
	kafka_middleware "rentsplit/pkg/kafka/middleware"
)

const ServiceName = "auctions"

func main() {
	cfg := config.Load(ServiceName)
	cfg.Log.Info("Starting Auctions service")

	serverApp := app.NewApplication()

	repo := initRepository(cfg, serverApp)
	hub := notifier.NewHub(cfg.Log)
	publisher, metrics := initPublisher(cfg, serverApp, hub)

	auctionService := service.NewAuctionService(
		repo,
		validator.NewAuctionValidator(cfg.Log, cfg.MaxRooms),
		engine.NewOrchestrator(cfg.ContenderPolicy),
		publisher,
		hub,
		cfg,
	)
	cfg.Log.Info("Auction service initialized",
		"store_backend", cfg.StoreBackend,
		"contender_policy", cfg.ContenderPolicy,
		"default_strategy", cfg.DefaultStrategy,
	)

	stream := handler.NewStreamHandler(auctionService, cfg.Log)
	serverApp.OnShutdown(func() { _ = hub.Close() })
	serverApp.OnShutdown(stream.Close)

	serverApp.SetApp(
		cfg,
		handler.NewHealthHandler(repo, metrics, cfg.Log),
		handler.NewAuctionHandler(auctionService, cfg.Log),
		stream,
	)
	serverApp.Run()
}

func initRepository(cfg *config.Config, serverApp *app.Application) repository.AuctionRepository {
	if cfg.StoreBackend == config.StoreMemory {
		cfg.Log.Warn("Using in-memory auction store, state is lost on restart")
		return repository.NewMemoryAuctionRepository()
	}

	cfg.SetMongo()
	serverApp.OnShutdown(cfg.GracefulShutdown)
	return repository.NewMongoAuctionRepository(cfg)
}

// initPublisher returns the hub itself when Kafka is disabled, so snapshots
// only reach clients connected to this instance.
func initPublisher(cfg *config.Config, serverApp *app.Application, hub *notifier.Hub) (notifier.Publisher, *kafka_middleware.Metrics) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, snapshots are delivered in process only")
		return hub, nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	metrics := kafka_middleware.NewMetrics()
	instanceID := uuid.NewString()

	producer, err := kafka.NewProducer(kafkaCfg, cfg.Log, kafkaCfg.SnapshotTopic, kafkaCfg.SnapshotDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create snapshot producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(metrics.ProducerMiddleware())

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.Log,
		kafkaCfg.SnapshotTopic,
		kafkaCfg.SnapshotGroupID,
		kafkaCfg.SnapshotDLQTopic,
		notifier.NewSnapshotHandler(hub, instanceID, cfg.Log),
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create snapshot consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	consumer.Use(metrics.ConsumerMiddleware())

	serverApp.AddWorker(notifier.NewSnapshotWorker(consumer))
	serverApp.OnShutdown(func() {
		if err := consumer.Close(); err != nil {
			cfg.Log.Error("Failed to close snapshot consumer", "error", err)
		}
	})
	serverApp.OnShutdown(func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close snapshot producer", "error", err)
		}
	})

	cfg.Log.Info("Kafka snapshot fan-out enabled",
		"topic", kafkaCfg.SnapshotTopic,
		"group_id", kafkaCfg.SnapshotGroupID,
		"instance_id", instanceID,
	)
	return notifier.NewKafkaPublisher(hub, producer, instanceID, cfg.Log), metrics
}
