package main

import (
	"context"
	"time"

	mongoMigration "rentsplit/internal/migrations/mongo"
	"rentsplit/pkg/config"
)

const JobName = "mongo-migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	if cfg.StoreBackend != config.StoreMongo {
		cfg.Log.Info("Store backend is not Mongo, nothing to migrate", "store_backend", cfg.StoreBackend)
		return
	}
	cfg.SetMongo()

	cfg.Log.Info("Starting Mongo migration job")
	err := mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
	cfg.GracefulShutdown()
	if err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	cfg.Log.Info("Migration completed successfully")
}
