package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"rentsplit/pkg/config"
	"rentsplit/pkg/model"
)

const LockCollectionName = "Auction_locks"

// AuctionLockRepository stores advisory lock documents keyed by auction id.
type AuctionLockRepository interface {
	// Create returns a duplicate key error if the lock is already held.
	Create(ctx context.Context, lock *model.AuctionLock) error
	// Delete releases the lock only if owner still holds it.
	Delete(ctx context.Context, lockID, owner string) error
	// DeleteExpired removes a lock whose holder died without releasing it.
	DeleteExpired(ctx context.Context, lockID string, now time.Time) error
}

type mongoAuctionLockRepository struct {
	collection *mongo.Collection
}

func NewAuctionLockRepository(cfg *config.Config) AuctionLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAuctionLockRepository{
		collection: db.Collection(LockCollectionName),
	}
}

func (r *mongoAuctionLockRepository) Create(ctx context.Context, lock *model.AuctionLock) error {
	lock.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, lock)
	return err
}

func (r *mongoAuctionLockRepository) Delete(ctx context.Context, lockID, owner string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "owner": owner})
	return err
}

func (r *mongoAuctionLockRepository) DeleteExpired(ctx context.Context, lockID string, now time.Time) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": lockID, "expires_at": bson.M{"$lte": now}})
	return err
}
