package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	auctionserrors "rentsplit/internal/auctions/errors"
	"rentsplit/pkg/config"
	mongotx "rentsplit/pkg/db/mongo"
	"rentsplit/pkg/model"
)

const (
	CollectionName = "Auctions"
)

// UpdateFunc computes the next snapshot from the current one. It may run
// more than once per Update when a concurrent writer wins, so it must be pure.
type UpdateFunc func(current *model.Auction) (*model.Auction, []model.Event, error)

type AuctionRepository interface {
	Create(ctx context.Context, auction *model.Auction) error
	FindByID(ctx context.Context, id string) (*model.Auction, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, error)
	Count(ctx context.Context) (int64, error)
	// Update applies fn atomically: the stored snapshot is replaced only if
	// nobody else replaced it since it was read.
	Update(ctx context.Context, id string, fn UpdateFunc) (*model.Auction, []model.Event, error)
	Ping(ctx context.Context) error
}

type mongoAuctionRepository struct {
	cfg        *config.Config
	client     *mongo.Client
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
	locker     *Locker
}

func NewMongoAuctionRepository(cfg *config.Config) AuctionRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAuctionRepository{
		cfg:        cfg,
		client:     cfg.Client.Mongo,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
		locker:     NewLocker(NewAuctionLockRepository(cfg), cfg.Log, cfg.LockTTL, cfg.LockRetryInterval),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// A SessionContext cannot be wrapped without losing the session.
func (r *mongoAuctionRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", auctionserrors.ErrInvalidID, id)
	}
	return nil
}

func (r *mongoAuctionRepository) Create(ctx context.Context, auction *model.Auction) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if err := validateID(auction.ID); err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	auction.CreatedAt = now
	auction.UpdatedAt = now
	auction.Version = 1

	if _, err := r.collection.InsertOne(ctx, auction); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", auctionserrors.ErrAlreadyExists, auction.ID)
		}
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *mongoAuctionRepository) FindByID(ctx context.Context, id string) (*model.Auction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if err := validateID(id); err != nil {
		return nil, err
	}
	return r.find(ctx, id)
}

func (r *mongoAuctionRepository) find(ctx context.Context, id string) (*model.Auction, error) {
	var auction model.Auction
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&auction)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, auctionserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find auction: %w", err)
	}
	ensureMaps(&auction)
	return &auction, nil
}

func (r *mongoAuctionRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find auctions: %w", err)
	}
	defer cursor.Close(ctx)

	var auctions []*model.Auction
	if err = cursor.All(ctx, &auctions); err != nil {
		return nil, fmt.Errorf("failed to decode auctions: %w", err)
	}
	for _, a := range auctions {
		ensureMaps(a)
	}
	return auctions, nil
}

func (r *mongoAuctionRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count auctions: %w", err)
	}
	return count, nil
}

func (r *mongoAuctionRepository) Update(ctx context.Context, id string, fn UpdateFunc) (*model.Auction, []model.Event, error) {
	if err := validateID(id); err != nil {
		return nil, nil, err
	}

	release, err := r.locker.Acquire(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var lastErr error
	for attempt := 1; attempt <= r.cfg.UpdateMaxRetries; attempt++ {
		next, events, err := r.updateOnce(ctx, id, fn)
		if err == nil {
			return next, events, nil
		}
		if !errors.Is(err, auctionserrors.ErrVersionConflict) && !mongotx.IsWriteConflict(err) {
			return nil, nil, err
		}
		lastErr = err
		r.cfg.Log.Warn("Auction update lost a race, retrying",
			"auction_id", id,
			"attempt", attempt,
			"error", err,
		)
	}
	return nil, nil, fmt.Errorf("%w: gave up after %d attempts: %v", auctionserrors.ErrVersionConflict, r.cfg.UpdateMaxRetries, lastErr)
}

func (r *mongoAuctionRepository) updateOnce(ctx context.Context, id string, fn UpdateFunc) (*model.Auction, []model.Event, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var (
		next   *model.Auction
		events []model.Event
	)
	err := r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		current, err := r.find(sessCtx, id)
		if err != nil {
			return err
		}

		candidate, evs, err := fn(current.Clone())
		if err != nil {
			return err
		}
		if len(evs) == 0 {
			next, events = current, nil
			return nil
		}

		candidate.ID = current.ID
		candidate.CreatedAt = current.CreatedAt
		candidate.Version = current.Version + 1
		candidate.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

		result, err := r.collection.ReplaceOne(sessCtx, bson.M{"_id": id, "version": current.Version}, candidate)
		if err != nil {
			return fmt.Errorf("failed to replace auction: %w", err)
		}
		if result.MatchedCount == 0 {
			return auctionserrors.ErrVersionConflict
		}
		next, events = candidate, evs
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return next, events, nil
}

func (r *mongoAuctionRepository) Ping(ctx context.Context) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()
	return r.client.Ping(ctx, nil)
}

// ensureMaps restores the empty maps that BSON decoding leaves nil.
func ensureMaps(a *model.Auction) {
	if a.Rooms == nil {
		a.Rooms = map[string]model.Room{}
	}
	if a.Users == nil {
		a.Users = map[string]model.User{}
	}
	if a.Selections == nil {
		a.Selections = map[string]string{}
	}
	if a.Bids == nil {
		a.Bids = map[string]map[string]float64{}
	}
	if a.Conflicts == nil {
		a.Conflicts = map[string][]string{}
	}
	if a.Valuations == nil {
		a.Valuations = map[string]map[string]float64{}
	}
	if a.Preferences == nil {
		a.Preferences = map[string][]string{}
	}
}
