package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	auctionserrors "rentsplit/internal/auctions/errors"
	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
)

// Locker serializes writers of one auction across instances with an
// advisory lock document. Expired locks are stolen so a crashed holder
// blocks others for at most one TTL.
type Locker struct {
	locks         AuctionLockRepository
	log           *logger.Logger
	ttl           time.Duration
	retryInterval time.Duration
	now           func() time.Time
	isDuplicate   func(error) bool
}

func NewLocker(locks AuctionLockRepository, log *logger.Logger, ttl, retryInterval time.Duration) *Locker {
	return &Locker{
		locks:         locks,
		log:           log,
		ttl:           ttl,
		retryInterval: retryInterval,
		now:           time.Now,
		isDuplicate:   mongo.IsDuplicateKeyError,
	}
}

// Acquire blocks until the lock is held, ctx ends, or one TTL passes. The
// returned release func never fails the caller; it only logs.
func (l *Locker) Acquire(ctx context.Context, auctionID string) (func(), error) {
	owner := uuid.NewString()
	deadline := l.now().Add(l.ttl)

	for {
		now := l.now().UTC()
		lock := &model.AuctionLock{
			ID:        auctionID,
			Owner:     owner,
			ExpiresAt: now.Add(l.ttl),
		}
		err := l.locks.Create(ctx, lock)
		if err == nil {
			return func() { l.release(auctionID, owner) }, nil
		}
		if !l.isDuplicate(err) {
			return nil, fmt.Errorf("failed to acquire auction lock: %w", err)
		}

		if err := l.locks.DeleteExpired(ctx, auctionID, now); err != nil {
			l.log.Warn("Failed to clear expired auction lock", "auction_id", auctionID, "error", err)
		}

		if !l.now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", auctionserrors.ErrLocked, auctionID)
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(auctionserrors.ErrLocked, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *Locker) release(auctionID, owner string) {
	ctx, cancel := context.WithTimeout(context.Background(), l.ttl)
	defer cancel()

	if err := l.locks.Delete(ctx, auctionID, owner); err != nil {
		l.log.Error("Failed to release auction lock",
			"auction_id", auctionID,
			"error", err,
		)
	}
}
