package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	auctionserrors "rentsplit/internal/auctions/errors"
	"rentsplit/pkg/model"
)

// memoryAuctionRepository keeps snapshots in process. Writers of the same
// auction are serialized by a per-auction mutex; readers always get clones.
type memoryAuctionRepository struct {
	mu       sync.RWMutex
	auctions map[string]*model.Auction
	locks    map[string]*sync.Mutex
	now      func() time.Time
}

func NewMemoryAuctionRepository() AuctionRepository {
	return &memoryAuctionRepository{
		auctions: make(map[string]*model.Auction),
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
	}
}

func (r *memoryAuctionRepository) Create(ctx context.Context, auction *model.Auction) error {
	if err := validateID(auction.ID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.auctions[auction.ID]; exists {
		return fmt.Errorf("%w: %s", auctionserrors.ErrAlreadyExists, auction.ID)
	}

	now := r.now().UTC().Truncate(time.Millisecond)
	auction.CreatedAt = now
	auction.UpdatedAt = now
	auction.Version = 1

	r.auctions[auction.ID] = auction.Clone()
	r.locks[auction.ID] = &sync.Mutex{}
	return nil
}

func (r *memoryAuctionRepository) FindByID(ctx context.Context, id string) (*model.Auction, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.auctions[id]
	if !ok {
		return nil, auctionserrors.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *memoryAuctionRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, error) {
	r.mu.RLock()
	all := make([]*model.Auction, 0, len(r.auctions))
	for _, a := range r.auctions {
		all = append(all, a)
	}
	r.mu.RUnlock()

	slices.SortFunc(all, func(a, b *model.Auction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if offset >= int64(len(all)) {
		return []*model.Auction{}, nil
	}
	end := min(int(offset)+limit, len(all))

	page := make([]*model.Auction, 0, end-int(offset))
	for _, a := range all[offset:end] {
		page = append(page, a.Clone())
	}
	return page, nil
}

func (r *memoryAuctionRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.auctions)), nil
}

func (r *memoryAuctionRepository) Update(ctx context.Context, id string, fn UpdateFunc) (*model.Auction, []model.Event, error) {
	if err := validateID(id); err != nil {
		return nil, nil, err
	}

	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, auctionserrors.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	r.mu.RLock()
	current := r.auctions[id]
	r.mu.RUnlock()

	next, events, err := fn(current.Clone())
	if err != nil {
		return nil, nil, err
	}
	if len(events) == 0 {
		return current.Clone(), nil, nil
	}

	next.ID = current.ID
	next.CreatedAt = current.CreatedAt
	next.Version = current.Version + 1
	next.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)

	r.mu.Lock()
	r.auctions[id] = next.Clone()
	r.mu.Unlock()

	return next, events, nil
}

func (r *memoryAuctionRepository) Ping(ctx context.Context) error {
	return nil
}
