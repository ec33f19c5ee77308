package notifier

import (
	"context"
	"sync"

	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
)

// Publisher forwards a persisted snapshot to whoever watches the auction.
type Publisher interface {
	Publish(ctx context.Context, snapshot model.AuctionSnapshot) error
}

// Subscriber registers a callback for one auction. The returned function
// removes it and is safe to call more than once.
type Subscriber interface {
	Subscribe(auctionID string, onSnapshot func(model.AuctionSnapshot)) (unsubscribe func())
}

// Hub fans snapshots out to the callbacks registered on this instance.
// Callbacks run on the publishing goroutine and must not block.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]func(model.AuctionSnapshot)
	nextID uint64
	closed bool
	log    *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[uint64]func(model.AuctionSnapshot)),
		log:  log,
	}
}

func (h *Hub) Subscribe(auctionID string, onSnapshot func(model.AuctionSnapshot)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return func() {}
	}

	h.nextID++
	id := h.nextID
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[uint64]func(model.AuctionSnapshot))
	}
	h.subs[auctionID][id] = onSnapshot

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[auctionID], id)
			if len(h.subs[auctionID]) == 0 {
				delete(h.subs, auctionID)
			}
		})
	}
}

func (h *Hub) Publish(ctx context.Context, snapshot model.AuctionSnapshot) error {
	if snapshot.Auction == nil {
		return nil
	}

	h.mu.RLock()
	callbacks := make([]func(model.AuctionSnapshot), 0, len(h.subs[snapshot.Auction.ID]))
	for _, fn := range h.subs[snapshot.Auction.ID] {
		callbacks = append(callbacks, fn)
	}
	h.mu.RUnlock()

	for _, fn := range callbacks {
		h.deliver(snapshot, fn)
	}
	return nil
}

func (h *Hub) deliver(snapshot model.AuctionSnapshot, fn func(model.AuctionSnapshot)) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Snapshot subscriber panicked",
				logger.AUCTION, snapshot.Auction.ID,
				"panic", r,
			)
		}
	}()
	fn(snapshot)
}

// Subscribers reports how many callbacks are registered for an auction.
func (h *Hub) Subscribers(auctionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[auctionID])
}

// Close drops every subscription; later Subscribe calls are no-ops.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subs = make(map[string]map[uint64]func(model.AuctionSnapshot))
	return nil
}
