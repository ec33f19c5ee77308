package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	auctionserrors "rentsplit/internal/auctions/errors"
	"rentsplit/internal/auctions/engine"
	"rentsplit/internal/auctions/notifier"
	"rentsplit/internal/auctions/repository"
	"rentsplit/internal/auctions/validator"
	"rentsplit/pkg/config"
	apperrors "rentsplit/pkg/errors"
	"rentsplit/pkg/logger"
	"rentsplit/pkg/model"
	"rentsplit/pkg/sanitizer"
)

type AuctionService interface {
	Create(ctx context.Context, req *model.CreateAuctionRequest) (*model.Auction, error)
	GetByID(ctx context.Context, id string) (*model.Auction, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, int64, error)
	Join(ctx context.Context, id string, req *model.JoinRequest) (model.AuctionSnapshot, error)
	SetPresence(ctx context.Context, id, userID string, req *model.PresenceRequest) (model.AuctionSnapshot, error)
	Start(ctx context.Context, id string) (model.AuctionSnapshot, error)
	Select(ctx context.Context, id, userID string, req *model.SelectionRequest) (model.AuctionSnapshot, error)
	Bid(ctx context.Context, id, roomID, userID string, req *model.BidRequest) (model.AuctionSnapshot, error)
	SubmitValuations(ctx context.Context, id, userID string, req *model.ValuationsRequest) (model.AuctionSnapshot, error)
	ComputeResults(ctx context.Context, id string, req *model.ResultsRequest) ([]model.Result, error)
	// Subscribe registers onSnapshot for every later change of the auction
	// and returns the snapshot current at subscription time.
	Subscribe(ctx context.Context, id string, onSnapshot func(model.AuctionSnapshot)) (model.AuctionSnapshot, func(), error)
}

type auctionService struct {
	repo         repository.AuctionRepository
	validator    *validator.AuctionValidator
	orchestrator *engine.Orchestrator
	publisher    notifier.Publisher
	subscriber   notifier.Subscriber
	cfg          *config.Config
}

func NewAuctionService(
	repo repository.AuctionRepository,
	validator *validator.AuctionValidator,
	orchestrator *engine.Orchestrator,
	publisher notifier.Publisher,
	subscriber notifier.Subscriber,
	cfg *config.Config,
) AuctionService {
	return &auctionService{
		repo:         repo,
		validator:    validator,
		orchestrator: orchestrator,
		publisher:    publisher,
		subscriber:   subscriber,
		cfg:          cfg,
	}
}

func (s *auctionService) Create(ctx context.Context, req *model.CreateAuctionRequest) (*model.Auction, error) {
	if err := s.validate(s.validator.ValidateCreate(req)); err != nil {
		return nil, err
	}

	auction, err := engine.CreateAuction(
		uuid.New().String(),
		req.TotalRent,
		sanitizer.NormalizeNames(req.Rooms),
		sanitizer.NormalizeNames(req.Users),
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, auction); err != nil {
		if errors.Is(err, auctionserrors.ErrAlreadyExists) {
			return nil, apperrors.Conflict("Auction already exists")
		}
		s.cfg.Log.Error("Failed to create auction", "error", err)
		return nil, apperrors.Internal("Failed to create auction", err)
	}

	s.cfg.Log.ForAuction(auction.ID).Info("Auction created successfully",
		"total_rent", auction.TotalRent,
		"rooms", len(auction.Rooms),
		"users", len(auction.Users),
	)
	return auction, nil
}

func (s *auctionService) GetByID(ctx context.Context, id string) (*model.Auction, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Auction ID cannot be empty")
	}

	auction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepositoryError(id, "Failed to retrieve auction", err)
	}
	return auction, nil
}

func (s *auctionService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Auction, int64, error) {
	var count int64
	var auctions []*model.Auction
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count auctions", "error", errCount)
			errCount = apperrors.Internal("Failed to count auctions", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		auctions, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list auctions", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve auctions", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return auctions, count, nil
}

func (s *auctionService) Join(ctx context.Context, id string, req *model.JoinRequest) (model.AuctionSnapshot, error) {
	if err := s.validate(s.validator.ValidateJoin(req)); err != nil {
		return model.AuctionSnapshot{}, err
	}
	return s.transition(ctx, id, "join", func(a *model.Auction) (*model.Auction, []model.Event, error) {
		return s.orchestrator.AddUser(a, req.Name)
	})
}

func (s *auctionService) SetPresence(ctx context.Context, id, userID string, req *model.PresenceRequest) (model.AuctionSnapshot, error) {
	userID = sanitizer.NormalizeID(userID)
	if err := s.validate(validator.Merge(s.validator.ValidateUserID(userID), s.validator.ValidatePresence(req))); err != nil {
		return model.AuctionSnapshot{}, err
	}
	connected := *req.Connected
	return s.transition(ctx, id, "presence", func(a *model.Auction) (*model.Auction, []model.Event, error) {
		return s.orchestrator.SetPresence(a, userID, connected)
	})
}

func (s *auctionService) Start(ctx context.Context, id string) (model.AuctionSnapshot, error) {
	return s.transition(ctx, id, "start", s.orchestrator.Start)
}

func (s *auctionService) Select(ctx context.Context, id, userID string, req *model.SelectionRequest) (model.AuctionSnapshot, error) {
	userID = sanitizer.NormalizeID(userID)
	if req.RoomID != nil {
		normalized := sanitizer.NormalizeID(*req.RoomID)
		req.RoomID = &normalized
	}
	if err := s.validate(validator.Merge(s.validator.ValidateUserID(userID), s.validator.ValidateSelection(req))); err != nil {
		return model.AuctionSnapshot{}, err
	}
	roomID := ""
	if req.RoomID != nil && *req.RoomID != "" {
		roomID = *req.RoomID
	}
	return s.transition(ctx, id, "select", func(a *model.Auction) (*model.Auction, []model.Event, error) {
		return s.orchestrator.ApplySelections(a, map[string]string{userID: roomID})
	})
}

func (s *auctionService) Bid(ctx context.Context, id, roomID, userID string, req *model.BidRequest) (model.AuctionSnapshot, error) {
	roomID = sanitizer.NormalizeID(roomID)
	userID = sanitizer.NormalizeID(userID)
	err := validator.Merge(
		s.validator.ValidateRoomID(roomID),
		s.validator.ValidateUserID(userID),
		s.validator.ValidateBid(req),
	)
	if err := s.validate(err); err != nil {
		return model.AuctionSnapshot{}, err
	}
	amount := *req.Amount
	return s.transition(ctx, id, "bid", func(a *model.Auction) (*model.Auction, []model.Event, error) {
		return s.orchestrator.ApplyBid(a, roomID, userID, amount)
	})
}

func (s *auctionService) SubmitValuations(ctx context.Context, id, userID string, req *model.ValuationsRequest) (model.AuctionSnapshot, error) {
	userID = sanitizer.NormalizeID(userID)
	if req.Preference != nil {
		req.Preference = sanitizer.NormalizeIDs(req.Preference)
	}
	if err := s.validate(validator.Merge(s.validator.ValidateUserID(userID), s.validator.ValidateValuations(req))); err != nil {
		return model.AuctionSnapshot{}, err
	}
	return s.transition(ctx, id, "valuations", func(a *model.Auction) (*model.Auction, []model.Event, error) {
		return s.orchestrator.SubmitValuations(a, userID, req.Valuations, req.Preference)
	})
}

// ComputeResults never persists: a final allocation is a read over the
// stored valuations.
func (s *auctionService) ComputeResults(ctx context.Context, id string, req *model.ResultsRequest) ([]model.Result, error) {
	req.Strategy = model.Strategy(sanitizer.NormalizeKeyword(string(req.Strategy)))
	if err := s.validate(s.validator.ValidateResults(req)); err != nil {
		return nil, err
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = s.cfg.DefaultStrategy
	}

	auction, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	results, err := s.orchestrator.ComputeFinal(auction, strategy)
	if err != nil {
		s.logFailure(s.cfg.Log.ForAuction(id), "results", err)
		return nil, err
	}

	s.cfg.Log.ForAuction(id).Info("Final allocation computed",
		"strategy", strategy,
		"results", len(results),
	)
	return results, nil
}

func (s *auctionService) Subscribe(ctx context.Context, id string, onSnapshot func(model.AuctionSnapshot)) (model.AuctionSnapshot, func(), error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return model.AuctionSnapshot{}, nil, err
	}

	unsubscribe := s.subscriber.Subscribe(id, onSnapshot)

	// Read again after subscribing so no change falls between the two.
	auction, err := s.GetByID(ctx, id)
	if err != nil {
		unsubscribe()
		return model.AuctionSnapshot{}, nil, err
	}
	return model.NewSnapshot(auction, nil), unsubscribe, nil
}

// transition runs fn through the repository's atomic update, then
// publishes the stored snapshot with the events that produced it.
func (s *auctionService) transition(ctx context.Context, id, operation string, fn repository.UpdateFunc) (model.AuctionSnapshot, error) {
	log := s.cfg.Log.ForAuction(id)

	auction, events, err := s.repo.Update(ctx, id, fn)
	if err != nil {
		if apperrors.IsAppError(err) {
			s.logFailure(log, operation, err)
			return model.AuctionSnapshot{}, err
		}
		return model.AuctionSnapshot{}, s.mapRepositoryError(id, "Failed to update auction", err)
	}

	snapshot := model.NewSnapshot(auction, events)
	if len(events) == 0 {
		return snapshot, nil
	}

	log.Info("Auction updated",
		"operation", operation,
		"phase", auction.Phase,
		"round", auction.Round,
		"version", auction.Version,
		"events", len(events),
	)

	if err := s.publisher.Publish(ctx, snapshot); err != nil {
		log.Warn("Failed to publish auction snapshot", "version", auction.Version, "error", err)
	}
	return snapshot, nil
}

func (s *auctionService) mapRepositoryError(id, message string, err error) error {
	switch {
	case errors.Is(err, auctionserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Auction", id)
	case errors.Is(err, auctionserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid auction ID format")
	case errors.Is(err, auctionserrors.ErrLocked), errors.Is(err, auctionserrors.ErrVersionConflict):
		s.cfg.Log.ForAuction(id).Warn("Auction is busy", "error", err)
		return apperrors.Conflict("Auction is being modified by another request, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Auction store did not respond in time")
	default:
		s.cfg.Log.ForAuction(id).Error(message, "error", err)
		return apperrors.Internal(message, err)
	}
}

func (s *auctionService) logFailure(log *logger.Logger, operation string, err error) {
	if apperrors.HasCode(err, apperrors.CodeInvariantViolation) {
		log.Error("Transition broke an auction invariant", "operation", operation, "error", err)
		return
	}
	log.Warn("Transition rejected", "operation", operation, "error", err)
}

func (s *auctionService) validate(err error) error {
	if err == nil {
		return nil
	}
	s.cfg.Log.Warn("Auction request validation failed", "error", err)

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Auction request validation failed", verrs.Details())
	}
	return apperrors.Validation("Auction request validation failed", map[string]any{"error": err.Error()})
}
