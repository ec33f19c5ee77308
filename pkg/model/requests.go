package model

// Request bodies of the auction API. Validation tags are enforced by
// internal/auctions/validator; semantic checks against the current
// snapshot happen in the engine.

type CreateAuctionRequest struct {
	TotalRent float64  `json:"total_rent" validate:"gt=0,lte=1000000000"`
	Rooms     []string `json:"rooms" validate:"room_names,dive,required,max=64"`
	Users     []string `json:"users" validate:"omitempty,dive,required,max=64"`
}

type JoinRequest struct {
	Name string `json:"name" validate:"required,max=64"`
}

type PresenceRequest struct {
	Connected *bool `json:"connected" validate:"required"`
}

// SelectionRequest picks a room for the current round; a null or empty
// room_id withdraws the choice.
type SelectionRequest struct {
	RoomID *string `json:"room_id" validate:"omitempty,room_id"`
}

type BidRequest struct {
	Amount *float64 `json:"amount" validate:"required,gt=0"`
}

type ValuationsRequest struct {
	Valuations map[string]float64 `json:"valuations" validate:"required,min=1,dive,keys,room_id,endkeys,gte=0"`
	Preference []string           `json:"preference" validate:"omitempty,unique,dive,room_id"`
}

type ResultsRequest struct {
	Strategy Strategy `json:"strategy" validate:"omitempty,oneof=incremental preference optimal"`
}

// AuctionSnapshot is what clients and stream subscribers receive.
type AuctionSnapshot struct {
	Auction *Auction   `json:"auction"`
	Events  []Event    `json:"events,omitempty"`
	Open    []Conflict `json:"open_conflicts"`
}

func NewSnapshot(a *Auction, events []Event) AuctionSnapshot {
	return AuctionSnapshot{
		Auction: a,
		Events:  events,
		Open:    a.OpenConflicts(),
	}
}
