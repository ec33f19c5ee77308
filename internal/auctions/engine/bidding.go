package engine

import (
	"fmt"
	"slices"

	apperrors "rentsplit/pkg/errors"
	"rentsplit/pkg/model"
)

// BidOutcome is the state of one contested room's bidding.
type BidOutcome string

const (
	BidCollecting BidOutcome = "collecting"
	BidResolved   BidOutcome = "resolved"
	BidTied       BidOutcome = "tied"
)

type Resolution struct {
	Outcome BidOutcome
	// WinnerID and Amount are set when Outcome is BidResolved.
	WinnerID string
	Amount   float64
	// TiedUserIDs holds the holders of the maximum bid when Outcome is BidTied.
	TiedUserIDs []string
}

// ResolveBids decides a contested room. It stays collecting until every
// required contender has a bid on record. The single highest bidder wins;
// two or more equal highest bids tie.
func ResolveBids(required []string, bids map[string]float64) Resolution {
	if len(bids) == 0 {
		return Resolution{Outcome: BidCollecting}
	}
	for _, userID := range required {
		if _, ok := bids[userID]; !ok {
			return Resolution{Outcome: BidCollecting}
		}
	}

	bidders := make([]string, 0, len(bids))
	for userID := range bids {
		bidders = append(bidders, userID)
	}
	model.SortIDs(bidders)

	var highest float64
	var leaders []string
	for _, userID := range bidders {
		amount := toCents(bids[userID])
		switch {
		case len(leaders) == 0 || amount > toCents(highest):
			highest = bids[userID]
			leaders = []string{userID}
		case amount == toCents(highest):
			leaders = append(leaders, userID)
		}
	}

	if len(leaders) > 1 {
		return Resolution{Outcome: BidTied, Amount: round2(highest), TiedUserIDs: leaders}
	}
	return Resolution{Outcome: BidResolved, WinnerID: leaders[0], Amount: round2(highest)}
}

// ValidateBidAmount rejects amounts that are not positive, below the room's
// current price or above the rent left once the other assigned rooms are
// paid for. The cap keeps every remaining room at a non-negative price.
func ValidateBidAmount(a *model.Auction, room model.Room, amount float64) error {
	ceiling := BidCeiling(a, room.ID)
	details := map[string]any{
		"room_id":       room.ID,
		"amount":        amount,
		"current_price": room.CurrentPrice,
		"total_rent":    a.TotalRent,
		"max_bid":       ceiling,
	}
	switch {
	case amount <= 0:
		return apperrors.Validation("Bid amount must be positive", details)
	case toCents(amount) < toCents(room.CurrentPrice):
		return apperrors.Validation(fmt.Sprintf("Bid amount must be at least the current price %.2f", room.CurrentPrice), details)
	case toCents(amount) > toCents(ceiling):
		return apperrors.Validation(fmt.Sprintf("Bid amount cannot exceed the unallocated rent %.2f", ceiling), details)
	}
	return nil
}

// BidCeiling is the total rent minus the prices of rooms assigned to
// someone, excluding roomID itself.
func BidCeiling(a *model.Auction, roomID string) float64 {
	remaining := toCents(a.TotalRent)
	for id, r := range a.Rooms {
		if id != roomID && r.AssignedUserID != "" {
			remaining -= toCents(r.CurrentPrice)
		}
	}
	return fromCents(remaining)
}

// requiredContenders applies the contender policy to a room's conflict.
func requiredContenders(a *model.Auction, contenders []string, policy model.ContenderPolicy) []string {
	if policy != model.ContendersConnected {
		return slices.Clone(contenders)
	}
	var required []string
	for _, userID := range contenders {
		if a.Users[userID].Connected {
			required = append(required, userID)
		}
	}
	return required
}
