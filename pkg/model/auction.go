package model

import (
	"slices"
	"time"
)

type Phase string

const (
	PhaseWaiting   Phase = "waiting"
	PhaseSelecting Phase = "selecting"
	PhaseBidding   Phase = "bidding"
	PhaseCompleted Phase = "completed"
)

type RoomStatus string

const (
	RoomAvailable RoomStatus = "available"
	RoomContested RoomStatus = "contested"
	RoomAssigned  RoomStatus = "assigned"
)

// Strategy selects how a final result is produced.
type Strategy string

const (
	StrategyIncremental Strategy = "incremental"
	StrategyPreference  Strategy = "preference"
	StrategyOptimal     Strategy = "optimal"
)

// ContenderPolicy decides which contenders of a contested room must bid
// before the room can be resolved.
type ContenderPolicy string

const (
	ContendersAll       ContenderPolicy = "all"
	ContendersConnected ContenderPolicy = "connected"
)

type Room struct {
	ID             string     `json:"id" bson:"id"`
	Name           string     `json:"name" bson:"name"`
	BasePrice      float64    `json:"base_price" bson:"base_price"`
	CurrentPrice   float64    `json:"current_price" bson:"current_price"`
	AssignedUserID string     `json:"assigned_user_id,omitempty" bson:"assigned_user_id,omitempty"`
	Status         RoomStatus `json:"status" bson:"status"`
}

type User struct {
	ID             string `json:"id" bson:"id"`
	Name           string `json:"name" bson:"name"`
	AssignedRoomID string `json:"assigned_room_id,omitempty" bson:"assigned_room_id,omitempty"`
	Connected      bool   `json:"connected" bson:"connected"`
}

type Bid struct {
	UserID string  `json:"user_id" bson:"user_id"`
	RoomID string  `json:"room_id,omitempty" bson:"room_id,omitempty"`
	Amount float64 `json:"amount" bson:"amount"`
}

// Conflict lists the users contending for one room.
type Conflict struct {
	RoomID  string   `json:"room_id"`
	UserIDs []string `json:"user_ids"`
}

// Result is one row of a final allocation.
type Result struct {
	RoomID string  `json:"room_id"`
	UserID string  `json:"user_id"`
	Price  float64 `json:"price"`
}

// Auction is the full state of one rent auction. Transitions never modify
// an Auction in place; they work on a Clone.
type Auction struct {
	ID        string  `json:"id" bson:"_id"`
	TotalRent float64 `json:"total_rent" bson:"total_rent"`
	Phase     Phase   `json:"phase" bson:"phase"`
	Round     int     `json:"round" bson:"round"`

	Rooms map[string]Room `json:"rooms" bson:"rooms"`
	Users map[string]User `json:"users" bson:"users"`

	// userID -> roomID for the current selecting round.
	Selections map[string]string `json:"selections" bson:"selections"`
	// roomID -> userID -> amount for open contested rooms.
	Bids map[string]map[string]float64 `json:"bids" bson:"bids"`
	// roomID -> contending userIDs, natural id order.
	Conflicts map[string][]string `json:"conflicts" bson:"conflicts"`

	// Sealed per-room valuations and ranked preferences used by the batch solvers.
	Valuations  map[string]map[string]float64 `json:"valuations,omitempty" bson:"valuations,omitempty"`
	Preferences map[string][]string           `json:"preferences,omitempty" bson:"preferences,omitempty"`

	Version   int64     `json:"version" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	c := *a

	c.Rooms = make(map[string]Room, len(a.Rooms))
	for id, r := range a.Rooms {
		c.Rooms[id] = r
	}
	c.Users = make(map[string]User, len(a.Users))
	for id, u := range a.Users {
		c.Users[id] = u
	}
	c.Selections = make(map[string]string, len(a.Selections))
	for id, s := range a.Selections {
		c.Selections[id] = s
	}
	c.Bids = cloneNested(a.Bids)
	c.Conflicts = make(map[string][]string, len(a.Conflicts))
	for id, users := range a.Conflicts {
		c.Conflicts[id] = slices.Clone(users)
	}
	c.Valuations = cloneNested(a.Valuations)
	c.Preferences = make(map[string][]string, len(a.Preferences))
	for id, pref := range a.Preferences {
		c.Preferences[id] = slices.Clone(pref)
	}
	return &c
}

func cloneNested(src map[string]map[string]float64) map[string]map[string]float64 {
	dst := make(map[string]map[string]float64, len(src))
	for k, inner := range src {
		m := make(map[string]float64, len(inner))
		for ik, v := range inner {
			m[ik] = v
		}
		dst[k] = m
	}
	return dst
}

// RoomIDs returns room ids in natural order (r2 before r10).
func (a *Auction) RoomIDs() []string {
	ids := make([]string, 0, len(a.Rooms))
	for id := range a.Rooms {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// UserIDs returns user ids in natural order.
func (a *Auction) UserIDs() []string {
	ids := make([]string, 0, len(a.Users))
	for id := range a.Users {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

func (a *Auction) UnassignedUserIDs() []string {
	var ids []string
	for _, id := range a.UserIDs() {
		if a.Users[id].AssignedRoomID == "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a *Auction) OpenConflicts() []Conflict {
	roomIDs := make([]string, 0, len(a.Conflicts))
	for id := range a.Conflicts {
		roomIDs = append(roomIDs, id)
	}
	SortIDs(roomIDs)

	conflicts := make([]Conflict, 0, len(roomIDs))
	for _, id := range roomIDs {
		conflicts = append(conflicts, Conflict{RoomID: id, UserIDs: slices.Clone(a.Conflicts[id])})
	}
	return conflicts
}

// RoomBids returns the bids placed on a room in natural user id order.
func (a *Auction) RoomBids(roomID string) []Bid {
	userIDs := make([]string, 0, len(a.Bids[roomID]))
	for id := range a.Bids[roomID] {
		userIDs = append(userIDs, id)
	}
	SortIDs(userIDs)

	bids := make([]Bid, 0, len(userIDs))
	for _, id := range userIDs {
		bids = append(bids, Bid{UserID: id, RoomID: roomID, Amount: a.Bids[roomID][id]})
	}
	return bids
}

// Assignments returns the current room assignments in natural room order.
func (a *Auction) Assignments() []Result {
	var results []Result
	for _, id := range a.RoomIDs() {
		r := a.Rooms[id]
		if r.AssignedUserID == "" {
			continue
		}
		results = append(results, Result{RoomID: id, UserID: r.AssignedUserID, Price: r.CurrentPrice})
	}
	return results
}
