package engine

import (
	"rentsplit/pkg/model"
)

// ConflictReport groups one round of selections by target room.
type ConflictReport struct {
	// ContestedRoomIDs holds rooms claimed by two or more users, natural order.
	ContestedRoomIDs []string
	// RoomToUsers maps every selected room to its claimants, natural order.
	RoomToUsers map[string][]string
}

// Uncontested returns room -> sole claimant for rooms with exactly one claimant.
func (r ConflictReport) Uncontested() map[string]string {
	out := make(map[string]string)
	for roomID, users := range r.RoomToUsers {
		if len(users) == 1 {
			out[roomID] = users[0]
		}
	}
	return out
}

// DetectConflicts groups selections (userID -> roomID) by room. Empty
// selections are ignored; a user who already holds a room counts as
// selecting that room instead of re-entering the pool.
func DetectConflicts(a *model.Auction, selections map[string]string) ConflictReport {
	report := ConflictReport{RoomToUsers: make(map[string][]string)}

	for _, userID := range a.UserIDs() {
		roomID := a.Users[userID].AssignedRoomID
		if roomID == "" {
			roomID = selections[userID]
		}
		if roomID == "" {
			continue
		}
		report.RoomToUsers[roomID] = append(report.RoomToUsers[roomID], userID)
	}

	for roomID, users := range report.RoomToUsers {
		if len(users) > 1 {
			report.ContestedRoomIDs = append(report.ContestedRoomIDs, roomID)
		}
	}
	model.SortIDs(report.ContestedRoomIDs)
	return report
}
