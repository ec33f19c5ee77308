package engine

import (
	"fmt"

	apperrors "rentsplit/pkg/errors"
	"rentsplit/pkg/model"
)

// CheckInvariants verifies the structural rules every aggregate must satisfy
// between transitions. A violation means the engine itself is wrong.
func CheckInvariants(a *model.Auction) error {
	if a.TotalRent <= 0 {
		return violation("total rent must be positive", map[string]any{"total_rent": a.TotalRent})
	}

	if len(a.Rooms) > 0 {
		var sum int64
		for _, r := range a.Rooms {
			sum += toCents(r.CurrentPrice)
		}
		drift := sum - toCents(a.TotalRent)
		if drift > 1 || drift < -1 {
			return violation("room prices do not sum to the total rent", map[string]any{
				"total_rent": a.TotalRent,
				"sum":        fromCents(sum),
			})
		}
	}

	assignedRooms := 0
	for id, r := range a.Rooms {
		if r.ID != id {
			return violation("room keyed under a foreign id", map[string]any{"room_id": r.ID, "key": id})
		}
		_, contested := a.Conflicts[id]
		switch {
		case r.AssignedUserID != "":
			assignedRooms++
			u, ok := a.Users[r.AssignedUserID]
			if !ok || u.AssignedRoomID != id {
				return violation("room assignment is not mirrored by its user", map[string]any{"room_id": id, "user_id": r.AssignedUserID})
			}
			if r.Status != model.RoomAssigned || contested {
				return violation(fmt.Sprintf("assigned room has status %s", r.Status), map[string]any{"room_id": id})
			}
		case contested:
			if r.Status != model.RoomContested {
				return violation(fmt.Sprintf("contested room has status %s", r.Status), map[string]any{"room_id": id})
			}
		default:
			if r.Status != model.RoomAvailable {
				return violation(fmt.Sprintf("free room has status %s", r.Status), map[string]any{"room_id": id})
			}
		}
	}

	for roomID := range a.Conflicts {
		if _, ok := a.Rooms[roomID]; !ok {
			return violation("conflict references an unknown room", map[string]any{"room_id": roomID})
		}
	}

	assignedUsers := 0
	for id, u := range a.Users {
		if u.ID != id {
			return violation("user keyed under a foreign id", map[string]any{"user_id": u.ID, "key": id})
		}
		if u.AssignedRoomID == "" {
			continue
		}
		assignedUsers++
		r, ok := a.Rooms[u.AssignedRoomID]
		if !ok || r.AssignedUserID != id {
			return violation("user assignment is not mirrored by its room", map[string]any{"user_id": id, "room_id": u.AssignedRoomID})
		}
	}

	fullyAssigned := len(a.Rooms) == len(a.Users) &&
		assignedRooms == len(a.Rooms) &&
		assignedUsers == len(a.Users)

	if a.Phase == model.PhaseCompleted && !fullyAssigned {
		return violation("completed auction has unassigned rooms or users", map[string]any{
			"rooms":          len(a.Rooms),
			"users":          len(a.Users),
			"assigned_rooms": assignedRooms,
		})
	}
	// An empty auction stays in waiting until it is started.
	if a.Phase != model.PhaseCompleted && fullyAssigned && len(a.Rooms) > 0 {
		return violation("every room is assigned but the auction is not completed", map[string]any{"phase": a.Phase})
	}
	return nil
}

func violation(message string, details map[string]any) error {
	return apperrors.InvariantViolation(message, details)
}
