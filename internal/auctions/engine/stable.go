package engine

import (
	"slices"
	"sort"

	"rentsplit/pkg/model"
)

// IndexedResult pairs a room index with a user index.
type IndexedResult struct {
	RoomIndex int     `json:"room_index"`
	UserIndex int     `json:"user_index"`
	Price     float64 `json:"price"`
}

// PreferenceSet is the input of the deferred-acceptance matcher. Users and
// rooms are addressed by their position in UserIDs and RoomIDs.
type PreferenceSet struct {
	UserIDs []string
	RoomIDs []string
	// Preferences holds an explicit ranked list of room indices per user.
	// Users without one rank the rooms they valued, highest value first.
	Preferences map[string][]int
	// Valuations maps userID -> roomID -> amount; missing pairs are worth 0.
	Valuations map[string]map[string]float64
}

// ComputeStableMatching runs user-proposing deferred acceptance and scales
// the matched valuations to totalRent. Users or rooms left unmatched are
// simply absent from the result.
func ComputeStableMatching(set PreferenceSet, totalRent float64) []model.Result {
	roomIndex := make(map[string]int, len(set.RoomIDs))
	for j, id := range set.RoomIDs {
		roomIndex[id] = j
	}

	valuations := make([]map[int]float64, len(set.UserIDs))
	preferences := make([][]int, len(set.UserIDs))
	for i, userID := range set.UserIDs {
		valuations[i] = make(map[int]float64)
		for roomID, amount := range set.Valuations[userID] {
			if j, ok := roomIndex[roomID]; ok {
				valuations[i][j] = amount
			}
		}
		if pref, ok := set.Preferences[userID]; ok && len(pref) > 0 {
			preferences[i] = slices.Clone(pref)
		}
	}

	matches := SolveStableMatching(len(set.RoomIDs), preferences, valuations)
	provisional := make([]float64, len(matches))
	for k, m := range matches {
		provisional[k] = m.Price
	}
	prices := scaleToTotal(provisional, totalRent)

	results := make([]model.Result, len(matches))
	for k, m := range matches {
		results[k] = model.Result{
			RoomID: set.RoomIDs[m.RoomIndex],
			UserID: set.UserIDs[m.UserIndex],
			Price:  prices[k],
		}
	}
	return results
}

// SolveStableMatching is Gale-Shapley with users proposing. A room holds the
// proposal carrying the highest valuation; on equal valuations the lower
// user index keeps or takes the room. Results are ordered by room index and
// carry the holder's own valuation as price.
func SolveStableMatching(roomCount int, preferences [][]int, valuations []map[int]float64) []IndexedResult {
	userCount := len(valuations)
	ranked := make([][]int, userCount)
	for i := 0; i < userCount; i++ {
		var pref []int
		if i < len(preferences) {
			pref = preferences[i]
		}
		if pref == nil {
			pref = InferPreferences(valuations[i])
		}
		ranked[i] = sanitizePreferences(pref, roomCount)
	}

	holder := make([]int, roomCount)
	held := make([]float64, roomCount)
	for j := range holder {
		holder[j] = -1
	}
	cursor := make([]int, userCount)

	free := make([]int, 0, userCount)
	for i := 0; i < userCount; i++ {
		free = append(free, i)
	}

	for len(free) > 0 {
		u := free[0]
		free = free[1:]
		if cursor[u] >= len(ranked[u]) {
			continue
		}
		r := ranked[u][cursor[u]]
		cursor[u]++
		value := valuations[u][r]

		switch {
		case holder[r] == -1:
			holder[r], held[r] = u, value
		case value > held[r] || (value == held[r] && u < holder[r]):
			displaced := holder[r]
			holder[r], held[r] = u, value
			if cursor[displaced] < len(ranked[displaced]) {
				free = append(free, displaced)
			}
		default:
			if cursor[u] < len(ranked[u]) {
				free = append(free, u)
			}
		}
	}

	var results []IndexedResult
	for j := 0; j < roomCount; j++ {
		if holder[j] >= 0 {
			results = append(results, IndexedResult{RoomIndex: j, UserIndex: holder[j], Price: held[j]})
		}
	}
	return results
}

// InferPreferences ranks the valued rooms by valuation, highest first,
// breaking ties by ascending room index.
func InferPreferences(valuations map[int]float64) []int {
	rooms := make([]int, 0, len(valuations))
	for j := range valuations {
		rooms = append(rooms, j)
	}
	sort.Slice(rooms, func(a, b int) bool {
		va, vb := valuations[rooms[a]], valuations[rooms[b]]
		if va != vb {
			return va > vb
		}
		return rooms[a] < rooms[b]
	})
	return rooms
}

// sanitizePreferences drops out-of-range and repeated room indices.
func sanitizePreferences(pref []int, roomCount int) []int {
	seen := make(map[int]bool, len(pref))
	out := make([]int, 0, len(pref))
	for _, j := range pref {
		if j < 0 || j >= roomCount || seen[j] {
			continue
		}
		seen[j] = true
		out = append(out, j)
	}
	return out
}
