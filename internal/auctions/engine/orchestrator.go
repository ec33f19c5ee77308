package engine

import (
	"fmt"

	apperrors "rentsplit/pkg/errors"
	"rentsplit/pkg/model"
	"rentsplit/pkg/sanitizer"
)

// Orchestrator sequences selecting rounds, bidding rounds and completion.
// Every transition works on a clone of its input and returns the new
// snapshot together with the events it produced.
type Orchestrator struct {
	policy model.ContenderPolicy
}

func NewOrchestrator(policy model.ContenderPolicy) *Orchestrator {
	if policy == "" {
		policy = model.ContendersAll
	}
	return &Orchestrator{policy: policy}
}

func (o *Orchestrator) Policy() model.ContenderPolicy {
	return o.policy
}

// CreateAuction builds a fresh aggregate in the waiting phase with rooms
// r1..rN and users u1..uM, every room priced at an even share of the rent.
// Zero rooms and zero users is a valid, empty auction.
func CreateAuction(id string, totalRent float64, roomNames, userNames []string) (*model.Auction, error) {
	if totalRent <= 0 || toCents(totalRent) <= 0 {
		return nil, apperrors.Validation("Total rent must be positive", map[string]any{"total_rent": totalRent})
	}

	a := &model.Auction{
		ID:          id,
		TotalRent:   round2(totalRent),
		Phase:       model.PhaseWaiting,
		Rooms:       make(map[string]model.Room, len(roomNames)),
		Users:       make(map[string]model.User, len(userNames)),
		Selections:  make(map[string]string),
		Bids:        make(map[string]map[string]float64),
		Conflicts:   make(map[string][]string),
		Valuations:  make(map[string]map[string]float64),
		Preferences: make(map[string][]string),
	}

	for i, name := range roomNames {
		name = sanitizer.NormalizeName(name)
		if name == "" {
			return nil, apperrors.Validation("Room name cannot be empty", map[string]any{"index": i})
		}
		roomID := model.RoomID(i)
		a.Rooms[roomID] = model.Room{ID: roomID, Name: name, Status: model.RoomAvailable}
	}
	for i, name := range userNames {
		name = sanitizer.NormalizeName(name)
		if name == "" {
			return nil, apperrors.Validation("User name cannot be empty", map[string]any{"index": i})
		}
		userID := model.UserID(i)
		a.Users[userID] = model.User{ID: userID, Name: name}
	}

	a.Rooms = NormalizePrices(a.Rooms, a.TotalRent)
	for roomID, r := range a.Rooms {
		r.BasePrice = r.CurrentPrice
		a.Rooms[roomID] = r
	}

	if err := CheckInvariants(a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddUser appends a connected participant while the auction is waiting.
func (o *Orchestrator) AddUser(a *model.Auction, name string) (*model.Auction, []model.Event, error) {
	name = sanitizer.NormalizeName(name)
	if name == "" {
		return nil, nil, apperrors.Validation("User name cannot be empty", nil)
	}
	if a.Phase != model.PhaseWaiting {
		return nil, nil, apperrors.Conflict(fmt.Sprintf("Cannot join an auction in %s phase", a.Phase))
	}
	if len(a.Users) >= len(a.Rooms) {
		return nil, nil, apperrors.Conflict("Auction already has a participant for every room")
	}

	next := a.Clone()
	id := nextUserID(next)
	next.Users[id] = model.User{ID: id, Name: name, Connected: true}

	events := []model.Event{{Type: model.EventUserJoined, UserID: id}}
	return o.finish(a, next, events)
}

func nextUserID(a *model.Auction) string {
	for i := 0; ; i++ {
		if _, taken := a.Users[model.UserID(i)]; !taken {
			return model.UserID(i)
		}
	}
}

// Start opens the first selecting round. It requires one participant per
// room; an empty auction completes immediately.
func (o *Orchestrator) Start(a *model.Auction) (*model.Auction, []model.Event, error) {
	if a.Phase != model.PhaseWaiting {
		return nil, nil, apperrors.Conflict(fmt.Sprintf("Auction already started, phase is %s", a.Phase))
	}
	if len(a.Users) != len(a.Rooms) {
		return nil, nil, apperrors.Validation("Auction needs exactly one participant per room", map[string]any{
			"rooms": len(a.Rooms),
			"users": len(a.Users),
		})
	}

	next := a.Clone()
	if len(next.Rooms) == 0 {
		next.Phase = model.PhaseCompleted
		return o.finish(a, next, []model.Event{{Type: model.EventPhaseChanged, Phase: model.PhaseCompleted}})
	}

	next.Phase = model.PhaseSelecting
	next.Round = 1
	events := []model.Event{
		{Type: model.EventPhaseChanged, Phase: model.PhaseSelecting},
		{Type: model.EventRoundStarted, Round: next.Round},
	}
	return o.finish(a, next, events)
}

// SetPresence records a participant connecting or disconnecting. Under the
// connected policy this can complete a selecting round or resolve a
// contested room that was only waiting for the departed user.
func (o *Orchestrator) SetPresence(a *model.Auction, userID string, connected bool) (*model.Auction, []model.Event, error) {
	u, ok := a.Users[userID]
	if !ok {
		return nil, nil, apperrors.NotFoundWithID("User", userID)
	}

	next := a.Clone()
	u.Connected = connected
	next.Users[userID] = u
	events := []model.Event{{Type: model.EventPresenceChanged, UserID: userID}}

	if o.policy == model.ContendersConnected {
		switch next.Phase {
		case model.PhaseSelecting:
			events = append(events, o.tryCompleteRound(next)...)
		case model.PhaseBidding:
			for _, c := range next.OpenConflicts() {
				events = append(events, o.resolveRoom(next, c.RoomID)...)
			}
			if len(next.Conflicts) == 0 {
				events = append(events, advance(next)...)
			}
		}
	}
	return o.finish(a, next, events)
}

// ApplySelections records room choices for the current round. An empty
// room id clears a user's choice. Selecting a room someone already holds
// challenges the holder. Once every required unassigned user has chosen,
// uncontested rooms are assigned at their current price and contested
// rooms open for bidding.
func (o *Orchestrator) ApplySelections(a *model.Auction, selections map[string]string) (*model.Auction, []model.Event, error) {
	if a.Phase != model.PhaseSelecting {
		return nil, nil, apperrors.Conflict(fmt.Sprintf("Selections are not accepted in %s phase", a.Phase))
	}

	userIDs := make([]string, 0, len(selections))
	for userID := range selections {
		userIDs = append(userIDs, userID)
	}
	model.SortIDs(userIDs)

	for _, userID := range userIDs {
		u, ok := a.Users[userID]
		if !ok {
			return nil, nil, apperrors.NotFoundWithID("User", userID)
		}
		if u.AssignedRoomID != "" {
			return nil, nil, apperrors.Validation("User already holds a room", map[string]any{
				"user_id": userID,
				"room_id": u.AssignedRoomID,
			})
		}
		roomID := selections[userID]
		if roomID == "" {
			continue
		}
		if _, ok := a.Rooms[roomID]; !ok {
			return nil, nil, apperrors.Validation("Selected room does not exist", map[string]any{"room_id": roomID})
		}
	}

	next := a.Clone()
	var events []model.Event
	for _, userID := range userIDs {
		roomID := selections[userID]
		if roomID == "" {
			delete(next.Selections, userID)
		} else {
			next.Selections[userID] = roomID
		}
		events = append(events, model.Event{Type: model.EventSelectionRecorded, UserID: userID, RoomID: roomID})
	}

	events = append(events, o.tryCompleteRound(next)...)
	return o.finish(a, next, events)
}

// ApplyBid records a sealed bid on a contested room and resolves the room
// when every required contender has bid. Bidding on a room that is already
// assigned is a no-op.
func (o *Orchestrator) ApplyBid(a *model.Auction, roomID, userID string, amount float64) (*model.Auction, []model.Event, error) {
	room, ok := a.Rooms[roomID]
	if !ok {
		return nil, nil, apperrors.NotFoundWithID("Room", roomID)
	}
	if _, ok := a.Users[userID]; !ok {
		return nil, nil, apperrors.NotFoundWithID("User", userID)
	}
	if room.AssignedUserID != "" {
		return a.Clone(), nil, nil
	}
	if a.Phase != model.PhaseBidding {
		return nil, nil, apperrors.Conflict(fmt.Sprintf("Bids are not accepted in %s phase", a.Phase))
	}
	contenders, contested := a.Conflicts[roomID]
	if !contested {
		return nil, nil, apperrors.Conflict(fmt.Sprintf("Room %s is not contested", roomID))
	}
	if !containsID(contenders, userID) {
		return nil, nil, apperrors.Validation("User is not contending for this room", map[string]any{
			"room_id": roomID,
			"user_id": userID,
		})
	}
	if err := ValidateBidAmount(a, room, amount); err != nil {
		return nil, nil, err
	}

	next := a.Clone()
	if next.Bids[roomID] == nil {
		next.Bids[roomID] = make(map[string]float64)
	}
	next.Bids[roomID][userID] = round2(amount)
	events := []model.Event{{Type: model.EventBidAccepted, RoomID: roomID, UserID: userID, Amount: round2(amount)}}

	events = append(events, o.resolveRoom(next, roomID)...)
	if len(next.Conflicts) == 0 {
		events = append(events, advance(next)...)
	}
	return o.finish(a, next, events)
}

// SubmitValuations stores a participant's sealed per-room valuations and
// optional ranked preference for one-shot settlement. A later submission
// replaces the earlier one.
func (o *Orchestrator) SubmitValuations(a *model.Auction, userID string, valuations map[string]float64, preference []string) (*model.Auction, []model.Event, error) {
	if _, ok := a.Users[userID]; !ok {
		return nil, nil, apperrors.NotFoundWithID("User", userID)
	}
	if a.Phase == model.PhaseCompleted {
		return nil, nil, apperrors.Conflict("Auction is already completed")
	}

	stored := make(map[string]float64, len(valuations))
	for roomID, amount := range valuations {
		if _, ok := a.Rooms[roomID]; !ok {
			return nil, nil, apperrors.Validation("Valuation references an unknown room", map[string]any{"room_id": roomID})
		}
		if amount < 0 || toCents(amount) > toCents(a.TotalRent) {
			return nil, nil, apperrors.Validation("Valuation must be between 0 and the total rent", map[string]any{
				"room_id":    roomID,
				"amount":     amount,
				"total_rent": a.TotalRent,
			})
		}
		stored[roomID] = round2(amount)
	}

	seen := make(map[string]bool, len(preference))
	for _, roomID := range preference {
		if _, ok := a.Rooms[roomID]; !ok {
			return nil, nil, apperrors.Validation("Preference references an unknown room", map[string]any{"room_id": roomID})
		}
		if seen[roomID] {
			return nil, nil, apperrors.Validation("Preference lists a room twice", map[string]any{"room_id": roomID})
		}
		seen[roomID] = true
	}

	next := a.Clone()
	next.Valuations[userID] = stored
	if len(preference) > 0 {
		next.Preferences[userID] = append([]string(nil), preference...)
	} else {
		delete(next.Preferences, userID)
	}
	return o.finish(a, next, []model.Event{{Type: model.EventValuationsSubmitted, UserID: userID}})
}

// ComputeFinal produces a complete result set without touching the
// aggregate. The batch strategies read every stored valuation with users
// and rooms in natural id order; incremental returns the assignments made
// so far by the round-based flow.
func (o *Orchestrator) ComputeFinal(a *model.Auction, strategy model.Strategy) ([]model.Result, error) {
	if strategy == model.StrategyIncremental {
		return a.Assignments(), nil
	}
	if strategy != model.StrategyOptimal && strategy != model.StrategyPreference {
		return nil, apperrors.Validation(fmt.Sprintf("Unknown strategy %q", strategy), nil)
	}
	if a.Phase == model.PhaseCompleted {
		return nil, apperrors.Conflict("Auction is already completed")
	}

	userIDs := a.UserIDs()
	roomIDs := a.RoomIDs()

	if strategy == model.StrategyPreference {
		roomIndex := make(map[string]int, len(roomIDs))
		for j, id := range roomIDs {
			roomIndex[id] = j
		}
		set := PreferenceSet{
			UserIDs:     userIDs,
			RoomIDs:     roomIDs,
			Preferences: make(map[string][]int, len(a.Preferences)),
			Valuations:  a.Valuations,
		}
		for userID, pref := range a.Preferences {
			indices := make([]int, 0, len(pref))
			for _, roomID := range pref {
				if j, ok := roomIndex[roomID]; ok {
					indices = append(indices, j)
				}
			}
			set.Preferences[userID] = indices
		}
		return ComputeStableMatching(set, a.TotalRent), nil
	}

	matrix := make([][]float64, len(userIDs))
	for i, userID := range userIDs {
		matrix[i] = make([]float64, len(roomIDs))
		for j, roomID := range roomIDs {
			matrix[i][j] = a.Valuations[userID][roomID]
		}
	}
	indexed := ComputeOptimalAssignment(matrix, a.TotalRent)
	results := make([]model.Result, len(indexed))
	for k, r := range indexed {
		results[k] = model.Result{
			RoomID: roomIDs[r.RoomIndex],
			UserID: userIDs[r.UserIndex],
			Price:  r.Price,
		}
	}
	return results, nil
}

// tryCompleteRound closes the selecting round when every required
// unassigned user has a selection on record.
func (o *Orchestrator) tryCompleteRound(a *model.Auction) []model.Event {
	var required []string
	for _, userID := range a.UnassignedUserIDs() {
		if o.policy == model.ContendersConnected && !a.Users[userID].Connected {
			continue
		}
		required = append(required, userID)
	}
	if len(required) == 0 {
		return nil
	}
	for _, userID := range required {
		if a.Selections[userID] == "" {
			return nil
		}
	}

	report := DetectConflicts(a, a.Selections)
	var events []model.Event

	uncontested := report.Uncontested()
	roomIDs := make([]string, 0, len(uncontested))
	for roomID := range uncontested {
		roomIDs = append(roomIDs, roomID)
	}
	model.SortIDs(roomIDs)
	for _, roomID := range roomIDs {
		userID := uncontested[roomID]
		if a.Rooms[roomID].AssignedUserID == userID {
			continue
		}
		assign(a, roomID, userID, a.Rooms[roomID].CurrentPrice)
		events = append(events, model.Event{Type: model.EventRoomAssigned, RoomID: roomID, UserID: userID, Amount: a.Rooms[roomID].CurrentPrice})
	}

	for _, roomID := range report.ContestedRoomIDs {
		if holder := a.Rooms[roomID].AssignedUserID; holder != "" {
			release(a, roomID)
			events = append(events, model.Event{Type: model.EventRoomReleased, RoomID: roomID, UserID: holder})
		}
		contenders := append([]string(nil), report.RoomToUsers[roomID]...)
		a.Conflicts[roomID] = contenders
		a.Bids[roomID] = make(map[string]float64)
		r := a.Rooms[roomID]
		r.Status = model.RoomContested
		a.Rooms[roomID] = r
		events = append(events, model.Event{Type: model.EventRoomContested, RoomID: roomID, UserIDs: contenders})
	}

	a.Rooms = NormalizePrices(a.Rooms, a.TotalRent)
	a.Selections = make(map[string]string)
	events = append(events, model.Event{Type: model.EventPricesNormalized})

	if len(report.ContestedRoomIDs) > 0 {
		a.Phase = model.PhaseBidding
		return append(events, model.Event{Type: model.EventPhaseChanged, Phase: model.PhaseBidding})
	}
	return append(events, advance(a)...)
}

// resolveRoom settles one contested room if its required contenders have
// all bid. A tie clears the room's bids so the contenders bid again.
func (o *Orchestrator) resolveRoom(a *model.Auction, roomID string) []model.Event {
	required := requiredContenders(a, a.Conflicts[roomID], o.policy)
	res := ResolveBids(required, a.Bids[roomID])

	switch res.Outcome {
	case BidResolved:
		delete(a.Conflicts, roomID)
		delete(a.Bids, roomID)
		assign(a, roomID, res.WinnerID, res.Amount)
		a.Rooms = NormalizePrices(a.Rooms, a.TotalRent)
		return []model.Event{
			{Type: model.EventRoomAssigned, RoomID: roomID, UserID: res.WinnerID, Amount: res.Amount},
			{Type: model.EventPricesNormalized},
		}
	case BidTied:
		a.Bids[roomID] = make(map[string]float64)
		return []model.Event{{Type: model.EventTieOutcome, RoomID: roomID, UserIDs: res.TiedUserIDs, Amount: res.Amount}}
	}
	return nil
}

// advance leaves bidding once no conflicts remain: the auction completes
// when everyone holds a room, otherwise a new selecting round opens.
func advance(a *model.Auction) []model.Event {
	if len(a.UnassignedUserIDs()) == 0 && allRoomsAssigned(a) {
		a.Phase = model.PhaseCompleted
		return []model.Event{{Type: model.EventPhaseChanged, Phase: model.PhaseCompleted}}
	}

	events := []model.Event{}
	if a.Phase != model.PhaseSelecting {
		a.Phase = model.PhaseSelecting
		events = append(events, model.Event{Type: model.EventPhaseChanged, Phase: model.PhaseSelecting})
	}
	a.Round++
	return append(events, model.Event{Type: model.EventRoundStarted, Round: a.Round})
}

func allRoomsAssigned(a *model.Auction) bool {
	for _, r := range a.Rooms {
		if r.AssignedUserID == "" {
			return false
		}
	}
	return true
}

func assign(a *model.Auction, roomID, userID string, price float64) {
	r := a.Rooms[roomID]
	r.AssignedUserID = userID
	r.CurrentPrice = round2(price)
	r.Status = model.RoomAssigned
	a.Rooms[roomID] = r

	u := a.Users[userID]
	u.AssignedRoomID = roomID
	a.Users[userID] = u
	delete(a.Selections, userID)
}

// release takes a challenged room back from its holder, who then contends
// for it like everyone else.
func release(a *model.Auction, roomID string) {
	r := a.Rooms[roomID]
	u := a.Users[r.AssignedUserID]
	u.AssignedRoomID = ""
	a.Users[u.ID] = u

	r.AssignedUserID = ""
	r.Status = model.RoomAvailable
	a.Rooms[roomID] = r
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// finish checks the new snapshot before handing it back.
func (o *Orchestrator) finish(prev, next *model.Auction, events []model.Event) (*model.Auction, []model.Event, error) {
	if toCents(next.TotalRent) != toCents(prev.TotalRent) {
		return nil, nil, violation("total rent changed during a transition", map[string]any{
			"before": prev.TotalRent,
			"after":  next.TotalRent,
		})
	}
	if err := CheckInvariants(next); err != nil {
		return nil, nil, err
	}
	return next, events, nil
}
