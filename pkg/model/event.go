package model

type EventType string

const (
	EventUserJoined          EventType = "user_joined"
	EventPresenceChanged     EventType = "presence_changed"
	EventPhaseChanged        EventType = "phase_changed"
	EventRoundStarted        EventType = "round_started"
	EventSelectionRecorded   EventType = "selection_recorded"
	EventRoomAssigned        EventType = "room_assigned"
	EventRoomContested       EventType = "room_contested"
	EventRoomReleased        EventType = "room_released"
	EventBidAccepted         EventType = "bid_accepted"
	EventTieOutcome          EventType = "tie_outcome"
	EventPricesNormalized    EventType = "prices_normalized"
	EventValuationsSubmitted EventType = "valuations_submitted"
)

// Event describes one change produced by a transition. The surrounding
// store persists the snapshot and forwards events to subscribers.
type Event struct {
	Type    EventType `json:"type"`
	RoomID  string    `json:"room_id,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	UserIDs []string  `json:"user_ids,omitempty"`
	Amount  float64   `json:"amount,omitempty"`
	Phase   Phase     `json:"phase,omitempty"`
	Round   int       `json:"round,omitempty"`
}
