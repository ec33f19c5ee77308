package engine

import (
	"slices"
	"testing"

	"rentsplit/pkg/model"
)

func TestDetectConflicts(t *testing.T) {
	a, err := CreateAuction("a1", 4000, []string{"A", "B", "C", "D"}, []string{"w", "x", "y", "z"})
	if err != nil {
		t.Fatalf("CreateAuction() error = %v", err)
	}
	assign(a, "r4", "u4", 1000)

	report := DetectConflicts(a, map[string]string{
		"u1": "r1",
		"u2": "r1",
		"u3": "r2",
		"u4": "r3", // ignored: u4 already holds r4
	})

	if !slices.Equal(report.ContestedRoomIDs, []string{"r1"}) {
		t.Errorf("ContestedRoomIDs = %v, want [r1]", report.ContestedRoomIDs)
	}
	if !slices.Equal(report.RoomToUsers["r1"], []string{"u1", "u2"}) {
		t.Errorf("RoomToUsers[r1] = %v, want [u1 u2]", report.RoomToUsers["r1"])
	}
	if _, ok := report.RoomToUsers["r3"]; ok {
		t.Errorf("assigned user's selection should not count")
	}

	uncontested := report.Uncontested()
	want := map[string]string{"r2": "u3", "r4": "u4"}
	if len(uncontested) != len(want) {
		t.Fatalf("Uncontested() = %v, want %v", uncontested, want)
	}
	for room, user := range want {
		if uncontested[room] != user {
			t.Errorf("Uncontested()[%s] = %q, want %q", room, uncontested[room], user)
		}
	}
}

func TestDetectConflicts_NaturalOrder(t *testing.T) {
	rooms := make([]string, 12)
	users := make([]string, 12)
	for i := range rooms {
		rooms[i] = "room"
		users[i] = "user"
	}
	a, err := CreateAuction("a1", 1200, rooms, users)
	if err != nil {
		t.Fatalf("CreateAuction() error = %v", err)
	}

	report := DetectConflicts(a, map[string]string{
		"u1": "r10", "u2": "r10",
		"u3": "r2", "u11": "r2",
		"u4": "",
	})

	if !slices.Equal(report.ContestedRoomIDs, []string{"r2", "r10"}) {
		t.Errorf("ContestedRoomIDs = %v, want [r2 r10]", report.ContestedRoomIDs)
	}
	if !slices.Equal(report.RoomToUsers["r2"], []string{"u3", "u11"}) {
		t.Errorf("RoomToUsers[r2] = %v, want [u3 u11]", report.RoomToUsers["r2"])
	}
	if len(report.RoomToUsers) != 2 {
		t.Errorf("empty selections must be ignored, got %v", report.RoomToUsers)
	}
}

func TestDetectConflicts_EmptyAuction(t *testing.T) {
	report := DetectConflicts(&model.Auction{}, nil)
	if len(report.ContestedRoomIDs) != 0 || len(report.RoomToUsers) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
}
