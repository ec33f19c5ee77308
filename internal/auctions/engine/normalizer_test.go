package engine

import (
	"math/rand"
	"testing"

	"rentsplit/pkg/model"
)

func roomsWithPrices(assigned map[string]float64, free ...string) map[string]model.Room {
	rooms := make(map[string]model.Room)
	for id, price := range assigned {
		rooms[id] = model.Room{ID: id, CurrentPrice: price, AssignedUserID: "holder-" + id, Status: model.RoomAssigned}
	}
	for _, id := range free {
		rooms[id] = model.Room{ID: id, Status: model.RoomAvailable}
	}
	return rooms
}

func sumCents(rooms map[string]model.Room) int64 {
	var sum int64
	for _, r := range rooms {
		sum += toCents(r.CurrentPrice)
	}
	return sum
}

func TestNormalizePrices(t *testing.T) {
	tests := []struct {
		name      string
		rooms     map[string]model.Room
		totalRent float64
		want      map[string]float64
	}{
		{
			name:      "even split",
			rooms:     roomsWithPrices(nil, "r1", "r2", "r3"),
			totalRent: 3000,
			want:      map[string]float64{"r1": 1000, "r2": 1000, "r3": 1000},
		},
		{
			name:      "assigned room keeps its price",
			rooms:     roomsWithPrices(map[string]float64{"r1": 2000}, "r2", "r3"),
			totalRent: 3000,
			want:      map[string]float64{"r1": 2000, "r2": 500, "r3": 500},
		},
		{
			name:      "last room by natural order absorbs drift",
			rooms:     roomsWithPrices(nil, "r1", "r2", "r10"),
			totalRent: 100,
			want:      map[string]float64{"r1": 33.33, "r2": 33.33, "r10": 33.34},
		},
		{
			name:      "every room assigned",
			rooms:     roomsWithPrices(map[string]float64{"r1": 700, "r2": 300}),
			totalRent: 1000,
			want:      map[string]float64{"r1": 700, "r2": 300},
		},
		{
			name:      "overbid leaves a negative remainder",
			rooms:     roomsWithPrices(map[string]float64{"r1": 1200}, "r2"),
			totalRent: 1000,
			want:      map[string]float64{"r1": 1200, "r2": -200},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePrices(tt.rooms, tt.totalRent)
			for id, want := range tt.want {
				if got[id].CurrentPrice != want {
					t.Errorf("room %s price = %.2f, want %.2f", id, got[id].CurrentPrice, want)
				}
			}
			if sumCents(got) != toCents(tt.totalRent) {
				t.Errorf("sum = %d cents, want %d", sumCents(got), toCents(tt.totalRent))
			}
		})
	}
}

func TestNormalizePrices_DoesNotMutateInputAndIsIdempotent(t *testing.T) {
	rooms := roomsWithPrices(map[string]float64{"r1": 1234.56}, "r2", "r3", "r4")
	first := NormalizePrices(rooms, 5000)

	if rooms["r2"].CurrentPrice != 0 {
		t.Errorf("input map was modified: r2 = %.2f", rooms["r2"].CurrentPrice)
	}

	second := NormalizePrices(first, 5000)
	for id := range first {
		if first[id].CurrentPrice != second[id].CurrentPrice {
			t.Errorf("room %s changed on second pass: %.2f -> %.2f", id, first[id].CurrentPrice, second[id].CurrentPrice)
		}
	}
}

func TestScaleToTotal(t *testing.T) {
	tests := []struct {
		name        string
		provisional []float64
		totalRent   float64
		want        []float64
	}{
		{
			name:        "proportional",
			provisional: []float64{1600, 1000, 1000},
			totalRent:   3000,
			want:        []float64{1333.33, 833.33, 833.34},
		},
		{
			name:        "already matching",
			provisional: []float64{100, 200},
			totalRent:   300,
			want:        []float64{100, 200},
		},
		{
			name:        "zero sum splits evenly, first rooms get leftover cents",
			provisional: []float64{0, 0, 0},
			totalRent:   100,
			want:        []float64{33.34, 33.33, 33.33},
		},
		{
			name:        "empty",
			provisional: nil,
			totalRent:   100,
			want:        []float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scaleToTotal(tt.provisional, tt.totalRent)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("price[%d] = %.2f, want %.2f", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestScaleToTotal_RandomValuationsSumExactly(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for n := 1; n <= 50; n++ {
		for trial := 0; trial < 20; trial++ {
			totalRent := float64(rng.Intn(1_000_000)+100) / 100
			provisional := make([]float64, n)
			for i := range provisional {
				provisional[i] = float64(rng.Intn(500_000)+1) / 100
			}

			prices := scaleToTotal(provisional, totalRent)

			var sum int64
			for _, p := range prices {
				sum += toCents(p)
			}
			if sum != toCents(totalRent) {
				t.Fatalf("n=%d trial=%d: sum = %d cents, want %d", n, trial, sum, toCents(totalRent))
			}
		}
	}
}
