package engine

import (
	"math/rand"
	"slices"
	"testing"
)

func TestComputeOptimalAssignment(t *testing.T) {
	tests := []struct {
		name       string
		valuations [][]float64
		totalRent  float64
		want       []IndexedResult
	}{
		{
			name: "maximum total valuation",
			valuations: [][]float64{
				{1500, 1000, 500},
				{1600, 900, 500},
				{1000, 1000, 1000},
			},
			totalRent: 3000,
			want: []IndexedResult{
				{RoomIndex: 0, UserIndex: 1, Price: 1333.33},
				{RoomIndex: 1, UserIndex: 0, Price: 833.33},
				{RoomIndex: 2, UserIndex: 2, Price: 833.34},
			},
		},
		{
			name:       "more rooms than users",
			valuations: [][]float64{{10, 0, 0}, {10, 5, 0}},
			totalRent:  150,
			want: []IndexedResult{
				{RoomIndex: 0, UserIndex: 0, Price: 100},
				{RoomIndex: 1, UserIndex: 1, Price: 50},
			},
		},
		{
			name:       "more users than rooms",
			valuations: [][]float64{{1, 2}, {3, 1}, {0, 0}},
			totalRent:  100,
			want: []IndexedResult{
				{RoomIndex: 0, UserIndex: 1, Price: 60},
				{RoomIndex: 1, UserIndex: 0, Price: 40},
			},
		},
		{
			name:       "ragged rows default to zero",
			valuations: [][]float64{{4}, {1, 9}},
			totalRent:  130,
			want: []IndexedResult{
				{RoomIndex: 0, UserIndex: 0, Price: 40},
				{RoomIndex: 1, UserIndex: 1, Price: 90},
			},
		},
		{
			name:       "empty matrix",
			valuations: nil,
			totalRent:  1000,
			want:       nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeOptimalAssignment(tt.valuations, tt.totalRent)
			if !slices.Equal(got, tt.want) {
				t.Errorf("ComputeOptimalAssignment() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeOptimalAssignment_ZeroValuationsSplitEvenly(t *testing.T) {
	got := ComputeOptimalAssignment([][]float64{{0, 0, 0}, {0, 0, 0}, {0, 0, 0}}, 100)
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}

	users := map[int]bool{}
	wantPrices := []float64{33.34, 33.33, 33.33}
	for k, r := range got {
		if r.RoomIndex != k {
			t.Errorf("result %d has room %d, want ordered by room", k, r.RoomIndex)
		}
		if users[r.UserIndex] {
			t.Errorf("user %d assigned twice", r.UserIndex)
		}
		users[r.UserIndex] = true
		if r.Price != wantPrices[k] {
			t.Errorf("price[%d] = %.2f, want %.2f", k, r.Price, wantPrices[k])
		}
	}
}

func TestComputeOptimalAssignment_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	matrix := make([][]float64, 8)
	for i := range matrix {
		matrix[i] = make([]float64, 8)
		for j := range matrix[i] {
			// Small range so equal-value matchings are common.
			matrix[i][j] = float64(rng.Intn(4)) * 100
		}
	}

	first := ComputeOptimalAssignment(matrix, 8000)
	for run := 0; run < 5; run++ {
		again := ComputeOptimalAssignment(matrix, 8000)
		if !slices.Equal(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", run, first, again)
		}
	}
}

func TestComputeOptimalAssignment_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for n := 1; n <= 6; n++ {
		matrix := make([][]float64, n)
		for i := range matrix {
			matrix[i] = make([]float64, n)
			for j := range matrix[i] {
				matrix[i][j] = float64(rng.Intn(2000))
			}
		}

		results := ComputeOptimalAssignment(matrix, 1000)
		var got float64
		for _, r := range results {
			got += matrix[r.UserIndex][r.RoomIndex]
		}

		if want := bestAssignmentValue(matrix); got != want {
			t.Errorf("n=%d: total valuation = %.0f, want %.0f", n, got, want)
		}
	}
}

func TestComputeOptimalAssignment_RandomSumsExactly(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for n := 1; n <= 50; n++ {
		matrix := make([][]float64, n)
		for i := range matrix {
			matrix[i] = make([]float64, n)
			for j := range matrix[i] {
				matrix[i][j] = float64(rng.Intn(300_000)+1) / 100
			}
		}
		totalRent := float64(rng.Intn(2_000_000)+100) / 100

		results := ComputeOptimalAssignment(matrix, totalRent)
		if len(results) != n {
			t.Fatalf("n=%d: got %d results", n, len(results))
		}

		var sum int64
		users := make(map[int]bool, n)
		for _, r := range results {
			sum += toCents(r.Price)
			if users[r.UserIndex] {
				t.Fatalf("n=%d: user %d assigned twice", n, r.UserIndex)
			}
			users[r.UserIndex] = true
		}
		if sum != toCents(totalRent) {
			t.Fatalf("n=%d: sum = %d cents, want %d", n, sum, toCents(totalRent))
		}
	}
}

// bestAssignmentValue enumerates every permutation.
func bestAssignmentValue(matrix [][]float64) float64 {
	n := len(matrix)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	best := -1.0
	var walk func(k int)
	walk = func(k int) {
		if k == n {
			var total float64
			for i, j := range perm {
				total += matrix[i][j]
			}
			best = max(best, total)
			return
		}
		for i := k; i < n; i++ {
			perm[k], perm[i] = perm[i], perm[k]
			walk(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	walk(0)
	return best
}
