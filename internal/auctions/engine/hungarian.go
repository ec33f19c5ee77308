package engine

import "math"

// ComputeOptimalAssignment pairs users (rows) with rooms (columns) so that
// the total valuation is maximal, then scales the matched valuations to
// totalRent. Rows may have different lengths; missing cells are worth 0.
// The matrix is padded to a square of max(users, rooms) and padding pairs
// are dropped from the result, which is ordered by room index.
//
// Several matchings can share the optimal value. Which one is returned
// depends only on the scan order, so a fixed input always yields the same
// assignment.
func ComputeOptimalAssignment(valuations [][]float64, totalRent float64) []IndexedResult {
	userCount := len(valuations)
	roomCount := 0
	for _, row := range valuations {
		roomCount = max(roomCount, len(row))
	}
	n := max(userCount, roomCount)
	if n == 0 {
		return nil
	}

	value := func(i, j int) float64 {
		if i < userCount && j < len(valuations[i]) {
			return valuations[i][j]
		}
		return 0
	}

	var maxValuation float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			maxValuation = max(maxValuation, value(i, j))
		}
	}

	cost := make([][]float64, n)
	for i := range cost {
		cost[i] = make([]float64, n)
		for j := range cost[i] {
			cost[i][j] = maxValuation - value(i, j)
		}
	}

	assignment := SolveAssignment(cost)

	byRoom := make([]int, roomCount)
	for j := range byRoom {
		byRoom[j] = -1
	}
	for i := 0; i < userCount; i++ {
		if j := assignment[i]; j >= 0 && j < roomCount {
			byRoom[j] = i
		}
	}

	var results []IndexedResult
	var provisional []float64
	for j, i := range byRoom {
		if i < 0 {
			continue
		}
		results = append(results, IndexedResult{RoomIndex: j, UserIndex: i})
		provisional = append(provisional, value(i, j))
	}

	prices := scaleToTotal(provisional, totalRent)
	for k := range results {
		results[k].Price = prices[k]
	}
	return results
}

// SolveAssignment finds a perfect matching of minimum total cost on a square
// matrix with the O(n^3) potentials method. It returns, for each row, the
// column assigned to it.
func SolveAssignment(cost [][]float64) []int {
	n := len(cost)
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
			if j0 == 0 {
				break
			}
		}
	}

	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}
	for j := 1; j <= n; j++ {
		if p[j] != 0 {
			assignment[p[j]-1] = j - 1
		}
	}
	return assignment
}
