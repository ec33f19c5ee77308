package engine

import (
	"rentsplit/pkg/model"
)

// NormalizePrices re-prices every room without an assigned user so that
// the sum of all room prices equals totalRent. Assigned rooms keep their
// price. Each unassigned room gets an even share rounded to cents and the
// room with the last id absorbs the rounding drift. The input map is not
// modified.
func NormalizePrices(rooms map[string]model.Room, totalRent float64) map[string]model.Room {
	next := make(map[string]model.Room, len(rooms))
	remaining := toCents(totalRent)
	var unassigned []string
	for id, r := range rooms {
		next[id] = r
		if r.AssignedUserID != "" {
			remaining -= toCents(r.CurrentPrice)
			continue
		}
		unassigned = append(unassigned, id)
	}
	if len(unassigned) == 0 {
		return next
	}
	model.SortIDs(unassigned)

	count := int64(len(unassigned))
	share := divRound(remaining, count)
	for i, id := range unassigned {
		r := next[id]
		if i == len(unassigned)-1 {
			r.CurrentPrice = fromCents(remaining - share*(count-1))
		} else {
			r.CurrentPrice = fromCents(share)
		}
		next[id] = r
	}
	return next
}

// scaleToTotal rescales provisional prices, given in room order, so they sum
// exactly to totalRent. With a positive sum every price is scaled by
// totalRent/sum and rounded to cents, and the drift lands on the last room.
// Without usable valuations the rent is split evenly and leftover cents go
// to the first rooms.
func scaleToTotal(provisional []float64, totalRent float64) []float64 {
	prices := make([]float64, len(provisional))
	if len(provisional) == 0 {
		return prices
	}

	total := toCents(totalRent)
	var sum float64
	for _, p := range provisional {
		sum += p
	}

	cents := make([]int64, len(provisional))
	if sum > 0 {
		var assigned int64
		for i, p := range provisional {
			cents[i] = toCents(p * totalRent / sum)
			assigned += cents[i]
		}
		cents[len(cents)-1] += total - assigned
	} else {
		k := int64(len(provisional))
		base, rem := total/k, total%k
		for i := range cents {
			cents[i] = base
			if int64(i) < rem {
				cents[i]++
			}
		}
	}

	for i, c := range cents {
		prices[i] = fromCents(c)
	}
	return prices
}
