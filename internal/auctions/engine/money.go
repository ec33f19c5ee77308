package engine

import "math"

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

func round2(v float64) float64 {
	return fromCents(toCents(v))
}

// divRound divides and rounds half away from zero.
func divRound(n, d int64) int64 {
	return int64(math.Round(float64(n) / float64(d)))
}
