package model

import (
	"slices"
	"strconv"
	"strings"
)

// CompareIDs orders ids naturally: ids sharing a non-numeric prefix are
// compared by their numeric suffix, so "r2" sorts before "r10". Anything
// else falls back to plain string order.
func CompareIDs(a, b string) int {
	pa, na, okA := splitNumericSuffix(a)
	pb, nb, okB := splitNumericSuffix(b)
	if okA && okB && pa == pb && na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func SortIDs(ids []string) {
	slices.SortFunc(ids, CompareIDs)
}

func splitNumericSuffix(id string) (string, uint64, bool) {
	i := len(id)
	for i > 0 && id[i-1] >= '0' && id[i-1] <= '9' {
		i--
	}
	if i == len(id) {
		return id, 0, false
	}
	n, err := strconv.ParseUint(id[i:], 10, 64)
	if err != nil {
		return id, 0, false
	}
	return id[:i], n, true
}

func RoomID(index int) string {
	return "r" + strconv.Itoa(index+1)
}

func UserID(index int) string {
	return "u" + strconv.Itoa(index+1)
}
