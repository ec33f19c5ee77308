package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var reKeepLettersDigits = regexp.MustCompile(`[^0-9\p{L}]+`)

func trimAndLower(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	return s
}

// NormalizeID canonicalizes a room or user id typed by hand.
func NormalizeID(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reKeepLettersDigits.ReplaceAllString(s, "") },
	}
	return p.Apply(input)
}

// NormalizeKeyword canonicalizes enum-like query values such as a strategy name.
func NormalizeKeyword(input string) string {
	return trimAndLower(input)
}

// SanitizeSlice applies strategy to every value, keeping order and length.
func SanitizeSlice(values []string, strategy Strategy) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strategy(v)
	}
	return out
}

// NormalizeIDs canonicalizes ids and drops empty results and repeats.
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := []string{}
	for _, v := range ids {
		s := NormalizeID(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
