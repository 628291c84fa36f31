package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// countTokenRe matches integers, allowing thousands grouping like "1,234".
var countTokenRe = regexp.MustCompile(`\d+(?:[,.\x{00A0}\x{202F}]\d{3})*`)

// ParseReviewCount returns the last integer token in raw. Counts are often
// preceded by the rating digits, e.g. "4.5(1,234)". Returns nil when raw
// holds no number.
func ParseReviewCount(raw string) *int {
	tokens := countTokenRe.FindAllString(raw, -1)
	if len(tokens) == 0 {
		return nil
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, tokens[len(tokens)-1])

	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}

// ParseRating parses a decimal rating, accepting a comma decimal separator.
// Returns nil when raw is not a number.
func ParseRating(raw string) *float64 {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
