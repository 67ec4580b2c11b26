package storage

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrNotFloat indicates a score argument that is not a valid float
var ErrNotFloat = errors.New("value is not a valid float")

// ParseScore parses a sorted set score. "inf", "+inf" and "-inf" are
// accepted; NaN is not.
func ParseScore(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "inf", "+inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotFloat
	}
	return f, nil
}

// FormatScore renders a score the way replies carry it
func FormatScore(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == math.Trunc(f) && math.Abs(f) < 1e17:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}
