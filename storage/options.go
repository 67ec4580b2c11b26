package storage

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Errors returned while parsing command options
var (
	ErrSyntax        = errors.New("syntax error")
	ErrInvalidExpire = errors.New("invalid expire time")
)

// ParseSetOptions parses the trailing SET flags EX, PX, NX, XX and KEEPTTL.
// Expirations are relative to now.
func ParseSetOptions(args []string, now time.Time) (SetOptions, error) {
	var opts SetOptions
	for i := 0; i < len(args); i++ {
		switch flag := strings.ToUpper(args[i]); flag {
		case "NX":
			opts.NX = true
		case "XX":
			opts.XX = true
		case "KEEPTTL":
			opts.KeepTTL = true
		case "EX", "PX":
			if i+1 >= len(args) || opts.Expiry != nil {
				return opts, ErrSyntax
			}
			i++
			n, err := strconv.ParseInt(args[i], 10, 64)
			if err != nil {
				return opts, ErrNotInteger
			}
			unit := time.Second
			if flag == "PX" {
				unit = time.Millisecond
			}
			d, ok := ExpireDuration(n, unit)
			if !ok || d <= 0 {
				return opts, ErrInvalidExpire
			}
			expiry := now.Add(d)
			opts.Expiry = &expiry
		default:
			return opts, ErrSyntax
		}
	}
	if (opts.NX && opts.XX) || (opts.KeepTTL && opts.Expiry != nil) {
		return opts, ErrSyntax
	}
	return opts, nil
}

// ExpireDuration converts n units to a duration, reporting false when the
// result does not fit
func ExpireDuration(n int64, unit time.Duration) (time.Duration, bool) {
	limit := int64(math.MaxInt64 / unit)
	if n > limit || n < -limit {
		return 0, false
	}
	return time.Duration(n) * unit, true
}
