package store

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RangeAll selects the whole history
const RangeAll = "All"

var lastRangeRegex = regexp.MustCompile(`(?i)^last\s+(\d+)\s+(minute|minutes|hour|hours|day|days)$`)

var rangeUnits = map[string]time.Duration{
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRange converts "All" or "Last N minute(s)|hour(s)|day(s)" into a look-back duration.
// all is true for "All". The bool result is false for unrecognised specifications.
func ParseRange(spec string) (lookBack time.Duration, all bool, ok bool) {
	spec = strings.TrimSpace(spec)
	if strings.EqualFold(spec, RangeAll) {
		return 0, true, true
	}

	matches := lastRangeRegex.FindStringSubmatch(spec)
	if matches == nil {
		return 0, false, false
	}

	n, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, false, false
	}

	unit := rangeUnits[strings.TrimSuffix(strings.ToLower(matches[2]), "s")]
	if n > int64(maxDuration/unit) {
		return 0, true, true
	}

	return time.Duration(n) * unit, false, true
}

const maxDuration = time.Duration(1<<63 - 1)
