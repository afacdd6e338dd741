package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	Minute = time.Minute
	Hour   = time.Hour
	Day    = 24 * Hour
	Week   = 7 * Day
	Month  = 4 * Week
)

var expiryUnits = []struct {
	prefix string
	unit   time.Duration
}{
	{"month", Month},
	{"week", Week},
	{"day", Day},
	{"hour", Hour},
	{"minute", Minute},
}

// ParseExpiry parses "<n> <unit>" where unit starts with month, week, day,
// hour or minute, case-insensitively ("2 Days", "1 hour", "3 weeks").
func ParseExpiry(s string) (time.Duration, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCacheExpiry, s)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q: bad count", ErrInvalidCacheExpiry, s)
	}

	unit := strings.ToLower(fields[1])
	for _, u := range expiryUnits {
		if strings.HasPrefix(unit, u.prefix) {
			return time.Duration(n) * u.unit, nil
		}
	}
	return 0, fmt.Errorf("%w: %q: unknown unit", ErrInvalidCacheExpiry, s)
}
