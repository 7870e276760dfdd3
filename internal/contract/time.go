package contract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Define the regular expression to capture "N [units]".
var lookbackDurationRe = regexp.MustCompile(`^(\d+)\s+(week|day|hour|minute)s?$`)

// ParseLookbackDuration converts strings like "24 hours" or "36h" into a single time.Duration.
// It first tries Go's built-in time.ParseDuration, then falls back to the "N units" form.
func ParseLookbackDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if duration, err := time.ParseDuration(s); err == nil {
		if duration <= 0 {
			return 0, errors.New("window must be positive")
		}
		return duration, nil
	}

	s = strings.ToLower(s)
	matches := lookbackDurationRe.FindStringSubmatch(s)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid window format: %q (expected e.g. \"24 hours\" or \"36h\")", s)
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, fmt.Errorf("invalid window value: %w", err)
	}

	var unit time.Duration
	switch matches[2] {
	case "week":
		unit = 7 * 24 * time.Hour
	case "day":
		unit = 24 * time.Hour
	case "hour":
		unit = time.Hour
	case "minute":
		unit = time.Minute
	}

	if int64(value) > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("window %q is too large", s)
	}
	total := time.Duration(value) * unit
	if total <= 0 {
		return 0, errors.New("window must be positive")
	}
	return total, nil
}
