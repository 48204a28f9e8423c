// Package backfill fills heat and created_at on legacy reviews from
// "heat: N" and "created: YYYY-MM-DD [HH:MM[:SS]]" lines in their comments.
package backfill

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	heatPattern    = regexp.MustCompile(`(?i)heat\s*:\s*(\d+)`)
	createdPattern = regexp.MustCompile(`(?i)(?:creator|created|creater)\s*:\s*(\d{4}-\d{2}-\d{2})(?:\s+(\d{1,2}:\d{2}(?::\d{2})?))?`)
)

// ParseHeat returns the number from the first "heat: N" in comment.
// The value is not range-checked.
func ParseHeat(comment string) (int, bool) {
	m := heatPattern.FindStringSubmatch(comment)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseCreatedAt returns the timestamp from the first "creator:", "created:"
// or "creater:" marker in comment, interpreted as UTC. A missing time means
// midnight; HH:MM gains ":00". Impossible dates or times are ignored.
func ParseCreatedAt(comment string) (time.Time, bool) {
	m := createdPattern.FindStringSubmatch(comment)
	if m == nil {
		return time.Time{}, false
	}

	date, clock := m[1], m[2]
	if clock == "" {
		t, err := time.ParseInLocation(time.DateOnly, date, time.UTC)
		return t, err == nil
	}

	if strings.Count(clock, ":") == 1 {
		clock += ":00"
	}
	if len(clock) == len("9:04:05") {
		clock = "0" + clock
	}
	t, err := time.ParseInLocation(time.DateTime, date+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
