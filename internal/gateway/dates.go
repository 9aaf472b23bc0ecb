package gateway

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// defaultDueHour is the local hour of day assigned to resolved due dates.
const defaultDueHour = 17

// inDaysRe matches "in 3 days", "3 days", "1 day".
var inDaysRe = regexp.MustCompile(`^(?:in\s+)?(\d+)\s+days?$`)

// ResolveDueDate converts a natural-language date expression into a concrete
// due time. Recognized forms: "today", "tomorrow", "in N days" / "N day(s)",
// and ISO dates (2006-01-02). Anything else resolves to tomorrow at 17:00 —
// a task creation is never rejected over date ambiguity, so the fallback is
// silent rather than an error.
func ResolveDueDate(expr string, now time.Time) time.Time {
	expr = strings.ToLower(strings.TrimSpace(expr))

	switch expr {
	case "today":
		return atDueHour(now)
	case "tomorrow":
		return atDueHour(now.AddDate(0, 0, 1))
	}

	if m := inDaysRe.FindStringSubmatch(expr); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return atDueHour(now.AddDate(0, 0, n))
		}
	}

	if t, err := time.ParseInLocation("2006-01-02", expr, now.Location()); err == nil {
		return atDueHour(t)
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04", expr, now.Location()); err == nil {
		return t
	}

	// Fallback: tomorrow at 17:00.
	return atDueHour(now.AddDate(0, 0, 1))
}

// atDueHour pins t to the default due hour in its own location.
func atDueHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), defaultDueHour, 0, 0, 0, t.Location())
}
