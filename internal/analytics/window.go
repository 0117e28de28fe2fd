package analytics

import (
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDays = 7
	MinDays     = 1
	MaxDays     = 90
)

// Window is the closed interval [From, To] a report covers.
type Window struct {
	From time.Time
	To   time.Time
	Days int
}

// ParseDays reads a days query value. The leading integer is used ("14d" is 14,
// "7.5" is 7); a value without one yields DefaultDays. The result is clamped
// to [MinDays, MaxDays].
func ParseDays(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	digits := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == digits {
		return DefaultDays
	}

	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		// Out of int range; the sign decides which bound applies.
		if raw[0] == '-' {
			return MinDays
		}
		return MaxDays
	}
	return ClampDays(n)
}

// ClampDays bounds days to [MinDays, MaxDays].
func ClampDays(days int) int {
	return min(MaxDays, max(MinDays, days))
}

// NewWindow returns the trailing window of days ending at now.
func NewWindow(days int, now time.Time) Window {
	days = ClampDays(days)
	to := now.UTC()
	return Window{
		From: to.Add(-time.Duration(days) * 24 * time.Hour),
		To:   to,
		Days: days,
	}
}
