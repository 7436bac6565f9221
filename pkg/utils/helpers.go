package utils

import (
	"fmt"
	"time"
)

// DateLayout is the flag and config format for report dates
const DateLayout = "2006-01-02"

// Yesterday returns midnight of the day before now, in now's location
func Yesterday(now time.Time) time.Time {
	y, m, d := now.AddDate(0, 0, -1).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// DefaultDateRange fills zero start/end values with yesterday
func DefaultDateRange(start, end, now time.Time) (time.Time, time.Time, error) {
	if start.IsZero() {
		start = Yesterday(now)
	}
	if end.IsZero() {
		end = Yesterday(now)
	}
	if start.After(end) {
		return start, end, fmt.Errorf("start date %s is after end date %s",
			start.Format(DateLayout), end.Format(DateLayout))
	}
	return start, end, nil
}

// ParseDate parses a YYYY-MM-DD value; an empty string yields the zero time
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", value, err)
	}
	return t, nil
}

// MonthsBetween returns the signed number of calendar months from a to b
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
