package workflows

import (
	"fmt"
	"strings"
	"time"

	"redads-automation/pkg/utils"
)

const (
	monthLabelLayout = "January 2006"
	dateLabelLayout  = "Mon Jan 02 2006"
)

// CalendarSide selects one of the two month navigation arrows. The values
// are the 1-based positions used in the calendar locators.
type CalendarSide int

const (
	SidePrevious CalendarSide = 1
	SideNext     CalendarSide = 2
)

func (s CalendarSide) String() string {
	if s == SideNext {
		return "next"
	}
	return "previous"
}

// MonthNavigation is the number of arrow clicks needed to bring a date into
// the visible two-month window
type MonthNavigation struct {
	Side   CalendarSide
	Clicks int
}

// PlanMonthNavigation computes the clicks for target given the first day of
// the left visible month and the last day of the right visible month.
// Dates inside the window need no clicks.
func PlanMonthNavigation(target, left, right time.Time) MonthNavigation {
	day := dateOnly(target)

	switch {
	case day.Before(dateOnly(left)):
		return MonthNavigation{Side: SidePrevious, Clicks: abs(utils.MonthsBetween(day, left))}
	case day.After(dateOnly(right)):
		return MonthNavigation{Side: SideNext, Clicks: abs(utils.MonthsBetween(right, day))}
	default:
		return MonthNavigation{Side: SidePrevious}
	}
}

// ParseMonthLabel parses a calendar header such as "March 2024" into the
// first day of that month
func ParseMonthLabel(label string) (time.Time, error) {
	month, err := time.Parse(monthLabelLayout, strings.TrimSpace(label))
	if err != nil {
		return time.Time{}, fmt.Errorf("unexpected calendar month label %q: %w", label, err)
	}
	return month, nil
}

// LastDayOfMonth returns the last day of t's month at midnight
func LastDayOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}

// DateCellLocator returns the XPath of the calendar cell for date
func DateCellLocator(date time.Time) string {
	return fmt.Sprintf("//div[@aria-label='%s']", date.Format(dateLabelLayout))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
