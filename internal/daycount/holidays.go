package daycount

import "time"

// nseHolidays lists NSE trading holidays for 2025 and 2026.
// Weekend dates never appear here; the weekday mask already drops them.
var nseHolidays = []string{
	"2025-02-26", "2025-03-14", "2025-03-31", "2025-04-10",
	"2025-04-14", "2025-04-18", "2025-05-01", "2025-08-15",
	"2025-08-27", "2025-10-02", "2025-10-21", "2025-10-22",
	"2025-11-05", "2025-12-25", "2026-01-26", "2026-03-03",
	"2026-03-26", "2026-03-31", "2026-04-03", "2026-04-14",
	"2026-05-01", "2026-05-28", "2026-06-26", "2026-09-14",
	"2026-10-02", "2026-10-20", "2026-11-10", "2026-11-24",
	"2026-12-25", "2026-01-15",
}

// Calendar is a set of holiday dates keyed by their "2006-01-02" form.
// A nil Calendar means no holidays.
type Calendar map[string]struct{}

// NewCalendar builds a Calendar from ISO dates. Entries that do not
// parse as "2006-01-02" are ignored.
func NewCalendar(dates ...string) Calendar {
	cal := make(Calendar, len(dates))
	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			continue
		}
		cal[d] = struct{}{}
	}
	return cal
}

// Contains reports whether the calendar date of t is a holiday.
func (c Calendar) Contains(t time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c[t.Format("2006-01-02")]
	return ok
}

// DefaultCalendar returns the built-in NSE holiday calendar.
func DefaultCalendar() Calendar {
	return NewCalendar(nseHolidays...)
}
