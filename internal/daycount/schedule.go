package daycount

import "time"

// RollBack moves d to the prior trading day while the exchange is
// closed on it. A date that is already a trading day comes back as is.
func RollBack(d time.Time, cal Calendar) time.Time {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday || cal.Contains(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// WeeklyExpiries lists the next n weekly contract expiries strictly
// after start: one per settlement weekday, each rolled back to the
// prior trading day when the exchange is closed. Dates come back as
// midnights in loc.
func WeeklyExpiries(start time.Time, n int, settlement time.Weekday, cal Calendar, loc *time.Location) []time.Time {
	day := start.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)

	out := make([]time.Time, 0, n)
	for len(out) < n {
		day = day.AddDate(0, 0, 1)
		if day.Weekday() != settlement {
			continue
		}
		out = append(out, RollBack(day, cal))
	}
	return out
}

// MonthlyExpiry returns the month's contract expiry: its last
// settlement weekday, rolled back to the prior trading day when the
// exchange is closed.
func MonthlyExpiry(year int, month time.Month, settlement time.Weekday, cal Calendar, loc *time.Location) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	for d.Weekday() != settlement {
		d = d.AddDate(0, 0, -1)
	}
	return RollBack(d, cal)
}
