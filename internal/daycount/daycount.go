// Package daycount converts a valuation instant and an option expiry into
// a year fraction under one of three day-count conventions.
//
// The numerator ("days to expiry") and the divisor ("days in a year") are
// computed separately. The divisor depends on both the convention and how
// many calendar-year boundaries the valuation→expiry span crosses, so it
// is dispatched over (convention, year gap) as an explicit decision table.
package daycount

import (
	"fmt"
	"strings"
	"time"
)

// Convention selects how calendar spans convert into year fractions.
type Convention int

const (
	// CalendarDays divides raw elapsed days by 365.
	CalendarDays Convention = iota
	// BusinessDays counts Mon-Fri days only.
	BusinessDays
	// TradingDays counts Mon-Fri days minus exchange holidays.
	TradingDays
)

// Market session anchors. An expiry always settles at the session close
// of its date; intraday numerators are offset from the market open.
const (
	marketOpenHours   = 8.5  // 08:30
	sessionCloseHour  = 15   // 15:30
	sessionCloseMin   = 30
	hoursPerDay       = 24.0
	calendarYearBasis = 365.0
)

func (c Convention) String() string {
	switch c {
	case CalendarDays:
		return "calendar"
	case BusinessDays:
		return "business"
	case TradingDays:
		return "trading"
	}
	return fmt.Sprintf("convention(%d)", int(c))
}

// ParseConvention maps a CLI/API string onto a Convention.
func ParseConvention(s string) (Convention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "calendar", "calendar_days", "calendardays":
		return CalendarDays, nil
	case "business", "business_days", "businessdays":
		return BusinessDays, nil
	case "trading", "trading_days", "tradingdays":
		return TradingDays, nil
	}
	return CalendarDays, fmt.Errorf("unknown day-count convention %q", s)
}

// MarketLocation returns the exchange timezone used to anchor session
// close times. Falls back to a fixed UTC+5:30 zone if the tzdata lookup
// fails.
func MarketLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}

// SessionClose anchors t's calendar date to the 15:30 session close in loc.
func SessionClose(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), sessionCloseHour, sessionCloseMin, 0, 0, loc)
}

// midnight truncates t to 00:00 of its calendar date in loc.
func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CountBusinessDays counts Mon-Fri dates in the half-open range
// [from, to), skipping any date in hol. A nil hol means no holidays.
// Matches the begin-inclusive/end-exclusive counting the conventions
// are defined against.
func CountBusinessDays(from, to time.Time, hol Calendar) int {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	n := 0
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		if hol.Contains(d) {
			continue
		}
		n++
	}
	return n
}

// DaysToExpiry computes the numerator in day units.
//
// CalendarDays: elapsed seconds from the valuation instant to the expiry
// date's session close, divided by 86400.
//
// BusinessDays/TradingDays: the business-day count from the valuation
// date through the expiry date inclusive, minus the market-open offset
// (08:30) and minus the valuation time's own offset from midnight, all
// in day units. TradingDays additionally drops holidays from the count.
func DaysToExpiry(valuation, expiry time.Time, conv Convention, cal Calendar, loc *time.Location) float64 {
	if loc == nil {
		loc = MarketLocation()
	}
	valuation = valuation.In(loc)
	expiry = expiry.In(loc)

	if conv == CalendarDays {
		close := SessionClose(expiry, loc)
		return close.Sub(valuation).Seconds() / 86400.0
	}

	hol := holidaysFor(conv, cal)
	whole := CountBusinessDays(valuation, expiry.AddDate(0, 0, 1), hol)
	sinceMidnight := valuation.Sub(midnight(valuation, loc)).Seconds() / 86400.0
	return float64(whole) - marketOpenHours/hoursPerDay - sinceMidnight
}

// YearFraction converts the valuation→expiry span into years under conv.
// cal supplies the holiday set for TradingDays (DefaultCalendar when nil);
// loc anchors session times (MarketLocation when nil).
func YearFraction(valuation, expiry time.Time, conv Convention, cal Calendar, loc *time.Location) float64 {
	if loc == nil {
		loc = MarketLocation()
	}
	num := DaysToExpiry(valuation, expiry, conv, cal, loc)
	div := divisorDays(valuation.In(loc), expiry.In(loc), conv, cal)
	return num / div
}

// divisorDays is the (convention, yearGap) decision table for the
// year-fraction divisor:
//
//	calendar, any gap     -> 365
//	business/trading, 0   -> business/trading days of the valuation year
//	business/trading, 1   -> days from the valuation date to next Jan 1
//	                         plus the full expiry year's count
//	business/trading, >=2 -> days over the valuation→expiry span directly
//	anything else         -> 365
func divisorDays(valuation, expiry time.Time, conv Convention, cal Calendar) float64 {
	if conv == CalendarDays {
		return calendarYearBasis
	}

	hol := holidaysFor(conv, cal)
	gap := expiry.Year() - valuation.Year()

	switch {
	case gap == 0:
		jan1 := time.Date(valuation.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return float64(CountBusinessDays(jan1, jan1.AddDate(1, 0, 0), hol))

	case gap == 1:
		nextJan1 := time.Date(valuation.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
		expJan1 := time.Date(expiry.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		head := CountBusinessDays(valuation, nextJan1, hol)
		full := CountBusinessDays(expJan1, expJan1.AddDate(1, 0, 0), hol)
		return float64(head + full)

	case gap >= 2:
		return float64(CountBusinessDays(valuation, expiry.AddDate(0, 0, 1), hol))
	}

	// expiry year behind the valuation year; construction rejects this,
	// but the table still needs a row
	return calendarYearBasis
}

// holidaysFor returns the holiday set a convention counts against:
// TradingDays uses cal (or the built-in NSE calendar), BusinessDays and
// CalendarDays use none.
func holidaysFor(conv Convention, cal Calendar) Calendar {
	if conv != TradingDays {
		return nil
	}
	if cal == nil {
		return DefaultCalendar()
	}
	return cal
}
