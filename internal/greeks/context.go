// Package greeks computes Black-76 implied volatilities and Greeks for
// options on futures. A ValuationContext owns the market inputs for one
// option series (future price, ATM pair, expiry, day-count convention);
// per-strike queries against it produce Report rows. The engine is pure
// computation: no I/O, no persistence, and the injected clock is its
// only external dependency.
package greeks

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/logger"
)

// ErrInvalidInput rejects unusable market inputs at construction:
// non-positive future price or strike, or an expiry that does not lie
// after the valuation time.
var ErrInvalidInput = errors.New("invalid input")

// MinPremium is the minimum tradable tick (5 paise). Every premium is
// floored here before use so a zero or stale quote cannot zero out the
// solver's objective.
const MinPremium = 0.05

// parityTolerance is the fraction of the future price beyond which an
// ATM put-call parity mismatch is reported.
const parityTolerance = 0.01

// TimeMode says whether the valuation time is pinned or re-sampled.
type TimeMode int

const (
	// Fixed contexts keep the valuation time supplied at construction;
	// repeated queries are idempotent.
	Fixed TimeMode = iota
	// Dynamic contexts re-sample the clock before every computation.
	Dynamic
)

func (m TimeMode) String() string {
	if m == Fixed {
		return "fixed"
	}
	return "dynamic"
}

// ExpiryType tags the contract cycle of the series.
type ExpiryType string

const (
	ExpiryWeekly  ExpiryType = "WEEKLY"
	ExpiryMonthly ExpiryType = "MONTHLY"
)

// MatchProfile labels which vendor's published figures the report is
// meant to line up with. It tags output only; the math never branches
// on it.
type MatchProfile string

const (
	ProfileNSE       MatchProfile = "NSE"
	ProfileCustom    MatchProfile = "CUSTOM"
	ProfileSensibull MatchProfile = "SENSIBULL"
)

// Clock supplies the current time. Injecting it keeps Dynamic contexts
// deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Config carries the construction inputs for a ValuationContext.
// Pointer fields are optional; nil leaves them unset.
type Config struct {
	FuturePrice    float64   // primary pricing input, must be positive
	AtmStrike      float64   // strike of the ATM pair, must be positive
	AtmCallPremium float64   // floored at MinPremium before use
	AtmPutPremium  float64   // floored at MinPremium before use
	Expiry         time.Time // settles at the 15:30 session close of its date

	Strike      *float64 // default strike for queries
	CallPremium *float64 // default call premium for queries
	PutPremium  *float64 // default put premium for queries

	ExpiryType    ExpiryType          // default ExpiryMonthly
	ValuationTime *time.Time          // nil selects Dynamic mode
	Profile       MatchProfile        // default ProfileCustom
	Convention    daycount.Convention // default CalendarDays
	RatePercent   float64             // annualized percent, discounting only
	Holidays      daycount.Calendar   // default NSE calendar
	Location      *time.Location      // default Asia/Kolkata
	Clock         Clock               // default SystemClock()
}

// ValuationContext holds the market state for one option series.
// It is immutable apart from Update and the per-query strike overrides;
// the valuation time additionally moves with the clock in Dynamic mode.
type ValuationContext struct {
	futurePrice float64
	atmStrike   float64
	atmCall     float64 // floored
	atmPut      float64 // floored
	rawAtmCall  float64 // as supplied, for the parity check
	rawAtmPut   float64

	strike float64 // 0 until a strike is supplied
	call   *float64
	put    *float64

	expiry     time.Time
	expiryType ExpiryType
	profile    MatchProfile

	valuationTime time.Time
	mode          TimeMode
	clock         Clock

	convention daycount.Convention
	holidays   daycount.Calendar
	loc        *time.Location

	rate float64 // annualized fraction
	tte  float64 // year fraction, recomputed on refresh
}

// NewContext validates cfg and builds a context. The time mode is
// decided here once: an explicitly supplied valuation time pins the
// context to Fixed, otherwise it runs Dynamic off the clock. An ATM
// put-call parity mismatch beyond 1% of the future price is logged and
// tolerated; the engine proceeds on the floored inputs.
func NewContext(cfg Config) (*ValuationContext, error) {
	if cfg.FuturePrice <= 0 {
		return nil, fmt.Errorf("%w: future price must be positive, got %v", ErrInvalidInput, cfg.FuturePrice)
	}
	if cfg.AtmStrike <= 0 {
		return nil, fmt.Errorf("%w: ATM strike must be positive, got %v", ErrInvalidInput, cfg.AtmStrike)
	}
	if cfg.Strike != nil && *cfg.Strike <= 0 {
		return nil, fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidInput, *cfg.Strike)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock()
	}
	loc := cfg.Location
	if loc == nil {
		loc = daycount.MarketLocation()
	}
	holidays := cfg.Holidays
	if holidays == nil {
		holidays = daycount.DefaultCalendar()
	}
	expiryType := cfg.ExpiryType
	if expiryType == "" {
		expiryType = ExpiryMonthly
	}
	profile := cfg.Profile
	if profile == "" {
		profile = ProfileCustom
	}

	mode := Dynamic
	valuation := clock.Now()
	if cfg.ValuationTime != nil {
		mode = Fixed
		valuation = *cfg.ValuationTime
	}

	if !daycount.SessionClose(cfg.Expiry, loc).After(valuation) {
		return nil, fmt.Errorf("%w: expiry %s is not after valuation time %s",
			ErrInvalidInput, cfg.Expiry.Format("2006-01-02"), valuation.Format(time.RFC3339))
	}

	c := &ValuationContext{
		futurePrice: cfg.FuturePrice,
		atmStrike:   cfg.AtmStrike,
		atmCall:     floorPremium(cfg.AtmCallPremium),
		atmPut:      floorPremium(cfg.AtmPutPremium),
		rawAtmCall:  cfg.AtmCallPremium,
		rawAtmPut:   cfg.AtmPutPremium,

		call: floorPtr(cfg.CallPremium),
		put:  floorPtr(cfg.PutPremium),

		expiry:     cfg.Expiry,
		expiryType: expiryType,
		profile:    profile,

		valuationTime: valuation,
		mode:          mode,
		clock:         clock,

		convention: cfg.Convention,
		holidays:   holidays,
		loc:        loc,
		rate:       cfg.RatePercent / 100,
	}
	if cfg.Strike != nil {
		c.strike = *cfg.Strike
	}

	c.refresh()
	c.checkAtmSanity()
	return c, nil
}

// checkAtmSanity reports, without failing, the two ATM conditions worth
// an operator's attention: both sides quoting near zero, and a put-call
// parity gap beyond 1% of the future.
func (c *ValuationContext) checkAtmSanity() {
	if c.rawAtmCall <= 0.01 && c.rawAtmPut <= 0.01 {
		logger.Warnf("both ATM premiums are near zero: call=%v put=%v", c.rawAtmCall, c.rawAtmPut)
	}

	synthetic := c.atmCall - c.atmPut + c.atmStrike
	diff := math.Abs(synthetic - c.futurePrice)
	if diff > c.futurePrice*parityTolerance {
		logger.Warnf("put-call parity violation at ATM: future=%.2f synthetic=%.2f diff=%.2f",
			c.futurePrice, synthetic, diff)
	}
}

// Update re-supplies the mutable market inputs and recomputes the time
// to expiry. Supplying a valuation time re-anchors the context to Fixed;
// passing nil keeps the current mode.
func (c *ValuationContext) Update(futurePrice, atmStrike, atmCallPremium, atmPutPremium float64, valuationTime *time.Time) error {
	if futurePrice <= 0 {
		return fmt.Errorf("%w: future price must be positive, got %v", ErrInvalidInput, futurePrice)
	}
	if atmStrike <= 0 {
		return fmt.Errorf("%w: ATM strike must be positive, got %v", ErrInvalidInput, atmStrike)
	}

	if valuationTime != nil {
		c.valuationTime = *valuationTime
		c.mode = Fixed
	}

	c.futurePrice = futurePrice
	c.atmStrike = atmStrike
	c.atmCall = floorPremium(atmCallPremium)
	c.atmPut = floorPremium(atmPutPremium)
	c.rawAtmCall = atmCallPremium
	c.rawAtmPut = atmPutPremium

	c.refresh()
	return nil
}

// refresh is the only mutable state transition in the engine: Dynamic
// contexts re-sample the clock, and the year fraction is recomputed.
// It runs before every IV/Greeks query.
func (c *ValuationContext) refresh() {
	if c.mode == Dynamic {
		c.valuationTime = c.clock.Now()
	}
	c.tte = daycount.YearFraction(c.valuationTime, c.expiry, c.convention, c.holidays, c.loc)
}

// TimeToExpiry refreshes and returns the year fraction under the
// context's convention.
func (c *ValuationContext) TimeToExpiry() float64 {
	c.refresh()
	return c.tte
}

// pricer assembles the Black-76 inputs for the current strike.
func (c *ValuationContext) pricer() Black76 {
	return Black76{F: c.futurePrice, K: c.strike, T: c.tte, R: c.rate}
}

// CallImpliedVol solves the call IV from the last-set call premium at
// the last computed time to expiry. Returns NaN when no call premium
// has been supplied, and IVLowerBound when the premium cannot be
// matched by any volatility in the search range.
func (c *ValuationContext) CallImpliedVol() float64 {
	if c.call == nil {
		return math.NaN()
	}
	return SolveImpliedVol(*c.call, c.pricer().Call)
}

// PutImpliedVol is the put-side counterpart of CallImpliedVol.
func (c *ValuationContext) PutImpliedVol() float64 {
	if c.put == nil {
		return math.NaN()
	}
	return SolveImpliedVol(*c.put, c.pricer().Put)
}

// Clone returns an independent copy. Queries against the clone never
// touch the original's strike or premiums.
func (c *ValuationContext) Clone() *ValuationContext {
	cp := *c
	cp.call = copyPtr(c.call)
	cp.put = copyPtr(c.put)
	return &cp
}

// Freeze samples the clock once and returns a Fixed copy pinned at that
// instant. Chain pricing hands each worker its own frozen copy so a
// single clock sample covers the whole snapshot and T stays consistent
// across strikes.
func (c *ValuationContext) Freeze() *ValuationContext {
	c.refresh()
	cp := c.Clone()
	cp.mode = Fixed
	return cp
}

// FuturePrice returns the current future price.
func (c *ValuationContext) FuturePrice() float64 { return c.futurePrice }

// AtmStrike returns the ATM strike of the series.
func (c *ValuationContext) AtmStrike() float64 { return c.atmStrike }

// Expiry returns the contract expiry.
func (c *ValuationContext) Expiry() time.Time { return c.expiry }

// ValuationTime returns the valuation instant of the last refresh.
func (c *ValuationContext) ValuationTime() time.Time { return c.valuationTime }

// Mode reports whether the context is Fixed or Dynamic.
func (c *ValuationContext) Mode() TimeMode { return c.mode }

// Convention returns the day-count convention in force.
func (c *ValuationContext) Convention() daycount.Convention { return c.convention }

// Rate returns the annualized discounting rate as a fraction.
func (c *ValuationContext) Rate() float64 { return c.rate }

// Profile returns the vendor-matching label.
func (c *ValuationContext) Profile() MatchProfile { return c.profile }

// ExpiryType returns the contract-cycle label.
func (c *ValuationContext) ExpiryType() ExpiryType { return c.expiryType }
