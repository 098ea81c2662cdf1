package greeks

import (
	"math"
	"testing"
	"time"

	"github.com/contactkeval/option-greeks/internal/daycount"
)

// scenarioContext is the reference setup used across the report tests:
// NIFTY-like future at 24000 with the ATM pair quoted 150/145 and a
// week to expiry, pinned to a fixed valuation instant.
func scenarioContext(t *testing.T) *ValuationContext {
	t.Helper()
	at := time.Date(2025, 12, 1, 15, 30, 0, 0, ist())
	c, err := NewContext(Config{
		FuturePrice:    24000,
		AtmStrike:      24000,
		AtmCallPremium: 150,
		AtmPutPremium:  145,
		Expiry:         time.Date(2025, 12, 8, 0, 0, 0, 0, ist()),
		ValuationTime:  &at,
		Convention:     daycount.CalendarDays,
		RatePercent:    6.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestImpliedVolAndGreeksOtmCall(t *testing.T) {
	c := scenarioContext(t)
	rpt := c.ImpliedVolAndGreeks(Query{Strike: ptr(24100), CallPremium: ptr(90)})

	if !rpt.IsOTMCall {
		t.Fatal("strike 24100 against future 24000 must be an OTM call")
	}
	if rpt.Strike != 24100 || rpt.FuturePrice != 24000 {
		t.Fatalf("row identity wrong: strike=%v future=%v", rpt.Strike, rpt.FuturePrice)
	}
	if rpt.ImplVol == nil || rpt.CallIV == nil {
		t.Fatal("call-side figures missing")
	}
	if *rpt.ImplVol != *rpt.CallIV {
		t.Fatalf("ImplVol = %v, want the call IV %v for an OTM call", *rpt.ImplVol, *rpt.CallIV)
	}
	if *rpt.ImplVol <= 0 || *rpt.ImplVol >= 100 {
		t.Fatalf("solved IV %v%% out of any plausible range", *rpt.ImplVol)
	}
	if rpt.PutIV != nil || rpt.RhoPut != nil {
		t.Fatal("put side was never quoted, its figures must be absent")
	}

	if rpt.CallDelta == nil || *rpt.CallDelta <= 0 || *rpt.CallDelta >= 1 {
		t.Fatalf("CallDelta = %v, want a value in (0,1)", rpt.CallDelta)
	}
	disc := math.Exp(-0.06 * c.TimeToExpiry())
	if got := *rpt.CallDelta - *rpt.PutDelta; math.Abs(got-disc) > 1e-4 {
		t.Fatalf("CallDelta-PutDelta = %v, want the discount factor %v", got, disc)
	}

	if rpt.Gamma == nil || *rpt.Gamma <= 0 {
		t.Fatalf("Gamma = %v, want positive", rpt.Gamma)
	}
	if rpt.Vega == nil || *rpt.Vega <= 0 {
		t.Fatalf("Vega = %v, want positive", rpt.Vega)
	}
	if rpt.Theta == nil || *rpt.Theta >= 0 {
		t.Fatalf("Theta = %v, want negative daily decay", rpt.Theta)
	}
	if rpt.RhoCall == nil {
		t.Fatal("RhoCall missing despite a solved call IV")
	}
}

func TestImpliedVolAndGreeksOtmPut(t *testing.T) {
	c := scenarioContext(t)
	rpt := c.ImpliedVolAndGreeks(Query{
		Strike:      ptr(23900),
		CallPremium: ptr(160),
		PutPremium:  ptr(85),
	})

	if rpt.IsOTMCall {
		t.Fatal("strike 23900 against future 24000 is on the put side")
	}
	if rpt.ImplVol == nil || rpt.PutIV == nil {
		t.Fatal("put-side figures missing")
	}
	if *rpt.ImplVol != *rpt.PutIV {
		t.Fatalf("ImplVol = %v, want the put IV %v below the future", *rpt.ImplVol, *rpt.PutIV)
	}
	if rpt.CallIV == nil || rpt.RhoCall == nil {
		t.Fatal("call side was quoted, its figures must be present")
	}
}

func TestImpliedVolAndGreeksAverageMode(t *testing.T) {
	c := scenarioContext(t)
	rpt := c.ImpliedVolAndGreeks(Query{
		Strike:       ptr(24100),
		CallPremium:  ptr(90),
		PutPremium:   ptr(185),
		UseAverageIV: true,
	})

	callIV := c.CallImpliedVol()
	putIV := c.PutImpliedVol()
	want := roundTo((callIV+putIV)/2*100, 2)
	if rpt.ImplVol == nil || *rpt.ImplVol != want {
		t.Fatalf("ImplVol = %v, want the averaged IV %v", rpt.ImplVol, want)
	}
}

func TestImpliedVolAndGreeksOneSidedPut(t *testing.T) {
	c := scenarioContext(t)
	rpt := c.ImpliedVolAndGreeks(Query{Strike: ptr(24100), PutPremium: ptr(185)})

	if rpt.PutIV == nil || rpt.ImplVol == nil {
		t.Fatal("put-side figures missing")
	}
	if *rpt.ImplVol != *rpt.PutIV {
		t.Fatal("with only a put premium the put IV must represent the strike")
	}
	if rpt.CallIV != nil || rpt.RhoCall != nil {
		t.Fatal("call side was never quoted, its figures must be absent")
	}
	if rpt.CallDelta == nil || rpt.Gamma == nil {
		t.Fatal("greeks must still be derived from the available side")
	}
}

func TestImpliedVolAndGreeksNoPremiums(t *testing.T) {
	c := scenarioContext(t)
	rpt := c.ImpliedVolAndGreeks(Query{Strike: ptr(24100)})

	if rpt.Strike != 24100 || rpt.FuturePrice != 24000 || !rpt.IsOTMCall {
		t.Fatalf("row identity wrong: %+v", rpt)
	}
	for name, p := range map[string]*float64{
		"ImplVol": rpt.ImplVol, "CallIV": rpt.CallIV, "PutIV": rpt.PutIV,
		"CallDelta": rpt.CallDelta, "PutDelta": rpt.PutDelta, "Gamma": rpt.Gamma,
		"Theta": rpt.Theta, "Vega": rpt.Vega, "RhoCall": rpt.RhoCall, "RhoPut": rpt.RhoPut,
	} {
		if p != nil {
			t.Errorf("%s = %v, want absent without any usable premium", name, *p)
		}
	}
}

func TestImpliedVolAndGreeksNoStrike(t *testing.T) {
	c := scenarioContext(t)
	rpt := c.ImpliedVolAndGreeks(Query{CallPremium: ptr(90)})
	if rpt.ImplVol != nil || rpt.CallIV != nil {
		t.Fatal("a query without a strike cannot solve anything")
	}
}

func TestImpliedVolAndGreeksBadStrikeOverride(t *testing.T) {
	c := scenarioContext(t)
	first := c.ImpliedVolAndGreeks(Query{Strike: ptr(24100), CallPremium: ptr(90)})
	if first.ImplVol == nil {
		t.Fatal("setup query failed to solve")
	}

	bad := c.ImpliedVolAndGreeks(Query{Strike: ptr(-50)})
	if bad.ImplVol != nil || bad.CallIV != nil {
		t.Fatal("a non-positive strike override must degrade the row")
	}
	if bad.Strike != -50 {
		t.Fatalf("degraded row should echo the offending strike, got %v", bad.Strike)
	}

	again := c.ImpliedVolAndGreeks(Query{})
	if again.Strike != 24100 {
		t.Fatalf("bad override must not stick: strike now %v", again.Strike)
	}
	if again.ImplVol == nil || *again.ImplVol != *first.ImplVol {
		t.Fatal("context state should be unchanged after the degraded query")
	}
}

func TestQueryOverridesPersist(t *testing.T) {
	c := scenarioContext(t)
	first := c.ImpliedVolAndGreeks(Query{Strike: ptr(24100), CallPremium: ptr(90)})
	second := c.ImpliedVolAndGreeks(Query{})

	if second.Strike != first.Strike {
		t.Fatalf("strike did not persist: %v then %v", first.Strike, second.Strike)
	}
	if *second.CallIV != *first.CallIV {
		t.Fatalf("call premium did not persist: IV %v then %v", *first.CallIV, *second.CallIV)
	}
}

func TestImpossiblePremiumDegradesToFloor(t *testing.T) {
	c := scenarioContext(t)
	rpt := c.ImpliedVolAndGreeks(Query{Strike: ptr(24100), CallPremium: ptr(30000)})

	if rpt.CallIV == nil {
		t.Fatal("an unresolvable premium still yields a sentinel figure")
	}
	if *rpt.CallIV != roundTo(IVLowerBound*100, 2) {
		t.Fatalf("CallIV = %v, want the near-zero sentinel", *rpt.CallIV)
	}
	if rpt.Gamma == nil || *rpt.Gamma != 0 {
		t.Fatalf("Gamma = %v, want exactly 0 at the floor", rpt.Gamma)
	}
}

func TestReportRounding(t *testing.T) {
	c := scenarioContext(t)
	rpt := c.ImpliedVolAndGreeks(Query{
		Strike:      ptr(24100),
		CallPremium: ptr(90),
		PutPremium:  ptr(185),
	})

	for name, tc := range map[string]struct {
		v      *float64
		places int32
	}{
		"ImplVol":   {rpt.ImplVol, 2},
		"CallIV":    {rpt.CallIV, 2},
		"PutIV":     {rpt.PutIV, 2},
		"CallDelta": {rpt.CallDelta, 4},
		"PutDelta":  {rpt.PutDelta, 4},
		"Theta":     {rpt.Theta, 4},
		"Vega":      {rpt.Vega, 4},
		"Gamma":     {rpt.Gamma, 6},
		"RhoCall":   {rpt.RhoCall, 4},
		"RhoPut":    {rpt.RhoPut, 4},
	} {
		if tc.v == nil {
			t.Fatalf("%s missing", name)
		}
		if got := roundTo(*tc.v, tc.places); got != *tc.v {
			t.Errorf("%s = %v carries more than %d decimals", name, *tc.v, tc.places)
		}
	}
}

func TestFindAtmStrike(t *testing.T) {
	tests := []struct {
		name    string
		strikes []float64
		future  float64
		want    float64
	}{
		{"exact listing", []float64{23900, 24000, 24100}, 24000, 24000},
		{"nearest below", []float64{23900, 24000, 24100}, 24040, 24000},
		{"nearest above", []float64{23900, 24000, 24100}, 24060, 24100},
		{"tie keeps first visited", []float64{23950, 24050}, 24000, 23950},
		{"tie in reverse order", []float64{24050, 23950}, 24000, 24050},
		{"single strike", []float64{22000}, 24000, 22000},
		{"empty ladder", nil, 24000, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FindAtmStrike(tc.strikes, tc.future); got != tc.want {
				t.Errorf("FindAtmStrike(%v, %v) = %v, want %v", tc.strikes, tc.future, got, tc.want)
			}
		})
	}
}
