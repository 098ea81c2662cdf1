package data

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/daycount"
)

// frozenClock pins generation time for reproducible chains.
type frozenClock struct{ now time.Time }

func (c frozenClock) Now() time.Time { return c.now }

func synthAt(seed int64, now time.Time) *synthDataProvider {
	prov := NewSyntheticDataProvider(seed, nil)
	prov.clock = frozenClock{now: now}
	return prov
}

func TestSyntheticChainIsReproducible(t *testing.T) {
	now := time.Date(2025, 12, 1, 10, 0, 0, 0, daycount.MarketLocation())
	expiry := date(2025, 12, 30)

	a, err := synthAt(42, now).GetChain("NIFTY", expiry)
	require.NoError(t, err)
	b, err := synthAt(42, now).GetChain("NIFTY", expiry)
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed and clock must reproduce the chain")

	c, err := synthAt(43, now).GetChain("NIFTY", expiry)
	require.NoError(t, err)
	assert.NotEqual(t, a.UnderlyingValue, c.UnderlyingValue, "a different seed moves the underlying")
}

func TestSyntheticChainShape(t *testing.T) {
	now := time.Date(2025, 12, 1, 10, 0, 0, 0, daycount.MarketLocation())
	expiry := date(2025, 12, 30)

	snap, err := synthAt(7, now).GetChain("NIFTY", expiry)
	require.NoError(t, err)

	require.Len(t, snap.Quotes, 41)
	assert.InDelta(t, 24000, snap.UnderlyingValue, 24000*0.03)

	strikes := snap.Strikes()
	for i := 1; i < len(strikes); i++ {
		assert.Less(t, strikes[i-1], strikes[i], "strikes must ascend")
	}
	for _, k := range strikes {
		assert.Zero(t, math.Mod(k, 50), "NIFTY strikes land on the 50-point grid")
	}

	// Both sides of a strike are priced off one vol, so put-call parity
	// holds up to tick rounding.
	atm := Closest(strikes, snap.UnderlyingValue)
	q, ok := snap.Quote(atm)
	require.True(t, ok)
	require.NotNil(t, q.CallPremium())
	require.NotNil(t, q.PutPremium())

	tte := daycount.SessionClose(expiry, daycount.MarketLocation()).Sub(now).Hours() / (24 * 365)
	disc := math.Exp(-0.06 * tte)
	assert.InDelta(t, disc*(snap.UnderlyingValue-atm), *q.CallPremium()-*q.PutPremium(), 0.11)
}

func TestSyntheticChainRejectsPastExpiry(t *testing.T) {
	now := time.Date(2025, 12, 31, 10, 0, 0, 0, daycount.MarketLocation())
	_, err := synthAt(1, now).GetChain("NIFTY", date(2025, 12, 30))
	require.Error(t, err)
}

func TestSyntheticExpiries(t *testing.T) {
	// Monday before the Dec 2 weekly expiry.
	now := time.Date(2025, 12, 1, 10, 0, 0, 0, daycount.MarketLocation())

	got, err := synthAt(1, now).GetExpiries("NIFTY")
	require.NoError(t, err)
	require.Len(t, got, 6)

	cal := daycount.DefaultCalendar()
	prev := now
	for _, e := range got {
		assert.True(t, e.After(prev), "expiries ascend")
		assert.NotEqual(t, time.Saturday, e.Weekday())
		assert.NotEqual(t, time.Sunday, e.Weekday())
		assert.False(t, cal.Contains(e), "expiry may not fall on a holiday")
		prev = e
	}

	assert.Equal(t, time.Tuesday, got[0].Weekday())
	assert.Equal(t, 2, got[0].Day())
}
