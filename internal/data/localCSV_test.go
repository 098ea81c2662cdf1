package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/daycount"
)

func sampleSnapshot() *ChainSnapshot {
	return &ChainSnapshot{
		Symbol:          "NIFTY",
		Expiry:          date(2025, 12, 30),
		UnderlyingValue: 24015.35,
		Timestamp:       time.Date(2025, 12, 1, 15, 30, 0, 0, daycount.MarketLocation()),
		Quotes: []StrikeQuote{
			{Strike: 23900, Put: &OptionQuote{LastPrice: 61.15, Volume: 98000, OpenInterest: 275000}},
			{Strike: 24000,
				Call: &OptionQuote{LastPrice: 150.25, Change: -5.6, Volume: 210000, OpenInterest: 450000, OIChange: 8000},
				Put:  &OptionQuote{LastPrice: 145.1, Change: 2.35, Volume: 190000, OpenInterest: 400000, OIChange: 3000}},
			{Strike: 24100,
				Call: &OptionQuote{LastPrice: 90.5, Volume: 125000, OpenInterest: 310000},
				Put:  &OptionQuote{LastPrice: 0, OpenInterest: 1200}},
		},
	}
}

func TestChainFileName(t *testing.T) {
	assert.Equal(t, "NIFTY_30Dec2025.csv", chainFileName("nifty", date(2025, 12, 30)))
}

func TestSaveAndLoadChainRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := sampleSnapshot()
	require.NoError(t, SaveChain(dir, snap))

	prov := NewLocalCSVDataProvider(dir, nil)
	got, err := prov.GetChain("NIFTY", snap.Expiry)
	require.NoError(t, err)

	assert.Equal(t, snap.UnderlyingValue, got.UnderlyingValue)
	assert.True(t, got.Timestamp.Equal(snap.Timestamp), "timestamp survives the round trip")
	require.Len(t, got.Quotes, 3)

	q, ok := got.Quote(24000)
	require.True(t, ok)
	require.NotNil(t, q.CallPremium())
	assert.Equal(t, 150.25, *q.CallPremium())
	assert.Equal(t, int64(210000), q.Call.Volume)

	// The unlisted call at 23900 and the untraded put at 24100 both come
	// back premiumless.
	q, _ = got.Quote(23900)
	assert.Nil(t, q.CallPremium())
	q, _ = got.Quote(24100)
	assert.Nil(t, q.PutPremium())
}

func TestLocalCSVFallsBackWhenFileMissing(t *testing.T) {
	stub := &stubProvider{snap: sampleSnapshot()}
	prov := NewLocalCSVDataProvider(t.TempDir(), stub)

	snap, err := prov.GetChain("NIFTY", date(2026, 1, 27))
	require.NoError(t, err)
	assert.Equal(t, 1, stub.chainCalls)
	assert.Equal(t, "NIFTY", snap.Symbol)

	bare := NewLocalCSVDataProvider(t.TempDir(), nil)
	_, err = bare.GetChain("NIFTY", date(2026, 1, 27))
	assert.Error(t, err)
}

func TestLocalCSVGetExpiries(t *testing.T) {
	dir := t.TempDir()

	first := sampleSnapshot()
	require.NoError(t, SaveChain(dir, first))

	second := sampleSnapshot()
	second.Expiry = date(2025, 12, 2)
	require.NoError(t, SaveChain(dir, second))

	other := sampleSnapshot()
	other.Symbol = "BANKNIFTY"
	require.NoError(t, SaveChain(dir, other))

	// Junk the scanner must ignore.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "NIFTY_notadate.csv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0o644))

	got, err := NewLocalCSVDataProvider(dir, nil).GetExpiries("NIFTY")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Equal(date(2025, 12, 2)))
	assert.True(t, got[1].Equal(date(2025, 12, 30)))
}

func TestLocalCSVGetExpiriesDelegatesWhenEmpty(t *testing.T) {
	stub := &stubProvider{expiries: []time.Time{date(2025, 12, 30)}}
	prov := NewLocalCSVDataProvider(t.TempDir(), stub)

	got, err := prov.GetExpiries("NIFTY")
	require.NoError(t, err)
	require.Len(t, got, 1)
}
