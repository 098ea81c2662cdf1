package tests

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/report"
)

// Full pass: fabricate a chain, price every strike, write both report
// files and read them back.
func TestIntegrationSyntheticChain(t *testing.T) {
	prov := syntheticProvider()
	expiry := farExpiry(t, prov)

	snap, err := prov.GetChain("NIFTY", expiry)
	require.NoError(t, err)

	valuation := time.Now()
	res, err := chain.PriceSnapshot(chainConfig(expiry, &valuation), snap)
	require.NoError(t, err)

	require.Len(t, res.Rows, 41)
	for i := 1; i < len(res.Rows); i++ {
		assert.Less(t, res.Rows[i-1].Strike, res.Rows[i].Strike, "rows keep chain order")
	}

	require.NotNil(t, res.Summary)
	assert.Equal(t, 41, res.Summary.Strikes)
	assert.Equal(t, 41, res.Summary.Solved, "a far expiry keeps every wing premium usable")
	require.NotNil(t, res.Summary.MeanIV)
	assert.Greater(t, *res.Summary.MeanIV, 5.0)
	assert.Less(t, *res.Summary.MeanIV, 60.0)

	outDir := t.TempDir()
	jsonPath := filepath.Join(outDir, "chain.json")
	csvPath := filepath.Join(outDir, "chain.csv")
	require.NoError(t, report.WriteJSON(res, jsonPath))
	require.NoError(t, report.WriteCSV(res.Rows, csvPath))

	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var back chain.Result
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, res.Rows, back.Rows)
	assert.Equal(t, res.Summary, back.Summary)

	rawCSV, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(rawCSV), "\n"), "\n")
	assert.Len(t, lines, 42, "header plus one line per strike")
}

// Saved chains replay byte-identically: pricing the replayed snapshot
// at the same valuation instant reproduces every row.
func TestIntegrationSaveAndReplay(t *testing.T) {
	prov := syntheticProvider()
	expiry := farExpiry(t, prov)

	snap, err := prov.GetChain("NIFTY", expiry)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, data.SaveChain(dir, snap))

	replay := data.NewLocalCSVDataProvider(dir, nil)
	snapBack, err := replay.GetChain("NIFTY", expiry)
	require.NoError(t, err)
	assert.Equal(t, snap.UnderlyingValue, snapBack.UnderlyingValue)
	require.Len(t, snapBack.Quotes, len(snap.Quotes))

	listed, err := replay.GetExpiries("NIFTY")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Equal(time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)))

	valuation := time.Now()
	cfg := chainConfig(expiry, &valuation)

	orig, err := chain.PriceSnapshot(cfg, snap)
	require.NoError(t, err)
	replayed, err := chain.PriceSnapshot(cfg, snapBack)
	require.NoError(t, err)

	assert.Equal(t, orig.Rows, replayed.Rows)
	assert.Equal(t, orig.Summary, replayed.Summary)
}

// The filter narrows rows but never the summary.
func TestIntegrationFilteredRun(t *testing.T) {
	prov := syntheticProvider()
	expiry := farExpiry(t, prov)

	snap, err := prov.GetChain("NIFTY", expiry)
	require.NoError(t, err)

	valuation := time.Now()
	cfg := chainConfig(expiry, &valuation)
	cfg.Filter = "is_otm_call == true"

	res, err := chain.PriceSnapshot(cfg, snap)
	require.NoError(t, err)

	assert.NotEmpty(t, res.Rows)
	assert.Less(t, len(res.Rows), 41)
	for _, r := range res.Rows {
		assert.True(t, r.IsOTMCall)
		assert.GreaterOrEqual(t, r.Strike, res.AtmStrike)
	}
	assert.Equal(t, 41, res.Summary.Strikes)
}
