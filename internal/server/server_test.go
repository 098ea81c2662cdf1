package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/greeks"
)

type stubProvider struct {
	snap     *data.ChainSnapshot
	expiries []time.Time
	err      error
}

func (s *stubProvider) Secondary() data.ChainProvider { return nil }

func (s *stubProvider) GetChain(symbol string, expiry time.Time) (*data.ChainSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func (s *stubProvider) GetExpiries(symbol string) ([]time.Time, error) {
	if len(s.expiries) == 0 {
		return nil, fmt.Errorf("stub has no expiries")
	}
	return s.expiries, nil
}

// fixtureChain prices five strikes at a flat 15% vol for the Dec 30
// contract valued at the Dec 1 session close (29/365 calendar years).
func fixtureChain() *data.ChainSnapshot {
	loc := daycount.MarketLocation()
	valuation := time.Date(2025, 12, 1, 15, 30, 0, 0, loc)
	expiry := time.Date(2025, 12, 30, 0, 0, 0, 0, loc)

	const vol = 0.15
	tte := 29.0 / 365

	var quotes []data.StrikeQuote
	for _, k := range []float64{23900, 23950, 24000, 24050, 24100} {
		b := greeks.Black76{F: 24000, K: k, T: tte, R: 0.06}
		quotes = append(quotes, data.StrikeQuote{
			Strike: k,
			Call:   &data.OptionQuote{LastPrice: b.Call(vol)},
			Put:    &data.OptionQuote{LastPrice: b.Put(vol)},
		})
	}

	return &data.ChainSnapshot{
		Symbol:          "NIFTY",
		Expiry:          expiry,
		UnderlyingValue: 24000,
		Timestamp:       valuation,
		Quotes:          quotes,
	}
}

func testServer(prov data.ChainProvider) *Server {
	return New(Config{Addr: ":0"}, prov)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := testServer(&stubProvider{})

	rec := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, data.DefaultRiskFreeRate, body["rate_percent"])
}

func TestHealthRejectsOtherMethods(t *testing.T) {
	s := testServer(&stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChainEndpoint(t *testing.T) {
	s := testServer(&stubProvider{snap: fixtureChain()})

	params := url.Values{}
	params.Set("symbol", "NIFTY")
	params.Set("expiry", "30-Dec-2025")
	params.Set("convention", "calendar")
	params.Set("rate", "6")
	params.Set("valuation", "01-Dec-2025 15:30:00")

	rec := get(t, s, "/api/v1/chain?"+params.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res chain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "NIFTY", res.Symbol)
	assert.Equal(t, 24000.0, res.AtmStrike)
	require.Len(t, res.Rows, 5)
	for _, row := range res.Rows {
		require.NotNil(t, row.ImplVol, "strike %v should solve", row.Strike)
		assert.InDelta(t, 15.0, *row.ImplVol, 0.05)
	}
	require.NotNil(t, res.Summary)
	assert.Equal(t, 5, res.Summary.Solved)
}

func TestChainEndpointFilter(t *testing.T) {
	s := testServer(&stubProvider{snap: fixtureChain()})

	params := url.Values{}
	params.Set("expiry", "30-Dec-2025")
	params.Set("valuation", "01-Dec-2025 15:30:00")
	params.Set("filter", "strike >= 24000")

	rec := get(t, s, "/api/v1/chain?"+params.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res chain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Rows, 3)
	assert.Equal(t, 5, res.Summary.Strikes, "summary still covers the whole chain")
}

func TestChainEndpointDefaultExpiry(t *testing.T) {
	first := time.Now().AddDate(0, 0, 7).Truncate(24 * time.Hour)
	snap := fixtureChain()
	s := testServer(&stubProvider{
		snap:     snap,
		expiries: []time.Time{first.AddDate(0, 0, 7), first},
	})

	rec := get(t, s, "/api/v1/chain")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res chain.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Expiry.Equal(first), "defaults to the nearest live expiry")
}

func TestChainEndpointBadRequests(t *testing.T) {
	s := testServer(&stubProvider{snap: fixtureChain()})

	cases := []struct {
		name  string
		query string
	}{
		{"bad expiry", "expiry=garbage"},
		{"bad convention", "expiry=30-Dec-2025&convention=martian"},
		{"bad rate", "expiry=30-Dec-2025&rate=six"},
		{"bad window", "expiry=30-Dec-2025&window=wide"},
		{"bad valuation", "expiry=30-Dec-2025&valuation=noon"},
		{"bad filter", "expiry=30-Dec-2025&filter=strike%20%2B"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, s, "/api/v1/chain?"+tc.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Msg)
		})
	}
}

func TestChainEndpointProviderFailure(t *testing.T) {
	s := testServer(&stubProvider{err: fmt.Errorf("nse unreachable")})

	rec := get(t, s, "/api/v1/chain?expiry=30-Dec-2025")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Msg, "nse unreachable")
}

func TestStrikeEndpoint(t *testing.T) {
	s := testServer(&stubProvider{})

	const vol = 0.15
	tte := 29.0 / 365
	atm := greeks.Black76{F: 24000, K: 24000, T: tte, R: 0.06}

	params := url.Values{}
	params.Set("future", "24000")
	params.Set("atm_strike", "24000")
	params.Set("atm_call", fmt.Sprintf("%.4f", atm.Call(vol)))
	params.Set("atm_put", fmt.Sprintf("%.4f", atm.Put(vol)))
	params.Set("strike", "24000")
	params.Set("call", fmt.Sprintf("%.4f", atm.Call(vol)))
	params.Set("put", fmt.Sprintf("%.4f", atm.Put(vol)))
	params.Set("expiry", "30-Dec-2025")
	params.Set("valuation", "01-Dec-2025 15:30:00")
	params.Set("rate", "6")

	rec := get(t, s, "/api/v1/strike?"+params.Encode())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep greeks.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 24000.0, rep.Strike)
	require.NotNil(t, rep.ImplVol)
	assert.InDelta(t, 15.0, *rep.ImplVol, 0.05)
	require.NotNil(t, rep.CallDelta)
	require.NotNil(t, rep.PutDelta)
}

func TestStrikeEndpointValidation(t *testing.T) {
	s := testServer(&stubProvider{})

	rec := get(t, s, "/api/v1/strike?future=24000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Zero future fails context validation, not parameter parsing.
	rec = get(t, s, "/api/v1/strike?future=0&atm_strike=24000&atm_call=100&atm_put=100&strike=24000&expiry=30-Dec-2025")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateCache(t *testing.T) {
	s := testServer(&stubProvider{})
	assert.Equal(t, data.DefaultRiskFreeRate, s.Rate(), "unseeded cache falls back to the default")

	s.fetchRate = func() float64 { return 6.55 }
	s.refreshRate()
	assert.Equal(t, 6.55, s.Rate())

	fixed := New(Config{Addr: ":0", RatePercent: 7.25}, &stubProvider{})
	assert.Equal(t, 7.25, fixed.Rate(), "configured rate wins without any fetch")
}
