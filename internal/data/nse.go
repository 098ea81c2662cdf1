package data

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/logger"
)

const (
	nseBaseURL         = "https://www.nseindia.com"
	nseExpiryLayout    = "02-Jan-2006"
	nseTimestampLayout = "02-Jan-2006 15:04:05"
)

// nseDataProvider implements ChainProvider against NSE's public
// option-chain API. NSE only answers sessions that look like a browser:
// the landing page hands out cookies that the API endpoints require, so
// the provider primes its cookie jar before the first call and
// re-primes once when a request comes back unauthorized.
type nseDataProvider struct {
	// Client is the HTTP client used for API requests. Its cookie jar
	// carries the NSE session.
	Client *http.Client

	// BaseURL is the root endpoint (https://www.nseindia.com).
	BaseURL string

	// secondary is an optional fallback provider.
	secondary ChainProvider

	primed bool
}

// NewNSEDataProvider constructs an NSE-backed chain provider.
//
// It initializes an HTTP client with a cookie jar for the NSE session
// and sensible defaults for timeouts, connection pooling, HTTP/2 and
// gzip decompression. NSE_BASE_URL and NSE_HTTP_TIMEOUT override the
// endpoint and client timeout.
//
// Parameters:
//   - secondary: optional fallback provider consulted when NSE fails
//
// Returns:
//   - *nseDataProvider: initialized provider instance
func NewNSEDataProvider(secondary ChainProvider) *nseDataProvider {
	logger.Infof("initializing NSE data provider")

	base := nseBaseURL
	if v := os.Getenv("NSE_BASE_URL"); v != "" {
		base = v
	}
	timeout := 30 * time.Second
	if v := os.Getenv("NSE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Warnf("ignoring NSE_HTTP_TIMEOUT %q: %v", v, err)
		} else {
			timeout = d
		}
	}

	jar, _ := cookiejar.New(nil)
	return &nseDataProvider{
		Client: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 20 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				DisableCompression:    false, // must be false to enable gzip auto-decompression
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL:   base,
		secondary: secondary,
	}
}

// Secondary returns the configured secondary ChainProvider, if any.
func (nseDataProv *nseDataProvider) Secondary() ChainProvider {
	return nseDataProv.secondary
}

// setBrowserHeaders mirrors what NSE expects from a real browser tab.
func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.nseindia.com/option-chain")
}

// primeSession visits the landing page to collect session cookies.
func (nseDataProv *nseDataProvider) primeSession() error {
	req, err := http.NewRequest("GET", nseDataProv.BaseURL, nil)
	if err != nil {
		return err
	}
	setBrowserHeaders(req)

	resp, err := nseDataProv.Client.Do(req)
	if err != nil {
		return fmt.Errorf("priming NSE session: %w", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	logger.Debugf("NSE session primed, status=%d", resp.StatusCode)
	nseDataProv.primed = true
	return nil
}

// getJSON performs a session-aware GET and decodes the JSON body.
//
// Behavior:
//   - Primes the cookie session before the first request
//   - Retries on HTTP 429 after sleeping to the next minute boundary
//   - Re-primes the session once on 401/403 (NSE expires cookies fast)
//   - Decodes into out on HTTP 200
func (nseDataProv *nseDataProvider) getJSON(reqURL string, out interface{}) error {
	if !nseDataProv.primed {
		if err := nseDataProv.primeSession(); err != nil {
			return err
		}
	}

	reprimed := false
	for {
		req, err := http.NewRequest("GET", reqURL, nil)
		if err != nil {
			return err
		}
		setBrowserHeaders(req)

		resp, err := nseDataProv.Client.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()

			// Sleep until the next minute boundary
			now := time.Now()
			sleepDuration := time.Until(now.Truncate(time.Minute).Add(time.Minute))

			logger.Infof("rate limit hit, sleeping for %s", sleepDuration)
			time.Sleep(sleepDuration)
			continue
		}

		if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && !reprimed {
			resp.Body.Close()
			logger.Debugf("NSE session rejected with status=%d, re-priming", resp.StatusCode)

			if err := nseDataProv.primeSession(); err != nil {
				return err
			}
			reprimed = true
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}

		if resp.StatusCode != http.StatusOK {
			logger.Errorf("NSE API error status=%d", resp.StatusCode)
			return fmt.Errorf("NSE returned status %d", resp.StatusCode)
		}

		if len(body) == 0 {
			return fmt.Errorf("empty response body")
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode: %w", err)
		}
		return nil
	}
}

// nseSideQuote is one option side as NSE's chain API reports it.
type nseSideQuote struct {
	LastPrice            float64 `json:"lastPrice"`
	Change               float64 `json:"change"`
	TotalTradedVolume    int64   `json:"totalTradedVolume"`
	OpenInterest         float64 `json:"openInterest"`
	ChangeinOpenInterest float64 `json:"changeinOpenInterest"`
}

func (q *nseSideQuote) toQuote() *OptionQuote {
	if q == nil {
		return nil
	}
	return &OptionQuote{
		LastPrice:    q.LastPrice,
		Change:       q.Change,
		Volume:       q.TotalTradedVolume,
		OpenInterest: q.OpenInterest,
		OIChange:     q.ChangeinOpenInterest,
	}
}

// nseChainResp models the option-chain response envelope. The same
// envelope shape serves both the per-expiry chain endpoint and the
// expiry listing.
type nseChainResp struct {
	Records struct {
		ExpiryDates     []string `json:"expiryDates"`
		Timestamp       string   `json:"timestamp"`
		UnderlyingValue float64  `json:"underlyingValue"`
		Data            []struct {
			StrikePrice float64       `json:"strikePrice"`
			ExpiryDate  string        `json:"expiryDate"`
			CE          *nseSideQuote `json:"CE"`
			PE          *nseSideQuote `json:"PE"`
		} `json:"data"`
	} `json:"records"`
}

// GetChain fetches one expiry's option chain.
//
// Parameters:
//   - symbol: index symbol (e.g., "NIFTY")
//   - expiry: contract expiry date
//
// Returns:
//   - *ChainSnapshot: per-strike quotes in ascending strike order
//   - error: if the request fails and no secondary is configured
func (nseDataProv *nseDataProvider) GetChain(symbol string, expiry time.Time) (*ChainSnapshot, error) {
	logger.Debugf("chain request: %s expiry=%s", symbol, expiry.Format(nseExpiryLayout))

	u, err := url.Parse(nseDataProv.BaseURL + "/api/option-chain-v3")
	if err != nil {
		return nil, err
	}

	query := u.Query()
	query.Set("type", "Indices")
	query.Set("symbol", symbol)
	query.Set("expiry", expiry.Format(nseExpiryLayout))
	u.RawQuery = query.Encode()

	var body nseChainResp
	if err := nseDataProv.getJSON(u.String(), &body); err != nil {
		if nseDataProv.secondary != nil {
			logger.Warnf("NSE chain fetch failed (%v), falling back to secondary", err)
			return nseDataProv.secondary.GetChain(symbol, expiry)
		}
		return nil, fmt.Errorf("fetch NSE chain: %w", err)
	}

	snap := &ChainSnapshot{
		Symbol:          symbol,
		Expiry:          expiry,
		UnderlyingValue: body.Records.UnderlyingValue,
		Quotes:          make([]StrikeQuote, 0, len(body.Records.Data)),
	}

	if ts, err := time.ParseInLocation(nseTimestampLayout, body.Records.Timestamp, daycount.MarketLocation()); err == nil {
		snap.Timestamp = ts
	} else {
		logger.Tracef("unparsable chain timestamp %q", body.Records.Timestamp)
	}

	for _, row := range body.Records.Data {
		snap.Quotes = append(snap.Quotes, StrikeQuote{
			Strike: row.StrikePrice,
			Call:   row.CE.toQuote(),
			Put:    row.PE.toQuote(),
		})
	}

	sort.Slice(snap.Quotes, func(i, j int) bool {
		return snap.Quotes[i].Strike < snap.Quotes[j].Strike
	})

	logger.Tracef("received %d strikes for %s", len(snap.Quotes), symbol)

	if len(snap.Quotes) == 0 {
		if nseDataProv.secondary != nil {
			logger.Warnf("NSE returned an empty chain for %s, falling back to secondary", symbol)
			return nseDataProv.secondary.GetChain(symbol, expiry)
		}
		return nil, fmt.Errorf("empty chain for %s %s", symbol, expiry.Format(nseExpiryLayout))
	}

	return snap, nil
}

// GetExpiries lists the expiries currently quoted for a symbol, sorted
// ascending.
func (nseDataProv *nseDataProvider) GetExpiries(symbol string) ([]time.Time, error) {
	u, err := url.Parse(nseDataProv.BaseURL + "/api/option-chain-indices")
	if err != nil {
		return nil, err
	}

	query := u.Query()
	query.Set("symbol", symbol)
	u.RawQuery = query.Encode()

	var body nseChainResp
	if err := nseDataProv.getJSON(u.String(), &body); err != nil {
		if nseDataProv.secondary != nil {
			logger.Warnf("NSE expiry listing failed (%v), falling back to secondary", err)
			return nseDataProv.secondary.GetExpiries(symbol)
		}
		return nil, fmt.Errorf("fetch NSE expiries: %w", err)
	}

	out := make([]time.Time, 0, len(body.Records.ExpiryDates))
	for _, s := range body.Records.ExpiryDates {
		t, err := time.Parse(nseExpiryLayout, s)
		if err != nil {
			continue // skip malformed expiry dates
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	if len(out) == 0 {
		return nil, fmt.Errorf("no expiries listed for %s", symbol)
	}

	logger.Tracef("resolved %d expiries for %s", len(out), symbol)
	return out, nil
}
