package data

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/option-greeks/internal/logger"
)

const (
	riskFreeRateURL  = "https://techfanetechnologies.github.io/risk_free_interest_rate/RiskFreeInterestRate.json"
	riskFreeSecurity = "364 day T-bills"
)

// DefaultRiskFreeRate is the annualized percent rate assumed whenever
// the live T-bill feed is unavailable.
const DefaultRiskFreeRate = 6.0

// FetchRiskFreeRate returns the prevailing 364-day T-bill yield in
// percent. Pricing must never block on this feed, so any failure falls
// back to a 6% default. RISK_FREE_RATE_URL overrides the feed location.
//
// Parameters:
//   - client: HTTP client to use; nil gets a short-timeout default
//
// Returns:
//   - float64: annualized rate in percent (e.g., 6.04)
func FetchRiskFreeRate(client *http.Client) float64 {
	url := riskFreeRateURL
	if v := os.Getenv("RISK_FREE_RATE_URL"); v != "" {
		url = v
	}
	return fetchRiskFreeRate(client, url)
}

func fetchRiskFreeRate(client *http.Client, url string) float64 {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Get(url)
	if err != nil {
		logger.Warnf("risk-free rate fetch failed (%v), using default %.1f%%", err, DefaultRiskFreeRate)
		return DefaultRiskFreeRate
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warnf("risk-free rate feed returned status %d, using default %.1f%%", resp.StatusCode, DefaultRiskFreeRate)
		return DefaultRiskFreeRate
	}

	// The feed has served Percent both as a number and as a quoted
	// string, so decode loosely and coerce.
	var rates []struct {
		GovernmentSecurityName string      `json:"GovernmentSecurityName"`
		Percent                interface{} `json:"Percent"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		logger.Warnf("risk-free rate feed unreadable (%v), using default %.1f%%", err, DefaultRiskFreeRate)
		return DefaultRiskFreeRate
	}

	for _, r := range rates {
		if !strings.EqualFold(r.GovernmentSecurityName, riskFreeSecurity) {
			continue
		}

		switch v := r.Percent.(type) {
		case float64:
			logger.Debugf("risk-free rate: %s at %.4f%%", r.GovernmentSecurityName, v)
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				logger.Debugf("risk-free rate: %s at %.4f%%", r.GovernmentSecurityName, f)
				return f
			}
		}
	}

	logger.Warnf("%s not found in rate feed, using default %.1f%%", riskFreeSecurity, DefaultRiskFreeRate)
	return DefaultRiskFreeRate
}
