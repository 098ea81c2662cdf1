package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/greeks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const expiryLayout = "02-Jan-2006"

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func setResponse(response interface{}, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return fmt.Errorf("setResponse: encode: %w", err)
	}
	return nil
}

func setErrorResponse(errType string, statusCode int, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := errorResponse{Type: errType, Msg: err.Error()}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = setResponse(map[string]interface{}{
		"status":       "ok",
		"rate_percent": s.Rate(),
	}, w)
}

// handleChain prices a full chain. The snapshot is fetched fresh on
// every call; expiry defaults to the nearest live contract.
func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := q.Get("symbol")
	if symbol == "" {
		symbol = "NIFTY"
	}

	var expiry time.Time
	if raw := q.Get("expiry"); raw != "" {
		var err error
		expiry, err = time.Parse(expiryLayout, raw)
		if err != nil {
			setErrorResponse("handleChain: bad expiry", http.StatusBadRequest,
				fmt.Errorf("expiry must look like 30-Dec-2025"), w)
			return
		}
	} else {
		var err error
		expiry, err = data.NextExpiry(s.prov, symbol, time.Now())
		if err != nil {
			setErrorResponse("handleChain: resolve expiry", http.StatusBadGateway, err, w)
			return
		}
	}

	conv := daycount.CalendarDays
	if raw := q.Get("convention"); raw != "" {
		var err error
		conv, err = daycount.ParseConvention(raw)
		if err != nil {
			setErrorResponse("handleChain: bad convention", http.StatusBadRequest, err, w)
			return
		}
	}

	rate := s.Rate()
	if v, err := optionalFloat(q, "rate"); err != nil {
		setErrorResponse("handleChain: bad rate", http.StatusBadRequest, err, w)
		return
	} else if v != nil {
		rate = *v
	}

	window, err := optionalInt(q, "window")
	if err != nil {
		setErrorResponse("handleChain: bad window", http.StatusBadRequest, err, w)
		return
	}
	workers, err := optionalInt(q, "workers")
	if err != nil {
		setErrorResponse("handleChain: bad workers", http.StatusBadRequest, err, w)
		return
	}
	avg, err := optionalBool(q, "use_average_iv")
	if err != nil {
		setErrorResponse("handleChain: bad use_average_iv", http.StatusBadRequest, err, w)
		return
	}
	valuation, err := parseValuation(q.Get("valuation"))
	if err != nil {
		setErrorResponse("handleChain: bad valuation", http.StatusBadRequest, err, w)
		return
	}

	cfg := &chain.Config{
		Symbol:        symbol,
		Expiry:        expiry,
		Convention:    conv,
		RatePercent:   rate,
		Workers:       workers,
		Window:        window,
		Filter:        q.Get("filter"),
		UseAverageIV:  avg,
		ValuationTime: valuation,
	}

	res, err := chain.NewEngine(cfg, s.prov).Run()
	if err != nil {
		if errors.Is(err, chain.ErrInvalidFilter) {
			setErrorResponse("handleChain: bad filter", http.StatusBadRequest, err, w)
			return
		}
		setErrorResponse("handleChain: price chain", http.StatusBadGateway, err, w)
		return
	}

	_ = setResponse(res, w)
}

// handleStrike prices one strike from explicit inputs, no provider
// involved.
func (s *Server) handleStrike(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	future, err := requiredFloat(q, "future")
	if err != nil {
		setErrorResponse("handleStrike: bad future", http.StatusBadRequest, err, w)
		return
	}
	atm, err := requiredFloat(q, "atm_strike")
	if err != nil {
		setErrorResponse("handleStrike: bad atm_strike", http.StatusBadRequest, err, w)
		return
	}
	atmCall, err := requiredFloat(q, "atm_call")
	if err != nil {
		setErrorResponse("handleStrike: bad atm_call", http.StatusBadRequest, err, w)
		return
	}
	atmPut, err := requiredFloat(q, "atm_put")
	if err != nil {
		setErrorResponse("handleStrike: bad atm_put", http.StatusBadRequest, err, w)
		return
	}
	strike, err := requiredFloat(q, "strike")
	if err != nil {
		setErrorResponse("handleStrike: bad strike", http.StatusBadRequest, err, w)
		return
	}

	expiry, err := time.Parse(expiryLayout, q.Get("expiry"))
	if err != nil {
		setErrorResponse("handleStrike: bad expiry", http.StatusBadRequest,
			fmt.Errorf("expiry must look like 30-Dec-2025"), w)
		return
	}

	conv := daycount.CalendarDays
	if raw := q.Get("convention"); raw != "" {
		conv, err = daycount.ParseConvention(raw)
		if err != nil {
			setErrorResponse("handleStrike: bad convention", http.StatusBadRequest, err, w)
			return
		}
	}

	rate := s.Rate()
	if v, err := optionalFloat(q, "rate"); err != nil {
		setErrorResponse("handleStrike: bad rate", http.StatusBadRequest, err, w)
		return
	} else if v != nil {
		rate = *v
	}

	call, err := optionalFloat(q, "call")
	if err != nil {
		setErrorResponse("handleStrike: bad call", http.StatusBadRequest, err, w)
		return
	}
	put, err := optionalFloat(q, "put")
	if err != nil {
		setErrorResponse("handleStrike: bad put", http.StatusBadRequest, err, w)
		return
	}
	avg, err := optionalBool(q, "use_average_iv")
	if err != nil {
		setErrorResponse("handleStrike: bad use_average_iv", http.StatusBadRequest, err, w)
		return
	}
	valuation, err := parseValuation(q.Get("valuation"))
	if err != nil {
		setErrorResponse("handleStrike: bad valuation", http.StatusBadRequest, err, w)
		return
	}

	ctx, err := greeks.NewContext(greeks.Config{
		FuturePrice:    future,
		AtmStrike:      atm,
		AtmCallPremium: atmCall,
		AtmPutPremium:  atmPut,
		Expiry:         expiry,
		Convention:     conv,
		RatePercent:    rate,
		ValuationTime:  valuation,
	})
	if err != nil {
		setErrorResponse("handleStrike: build context", http.StatusBadRequest, err, w)
		return
	}

	report := ctx.ImpliedVolAndGreeks(greeks.Query{
		Strike:       &strike,
		CallPremium:  call,
		PutPremium:   put,
		UseAverageIV: avg,
	})
	_ = setResponse(report, w)
}

func requiredFloat(q url.Values, key string) (float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, fmt.Errorf("missing required parameter %q", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be a number", key)
	}
	return v, nil
}

func optionalFloat(q url.Values, key string) (*float64, error) {
	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("parameter %q must be a number", key)
	}
	return &v, nil
}

func optionalInt(q url.Values, key string) (int, error) {
	raw := q.Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %q must be an integer", key)
	}
	return v, nil
}

func optionalBool(q url.Values, key string) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parameter %q must be a boolean", key)
	}
	return v, nil
}

// parseValuation accepts RFC3339 or the exchange's own timestamp shape
// in IST.
func parseValuation(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("02-Jan-2006 15:04:05", raw, daycount.MarketLocation())
	if err != nil {
		return nil, fmt.Errorf("valuation must be RFC3339 or like 30-Dec-2025 15:04:05")
	}
	return &t, nil
}
