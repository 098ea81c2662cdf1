// Package chain prices every strike of an option-chain snapshot
// through one shared valuation context.
package chain

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/greeks"
	"github.com/contactkeval/option-greeks/internal/logger"
)

// Engine prices chains fetched from a provider.
type Engine struct {
	cfg  *Config
	prov data.ChainProvider
}

// Config controls a chain pricing run.
type Config struct {
	Symbol       string              `json:"symbol"`                   // e.g. "NIFTY"
	Expiry       time.Time           `json:"expiry"`                   // contract expiry date
	Convention   daycount.Convention `json:"convention"`               // day-count convention
	RatePercent  float64             `json:"rate_percent"`             // annualized rate in percent
	Workers      int                 `json:"workers,omitempty"`        // 0 = NumCPU
	Window       int                 `json:"window,omitempty"`         // strikes each side of ATM, 0 = whole chain
	Filter       string              `json:"filter,omitempty"`         // row filter expression
	UseAverageIV bool                `json:"use_average_iv,omitempty"` // average both sides instead of the OTM side

	ValuationTime *time.Time   `json:"valuation_time,omitempty"` // nil = sample the clock once per run
	Clock         greeks.Clock `json:"-"`
}

// Result is one priced chain. Summary covers every priced strike, even
// when a filter narrows Rows.
type Result struct {
	Symbol      string          `json:"symbol"`
	Expiry      time.Time       `json:"expiry"`
	Timestamp   time.Time       `json:"timestamp"` // snapshot time, zero when the source had none
	FuturePrice float64         `json:"future_price"`
	AtmStrike   float64         `json:"atm_strike"`
	RatePercent float64         `json:"rate_percent"`
	Convention  string          `json:"convention"`
	Rows        []greeks.Report `json:"rows"` // ascending by strike
	Summary     *Summary        `json:"summary,omitempty"`
}

func NewEngine(cfg *Config, prov data.ChainProvider) *Engine {
	return &Engine{cfg: cfg, prov: prov}
}

// Run fetches the chain and prices all selected strikes.
//
// The valuation context is built and frozen once, so every strike in
// the batch shares a single valuation instant. Workers price disjoint
// strikes on private clones; a strike whose quotes cannot support a
// solve degrades to a sparse row instead of failing the batch.
func (e *Engine) Run() (*Result, error) {
	snap, err := e.prov.GetChain(e.cfg.Symbol, e.cfg.Expiry)
	if err != nil {
		return nil, fmt.Errorf("fetch chain: %w", err)
	}
	return PriceSnapshot(e.cfg, snap)
}

// PriceSnapshot prices an already-fetched chain. Callers that want to
// persist or inspect the raw snapshot fetch it themselves and come in
// here.
func PriceSnapshot(cfg *Config, snap *data.ChainSnapshot) (*Result, error) {
	if len(snap.Quotes) == 0 {
		return nil, fmt.Errorf("empty chain for %s", cfg.Symbol)
	}

	future := snap.UnderlyingValue
	atm := greeks.FindAtmStrike(snap.Strikes(), future)

	book := NewStrikeBook(snap.Quotes)
	atmQuote, _ := book.Quote(atm)

	base, err := greeks.NewContext(greeks.Config{
		FuturePrice:    future,
		AtmStrike:      atm,
		AtmCallPremium: deref(atmQuote.CallPremium()),
		AtmPutPremium:  deref(atmQuote.PutPremium()),
		Expiry:         cfg.Expiry,
		Convention:     cfg.Convention,
		RatePercent:    cfg.RatePercent,
		ValuationTime:  cfg.ValuationTime,
		Clock:          cfg.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("build valuation context: %w", err)
	}

	// One clock sample for the whole batch.
	frozen := base.Freeze()

	quotes := snap.Quotes
	if cfg.Window > 0 {
		quotes = book.Window(atm, cfg.Window)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger.Infof("pricing %s expiry=%s strikes=%d workers=%d",
		cfg.Symbol, cfg.Expiry.Format("02-Jan-2006"), len(quotes), workers)

	rows := make([]greeks.Report, len(quotes))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, q := range quotes {
		i, q := i, q
		g.Go(func() error {
			strike := q.Strike
			rows[i] = frozen.Clone().ImpliedVolAndGreeks(greeks.Query{
				Strike:       &strike,
				CallPremium:  q.CallPremium(),
				PutPremium:   q.PutPremium(),
				UseAverageIV: cfg.UseAverageIV,
			})
			logger.Tracef("priced %s", data.InstrumentSymbol(cfg.Symbol, cfg.Expiry, strike, "call"))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := Summarize(rows, future, atm)

	if cfg.Filter != "" {
		rows, err = FilterRows(rows, cfg.Filter)
		if err != nil {
			return nil, fmt.Errorf("apply filter: %w", err)
		}
		logger.Debugf("filter %q kept %d of %d rows", cfg.Filter, len(rows), summary.Strikes)
	}

	return &Result{
		Symbol:      cfg.Symbol,
		Expiry:      cfg.Expiry,
		Timestamp:   snap.Timestamp,
		FuturePrice: future,
		AtmStrike:   atm,
		RatePercent: cfg.RatePercent,
		Convention:  cfg.Convention.String(),
		Rows:        rows,
		Summary:     summary,
	}, nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
