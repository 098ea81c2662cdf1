// Command option-greeks prices NSE index option chains: implied
// volatility and Greeks per strike, from live, replayed or synthetic
// data.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/greeks"
	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/report"
	"github.com/contactkeval/option-greeks/internal/server"
)

const (
	expiryLayout    = "02-Jan-2006"
	valuationLayout = "02-Jan-2006 15:04:05"
)

var rootCmd = &cobra.Command{
	Use:   "option-greeks",
	Short: "Implied volatility and Greeks for NSE index option chains",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is a convenience, never a requirement.
		_ = godotenv.Load()

		v, _ := cmd.Flags().GetInt("verbosity")
		logger.SetVerbosity(v)
	},
}

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Price every strike of an option chain",
	Run:   runChain,
}

var strikeCmd = &cobra.Command{
	Use:   "strike",
	Short: "Price a single strike from explicit quotes",
	Run:   runStrike,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chain pricing over REST",
	Run:   runServe,
}

func runChain(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()

	symbol, _ := flags.GetString("symbol")
	source, _ := flags.GetString("source")
	dataDir, _ := flags.GetString("data-dir")
	rawExpiry, _ := flags.GetString("expiry")
	match, _ := flags.GetString("match")
	rawConv, _ := flags.GetString("convention")
	rawValuation, _ := flags.GetString("valuation")
	filter, _ := flags.GetString("filter")
	workers, _ := flags.GetInt("workers")
	window, _ := flags.GetInt("window")
	averageIV, _ := flags.GetBool("average-iv")
	jsonPath, _ := flags.GetString("json")
	csvPath, _ := flags.GetString("csv")
	save, _ := flags.GetBool("save")

	prov := data.GetChainDataProvider(source, dataDir)

	expiry, err := resolveExpiry(prov, symbol, rawExpiry, match)
	if err != nil {
		logger.Fatalf("resolve expiry: %v", err)
	}
	conv, err := daycount.ParseConvention(rawConv)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	valuation, err := parseValuation(rawValuation)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	snap, err := prov.GetChain(symbol, expiry)
	if err != nil {
		logger.Fatalf("fetch chain: %v", err)
	}
	if save {
		if err := data.SaveChain(dataDir, snap); err != nil {
			logger.Fatalf("save chain: %v", err)
		}
	}

	cfg := &chain.Config{
		Symbol:        symbol,
		Expiry:        expiry,
		Convention:    conv,
		RatePercent:   resolveRate(flags),
		Workers:       workers,
		Window:        window,
		Filter:        filter,
		UseAverageIV:  averageIV,
		ValuationTime: valuation,
	}

	start := time.Now()
	res, err := chain.PriceSnapshot(cfg, snap)
	if err != nil {
		logger.Fatalf("price chain: %v", err)
	}

	report.RenderTable(os.Stdout, res)
	if jsonPath != "" {
		if err := report.WriteJSON(res, jsonPath); err != nil {
			logger.Fatalf("write json: %v", err)
		}
	}
	if csvPath != "" {
		if err := report.WriteCSV(res.Rows, csvPath); err != nil {
			logger.Fatalf("write csv: %v", err)
		}
	}
	logger.Infof("priced %d strikes in %v", len(res.Rows), time.Since(start).Round(time.Millisecond))
}

func runStrike(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()

	future, _ := flags.GetFloat64("future")
	atmStrike, _ := flags.GetFloat64("atm-strike")
	atmCall, _ := flags.GetFloat64("atm-call")
	atmPut, _ := flags.GetFloat64("atm-put")
	strike, _ := flags.GetFloat64("strike")
	rawExpiry, _ := flags.GetString("expiry")
	rawConv, _ := flags.GetString("convention")
	rawValuation, _ := flags.GetString("valuation")
	averageIV, _ := flags.GetBool("average-iv")

	expiry, err := time.Parse(expiryLayout, rawExpiry)
	if err != nil {
		logger.Fatalf("expiry must look like 30-Dec-2025")
	}
	conv, err := daycount.ParseConvention(rawConv)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	valuation, err := parseValuation(rawValuation)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, err := greeks.NewContext(greeks.Config{
		FuturePrice:    future,
		AtmStrike:      atmStrike,
		AtmCallPremium: atmCall,
		AtmPutPremium:  atmPut,
		Expiry:         expiry,
		Convention:     conv,
		RatePercent:    resolveRate(flags),
		ValuationTime:  valuation,
	})
	if err != nil {
		logger.Fatalf("build context: %v", err)
	}

	query := greeks.Query{Strike: &strike, UseAverageIV: averageIV}
	if flags.Changed("call") {
		c, _ := flags.GetFloat64("call")
		query.CallPremium = &c
	}
	if flags.Changed("put") {
		p, _ := flags.GetFloat64("put")
		query.PutPremium = &p
	}

	report.RenderReport(os.Stdout, ctx.ImpliedVolAndGreeks(query))
}

func runServe(cmd *cobra.Command, args []string) {
	flags := cmd.Flags()

	addr, _ := flags.GetString("addr")
	rateCron, _ := flags.GetString("rate-cron")
	rate, _ := flags.GetFloat64("rate")
	source, _ := flags.GetString("source")
	dataDir, _ := flags.GetString("data-dir")

	prov := data.GetChainDataProvider(source, dataDir)
	srv := server.New(server.Config{Addr: addr, RatePercent: rate, RateCron: rateCron}, prov)
	if err := srv.Start(); err != nil {
		logger.Fatalf("server: %v", err)
	}
}

// resolveExpiry parses an explicit expiry or falls back to the nearest
// contract still trading. A non-exact match mode snaps the parsed date
// onto the listed expiry it selects, so a rough date still hits a real
// contract.
func resolveExpiry(prov data.ChainProvider, symbol, raw, match string) (time.Time, error) {
	if raw == "" {
		return data.NextExpiry(prov, symbol, time.Now())
	}
	t, err := time.Parse(expiryLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("expiry must look like 30-Dec-2025")
	}

	if mode := data.DateMatchType(match); mode != data.MatchExact {
		listed, err := prov.GetExpiries(symbol)
		if err != nil {
			return time.Time{}, fmt.Errorf("list expiries: %w", err)
		}
		snapped := data.MatchExpiry(t, listed, mode)
		if snapped.IsZero() {
			return time.Time{}, fmt.Errorf("no listed expiry %s of %s", match, raw)
		}
		if !snapped.Equal(t) {
			logger.Infof("expiry %s snapped to listed %s", raw, snapped.Format(expiryLayout))
		}
		return snapped, nil
	}
	return t, nil
}

func resolveRate(flags *pflag.FlagSet) float64 {
	if fetch, _ := flags.GetBool("fetch-rate"); fetch {
		return data.FetchRiskFreeRate(nil)
	}
	rate, _ := flags.GetFloat64("rate")
	return rate
}

func parseValuation(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(valuationLayout, raw, daycount.MarketLocation())
	if err != nil {
		return nil, fmt.Errorf("valuation must look like 01-Dec-2025 10:15:00")
	}
	return &t, nil
}

func main() {
	rootCmd.PersistentFlags().IntP("verbosity", "v", 1, "log verbosity: 0=error 1=info 2=debug 3=trace")

	chainCmd.Flags().String("symbol", "NIFTY", "index symbol, e.g. NIFTY or BANKNIFTY")
	chainCmd.Flags().String("expiry", "", "contract expiry like 30-Dec-2025; empty picks the nearest live one")
	chainCmd.Flags().String("match", "exact", "snap --expiry onto a listed one: exact, nearest, higher or lower")
	chainCmd.Flags().String("source", "nse", "chain source: nse, csv or synthetic")
	chainCmd.Flags().String("data-dir", "chains", "directory for saved chain CSVs")
	chainCmd.Flags().String("convention", "calendar", "day-count convention: calendar, business or trading")
	chainCmd.Flags().Float64("rate", data.DefaultRiskFreeRate, "risk-free rate in percent")
	chainCmd.Flags().Bool("fetch-rate", false, "fetch the 364-day T-bill yield instead of using --rate")
	chainCmd.Flags().String("valuation", "", "valuation time like 01-Dec-2025 10:15:00 (IST); empty uses the clock")
	chainCmd.Flags().Int("workers", 0, "solver goroutines, 0 = NumCPU")
	chainCmd.Flags().Int("window", 0, "strikes each side of ATM, 0 = whole chain")
	chainCmd.Flags().String("filter", "", `row filter, e.g. "impl_vol > 20 && is_otm_call == true"`)
	chainCmd.Flags().Bool("average-iv", false, "average call and put IVs instead of taking the OTM side's")
	chainCmd.Flags().String("json", "", "write the full result to this JSON file")
	chainCmd.Flags().String("csv", "", "write the priced rows to this CSV file")
	chainCmd.Flags().Bool("save", false, "save the fetched snapshot under --data-dir for replay")

	strikeCmd.Flags().Float64("future", 0, "futures price")
	strikeCmd.Flags().Float64("atm-strike", 0, "ATM strike")
	strikeCmd.Flags().Float64("atm-call", 0, "ATM call premium")
	strikeCmd.Flags().Float64("atm-put", 0, "ATM put premium")
	strikeCmd.Flags().Float64("strike", 0, "strike to price")
	strikeCmd.Flags().Float64("call", 0, "call premium at the strike")
	strikeCmd.Flags().Float64("put", 0, "put premium at the strike")
	strikeCmd.Flags().String("expiry", "", "contract expiry like 30-Dec-2025")
	strikeCmd.Flags().String("convention", "calendar", "day-count convention: calendar, business or trading")
	strikeCmd.Flags().Float64("rate", data.DefaultRiskFreeRate, "risk-free rate in percent")
	strikeCmd.Flags().Bool("fetch-rate", false, "fetch the 364-day T-bill yield instead of using --rate")
	strikeCmd.Flags().String("valuation", "", "valuation time like 01-Dec-2025 10:15:00 (IST); empty uses the clock")
	strikeCmd.Flags().Bool("average-iv", false, "average call and put IVs instead of taking the OTM side's")
	for _, name := range []string{"future", "atm-strike", "atm-call", "atm-put", "strike", "expiry"} {
		_ = strikeCmd.MarkFlagRequired(name)
	}

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("rate-cron", server.DefaultRateCron, "cron spec for risk-free rate refreshes (IST)")
	serveCmd.Flags().Float64("rate", 0, "fixed risk-free rate in percent; 0 fetches and refreshes")
	serveCmd.Flags().String("source", "nse", "chain source: nse, csv or synthetic")
	serveCmd.Flags().String("data-dir", "chains", "directory for saved chain CSVs")

	rootCmd.AddCommand(chainCmd, strikeCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
