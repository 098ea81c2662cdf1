package data

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/logger"
)

const chainFileLayout = "02Jan2006"

// localCSVDataProvider implements ChainProvider from chain snapshots
// stored as CSV files, one file per symbol and expiry.
type localCSVDataProvider struct {
	dir       string
	secondary ChainProvider
}

// NewLocalCSVDataProvider convenience constructor.
func NewLocalCSVDataProvider(dir string, secondary ChainProvider) *localCSVDataProvider {
	return &localCSVDataProvider{dir: dir, secondary: secondary}
}

func (localCSVDataProv *localCSVDataProvider) Secondary() ChainProvider {
	return localCSVDataProv.secondary
}

// chainRow is one strike of a stored chain. The column order mirrors
// NSE's option-chain download: call fields left, strike in the middle,
// put fields right. Underlying and timestamp repeat on every row so a
// file stays self-contained.
type chainRow struct {
	CallLTP      float64 `csv:"call_ltp"`
	CallChange   float64 `csv:"call_change"`
	CallVolume   int64   `csv:"call_volume"`
	CallOI       float64 `csv:"call_oi"`
	CallOIChange float64 `csv:"call_oi_change"`

	Strike float64 `csv:"strike"`

	PutLTP      float64 `csv:"put_ltp"`
	PutChange   float64 `csv:"put_change"`
	PutVolume   int64   `csv:"put_volume"`
	PutOI       float64 `csv:"put_oi"`
	PutOIChange float64 `csv:"put_oi_change"`

	Underlying float64 `csv:"underlying"`
	Timestamp  string  `csv:"timestamp"`
}

// chainFileName builds the per-expiry file name, e.g.
// NIFTY_30Dec2025.csv.
func chainFileName(symbol string, expiry time.Time) string {
	return fmt.Sprintf("%s_%s.csv", strings.ToUpper(symbol), expiry.Format(chainFileLayout))
}

// GetChain reads one expiry's chain from disk.
//
// Parameters:
//   - symbol: index symbol (e.g., "NIFTY")
//   - expiry: contract expiry date
//
// Returns:
//   - *ChainSnapshot: per-strike quotes in ascending strike order
//   - error: if the file is missing and no secondary is configured
func (localCSVDataProv *localCSVDataProvider) GetChain(symbol string, expiry time.Time) (*ChainSnapshot, error) {
	path := filepath.Join(localCSVDataProv.dir, chainFileName(symbol, expiry))

	f, err := os.Open(path)
	if err != nil {
		if localCSVDataProv.secondary != nil {
			logger.Debugf("no local chain at %s, falling back to secondary", path)
			return localCSVDataProv.secondary.GetChain(symbol, expiry)
		}
		return nil, fmt.Errorf("open chain file: %w", err)
	}
	defer f.Close()

	var rows []*chainRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("chain file %s has no rows", path)
	}

	snap := &ChainSnapshot{
		Symbol:          strings.ToUpper(symbol),
		Expiry:          expiry,
		UnderlyingValue: rows[0].Underlying,
		Quotes:          make([]StrikeQuote, 0, len(rows)),
	}

	if ts, err := time.ParseInLocation(nseTimestampLayout, rows[0].Timestamp, daycount.MarketLocation()); err == nil {
		snap.Timestamp = ts
	}

	for _, row := range rows {
		snap.Quotes = append(snap.Quotes, StrikeQuote{
			Strike: row.Strike,
			Call: &OptionQuote{
				LastPrice:    row.CallLTP,
				Change:       row.CallChange,
				Volume:       row.CallVolume,
				OpenInterest: row.CallOI,
				OIChange:     row.CallOIChange,
			},
			Put: &OptionQuote{
				LastPrice:    row.PutLTP,
				Change:       row.PutChange,
				Volume:       row.PutVolume,
				OpenInterest: row.PutOI,
				OIChange:     row.PutOIChange,
			},
		})
	}

	sort.Slice(snap.Quotes, func(i, j int) bool {
		return snap.Quotes[i].Strike < snap.Quotes[j].Strike
	})

	logger.Debugf("loaded %d strikes from %s", len(snap.Quotes), path)
	return snap, nil
}

// GetExpiries lists expiries by scanning the directory for files
// belonging to the symbol.
func (localCSVDataProv *localCSVDataProvider) GetExpiries(symbol string) ([]time.Time, error) {
	entries, err := os.ReadDir(localCSVDataProv.dir)
	if err != nil {
		if localCSVDataProv.secondary != nil {
			return localCSVDataProv.secondary.GetExpiries(symbol)
		}
		return nil, fmt.Errorf("scan chain directory: %w", err)
	}

	prefix := strings.ToUpper(symbol) + "_"

	var out []time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
			continue
		}

		t, err := time.Parse(chainFileLayout, strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv"))
		if err != nil {
			continue
		}
		out = append(out, t)
	}

	if len(out) == 0 {
		if localCSVDataProv.secondary != nil {
			return localCSVDataProv.secondary.GetExpiries(symbol)
		}
		return nil, fmt.Errorf("no chain files for %s in %s", symbol, localCSVDataProv.dir)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// SaveChain writes a snapshot to the directory in the same layout
// GetChain reads, so live chains can be captured for later replay.
func SaveChain(dir string, snap *ChainSnapshot) error {
	rows := make([]*chainRow, 0, len(snap.Quotes))
	ts := snap.Timestamp.Format(nseTimestampLayout)

	for _, q := range snap.Quotes {
		row := &chainRow{
			Strike:     q.Strike,
			Underlying: snap.UnderlyingValue,
			Timestamp:  ts,
		}
		if q.Call != nil {
			row.CallLTP = q.Call.LastPrice
			row.CallChange = q.Call.Change
			row.CallVolume = q.Call.Volume
			row.CallOI = q.Call.OpenInterest
			row.CallOIChange = q.Call.OIChange
		}
		if q.Put != nil {
			row.PutLTP = q.Put.LastPrice
			row.PutChange = q.Put.Change
			row.PutVolume = q.Put.Volume
			row.PutOI = q.Put.OpenInterest
			row.PutOIChange = q.Put.OIChange
		}
		rows = append(rows, row)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, chainFileName(snap.Symbol, snap.Expiry))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	logger.Infof("saved %d strikes to %s", len(rows), path)
	return nil
}
