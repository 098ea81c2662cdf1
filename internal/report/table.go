package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/greeks"
)

// RenderTable prints a priced chain with a context header and a
// summary footer.
func RenderTable(w io.Writer, res *chain.Result) {
	fmt.Fprintf(w, "%s %s  future=%.2f  atm=%.0f  rate=%.2f%%  basis=%s\n",
		res.Symbol, res.Expiry.Format("02-Jan-2006"), res.FuturePrice, res.AtmStrike, res.RatePercent, res.Convention)
	if !res.Timestamp.IsZero() {
		fmt.Fprintf(w, "quoted %s\n", res.Timestamp.Format("02-Jan-2006 15:04:05"))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"STRIKE", "OTM", "IV%", "CALL IV", "PUT IV", "CALL DELTA", "PUT DELTA", "GAMMA", "THETA", "VEGA", "RHO CALL", "RHO PUT"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetColumnSeparator("")

	for _, r := range res.Rows {
		table.Append(rowCells(r))
	}
	table.Render()

	if s := res.Summary; s != nil {
		fmt.Fprintf(w, "solved %d/%d strikes", s.Solved, s.Strikes)
		if s.MeanIV != nil && s.MedianIV != nil {
			fmt.Fprintf(w, "  iv mean=%.2f median=%.2f", *s.MeanIV, *s.MedianIV)
		}
		if s.StdevIV != nil {
			fmt.Fprintf(w, " stdev=%.2f", *s.StdevIV)
		}
		if s.MinIV != nil && s.MaxIV != nil {
			fmt.Fprintf(w, " range=[%.2f, %.2f]", *s.MinIV, *s.MaxIV)
		}
		fmt.Fprintln(w)
	}
}

// RenderReport prints a single strike vertically, one metric per line.
func RenderReport(w io.Writer, r greeks.Report) {
	table := tablewriter.NewWriter(w)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetColumnSeparator("")

	labels := []string{"STRIKE", "FUTURE", "OTM", "IV%", "CALL IV", "PUT IV", "CALL DELTA", "PUT DELTA", "GAMMA", "THETA", "VEGA", "RHO CALL", "RHO PUT"}
	cells := append([]string{
		strconv.FormatFloat(r.Strike, 'f', -1, 64),
		strconv.FormatFloat(r.FuturePrice, 'f', 2, 64),
	}, rowCells(r)[1:]...)
	for i, label := range labels {
		table.Append([]string{label, cells[i]})
	}
	table.Render()
}

func rowCells(r greeks.Report) []string {
	side := "P"
	if r.IsOTMCall {
		side = "C"
	}
	return []string{
		strconv.FormatFloat(r.Strike, 'f', -1, 64),
		side,
		cell(r.ImplVol, 2),
		cell(r.CallIV, 2),
		cell(r.PutIV, 2),
		cell(r.CallDelta, 4),
		cell(r.PutDelta, 4),
		cell(r.Gamma, 6),
		cell(r.Theta, 4),
		cell(r.Vega, 4),
		cell(r.RhoCall, 4),
		cell(r.RhoPut, 4),
	}
}

func cell(p *float64, prec int) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', prec, 64)
}
