package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WriteReport renders the result summary as a table.
func WriteReport(w io.Writer, r *Results) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Backtest Results")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	t.AppendRows([]table.Row{
		{"Initial Balance", usd(r.InitialBalance)},
		{"Final Balance", usd(r.FinalBalance)},
		{"Final Position", fmt.Sprintf("%.8f", r.FinalPosition)},
		{"Final Equity", usd(r.FinalEquity)},
		{"Total Return", fmt.Sprintf("%s (%+.2f%%)", usd(r.TotalReturn), r.ReturnPct)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Total Trades", r.TotalTrades},
		{"Buys / Sells", fmt.Sprintf("%d / %d", r.BuyTrades, r.SellTrades)},
		{"Winning / Losing", fmt.Sprintf("%d / %d", r.WinningTrades, r.LosingTrades)},
		{"Win Rate", fmt.Sprintf("%.1f%%", r.WinRate)},
		{"Avg Win / Loss", fmt.Sprintf("%s / %s", usd(r.AvgWin), usd(r.AvgLoss))},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", r.MaxDrawdown)},
	})
	t.Render()
}

// WriteEquityCSV dumps the equity curve for external charting.
func WriteEquityCSV(w io.Writer, curve []EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "equity", "balance", "position", "price"}); err != nil {
		return err
	}
	for _, p := range curve {
		record := []string{
			strconv.FormatInt(p.Time, 10),
			strconv.FormatFloat(p.Equity, 'f', -1, 64),
			strconv.FormatFloat(p.Balance, 'f', -1, 64),
			strconv.FormatFloat(p.Position, 'f', -1, 64),
			strconv.FormatFloat(p.Price, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func usd(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}
