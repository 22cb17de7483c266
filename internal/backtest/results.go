package backtest

import "github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"

// TradeRecord is one simulated fill.
type TradeRecord struct {
	Time     int64            `json:"timestamp"`
	Side     domain.OrderSide `json:"side"`
	Price    float64          `json:"price"`
	Amount   float64          `json:"amount"`
	Cost     float64          `json:"cost"`
	Proceeds float64          `json:"proceeds,omitempty"`
	Profit   float64          `json:"profit,omitempty"`
	Balance  float64          `json:"balance"`
	Position float64          `json:"position"`
}

// EquityPoint is one bar's mark-to-market snapshot of the ledger.
type EquityPoint struct {
	Time     int64   `json:"timestamp"`
	Equity   float64 `json:"equity"`
	Balance  float64 `json:"balance"`
	Position float64 `json:"position"`
	Price    float64 `json:"price"`
}

// Results summarizes one backtest run. Winning/losing counts classify
// sells by realized profit sign; buys carry no realized profit.
type Results struct {
	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	FinalPosition  float64 `json:"final_position"`
	FinalEquity    float64 `json:"final_equity"`
	TotalReturn    float64 `json:"total_return"`
	ReturnPct      float64 `json:"return_pct"`

	TotalTrades   int     `json:"total_trades"`
	BuyTrades     int     `json:"buy_trades"`
	SellTrades    int     `json:"sell_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	MaxDrawdown   float64 `json:"max_drawdown"`

	Trades      []TradeRecord `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`
}

func (e *Engine) results() *Results {
	finalEquity := e.cfg.InitialBalance
	if len(e.equity) > 0 {
		finalEquity = e.equity[len(e.equity)-1].Equity
	}

	r := &Results{
		InitialBalance: e.cfg.InitialBalance,
		FinalBalance:   e.balance,
		FinalPosition:  e.position,
		FinalEquity:    finalEquity,
		TotalReturn:    finalEquity - e.cfg.InitialBalance,
		TotalTrades:    len(e.trades),
		MaxDrawdown:    maxDrawdown(e.equity),
		Trades:         e.trades,
		EquityCurve:    e.equity,
	}
	r.ReturnPct = r.TotalReturn / e.cfg.InitialBalance * 100

	var winSum, lossSum float64
	for _, t := range e.trades {
		if t.Side == domain.OrderSideBuy {
			r.BuyTrades++
			continue
		}
		r.SellTrades++
		switch {
		case t.Profit > 0:
			r.WinningTrades++
			winSum += t.Profit
		case t.Profit < 0:
			r.LosingTrades++
			lossSum += t.Profit
		}
	}
	if r.SellTrades > 0 {
		r.WinRate = float64(r.WinningTrades) / float64(r.SellTrades) * 100
	}
	if r.WinningTrades > 0 {
		r.AvgWin = winSum / float64(r.WinningTrades)
	}
	if r.LosingTrades > 0 {
		r.AvgLoss = lossSum / float64(r.LosingTrades)
	}
	return r
}

// maxDrawdown is the largest running peak-to-trough percentage decline
// over the equity curve.
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	var worst float64
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Equity) / peak * 100
		if dd > worst {
			worst = dd
		}
	}
	return worst
}
