package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

// fallingBars builds n bars whose closes fall by step each bar, ending at
// end. Falling closes pin RSI at 0, which keeps the RSI vote positive.
func fallingBars(n int, end, step float64) []domain.Candle {
	bars := make([]domain.Candle, n)
	for i := range bars {
		c := end + float64(n-1-i)*step
		bars[i] = domain.Candle{Time: int64(i) * 60_000, Open: c + step, High: c + step, Low: c, Close: c, Volume: 100}
	}
	return bars
}

func snapshotAt(bars []domain.Candle, last float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{Symbol: "BTC/USDT", Last: last, Bars: bars}
}

func newAdvancedDCAForTest(t *testing.T, params Params) *AdvancedDCA {
	t.Helper()
	if params == nil {
		params = Params{}
	}
	// RSI is the only voter so buy decisions are fully price-driven.
	params["use_stoch_rsi"] = false
	params["use_ema"] = false
	params["use_macd"] = false
	params["use_mfi"] = false
	s, err := NewAdvancedDCA(params, zap.NewNop())
	require.NoError(t, err)
	return s.(*AdvancedDCA)
}

func fillBuy(s *AdvancedDCA, id string, price, amount, cost, fee float64) {
	s.OnOrderFilled(&domain.Order{
		ID:           id,
		Side:         domain.OrderSideBuy,
		Status:       domain.OrderStatusClosed,
		Price:        price,
		Amount:       amount,
		FilledAmount: amount,
		Cost:         cost,
		Fee:          fee,
	})
}

func fillSell(s *AdvancedDCA, id, purchaseID string, revenue, amount, fee float64) {
	s.OnOrderFilled(&domain.Order{
		ID:           id,
		Side:         domain.OrderSideSell,
		Status:       domain.OrderStatusClosed,
		Amount:       amount,
		FilledAmount: amount,
		Cost:         revenue,
		Fee:          fee,
		ClientRef:    purchaseID,
	})
}

func TestAdvancedDCAInsufficientData(t *testing.T) {
	s := newAdvancedDCAForTest(t, nil)
	sig := s.Analyze(snapshotAt(fallingBars(20, 100, 1), 100))
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Equal(t, "insufficient market data", sig.Reason)
}

func TestAdvancedDCAFirstBuyOnOversold(t *testing.T) {
	s := newAdvancedDCAForTest(t, Params{"amount_usd": 100.0})
	sig := s.Analyze(snapshotAt(fallingBars(60, 100, 1), 100))
	require.Equal(t, domain.SignalBuy, sig.Action)
	require.Equal(t, 100.0, sig.Price)
	require.Equal(t, 1.0, sig.Amount)
	require.Equal(t, 100.0, sig.Cost)
	require.Equal(t, 1.0, sig.Confidence)
}

func TestAdvancedDCAProgressiveStepDown(t *testing.T) {
	s := newAdvancedDCAForTest(t, Params{
		"min_profit_percent":   2.0,
		"step_down_multiplier": 1.5,
		"max_step_down":        5.0,
	})

	// Required drops per purchase number: 2%, 3%, 4.5%, then capped at 5%.
	fillBuy(s, "b1", 100, 1, 100, 0)

	bars := fallingBars(60, 98, 1)
	sig := s.Analyze(snapshotAt(bars, 98.5)) // only 1.5% below last fill
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Contains(t, sig.Reason, "2.00%")

	sig = s.Analyze(snapshotAt(bars, 98.0)) // exactly 2%
	require.Equal(t, domain.SignalBuy, sig.Action)
	fillBuy(s, "b2", 98, 1, 98, 0)

	sig = s.Analyze(snapshotAt(bars, 95.5)) // 2.55%, needs 3%
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Contains(t, sig.Reason, "3.00%")

	sig = s.Analyze(snapshotAt(fallingBars(60, 95, 1), 95.06))
	require.Equal(t, domain.SignalBuy, sig.Action)
	fillBuy(s, "b3", 95.06, 1, 95.06, 0)

	sig = s.Analyze(snapshotAt(fallingBars(60, 91, 1), 91.0)) // 4.27%, needs 4.5%
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Contains(t, sig.Reason, "4.50%")

	sig = s.Analyze(snapshotAt(fallingBars(60, 90, 1), 90.7)) // 4.59%
	require.Equal(t, domain.SignalBuy, sig.Action)
	fillBuy(s, "b4", 90.7, 1, 90.7, 0)

	// 1.5^3 would demand 6.75%; the cap holds it at 5%.
	sig = s.Analyze(snapshotAt(fallingBars(60, 86, 1), 86.5)) // 4.63%
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Contains(t, sig.Reason, "5.00%")

	sig = s.Analyze(snapshotAt(fallingBars(60, 86, 1), 86.1)) // 5.07%
	require.Equal(t, domain.SignalBuy, sig.Action)
}

func TestAdvancedDCASellPriceFormula(t *testing.T) {
	s := newAdvancedDCAForTest(t, Params{"min_profit_percent": 1.0})
	fillBuy(s, "b1", 100, 1, 100, 0.1)

	require.Len(t, s.Purchases(), 1)
	p := s.Purchases()[0]
	require.InDelta(t, (100+0.1)/1*(1+0.01+0.002), p.SellPrice, 1e-12)

	// Selling the full lot at the derived price clears the profit floor.
	proceeds := p.SellPrice * p.Amount
	require.GreaterOrEqual(t, (proceeds-p.Fee-p.Cost)/p.Cost, 0.01)
}

func TestAdvancedDCAReallocation(t *testing.T) {
	s := newAdvancedDCAForTest(t, Params{"min_profit_percent": 1.0})
	fillBuy(s, "b1", 100, 1, 100, 0.1)
	fillBuy(s, "b2", 95, 1, 95, 0.1)

	// Close lot b2 at a 98 revenue: profit 2.9, floor 0.95, excess 1.95,
	// all of it reallocated into b1.
	fillSell(s, "s1", "b2", 98, 1, 0.1)

	require.Len(t, s.Purchases(), 1)
	p := s.Purchases()[0]
	require.Equal(t, "b1", p.BuyOrderID)
	require.InDelta(t, 98.05, p.Cost, 1e-12)
	require.InDelta(t, 1.95, p.DCAApplied, 1e-12)
	require.InDelta(t, (1+0.01+0.002)*(98.05+0.2)/1, p.SellPrice, 1e-12)
	require.InDelta(t, 2.9, s.TotalProfit(), 1e-12)
	require.InDelta(t, 1.95, s.TotalDCAApplied(), 1e-12)
}

func TestAdvancedDCAReallocationInvariant(t *testing.T) {
	s := newAdvancedDCAForTest(t, Params{"min_profit_percent": 1.0, "dca_pool_percent": 50.0})
	fillBuy(s, "b1", 100, 1, 100, 0)

	// Each cycle opens a fresh lot and closes it at a profit; every
	// reallocation lands on b1, which stays open throughout.
	for i, id := range []string{"b2", "b3", "b4"} {
		fillBuy(s, id, 95, 1, 95, 0)
		fillSell(s, string(rune('0'+i))+"-sell", id, 98, 1, 0)
	}

	require.Len(t, s.Purchases(), 1)
	var applied float64
	for _, p := range s.Purchases() {
		applied += p.DCAApplied
	}
	require.Equal(t, s.TotalDCAApplied(), applied)

	// Cost only ever decreases.
	require.Less(t, s.Purchases()[0].Cost, 100.0)
}

func TestAdvancedDCASellMatchesByPurchaseID(t *testing.T) {
	s := newAdvancedDCAForTest(t, nil)
	// Two lots with identical amounts: id matching keeps this unambiguous.
	fillBuy(s, "b1", 100, 0.5, 50, 0)
	fillBuy(s, "b2", 98, 0.5, 49, 0)

	fillSell(s, "s1", "b1", 52, 0.5, 0)
	require.Len(t, s.Purchases(), 1)
	require.Equal(t, "b2", s.Purchases()[0].BuyOrderID)

	// A sell that references no open lot leaves the ledger alone.
	fillSell(s, "s2", "missing", 52, 0.5, 0)
	require.Len(t, s.Purchases(), 1)
}

func TestAdvancedDCASellPriority(t *testing.T) {
	s := newAdvancedDCAForTest(t, Params{"min_profit_percent": 0.5})
	fillBuy(s, "b1", 100, 1, 100, 0)
	target := s.Purchases()[0].SellPrice // 100.7

	bars := fallingBars(60, 100, 1)
	sig := s.Analyze(snapshotAt(bars, target+0.1))
	require.Equal(t, domain.SignalSell, sig.Action)
	require.Equal(t, "b1", sig.PurchaseID)
	require.Equal(t, 1.0, sig.Amount)
	require.Equal(t, target+0.1, sig.Price)
}

func TestAdvancedDCAMaxPurchases(t *testing.T) {
	s := newAdvancedDCAForTest(t, Params{"max_purchases": 1})
	fillBuy(s, "b1", 100, 1, 100, 0)
	sig := s.Analyze(snapshotAt(fallingBars(60, 90, 1), 90))
	require.Equal(t, domain.SignalHold, sig.Action)
	require.Contains(t, sig.Reason, "max purchases")
}

func TestAdvancedDCAStateRoundTrip(t *testing.T) {
	s := newAdvancedDCAForTest(t, Params{"min_profit_percent": 1.0})
	fillBuy(s, "b1", 100, 1, 100, 0.1)
	fillBuy(s, "b2", 95, 1, 95, 0.1)
	fillSell(s, "s1", "b2", 98, 1, 0.1)
	s.Trailing().Start(TrailingUp, 105, 2.0)

	raw, err := s.State()
	require.NoError(t, err)

	restored := newAdvancedDCAForTest(t, Params{"min_profit_percent": 1.0})
	require.NoError(t, restored.RestoreState(raw))

	require.Equal(t, s.TotalProfit(), restored.TotalProfit())
	require.Equal(t, s.TotalDCAApplied(), restored.TotalDCAApplied())
	require.Len(t, restored.Purchases(), 1)
	require.Equal(t, s.Purchases()[0].SellPrice, restored.Purchases()[0].SellPrice)
	require.Equal(t, TrailingWaiting, restored.Trailing().Status)
	require.Equal(t, 105.0, restored.Trailing().ActivationPrice)
}

func TestAdvancedDCAPurchaseTimestampFromOrder(t *testing.T) {
	s := newAdvancedDCAForTest(t, nil)
	at := time.UnixMilli(1_700_000_000_000)
	s.OnOrderFilled(&domain.Order{
		ID:           "b1",
		Side:         domain.OrderSideBuy,
		Status:       domain.OrderStatusClosed,
		Price:        100,
		Amount:       1,
		FilledAmount: 1,
		Cost:         100,
		CreatedAt:    at,
	})
	require.Equal(t, at, s.Purchases()[0].Timestamp)

	// Orders without a creation time still get stamped.
	fillBuy(s, "b2", 98, 1, 98, 0)
	require.False(t, s.Purchases()[1].Timestamp.IsZero())
}
