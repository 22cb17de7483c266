package tests

import (
	"testing"

	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/strategy"
)

// defaultDCAParams enables only the RSI voter so scenarios are driven by
// price shape alone.
func defaultDCAParams() strategy.Params {
	return strategy.Params{
		"amount_usd":          100.0,
		"min_profit_percent":  1.0,
		"use_rsi":             true,
		"use_stoch_rsi":       false,
		"use_ema":             false,
		"use_macd":            false,
		"use_mfi":             false,
		"indicator_agreement": 0.6,
	}
}

func newDCAStrategy(t *testing.T, params strategy.Params) *strategy.AdvancedDCA {
	t.Helper()
	strat, err := strategy.New("advanced_dca", params, zap.NewNop())
	if err != nil {
		t.Fatalf("Failed to build strategy: %v", err)
	}
	dca, ok := strat.(*strategy.AdvancedDCA)
	if !ok {
		t.Fatalf("Expected *strategy.AdvancedDCA, got %T", strat)
	}
	return dca
}

// barsFromCloses builds one flat candle per close price.
func barsFromCloses(closes []float64) []domain.Candle {
	bars := make([]domain.Candle, len(closes))
	for i, c := range closes {
		bars[i] = domain.Candle{
			Time: int64(i) * 60_000,
			Open: c, High: c, Low: c, Close: c,
			Volume: 100,
		}
	}
	return bars
}

// descendThenRise produces n1 bars falling by downStep from start, then n2
// bars rising by upStep.
func descendThenRise(start float64, n1 int, downStep float64, n2 int, upStep float64) []float64 {
	closes := make([]float64, 0, n1+n2)
	price := start
	for i := 0; i < n1; i++ {
		closes = append(closes, price)
		price -= downStep
	}
	price += downStep // last descent close
	for i := 0; i < n2; i++ {
		price += upStep
		closes = append(closes, price)
	}
	return closes
}

// fillFromSignal turns a buy/sell signal into the closed order an exchange
// would echo back.
func fillFromSignal(id string, sig domain.Signal) *domain.Order {
	side := domain.OrderSideBuy
	if sig.Action == domain.SignalSell {
		side = domain.OrderSideSell
	}
	return &domain.Order{
		ID:           id,
		Symbol:       "BTC/USDT",
		Side:         side,
		Type:         domain.OrderTypeLimit,
		Amount:       sig.Amount,
		Price:        sig.Price,
		Cost:         sig.Price * sig.Amount,
		FilledAmount: sig.Amount,
		Status:       domain.OrderStatusClosed,
		ClientRef:    sig.PurchaseID,
	}
}
