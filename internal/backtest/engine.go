// Package backtest replays historical bars through the same Strategy
// implementation the live loop runs, against a simulated ledger.
package backtest

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/strategy"
)

const (
	// defaultLookback is how many bars are consumed before the first
	// analyze call, so every indicator has a valid window.
	defaultLookback = 100
	// windowSize is the trailing bar slice handed to the strategy.
	windowSize = 200
)

// Config sets up one backtest run.
type Config struct {
	Symbol         string
	InitialBalance float64
	Lookback       int // bars skipped before the first analyze; 0 means defaultLookback
}

// Engine replays bars synchronously. It is single-threaded and
// deterministic: identical bars and strategy config produce identical
// trade logs and equity curves.
type Engine struct {
	cfg      Config
	strategy strategy.Strategy
	logger   *zap.Logger

	balance      float64
	position     float64
	positionCost float64
	trades       []TradeRecord
	equity       []EquityPoint
	orderSeq     int
}

// New builds an Engine for the given strategy.
func New(cfg Config, strat strategy.Strategy, logger *zap.Logger) (*Engine, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy is required")
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("backtest: initial balance must be positive")
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, strategy: strat, logger: logger, balance: cfg.InitialBalance}, nil
}

// Run replays the bars and returns the computed results.
func (e *Engine) Run(bars []domain.Candle) (*Results, error) {
	if len(bars) <= e.cfg.Lookback {
		return nil, fmt.Errorf("backtest: need more than %d bars, got %d", e.cfg.Lookback, len(bars))
	}
	e.logger.Info("backtest starting",
		zap.String("symbol", e.cfg.Symbol),
		zap.Int("bars", len(bars)),
		zap.Int("lookback", e.cfg.Lookback),
		zap.Float64("initial_balance", e.cfg.InitialBalance))

	start := time.Now()
	for i := e.cfg.Lookback; i < len(bars); i++ {
		e.processBar(bars, i)
	}
	results := e.results()
	e.logger.Info("backtest finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("final_equity", results.FinalEquity),
		zap.Int("trades", results.TotalTrades))
	return results, nil
}

func (e *Engine) processBar(bars []domain.Candle, i int) {
	bar := bars[i]
	winStart := i + 1 - windowSize
	if winStart < 0 {
		winStart = 0
	}

	snapshot := domain.MarketSnapshot{
		Symbol: e.cfg.Symbol,
		Last:   bar.Close,
		High:   bar.High,
		Low:    bar.Low,
		Volume: bar.Volume,
		Time:   bar.Time,
		Bars:   bars[winStart : i+1],
	}

	signal := e.strategy.Analyze(snapshot)
	switch signal.Action {
	case domain.SignalBuy:
		e.executeBuy(signal, bar)
	case domain.SignalSell:
		e.executeSell(signal, bar)
	}

	e.equity = append(e.equity, EquityPoint{
		Time:     bar.Time,
		Equity:   e.balance + e.position*bar.Close,
		Balance:  e.balance,
		Position: e.position,
		Price:    bar.Close,
	})
}

// executeBuy fills a buy fully at the signal price. A buy that exceeds the
// available balance is dropped without aborting the run.
func (e *Engine) executeBuy(signal domain.Signal, bar domain.Candle) {
	price, amount := signal.Price, signal.Amount
	if price <= 0 {
		price = bar.Close
	}
	if amount <= 0 {
		return
	}
	cost := amount * price
	if cost > e.balance {
		e.logger.Debug("buy rejected, insufficient balance",
			zap.Float64("cost", cost), zap.Float64("balance", e.balance))
		return
	}

	e.balance -= cost
	e.position += amount
	e.positionCost += cost

	e.trades = append(e.trades, TradeRecord{
		Time: bar.Time, Side: domain.OrderSideBuy,
		Price: price, Amount: amount, Cost: cost,
		Balance: e.balance, Position: e.position,
	})
	e.notify(signal, domain.OrderSideBuy, price, amount, cost, bar.Time)
}

// executeSell fills a sell fully at the signal price. A sell that exceeds
// the position is dropped.
func (e *Engine) executeSell(signal domain.Signal, bar domain.Candle) {
	price, amount := signal.Price, signal.Amount
	if price <= 0 {
		price = bar.Close
	}
	if amount <= 0 {
		return
	}
	if amount > e.position {
		e.logger.Debug("sell rejected, insufficient position",
			zap.Float64("amount", amount), zap.Float64("position", e.position))
		return
	}

	proceeds := amount * price
	e.balance += proceeds

	var avgCost float64
	if e.position > 0 {
		avgCost = e.positionCost / e.position
	}
	costOfSold := amount * avgCost
	profit := proceeds - costOfSold

	e.position -= amount
	e.positionCost -= costOfSold

	e.trades = append(e.trades, TradeRecord{
		Time: bar.Time, Side: domain.OrderSideSell,
		Price: price, Amount: amount, Cost: costOfSold,
		Proceeds: proceeds, Profit: profit,
		Balance: e.balance, Position: e.position,
	})
	e.notify(signal, domain.OrderSideSell, price, amount, proceeds, bar.Time)
}

// notify advances the strategy's internal ledger exactly as a live fill
// would, so backtest and live behavior stay in lockstep. The order carries
// the bar time, keeping interval clocks on the replay timeline.
func (e *Engine) notify(signal domain.Signal, side domain.OrderSide, price, amount, cost float64, at int64) {
	e.orderSeq++
	order := &domain.Order{
		ID:           fmt.Sprintf("backtest-%d", e.orderSeq),
		Symbol:       e.cfg.Symbol,
		Side:         side,
		Type:         domain.OrderTypeLimit,
		Amount:       amount,
		Price:        price,
		Cost:         cost,
		FilledAmount: amount,
		Status:       domain.OrderStatusClosed,
		ClientRef:    signal.PurchaseID,
		CreatedAt:    time.UnixMilli(at),
	}
	e.strategy.OnOrderFilled(order)
}
