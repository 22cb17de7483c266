// Package bot runs the live orchestration loop: poll market data, ask the
// strategy for a signal, execute it, reconcile fills, persist state.
package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/strategy"
)

// maxBackoff caps the exponential retry delay after connectivity failures.
const maxBackoff = 5 * time.Minute

// pauseSleep is how long a paused loop dozes before re-checking the flag.
const pauseSleep = time.Second

// Config are the per-instance run-loop settings.
type Config struct {
	ID        string
	Name      string
	Symbol    string
	Timeframe string

	CheckInterval             time.Duration
	ConnectivityCheckInterval time.Duration
	MaxConnectivityFailures   int
	SaveInterval              time.Duration
	HistoryLimit              int
	StopTimeout               time.Duration
}

func (c *Config) applyDefaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.ConnectivityCheckInterval <= 0 {
		c.ConnectivityCheckInterval = time.Minute
	}
	if c.MaxConnectivityFailures <= 0 {
		c.MaxConnectivityFailures = 5
	}
	if c.SaveInterval <= 0 {
		c.SaveInterval = 5 * time.Minute
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 200
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	if c.Timeframe == "" {
		c.Timeframe = "1m"
	}
}

// Status is the read-only snapshot handed to displays and the web server.
type Status struct {
	BotID        string                  `json:"bot_id"`
	Name         string                  `json:"name"`
	Symbol       string                  `json:"symbol"`
	Exchange     string                  `json:"exchange"`
	Strategy     string                  `json:"strategy"`
	Running      bool                    `json:"running"`
	Paused       bool                    `json:"paused"`
	Stats        domain.BotStats         `json:"stats"`
	Connectivity domain.ConnectivityInfo `json:"connectivity"`
}

// Bot owns one strategy, one exchange link and one persistence file. All
// mutation of its in-memory state happens on the single worker goroutine;
// the running/paused flags are the only cross-goroutine controls.
type Bot struct {
	cfg      Config
	exchange domain.Exchange
	strategy strategy.Strategy
	states   domain.StateStore
	trades   domain.TradeRepository // optional
	metrics  *Metrics               // optional
	logger   *zap.Logger

	running  atomic.Bool
	paused   atomic.Bool
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// Guarded by mu so GetStatus can read while the worker writes.
	mu           sync.RWMutex
	stats        domain.BotStats
	connectivity domain.ConnectivityInfo

	// Worker-owned; never touched outside the loop.
	notified      map[string]struct{}
	pending       []string
	backoff       time.Duration
	lastConnCheck time.Time
	lastSave      time.Time
}

// Option customizes a Bot at construction.
type Option func(*Bot)

// WithTradeRepository records every fill in the given store.
func WithTradeRepository(repo domain.TradeRepository) Option {
	return func(b *Bot) { b.trades = repo }
}

// WithMetrics publishes decision/order/connectivity counters.
func WithMetrics(m *Metrics) Option {
	return func(b *Bot) { b.metrics = m }
}

// New wires a Bot. The strategy and logger are injected; there is no global
// registry lookup here.
func New(cfg Config, ex domain.Exchange, strat strategy.Strategy, states domain.StateStore, logger *zap.Logger, opts ...Option) (*Bot, error) {
	if ex == nil || strat == nil || states == nil {
		return nil, fmt.Errorf("bot: exchange, strategy and state store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()
	if cfg.ID == "" {
		return nil, fmt.Errorf("bot: config needs an id")
	}
	b := &Bot{
		cfg:      cfg,
		exchange: ex,
		strategy: strat,
		states:   states,
		logger:   logger.With(zap.String("bot_id", cfg.ID), zap.String("symbol", cfg.Symbol)),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
		notified: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Start connects the exchange, restores persisted state and spawns the
// single polling worker. It is an error to start a running bot.
func (b *Bot) Start(ctx context.Context) error {
	if b.running.Load() {
		return fmt.Errorf("bot: already running")
	}
	if err := b.exchange.Connect(ctx); err != nil {
		return fmt.Errorf("bot: connect exchange: %w", err)
	}
	if err := b.restore(); err != nil {
		return err
	}

	b.running.Store(true)
	go b.run(ctx)
	b.logger.Info("bot started",
		zap.String("strategy", b.strategy.Name()),
		zap.Duration("check_interval", b.cfg.CheckInterval))
	return nil
}

// restore loads the persisted state, if any, back into the bot and its
// strategy.
func (b *Bot) restore() error {
	state, err := b.states.Load(b.cfg.ID)
	if err != nil {
		return fmt.Errorf("bot: load state: %w", err)
	}
	if state == nil {
		return nil
	}
	if state.Strategy != "" && state.Strategy != b.strategy.Name() {
		return fmt.Errorf("bot: persisted state belongs to strategy %q, running %q",
			state.Strategy, b.strategy.Name())
	}
	if err := b.strategy.RestoreState(state.StrategyState); err != nil {
		return fmt.Errorf("bot: restore strategy state: %w", err)
	}
	b.mu.Lock()
	b.stats = state.Stats
	b.connectivity = state.Connectivity
	b.mu.Unlock()
	for _, id := range state.NotifiedOrders {
		b.notified[id] = struct{}{}
	}
	b.logger.Info("state restored",
		zap.Int("total_trades", state.Stats.TotalTrades),
		zap.Int("notified_orders", len(state.NotifiedOrders)))
	return nil
}

// Pause makes the loop idle without exiting; Resume undoes it.
func (b *Bot) Pause() {
	b.paused.Store(true)
	b.logger.Info("bot paused")
}

func (b *Bot) Resume() {
	b.paused.Store(false)
	b.logger.Info("bot resumed")
}

// Stop asks the worker to exit, waits for it with a bounded timeout, then
// releases the exchange connection. The worker flushes final state on the
// way out.
func (b *Bot) Stop(ctx context.Context) error {
	if !b.running.Load() {
		return nil
	}
	b.running.Store(false)
	b.stopOnce.Do(func() { close(b.quit) })

	select {
	case <-b.stopped:
	case <-time.After(b.cfg.StopTimeout):
		b.logger.Warn("worker did not stop in time", zap.Duration("timeout", b.cfg.StopTimeout))
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := b.exchange.Disconnect(ctx); err != nil {
		return fmt.Errorf("bot: disconnect exchange: %w", err)
	}
	b.logger.Info("bot stopped")
	return nil
}

// GetStatus returns a read-only snapshot; safe from any goroutine.
func (b *Bot) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Status{
		BotID:        b.cfg.ID,
		Name:         b.cfg.Name,
		Symbol:       b.cfg.Symbol,
		Exchange:     b.exchange.Name(),
		Strategy:     b.strategy.Name(),
		Running:      b.running.Load(),
		Paused:       b.paused.Load(),
		Stats:        b.stats,
		Connectivity: b.connectivity,
	}
}

func (b *Bot) run(ctx context.Context) {
	defer close(b.stopped)

	for b.running.Load() {
		if b.paused.Load() {
			if !b.sleep(pauseSleep) {
				break
			}
			continue
		}

		delay := b.cfg.CheckInterval
		if err := b.iterate(ctx); err != nil {
			delay = b.handleIterationError(err)
		}
		if !b.sleep(delay) {
			break
		}
	}

	if err := b.persist(); err != nil {
		b.logger.Error("final state flush failed", zap.Error(err))
	}
}

// sleep waits d unless the bot is stopping; returns false on stop.
func (b *Bot) sleep(d time.Duration) bool {
	select {
	case <-b.quit:
		return false
	case <-time.After(d):
		return true
	}
}

// handleIterationError turns a loop-stage failure into a wait time. Nothing
// short of Stop terminates the loop.
func (b *Bot) handleIterationError(err error) time.Duration {
	kind := errKind(err)
	switch kind {
	case errPersistence:
		// In-memory state still serves this session; warn the operator that
		// a restart may lose recent progress.
		b.logger.Warn("state persistence failed, continuing in memory", zap.Error(err))
		return b.cfg.CheckInterval
	case errInvariant:
		b.logger.Warn("order skipped", zap.Error(err))
		return b.cfg.CheckInterval
	default:
		b.bumpBackoff()
		b.mu.RLock()
		failures := b.connectivity.FailureCount
		b.mu.RUnlock()
		b.logger.Warn("iteration failed, backing off",
			zap.Error(err),
			zap.Int("failure_count", failures),
			zap.Duration("backoff", b.backoff))
		return b.backoff
	}
}

func (b *Bot) bumpBackoff() {
	b.mu.Lock()
	b.connectivity.FailureCount++
	failures := b.connectivity.FailureCount
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.ConnectivityFailures.Inc()
	}

	b.backoff = b.cfg.CheckInterval << uint(min(failures-1, 16))
	if b.backoff > maxBackoff || b.backoff <= 0 {
		b.backoff = maxBackoff
	}

	if failures > b.cfg.MaxConnectivityFailures {
		// A stale watermark after an outage must not be trusted.
		if carrier, ok := b.strategy.(strategy.TrailingCarrier); ok && carrier.Trailing().Engaged() {
			b.logger.Warn("connectivity failure threshold exceeded, resetting trailing state",
				zap.Int("failures", failures))
			carrier.Trailing().Reset()
		}
		if err := b.persist(); err != nil {
			b.logger.Warn("persist after trailing reset failed", zap.Error(err))
		}
	}
}

// iterate runs one decision cycle.
func (b *Bot) iterate(ctx context.Context) error {
	if err := b.checkConnectivity(ctx); err != nil {
		return err
	}

	snapshot, err := b.snapshot(ctx)
	if err != nil {
		return transientErr(err)
	}

	if err := b.reconcileOrders(ctx); err != nil {
		return err
	}

	signal := b.strategy.Analyze(snapshot)
	if b.metrics != nil {
		b.metrics.Decisions.WithLabelValues(string(signal.Action)).Inc()
	}
	b.mu.Lock()
	b.stats.LastPrice = snapshot.Last
	b.stats.LastUpdate = time.Now().UTC()
	if b.metrics != nil {
		b.metrics.PositionValue.Set(b.stats.CurrentPosition * snapshot.Last)
		b.metrics.TotalProfit.Set(b.stats.TotalProfit)
	}
	b.mu.Unlock()

	if signal.Action != domain.SignalHold {
		if err := b.dispatch(ctx, signal); err != nil {
			return err
		}
	}

	if time.Since(b.lastSave) >= b.cfg.SaveInterval {
		if err := b.persist(); err != nil {
			return persistenceErr(err)
		}
	}
	return nil
}

// checkConnectivity probes the exchange on its own cadence and maintains
// the failure counter.
func (b *Bot) checkConnectivity(ctx context.Context) error {
	if time.Since(b.lastConnCheck) < b.cfg.ConnectivityCheckInterval && !b.lastConnCheck.IsZero() {
		return nil
	}
	b.lastConnCheck = time.Now()

	if err := b.exchange.CheckConnectivity(ctx); err != nil {
		return transientErr(fmt.Errorf("connectivity probe: %w", err))
	}
	b.mu.Lock()
	b.connectivity.LastSuccess = time.Now().UTC()
	b.connectivity.FailureCount = 0
	b.mu.Unlock()
	b.backoff = 0
	return nil
}

func (b *Bot) snapshot(ctx context.Context) (domain.MarketSnapshot, error) {
	ticker, err := b.exchange.GetTicker(ctx, b.cfg.Symbol)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("fetch ticker: %w", err)
	}
	bars, err := b.exchange.GetHistoricalData(ctx, b.cfg.Symbol, b.cfg.Timeframe, 0, b.cfg.HistoryLimit)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("fetch history: %w", err)
	}
	return domain.MarketSnapshot{
		Symbol: b.cfg.Symbol,
		Last:   ticker.Last,
		Bid:    ticker.Bid,
		Ask:    ticker.Ask,
		High:   ticker.High,
		Low:    ticker.Low,
		Volume: ticker.Volume,
		Time:   ticker.Time,
		Bars:   bars,
	}, nil
}

// reconcileOrders checks previously placed orders and notifies the strategy
// of closes, at most once per order id.
func (b *Bot) reconcileOrders(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	stillPending := b.pending[:0]
	for _, id := range b.pending {
		order, err := b.exchange.GetOrder(ctx, b.cfg.Symbol, id)
		if err != nil {
			stillPending = append(stillPending, id)
			b.logger.Warn("order lookup failed", zap.String("order_id", id), zap.Error(err))
			continue
		}
		switch order.Status {
		case domain.OrderStatusClosed:
			b.notifyFill(ctx, order)
		case domain.OrderStatusCancelled:
			b.logger.Info("order cancelled", zap.String("order_id", id))
		default:
			stillPending = append(stillPending, id)
		}
	}
	b.pending = stillPending
	return nil
}

// notifyFill delivers a closed order to the strategy exactly once, updates
// trade counters, records the fill and persists immediately.
func (b *Bot) notifyFill(ctx context.Context, order *domain.Order) {
	if _, seen := b.notified[order.ID]; seen {
		return
	}
	b.notified[order.ID] = struct{}{}

	b.strategy.OnOrderFilled(order)
	profit := b.applyFill(order)
	if b.metrics != nil {
		b.metrics.Orders.WithLabelValues(string(order.Side)).Inc()
	}

	if b.trades != nil {
		trade := &domain.Trade{
			BotID:     b.cfg.ID,
			Symbol:    order.Symbol,
			Side:      order.Side,
			Amount:    order.FilledAmount,
			Price:     order.Price,
			Fee:       order.Fee,
			Profit:    profit,
			CreatedAt: time.Now().UTC(),
		}
		if err := b.trades.SaveTrade(ctx, trade); err != nil {
			b.logger.Warn("trade history write failed", zap.Error(err))
		}
	}

	if err := b.persist(); err != nil {
		b.logger.Warn("persist after fill notification failed", zap.Error(err))
	}
}

// applyFill updates the average-cost position ledger and returns the
// realized profit of a sell (zero for buys).
func (b *Bot) applyFill(order *domain.Order) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.TotalTrades++
	b.stats.LastUpdate = time.Now().UTC()

	if order.Side == domain.OrderSideBuy {
		b.stats.CurrentPosition += order.FilledAmount
		b.stats.PositionCost += order.Cost
		return 0
	}

	var profit float64
	if b.stats.CurrentPosition > 0 {
		avgCost := b.stats.PositionCost / b.stats.CurrentPosition
		profit = (order.Price - avgCost) * order.FilledAmount
		b.stats.PositionCost -= avgCost * order.FilledAmount
	}
	b.stats.CurrentPosition -= order.FilledAmount
	b.stats.TotalProfit += profit
	if profit > 0 {
		b.stats.WinningTrades++
	} else {
		b.stats.LosingTrades++
	}
	return profit
}

// dispatch sends a buy/sell signal to the exchange. Only one outstanding
// order is allowed at a time; the signal is skipped while one is pending.
func (b *Bot) dispatch(ctx context.Context, signal domain.Signal) error {
	if len(b.pending) > 0 {
		b.logger.Info("signal skipped, order still pending",
			zap.String("action", string(signal.Action)),
			zap.Strings("pending", b.pending))
		return nil
	}
	if signal.Amount <= 0 || signal.Price <= 0 {
		return invariantErr(fmt.Errorf("dispatch %s: non-positive amount or price", signal.Action))
	}

	req := domain.OrderRequest{
		Symbol:    b.cfg.Symbol,
		Side:      domain.OrderSideBuy,
		Type:      domain.OrderTypeLimit,
		Amount:    signal.Amount,
		Price:     signal.Price,
		ClientRef: signal.PurchaseID,
	}
	if signal.Action == domain.SignalSell {
		req.Side = domain.OrderSideSell
		b.mu.RLock()
		position := b.stats.CurrentPosition
		b.mu.RUnlock()
		if signal.Amount > position {
			return invariantErr(fmt.Errorf(
				"sell amount %.8f exceeds position %.8f", signal.Amount, position))
		}
	}

	order, err := b.exchange.PlaceOrder(ctx, req)
	if err != nil {
		return transientErr(fmt.Errorf("place %s order: %w", req.Side, err))
	}
	b.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("side", string(order.Side)),
		zap.Float64("amount", order.Amount),
		zap.Float64("price", order.Price),
		zap.String("reason", signal.Reason))

	if order.Closed() {
		b.notifyFill(ctx, order)
	} else {
		b.pending = append(b.pending, order.ID)
	}
	return nil
}

// persist writes the full bot state atomically.
func (b *Bot) persist() error {
	strategyState, err := b.strategy.State()
	if err != nil {
		return fmt.Errorf("serialize strategy state: %w", err)
	}
	notified := make([]string, 0, len(b.notified))
	for id := range b.notified {
		notified = append(notified, id)
	}
	sort.Strings(notified)

	b.mu.RLock()
	state := &domain.BotPersistentState{
		BotID:          b.cfg.ID,
		Name:           b.cfg.Name,
		Symbol:         b.cfg.Symbol,
		Exchange:       b.exchange.Name(),
		Strategy:       b.strategy.Name(),
		LastUpdate:     time.Now().UTC(),
		Stats:          b.stats,
		StrategyState:  strategyState,
		Connectivity:   b.connectivity,
		NotifiedOrders: notified,
	}
	b.mu.RUnlock()

	if err := b.states.Save(state); err != nil {
		return err
	}
	b.lastSave = time.Now()
	return nil
}
