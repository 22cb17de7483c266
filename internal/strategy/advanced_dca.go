package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/indicator"
)

func init() {
	Register("advanced_dca", NewAdvancedDCA)
}

// minIndicatorBars is the shortest bar window the indicator set is trusted
// on; anything shorter yields a hold.
const minIndicatorBars = 50

// sellBuffer is added on top of the minimum profit fraction when deriving a
// purchase's sell price, to absorb slippage and the sell-side fee.
const sellBuffer = 0.002

// Purchase is one open lot of the averaging ledger. Cost only ever decreases
// (profit reallocation); SellPrice is always re-derived from the current
// cost, fee, and minimum-profit fraction.
type Purchase struct {
	BuyOrderID string    `json:"buy_order_id"`
	Cost       float64   `json:"cost"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
	Fee        float64   `json:"fee"`
	SellPrice  float64   `json:"sell_price"`
	DCAApplied float64   `json:"dca_applied"`
	Timestamp  time.Time `json:"timestamp"`
}

// AdvancedDCA buys on indicator agreement with a progressively larger
// required discount per additional lot, sells each lot at its own profit
// target, and reallocates excess sale profit into the cost basis of the most
// recent remaining lot so that lot sells sooner.
type AdvancedDCA struct {
	logger *zap.Logger

	amountUSD    float64
	minProfit    float64 // fraction, e.g. 0.005
	dcaPool      float64 // fraction of excess profit reallocated
	maxPurchases int     // -1 for unlimited

	usePriceDrop      bool
	priceDropPercent  float64
	priceDropLookback int

	useRSI        bool
	rsiOversold   float64
	useStochRSI   bool
	stochOversold float64
	useEMA        bool
	emaLength     int
	useMACD       bool
	useMFI        bool
	mfiOversold   float64

	baseStepDown       float64 // percent
	stepDownMultiplier float64
	maxStepDown        float64 // percent
	indicatorAgreement float64

	purchases       []*Purchase
	totalProfit     float64
	totalDCAApplied float64
	trailing        TrailingState
}

// NewAdvancedDCA builds the strategy from its params block. All params have
// working defaults; see the example config for the full list.
func NewAdvancedDCA(params Params, logger *zap.Logger) (Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AdvancedDCA{
		logger:       logger,
		amountUSD:    params.Float("amount_usd", 100),
		minProfit:    params.Float("min_profit_percent", 0.5) / 100,
		dcaPool:      params.Float("dca_pool_percent", 100) / 100,
		maxPurchases: params.Int("max_purchases", -1),

		useRSI:        params.Bool("use_rsi", true),
		rsiOversold:   params.Float("rsi_oversold", 35),
		useStochRSI:   params.Bool("use_stoch_rsi", true),
		stochOversold: params.Float("stoch_oversold", 33),
		useEMA:        params.Bool("use_ema", true),
		emaLength:     params.Int("ema_length", 25),
		useMACD:       params.Bool("use_macd", true),
		useMFI:        params.Bool("use_mfi", true),
		mfiOversold:   params.Float("mfi_oversold", 25),

		stepDownMultiplier: params.Float("step_down_multiplier", 1.5),
		maxStepDown:        params.Float("max_step_down", 5.0),
		indicatorAgreement: params.Float("indicator_agreement", 0.6),
	}
	// Each additional lot must come at a discount of at least the profit
	// target, capped at 5%.
	s.baseStepDown = math.Min(s.minProfit*100, 5.0)

	if drop, ok := params.Sub("price_drop"); ok {
		s.usePriceDrop = drop.Bool("enabled", false)
		s.priceDropPercent = drop.Float("percent", 1.0)
		s.priceDropLookback = drop.Int("lookback_candles", 24)
	}

	if s.amountUSD <= 0 {
		return nil, fmt.Errorf("advanced_dca: amount_usd must be positive")
	}

	logger.Info("advanced DCA strategy initialized",
		zap.Float64("amount_usd", s.amountUSD),
		zap.Float64("min_profit_percent", s.minProfit*100),
		zap.Float64("dca_pool_percent", s.dcaPool*100),
		zap.Int("max_purchases", s.maxPurchases),
		zap.Float64("base_step_down", s.baseStepDown),
		zap.Float64("step_down_multiplier", s.stepDownMultiplier),
		zap.Float64("max_step_down", s.maxStepDown))
	return s, nil
}

func (s *AdvancedDCA) Name() string { return "advanced_dca" }

// Trailing exposes the trailing machine to the run loop.
func (s *AdvancedDCA) Trailing() *TrailingState { return &s.trailing }

// Purchases returns the open ledger, oldest first.
func (s *AdvancedDCA) Purchases() []*Purchase { return s.purchases }

// TotalProfit returns the cumulative realized profit across closed lots.
func (s *AdvancedDCA) TotalProfit() float64 { return s.totalProfit }

// TotalDCAApplied returns the cumulative profit reallocated into open lots.
func (s *AdvancedDCA) TotalDCAApplied() float64 { return s.totalDCAApplied }

func (s *AdvancedDCA) Analyze(snapshot domain.MarketSnapshot) domain.Signal {
	currentPrice := snapshot.Last
	if currentPrice <= 0 || len(snapshot.Bars) < minIndicatorBars {
		return domain.NewHoldSignal("insufficient market data")
	}

	// Sells first, price-only: each lot sells the moment its own target is
	// reached, regardless of what the indicators say.
	for _, p := range s.purchases {
		if currentPrice >= p.SellPrice {
			s.logger.Info("SELL SIGNAL",
				zap.String("strategy", s.Name()),
				zap.Float64("price", currentPrice),
				zap.Float64("sell_price", p.SellPrice),
				zap.Float64("amount", p.Amount),
				zap.String("buy_order_id", p.BuyOrderID))
			reason := fmt.Sprintf("purchase reached profit target (%.2f)", p.SellPrice)
			return domain.NewSellSignal(currentPrice, p.Amount, p.BuyOrderID, reason, 1.0)
		}
	}

	if s.maxPurchases != -1 && len(s.purchases) >= s.maxPurchases {
		return domain.NewHoldSignal(fmt.Sprintf("max purchases reached (%d)", s.maxPurchases))
	}

	votes, reasons := s.indicatorVotes(snapshot)

	// Progressive step-down: every additional lot requires a larger discount
	// from the previous fill, so a sustained downtrend cannot grow the
	// position without bound.
	if len(s.purchases) > 0 {
		lastPrice := s.purchases[len(s.purchases)-1].Price
		purchaseNumber := len(s.purchases) + 1
		requiredStep := math.Min(
			s.baseStepDown*math.Pow(s.stepDownMultiplier, float64(purchaseNumber-2)),
			s.maxStepDown)
		dropFromLast := (lastPrice - currentPrice) / lastPrice * 100
		if dropFromLast < requiredStep {
			return domain.NewHoldSignal(fmt.Sprintf(
				"price needs to drop %.2f%% from last purchase (currently %.2f%%)",
				requiredStep, dropFromLast))
		}
	}

	positive := 0
	for _, v := range votes {
		if v {
			positive++
		}
	}
	total := len(votes)
	if total > 0 && float64(positive) >= float64(total)*s.indicatorAgreement {
		amount := s.amountUSD / currentPrice
		confidence := float64(positive) / float64(total)
		s.logger.Info("BUY SIGNAL",
			zap.String("strategy", s.Name()),
			zap.Float64("price", currentPrice),
			zap.Float64("amount", amount),
			zap.Float64("cost", s.amountUSD),
			zap.Int("signals", positive),
			zap.Int("total_signals", total),
			zap.String("reasons", strings.Join(reasons, ", ")))
		reason := "indicators triggered: " + strings.Join(reasons, ", ")
		return domain.NewBuySignal(currentPrice, amount, s.amountUSD, reason, confidence)
	}

	return domain.NewHoldSignal(fmt.Sprintf("indicators not aligned (%d/%d)", positive, total))
}

// indicatorVotes evaluates every enabled indicator and returns one vote per
// indicator plus the human-readable reasons behind the positive ones.
func (s *AdvancedDCA) indicatorVotes(snapshot domain.MarketSnapshot) ([]bool, []string) {
	closes := snapshot.Closes()
	var votes []bool
	var reasons []string

	if s.usePriceDrop {
		if indicator.PriceDropped(closes, s.priceDropLookback, s.priceDropPercent) {
			votes = append(votes, true)
			reasons = append(reasons, fmt.Sprintf("price dropped %.1f%%", s.priceDropPercent))
		} else {
			votes = append(votes, false)
		}
	}
	if s.useRSI {
		rsi, _, _ := indicator.RSI(closes, 14)
		if rsi <= s.rsiOversold {
			votes = append(votes, true)
			reasons = append(reasons, fmt.Sprintf("RSI oversold (%.1f)", rsi))
		} else {
			votes = append(votes, false)
		}
	}
	if s.useStochRSI {
		stoch, ok := indicator.Stochastic(snapshot.Bars, 14, 3)
		if ok && stoch <= s.stochOversold {
			votes = append(votes, true)
			reasons = append(reasons, fmt.Sprintf("stochastic oversold (%.1f)", stoch))
		} else {
			votes = append(votes, false)
		}
	}
	if s.useEMA {
		ema, ok := indicator.EMA(closes, s.emaLength)
		if ok && snapshot.Last < ema {
			votes = append(votes, true)
			reasons = append(reasons, fmt.Sprintf("price below EMA (%.2f)", ema))
		} else {
			votes = append(votes, false)
		}
	}
	if s.useMACD {
		cur, prev, ok := indicator.MACDHistogram(closes, 12, 26, 9)
		if ok && cur > prev {
			votes = append(votes, true)
			reasons = append(reasons, "MACD rising")
		} else {
			votes = append(votes, false)
		}
	}
	if s.useMFI {
		mfi, ok := indicator.MFI(snapshot.Bars, 14)
		if ok && mfi <= s.mfiOversold {
			votes = append(votes, true)
			reasons = append(reasons, fmt.Sprintf("MFI oversold (%.1f)", mfi))
		} else {
			votes = append(votes, false)
		}
	}
	return votes, reasons
}

func (s *AdvancedDCA) OnOrderFilled(order *domain.Order) {
	switch order.Side {
	case domain.OrderSideBuy:
		s.handleBuyFilled(order)
	case domain.OrderSideSell:
		s.handleSellFilled(order)
	}
}

func (s *AdvancedDCA) handleBuyFilled(order *domain.Order) {
	amount := order.FilledAmount
	if amount <= 0 {
		s.logger.Warn("buy fill with zero amount ignored", zap.String("order_id", order.ID))
		return
	}
	cost := order.Cost
	sellPrice := (cost + order.Fee) / amount * (1 + s.minProfit + sellBuffer)

	stamp := order.CreatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	s.purchases = append(s.purchases, &Purchase{
		BuyOrderID: order.ID,
		Cost:       cost,
		Amount:     amount,
		Price:      order.Price,
		Fee:        order.Fee,
		SellPrice:  sellPrice,
		Timestamp:  stamp,
	})

	s.logger.Info("purchase recorded",
		zap.Int("purchase_number", len(s.purchases)),
		zap.String("buy_order_id", order.ID),
		zap.Float64("price", order.Price),
		zap.Float64("amount", amount),
		zap.Float64("cost", cost),
		zap.Float64("sell_price", sellPrice))
}

func (s *AdvancedDCA) handleSellFilled(order *domain.Order) {
	if len(s.purchases) == 0 {
		s.logger.Warn("sell fill with empty purchase ledger", zap.String("order_id", order.ID))
		return
	}

	// The sell order carries the originating buy-order id as its client
	// reference, so matching is exact.
	idx := -1
	for i, p := range s.purchases {
		if p.BuyOrderID == order.ClientRef {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.logger.Warn("sell fill does not match any open purchase",
			zap.String("order_id", order.ID),
			zap.String("client_ref", order.ClientRef))
		return
	}
	sold := s.purchases[idx]
	s.purchases = append(s.purchases[:idx], s.purchases[idx+1:]...)

	revenue := order.Cost
	totalProfit := revenue - order.Fee - sold.Cost
	profitFloor := s.minProfit * sold.Cost
	excess := totalProfit - profitFloor

	var dcaToApply float64
	if excess > 0 {
		dcaToApply = excess * s.dcaPool
	}

	s.totalProfit += totalProfit
	s.logger.Info("sale complete",
		zap.String("buy_order_id", sold.BuyOrderID),
		zap.Float64("revenue", revenue),
		zap.Float64("purchase_cost", sold.Cost),
		zap.Float64("profit", totalProfit),
		zap.Float64("dca_to_apply", dcaToApply))

	if dcaToApply > 0 && len(s.purchases) > 0 {
		s.applyDCA(dcaToApply)
	}
}

// applyDCA reduces the cost basis of the most recent remaining lot and
// re-derives its sell price from the new, lower cost. Reallocation always
// targets a single lot; it is never spread across the ledger.
func (s *AdvancedDCA) applyDCA(amount float64) {
	target := s.purchases[len(s.purchases)-1]
	newCost := target.Cost - amount
	newSellPrice := (1 + s.minProfit + sellBuffer) * (newCost + 2*target.Fee) / target.Amount

	s.logger.Info("profit reallocated",
		zap.String("buy_order_id", target.BuyOrderID),
		zap.Float64("dca_amount", amount),
		zap.Float64("old_cost", target.Cost),
		zap.Float64("new_cost", newCost),
		zap.Float64("old_sell_price", target.SellPrice),
		zap.Float64("new_sell_price", newSellPrice))

	target.Cost = newCost
	target.SellPrice = newSellPrice
	target.DCAApplied += amount
	s.totalDCAApplied += amount
}

type advancedDCAState struct {
	Purchases       []*Purchase   `json:"purchases"`
	TotalProfit     float64       `json:"total_profit"`
	TotalDCAApplied float64       `json:"total_dca_applied"`
	Trailing        TrailingState `json:"trailing_state"`
}

func (s *AdvancedDCA) State() (json.RawMessage, error) {
	return json.Marshal(advancedDCAState{
		Purchases:       s.purchases,
		TotalProfit:     s.totalProfit,
		TotalDCAApplied: s.totalDCAApplied,
		Trailing:        s.trailing,
	})
}

func (s *AdvancedDCA) RestoreState(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var st advancedDCAState
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("advanced_dca: restore state: %w", err)
	}
	s.purchases = st.Purchases
	s.totalProfit = st.TotalProfit
	s.totalDCAApplied = st.TotalDCAApplied
	s.trailing = st.Trailing
	s.logger.Info("state restored",
		zap.Int("purchases", len(s.purchases)),
		zap.Float64("total_profit", s.totalProfit),
		zap.Float64("total_dca_applied", s.totalDCAApplied))
	return nil
}
