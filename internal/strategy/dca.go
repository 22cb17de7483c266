package strategy

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

func init() {
	Register("dca", NewDCA)
}

// DCA buys a fixed dollar amount at a fixed interval regardless of price,
// optionally gated by a max/min price band. It never sells.
type DCA struct {
	logger *zap.Logger

	intervalHours float64
	amountUSD     float64
	maxPrice      float64 // 0 disables
	minPrice      float64 // 0 disables

	lastPurchase   time.Time
	totalPurchased float64
	totalSpent     float64
	purchaseCount  int
}

func NewDCA(params Params, logger *zap.Logger) (Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DCA{
		logger:        logger,
		intervalHours: params.Float("interval_hours", 24),
		amountUSD:     params.Float("amount_usd", 100),
		maxPrice:      params.Float("max_price", 0),
		minPrice:      params.Float("min_price", 0),
	}
	if s.amountUSD <= 0 {
		return nil, fmt.Errorf("dca: amount_usd must be positive")
	}
	if s.intervalHours <= 0 {
		return nil, fmt.Errorf("dca: interval_hours must be positive")
	}
	logger.Info("DCA strategy initialized",
		zap.Float64("interval_hours", s.intervalHours),
		zap.Float64("amount_usd", s.amountUSD),
		zap.Float64("max_price", s.maxPrice),
		zap.Float64("min_price", s.minPrice))
	return s, nil
}

func (s *DCA) Name() string { return "dca" }

// PurchaseCount returns the number of completed buys.
func (s *DCA) PurchaseCount() int { return s.purchaseCount }

// AveragePrice returns the volume-weighted average purchase price.
func (s *DCA) AveragePrice() float64 {
	if s.totalPurchased == 0 {
		return 0
	}
	return s.totalSpent / s.totalPurchased
}

func (s *DCA) Analyze(snapshot domain.MarketSnapshot) domain.Signal {
	currentPrice := snapshot.Last
	if currentPrice <= 0 {
		return domain.NewHoldSignal("no price data available")
	}

	now := snapshotTime(snapshot)
	if !s.lastPurchase.IsZero() {
		sinceLast := now.Sub(s.lastPurchase).Hours()
		if sinceLast < s.intervalHours {
			return domain.NewHoldSignal(fmt.Sprintf(
				"next purchase in %.1f hours", s.intervalHours-sinceLast))
		}
	}

	if s.maxPrice > 0 && currentPrice > s.maxPrice {
		return domain.NewHoldSignal(fmt.Sprintf(
			"price %.2f above max %.2f", currentPrice, s.maxPrice))
	}
	if s.minPrice > 0 && currentPrice < s.minPrice {
		return domain.NewHoldSignal(fmt.Sprintf(
			"price %.2f below min %.2f", currentPrice, s.minPrice))
	}

	amount := s.amountUSD / currentPrice
	s.logger.Info("BUY SIGNAL",
		zap.String("strategy", s.Name()),
		zap.Float64("price", currentPrice),
		zap.Float64("amount", amount),
		zap.Float64("cost", s.amountUSD))
	reason := fmt.Sprintf("DCA interval reached - buying %.2f", s.amountUSD)
	return domain.NewBuySignal(currentPrice, amount, s.amountUSD, reason, 1.0)
}

// snapshotTime prefers the snapshot's own clock so backtests replay with the
// historical timeline rather than the wall clock.
func snapshotTime(snapshot domain.MarketSnapshot) time.Time {
	if snapshot.Time > 0 {
		return time.UnixMilli(snapshot.Time)
	}
	return time.Now()
}

func (s *DCA) OnOrderFilled(order *domain.Order) {
	if order.Side != domain.OrderSideBuy {
		return
	}
	if order.CreatedAt.IsZero() {
		s.lastPurchase = time.Now()
	} else {
		s.lastPurchase = order.CreatedAt
	}
	s.purchaseCount++
	s.totalPurchased += order.FilledAmount
	s.totalSpent += order.Cost

	s.logger.Info("purchase complete",
		zap.Int("purchase_number", s.purchaseCount),
		zap.Float64("price", order.Price),
		zap.Float64("amount", order.FilledAmount),
		zap.Float64("cost", order.Cost),
		zap.Float64("total_purchased", s.totalPurchased),
		zap.Float64("total_spent", s.totalSpent),
		zap.Float64("average_price", s.AveragePrice()))
}

type dcaState struct {
	LastPurchase   time.Time `json:"last_purchase,omitzero"`
	TotalPurchased float64   `json:"total_purchased"`
	TotalSpent     float64   `json:"total_spent"`
	PurchaseCount  int       `json:"purchase_count"`
}

func (s *DCA) State() (json.RawMessage, error) {
	return json.Marshal(dcaState{
		LastPurchase:   s.lastPurchase,
		TotalPurchased: s.totalPurchased,
		TotalSpent:     s.totalSpent,
		PurchaseCount:  s.purchaseCount,
	})
}

func (s *DCA) RestoreState(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var st dcaState
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("dca: restore state: %w", err)
	}
	s.lastPurchase = st.LastPurchase
	s.totalPurchased = st.TotalPurchased
	s.totalSpent = st.TotalSpent
	s.purchaseCount = st.PurchaseCount
	return nil
}
