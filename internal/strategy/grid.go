package strategy

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

func init() {
	Register("grid_trading", NewGrid)
}

// gridLevel is one virtual resting order of the grid.
type gridLevel struct {
	Price  float64 `json:"price"`
	Side   string  `json:"side"`
	Amount float64 `json:"amount"`
}

// Grid keeps a ladder of virtual buy/sell levels around an anchor price and
// trades each crossing: a filled buy is replaced by a sell one spacing above,
// a filled sell by a buy one spacing below. Profits come from oscillation
// inside the grid range.
type Grid struct {
	logger *zap.Logger

	gridSpacing  float64 // percent between adjacent levels
	gridLevels   int     // levels on each side of the anchor
	positionSize float64 // USD per level

	anchorPrice float64
	levels      []gridLevel
	inventory   float64 // asset bought by the grid and not yet sold
}

func NewGrid(params Params, logger *zap.Logger) (Strategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Grid{
		logger:       logger,
		gridSpacing:  params.Float("grid_spacing", 2.5),
		gridLevels:   params.Int("grid_levels", 10),
		positionSize: params.Float("position_size", 100),
	}
	if s.gridSpacing <= 0 {
		return nil, fmt.Errorf("grid_trading: grid_spacing must be positive")
	}
	if s.gridLevels <= 0 {
		return nil, fmt.Errorf("grid_trading: grid_levels must be positive")
	}
	logger.Info("grid trading strategy initialized",
		zap.Float64("grid_spacing", s.gridSpacing),
		zap.Int("grid_levels", s.gridLevels),
		zap.Float64("position_size", s.positionSize))
	return s, nil
}

func (s *Grid) Name() string { return "grid_trading" }

// Levels returns the currently pending virtual levels.
func (s *Grid) Levels() []gridLevel { return s.levels }

// Inventory returns the asset amount the grid holds.
func (s *Grid) Inventory() float64 { return s.inventory }

func (s *Grid) Analyze(snapshot domain.MarketSnapshot) domain.Signal {
	currentPrice := snapshot.Last
	if currentPrice <= 0 {
		return domain.NewHoldSignal("no price data available")
	}

	if len(s.levels) == 0 {
		s.placeGrid(currentPrice)
		return domain.NewHoldSignal(fmt.Sprintf("placed %d grid levels around %.2f",
			len(s.levels), currentPrice))
	}

	// Trade the nearest crossed level; one action per cycle.
	if idx := s.nearestCrossed(currentPrice); idx >= 0 {
		level := s.levels[idx]
		if level.Side == "buy" {
			s.logger.Info("BUY SIGNAL",
				zap.String("strategy", s.Name()),
				zap.Float64("level_price", level.Price),
				zap.Float64("price", currentPrice))
			reason := fmt.Sprintf("price crossed grid buy level %.2f", level.Price)
			return domain.NewBuySignal(level.Price, level.Amount, level.Price*level.Amount, reason, 1.0)
		}
		s.logger.Info("SELL SIGNAL",
			zap.String("strategy", s.Name()),
			zap.Float64("level_price", level.Price),
			zap.Float64("price", currentPrice))
		reason := fmt.Sprintf("price crossed grid sell level %.2f", level.Price)
		return domain.NewSellSignal(level.Price, level.Amount, "", reason, 1.0)
	}

	return domain.NewHoldSignal(fmt.Sprintf("grid active with %d levels", len(s.levels)))
}

// placeGrid lays gridLevels buy levels below and sell levels above the
// anchor, one spacing apart.
func (s *Grid) placeGrid(anchor float64) {
	s.anchorPrice = anchor
	s.levels = s.levels[:0]
	for i := 1; i <= s.gridLevels; i++ {
		price := anchor * (1 - s.gridSpacing/100*float64(i))
		s.levels = append(s.levels, gridLevel{Price: price, Side: "buy", Amount: s.positionSize / price})
	}
	for i := 1; i <= s.gridLevels; i++ {
		price := anchor * (1 + s.gridSpacing/100*float64(i))
		s.levels = append(s.levels, gridLevel{Price: price, Side: "sell", Amount: s.positionSize / price})
	}
	s.logger.Info("grid placed",
		zap.Float64("anchor", anchor),
		zap.Int("levels", len(s.levels)))
}

// nearestCrossed returns the index of the crossed level closest to the
// anchor, or -1. A buy level is crossed when price reaches it from above; a
// sell level when price reaches it from below and the grid holds inventory
// to sell.
func (s *Grid) nearestCrossed(currentPrice float64) int {
	best := -1
	var bestDist float64
	for i, level := range s.levels {
		switch level.Side {
		case "buy":
			if currentPrice > level.Price {
				continue
			}
		case "sell":
			if currentPrice < level.Price || s.inventory < level.Amount {
				continue
			}
		}
		dist := level.Price - s.anchorPrice
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}

func (s *Grid) OnOrderFilled(order *domain.Order) {
	// Fills occur at the level's own price, so price identifies the level.
	idx := -1
	for i, level := range s.levels {
		if level.Price == order.Price && level.Side == string(order.Side) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.logger.Warn("fill does not match any grid level",
			zap.String("order_id", order.ID),
			zap.Float64("price", order.Price))
		return
	}
	filled := s.levels[idx]
	s.levels = append(s.levels[:idx], s.levels[idx+1:]...)

	if order.Side == domain.OrderSideBuy {
		s.inventory += order.FilledAmount
		sellPrice := order.Price * (1 + s.gridSpacing/100)
		s.levels = append(s.levels, gridLevel{Price: sellPrice, Side: "sell", Amount: filled.Amount})
		s.logger.Info("grid buy filled, sell level placed",
			zap.Float64("fill_price", order.Price),
			zap.Float64("sell_price", sellPrice))
	} else {
		s.inventory -= order.FilledAmount
		buyPrice := order.Price * (1 - s.gridSpacing/100)
		s.levels = append(s.levels, gridLevel{Price: buyPrice, Side: "buy", Amount: filled.Amount})
		s.logger.Info("grid sell filled, buy level placed",
			zap.Float64("fill_price", order.Price),
			zap.Float64("buy_price", buyPrice))
	}
}

type gridState struct {
	AnchorPrice float64     `json:"anchor_price"`
	Levels      []gridLevel `json:"levels"`
	Inventory   float64     `json:"inventory"`
}

func (s *Grid) State() (json.RawMessage, error) {
	return json.Marshal(gridState{
		AnchorPrice: s.anchorPrice,
		Levels:      s.levels,
		Inventory:   s.inventory,
	})
}

func (s *Grid) RestoreState(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var st gridState
	if err := json.Unmarshal(raw, &st); err != nil {
		return fmt.Errorf("grid_trading: restore state: %w", err)
	}
	s.anchorPrice = st.AnchorPrice
	s.levels = st.Levels
	s.inventory = st.Inventory
	return nil
}
