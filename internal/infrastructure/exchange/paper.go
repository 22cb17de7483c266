// Package exchange holds the built-in exchange adapters. Paper simulates
// order execution against an injected price feed; every order fills
// immediately and fully, which is what the strategy layer expects from a
// paper-trading venue.
package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

// Feed supplies market data to the paper exchange.
type Feed interface {
	Ticker(ctx context.Context, symbol string) (*domain.Ticker, error)
	Candles(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]domain.Candle, error)
}

// Paper implements domain.Exchange with synthetic fills. Orders get ids of
// the form "paper-<uuid>" and close the moment they are placed.
type Paper struct {
	mu        sync.Mutex
	feed      Feed
	feeRate   float64
	connected bool
	offline   bool
	orders    map[string]*domain.Order
}

// NewPaper wraps a price feed. feeRate is the taker fee fraction applied to
// every fill (e.g. 0.001 for 0.1%).
func NewPaper(feed Feed, feeRate float64) *Paper {
	return &Paper{
		feed:    feed,
		feeRate: feeRate,
		orders:  make(map[string]*domain.Order),
	}
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *Paper) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

// SetOffline simulates a connectivity outage; used by tests and the demo
// runner to exercise the bot's backoff path.
func (p *Paper) SetOffline(offline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offline = offline
}

func (p *Paper) CheckConnectivity(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return fmt.Errorf("paper exchange: not connected")
	}
	if p.offline {
		return fmt.Errorf("paper exchange: simulated outage")
	}
	return nil
}

func (p *Paper) GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	if err := p.CheckConnectivity(ctx); err != nil {
		return nil, err
	}
	return p.feed.Ticker(ctx, symbol)
}

func (p *Paper) GetHistoricalData(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]domain.Candle, error) {
	if err := p.CheckConnectivity(ctx); err != nil {
		return nil, err
	}
	return p.feed.Candles(ctx, symbol, timeframe, since, limit)
}

func (p *Paper) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	if err := p.CheckConnectivity(ctx); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("paper exchange: order amount must be positive")
	}

	price := req.Price
	if req.Type == domain.OrderTypeMarket || price <= 0 {
		ticker, err := p.feed.Ticker(ctx, req.Symbol)
		if err != nil {
			return nil, fmt.Errorf("paper exchange: market price for %s: %w", req.Symbol, err)
		}
		price = ticker.Last
	}

	cost := price * req.Amount
	order := &domain.Order{
		ID:           "paper-" + uuid.NewString(),
		Symbol:       req.Symbol,
		Side:         req.Side,
		Type:         req.Type,
		Amount:       req.Amount,
		Price:        price,
		Cost:         cost,
		FilledAmount: req.Amount,
		Fee:          cost * p.feeRate,
		Status:       domain.OrderStatusClosed,
		ClientRef:    req.ClientRef,
		CreatedAt:    time.Now().UTC(),
	}

	p.mu.Lock()
	p.orders[order.ID] = order
	p.mu.Unlock()
	return order, nil
}

func (p *Paper) CancelOrder(ctx context.Context, symbol, orderID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	order, ok := p.orders[orderID]
	if !ok || order.Status != domain.OrderStatusOpen {
		return false, nil
	}
	order.Status = domain.OrderStatusCancelled
	return true, nil
}

func (p *Paper) GetOrder(ctx context.Context, symbol, orderID string) (*domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	order, ok := p.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("paper exchange: unknown order %s", orderID)
	}
	copied := *order
	return &copied, nil
}

func (p *Paper) GetOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var open []*domain.Order
	for _, order := range p.orders {
		if order.Status == domain.OrderStatusOpen && order.Symbol == symbol {
			copied := *order
			open = append(open, &copied)
		}
	}
	return open, nil
}

var _ domain.Exchange = (*Paper)(nil)
