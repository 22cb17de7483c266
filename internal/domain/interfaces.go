package domain

import "context"

// Exchange is the narrow contract the bot needs from an exchange adapter.
// Paper-trading implementations return immediately-closed synthetic orders.
type Exchange interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	CheckConnectivity(ctx context.Context) error
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)
	GetHistoricalData(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]Candle, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (bool, error)
	GetOrder(ctx context.Context, symbol, orderID string) (*Order, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]*Order, error)
}

// TradeRepository stores executed fills for later inspection.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade *Trade) error
	ListTrades(ctx context.Context, botID string, limit int) ([]*Trade, error)
	Close() error
}

// StateStore persists one BotPersistentState per bot id. Load returns
// (nil, nil) when no state has been saved yet.
type StateStore interface {
	Load(botID string) (*BotPersistentState, error)
	Save(state *BotPersistentState) error
}
