package domain

import "time"

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusClosed    OrderStatus = "closed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is an exchange order as reported back to the bot. The bot only reads
// fields returned from PlaceOrder/GetOrder; it never mutates an Order.
type Order struct {
	ID           string      `json:"id"`
	Symbol       string      `json:"symbol"`
	Side         OrderSide   `json:"side"`
	Type         OrderType   `json:"type"`
	Amount       float64     `json:"amount"`
	Price        float64     `json:"price"`
	Cost         float64     `json:"cost"`
	FilledAmount float64     `json:"filled_amount"`
	Fee          float64     `json:"fee"`
	Status       OrderStatus `json:"status"`
	// ClientRef carries the caller's correlation id (for sells, the id of the
	// purchase being closed) and is echoed back unchanged by the exchange.
	ClientRef string    `json:"client_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Closed reports whether the order is fully filled.
func (o *Order) Closed() bool {
	return o.Status == OrderStatusClosed
}

// OrderRequest is the bot-side description of an order to place.
type OrderRequest struct {
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Amount    float64
	Price     float64
	ClientRef string
}

// Trade is one executed fill persisted to the trade history store.
type Trade struct {
	ID        int64     `json:"id"`
	BotID     string    `json:"bot_id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	Fee       float64   `json:"fee"`
	Profit    float64   `json:"profit"`
	CreatedAt time.Time `json:"created_at"`
}
