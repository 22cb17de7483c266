package domain

import (
	"encoding/json"
	"time"
)

// BotStats are the running trade counters for one bot instance.
type BotStats struct {
	TotalTrades     int       `json:"total_trades"`
	WinningTrades   int       `json:"winning_trades"`
	LosingTrades    int       `json:"losing_trades"`
	TotalProfit     float64   `json:"total_profit"`
	CurrentPosition float64   `json:"current_position"`
	PositionCost    float64   `json:"position_cost"`
	LastPrice       float64   `json:"last_price"`
	LastUpdate      time.Time `json:"last_update"`
}

// ConnectivityInfo records the health of the exchange link.
type ConnectivityInfo struct {
	LastSuccess  time.Time `json:"last_success"`
	FailureCount int       `json:"failure_count"`
}

// BotPersistentState is everything written to disk for one bot id so the bot
// can resume after a restart. StrategyState is opaque to everything except
// the strategy that produced it. NotifiedOrders carries the at-most-once
// fill-notification set across restarts.
type BotPersistentState struct {
	BotID          string           `json:"bot_id"`
	Name           string           `json:"name"`
	Symbol         string           `json:"symbol"`
	Exchange       string           `json:"exchange"`
	Strategy       string           `json:"strategy"`
	LastUpdate     time.Time        `json:"last_update"`
	Stats          BotStats         `json:"stats"`
	StrategyState  json.RawMessage  `json:"strategy_state,omitempty"`
	Connectivity   ConnectivityInfo `json:"connectivity"`
	NotifiedOrders []string         `json:"notified_orders,omitempty"`
}
