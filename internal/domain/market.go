package domain

// Candle is one OHLCV bar. Time is the bar open time in unix milliseconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Ticker is the latest exchange quote for a symbol.
type Ticker struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume float64 `json:"volume"`
	Time   int64   `json:"time"`
}

// MarketSnapshot is the immutable market view handed to a strategy for one
// decision cycle. Bars is ordered oldest first and ends at the current bar.
type MarketSnapshot struct {
	Symbol string
	Last   float64
	Bid    float64
	Ask    float64
	High   float64
	Low    float64
	Volume float64
	Time   int64
	Bars   []Candle
}

// Closes extracts the close series from the snapshot's bar window.
func (s MarketSnapshot) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}
