package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

// StaticFeed replays a fixed candle series; the ticker tracks the last
// candle. Tests and the backtest data path use it.
type StaticFeed struct {
	mu     sync.Mutex
	symbol string
	bars   []domain.Candle
	cursor int
}

// NewStaticFeed serves the given bars for one symbol. Advance moves the
// ticker forward one bar at a time.
func NewStaticFeed(symbol string, bars []domain.Candle) *StaticFeed {
	return &StaticFeed{symbol: symbol, bars: bars}
}

// Advance moves the feed to the next bar and reports whether one was left.
func (f *StaticFeed) Advance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor+1 >= len(f.bars) {
		return false
	}
	f.cursor++
	return true
}

func (f *StaticFeed) Ticker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if symbol != f.symbol || len(f.bars) == 0 {
		return nil, fmt.Errorf("static feed: no data for %s", symbol)
	}
	bar := f.bars[f.cursor]
	return &domain.Ticker{
		Symbol: symbol,
		Last:   bar.Close,
		Bid:    bar.Close,
		Ask:    bar.Close,
		High:   bar.High,
		Low:    bar.Low,
		Volume: bar.Volume,
		Time:   bar.Time,
	}, nil
}

func (f *StaticFeed) Candles(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if symbol != f.symbol {
		return nil, fmt.Errorf("static feed: no data for %s", symbol)
	}
	end := f.cursor + 1
	start := 0
	if limit > 0 && end-start > limit {
		start = end - limit
	}
	out := make([]domain.Candle, end-start)
	copy(out, f.bars[start:end])
	return out, nil
}

// RandomWalkFeed generates a geometric random walk, one candle per interval.
// It exists so a paper bot can run end to end without any network adapter.
type RandomWalkFeed struct {
	mu       sync.Mutex
	symbol   string
	interval time.Duration
	rng      *rand.Rand
	bars     []domain.Candle
	price    float64
}

// NewRandomWalkFeed seeds the walk at startPrice. A fixed seed makes runs
// reproducible.
func NewRandomWalkFeed(symbol string, startPrice float64, interval time.Duration, seed int64) *RandomWalkFeed {
	f := &RandomWalkFeed{
		symbol:   symbol,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		price:    startPrice,
	}
	// Warm up enough history for indicator windows.
	start := time.Now().Add(-250 * interval).UnixMilli()
	for i := 0; i < 250; i++ {
		f.bars = append(f.bars, f.nextBar(start+int64(i)*interval.Milliseconds()))
	}
	return f
}

func (f *RandomWalkFeed) nextBar(at int64) domain.Candle {
	open := f.price
	change := (f.rng.Float64() - 0.5) * 0.01 // +-0.5% per bar
	closePrice := open * (1 + change)
	high := open
	low := open
	if closePrice > high {
		high = closePrice
	}
	if closePrice < low {
		low = closePrice
	}
	f.price = closePrice
	return domain.Candle{
		Time:   at,
		Open:   open,
		High:   high * 1.001,
		Low:    low * 0.999,
		Close:  closePrice,
		Volume: 50 + f.rng.Float64()*100,
	}
}

// Generate extends the walk by n bars and returns the full series so far.
// The backtest CLI uses it to produce a synthetic data set.
func (f *RandomWalkFeed) Generate(n int) []domain.Candle {
	f.mu.Lock()
	defer f.mu.Unlock()
	last := f.bars[len(f.bars)-1].Time
	for i := 1; i <= n; i++ {
		f.bars = append(f.bars, f.nextBar(last+int64(i)*f.interval.Milliseconds()))
	}
	out := make([]domain.Candle, len(f.bars))
	copy(out, f.bars)
	return out
}

func (f *RandomWalkFeed) Ticker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if symbol != f.symbol {
		return nil, fmt.Errorf("random walk feed: no data for %s", symbol)
	}
	now := time.Now().UnixMilli()
	last := f.bars[len(f.bars)-1]
	if now-last.Time >= f.interval.Milliseconds() {
		f.bars = append(f.bars, f.nextBar(now))
		last = f.bars[len(f.bars)-1]
	}
	spread := last.Close * 0.0002
	return &domain.Ticker{
		Symbol: symbol,
		Last:   last.Close,
		Bid:    last.Close - spread,
		Ask:    last.Close + spread,
		High:   last.High,
		Low:    last.Low,
		Volume: last.Volume,
		Time:   last.Time,
	}, nil
}

func (f *RandomWalkFeed) Candles(ctx context.Context, symbol, timeframe string, since int64, limit int) ([]domain.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if symbol != f.symbol {
		return nil, fmt.Errorf("random walk feed: no data for %s", symbol)
	}
	bars := f.bars
	if since > 0 {
		i := 0
		for i < len(bars) && bars[i].Time < since {
			i++
		}
		bars = bars[i:]
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]domain.Candle, len(bars))
	copy(out, bars)
	return out, nil
}
