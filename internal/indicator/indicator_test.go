package indicator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"
)

func risingCloses(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestRSIExtremes(t *testing.T) {
	up := risingCloses(30, 100, 1)
	cur, _, ok := RSI(up, 14)
	require.True(t, ok)
	require.Equal(t, 100.0, cur)

	down := make([]float64, 30)
	for i := range down {
		down[i] = 200 - float64(i)
	}
	cur, _, ok = RSI(down, 14)
	require.True(t, ok)
	require.Equal(t, 0.0, cur)
}

func TestRSIInsufficientData(t *testing.T) {
	cur, prev, ok := RSI(risingCloses(10, 100, 1), 14)
	require.False(t, ok)
	require.Equal(t, 50.0, cur)
	require.Equal(t, 50.0, prev)
}

func TestRSIRising(t *testing.T) {
	closes := risingCloses(30, 100, 1)
	// Monotonic gains pin RSI at 100, so it is not strictly rising.
	require.False(t, RSIRising(closes, 14, 3))

	mixed := append(risingCloses(20, 100, -1), 81, 85, 90, 96)
	require.True(t, RSIRising(mixed, 14, 3))
}

func TestEMA(t *testing.T) {
	ema, ok := EMA([]float64{1, 2, 3, 4, 5}, 3)
	require.True(t, ok)
	require.InDelta(t, 4.0, ema, 1e-12)

	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 100
	}
	ema, ok = EMA(flat, 25)
	require.True(t, ok)
	require.InDelta(t, 100.0, ema, 1e-12)

	_, ok = EMA([]float64{1, 2}, 3)
	require.False(t, ok)
}

func TestMACDHistogramFlatSeries(t *testing.T) {
	flat := make([]float64, 40)
	for i := range flat {
		flat[i] = 50
	}
	cur, prev, ok := MACDHistogram(flat, 12, 26, 9)
	require.True(t, ok)
	require.InDelta(t, 0.0, cur, 1e-12)
	require.InDelta(t, 0.0, prev, 1e-12)
}

func TestMACDHistogramInsufficientData(t *testing.T) {
	_, _, ok := MACDHistogram(risingCloses(20, 100, 1), 12, 26, 9)
	require.False(t, ok)
}

func TestStochastic(t *testing.T) {
	bars := make([]domain.Candle, 20)
	for i := range bars {
		bars[i] = domain.Candle{High: 10, Low: 0, Close: 10}
	}
	v, ok := Stochastic(bars, 14, 3)
	require.True(t, ok)
	require.InDelta(t, 100.0, v, 1e-12)

	for i := range bars {
		bars[i].Close = 0
	}
	v, ok = Stochastic(bars, 14, 3)
	require.True(t, ok)
	require.InDelta(t, 0.0, v, 1e-12)
}

func TestMFI(t *testing.T) {
	bars := make([]domain.Candle, 20)
	for i := range bars {
		p := 100 + float64(i)
		bars[i] = domain.Candle{High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}
	v, ok := MFI(bars, 14)
	require.True(t, ok)
	require.Equal(t, 100.0, v)

	for i := range bars {
		p := 100 - float64(i)
		bars[i] = domain.Candle{High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}
	v, ok = MFI(bars, 14)
	require.True(t, ok)
	require.InDelta(t, 0.0, v, 1e-12)
}

func TestPriceDropped(t *testing.T) {
	closes := risingCloses(30, 100, 0)
	closes[len(closes)-1] = 94
	require.True(t, PriceDropped(closes, 24, 5.0))
	require.False(t, PriceDropped(closes, 24, 7.0))
	require.False(t, PriceDropped(closes[:10], 24, 1.0))
}

func TestPriceRising(t *testing.T) {
	require.True(t, PriceRising([]float64{1, 2, 3, 4}, 3))
	require.False(t, PriceRising([]float64{1, 3, 3, 4}, 3))
	require.False(t, PriceRising([]float64{1, 2}, 3))
}

func TestSellPriceWithFees(t *testing.T) {
	price := SellPriceWithFees(50000, 0.1, 0.1, 1.0)
	require.InDelta(t, 50601.10, price, 0.01)

	// The computed price must actually realize the target after both fees.
	proceeds := price * (1 - 0.001)
	cost := 50000 * 1.001
	require.GreaterOrEqual(t, (proceeds-cost)/cost, 0.01-1e-12)
}
