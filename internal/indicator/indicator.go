// Package indicator provides pure technical-analysis functions over OHLCV
// bar windows. All functions are stateless; callers own the window slicing.
package indicator

import "github.com/wiseman2/KryptoMF-Ai-BotCore/internal/domain"

// RSI returns the current and previous Wilder RSI values for the close
// series. ok is false when the series is too short (< period+2 values).
func RSI(closes []float64, period int) (cur, prev float64, ok bool) {
	series := rsiSeries(closes, period)
	if len(series) < 2 {
		return 50, 50, false
	}
	return series[len(series)-1], series[len(series)-2], true
}

// RSIRising reports whether RSI has increased on every one of the last
// lookback values.
func RSIRising(closes []float64, period, lookback int) bool {
	series := rsiSeries(closes, period)
	if len(series) < lookback {
		return false
	}
	tail := series[len(series)-lookback:]
	for i := 1; i < len(tail); i++ {
		if tail[i] <= tail[i-1] {
			return false
		}
	}
	return true
}

func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) < period+1 {
		return nil
	}
	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}
	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]float64, 0, len(gains)-period+1)
	out = append(out, rsiValue(avgGain, avgLoss))
	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		out = append(out, rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// EMA returns the latest exponential moving average of the close series,
// seeded with the simple average of the first period values.
func EMA(closes []float64, period int) (float64, bool) {
	series := emaSeries(closes, period)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

func emaSeries(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	var seed float64
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	seed /= float64(period)

	mult := 2.0 / float64(period+1)
	out := make([]float64, 0, len(values)-period+1)
	out = append(out, seed)
	ema := seed
	for i := period; i < len(values); i++ {
		ema = (values[i]-ema)*mult + ema
		out = append(out, ema)
	}
	return out
}

// MACDHistogram returns the current and previous MACD histogram values
// (MACD line minus signal line) for the close series.
func MACDHistogram(closes []float64, fast, slow, signal int) (cur, prev float64, ok bool) {
	if len(closes) < slow+signal {
		return 0, 0, false
	}
	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)
	// Align the two series on their common tail.
	n := len(slowSeries)
	fastSeries = fastSeries[len(fastSeries)-n:]
	macd := make([]float64, n)
	for i := range macd {
		macd[i] = fastSeries[i] - slowSeries[i]
	}
	signalSeries := emaSeries(macd, signal)
	if len(signalSeries) < 2 {
		return 0, 0, false
	}
	macdTail := macd[len(macd)-len(signalSeries):]
	last := len(signalSeries) - 1
	cur = macdTail[last] - signalSeries[last]
	prev = macdTail[last-1] - signalSeries[last-1]
	return cur, prev, true
}

// Stochastic returns the smoothed stochastic oscillator %K over the bar
// window: the raw %K of each bar's close within the period high/low range,
// averaged over the smoothing window.
func Stochastic(bars []domain.Candle, period, smooth int) (float64, bool) {
	if len(bars) < period+smooth-1 {
		return 0, false
	}
	raw := make([]float64, 0, len(bars)-period+1)
	for i := period - 1; i < len(bars); i++ {
		low := bars[i-period+1].Low
		high := bars[i-period+1].High
		for j := i - period + 2; j <= i; j++ {
			if bars[j].Low < low {
				low = bars[j].Low
			}
			if bars[j].High > high {
				high = bars[j].High
			}
		}
		if high == low {
			raw = append(raw, 50)
			continue
		}
		raw = append(raw, (bars[i].Close-low)/(high-low)*100)
	}
	if len(raw) < smooth {
		return 0, false
	}
	var sum float64
	for _, v := range raw[len(raw)-smooth:] {
		sum += v
	}
	return sum / float64(smooth), true
}

// MFI returns the latest Money Flow Index over the bar window.
func MFI(bars []domain.Candle, period int) (float64, bool) {
	if len(bars) < period+1 {
		return 0, false
	}
	tail := bars[len(bars)-period-1:]
	prevTypical := typicalPrice(tail[0])
	var positive, negative float64
	for _, b := range tail[1:] {
		tp := typicalPrice(b)
		flow := tp * b.Volume
		if tp > prevTypical {
			positive += flow
		} else if tp < prevTypical {
			negative += flow
		}
		prevTypical = tp
	}
	if negative == 0 {
		return 100, true
	}
	ratio := positive / negative
	return 100 - 100/(1+ratio), true
}

func typicalPrice(b domain.Candle) float64 {
	return (b.High + b.Low + b.Close) / 3
}

// PriceDropped reports whether the close has fallen by at least dropPercent
// versus the close lookback bars ago.
func PriceDropped(closes []float64, lookback int, dropPercent float64) bool {
	if len(closes) < lookback {
		return false
	}
	current := closes[len(closes)-1]
	past := closes[len(closes)-lookback]
	change := (current - past) / past * 100
	return change <= -dropPercent
}

// PriceRising reports whether each of the last lookback closes is strictly
// above its predecessor.
func PriceRising(closes []float64, lookback int) bool {
	if len(closes) < lookback {
		return false
	}
	tail := closes[len(closes)-lookback:]
	for i := 1; i < len(tail); i++ {
		if tail[i] <= tail[i-1] {
			return false
		}
	}
	return true
}

// SellPriceWithFees returns the sell price that locks in profitTargetPercent
// after both the buy and sell fees (all arguments in percent units).
func SellPriceWithFees(buyPrice, buyFeePercent, sellFeePercent, profitTargetPercent float64) float64 {
	totalCost := buyPrice * (1 + buyFeePercent/100)
	target := totalCost * (1 + profitTargetPercent/100)
	return target / (1 - sellFeePercent/100)
}
