// Package strategy holds the indicator math and candle analysis shared by
// the staged strategy pipelines.
package strategy

import (
	"math"

	"gold-trading-bot/internal/market"
)

// DefaultATRPeriod is the ATR window used across the pipelines
const DefaultATRPeriod = 14

// TrueRange returns the true range of candle i relative to the prior close.
// For the first candle the range is simply high-low.
func TrueRange(candles []market.Candle, i int) float64 {
	c := candles[i]
	tr := c.High - c.Low
	if i == 0 {
		return tr
	}
	prevClose := candles[i-1].Close
	if d := math.Abs(c.High - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(c.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}

// ATRAt returns the average true range at index i, averaging up to period
// true ranges ending at i. Fewer candles shrink the window instead of
// returning zero.
func ATRAt(candles []market.Candle, i, period int) float64 {
	if i < 0 || i >= len(candles) || period <= 0 {
		return 0
	}
	start := i - period + 1
	if start < 0 {
		start = 0
	}
	var sum float64
	for j := start; j <= i; j++ {
		sum += TrueRange(candles, j)
	}
	return sum / float64(i-start+1)
}

// ATR returns the average true range over the last period candles
func ATR(candles []market.Candle, period int) float64 {
	return ATRAt(candles, len(candles)-1, period)
}

// SwingHighs returns the indices of strict swing highs: candles whose high
// is not exceeded anywhere in the surrounding window on either side.
func SwingHighs(candles []market.Candle, window int) []int {
	var out []int
	for i := window; i < len(candles)-window; i++ {
		if isWindowMax(candles, i, window) {
			out = append(out, i)
		}
	}
	return out
}

// SwingLows returns the indices of strict swing lows
func SwingLows(candles []market.Candle, window int) []int {
	var out []int
	for i := window; i < len(candles)-window; i++ {
		if isWindowMin(candles, i, window) {
			out = append(out, i)
		}
	}
	return out
}

func isWindowMax(candles []market.Candle, i, window int) bool {
	for j := i - window; j <= i+window; j++ {
		if j != i && candles[j].High > candles[i].High {
			return false
		}
	}
	return true
}

func isWindowMin(candles []market.Candle, i, window int) bool {
	for j := i - window; j <= i+window; j++ {
		if j != i && candles[j].Low < candles[i].Low {
			return false
		}
	}
	return true
}

// PowerScore rates a swing by range expansion, momentum and how far it
// pushed past the recent extreme. Clamped to [0.5, 5.0]; a degenerate
// window scores 1.0.
func PowerScore(candles []market.Candle, idx int, swingType string) float64 {
	const lookback = 10

	start := idx - lookback + 1
	if start < 0 {
		start = 0
	}
	var avgRange float64
	for j := start; j <= idx; j++ {
		avgRange += candles[j].High - candles[j].Low
	}
	avgRange /= float64(idx - start + 1)
	if avgRange <= 0 {
		return 1.0
	}

	currRange := candles[idx].High - candles[idx].Low

	momIdx := idx - 3
	if momIdx < 0 {
		momIdx = 0
	}
	momentum := math.Abs(candles[idx].Close-candles[momIdx].Close) / avgRange

	extStart := idx - lookback
	if extStart < 0 {
		extStart = 0
	}
	var extremity float64
	if swingType == "high" {
		prevExtreme := math.Inf(-1)
		for j := extStart; j < idx; j++ {
			if candles[j].High > prevExtreme {
				prevExtreme = candles[j].High
			}
		}
		if !math.IsInf(prevExtreme, -1) {
			extremity = (candles[idx].High - prevExtreme) / avgRange
		}
	} else {
		prevExtreme := math.Inf(1)
		for j := extStart; j < idx; j++ {
			if candles[j].Low < prevExtreme {
				prevExtreme = candles[j].Low
			}
		}
		if !math.IsInf(prevExtreme, 1) {
			extremity = (prevExtreme - candles[idx].Low) / avgRange
		}
	}

	power := 0.5 + (currRange/avgRange)*0.3 + momentum*0.3 + extremity*0.4
	return math.Round(math.Max(0.5, math.Min(power, 5.0))*100) / 100
}

// ConfirmedSwingHigh finds the most recent swing high that has confirmBars
// candles on each side not exceeding it, skipping swings inside the last
// confirmBars+1 candles because they can still be invalidated. Returns the
// index, or -1 when no confirmed swing exists.
func ConfirmedSwingHigh(candles []market.Candle, confirmBars int) int {
	cutoff := len(candles) - confirmBars - 1
	for i := cutoff - 1; i >= confirmBars; i-- {
		if isWindowMax(candles, i, confirmBars) {
			return i
		}
	}
	return -1
}

// ConfirmedSwingLow finds the most recent confirmed swing low, or -1
func ConfirmedSwingLow(candles []market.Candle, confirmBars int) int {
	cutoff := len(candles) - confirmBars - 1
	for i := cutoff - 1; i >= confirmBars; i-- {
		if isWindowMin(candles, i, confirmBars) {
			return i
		}
	}
	return -1
}

// HigherTimeframeBias compares the latest close with the close four candles
// earlier and returns bullish, bearish or neutral.
func HigherTimeframeBias(candles []market.Candle) string {
	if len(candles) < 5 {
		return "neutral"
	}
	last := candles[len(candles)-1].Close
	ref := candles[len(candles)-5].Close
	switch {
	case last > ref:
		return "bullish"
	case last < ref:
		return "bearish"
	default:
		return "neutral"
	}
}

// PreviousDayLevels extracts the previous day's high, low and close from
// daily candles. The last candle is assumed to be the current (still
// forming) day; the one before it is the previous day. Returns ok=false
// when fewer than two candles are available.
func PreviousDayLevels(daily []market.Candle) (high, low, close float64, ok bool) {
	if len(daily) < 2 {
		return 0, 0, 0, false
	}
	prev := daily[len(daily)-2]
	return prev.High, prev.Low, prev.Close, true
}

// CandlesAfter returns up to n candles strictly after t, oldest first
func CandlesAfter(candles []market.Candle, t int64, n int) []market.Candle {
	var out []market.Candle
	for _, c := range candles {
		if c.Time.Unix() > t {
			out = append(out, c)
			if len(out) == n {
				break
			}
		}
	}
	return out
}
