package bosfvg

import (
	"context"
	"time"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
	"gold-trading-bot/internal/strategy"
)

// swingWindow is the confirmation window for strict-mode swings
const swingWindow = 3

// detectStructure finds break-of-structure events in the candle history and
// records the new ones. The database dedup constraint makes rescanning the
// same history a no-op.
func (p *Pipeline) detectStructure(ctx context.Context, candles []market.Candle) error {
	var events []*database.BOSEvent
	if p.mode == ModeStrict {
		events = p.detectStrict(candles)
	} else {
		events = p.detectLoose(candles)
	}

	for _, event := range events {
		created, err := p.repo.CreateBOSEvent(ctx, event)
		if err != nil {
			return err
		}
		if created {
			p.logger.Info().
				Str("direction", event.Direction).
				Float64("break_level", event.BreakLevel).
				Time("candle_time", event.CandleTime).
				Msg("Break of structure detected")
		}
	}
	return nil
}

// detectLoose flags a BOS whenever a close breaks the previous candle's
// extreme.
func (p *Pipeline) detectLoose(candles []market.Candle) []*database.BOSEvent {
	var events []*database.BOSEvent
	for i := 1; i < len(candles); i++ {
		prev, curr := candles[i-1], candles[i]
		switch {
		case curr.Close > prev.High:
			events = append(events, p.newEvent(database.DirectionBullish, prev.High, curr.Time))
		case curr.Close < prev.Low:
			events = append(events, p.newEvent(database.DirectionBearish, prev.Low, curr.Time))
		}
	}
	return events
}

// detectStrict tracks confirmed swing structure and flags a BOS only when a
// close breaks the most recent confirmed swing extreme against the current
// trend, flipping the trend each time.
func (p *Pipeline) detectStrict(candles []market.Candle) []*database.BOSEvent {
	highIdx := strategy.SwingHighs(candles, swingWindow)
	lowIdx := strategy.SwingLows(candles, swingWindow)

	var events []*database.BOSEvent
	var trend string
	hi, lo := 0, 0
	lastHigh, lastLow := -1, -1

	for i := 1; i < len(candles); i++ {
		// a swing is only usable once its confirmation window has passed
		for hi < len(highIdx) && highIdx[hi]+swingWindow < i {
			lastHigh = highIdx[hi]
			hi++
		}
		for lo < len(lowIdx) && lowIdx[lo]+swingWindow < i {
			lastLow = lowIdx[lo]
			lo++
		}

		if lastHigh >= 0 && trend != database.DirectionBullish && candles[i].Close > candles[lastHigh].High {
			events = append(events, p.newEvent(database.DirectionBullish, candles[lastHigh].High, candles[i].Time))
			trend = database.DirectionBullish
			continue
		}
		if lastLow >= 0 && trend != database.DirectionBearish && candles[i].Close < candles[lastLow].Low {
			events = append(events, p.newEvent(database.DirectionBearish, candles[lastLow].Low, candles[i].Time))
			trend = database.DirectionBearish
		}
	}
	return events
}

func (p *Pipeline) newEvent(direction string, breakLevel float64, candleTime time.Time) *database.BOSEvent {
	return &database.BOSEvent{
		Symbol:     p.symbol,
		Timeframe:  p.timeframe,
		Direction:  direction,
		BreakLevel: breakLevel,
		CandleTime: candleTime,
		FVGStatus:  database.StageStatusPending,
	}
}
