package swingfib

import (
	"context"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
	"gold-trading-bot/internal/strategy"
)

// recordSwings stores every confirmed swing in the candle history. A swing
// counts as discovered when its confirmation window closes, not when the
// swing candle printed. Rescanning is a no-op through the dedup constraint.
func (p *Pipeline) recordSwings(ctx context.Context, candles []market.Candle) error {
	for _, i := range strategy.SwingHighs(candles, SwingWindow) {
		swing := &database.SwingPoint{
			Symbol:       p.symbol,
			Timeframe:    p.timeframe,
			SwingType:    database.SwingTypeHigh,
			Price:        candles[i].High,
			CandleTime:   candles[i].Time,
			DiscoveredAt: candles[i+SwingWindow].Time,
			PowerScore:   strategy.PowerScore(candles, i, database.SwingTypeHigh),
		}
		if err := p.saveSwing(ctx, swing); err != nil {
			return err
		}
	}
	for _, i := range strategy.SwingLows(candles, SwingWindow) {
		swing := &database.SwingPoint{
			Symbol:       p.symbol,
			Timeframe:    p.timeframe,
			SwingType:    database.SwingTypeLow,
			Price:        candles[i].Low,
			CandleTime:   candles[i].Time,
			DiscoveredAt: candles[i+SwingWindow].Time,
			PowerScore:   strategy.PowerScore(candles, i, database.SwingTypeLow),
		}
		if err := p.saveSwing(ctx, swing); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) saveSwing(ctx context.Context, swing *database.SwingPoint) error {
	created, err := p.repo.CreateSwingPoint(ctx, swing)
	if err != nil {
		return err
	}
	if created {
		p.logger.Info().
			Str("swing_type", swing.SwingType).
			Float64("price", swing.Price).
			Float64("power", swing.PowerScore).
			Time("candle_time", swing.CandleTime).
			Msg("Swing point confirmed")
	}
	return nil
}
