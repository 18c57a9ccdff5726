package sweep

import (
	"context"
	"errors"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// detectSweeps walks the candles the active context has not seen yet and
// records a sweep the first time price trades through an unswept extreme.
// The processed-time watermark always advances, sweep or not.
func (p *Pipeline) detectSweeps(ctx context.Context, candles []market.Candle) error {
	mc, err := p.repo.GetLatestMarketContext(ctx, p.symbol, p.timeframe)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	lastSeen := mc.LastProcessedTime
	for _, c := range candles {
		if !c.Time.After(mc.LastProcessedTime) {
			continue
		}
		if c.Time.After(lastSeen) {
			lastSeen = c.Time
		}

		if !mc.SweptHigh && c.High > mc.RecentHigh {
			if err := p.recordSweep(ctx, mc, database.SweepSideBuy, mc.RecentHigh, c.High, c); err != nil {
				return err
			}
			mc.SweptHigh = true
		}
		if !mc.SweptLow && c.Low < mc.RecentLow {
			if err := p.recordSweep(ctx, mc, database.SweepSideSell, mc.RecentLow, c.Low, c); err != nil {
				return err
			}
			mc.SweptLow = true
		}
	}

	if lastSeen.After(mc.LastProcessedTime) {
		return p.repo.UpdateContextProcessedTime(ctx, mc.ID, lastSeen)
	}
	return nil
}

func (p *Pipeline) recordSweep(ctx context.Context, mc *database.MarketContext, side string, level, extreme float64, c market.Candle) error {
	event := &database.SweepEvent{
		ContextID:  mc.ID,
		Symbol:     p.symbol,
		Side:       side,
		SweepLevel: level,
		Extreme:    extreme,
		CandleTime: c.Time,
	}
	created, err := p.repo.CreateSweepEvent(ctx, event)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if err := p.repo.MarkContextSwept(ctx, mc.ID, side); err != nil {
		return err
	}
	p.logger.Info().
		Str("side", side).
		Float64("level", level).
		Float64("extreme", extreme).
		Time("candle_time", c.Time).
		Msg("Liquidity sweep detected")
	return nil
}
