package sweep

import (
	"context"
	"errors"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
	"gold-trading-bot/internal/strategy"
)

// refreshContext builds a fresh market context when none exists, when a new
// structural extreme has printed, or when the active context has aged out.
// Contexts are append-only; the latest row wins.
func (p *Pipeline) refreshContext(ctx context.Context, candles []market.Candle) error {
	structural, err := p.data.Candles(ctx, p.symbol, market.TimeframeH1, StructureFetchLimit)
	if err != nil {
		return err
	}

	highIdx := strategy.ConfirmedSwingHigh(structural, ConfirmBars)
	lowIdx := strategy.ConfirmedSwingLow(structural, ConfirmBars)
	if highIdx < 0 || lowIdx < 0 {
		p.logger.Debug().Msg("No confirmed swings yet, keeping current context")
		return nil
	}
	recentHigh := structural[highIdx].High
	recentLow := structural[lowIdx].Low

	last, err := p.repo.GetLatestMarketContext(ctx, p.symbol, p.timeframe)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return err
	}
	if last != nil {
		fresh := recentHigh > last.RecentHigh ||
			recentLow < last.RecentLow ||
			p.now().Sub(last.CreatedAt) > ContextMaxAge
		if !fresh {
			return nil
		}
	}

	h4, err := p.data.Candles(ctx, p.symbol, market.TimeframeH4, 10)
	if err != nil {
		return err
	}
	daily, err := p.data.Candles(ctx, p.symbol, market.TimeframeD1, 5)
	if err != nil {
		return err
	}
	pdHigh, pdLow, pdClose, _ := strategy.PreviousDayLevels(daily)

	mc := &database.MarketContext{
		Symbol:         p.symbol,
		Timeframe:      p.timeframe,
		RecentHigh:     recentHigh,
		RecentLow:      recentLow,
		RecentHighTime: structural[highIdx].Time,
		RecentLowTime:  structural[lowIdx].Time,
		PrevDayHigh:    pdHigh,
		PrevDayLow:     pdLow,
		PrevDayClose:   pdClose,
		H4Bias:         strategy.HigherTimeframeBias(h4),
		// only candles after context creation can sweep it
		LastProcessedTime: candles[len(candles)-1].Time,
	}
	if err := p.repo.CreateMarketContext(ctx, mc); err != nil {
		return err
	}

	p.logger.Info().
		Float64("recent_high", recentHigh).
		Float64("recent_low", recentLow).
		Str("h4_bias", mc.H4Bias).
		Msg("Market context refreshed")
	return nil
}
