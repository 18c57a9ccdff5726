package bosfvg

import (
	"context"
	"fmt"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
	"gold-trading-bot/internal/strategy"
)

// priceEntries converts pending retraces into fully priced entry setups.
// The entry is the mitigation close; the stop sits one ATR beyond the far
// edge of the gap and the target mirrors the stop distance.
func (p *Pipeline) priceEntries(ctx context.Context, candles []market.Candle) error {
	retraces, err := p.repo.GetPendingRetraces(ctx)
	if err != nil {
		return err
	}

	for _, retrace := range retraces {
		zone, err := p.repo.GetFVGZoneByID(ctx, retrace.FVGZoneID)
		if err != nil {
			return err
		}

		atr := atrAtTime(candles, retrace.CandleTime.Unix())
		if atr <= 0 {
			continue
		}

		entry := retrace.RetracePrice
		var sl, tp float64
		if retrace.Direction == database.DirectionBullish {
			sl = zone.GapLow - atr
			tp = entry + (entry-sl)*RiskRewardRatio
		} else {
			sl = zone.GapHigh + atr
			tp = entry - (sl-entry)*RiskRewardRatio
		}

		setup := &database.EntrySetup{
			RetraceID:  retrace.ID,
			Direction:  retrace.Direction,
			EntryPrice: entry,
			StopLoss:   sl,
			TakeProfit: tp,
			ATR:        atr,
			RiskReward: RiskRewardRatio,
			CandleTime: retrace.CandleTime,
		}
		if err := p.repo.CreateEntrySetup(ctx, setup); err != nil {
			return err
		}
		if err := p.repo.UpdateRetraceEntryStatus(ctx, retrace.ID, database.SetupStatusProcessed); err != nil {
			return err
		}
		p.logger.Info().
			Int64("retrace_id", retrace.ID).
			Str("direction", retrace.Direction).
			Float64("entry", entry).
			Float64("sl", sl).
			Float64("tp", tp).
			Msg("Entry setup priced")
	}
	return nil
}

// atrAtTime computes the ATR using only candles up to and including t
func atrAtTime(candles []market.Candle, t int64) float64 {
	last := -1
	for i, c := range candles {
		if c.Time.Unix() <= t {
			last = i
		}
	}
	return strategy.ATRAt(candles, last, strategy.DefaultATRPeriod)
}

// publishSignals turns pending entry setups into executable signals
func (p *Pipeline) publishSignals(ctx context.Context) error {
	setups, err := p.repo.GetPendingEntrySetups(ctx)
	if err != nil {
		return err
	}

	for _, setup := range setups {
		action := market.SideBuy
		if setup.Direction == database.DirectionBearish {
			action = market.SideSell
		}

		signal := &database.Signal{
			Instrument: p.symbol,
			Action:     action,
			Range1:     setup.EntryPrice,
			Range2:     setup.EntryPrice,
			TP1:        setup.TakeProfit,
			TP2:        setup.TakeProfit,
			SL:         setup.StopLoss,
			Comment:    "BOS FVG Retrace (ATR-based)",
			Message:    fmt.Sprintf("Entry from retrace trade ID %d. Expired 0.1 days", setup.RetraceID),
			Risk:       abs(setup.EntryPrice - setup.StopLoss),
			Reward:     abs(setup.TakeProfit - setup.EntryPrice),
		}
		if err := p.repo.CreateSignal(ctx, signal); err != nil {
			return err
		}
		if err := p.repo.UpdateEntrySetupStatus(ctx, setup.ID, database.SetupStatusProcessed); err != nil {
			return err
		}
		p.logger.Info().
			Int64("signal_id", signal.ID).
			Str("action", action).
			Float64("entry", setup.EntryPrice).
			Msg("Signal published")
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
