package sweep

import (
	"context"
	"fmt"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// publishSetups prices each confirmed rejection and publishes the signal.
// The entry is the rejection close, the stop sits one ATR beyond the swept
// level, the first target mirrors the stop at 2R and the runner targets the
// opposite context extreme.
func (p *Pipeline) publishSetups(ctx context.Context, candles []market.Candle) error {
	rejections, err := p.repo.GetPendingRejections(ctx)
	if err != nil {
		return err
	}

	for _, rejection := range rejections {
		sweep, err := p.repo.GetSweepEventByID(ctx, rejection.SweepEventID)
		if err != nil {
			return err
		}
		mc, err := p.repo.GetMarketContextByID(ctx, sweep.ContextID)
		if err != nil {
			return err
		}

		atr := atrAtTime(candles, rejection.CandleTime.Unix())
		if atr <= 0 {
			continue
		}

		entry := rejection.RejectionClose
		var sl, tp1, tp2 float64
		var action string
		if rejection.Direction == database.DirectionBullish {
			action = market.SideBuy
			sl = sweep.SweepLevel - atr
			tp1 = entry + (entry-sl)*RiskReward
			tp2 = mc.RecentHigh
		} else {
			action = market.SideSell
			sl = sweep.SweepLevel + atr
			tp1 = entry - (sl-entry)*RiskReward
			tp2 = mc.RecentLow
		}

		signal := &database.Signal{
			Instrument: p.symbol,
			Action:     action,
			Range1:     entry,
			Range2:     entry,
			TP1:        tp1,
			TP2:        tp2,
			SL:         sl,
			Comment:    "Liquidity Sweep Rejection",
			Message:    fmt.Sprintf("Entry from rejection trade ID %d. Expired 0.1 days", rejection.ID),
			Risk:       abs(entry - sl),
			Reward:     abs(tp1 - entry),
		}
		if err := p.repo.CreateSignal(ctx, signal); err != nil {
			return err
		}
		if err := p.repo.UpdateRejectionStatus(ctx, rejection.ID, database.SetupStatusProcessed); err != nil {
			return err
		}
		p.logger.Info().
			Int64("signal_id", signal.ID).
			Str("action", action).
			Float64("entry", entry).
			Float64("sl", sl).
			Float64("tp1", tp1).
			Float64("tp2", tp2).
			Msg("Sweep rejection signal published")
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
