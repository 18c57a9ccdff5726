package sweep

import (
	"context"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
	"gold-trading-bot/internal/strategy"
)

// confirmRejections watches the candles following each pending sweep. A
// close back through the swept level with a full-size body confirms the
// rejection instantly; two consecutive small closes beyond the level
// confirm it delayed. Price trading back through the level after a small
// close invalidates the sweep, and a sweep with no confirmation inside the
// lookahead fails.
func (p *Pipeline) confirmRejections(ctx context.Context, candles []market.Candle) error {
	sweeps, err := p.repo.GetPendingSweeps(ctx, p.symbol)
	if err != nil {
		return err
	}

	for _, sweep := range sweeps {
		after := strategy.CandlesAfter(candles, sweep.CandleTime.Unix(), RejectionLookahead)
		if len(after) == 0 {
			continue
		}
		atr := atrAtTime(candles, sweep.CandleTime.Unix())

		outcome, confirmCandle, confirmType := evaluateRejection(after, sweep, atr)
		switch outcome {
		case database.SweepStatusConfirmed:
			direction := database.DirectionBearish
			if sweep.Side == database.SweepSideSell {
				direction = database.DirectionBullish
			}
			event := &database.RejectionEvent{
				SweepEventID:   sweep.ID,
				Direction:      direction,
				ConfirmType:    confirmType,
				RejectionClose: confirmCandle.Close,
				CandleTime:     confirmCandle.Time,
			}
			if err := p.repo.CreateRejectionEvent(ctx, event); err != nil {
				return err
			}
			if err := p.repo.UpdateSweepStatus(ctx, sweep.ID, database.SweepStatusConfirmed); err != nil {
				return err
			}
			p.logger.Info().
				Int64("sweep_id", sweep.ID).
				Str("direction", direction).
				Str("confirm_type", confirmType).
				Float64("close", confirmCandle.Close).
				Msg("Rejection confirmed")

		case database.SweepStatusInvalidated:
			if err := p.repo.UpdateSweepStatus(ctx, sweep.ID, database.SweepStatusInvalidated); err != nil {
				return err
			}
			p.logger.Info().Int64("sweep_id", sweep.ID).Msg("Sweep invalidated")

		case database.SweepStatusExpired:
			if err := p.repo.UpdateSweepStatus(ctx, sweep.ID, database.SweepStatusExpired); err != nil {
				return err
			}
			p.logger.Debug().Int64("sweep_id", sweep.ID).Msg("Sweep expired without rejection")
		}
	}
	return nil
}

// evaluateRejection classifies the candles after a sweep. The returned
// outcome is empty while the sweep is still undecided.
func evaluateRejection(after []market.Candle, sweep *database.SweepEvent, atr float64) (outcome string, confirm market.Candle, confirmType string) {
	// rejected reports whether the close is back on the trade side of the level
	rejected := func(c market.Candle) bool {
		if sweep.Side == database.SweepSideBuy {
			return c.Close < sweep.SweepLevel
		}
		return c.Close > sweep.SweepLevel
	}
	// broken reports whether price traded back through the level
	broken := func(c market.Candle) bool {
		if sweep.Side == database.SweepSideBuy {
			return c.High > sweep.SweepLevel
		}
		return c.Low < sweep.SweepLevel
	}

	smallCloses := 0
	for _, c := range after {
		if rejected(c) {
			if atr > 0 && c.Body() >= MinRejectionBodyATR*atr {
				return database.SweepStatusConfirmed, c, database.ConfirmInstant
			}
			smallCloses++
			if smallCloses >= 2 {
				return database.SweepStatusConfirmed, c, database.ConfirmDelayed
			}
			continue
		}
		if smallCloses > 0 && broken(c) {
			return database.SweepStatusInvalidated, market.Candle{}, ""
		}
	}

	if len(after) >= RejectionLookahead {
		return database.SweepStatusExpired, market.Candle{}, ""
	}
	return "", market.Candle{}, ""
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
