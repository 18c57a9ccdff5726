package bosfvg

import (
	"context"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
	"gold-trading-bot/internal/strategy"
)

// scanGaps looks for a fair value gap in the candles following each open
// BOS event. A bullish gap is a three-candle pattern where the first high
// never overlaps the third low; bearish is the mirror. Events with no gap
// after MaxScanCandles are closed.
func (p *Pipeline) scanGaps(ctx context.Context, candles []market.Candle) error {
	events, err := p.repo.GetOpenBOSEvents(ctx, p.symbol, p.timeframe)
	if err != nil {
		return err
	}

	for _, event := range events {
		after := strategy.CandlesAfter(candles, event.CandleTime.Unix(), MaxScanCandles)
		if len(after) < MinScanCandles {
			continue
		}

		if event.FVGStatus == database.StageStatusPending {
			if err := p.repo.UpdateBOSFVGStatus(ctx, event.ID, database.StageStatusScanning); err != nil {
				return err
			}
		}

		gapLow, gapHigh, gapIdx, found := findGap(after, event.Direction)
		if found {
			zone := &database.FVGZone{
				BOSEventID: event.ID,
				Symbol:     p.symbol,
				Timeframe:  p.timeframe,
				Direction:  event.Direction,
				GapLow:     gapLow,
				GapHigh:    gapHigh,
				CandleTime: after[gapIdx+2].Time,
			}
			if err := p.repo.CreateFVGZone(ctx, zone); err != nil {
				return err
			}
			if err := p.repo.UpdateBOSFVGStatus(ctx, event.ID, database.StageStatusFound); err != nil {
				return err
			}
			p.logger.Info().
				Int64("bos_event_id", event.ID).
				Str("direction", event.Direction).
				Float64("gap_low", gapLow).
				Float64("gap_high", gapHigh).
				Msg("Fair value gap found")
			continue
		}

		if len(after) >= MaxScanCandles {
			if err := p.repo.UpdateBOSFVGStatus(ctx, event.ID, database.StageStatusNotFound); err != nil {
				return err
			}
			p.logger.Debug().Int64("bos_event_id", event.ID).Msg("No gap within scan window")
		}
	}
	return nil
}

// findGap returns the first gap in the given direction, scanning candle
// triples oldest first.
func findGap(candles []market.Candle, direction string) (gapLow, gapHigh float64, idx int, found bool) {
	for i := 0; i+2 < len(candles); i++ {
		c0, c2 := candles[i], candles[i+2]
		if direction == database.DirectionBullish && c0.High < c2.Low {
			return c0.High, c2.Low, i, true
		}
		if direction == database.DirectionBearish && c0.Low > c2.High {
			return c2.High, c0.Low, i, true
		}
	}
	return 0, 0, 0, false
}

// scanRetraces checks each open gap for mitigation: a bullish gap is
// mitigated when a later candle's low reaches down into it, a bearish gap
// when a high reaches up. Gaps untouched after RetraceExpiryCandles expire.
func (p *Pipeline) scanRetraces(ctx context.Context, candles []market.Candle) error {
	zones, err := p.repo.GetOpenFVGZones(ctx, p.symbol, p.timeframe)
	if err != nil {
		return err
	}

	for _, zone := range zones {
		after := strategy.CandlesAfter(candles, zone.CandleTime.Unix(), RetraceExpiryCandles)
		if len(after) == 0 {
			continue
		}

		if zone.RetraceStatus == database.StageStatusPending {
			if err := p.repo.UpdateFVGRetraceStatus(ctx, zone.ID, database.StageStatusScanning); err != nil {
				return err
			}
		}

		mitigated := false
		for _, c := range after {
			if zone.Direction == database.DirectionBullish && c.Low <= zone.GapHigh {
				mitigated = true
			}
			if zone.Direction == database.DirectionBearish && c.High >= zone.GapLow {
				mitigated = true
			}
			if !mitigated {
				continue
			}

			event := &database.RetraceEvent{
				FVGZoneID:    zone.ID,
				Direction:    zone.Direction,
				RetracePrice: c.Close,
				CandleTime:   c.Time,
			}
			if err := p.repo.CreateRetraceEvent(ctx, event); err != nil {
				return err
			}
			if err := p.repo.UpdateFVGRetraceStatus(ctx, zone.ID, database.StageStatusFound); err != nil {
				return err
			}
			p.logger.Info().
				Int64("fvg_zone_id", zone.ID).
				Str("direction", zone.Direction).
				Float64("retrace_price", c.Close).
				Msg("Gap mitigated")
			break
		}
		if mitigated {
			continue
		}

		if len(after) >= RetraceExpiryCandles {
			if err := p.repo.UpdateFVGRetraceStatus(ctx, zone.ID, database.StageStatusNotFound); err != nil {
				return err
			}
			p.logger.Debug().Int64("fvg_zone_id", zone.ID).Msg("Gap expired without mitigation")
		}
	}
	return nil
}
