package swingfib

import (
	"context"
	"fmt"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// buildSetups slides a window over the recent swings and prices a fib
// retracement whenever the window reads as a directional wave: both the
// highs and the lows stepping the same way. Windows that already produced
// a setup are absorbed by the dedup constraint.
func (p *Pipeline) buildSetups(ctx context.Context) error {
	swings, err := p.repo.GetRecentSwingPoints(ctx, p.symbol, p.timeframe, SwingHistoryLimit)
	if err != nil {
		return err
	}
	if len(swings) < WaveWindow {
		return nil
	}

	// repository returns newest first; wave analysis wants oldest first
	ordered := make([]*database.SwingPoint, len(swings))
	for i, s := range swings {
		ordered[len(swings)-1-i] = s
	}

	for start := 0; start+WaveWindow <= len(ordered); start++ {
		window := ordered[start : start+WaveWindow]
		setup := waveSetup(window)
		if setup == nil {
			continue
		}
		setup.Symbol = p.symbol
		setup.Timeframe = p.timeframe

		created, err := p.repo.CreateFibSetup(ctx, setup)
		if err != nil {
			return err
		}
		if created {
			p.logger.Info().
				Str("direction", setup.Direction).
				Float64("entry", setup.EntryPrice).
				Float64("fib_low", setup.FibLow).
				Float64("fib_high", setup.FibHigh).
				Msg("Major wave fib setup created")
		}
	}
	return nil
}

// waveSetup classifies one swing window and prices the retracement entry.
// Returns nil when the window is not directional.
func waveSetup(window []*database.SwingPoint) *database.FibSetup {
	var highs, lows []float64
	for _, s := range window {
		if s.SwingType == database.SwingTypeHigh {
			highs = append(highs, s.Price)
		} else {
			lows = append(lows, s.Price)
		}
	}
	if len(highs) < 2 || len(lows) < 2 {
		return nil
	}

	var direction string
	switch {
	case highs[len(highs)-1] > highs[0] && lows[len(lows)-1] > lows[0]:
		direction = database.DirectionBullish
	case highs[len(highs)-1] < highs[0] && lows[len(lows)-1] < lows[0]:
		direction = database.DirectionBearish
	default:
		return nil
	}

	fibHigh := highs[0]
	for _, h := range highs {
		if h > fibHigh {
			fibHigh = h
		}
	}
	fibLow := lows[0]
	for _, l := range lows {
		if l < fibLow {
			fibLow = l
		}
	}
	span := fibHigh - fibLow
	if span <= 0 {
		return nil
	}

	setup := &database.FibSetup{
		Direction:  direction,
		FibHigh:    fibHigh,
		FibLow:     fibLow,
		CandleTime: window[len(window)-1].CandleTime,
	}
	if direction == database.DirectionBullish {
		setup.EntryPrice = fibHigh - span*FibRetracement
		setup.StopLoss = fibLow
		setup.TakeProfit = fibHigh
	} else {
		setup.EntryPrice = fibLow + span*FibRetracement
		setup.StopLoss = fibHigh
		setup.TakeProfit = fibLow
	}
	return setup
}

// publishSignals turns pending fib setups into executable signals
func (p *Pipeline) publishSignals(ctx context.Context) error {
	setups, err := p.repo.GetPendingFibSetups(ctx, p.symbol)
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
			Comment:    "Major Wave Fib",
			Message:    fmt.Sprintf("Entry from fib setup ID %d. Expired 0.1 days", setup.ID),
			Risk:       abs(setup.EntryPrice - setup.StopLoss),
			Reward:     abs(setup.TakeProfit - setup.EntryPrice),
		}
		if err := p.repo.CreateSignal(ctx, signal); err != nil {
			return err
		}
		if err := p.repo.UpdateFibSetupStatus(ctx, setup.ID, database.SetupStatusProcessed); err != nil {
			return err
		}
		p.logger.Info().
			Int64("signal_id", signal.ID).
			Str("action", action).
			Float64("entry", setup.EntryPrice).
			Msg("Fib signal published")
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
