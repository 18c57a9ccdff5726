package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/market"
)

// minImprovementPoints is the smallest stop move worth sending, in points
const minImprovementPoints = 10

// TrailingService walks open positions and steps their stop losses behind
// the price. The stop only ever tightens: it moves in whole steps once the
// position is past the activation distance, sits a breathing buffer behind
// the step line and respects the broker's minimum stop distance.
type TrailingService struct {
	gateway  market.Gateway
	logger   zerolog.Logger
	symbol   string
	step     float64
	start    float64
	buffer   float64
	dryRun   bool
	interval time.Duration
}

// NewTrailingService creates the trailing stop service
func NewTrailingService(gateway market.Gateway, logger zerolog.Logger, symbol string, step, start, buffer float64, dryRun bool, interval time.Duration) *TrailingService {
	return &TrailingService{
		gateway:  gateway,
		logger:   logger.With().Str("component", "TrailingStop").Logger(),
		symbol:   symbol,
		step:     step,
		start:    start,
		buffer:   buffer,
		dryRun:   dryRun,
		interval: interval,
	}
}

func (s *TrailingService) Name() string            { return "trailing_stop" }
func (s *TrailingService) Description() string     { return "Steps stop losses behind price" }
func (s *TrailingService) Interval() time.Duration { return s.interval }

// RunOnce adjusts every open position once
func (s *TrailingService) RunOnce(ctx context.Context) error {
	positions, err := s.gateway.Positions(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	quote, err := s.gateway.Quote(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("fetch quote: %w", err)
	}
	info, err := s.gateway.SymbolInfo(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("fetch symbol info: %w", err)
	}

	for _, pos := range positions {
		price := quote.Bid
		if pos.Side == market.SideSell {
			price = quote.Ask
		}

		newSL, ok := s.nextStop(pos, price, info.MinStopDistance(), info.Point)
		if !ok {
			continue
		}

		if s.dryRun {
			s.logger.Info().
				Int64("ticket", pos.Ticket).
				Float64("current_sl", pos.StopLoss).
				Float64("new_sl", newSL).
				Msg("Dry run: would move stop")
			continue
		}

		if err := s.gateway.ModifyStopLoss(ctx, pos.Ticket, newSL, 0); err != nil {
			s.logger.Error().Err(err).Int64("ticket", pos.Ticket).Msg("Stop modification failed")
			continue
		}
		s.logger.Info().
			Int64("ticket", pos.Ticket).
			Float64("old_sl", pos.StopLoss).
			Float64("new_sl", newSL).
			Float64("price", price).
			Msg("Stop moved")
	}
	return nil
}

// nextStop computes the tightened stop for one position, or ok=false when
// the stop should stay put.
func (s *TrailingService) nextStop(pos market.Position, price, minStopDistance, point float64) (float64, bool) {
	var move float64
	if pos.Side == market.SideBuy {
		move = price - pos.PriceOpen
	} else {
		move = pos.PriceOpen - price
	}
	if move < s.start {
		return 0, false
	}

	steps := float64(int(move / s.step))

	var newSL float64
	if pos.Side == market.SideBuy {
		newSL = pos.PriceOpen + steps*s.step - s.buffer
		if maxAllowed := price - minStopDistance; newSL > maxAllowed {
			newSL = maxAllowed
		}
		if pos.StopLoss != 0 && newSL-pos.StopLoss < float64(minImprovementPoints)*point {
			return 0, false
		}
	} else {
		newSL = pos.PriceOpen - steps*s.step + s.buffer
		if minAllowed := price + minStopDistance; newSL < minAllowed {
			newSL = minAllowed
		}
		if pos.StopLoss != 0 && pos.StopLoss-newSL < float64(minImprovementPoints)*point {
			return 0, false
		}
	}
	return newSL, true
}
