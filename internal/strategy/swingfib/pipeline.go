// Package swingfib implements the major-wave fibonacci pipeline: record
// confirmed swing points with a power score, read the trend from a sliding
// window of recent swings and price a 61.8% retracement entry on the wave.
package swingfib

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// Pipeline tuning constants
const (
	// CandleFetchLimit is the working-timeframe history per cycle
	CandleFetchLimit = 300

	// SwingWindow is the confirmation window on each side of a swing
	SwingWindow = 3

	// WaveWindow is how many consecutive swings form one wave reading
	WaveWindow = 9

	// SwingHistoryLimit bounds how many stored swings a cycle considers
	SwingHistoryLimit = 50

	// FibRetracement places the entry inside the wave
	FibRetracement = 0.618
)

// Repository is the persistence surface the pipeline needs
type Repository interface {
	CreateSwingPoint(ctx context.Context, swing *database.SwingPoint) (bool, error)
	GetRecentSwingPoints(ctx context.Context, symbol, timeframe string, limit int) ([]*database.SwingPoint, error)

	CreateFibSetup(ctx context.Context, setup *database.FibSetup) (bool, error)
	GetPendingFibSetups(ctx context.Context, symbol string) ([]*database.FibSetup, error)
	UpdateFibSetupStatus(ctx context.Context, id int64, status string) error

	CreateSignal(ctx context.Context, signal *database.Signal) error
}

// Pipeline runs swing recording, wave analysis and signal publication
type Pipeline struct {
	repo      Repository
	data      market.DataGateway
	logger    zerolog.Logger
	symbol    string
	timeframe string
	interval  time.Duration
}

// New creates the pipeline
func New(repo Repository, data market.DataGateway, logger zerolog.Logger, symbol, timeframe string, interval time.Duration) *Pipeline {
	return &Pipeline{
		repo:      repo,
		data:      data,
		logger:    logger.With().Str("component", "SwingFibPipeline").Logger(),
		symbol:    symbol,
		timeframe: timeframe,
		interval:  interval,
	}
}

func (p *Pipeline) Name() string            { return "swing_fib_pipeline" }
func (p *Pipeline) Description() string     { return "Swing structure and major-wave fib entries" }
func (p *Pipeline) Interval() time.Duration { return p.interval }

// RunOnce executes one full cycle
func (p *Pipeline) RunOnce(ctx context.Context) error {
	candles, err := p.data.Candles(ctx, p.symbol, p.timeframe, CandleFetchLimit)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) < 2*SwingWindow+1 {
		return nil
	}

	if err := p.recordSwings(ctx, candles); err != nil {
		return fmt.Errorf("swing stage: %w", err)
	}
	if err := p.buildSetups(ctx); err != nil {
		return fmt.Errorf("wave stage: %w", err)
	}
	if err := p.publishSignals(ctx); err != nil {
		return fmt.Errorf("signal stage: %w", err)
	}
	return nil
}
