// Package sweep implements the liquidity sweep pipeline: maintain a
// structural market context (confirmed swing extremes, previous-day levels,
// higher-timeframe bias), detect sweeps of those extremes, confirm the
// rejection back through the swept level and publish the resulting signals.
package sweep

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

	// StructureFetchLimit is the H1 history used for confirmed swings
	StructureFetchLimit = 200

	// ConfirmBars is the swing confirmation window on each side
	ConfirmBars = 3

	// RejectionLookahead bounds how many candles a sweep waits for its
	// rejection before failing.
	RejectionLookahead = 3

	// MinRejectionBodyATR is the body size, in ATR multiples, that
	// confirms a rejection instantly.
	MinRejectionBodyATR = 0.8

	// RiskReward prices the first take profit off the stop distance
	RiskReward = 2.0

	// ContextMaxAge forces a context rebuild even without new extremes
	ContextMaxAge = 72 * time.Hour
)

// Repository is the persistence surface the pipeline needs
type Repository interface {
	CreateMarketContext(ctx context.Context, mc *database.MarketContext) error
	GetLatestMarketContext(ctx context.Context, symbol, timeframe string) (*database.MarketContext, error)
	GetMarketContextByID(ctx context.Context, id int64) (*database.MarketContext, error)
	MarkContextSwept(ctx context.Context, id int64, side string) error
	UpdateContextProcessedTime(ctx context.Context, id int64, t time.Time) error

	CreateSweepEvent(ctx context.Context, event *database.SweepEvent) (bool, error)
	GetPendingSweeps(ctx context.Context, symbol string) ([]*database.SweepEvent, error)
	UpdateSweepStatus(ctx context.Context, id int64, status string) error
	GetSweepEventByID(ctx context.Context, id int64) (*database.SweepEvent, error)

	CreateRejectionEvent(ctx context.Context, event *database.RejectionEvent) error
	GetPendingRejections(ctx context.Context) ([]*database.RejectionEvent, error)
	UpdateRejectionStatus(ctx context.Context, id int64, status string) error

	CreateSignal(ctx context.Context, signal *database.Signal) error
}

// Pipeline runs context, sweep, rejection and setup stages each cycle
type Pipeline struct {
	repo      Repository
	data      market.DataGateway
	logger    zerolog.Logger
	symbol    string
	timeframe string
	interval  time.Duration
	now       func() time.Time
}

// New creates the pipeline
func New(repo Repository, data market.DataGateway, logger zerolog.Logger, symbol, timeframe string, interval time.Duration) *Pipeline {
	return &Pipeline{
		repo:      repo,
		data:      data,
		logger:    logger.With().Str("component", "SweepPipeline").Logger(),
		symbol:    symbol,
		timeframe: timeframe,
		interval:  interval,
		now:       time.Now,
	}
}

func (p *Pipeline) Name() string            { return "sweep_pipeline" }
func (p *Pipeline) Description() string     { return "Liquidity sweep and rejection detection" }
func (p *Pipeline) Interval() time.Duration { return p.interval }

// RunOnce executes one full cycle
func (p *Pipeline) RunOnce(ctx context.Context) error {
	candles, err := p.data.Candles(ctx, p.symbol, p.timeframe, CandleFetchLimit)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) == 0 {
		return nil
	}

	if err := p.refreshContext(ctx, candles); err != nil {
		return fmt.Errorf("context stage: %w", err)
	}
	if err := p.detectSweeps(ctx, candles); err != nil {
		return fmt.Errorf("sweep stage: %w", err)
	}
	if err := p.confirmRejections(ctx, candles); err != nil {
		return fmt.Errorf("rejection stage: %w", err)
	}
	if err := p.publishSetups(ctx, candles); err != nil {
		return fmt.Errorf("setup stage: %w", err)
	}
	return nil
}
