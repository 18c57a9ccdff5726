// Package bosfvg implements the staged break-of-structure pipeline: detect a
// BOS, scan for the fair value gap it leaves behind, wait for price to
// retrace into the gap, price an ATR-based entry and publish the signal.
// Every stage persists its findings so a restart resumes where it left off.
package bosfvg

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
	// CandleFetchLimit is how much history each cycle works from
	CandleFetchLimit = 300

	// MaxScanCandles bounds the FVG scan after a BOS; past this the
	// event is closed as not_found.
	MaxScanCandles = 15

	// MinScanCandles is the least candles needed before the first FVG check
	MinScanCandles = 3

	// RetraceExpiryCandles bounds how long a gap waits for mitigation
	RetraceExpiryCandles = 15

	// RiskRewardRatio prices the take profit off the stop distance
	RiskRewardRatio = 1.0
)

// Structure detection modes
const (
	ModeLoose  = "loose"
	ModeStrict = "strict"
)

// Repository is the persistence surface the pipeline needs
type Repository interface {
	CreateBOSEvent(ctx context.Context, event *database.BOSEvent) (bool, error)
	GetOpenBOSEvents(ctx context.Context, symbol, timeframe string) ([]*database.BOSEvent, error)
	UpdateBOSFVGStatus(ctx context.Context, id int64, status string) error

	CreateFVGZone(ctx context.Context, zone *database.FVGZone) error
	GetOpenFVGZones(ctx context.Context, symbol, timeframe string) ([]*database.FVGZone, error)
	UpdateFVGRetraceStatus(ctx context.Context, id int64, status string) error
	GetFVGZoneByID(ctx context.Context, id int64) (*database.FVGZone, error)

	CreateRetraceEvent(ctx context.Context, event *database.RetraceEvent) error
	GetPendingRetraces(ctx context.Context) ([]*database.RetraceEvent, error)
	UpdateRetraceEntryStatus(ctx context.Context, id int64, status string) error

	CreateEntrySetup(ctx context.Context, setup *database.EntrySetup) error
	GetPendingEntrySetups(ctx context.Context) ([]*database.EntrySetup, error)
	UpdateEntrySetupStatus(ctx context.Context, id int64, status string) error

	CreateSignal(ctx context.Context, signal *database.Signal) error
}

// Pipeline runs the five stages in order on every cycle
type Pipeline struct {
	repo      Repository
	data      market.DataGateway
	logger    zerolog.Logger
	symbol    string
	timeframe string
	mode      string
	interval  time.Duration
}

// New creates the pipeline. mode selects loose or strict structure
// detection; anything else defaults to loose.
func New(repo Repository, data market.DataGateway, logger zerolog.Logger, symbol, timeframe, mode string, interval time.Duration) *Pipeline {
	if mode != ModeStrict {
		mode = ModeLoose
	}
	return &Pipeline{
		repo:      repo,
		data:      data,
		logger:    logger.With().Str("component", "BOSFVGPipeline").Logger(),
		symbol:    symbol,
		timeframe: timeframe,
		mode:      mode,
		interval:  interval,
	}
}

func (p *Pipeline) Name() string            { return "bos_fvg_pipeline" }
func (p *Pipeline) Description() string     { return "BOS, FVG and retrace detection with ATR entries" }
func (p *Pipeline) Interval() time.Duration { return p.interval }

// RunOnce executes one full cycle: structure, gaps, retraces, entries,
// signals. Stages share a single candle fetch.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	candles, err := p.data.Candles(ctx, p.symbol, p.timeframe, CandleFetchLimit)
	if err != nil {
		return fmt.Errorf("fetch candles: %w", err)
	}
	if len(candles) < 2 {
		p.logger.Debug().Int("candles", len(candles)).Msg("Not enough history, skipping cycle")
		return nil
	}

	if err := p.detectStructure(ctx, candles); err != nil {
		return fmt.Errorf("structure stage: %w", err)
	}
	if err := p.scanGaps(ctx, candles); err != nil {
		return fmt.Errorf("fvg stage: %w", err)
	}
	if err := p.scanRetraces(ctx, candles); err != nil {
		return fmt.Errorf("retrace stage: %w", err)
	}
	if err := p.priceEntries(ctx, candles); err != nil {
		return fmt.Errorf("entry stage: %w", err)
	}
	if err := p.publishSignals(ctx); err != nil {
		return fmt.Errorf("signal stage: %w", err)
	}
	return nil
}
