// Package risk owns account protection: the daily baseline, position
// sizing, the drawdown gate and the trailing stop service.
package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// Baseline sources
const (
	SourceStartingBalance = "starting_balance"
	SourcePreviousEnding  = "previous_ending"
	SourceStartingCapital = "starting_capital"
)

// Repository is the persistence surface the controller needs
type Repository interface {
	EnsureDailyMetric(ctx context.Context, date time.Time, startingBalance float64) (*database.DailyMetric, error)
	GetDailyMetric(ctx context.Context, date time.Time) (*database.DailyMetric, error)
	GetLatestDailyMetricBefore(ctx context.Context, date time.Time) (*database.DailyMetric, error)
	UpdateDailyMetric(ctx context.Context, metric *database.DailyMetric) error
	CreateAccountSnapshot(ctx context.Context, snapshot *database.AccountSnapshot) error
	CancelPendingSignals(ctx context.Context) (int64, error)
}

// BaselineCache caches the resolved daily baseline
type BaselineCache interface {
	Get(ctx context.Context, symbol, date string) (*database.DailyBaseline, error)
	Set(ctx context.Context, symbol string, baseline *database.DailyBaseline) error
}

// Controller resolves the daily baseline, sizes positions and enforces the
// drawdown gate.
type Controller struct {
	repo               Repository
	cache              BaselineCache
	logger             zerolog.Logger
	symbol             string
	startingCapital    float64
	riskPercent        float64
	maxDrawdownPercent float64
	now                func() time.Time
}

// NewController creates the risk controller
func NewController(repo Repository, cache BaselineCache, logger zerolog.Logger, symbol string, startingCapital, riskPercent, maxDrawdownPercent float64) *Controller {
	return &Controller{
		repo:               repo,
		cache:              cache,
		logger:             logger.With().Str("component", "RiskController").Logger(),
		symbol:             symbol,
		startingCapital:    startingCapital,
		riskPercent:        riskPercent,
		maxDrawdownPercent: maxDrawdownPercent,
		now:                time.Now,
	}
}

func (c *Controller) today() (time.Time, string) {
	now := c.now().UTC()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return date, date.Format("2006-01-02")
}

// Baseline resolves today's risk baseline: today's recorded starting
// balance, then yesterday's ending balance, then the configured starting
// capital. The result is cached for the rest of the day.
func (c *Controller) Baseline(ctx context.Context) (float64, error) {
	date, dateKey := c.today()

	if cached, err := c.cache.Get(ctx, c.symbol, dateKey); err == nil && cached != nil {
		return cached.Balance, nil
	}

	balance, source, err := c.resolveBaseline(ctx, date)
	if err != nil {
		return 0, err
	}

	if err := c.cache.Set(ctx, c.symbol, &database.DailyBaseline{
		Date:    dateKey,
		Balance: balance,
		Source:  source,
	}); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to cache baseline")
	}

	c.logger.Info().Float64("baseline", balance).Str("source", source).Msg("Daily baseline resolved")
	return balance, nil
}

func (c *Controller) resolveBaseline(ctx context.Context, date time.Time) (float64, string, error) {
	metric, err := c.repo.GetDailyMetric(ctx, date)
	if err == nil {
		return metric.StartingBalance, SourceStartingBalance, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return 0, "", err
	}

	prev, err := c.repo.GetLatestDailyMetricBefore(ctx, date)
	if err == nil {
		return prev.EndingBalance, SourcePreviousEnding, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return 0, "", err
	}

	return c.startingCapital, SourceStartingCapital, nil
}

// TradingBlocked reports whether today's drawdown has already breached
// the limit. The executor checks this before placing any order; without
// it a breach would only stop trading on the next account-metrics tick.
func (c *Controller) TradingBlocked(ctx context.Context) (bool, error) {
	date, _ := c.today()
	metric, err := c.repo.GetDailyMetric(ctx, date)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return metric.DrawdownPercent >= c.maxDrawdownPercent, nil
}

// LotSize sizes one order off the daily baseline: the risked amount is a
// fixed fraction of the baseline spread over the stop distance, scaled to
// lots and floored at the broker minimum.
func (c *Controller) LotSize(ctx context.Context, entryPrice, stopLoss float64) (float64, error) {
	diff := math.Abs(entryPrice - stopLoss)
	if diff <= 0 {
		return 0, fmt.Errorf("zero stop distance for entry %.2f", entryPrice)
	}

	baseline, err := c.Baseline(ctx)
	if err != nil {
		return 0, err
	}

	lots := (baseline * c.riskPercent / diff) * 0.01
	lots = math.Floor(lots*100) / 100
	if lots < 0.01 {
		lots = 0.01
	}
	return lots, nil
}

// UpdateFromAccount folds a fresh account reading into today's metric row,
// records a snapshot and trips the drawdown gate when losses from the peak
// exceed the limit. Returns the current drawdown percentage.
func (c *Controller) UpdateFromAccount(ctx context.Context, info *market.AccountInfo) (float64, error) {
	date, _ := c.today()

	baseline, err := c.Baseline(ctx)
	if err != nil {
		return 0, err
	}
	metric, err := c.repo.EnsureDailyMetric(ctx, date, baseline)
	if err != nil {
		return 0, err
	}

	metric.EndingBalance = info.Balance
	if info.Balance > metric.PeakBalance {
		metric.PeakBalance = info.Balance
	}
	if info.Balance < metric.LowestBalance {
		metric.LowestBalance = info.Balance
	}
	metric.RealizedPnL = metric.EndingBalance - metric.StartingBalance

	drawdown := 0.0
	if metric.PeakBalance > 0 {
		drawdown = (metric.PeakBalance - metric.EndingBalance) / metric.PeakBalance * 100
	}
	metric.DrawdownPercent = drawdown
	drawdownGauge.Set(drawdown)

	if err := c.repo.UpdateDailyMetric(ctx, metric); err != nil {
		return 0, err
	}

	snapshot := &database.AccountSnapshot{
		Balance:     info.Balance,
		Equity:      info.Equity,
		FloatingPnL: info.Profit,
		Drawdown:    drawdown,
	}
	if err := c.repo.CreateAccountSnapshot(ctx, snapshot); err != nil {
		return 0, err
	}

	if drawdown >= c.maxDrawdownPercent {
		cancelled, err := c.repo.CancelPendingSignals(ctx)
		if err != nil {
			return drawdown, err
		}
		if cancelled > 0 {
			c.logger.Warn().
				Float64("drawdown_percent", drawdown).
				Int64("cancelled_signals", cancelled).
				Msg("Drawdown limit hit, pending signals cancelled")
		}
	}
	return drawdown, nil
}
