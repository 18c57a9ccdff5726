// Package executor drains pending signals and turns them into broker
// orders. Signals are validated, sized by the risk controller and placed
// with bounded concurrency, retries and a modality fallback chain.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// singleOrderComment marks signals that place one order instead of the
// usual ladder.
const singleOrderComment = "FVG_SIGNALH4"

// Repository is the persistence surface the executor needs
type Repository interface {
	GetPendingSignals(ctx context.Context) ([]*database.Signal, error)
	UpdateSignalStatus(ctx context.Context, id int64, status string) error
	UpdateSignalExecution(ctx context.Context, id int64, status string, priceEntry float64, typeOrder string) error
	CreateTrade(ctx context.Context, trade *database.Trade) error
	CancelPendingSignals(ctx context.Context) (int64, error)
}

// Risk is the risk-control surface the executor consults: the drawdown
// gate before each cycle and lot sizing per order.
type Risk interface {
	TradingBlocked(ctx context.Context) (bool, error)
	LotSize(ctx context.Context, entryPrice, stopLoss float64) (float64, error)
}

// Config tunes the execution loop
type Config struct {
	MaxConcurrent int
	SuccessTarget int
	MaxRetries    int
	RetryDelay    time.Duration
	PollInterval  time.Duration
}

// Executor is the signal execution service
type Executor struct {
	repo    Repository
	gateway market.Gateway
	risk    Risk
	logger  zerolog.Logger
	cfg     Config
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates the executor
func New(repo Repository, gateway market.Gateway, risk Risk, logger zerolog.Logger, cfg Config) *Executor {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.SuccessTarget <= 0 {
		cfg.SuccessTarget = 1
	}
	return &Executor{
		repo:    repo,
		gateway: gateway,
		risk:    risk,
		logger:  logger.With().Str("component", "SignalExecutor").Logger(),
		cfg:     cfg,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) Name() string            { return "signal_executor" }
func (e *Executor) Description() string     { return "Executes pending signals against the broker" }
func (e *Executor) Interval() time.Duration { return e.cfg.PollInterval }

// RunOnce drains the pending queue with bounded concurrency. While the
// drawdown gate holds, the queue is cancelled instead of executed.
// Failures on one signal never block the others.
func (e *Executor) RunOnce(ctx context.Context) error {
	blocked, err := e.risk.TradingBlocked(ctx)
	if err != nil {
		return fmt.Errorf("check drawdown gate: %w", err)
	}
	if blocked {
		cancelled, err := e.repo.CancelPendingSignals(ctx)
		if err != nil {
			return fmt.Errorf("cancel signals under drawdown gate: %w", err)
		}
		if cancelled > 0 {
			e.logger.Warn().Int64("cancelled_signals", cancelled).
				Msg("Drawdown gate active, pending signals cancelled")
		}
		return nil
	}

	signals, err := e.repo.GetPendingSignals(ctx)
	if err != nil {
		return fmt.Errorf("fetch pending signals: %w", err)
	}
	if len(signals) == 0 {
		return nil
	}

	sem := make(chan struct{}, e.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for _, signal := range signals {
		signal := signal
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.processSignal(ctx, signal)
		}()
	}
	wg.Wait()
	return nil
}

// processSignal runs one signal through validation, sizing and placement
func (e *Executor) processSignal(ctx context.Context, signal *database.Signal) {
	logger := e.logger.With().Int64("signal_id", signal.ID).Logger()

	if err := e.repo.UpdateSignalStatus(ctx, signal.ID, database.SignalStatusProcessing); err != nil {
		logger.Error().Err(err).Msg("Failed to claim signal")
		return
	}

	if err := validateSignal(signal); err != nil {
		logger.Warn().Err(err).Msg("Signal rejected")
		signalsProcessed.WithLabelValues(database.SignalStatusError).Inc()
		if err := e.repo.UpdateSignalStatus(ctx, signal.ID, database.SignalStatusError); err != nil {
			logger.Error().Err(err).Msg("Failed to mark signal errored")
		}
		return
	}

	entry := (signal.Range1 + signal.Range2) / 2
	volume, err := e.risk.LotSize(ctx, entry, signal.SL)
	if err != nil {
		// sizing reads the store; a failure here is transient, so the
		// signal goes back to the queue for the next cycle
		logger.Warn().Err(err).Msg("Lot sizing failed, signal requeued")
		if err := e.repo.UpdateSignalStatus(ctx, signal.ID, database.SignalStatusPending); err != nil {
			logger.Error().Err(err).Msg("Failed to requeue signal")
		}
		return
	}

	target := e.cfg.SuccessTarget
	if signal.Comment == singleOrderComment {
		target = 1
	}
	preferred := modalityFromMessage(signal.Message)

	var successes int
	var lastModality string
	var lastPrice float64
	for i := 0; i < target; i++ {
		result, modality, err := e.placeWithRetry(ctx, signal, preferred, volume)
		if err != nil {
			logger.Error().Err(err).Int("order", i+1).Msg("Order placement failed")
			break
		}

		successes++
		lastModality = modality
		lastPrice = result.Price
		if lastPrice == 0 {
			lastPrice = entry
		}
		ordersPlaced.WithLabelValues(modality).Inc()

		trade := &database.Trade{
			SignalID:   signal.ID,
			Ticket:     result.Ticket,
			Symbol:     signal.Instrument,
			Side:       signal.Action,
			Volume:     volume,
			PriceEntry: lastPrice,
			StopLoss:   signal.SL,
			TakeProfit: signal.TP1,
			OrderType:  modality,
		}
		if err := e.repo.CreateTrade(ctx, trade); err != nil {
			logger.Error().Err(err).Int64("ticket", result.Ticket).Msg("Failed to record trade")
		}
	}

	if successes > 0 {
		logger.Info().Int("orders", successes).Str("modality", lastModality).Msg("Signal executed")
		signalsProcessed.WithLabelValues(database.SignalStatusCompleted).Inc()
		e.finish(ctx, signal, database.SignalStatusCompleted, lastPrice, lastModality)
		return
	}
	signalsProcessed.WithLabelValues(database.SignalStatusFailed).Inc()
	e.finish(ctx, signal, database.SignalStatusFailed, 0, "")
}

func (e *Executor) finish(ctx context.Context, signal *database.Signal, status string, priceEntry float64, typeOrder string) {
	if err := e.repo.UpdateSignalExecution(ctx, signal.ID, status, priceEntry, typeOrder); err != nil {
		e.logger.Error().Err(err).Int64("signal_id", signal.ID).Msg("Failed to record signal outcome")
	}
}

// placeWithRetry attempts the preferred modality with retries, then forces
// the remaining modalities once each. An instant attempt that finds the
// market outside the entry window switches to a pending order instead of
// burning the attempt.
func (e *Executor) placeWithRetry(ctx context.Context, signal *database.Signal, preferred string, volume float64) (market.OrderResult, string, error) {
	var lastErr error
	for _, modality := range fallbackModalities(preferred) {
		attempts := 1
		if modality == preferred {
			attempts = e.cfg.MaxRetries
		}
		for attempt := 0; attempt < attempts; attempt++ {
			if attempt > 0 {
				orderRetries.Inc()
				if err := e.sleep(ctx, e.cfg.RetryDelay); err != nil {
					return market.OrderResult{}, "", err
				}
			}

			quote, err := e.gateway.Quote(ctx, signal.Instrument)
			if err != nil {
				lastErr = err
				continue
			}
			req, resolved, err := buildOrder(signal, *quote, modality, volume, e.now())
			if errors.Is(err, ErrPriceOutOfRange) {
				// the market left the instant window: re-dispatch once
				// as the pending order that still reaches the entry
				// from the current price. buildOrder corrects the
				// pending side, so this is a single hop.
				req, resolved, err = buildOrder(signal, *quote, ModalityLimit, volume, e.now())
			}
			if err != nil {
				lastErr = err
				continue
			}
			result, err := e.gateway.PlaceOrder(ctx, req)
			if err != nil {
				lastErr = err
				continue
			}
			return *result, resolved, nil
		}
	}
	orderFailures.Inc()
	return market.OrderResult{}, "", lastErr
}

// validateSignal rejects signals that cannot be executed safely. A zero
// price means the field was never set.
func validateSignal(signal *database.Signal) error {
	if signal.Instrument == "" {
		return errors.New("missing instrument")
	}
	if signal.Action != market.SideBuy && signal.Action != market.SideSell {
		return fmt.Errorf("unknown action %q", signal.Action)
	}
	if signal.SL == 0 {
		return errors.New("missing stop loss")
	}
	if signal.TP1 == 0 || signal.TP2 == 0 {
		return errors.New("missing take profit")
	}
	if signal.Range1 == 0 || signal.Range2 == 0 {
		return errors.New("missing entry range")
	}
	return nil
}
