package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/market"
)

// MetricsService periodically reads the account and feeds the controller,
// which keeps the daily metric row current and enforces the drawdown gate.
type MetricsService struct {
	controller *Controller
	broker     market.BrokerGateway
	logger     zerolog.Logger
	interval   time.Duration
}

// NewMetricsService creates the account metrics service
func NewMetricsService(controller *Controller, broker market.BrokerGateway, logger zerolog.Logger, interval time.Duration) *MetricsService {
	return &MetricsService{
		controller: controller,
		broker:     broker,
		logger:     logger.With().Str("component", "AccountMetrics").Logger(),
		interval:   interval,
	}
}

func (s *MetricsService) Name() string            { return "account_metrics" }
func (s *MetricsService) Description() string     { return "Account snapshots and the drawdown gate" }
func (s *MetricsService) Interval() time.Duration { return s.interval }

// RunOnce takes one account reading
func (s *MetricsService) RunOnce(ctx context.Context) error {
	info, err := s.broker.AccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("read account: %w", err)
	}

	drawdown, err := s.controller.UpdateFromAccount(ctx, info)
	if err != nil {
		return err
	}
	s.logger.Debug().
		Float64("balance", info.Balance).
		Float64("equity", info.Equity).
		Float64("drawdown_percent", drawdown).
		Msg("Account snapshot recorded")
	return nil
}
