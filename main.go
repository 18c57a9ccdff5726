// Gold trading bot: three M15 strategy pipelines feed a signal queue,
// an executor places the orders through the MT5 bridge, and risk
// services watch the account. An HTTP API starts and stops the pieces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gold-trading-bot/config"
	"gold-trading-bot/internal/api"
	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/executor"
	"gold-trading-bot/internal/logging"
	"gold-trading-bot/internal/market"
	"gold-trading-bot/internal/risk"
	"gold-trading-bot/internal/scheduler"
	"gold-trading-bot/internal/strategy/bias"
	"gold-trading-bot/internal/strategy/bosfvg"
	"gold-trading-bot/internal/strategy/sweep"
	"gold-trading-bot/internal/strategy/swingfib"
	"gold-trading-bot/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LoggingConfig.Level, cfg.LoggingConfig.JSONFormat)
	logger.Info().Str("symbol", cfg.TradingConfig.Symbol).Msg("Gold trading bot starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	repo := database.NewRepository(db)

	var redisClient *redis.Client
	if cfg.RedisConfig.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unreachable, baseline cache falls back to memory")
			redisClient = nil
		}
		defer func() {
			if redisClient != nil {
				redisClient.Close()
			}
		}()
	}
	baselineCache := database.NewRedisBaselineCache(redisClient)

	gateway := newGateway(cfg, logger)

	controller := risk.NewController(
		repo, baselineCache, logger,
		cfg.TradingConfig.Symbol,
		cfg.RiskConfig.StartingCapital,
		cfg.RiskConfig.RiskPercent,
		cfg.RiskConfig.MaxDrawdownPercent,
	)

	sched := scheduler.New(logger)
	registerServices(sched, cfg, repo, gateway, controller, logger)
	sched.StartAll(ctx)
	defer sched.StopAll()

	if cfg.TelegramConfig.Enabled {
		registry := telegram.NewRegistry()
		registry.Register("Gold Signals VIP", telegram.ParseGoldSignal)
		registry.Register("XAU Scalps", telegram.ParseGoldSignal)

		listener, err := telegram.NewListener(
			cfg.TelegramConfig.BotToken, registry, repo, logger, cfg.TradingConfig.Symbol,
		)
		if err != nil {
			return fmt.Errorf("telegram listener: %w", err)
		}
		go listener.Start()
		defer listener.Stop()
	}

	server := api.NewServer(
		api.Config{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
			ReadTimeout:    time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
			WriteTimeout:   time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
		},
		repo, sched, logger, cfg.TradingConfig.Symbol,
	)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second,
	)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("API server shutdown failed")
	}

	logger.Info().Msg("Gold trading bot stopped")
	return nil
}

// newGateway picks the MT5 bridge or the in-memory mock
func newGateway(cfg *config.Config, logger zerolog.Logger) market.Gateway {
	if cfg.BridgeConfig.MockMode {
		logger.Warn().Msg("Mock mode enabled, orders will not reach a broker")
		return market.NewMockClient()
	}
	return market.NewBridgeClient(
		cfg.BridgeConfig.BaseURL,
		time.Duration(cfg.BridgeConfig.Timeout)*time.Second,
	)
}

func registerServices(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	repo *database.Repository,
	gateway market.Gateway,
	controller *risk.Controller,
	logger zerolog.Logger,
) {
	symbol := cfg.TradingConfig.Symbol
	timeframe := cfg.TradingConfig.Timeframe
	strategyInterval := time.Duration(cfg.TradingConfig.StrategyInterval) * time.Second

	sched.Register(bosfvg.New(repo, gateway, logger, symbol, timeframe, bosfvg.ModeLoose, strategyInterval))
	sched.Register(sweep.New(repo, gateway, logger, symbol, timeframe, strategyInterval))
	sched.Register(swingfib.New(repo, gateway, logger, symbol, timeframe, strategyInterval))

	sched.Register(bias.New(
		repo, gateway, logger, symbol, timeframe, time.Hour,
		cfg.BiasConfig.ZWindowDays,
		cfg.BiasConfig.MinSampleSize,
		cfg.BiasConfig.BayesWindowDays,
	))

	sched.Register(executor.New(repo, gateway, controller, logger, executor.Config{
		MaxConcurrent: cfg.ExecutorConfig.MaxConcurrent,
		SuccessTarget: 3,
		MaxRetries:    cfg.ExecutorConfig.MaxRetries,
		RetryDelay:    time.Duration(cfg.ExecutorConfig.RetryDelay) * time.Second,
		PollInterval:  time.Duration(cfg.ExecutorConfig.PollInterval) * time.Second,
	}))

	sched.Register(risk.NewTrailingService(
		gateway, logger, symbol,
		cfg.TrailingConfig.TrailStep,
		cfg.TrailingConfig.TrailStart,
		cfg.TrailingConfig.BreathingBuffer,
		cfg.TrailingConfig.DryRun,
		time.Duration(cfg.TrailingConfig.Interval)*time.Second,
	))

	sched.Register(risk.NewMetricsService(
		controller, gateway, logger,
		time.Duration(cfg.TradingConfig.MetricsInterval)*time.Second,
	))
}
