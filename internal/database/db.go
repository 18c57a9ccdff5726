// Package database provides the PostgreSQL store for signals, trades and
// the intermediate records each strategy pipeline persists between stages.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id BIGSERIAL PRIMARY KEY,
			instrument VARCHAR(20) NOT NULL,
			action VARCHAR(10) NOT NULL,
			range1 DOUBLE PRECISION NOT NULL DEFAULT 0,
			range2 DOUBLE PRECISION NOT NULL DEFAULT 0,
			tp1 DOUBLE PRECISION NOT NULL DEFAULT 0,
			tp2 DOUBLE PRECISION NOT NULL DEFAULT 0,
			sl DOUBLE PRECISION NOT NULL DEFAULT 0,
			comment TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			risk DOUBLE PRECISION NOT NULL DEFAULT 0,
			reward DOUBLE PRECISION NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			price_entry DOUBLE PRECISION NOT NULL DEFAULT 0,
			type_order VARCHAR(20) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_signals_status ON signals(status)`,

		`CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			signal_id BIGINT NOT NULL REFERENCES signals(id),
			ticket BIGINT NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			price_entry DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
			take_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
			order_type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS bos_events (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			break_level DOUBLE PRECISION NOT NULL,
			candle_time TIMESTAMPTZ NOT NULL,
			fvg_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (symbol, timeframe, direction, candle_time)
		)`,

		`CREATE TABLE IF NOT EXISTS fvg_zones (
			id BIGSERIAL PRIMARY KEY,
			bos_event_id BIGINT NOT NULL REFERENCES bos_events(id),
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			gap_low DOUBLE PRECISION NOT NULL,
			gap_high DOUBLE PRECISION NOT NULL,
			candle_time TIMESTAMPTZ NOT NULL,
			retrace_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS retrace_events (
			id BIGSERIAL PRIMARY KEY,
			fvg_zone_id BIGINT NOT NULL REFERENCES fvg_zones(id),
			direction VARCHAR(10) NOT NULL,
			retrace_price DOUBLE PRECISION NOT NULL,
			candle_time TIMESTAMPTZ NOT NULL,
			entry_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS entry_setups (
			id BIGSERIAL PRIMARY KEY,
			retrace_id BIGINT NOT NULL REFERENCES retrace_events(id),
			direction VARCHAR(10) NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			take_profit DOUBLE PRECISION NOT NULL,
			atr DOUBLE PRECISION NOT NULL,
			risk_reward DOUBLE PRECISION NOT NULL,
			candle_time TIMESTAMPTZ NOT NULL,
			signal_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS market_contexts (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			recent_high DOUBLE PRECISION NOT NULL,
			recent_low DOUBLE PRECISION NOT NULL,
			recent_high_time TIMESTAMPTZ NOT NULL,
			recent_low_time TIMESTAMPTZ NOT NULL,
			prev_day_high DOUBLE PRECISION NOT NULL,
			prev_day_low DOUBLE PRECISION NOT NULL,
			prev_day_close DOUBLE PRECISION NOT NULL,
			h4_bias VARCHAR(10) NOT NULL,
			swept_high BOOLEAN NOT NULL DEFAULT FALSE,
			swept_low BOOLEAN NOT NULL DEFAULT FALSE,
			last_processed_time TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sweep_events (
			id BIGSERIAL PRIMARY KEY,
			context_id BIGINT NOT NULL REFERENCES market_contexts(id),
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(10) NOT NULL,
			sweep_level DOUBLE PRECISION NOT NULL,
			extreme DOUBLE PRECISION NOT NULL,
			candle_time TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (context_id, side, candle_time)
		)`,

		`CREATE TABLE IF NOT EXISTS rejection_events (
			id BIGSERIAL PRIMARY KEY,
			sweep_event_id BIGINT NOT NULL REFERENCES sweep_events(id),
			direction VARCHAR(10) NOT NULL,
			confirm_type VARCHAR(10) NOT NULL,
			rejection_close DOUBLE PRECISION NOT NULL,
			candle_time TIMESTAMPTZ NOT NULL,
			setup_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS swing_points (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			swing_type VARCHAR(10) NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			candle_time TIMESTAMPTZ NOT NULL,
			discovered_at TIMESTAMPTZ NOT NULL,
			power_score DOUBLE PRECISION NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (symbol, timeframe, swing_type, candle_time)
		)`,

		`CREATE TABLE IF NOT EXISTS fib_setups (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			direction VARCHAR(10) NOT NULL,
			fib_high DOUBLE PRECISION NOT NULL,
			fib_low DOUBLE PRECISION NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			take_profit DOUBLE PRECISION NOT NULL,
			candle_time TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (symbol, timeframe, direction, candle_time)
		)`,

		`CREATE TABLE IF NOT EXISTS session_bias (
			id BIGSERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			session VARCHAR(10) NOT NULL,
			date DATE NOT NULL,
			z_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			z_prob_bullish DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			posterior DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			bias VARCHAR(10) NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			sample_size INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (symbol, session, date)
		)`,

		`CREATE TABLE IF NOT EXISTS daily_metrics (
			id BIGSERIAL PRIMARY KEY,
			date DATE NOT NULL UNIQUE,
			starting_balance DOUBLE PRECISION NOT NULL,
			ending_balance DOUBLE PRECISION NOT NULL,
			peak_balance DOUBLE PRECISION NOT NULL,
			lowest_balance DOUBLE PRECISION NOT NULL,
			drawdown_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			realized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS account_snapshots (
			id BIGSERIAL PRIMARY KEY,
			balance DOUBLE PRECISION NOT NULL,
			equity DOUBLE PRECISION NOT NULL,
			floating_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			drawdown DOUBLE PRECISION NOT NULL DEFAULT 0,
			time TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
