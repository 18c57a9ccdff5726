package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ============================================================================
// BOS -> FVG -> RETRACE PIPELINE
// ============================================================================

// CreateBOSEvent inserts a break-of-structure event. Duplicate events for
// the same candle are silently ignored; the returned bool reports whether
// a new row was created.
func (r *Repository) CreateBOSEvent(ctx context.Context, event *BOSEvent) (bool, error) {
	query := `
		INSERT INTO bos_events (symbol, timeframe, direction, break_level, candle_time, fvg_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (symbol, timeframe, direction, candle_time) DO NOTHING
		RETURNING id, created_at
	`
	if event.FVGStatus == "" {
		event.FVGStatus = StageStatusPending
	}
	err := r.db.Pool.QueryRow(
		ctx, query,
		event.Symbol, event.Timeframe, event.Direction, event.BreakLevel,
		event.CandleTime, event.FVGStatus,
	).Scan(&event.ID, &event.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetOpenBOSEvents returns events whose FVG scan is still pending or in progress
func (r *Repository) GetOpenBOSEvents(ctx context.Context, symbol, timeframe string) ([]*BOSEvent, error) {
	query := `
		SELECT id, symbol, timeframe, direction, break_level, candle_time, fvg_status, created_at
		FROM bos_events
		WHERE symbol = $1 AND timeframe = $2 AND fvg_status IN ('pending', 'scanning')
		ORDER BY candle_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*BOSEvent
	for rows.Next() {
		event := &BOSEvent{}
		err := rows.Scan(
			&event.ID, &event.Symbol, &event.Timeframe, &event.Direction,
			&event.BreakLevel, &event.CandleTime, &event.FVGStatus, &event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// GetBOSEventsSince returns all BOS events for a symbol since a point in
// time, oldest first. Used by the session bias estimator.
func (r *Repository) GetBOSEventsSince(ctx context.Context, symbol string, since time.Time) ([]*BOSEvent, error) {
	query := `
		SELECT id, symbol, timeframe, direction, break_level, candle_time, fvg_status, created_at
		FROM bos_events
		WHERE symbol = $1 AND candle_time >= $2
		ORDER BY candle_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*BOSEvent
	for rows.Next() {
		event := &BOSEvent{}
		err := rows.Scan(
			&event.ID, &event.Symbol, &event.Timeframe, &event.Direction,
			&event.BreakLevel, &event.CandleTime, &event.FVGStatus, &event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// UpdateBOSFVGStatus advances the FVG scan status of a BOS event
func (r *Repository) UpdateBOSFVGStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE bos_events SET fvg_status = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, status)
	return err
}

// CreateFVGZone inserts a fair value gap
func (r *Repository) CreateFVGZone(ctx context.Context, zone *FVGZone) error {
	query := `
		INSERT INTO fvg_zones (bos_event_id, symbol, timeframe, direction, gap_low, gap_high, candle_time, retrace_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	if zone.RetraceStatus == "" {
		zone.RetraceStatus = StageStatusPending
	}
	return r.db.Pool.QueryRow(
		ctx, query,
		zone.BOSEventID, zone.Symbol, zone.Timeframe, zone.Direction,
		zone.GapLow, zone.GapHigh, zone.CandleTime, zone.RetraceStatus,
	).Scan(&zone.ID, &zone.CreatedAt)
}

// GetOpenFVGZones returns gaps whose retrace scan is still pending or in progress
func (r *Repository) GetOpenFVGZones(ctx context.Context, symbol, timeframe string) ([]*FVGZone, error) {
	query := `
		SELECT id, bos_event_id, symbol, timeframe, direction, gap_low, gap_high, candle_time, retrace_status, created_at
		FROM fvg_zones
		WHERE symbol = $1 AND timeframe = $2 AND retrace_status IN ('pending', 'scanning')
		ORDER BY candle_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []*FVGZone
	for rows.Next() {
		zone := &FVGZone{}
		err := rows.Scan(
			&zone.ID, &zone.BOSEventID, &zone.Symbol, &zone.Timeframe, &zone.Direction,
			&zone.GapLow, &zone.GapHigh, &zone.CandleTime, &zone.RetraceStatus, &zone.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		zones = append(zones, zone)
	}
	return zones, rows.Err()
}

// UpdateFVGRetraceStatus advances the retrace scan status of a gap
func (r *Repository) UpdateFVGRetraceStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE fvg_zones SET retrace_status = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, status)
	return err
}

// CreateRetraceEvent inserts a retrace into a gap
func (r *Repository) CreateRetraceEvent(ctx context.Context, event *RetraceEvent) error {
	query := `
		INSERT INTO retrace_events (fvg_zone_id, direction, retrace_price, candle_time, entry_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if event.EntryStatus == "" {
		event.EntryStatus = SetupStatusPending
	}
	return r.db.Pool.QueryRow(
		ctx, query,
		event.FVGZoneID, event.Direction, event.RetracePrice, event.CandleTime, event.EntryStatus,
	).Scan(&event.ID, &event.CreatedAt)
}

// GetPendingRetraces returns retraces without an entry setup yet
func (r *Repository) GetPendingRetraces(ctx context.Context) ([]*RetraceEvent, error) {
	query := `
		SELECT id, fvg_zone_id, direction, retrace_price, candle_time, entry_status, created_at
		FROM retrace_events
		WHERE entry_status = 'pending'
		ORDER BY candle_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*RetraceEvent
	for rows.Next() {
		event := &RetraceEvent{}
		err := rows.Scan(
			&event.ID, &event.FVGZoneID, &event.Direction, &event.RetracePrice,
			&event.CandleTime, &event.EntryStatus, &event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// UpdateRetraceEntryStatus marks a retrace as processed
func (r *Repository) UpdateRetraceEntryStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE retrace_events SET entry_status = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, status)
	return err
}

// GetFVGZoneByID retrieves one gap
func (r *Repository) GetFVGZoneByID(ctx context.Context, id int64) (*FVGZone, error) {
	query := `
		SELECT id, bos_event_id, symbol, timeframe, direction, gap_low, gap_high, candle_time, retrace_status, created_at
		FROM fvg_zones
		WHERE id = $1
	`
	zone := &FVGZone{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&zone.ID, &zone.BOSEventID, &zone.Symbol, &zone.Timeframe, &zone.Direction,
		&zone.GapLow, &zone.GapHigh, &zone.CandleTime, &zone.RetraceStatus, &zone.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return zone, nil
}

// CreateEntrySetup inserts a priced trade idea
func (r *Repository) CreateEntrySetup(ctx context.Context, setup *EntrySetup) error {
	query := `
		INSERT INTO entry_setups (retrace_id, direction, entry_price, stop_loss, take_profit, atr, risk_reward, candle_time, signal_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	if setup.SignalStatus == "" {
		setup.SignalStatus = SetupStatusPending
	}
	return r.db.Pool.QueryRow(
		ctx, query,
		setup.RetraceID, setup.Direction, setup.EntryPrice, setup.StopLoss,
		setup.TakeProfit, setup.ATR, setup.RiskReward, setup.CandleTime, setup.SignalStatus,
	).Scan(&setup.ID, &setup.CreatedAt)
}

// GetPendingEntrySetups returns setups not yet turned into signals
func (r *Repository) GetPendingEntrySetups(ctx context.Context) ([]*EntrySetup, error) {
	query := `
		SELECT id, retrace_id, direction, entry_price, stop_loss, take_profit, atr, risk_reward, candle_time, signal_status, created_at
		FROM entry_setups
		WHERE signal_status = 'pending'
		ORDER BY candle_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var setups []*EntrySetup
	for rows.Next() {
		setup := &EntrySetup{}
		err := rows.Scan(
			&setup.ID, &setup.RetraceID, &setup.Direction, &setup.EntryPrice,
			&setup.StopLoss, &setup.TakeProfit, &setup.ATR, &setup.RiskReward,
			&setup.CandleTime, &setup.SignalStatus, &setup.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		setups = append(setups, setup)
	}
	return setups, rows.Err()
}

// UpdateEntrySetupStatus marks a setup as processed
func (r *Repository) UpdateEntrySetupStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE entry_setups SET signal_status = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, status)
	return err
}

// ============================================================================
// LIQUIDITY SWEEP PIPELINE
// ============================================================================

// CreateMarketContext appends a new context row. Contexts are append-only;
// the latest row is the active one.
func (r *Repository) CreateMarketContext(ctx context.Context, mc *MarketContext) error {
	query := `
		INSERT INTO market_contexts (symbol, timeframe, recent_high, recent_low, recent_high_time, recent_low_time,
			prev_day_high, prev_day_low, prev_day_close, h4_bias, swept_high, swept_low, last_processed_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		mc.Symbol, mc.Timeframe, mc.RecentHigh, mc.RecentLow, mc.RecentHighTime, mc.RecentLowTime,
		mc.PrevDayHigh, mc.PrevDayLow, mc.PrevDayClose, mc.H4Bias, mc.SweptHigh, mc.SweptLow,
		mc.LastProcessedTime,
	).Scan(&mc.ID, &mc.CreatedAt)
}

// GetLatestMarketContext returns the active context, or ErrNotFound
func (r *Repository) GetLatestMarketContext(ctx context.Context, symbol, timeframe string) (*MarketContext, error) {
	query := `
		SELECT id, symbol, timeframe, recent_high, recent_low, recent_high_time, recent_low_time,
		       prev_day_high, prev_day_low, prev_day_close, h4_bias, swept_high, swept_low,
		       last_processed_time, created_at
		FROM market_contexts
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	mc := &MarketContext{}
	err := r.db.Pool.QueryRow(ctx, query, symbol, timeframe).Scan(
		&mc.ID, &mc.Symbol, &mc.Timeframe, &mc.RecentHigh, &mc.RecentLow,
		&mc.RecentHighTime, &mc.RecentLowTime, &mc.PrevDayHigh, &mc.PrevDayLow,
		&mc.PrevDayClose, &mc.H4Bias, &mc.SweptHigh, &mc.SweptLow,
		&mc.LastProcessedTime, &mc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return mc, nil
}

// MarkContextSwept flags one side of a context as swept
func (r *Repository) MarkContextSwept(ctx context.Context, id int64, side string) error {
	column := "swept_high"
	if side == SweepSideSell {
		column = "swept_low"
	}
	query := `UPDATE market_contexts SET ` + column + ` = TRUE WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id)
	return err
}

// UpdateContextProcessedTime records the newest candle the sweep stage has seen
func (r *Repository) UpdateContextProcessedTime(ctx context.Context, id int64, t time.Time) error {
	query := `UPDATE market_contexts SET last_processed_time = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, t)
	return err
}

// CreateSweepEvent inserts a sweep; duplicates for the same candle are ignored
func (r *Repository) CreateSweepEvent(ctx context.Context, event *SweepEvent) (bool, error) {
	query := `
		INSERT INTO sweep_events (context_id, symbol, side, sweep_level, extreme, candle_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (context_id, side, candle_time) DO NOTHING
		RETURNING id, created_at
	`
	if event.Status == "" {
		event.Status = SweepStatusPending
	}
	err := r.db.Pool.QueryRow(
		ctx, query,
		event.ContextID, event.Symbol, event.Side, event.SweepLevel,
		event.Extreme, event.CandleTime, event.Status,
	).Scan(&event.ID, &event.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetPendingSweeps returns sweeps awaiting rejection confirmation
func (r *Repository) GetPendingSweeps(ctx context.Context, symbol string) ([]*SweepEvent, error) {
	query := `
		SELECT id, context_id, symbol, side, sweep_level, extreme, candle_time, status, created_at
		FROM sweep_events
		WHERE symbol = $1 AND status = 'pending'
		ORDER BY candle_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*SweepEvent
	for rows.Next() {
		event := &SweepEvent{}
		err := rows.Scan(
			&event.ID, &event.ContextID, &event.Symbol, &event.Side,
			&event.SweepLevel, &event.Extreme, &event.CandleTime, &event.Status, &event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// UpdateSweepStatus advances a sweep's lifecycle
func (r *Repository) UpdateSweepStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE sweep_events SET status = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, status)
	return err
}

// CreateRejectionEvent inserts a confirmed rejection
func (r *Repository) CreateRejectionEvent(ctx context.Context, event *RejectionEvent) error {
	query := `
		INSERT INTO rejection_events (sweep_event_id, direction, confirm_type, rejection_close, candle_time, setup_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	if event.SetupStatus == "" {
		event.SetupStatus = SetupStatusPending
	}
	return r.db.Pool.QueryRow(
		ctx, query,
		event.SweepEventID, event.Direction, event.ConfirmType,
		event.RejectionClose, event.CandleTime, event.SetupStatus,
	).Scan(&event.ID, &event.CreatedAt)
}

// GetPendingRejections returns rejections without a setup yet
func (r *Repository) GetPendingRejections(ctx context.Context) ([]*RejectionEvent, error) {
	query := `
		SELECT id, sweep_event_id, direction, confirm_type, rejection_close, candle_time, setup_status, created_at
		FROM rejection_events
		WHERE setup_status = 'pending'
		ORDER BY candle_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*RejectionEvent
	for rows.Next() {
		event := &RejectionEvent{}
		err := rows.Scan(
			&event.ID, &event.SweepEventID, &event.Direction, &event.ConfirmType,
			&event.RejectionClose, &event.CandleTime, &event.SetupStatus, &event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// UpdateRejectionStatus marks a rejection as processed
func (r *Repository) UpdateRejectionStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE rejection_events SET setup_status = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, status)
	return err
}

// GetSweepEventByID retrieves one sweep
func (r *Repository) GetSweepEventByID(ctx context.Context, id int64) (*SweepEvent, error) {
	query := `
		SELECT id, context_id, symbol, side, sweep_level, extreme, candle_time, status, created_at
		FROM sweep_events
		WHERE id = $1
	`
	event := &SweepEvent{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&event.ID, &event.ContextID, &event.Symbol, &event.Side,
		&event.SweepLevel, &event.Extreme, &event.CandleTime, &event.Status, &event.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// GetMarketContextByID retrieves one context row
func (r *Repository) GetMarketContextByID(ctx context.Context, id int64) (*MarketContext, error) {
	query := `
		SELECT id, symbol, timeframe, recent_high, recent_low, recent_high_time, recent_low_time,
		       prev_day_high, prev_day_low, prev_day_close, h4_bias, swept_high, swept_low,
		       last_processed_time, created_at
		FROM market_contexts
		WHERE id = $1
	`
	mc := &MarketContext{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&mc.ID, &mc.Symbol, &mc.Timeframe, &mc.RecentHigh, &mc.RecentLow,
		&mc.RecentHighTime, &mc.RecentLowTime, &mc.PrevDayHigh, &mc.PrevDayLow,
		&mc.PrevDayClose, &mc.H4Bias, &mc.SweptHigh, &mc.SweptLow,
		&mc.LastProcessedTime, &mc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return mc, nil
}

// ============================================================================
// SWING POINT / FIB PIPELINE
// ============================================================================

// CreateSwingPoint inserts a confirmed swing; duplicates are ignored.
// The bool reports whether a new row was created.
func (r *Repository) CreateSwingPoint(ctx context.Context, swing *SwingPoint) (bool, error) {
	query := `
		INSERT INTO swing_points (symbol, timeframe, swing_type, price, candle_time, discovered_at, power_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, timeframe, swing_type, candle_time) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.Pool.QueryRow(
		ctx, query,
		swing.Symbol, swing.Timeframe, swing.SwingType, swing.Price,
		swing.CandleTime, swing.DiscoveredAt, swing.PowerScore,
	).Scan(&swing.ID, &swing.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetRecentSwingPoints returns the newest confirmed swings, newest first
func (r *Repository) GetRecentSwingPoints(ctx context.Context, symbol, timeframe string, limit int) ([]*SwingPoint, error) {
	query := `
		SELECT id, symbol, timeframe, swing_type, price, candle_time, discovered_at, power_score, created_at
		FROM swing_points
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY candle_time DESC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swings []*SwingPoint
	for rows.Next() {
		swing := &SwingPoint{}
		err := rows.Scan(
			&swing.ID, &swing.Symbol, &swing.Timeframe, &swing.SwingType,
			&swing.Price, &swing.CandleTime, &swing.DiscoveredAt, &swing.PowerScore, &swing.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		swings = append(swings, swing)
	}
	return swings, rows.Err()
}

// CreateFibSetup inserts a fib trade idea; duplicates for the same leg are ignored
func (r *Repository) CreateFibSetup(ctx context.Context, setup *FibSetup) (bool, error) {
	query := `
		INSERT INTO fib_setups (symbol, timeframe, direction, fib_high, fib_low, entry_price, stop_loss, take_profit, candle_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol, timeframe, direction, candle_time) DO NOTHING
		RETURNING id, created_at
	`
	if setup.Status == "" {
		setup.Status = SetupStatusPending
	}
	err := r.db.Pool.QueryRow(
		ctx, query,
		setup.Symbol, setup.Timeframe, setup.Direction, setup.FibHigh, setup.FibLow,
		setup.EntryPrice, setup.StopLoss, setup.TakeProfit, setup.CandleTime, setup.Status,
	).Scan(&setup.ID, &setup.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetPendingFibSetups returns fib setups not yet turned into signals
func (r *Repository) GetPendingFibSetups(ctx context.Context, symbol string) ([]*FibSetup, error) {
	query := `
		SELECT id, symbol, timeframe, direction, fib_high, fib_low, entry_price, stop_loss, take_profit, candle_time, status, created_at
		FROM fib_setups
		WHERE symbol = $1 AND status = 'pending'
		ORDER BY candle_time ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var setups []*FibSetup
	for rows.Next() {
		setup := &FibSetup{}
		err := rows.Scan(
			&setup.ID, &setup.Symbol, &setup.Timeframe, &setup.Direction,
			&setup.FibHigh, &setup.FibLow, &setup.EntryPrice, &setup.StopLoss,
			&setup.TakeProfit, &setup.CandleTime, &setup.Status, &setup.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		setups = append(setups, setup)
	}
	return setups, rows.Err()
}

// UpdateFibSetupStatus marks a fib setup as processed or expired
func (r *Repository) UpdateFibSetupStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE fib_setups SET status = $2 WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, status)
	return err
}
