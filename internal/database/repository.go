package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("record not found")

// Repository provides data access for signals and trades
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// GetDB returns the underlying DB instance
func (r *Repository) GetDB() *DB {
	return r.db
}

// ============================================================================
// SIGNALS
// ============================================================================

// CreateSignal inserts a new signal
func (r *Repository) CreateSignal(ctx context.Context, signal *Signal) error {
	query := `
		INSERT INTO signals (instrument, action, range1, range2, tp1, tp2, sl, comment, message, risk, reward, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`
	if signal.Status == "" {
		signal.Status = SignalStatusPending
	}
	return r.db.Pool.QueryRow(
		ctx, query,
		signal.Instrument, signal.Action, signal.Range1, signal.Range2,
		signal.TP1, signal.TP2, signal.SL, signal.Comment, signal.Message,
		signal.Risk, signal.Reward, signal.Status,
	).Scan(&signal.ID, &signal.CreatedAt, &signal.UpdatedAt)
}

// GetSignalByID retrieves a single signal
func (r *Repository) GetSignalByID(ctx context.Context, id int64) (*Signal, error) {
	query := signalSelect + ` WHERE id = $1`
	signal := &Signal{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(signalFields(signal)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return signal, nil
}

// GetPendingSignals retrieves all signals waiting for execution, oldest
// first. Signals left in 'processing' by a crash mid-execution are swept
// up again; the executor runs one cycle at a time, so a live cycle never
// sees its own claims here.
func (r *Repository) GetPendingSignals(ctx context.Context) ([]*Signal, error) {
	query := signalSelect + ` WHERE status IN ('pending', 'processing') ORDER BY created_at ASC`
	return r.querySignals(ctx, query)
}

// GetRecentSignals retrieves the most recent signals
func (r *Repository) GetRecentSignals(ctx context.Context, limit int) ([]*Signal, error) {
	query := signalSelect + ` ORDER BY created_at DESC LIMIT $1`
	return r.querySignals(ctx, query, limit)
}

// UpdateSignalStatus sets the status of a signal
func (r *Repository) UpdateSignalStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE signals SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query, id, status)
	return err
}

// UpdateSignalExecution records the final execution outcome of a signal
func (r *Repository) UpdateSignalExecution(ctx context.Context, id int64, status string, priceEntry float64, typeOrder string) error {
	query := `
		UPDATE signals
		SET status = $2, price_entry = $3, type_order = $4, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Pool.Exec(ctx, query, id, status, priceEntry, typeOrder)
	return err
}

// CancelPendingSignals cancels every pending signal and returns how many
// rows changed. Used by the drawdown gate.
func (r *Repository) CancelPendingSignals(ctx context.Context) (int64, error) {
	query := `UPDATE signals SET status = 'cancelled', updated_at = NOW() WHERE status = 'pending'`
	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const signalSelect = `
	SELECT id, instrument, action, range1, range2, tp1, tp2, sl, comment, message,
	       risk, reward, status, price_entry, type_order, created_at, updated_at
	FROM signals`

func signalFields(s *Signal) []interface{} {
	return []interface{}{
		&s.ID, &s.Instrument, &s.Action, &s.Range1, &s.Range2, &s.TP1, &s.TP2,
		&s.SL, &s.Comment, &s.Message, &s.Risk, &s.Reward, &s.Status,
		&s.PriceEntry, &s.TypeOrder, &s.CreatedAt, &s.UpdatedAt,
	}
}

func (r *Repository) querySignals(ctx context.Context, query string, args ...interface{}) ([]*Signal, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []*Signal
	for rows.Next() {
		signal := &Signal{}
		if err := rows.Scan(signalFields(signal)...); err != nil {
			return nil, err
		}
		signals = append(signals, signal)
	}
	return signals, rows.Err()
}

// ============================================================================
// TRADES
// ============================================================================

// CreateTrade inserts a trade record for a placed order
func (r *Repository) CreateTrade(ctx context.Context, trade *Trade) error {
	query := `
		INSERT INTO trades (signal_id, ticket, symbol, side, volume, price_entry, stop_loss, take_profit, order_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	if trade.Status == "" {
		trade.Status = "open"
	}
	return r.db.Pool.QueryRow(
		ctx, query,
		trade.SignalID, trade.Ticket, trade.Symbol, trade.Side, trade.Volume,
		trade.PriceEntry, trade.StopLoss, trade.TakeProfit, trade.OrderType, trade.Status,
	).Scan(&trade.ID, &trade.CreatedAt)
}

// GetTradesBySignal retrieves all trades placed for one signal
func (r *Repository) GetTradesBySignal(ctx context.Context, signalID int64) ([]*Trade, error) {
	query := `
		SELECT id, signal_id, ticket, symbol, side, volume, price_entry, stop_loss, take_profit, order_type, status, created_at
		FROM trades
		WHERE signal_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, signalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*Trade
	for rows.Next() {
		trade := &Trade{}
		err := rows.Scan(
			&trade.ID, &trade.SignalID, &trade.Ticket, &trade.Symbol, &trade.Side,
			&trade.Volume, &trade.PriceEntry, &trade.StopLoss, &trade.TakeProfit,
			&trade.OrderType, &trade.Status, &trade.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}
	return trades, rows.Err()
}
