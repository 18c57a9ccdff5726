package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// ============================================================================
// DAILY METRICS
// ============================================================================

// EnsureDailyMetric creates today's metric row if it does not exist yet and
// returns the row either way. Safe to call concurrently; the unique date
// constraint makes the insert idempotent.
func (r *Repository) EnsureDailyMetric(ctx context.Context, date time.Time, startingBalance float64) (*DailyMetric, error) {
	query := `
		INSERT INTO daily_metrics (date, starting_balance, ending_balance, peak_balance, lowest_balance)
		VALUES ($1, $2, $2, $2, $2)
		ON CONFLICT (date) DO NOTHING
	`
	if _, err := r.db.Pool.Exec(ctx, query, date, startingBalance); err != nil {
		return nil, err
	}
	return r.GetDailyMetric(ctx, date)
}

// GetDailyMetric retrieves the metric row for one date
func (r *Repository) GetDailyMetric(ctx context.Context, date time.Time) (*DailyMetric, error) {
	query := dailyMetricSelect + ` WHERE date = $1`
	metric := &DailyMetric{}
	err := r.db.Pool.QueryRow(ctx, query, date).Scan(dailyMetricFields(metric)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return metric, nil
}

// GetLatestDailyMetricBefore retrieves the newest metric row strictly
// before the given date. Used to carry yesterday's ending balance forward.
func (r *Repository) GetLatestDailyMetricBefore(ctx context.Context, date time.Time) (*DailyMetric, error) {
	query := dailyMetricSelect + ` WHERE date < $1 ORDER BY date DESC LIMIT 1`
	metric := &DailyMetric{}
	err := r.db.Pool.QueryRow(ctx, query, date).Scan(dailyMetricFields(metric)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return metric, nil
}

// UpdateDailyMetric persists the rolling figures for one day
func (r *Repository) UpdateDailyMetric(ctx context.Context, metric *DailyMetric) error {
	query := `
		UPDATE daily_metrics
		SET ending_balance = $2, peak_balance = $3, lowest_balance = $4,
		    drawdown_percent = $5, realized_pnl = $6, updated_at = NOW()
		WHERE date = $1
	`
	_, err := r.db.Pool.Exec(
		ctx, query,
		metric.Date, metric.EndingBalance, metric.PeakBalance, metric.LowestBalance,
		metric.DrawdownPercent, metric.RealizedPnL,
	)
	return err
}

const dailyMetricSelect = `
	SELECT id, date, starting_balance, ending_balance, peak_balance, lowest_balance,
	       drawdown_percent, realized_pnl, created_at, updated_at
	FROM daily_metrics`

func dailyMetricFields(m *DailyMetric) []interface{} {
	return []interface{}{
		&m.ID, &m.Date, &m.StartingBalance, &m.EndingBalance, &m.PeakBalance,
		&m.LowestBalance, &m.DrawdownPercent, &m.RealizedPnL, &m.CreatedAt, &m.UpdatedAt,
	}
}

// ============================================================================
// ACCOUNT SNAPSHOTS
// ============================================================================

// CreateAccountSnapshot appends a point-in-time account reading
func (r *Repository) CreateAccountSnapshot(ctx context.Context, snapshot *AccountSnapshot) error {
	query := `
		INSERT INTO account_snapshots (balance, equity, floating_pnl, drawdown, time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if snapshot.Time.IsZero() {
		snapshot.Time = time.Now().UTC()
	}
	return r.db.Pool.QueryRow(
		ctx, query,
		snapshot.Balance, snapshot.Equity, snapshot.FloatingPnL, snapshot.Drawdown, snapshot.Time,
	).Scan(&snapshot.ID)
}

// ============================================================================
// SESSION BIAS
// ============================================================================

// UpsertSessionBias writes the bias estimate for (symbol, session, date),
// replacing an earlier estimate for the same key.
func (r *Repository) UpsertSessionBias(ctx context.Context, bias *SessionBias) error {
	query := `
		INSERT INTO session_bias (symbol, session, date, z_score, z_prob_bullish, posterior, bias, confidence, sample_size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, session, date) DO UPDATE
		SET z_score = EXCLUDED.z_score,
		    z_prob_bullish = EXCLUDED.z_prob_bullish,
		    posterior = EXCLUDED.posterior,
		    bias = EXCLUDED.bias,
		    confidence = EXCLUDED.confidence,
		    sample_size = EXCLUDED.sample_size,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		bias.Symbol, bias.Session, bias.Date, bias.ZScore, bias.ZProbBullish,
		bias.Posterior, bias.Bias, bias.Confidence, bias.SampleSize,
	).Scan(&bias.ID, &bias.CreatedAt, &bias.UpdatedAt)
}

// GetSessionBias retrieves the bias for one session and date
func (r *Repository) GetSessionBias(ctx context.Context, symbol, session string, date time.Time) (*SessionBias, error) {
	query := `
		SELECT id, symbol, session, date, z_score, z_prob_bullish, posterior, bias, confidence, sample_size, created_at, updated_at
		FROM session_bias
		WHERE symbol = $1 AND session = $2 AND date = $3
	`
	bias := &SessionBias{}
	err := r.db.Pool.QueryRow(ctx, query, symbol, session, date).Scan(
		&bias.ID, &bias.Symbol, &bias.Session, &bias.Date, &bias.ZScore,
		&bias.ZProbBullish, &bias.Posterior, &bias.Bias, &bias.Confidence,
		&bias.SampleSize, &bias.CreatedAt, &bias.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return bias, nil
}

// GetSessionBiasesForDate retrieves all session estimates for one date
func (r *Repository) GetSessionBiasesForDate(ctx context.Context, symbol string, date time.Time) ([]*SessionBias, error) {
	query := `
		SELECT id, symbol, session, date, z_score, z_prob_bullish, posterior, bias, confidence, sample_size, created_at, updated_at
		FROM session_bias
		WHERE symbol = $1 AND date = $2
		ORDER BY session ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var biases []*SessionBias
	for rows.Next() {
		bias := &SessionBias{}
		err := rows.Scan(
			&bias.ID, &bias.Symbol, &bias.Session, &bias.Date, &bias.ZScore,
			&bias.ZProbBullish, &bias.Posterior, &bias.Bias, &bias.Confidence,
			&bias.SampleSize, &bias.CreatedAt, &bias.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		biases = append(biases, bias)
	}
	return biases, rows.Err()
}
