package database

import "time"

// Signal status constants
const (
	SignalStatusPending    = "pending"
	SignalStatusProcessing = "processing"
	SignalStatusCompleted  = "completed"
	SignalStatusFailed     = "failed"
	SignalStatusError      = "error"
	SignalStatusCancelled  = "cancelled"
)

// Stage status constants shared by the strategy pipelines
const (
	StageStatusPending  = "pending"
	StageStatusScanning = "scanning"
	StageStatusFound    = "found"
	StageStatusNotFound = "not_found"
)

// Sweep status constants
const (
	SweepStatusPending     = "pending"
	SweepStatusConfirmed   = "confirmed"
	SweepStatusInvalidated = "invalidated"
	SweepStatusExpired     = "expired"
)

// Setup status constants
const (
	SetupStatusPending   = "pending"
	SetupStatusProcessed = "processed"
	SetupStatusExpired   = "expired"
)

// Direction constants
const (
	DirectionBullish = "bullish"
	DirectionBearish = "bearish"
)

// Signal is a trade instruction awaiting execution
type Signal struct {
	ID         int64     `json:"id"`
	Instrument string    `json:"instrument"`
	Action     string    `json:"action"` // buy or sell
	Range1     float64   `json:"range1"`
	Range2     float64   `json:"range2"`
	TP1        float64   `json:"tp1"`
	TP2        float64   `json:"tp2"`
	SL         float64   `json:"sl"`
	Comment    string    `json:"comment"`
	Message    string    `json:"message"`
	Risk       float64   `json:"risk"`
	Reward     float64   `json:"reward"`
	Status     string    `json:"status"`
	PriceEntry float64   `json:"price_entry"`
	TypeOrder  string    `json:"type_order"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Trade records a successfully placed order for a signal
type Trade struct {
	ID         int64     `json:"id"`
	SignalID   int64     `json:"signal_id"`
	Ticket     int64     `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Volume     float64   `json:"volume"`
	PriceEntry float64   `json:"price_entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	OrderType  string    `json:"order_type"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// BOSEvent is a confirmed break of structure on the working timeframe
type BOSEvent struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Direction  string    `json:"direction"` // bullish or bearish
	BreakLevel float64   `json:"break_level"`
	CandleTime time.Time `json:"candle_time"`
	FVGStatus  string    `json:"fvg_status"` // pending, scanning, found, not_found
	CreatedAt  time.Time `json:"created_at"`
}

// FVGZone is a fair value gap detected after a break of structure
type FVGZone struct {
	ID            int64     `json:"id"`
	BOSEventID    int64     `json:"bos_event_id"`
	Symbol        string    `json:"symbol"`
	Timeframe     string    `json:"timeframe"`
	Direction     string    `json:"direction"`
	GapLow        float64   `json:"gap_low"`
	GapHigh       float64   `json:"gap_high"`
	CandleTime    time.Time `json:"candle_time"` // candle that completed the gap
	RetraceStatus string    `json:"retrace_status"`
	CreatedAt     time.Time `json:"created_at"`
}

// RetraceEvent marks price returning into a fair value gap
type RetraceEvent struct {
	ID           int64     `json:"id"`
	FVGZoneID    int64     `json:"fvg_zone_id"`
	Direction    string    `json:"direction"`
	RetracePrice float64   `json:"retrace_price"`
	CandleTime   time.Time `json:"candle_time"`
	EntryStatus  string    `json:"entry_status"` // pending or processed
	CreatedAt    time.Time `json:"created_at"`
}

// EntrySetup is a fully priced trade idea derived from a retrace
type EntrySetup struct {
	ID           int64     `json:"id"`
	RetraceID    int64     `json:"retrace_id"`
	Direction    string    `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	ATR          float64   `json:"atr"`
	RiskReward   float64   `json:"risk_reward"`
	CandleTime   time.Time `json:"candle_time"`
	SignalStatus string    `json:"signal_status"` // pending or processed
	CreatedAt    time.Time `json:"created_at"`
}

// MarketContext is the structural snapshot the sweep pipeline works from:
// the most recent confirmed swing extremes, previous-day levels and the
// higher-timeframe bias.
type MarketContext struct {
	ID                int64     `json:"id"`
	Symbol            string    `json:"symbol"`
	Timeframe         string    `json:"timeframe"`
	RecentHigh        float64   `json:"recent_high"`
	RecentLow         float64   `json:"recent_low"`
	RecentHighTime    time.Time `json:"recent_high_time"`
	RecentLowTime     time.Time `json:"recent_low_time"`
	PrevDayHigh       float64   `json:"prev_day_high"`
	PrevDayLow        float64   `json:"prev_day_low"`
	PrevDayClose      float64   `json:"prev_day_close"`
	H4Bias            string    `json:"h4_bias"`
	SweptHigh         bool      `json:"swept_high"`
	SweptLow          bool      `json:"swept_low"`
	LastProcessedTime time.Time `json:"last_processed_time"`
	CreatedAt         time.Time `json:"created_at"`
}

// SweepEvent records a liquidity sweep of a context extreme
type SweepEvent struct {
	ID         int64     `json:"id"`
	ContextID  int64     `json:"context_id"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // buy_side or sell_side
	SweepLevel float64   `json:"sweep_level"`
	Extreme    float64   `json:"extreme"` // sweep candle high/low
	CandleTime time.Time `json:"candle_time"`
	Status     string    `json:"status"` // pending, confirmed, invalidated, expired
	CreatedAt  time.Time `json:"created_at"`
}

// Sweep side constants
const (
	SweepSideBuy  = "buy_side"  // sweep above a high
	SweepSideSell = "sell_side" // sweep below a low
)

// RejectionEvent confirms price rejecting back through a swept level
type RejectionEvent struct {
	ID             int64     `json:"id"`
	SweepEventID   int64     `json:"sweep_event_id"`
	Direction      string    `json:"direction"`    // trade direction after rejection
	ConfirmType    string    `json:"confirm_type"` // instant or delayed
	RejectionClose float64   `json:"rejection_close"`
	CandleTime     time.Time `json:"candle_time"`
	SetupStatus    string    `json:"setup_status"` // pending or processed
	CreatedAt      time.Time `json:"created_at"`
}

// Rejection confirmation constants
const (
	ConfirmInstant = "instant"
	ConfirmDelayed = "delayed"
)

// SwingPoint is a confirmed swing high or low
type SwingPoint struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	Timeframe    string    `json:"timeframe"`
	SwingType    string    `json:"swing_type"` // high or low
	Price        float64   `json:"price"`
	CandleTime   time.Time `json:"candle_time"`
	DiscoveredAt time.Time `json:"discovered_at"`
	PowerScore   float64   `json:"power_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// Swing type constants
const (
	SwingTypeHigh = "high"
	SwingTypeLow  = "low"
)

// FibSetup is a fibonacci retracement trade idea built from a swing leg
type FibSetup struct {
	ID         int64     `json:"id"`
	Symbol     string    `json:"symbol"`
	Timeframe  string    `json:"timeframe"`
	Direction  string    `json:"direction"`
	FibHigh    float64   `json:"fib_high"`
	FibLow     float64   `json:"fib_low"`
	EntryPrice float64   `json:"entry_price"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	CandleTime time.Time `json:"candle_time"` // leg end candle
	Status     string    `json:"status"`      // pending, processed, expired
	CreatedAt  time.Time `json:"created_at"`
}

// SessionBias is the daily directional bias estimate for one session
type SessionBias struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	Session      string    `json:"session"` // Asia, London or NewYork
	Date         time.Time `json:"date"`
	ZScore       float64   `json:"z_score"`
	ZProbBullish float64   `json:"z_prob_bullish"`
	Posterior    float64   `json:"posterior"`
	Bias         string    `json:"bias"` // bullish, bearish or neutral
	Confidence   float64   `json:"confidence"`
	SampleSize   int       `json:"sample_size"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DailyMetric tracks the account across one trading day
type DailyMetric struct {
	ID              int64     `json:"id"`
	Date            time.Time `json:"date"`
	StartingBalance float64   `json:"starting_balance"`
	EndingBalance   float64   `json:"ending_balance"`
	PeakBalance     float64   `json:"peak_balance"`
	LowestBalance   float64   `json:"lowest_balance"`
	DrawdownPercent float64   `json:"drawdown_percent"`
	RealizedPnL     float64   `json:"realized_pnl"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AccountSnapshot is a point-in-time reading of the account
type AccountSnapshot struct {
	ID          int64     `json:"id"`
	Balance     float64   `json:"balance"`
	Equity      float64   `json:"equity"`
	FloatingPnL float64   `json:"floating_pnl"`
	Drawdown    float64   `json:"drawdown"`
	Time        time.Time `json:"time"`
}
