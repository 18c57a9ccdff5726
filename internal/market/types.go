// Package market defines the market-data and broker gateways the bot trades
// through, plus an HTTP client for the MT5 bridge and a mock for tests.
package market

import "time"

// Timeframe identifiers understood by the bridge
const (
	TimeframeM15 = "M15"
	TimeframeH1  = "H1"
	TimeframeH4  = "H4"
	TimeframeD1  = "D1"
)

// Order side constants
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order type constants
const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
	OrderTypeStop   = "stop"
)

// Candle represents one OHLCV bar
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Body returns the absolute candle body size
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Bullish reports whether the candle closed above its open
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Quote is the current bid/ask for a symbol
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Mid returns the quote midpoint
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// AccountInfo is a snapshot of the trading account
type AccountInfo struct {
	Balance    float64 `json:"balance"`
	Equity     float64 `json:"equity"`
	Margin     float64 `json:"margin"`
	FreeMargin float64 `json:"free_margin"`
	Profit     float64 `json:"profit"`
}

// SymbolInfo carries the broker's trading constraints for a symbol
type SymbolInfo struct {
	Symbol       string  `json:"symbol"`
	Point        float64 `json:"point"`
	Digits       int     `json:"digits"`
	StopsLevel   int     `json:"stops_level"` // minimum stop distance in points
	VolumeMin    float64 `json:"volume_min"`
	VolumeStep   float64 `json:"volume_step"`
	ContractSize float64 `json:"contract_size"`
}

// MinStopDistance returns the broker minimum stop distance in price units
func (s SymbolInfo) MinStopDistance() float64 {
	return float64(s.StopsLevel) * s.Point
}

// Position is an open position reported by the broker
type Position struct {
	Ticket     int64     `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"` // buy or sell
	Volume     float64   `json:"volume"`
	PriceOpen  float64   `json:"price_open"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Profit     float64   `json:"profit"`
	Comment    string    `json:"comment"`
	OpenedAt   time.Time `json:"opened_at"`
}

// OrderRequest describes an order to be placed through the broker
type OrderRequest struct {
	Symbol     string     `json:"symbol"`
	Side       string     `json:"side"`  // buy or sell
	Type       string     `json:"type"`  // market, limit or stop
	Volume     float64    `json:"volume"`
	Price      float64    `json:"price,omitempty"` // pending orders only
	StopLoss   float64    `json:"stop_loss"`
	TakeProfit float64    `json:"take_profit"`
	Expiration *time.Time `json:"expiration,omitempty"`
	Comment    string     `json:"comment,omitempty"`
	ClientID   string     `json:"client_id,omitempty"`
}

// OrderResult is the broker's response to an order placement
type OrderResult struct {
	Ticket  int64   `json:"ticket"`
	Price   float64 `json:"price"`
	Volume  float64 `json:"volume"`
	Retcode int     `json:"retcode"`
	Comment string  `json:"comment,omitempty"`
}
