package market

import "context"

// DataGateway provides read-only market data
type DataGateway interface {
	// Candles returns the most recent closed candles, oldest first.
	Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	// Quote returns the current bid/ask.
	Quote(ctx context.Context, symbol string) (*Quote, error)
}

// BrokerGateway places and manages orders on the trading account
type BrokerGateway interface {
	AccountInfo(ctx context.Context) (*AccountInfo, error)
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)
	Positions(ctx context.Context, symbol string) ([]Position, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	// ModifyStopLoss moves the stop loss of an open position. A zero
	// takeProfit leaves the existing take profit in place.
	ModifyStopLoss(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error
}

// Gateway combines market data and order management, matching what the
// MT5 bridge exposes.
type Gateway interface {
	DataGateway
	BrokerGateway
}
