package market

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is an in-memory Gateway implementation for tests and mock
// mode. Candles and quotes are set by the caller; orders are accepted and
// recorded without touching a broker.
type MockClient struct {
	mu sync.RWMutex

	candles    map[string][]Candle // keyed by symbol+"/"+timeframe
	quotes     map[string]Quote
	account    AccountInfo
	symbols    map[string]SymbolInfo
	positions  []Position
	orders     []OrderRequest
	nextTicket int64

	// PlaceOrderFunc overrides order handling when set
	PlaceOrderFunc func(req OrderRequest) (*OrderResult, error)
	// ModifyFunc overrides stop-loss modification when set
	ModifyFunc func(ticket int64, sl, tp float64) error
}

// NewMockClient creates an empty mock gateway
func NewMockClient() *MockClient {
	return &MockClient{
		candles:    make(map[string][]Candle),
		quotes:     make(map[string]Quote),
		symbols:    make(map[string]SymbolInfo),
		account:    AccountInfo{Balance: 10000, Equity: 10000},
		nextTicket: 1000,
	}
}

// SetCandles sets the candle series returned for a symbol/timeframe
func (m *MockClient) SetCandles(symbol, timeframe string, candles []Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[symbol+"/"+timeframe] = candles
}

// SetQuote sets the current quote for a symbol
func (m *MockClient) SetQuote(symbol string, bid, ask float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotes[symbol] = Quote{Symbol: symbol, Bid: bid, Ask: ask, Time: time.Now()}
}

// SetAccount sets the account snapshot
func (m *MockClient) SetAccount(info AccountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = info
}

// SetSymbolInfo sets the broker constraints for a symbol
func (m *MockClient) SetSymbolInfo(info SymbolInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols[info.Symbol] = info
}

// SetPositions sets the open positions returned by Positions
func (m *MockClient) SetPositions(positions []Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

// PlacedOrders returns a copy of every order accepted so far
func (m *MockClient) PlacedOrders() []OrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OrderRequest, len(m.orders))
	copy(out, m.orders)
	return out
}

func (m *MockClient) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candles, ok := m.candles[symbol+"/"+timeframe]
	if !ok {
		return nil, fmt.Errorf("no candles for %s %s", symbol, timeframe)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (m *MockClient) Quote(ctx context.Context, symbol string) (*Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	quote, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}
	return &quote, nil
}

func (m *MockClient) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info := m.account
	return &info, nil
}

func (m *MockClient) SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if info, ok := m.symbols[symbol]; ok {
		return &info, nil
	}
	// sensible defaults for a gold CFD symbol
	return &SymbolInfo{
		Symbol:       symbol,
		Point:        0.01,
		Digits:       2,
		StopsLevel:   10,
		VolumeMin:    0.01,
		VolumeStep:   0.01,
		ContractSize: 100,
	}, nil
}

func (m *MockClient) Positions(ctx context.Context, symbol string) ([]Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Position
	for _, p := range m.positions {
		if symbol == "" || p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockClient) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PlaceOrderFunc != nil {
		result, err := m.PlaceOrderFunc(req)
		if err == nil {
			m.orders = append(m.orders, req)
		}
		return result, err
	}

	m.orders = append(m.orders, req)
	m.nextTicket++

	price := req.Price
	if req.Type == OrderTypeMarket {
		if q, ok := m.quotes[req.Symbol]; ok {
			if req.Side == SideBuy {
				price = q.Ask
			} else {
				price = q.Bid
			}
		}
	}

	return &OrderResult{Ticket: m.nextTicket, Price: price, Volume: req.Volume}, nil
}

func (m *MockClient) ModifyStopLoss(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ModifyFunc != nil {
		return m.ModifyFunc(ticket, stopLoss, takeProfit)
	}

	for i := range m.positions {
		if m.positions[i].Ticket == ticket {
			m.positions[i].StopLoss = stopLoss
			if takeProfit != 0 {
				m.positions[i].TakeProfit = takeProfit
			}
			return nil
		}
	}
	return fmt.Errorf("position %d not found", ticket)
}
