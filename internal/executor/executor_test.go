package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

type fakeRepo struct {
	mu       sync.Mutex
	signals  []*database.Signal
	trades   []*database.Trade
	statuses map[int64]string
	prices   map[int64]float64
	orders   map[int64]string
}

func newFakeRepo(signals ...*database.Signal) *fakeRepo {
	return &fakeRepo{
		signals:  signals,
		statuses: make(map[int64]string),
		prices:   make(map[int64]float64),
		orders:   make(map[int64]string),
	}
}

func (f *fakeRepo) GetPendingSignals(_ context.Context) ([]*database.Signal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*database.Signal
	for _, s := range f.signals {
		switch f.statuses[s.ID] {
		case "", database.SignalStatusPending, database.SignalStatusProcessing:
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) CancelPendingSignals(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cancelled int64
	for _, s := range f.signals {
		switch f.statuses[s.ID] {
		case "", database.SignalStatusPending:
			f.statuses[s.ID] = database.SignalStatusCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

func (f *fakeRepo) UpdateSignalStatus(_ context.Context, id int64, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeRepo) UpdateSignalExecution(_ context.Context, id int64, status string, priceEntry float64, typeOrder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	f.prices[id] = priceEntry
	f.orders[id] = typeOrder
	return nil
}

func (f *fakeRepo) CreateTrade(_ context.Context, trade *database.Trade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	trade.ID = int64(len(f.trades) + 1)
	f.trades = append(f.trades, trade)
	return nil
}

func (f *fakeRepo) status(id int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statuses[id]
}

func (f *fakeRepo) tradeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.trades)
}

type fakeRisk struct {
	lots    float64
	sizeErr error
	blocked bool
}

func (r *fakeRisk) TradingBlocked(context.Context) (bool, error) {
	return r.blocked, nil
}

func (r *fakeRisk) LotSize(_ context.Context, _, _ float64) (float64, error) {
	if r.sizeErr != nil {
		return 0, r.sizeErr
	}
	return r.lots, nil
}

func testConfig() Config {
	return Config{
		MaxConcurrent: 3,
		SuccessTarget: 3,
		MaxRetries:    3,
		RetryDelay:    time.Millisecond,
		PollInterval:  time.Second,
	}
}

func newTestExecutor(repo Repository, gateway market.Gateway) *Executor {
	return newTestExecutorWithRisk(repo, gateway, &fakeRisk{lots: 0.05})
}

func newTestExecutorWithRisk(repo Repository, gateway market.Gateway, risk Risk) *Executor {
	e := New(repo, gateway, risk, zerolog.Nop(), testConfig())
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func validSignal(id int64) *database.Signal {
	return &database.Signal{
		ID:         id,
		Instrument: "XAUUSDc",
		Action:     market.SideBuy,
		Range1:     2400,
		Range2:     2400,
		TP1:        2410,
		TP2:        2420,
		SL:         2395,
		Comment:    "Liquidity Sweep Rejection",
		Message:    "Entry from rejection trade ID 1. Expired 0.1 days",
	}
}

func TestExecutesSignalWithTargetOrders(t *testing.T) {
	repo := newFakeRepo(validSignal(1))
	mock := market.NewMockClient()
	mock.SetQuote("XAUUSDc", 2399.8, 2400.2)
	e := newTestExecutor(repo, mock)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := repo.status(1); got != database.SignalStatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
	if got := repo.tradeCount(); got != 3 {
		t.Errorf("trades = %d, want success target 3", got)
	}
	if len(mock.PlacedOrders()) != 3 {
		t.Errorf("orders = %d, want 3", len(mock.PlacedOrders()))
	}
}

func TestMissingStopLossIsTerminal(t *testing.T) {
	signal := validSignal(2)
	signal.SL = 0
	repo := newFakeRepo(signal)
	mock := market.NewMockClient()
	mock.SetQuote("XAUUSDc", 2399.8, 2400.2)
	e := newTestExecutor(repo, mock)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := repo.status(2); got != database.SignalStatusError {
		t.Errorf("status = %s, want error", got)
	}
	if len(mock.PlacedOrders()) != 0 {
		t.Errorf("invalid signal placed %d orders", len(mock.PlacedOrders()))
	}
}

func TestOutOfRangeRedispatchesAsPending(t *testing.T) {
	cases := []struct {
		name     string
		entry    float64
		bid, ask float64
		wantType string
	}{
		// entry above a falling market: the buy waits as a stop
		{"market below entry", 2500, 2400, 2400.4, market.OrderTypeStop},
		// entry below a runaway market: the buy rests as a limit
		{"market above entry", 2400, 2450, 2450.4, market.OrderTypeLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			signal := validSignal(3)
			signal.Range1, signal.Range2 = tc.entry, tc.entry
			repo := newFakeRepo(signal)
			mock := market.NewMockClient()
			mock.SetQuote("XAUUSDc", tc.bid, tc.ask)
			e := newTestExecutor(repo, mock)
			e.cfg.SuccessTarget = 1

			if err := e.RunOnce(context.Background()); err != nil {
				t.Fatalf("RunOnce: %v", err)
			}

			orders := mock.PlacedOrders()
			if len(orders) != 1 {
				t.Fatalf("orders = %d, want 1 re-dispatched pending order", len(orders))
			}
			if orders[0].Type != tc.wantType {
				t.Errorf("order type = %s, want %s", orders[0].Type, tc.wantType)
			}
			if orders[0].Price != tc.entry {
				t.Errorf("order price = %v, want entry %v", orders[0].Price, tc.entry)
			}
			if orders[0].Expiration == nil {
				t.Error("re-dispatched order lost its expiration")
			}
			if got := repo.status(3); got != database.SignalStatusCompleted {
				t.Errorf("status = %s, want completed", got)
			}
		})
	}
}

func TestDrawdownGateCancelsQueue(t *testing.T) {
	repo := newFakeRepo(validSignal(7))
	mock := market.NewMockClient()
	mock.SetQuote("XAUUSDc", 2399.8, 2400.2)
	e := newTestExecutorWithRisk(repo, mock, &fakeRisk{lots: 0.05, blocked: true})

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(mock.PlacedOrders()) != 0 {
		t.Errorf("gated executor placed %d orders, want 0", len(mock.PlacedOrders()))
	}
	if got := repo.status(7); got != database.SignalStatusCancelled {
		t.Errorf("status = %s, want cancelled", got)
	}
}

func TestSizingFailureRequeuesSignal(t *testing.T) {
	repo := newFakeRepo(validSignal(8))
	mock := market.NewMockClient()
	mock.SetQuote("XAUUSDc", 2399.8, 2400.2)
	risk := &fakeRisk{sizeErr: errors.New("dial tcp: connection refused")}
	e := newTestExecutorWithRisk(repo, mock, risk)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := repo.status(8); got != database.SignalStatusPending {
		t.Errorf("status = %s, want pending after transient sizing failure", got)
	}
	if len(mock.PlacedOrders()) != 0 {
		t.Errorf("unsized signal placed %d orders", len(mock.PlacedOrders()))
	}

	// the store recovers and the next cycle picks the signal back up
	risk.sizeErr = nil
	risk.lots = 0.05
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if got := repo.status(8); got != database.SignalStatusCompleted {
		t.Errorf("status = %s, want completed after retry", got)
	}
}

func TestReprocessesStaleClaims(t *testing.T) {
	signal := validSignal(9)
	repo := newFakeRepo(signal)
	repo.statuses[9] = database.SignalStatusProcessing // left behind by a crash
	mock := market.NewMockClient()
	mock.SetQuote("XAUUSDc", 2399.8, 2400.2)
	e := newTestExecutor(repo, mock)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := repo.status(9); got != database.SignalStatusCompleted {
		t.Errorf("status = %s, want stale claim re-executed to completed", got)
	}
}

func TestSingleOrderComment(t *testing.T) {
	signal := validSignal(4)
	signal.Comment = singleOrderComment
	repo := newFakeRepo(signal)
	mock := market.NewMockClient()
	mock.SetQuote("XAUUSDc", 2399.8, 2400.2)
	e := newTestExecutor(repo, mock)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := repo.tradeCount(); got != 1 {
		t.Errorf("trades = %d, want 1", got)
	}
}

func TestRetriesThenSucceeds(t *testing.T) {
	repo := newFakeRepo(validSignal(5))
	mock := market.NewMockClient()
	mock.SetQuote("XAUUSDc", 2399.8, 2400.2)
	e := newTestExecutor(repo, mock)
	e.cfg.SuccessTarget = 1

	var calls int
	mock.PlaceOrderFunc = func(req market.OrderRequest) (*market.OrderResult, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("requote")
		}
		return &market.OrderResult{Ticket: 99, Price: 2400.2, Volume: req.Volume}, nil
	}

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if got := repo.status(5); got != database.SignalStatusCompleted {
		t.Errorf("status = %s, want completed", got)
	}
	if calls != 3 {
		t.Errorf("broker calls = %d, want 2 failures then success", calls)
	}
}

func TestModalityParsing(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"Entry LIMIT order at 2400", ModalityLimit},
		{"place stop order now", ModalityStop},
		{"Entry from retrace trade ID 1. Expired 0.1 days", ModalityInstant},
		{"", ModalityInstant},
	}
	for _, tc := range cases {
		if got := modalityFromMessage(tc.message); got != tc.want {
			t.Errorf("modalityFromMessage(%q) = %s, want %s", tc.message, got, tc.want)
		}
	}
}

func TestClassifyPending(t *testing.T) {
	// buy below market rests as a limit, buy above as a stop
	if got := classifyPending(market.SideBuy, 2390, 2400); got != ModalityLimit {
		t.Errorf("buy below market = %s, want limit", got)
	}
	if got := classifyPending(market.SideBuy, 2410, 2400); got != ModalityStop {
		t.Errorf("buy above market = %s, want stop", got)
	}
	if got := classifyPending(market.SideSell, 2410, 2400); got != ModalityLimit {
		t.Errorf("sell above market = %s, want limit", got)
	}
	if got := classifyPending(market.SideSell, 2390, 2400); got != ModalityStop {
		t.Errorf("sell below market = %s, want stop", got)
	}
}

func TestParseExpiry(t *testing.T) {
	if d := parseExpiry("Entry from retrace trade ID 4. Expired 0.1 days"); d != 144*time.Minute {
		t.Errorf("expiry = %v, want 2h24m", d)
	}
	if d := parseExpiry("Expired 2 days"); d != 48*time.Hour {
		t.Errorf("expiry = %v, want 48h", d)
	}
	if d := parseExpiry("no lifetime here"); d != 0 {
		t.Errorf("expiry = %v, want 0", d)
	}
}

func TestPendingOrderReclassifiesOnce(t *testing.T) {
	signal := validSignal(6)
	signal.Message = "Entry LIMIT order. Expired 1 days"
	signal.Range1, signal.Range2 = 2410, 2410 // buy above market: limit is wrong
	repo := newFakeRepo(signal)
	mock := market.NewMockClient()
	mock.SetQuote("XAUUSDc", 2399.8, 2400.2)
	e := newTestExecutor(repo, mock)
	e.cfg.SuccessTarget = 1

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	orders := mock.PlacedOrders()
	if len(orders) != 1 {
		t.Fatalf("orders = %d, want 1", len(orders))
	}
	if orders[0].Type != market.OrderTypeStop {
		t.Errorf("order type = %s, want reclassified stop", orders[0].Type)
	}
	if orders[0].Expiration == nil {
		t.Error("pending order lost its expiration")
	}
}
