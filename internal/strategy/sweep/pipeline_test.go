package sweep

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

type fakeRepo struct {
	contexts   []*database.MarketContext
	sweeps     []*database.SweepEvent
	rejections []*database.RejectionEvent
	signals    []*database.Signal
	nextID     int64
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) CreateMarketContext(_ context.Context, mc *database.MarketContext) error {
	mc.ID = f.id()
	mc.CreatedAt = time.Now().UTC()
	f.contexts = append(f.contexts, mc)
	return nil
}

func (f *fakeRepo) GetLatestMarketContext(_ context.Context, _, _ string) (*database.MarketContext, error) {
	if len(f.contexts) == 0 {
		return nil, database.ErrNotFound
	}
	return f.contexts[len(f.contexts)-1], nil
}

func (f *fakeRepo) GetMarketContextByID(_ context.Context, id int64) (*database.MarketContext, error) {
	for _, mc := range f.contexts {
		if mc.ID == id {
			return mc, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeRepo) MarkContextSwept(_ context.Context, id int64, side string) error {
	for _, mc := range f.contexts {
		if mc.ID == id {
			if side == database.SweepSideSell {
				mc.SweptLow = true
			} else {
				mc.SweptHigh = true
			}
		}
	}
	return nil
}

func (f *fakeRepo) UpdateContextProcessedTime(_ context.Context, id int64, t time.Time) error {
	for _, mc := range f.contexts {
		if mc.ID == id {
			mc.LastProcessedTime = t
		}
	}
	return nil
}

func (f *fakeRepo) CreateSweepEvent(_ context.Context, event *database.SweepEvent) (bool, error) {
	for _, e := range f.sweeps {
		if e.ContextID == event.ContextID && e.Side == event.Side && e.CandleTime.Equal(event.CandleTime) {
			return false, nil
		}
	}
	event.ID = f.id()
	if event.Status == "" {
		event.Status = database.SweepStatusPending
	}
	f.sweeps = append(f.sweeps, event)
	return true, nil
}

func (f *fakeRepo) GetPendingSweeps(_ context.Context, _ string) ([]*database.SweepEvent, error) {
	var out []*database.SweepEvent
	for _, e := range f.sweeps {
		if e.Status == database.SweepStatusPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateSweepStatus(_ context.Context, id int64, status string) error {
	for _, e := range f.sweeps {
		if e.ID == id {
			e.Status = status
		}
	}
	return nil
}

func (f *fakeRepo) GetSweepEventByID(_ context.Context, id int64) (*database.SweepEvent, error) {
	for _, e := range f.sweeps {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeRepo) CreateRejectionEvent(_ context.Context, event *database.RejectionEvent) error {
	event.ID = f.id()
	if event.SetupStatus == "" {
		event.SetupStatus = database.SetupStatusPending
	}
	f.rejections = append(f.rejections, event)
	return nil
}

func (f *fakeRepo) GetPendingRejections(_ context.Context) ([]*database.RejectionEvent, error) {
	var out []*database.RejectionEvent
	for _, e := range f.rejections {
		if e.SetupStatus == database.SetupStatusPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateRejectionStatus(_ context.Context, id int64, status string) error {
	for _, e := range f.rejections {
		if e.ID == id {
			e.SetupStatus = status
		}
	}
	return nil
}

func (f *fakeRepo) CreateSignal(_ context.Context, signal *database.Signal) error {
	signal.ID = f.id()
	f.signals = append(f.signals, signal)
	return nil
}

var testStart = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func mkCandles(start time.Time, step time.Duration, ohlc [][4]float64) []market.Candle {
	candles := make([]market.Candle, len(ohlc))
	for i, v := range ohlc {
		candles[i] = market.Candle{
			Time:  start.Add(time.Duration(i) * step),
			Open:  v[0],
			High:  v[1],
			Low:   v[2],
			Close: v[3],
		}
	}
	return candles
}

func flatOHLC(n int, v [4]float64) [][4]float64 {
	out := make([][4]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newTestPipeline(repo *fakeRepo, data market.DataGateway) *Pipeline {
	return New(repo, data, zerolog.Nop(), "XAUUSDc", market.TimeframeM15, time.Minute)
}

func seedStructuralData(mock *market.MockClient) {
	// H1 series with a confirmed swing high at 2420 and swing low at 2380
	h1 := flatOHLC(12, [4]float64{2400, 2405, 2395, 2400})
	h1[4] = [4]float64{2400, 2420, 2398, 2410}
	h1[6] = [4]float64{2400, 2404, 2380, 2390}
	mock.SetCandles("XAUUSDc", market.TimeframeH1, mkCandles(testStart.Add(-24*time.Hour), time.Hour, h1))

	// rising H4 closes: bullish higher-timeframe bias
	h4 := [][4]float64{
		{2390, 2395, 2385, 2391}, {2391, 2396, 2386, 2393}, {2393, 2398, 2388, 2395},
		{2395, 2400, 2390, 2397}, {2397, 2402, 2392, 2399}, {2399, 2404, 2394, 2401},
	}
	mock.SetCandles("XAUUSDc", market.TimeframeH4, mkCandles(testStart.Add(-36*time.Hour), 4*time.Hour, h4))

	d1 := [][4]float64{
		{2380, 2410, 2370, 2400},
		{2400, 2425, 2385, 2415}, // previous day
		{2415, 2420, 2405, 2410},
	}
	mock.SetCandles("XAUUSDc", market.TimeframeD1, mkCandles(testStart.Add(-72*time.Hour), 24*time.Hour, d1))
}

func TestContextCreatedFromStructure(t *testing.T) {
	repo := &fakeRepo{}
	mock := market.NewMockClient()
	seedStructuralData(mock)
	p := newTestPipeline(repo, mock)

	m15 := mkCandles(testStart, 15*time.Minute, flatOHLC(5, [4]float64{2400, 2405, 2395, 2400}))
	if err := p.refreshContext(context.Background(), m15); err != nil {
		t.Fatalf("refreshContext: %v", err)
	}

	if len(repo.contexts) != 1 {
		t.Fatalf("expected 1 context, got %d", len(repo.contexts))
	}
	mc := repo.contexts[0]
	if mc.RecentHigh != 2420 || mc.RecentLow != 2380 {
		t.Errorf("extremes = %v/%v, want 2420/2380", mc.RecentHigh, mc.RecentLow)
	}
	if mc.H4Bias != "bullish" {
		t.Errorf("h4 bias = %s, want bullish", mc.H4Bias)
	}
	if mc.PrevDayHigh != 2425 || mc.PrevDayLow != 2385 || mc.PrevDayClose != 2415 {
		t.Errorf("prev day levels = %v/%v/%v", mc.PrevDayHigh, mc.PrevDayLow, mc.PrevDayClose)
	}
	if !mc.LastProcessedTime.Equal(m15[len(m15)-1].Time) {
		t.Errorf("watermark = %v, want last candle time", mc.LastProcessedTime)
	}

	// same structure again: no new context
	if err := p.refreshContext(context.Background(), m15); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if len(repo.contexts) != 1 {
		t.Errorf("context duplicated without new extreme: %d", len(repo.contexts))
	}
}

func TestDetectSweepMarksContext(t *testing.T) {
	repo := &fakeRepo{}
	p := newTestPipeline(repo, market.NewMockClient())

	repo.contexts = append(repo.contexts, &database.MarketContext{
		ID: 1, Symbol: "XAUUSDc", Timeframe: market.TimeframeM15,
		RecentHigh: 2420, RecentLow: 2380,
		LastProcessedTime: testStart,
		CreatedAt:         time.Now().UTC(),
	})

	candles := mkCandles(testStart, 15*time.Minute, [][4]float64{
		{2400, 2405, 2395, 2400}, // at the watermark, skipped
		{2400, 2410, 2398, 2408},
		{2408, 2422.5, 2406, 2415}, // trades through the recent high
		{2415, 2418, 2410, 2412},
	})

	if err := p.detectSweeps(context.Background(), candles); err != nil {
		t.Fatalf("detectSweeps: %v", err)
	}

	if len(repo.sweeps) != 1 {
		t.Fatalf("expected 1 sweep, got %d", len(repo.sweeps))
	}
	sweep := repo.sweeps[0]
	if sweep.Side != database.SweepSideBuy || sweep.SweepLevel != 2420 || sweep.Extreme != 2422.5 {
		t.Errorf("unexpected sweep: %+v", sweep)
	}
	if !repo.contexts[0].SweptHigh {
		t.Error("context not marked swept")
	}
	if !repo.contexts[0].LastProcessedTime.Equal(candles[3].Time) {
		t.Errorf("watermark = %v, want newest candle", repo.contexts[0].LastProcessedTime)
	}

	// rerun over the same candles: nothing new
	if err := p.detectSweeps(context.Background(), candles); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(repo.sweeps) != 1 {
		t.Errorf("sweep duplicated: %d", len(repo.sweeps))
	}
}

func TestEvaluateRejectionOutcomes(t *testing.T) {
	level := 2420.0
	sweepBuy := &database.SweepEvent{Side: database.SweepSideBuy, SweepLevel: level}
	atr := 2.0

	t.Run("instant on full body", func(t *testing.T) {
		after := mkCandles(testStart, 15*time.Minute, [][4]float64{
			{2421, 2423, 2415, 2417}, // body 4 >= 0.8*2, close below level
		})
		outcome, c, confirmType := evaluateRejection(after, sweepBuy, atr)
		if outcome != database.SweepStatusConfirmed || confirmType != database.ConfirmInstant {
			t.Fatalf("outcome = %s/%s", outcome, confirmType)
		}
		if c.Close != 2417 {
			t.Errorf("confirm close = %v", c.Close)
		}
	})

	t.Run("delayed after two small closes", func(t *testing.T) {
		after := mkCandles(testStart, 15*time.Minute, [][4]float64{
			{2419.5, 2421, 2418.5, 2419}, // small body below level
			{2419, 2420.5, 2418, 2418.5},
		})
		outcome, c, confirmType := evaluateRejection(after, sweepBuy, atr)
		if outcome != database.SweepStatusConfirmed || confirmType != database.ConfirmDelayed {
			t.Fatalf("outcome = %s/%s", outcome, confirmType)
		}
		if c.Close != 2418.5 {
			t.Errorf("confirm close = %v", c.Close)
		}
	})

	t.Run("invalidated when price reclaims the level", func(t *testing.T) {
		after := mkCandles(testStart, 15*time.Minute, [][4]float64{
			{2419.5, 2420, 2418.5, 2419}, // small close below
			{2419, 2425, 2419, 2424},     // trades back through
			{2424, 2426, 2422, 2425},
		})
		outcome, _, _ := evaluateRejection(after, sweepBuy, atr)
		if outcome != database.SweepStatusInvalidated {
			t.Fatalf("outcome = %s, want invalidated", outcome)
		}
	})

	t.Run("expired without confirmation", func(t *testing.T) {
		after := mkCandles(testStart, 15*time.Minute, flatOHLC(3, [4]float64{2421, 2423, 2420.5, 2422}))
		outcome, _, _ := evaluateRejection(after, sweepBuy, atr)
		if outcome != database.SweepStatusExpired {
			t.Fatalf("outcome = %s, want expired", outcome)
		}
	})

	t.Run("undecided while candles remain", func(t *testing.T) {
		after := mkCandles(testStart, 15*time.Minute, flatOHLC(2, [4]float64{2421, 2423, 2420.5, 2422}))
		outcome, _, _ := evaluateRejection(after, sweepBuy, atr)
		if outcome != "" {
			t.Fatalf("outcome = %s, want undecided", outcome)
		}
	})
}

func TestPublishSetupPricing(t *testing.T) {
	repo := &fakeRepo{}
	p := newTestPipeline(repo, market.NewMockClient())

	repo.contexts = append(repo.contexts, &database.MarketContext{
		ID: 1, RecentHigh: 2420, RecentLow: 2380,
	})
	repo.sweeps = append(repo.sweeps, &database.SweepEvent{
		ID: 2, ContextID: 1, Side: database.SweepSideBuy,
		SweepLevel: 2420, Status: database.SweepStatusConfirmed,
	})

	// constant 2-point true range: ATR is exactly 2
	candles := mkCandles(testStart, 15*time.Minute, flatOHLC(20, [4]float64{2418, 2419, 2417, 2418}))
	repo.rejections = append(repo.rejections, &database.RejectionEvent{
		ID: 3, SweepEventID: 2, Direction: database.DirectionBearish,
		ConfirmType: database.ConfirmInstant, RejectionClose: 2417,
		CandleTime:  candles[len(candles)-1].Time,
		SetupStatus: database.SetupStatusPending,
	})

	if err := p.publishSetups(context.Background(), candles); err != nil {
		t.Fatalf("publishSetups: %v", err)
	}

	if len(repo.signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(repo.signals))
	}
	sig := repo.signals[0]
	if sig.Action != market.SideSell {
		t.Errorf("action = %s, want sell", sig.Action)
	}
	// entry 2417, SL = 2420 + 2 = 2422, TP1 = 2417 - 2*5 = 2407, TP2 = recent low
	if sig.Range1 != 2417 || math.Abs(sig.SL-2422) > 1e-9 {
		t.Errorf("entry/sl = %v/%v", sig.Range1, sig.SL)
	}
	if math.Abs(sig.TP1-2407) > 1e-9 || sig.TP2 != 2380 {
		t.Errorf("tp1/tp2 = %v/%v, want 2407/2380", sig.TP1, sig.TP2)
	}
	if sig.Comment != "Liquidity Sweep Rejection" {
		t.Errorf("comment = %q", sig.Comment)
	}
	if repo.rejections[0].SetupStatus != database.SetupStatusProcessed {
		t.Errorf("rejection status = %s", repo.rejections[0].SetupStatus)
	}
}
