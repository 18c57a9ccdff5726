package risk

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
	today      *database.DailyMetric
	previous   *database.DailyMetric
	snapshots  []*database.AccountSnapshot
	cancelled  int64
	cancels    int
	metricGets int
}

func (f *fakeRepo) EnsureDailyMetric(_ context.Context, date time.Time, startingBalance float64) (*database.DailyMetric, error) {
	if f.today == nil {
		f.today = &database.DailyMetric{
			Date:            date,
			StartingBalance: startingBalance,
			EndingBalance:   startingBalance,
			PeakBalance:     startingBalance,
			LowestBalance:   startingBalance,
		}
	}
	return f.today, nil
}

func (f *fakeRepo) GetDailyMetric(_ context.Context, _ time.Time) (*database.DailyMetric, error) {
	f.metricGets++
	if f.today == nil {
		return nil, database.ErrNotFound
	}
	return f.today, nil
}

func (f *fakeRepo) GetLatestDailyMetricBefore(_ context.Context, _ time.Time) (*database.DailyMetric, error) {
	if f.previous == nil {
		return nil, database.ErrNotFound
	}
	return f.previous, nil
}

func (f *fakeRepo) UpdateDailyMetric(_ context.Context, metric *database.DailyMetric) error {
	f.today = metric
	return nil
}

func (f *fakeRepo) CreateAccountSnapshot(_ context.Context, snapshot *database.AccountSnapshot) error {
	f.snapshots = append(f.snapshots, snapshot)
	return nil
}

func (f *fakeRepo) CancelPendingSignals(_ context.Context) (int64, error) {
	f.cancels++
	return f.cancelled, nil
}

func newTestController(repo *fakeRepo) *Controller {
	cache := database.NewRedisBaselineCache(nil)
	c := NewController(repo, cache, zerolog.Nop(), "XAUUSDc", 596.8, 0.01, 10.0)
	c.now = func() time.Time { return time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC) }
	return c
}

func TestBaselineFallsBackToStartingCapital(t *testing.T) {
	c := newTestController(&fakeRepo{})

	baseline, err := c.Baseline(context.Background())
	if err != nil {
		t.Fatalf("Baseline: %v", err)
	}
	if baseline != 596.8 {
		t.Errorf("baseline = %v, want starting capital 596.8", baseline)
	}
}

func TestBaselineUsesPreviousEnding(t *testing.T) {
	repo := &fakeRepo{previous: &database.DailyMetric{EndingBalance: 712.4}}
	c := newTestController(repo)

	baseline, err := c.Baseline(context.Background())
	if err != nil {
		t.Fatalf("Baseline: %v", err)
	}
	if baseline != 712.4 {
		t.Errorf("baseline = %v, want previous ending 712.4", baseline)
	}
}

func TestBaselinePrefersTodayAndCaches(t *testing.T) {
	repo := &fakeRepo{today: &database.DailyMetric{StartingBalance: 650.0}}
	c := newTestController(repo)

	for i := 0; i < 3; i++ {
		baseline, err := c.Baseline(context.Background())
		if err != nil {
			t.Fatalf("Baseline: %v", err)
		}
		if baseline != 650.0 {
			t.Errorf("baseline = %v, want today's starting balance", baseline)
		}
	}
	if repo.metricGets != 1 {
		t.Errorf("repository hit %d times, want 1 (cached afterwards)", repo.metricGets)
	}
}

func TestLotSize(t *testing.T) {
	repo := &fakeRepo{today: &database.DailyMetric{StartingBalance: 10000}}
	c := newTestController(repo)

	// 1% of 10000 over a 2.0 stop: 50 risk-units, scaled to 0.5 lots
	lots, err := c.LotSize(context.Background(), 2402, 2400)
	if err != nil {
		t.Fatalf("LotSize: %v", err)
	}
	if math.Abs(lots-0.5) > 1e-9 {
		t.Errorf("lots = %v, want 0.5", lots)
	}
}

func TestLotSizeFloorsAtMinimum(t *testing.T) {
	c := newTestController(&fakeRepo{}) // small 596.8 baseline

	lots, err := c.LotSize(context.Background(), 2405, 2400)
	if err != nil {
		t.Fatalf("LotSize: %v", err)
	}
	if lots != 0.01 {
		t.Errorf("lots = %v, want broker minimum 0.01", lots)
	}
}

func TestLotSizeRejectsZeroStopDistance(t *testing.T) {
	c := newTestController(&fakeRepo{})
	if _, err := c.LotSize(context.Background(), 2400, 2400); err == nil {
		t.Error("expected error for zero stop distance")
	}
}

func TestDrawdownGateCancelsPendingSignals(t *testing.T) {
	repo := &fakeRepo{
		today: &database.DailyMetric{
			StartingBalance: 1000, EndingBalance: 1000,
			PeakBalance: 1000, LowestBalance: 1000,
		},
		cancelled: 4,
	}
	c := newTestController(repo)

	// 12% off the peak trips the 10% gate
	drawdown, err := c.UpdateFromAccount(context.Background(), &market.AccountInfo{Balance: 880, Equity: 875})
	if err != nil {
		t.Fatalf("UpdateFromAccount: %v", err)
	}
	if math.Abs(drawdown-12) > 1e-9 {
		t.Errorf("drawdown = %v, want 12", drawdown)
	}
	if repo.cancels != 1 {
		t.Errorf("cancel calls = %d, want 1", repo.cancels)
	}
	if repo.today.LowestBalance != 880 {
		t.Errorf("lowest = %v, want 880", repo.today.LowestBalance)
	}
	if len(repo.snapshots) != 1 || repo.snapshots[0].Drawdown != drawdown {
		t.Errorf("snapshot not recorded: %+v", repo.snapshots)
	}
}

func TestDrawdownBelowLimitLeavesSignals(t *testing.T) {
	repo := &fakeRepo{
		today: &database.DailyMetric{
			StartingBalance: 1000, EndingBalance: 1000,
			PeakBalance: 1000, LowestBalance: 1000,
		},
	}
	c := newTestController(repo)

	drawdown, err := c.UpdateFromAccount(context.Background(), &market.AccountInfo{Balance: 950})
	if err != nil {
		t.Fatalf("UpdateFromAccount: %v", err)
	}
	if math.Abs(drawdown-5) > 1e-9 {
		t.Errorf("drawdown = %v, want 5", drawdown)
	}
	if repo.cancels != 0 {
		t.Errorf("gate fired below the limit: %d cancel calls", repo.cancels)
	}
}

func TestTradingBlocked(t *testing.T) {
	// no metric recorded yet: nothing to block on
	c := newTestController(&fakeRepo{})
	blocked, err := c.TradingBlocked(context.Background())
	if err != nil {
		t.Fatalf("TradingBlocked: %v", err)
	}
	if blocked {
		t.Error("blocked with no metric recorded")
	}

	c = newTestController(&fakeRepo{today: &database.DailyMetric{DrawdownPercent: 5}})
	if blocked, _ = c.TradingBlocked(context.Background()); blocked {
		t.Error("blocked below the 10% limit")
	}

	c = newTestController(&fakeRepo{today: &database.DailyMetric{DrawdownPercent: 12}})
	if blocked, _ = c.TradingBlocked(context.Background()); !blocked {
		t.Error("not blocked at 12% drawdown")
	}
}

func TestPeakRatchetsUpward(t *testing.T) {
	repo := &fakeRepo{
		today: &database.DailyMetric{
			StartingBalance: 1000, EndingBalance: 1000,
			PeakBalance: 1000, LowestBalance: 1000,
		},
	}
	c := newTestController(repo)

	if _, err := c.UpdateFromAccount(context.Background(), &market.AccountInfo{Balance: 1100}); err != nil {
		t.Fatalf("UpdateFromAccount: %v", err)
	}
	if repo.today.PeakBalance != 1100 {
		t.Errorf("peak = %v, want 1100", repo.today.PeakBalance)
	}

	if _, err := c.UpdateFromAccount(context.Background(), &market.AccountInfo{Balance: 1050}); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if repo.today.PeakBalance != 1100 {
		t.Errorf("peak slipped to %v", repo.today.PeakBalance)
	}
}
