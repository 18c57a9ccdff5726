package bias

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
	biases []*database.SessionBias
	events []*database.BOSEvent
}

func (f *fakeRepo) UpsertSessionBias(_ context.Context, bias *database.SessionBias) error {
	for i, b := range f.biases {
		if b.Session == bias.Session && b.Date.Equal(bias.Date) {
			f.biases[i] = bias
			return nil
		}
	}
	f.biases = append(f.biases, bias)
	return nil
}

func (f *fakeRepo) GetBOSEventsSince(_ context.Context, _ string, since time.Time) ([]*database.BOSEvent, error) {
	var out []*database.BOSEvent
	for _, e := range f.events {
		if !e.CandleTime.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestEstimator(repo *fakeRepo, data market.DataGateway) *Estimator {
	e := New(repo, data, zerolog.Nop(), "XAUUSDc", market.TimeframeM15, time.Hour, 90, 30, 10)
	e.now = func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) }
	return e
}

// trendCandles builds M15 candles inside London hours with a steady drift
func trendCandles(n int, drift float64) []market.Candle {
	start := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	price := 2400.0
	for i := range candles {
		// wrap into the 8:00-15:45 window on successive days
		day := i / 32
		slot := i % 32
		candles[i] = market.Candle{
			Time:  start.AddDate(0, 0, day).Add(time.Duration(slot) * 15 * time.Minute),
			Open:  price,
			High:  price + 1,
			Low:   price - 1,
			Close: price + drift,
		}
		price += drift
	}
	return candles
}

func TestNeutralOnSmallSample(t *testing.T) {
	repo := &fakeRepo{}
	e := newTestEstimator(repo, market.NewMockClient())

	estimate := e.estimateSession(trendCandles(10, 0.5), nil, sessions[1])
	if estimate.Bias != "neutral" {
		t.Errorf("bias = %s, want neutral", estimate.Bias)
	}
	if estimate.Confidence != 0.5 || estimate.Posterior != 0.5 {
		t.Errorf("confidence/posterior = %v/%v, want 0.5/0.5", estimate.Confidence, estimate.Posterior)
	}
}

func TestNeutralOnZeroVariance(t *testing.T) {
	repo := &fakeRepo{}
	e := newTestEstimator(repo, market.NewMockClient())

	// identical returns everywhere: std is zero regardless of sample size
	candles := trendCandles(100, 0)
	estimate := e.estimateSession(candles, nil, sessions[1])
	if estimate.Bias != "neutral" {
		t.Errorf("bias = %s, want neutral", estimate.Bias)
	}
}

func TestBullishDrift(t *testing.T) {
	repo := &fakeRepo{}
	e := newTestEstimator(repo, market.NewMockClient())

	estimate := e.estimateSession(trendCandles(200, 0.5), nil, sessions[1])
	if estimate.Bias != "bullish" {
		t.Fatalf("bias = %s, want bullish", estimate.Bias)
	}
	if estimate.ZScore <= 0 {
		t.Errorf("z = %v, want positive", estimate.ZScore)
	}
	if estimate.ZProbBullish <= 0.5 {
		t.Errorf("prior = %v, want > 0.5", estimate.ZProbBullish)
	}
	if estimate.Confidence < 0.5 || estimate.Confidence > 1.0 {
		t.Errorf("confidence out of range: %v", estimate.Confidence)
	}
}

func TestBayesUpdate(t *testing.T) {
	london := sessions[1]
	at := func(hour int) time.Time {
		return time.Date(2025, 6, 9, hour, 0, 0, 0, time.UTC)
	}

	t.Run("no events keeps prior", func(t *testing.T) {
		if got := bayesUpdate(0.7, nil, london); got != 0.7 {
			t.Errorf("posterior = %v, want prior", got)
		}
	})

	t.Run("events outside session ignored", func(t *testing.T) {
		events := []*database.BOSEvent{
			{Direction: database.DirectionBearish, CandleTime: at(2)}, // Asia
		}
		if got := bayesUpdate(0.7, events, london); got != 0.7 {
			t.Errorf("posterior = %v, want prior", got)
		}
	})

	t.Run("bearish events pull posterior down", func(t *testing.T) {
		events := []*database.BOSEvent{
			{Direction: database.DirectionBearish, CandleTime: at(9)},
			{Direction: database.DirectionBearish, CandleTime: at(10)},
			{Direction: database.DirectionBearish, CandleTime: at(11)},
		}
		// L_bull = 1/5, L_bear = 4/5, prior 0.5: posterior = 0.2
		got := bayesUpdate(0.5, events, london)
		if math.Abs(got-0.2) > 1e-9 {
			t.Errorf("posterior = %v, want 0.2", got)
		}
	})
}

func TestRunOnceIsDailyIdempotent(t *testing.T) {
	repo := &fakeRepo{}
	mock := market.NewMockClient()
	mock.SetCandles("XAUUSDc", market.TimeframeM15, trendCandles(300, 0.5))
	e := newTestEstimator(repo, mock)

	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(repo.biases) != 3 {
		t.Fatalf("expected 3 session rows, got %d", len(repo.biases))
	}

	// same day again: nothing recomputed
	repo.biases = nil
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if len(repo.biases) != 0 {
		t.Errorf("rerun recomputed %d rows on the same day", len(repo.biases))
	}

	// next day: runs again
	e.now = func() time.Time { return time.Date(2025, 6, 11, 0, 5, 0, 0, time.UTC) }
	if err := e.RunOnce(context.Background()); err != nil {
		t.Fatalf("next-day RunOnce: %v", err)
	}
	if len(repo.biases) != 3 {
		t.Errorf("expected 3 rows on the new day, got %d", len(repo.biases))
	}
}
