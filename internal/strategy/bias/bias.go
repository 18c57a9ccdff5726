// Package bias estimates a per-session directional bias once per day. A
// z-test on session-filtered returns sets the prior and the recent break
// of structure history updates it into a Bayesian posterior.
package bias

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/market"
)

// Trading sessions in UTC
const (
	SessionAsia    = "Asia"
	SessionLondon  = "London"
	SessionNewYork = "NewYork"
)

// sessionWindow is a [start, end) hour range in UTC
type sessionWindow struct {
	name  string
	start int
	end   int
}

var sessions = []sessionWindow{
	{SessionAsia, 0, 8},
	{SessionLondon, 8, 16},
	{SessionNewYork, 16, 23},
}

// Repository is the persistence surface the estimator needs
type Repository interface {
	UpsertSessionBias(ctx context.Context, bias *database.SessionBias) error
	GetBOSEventsSince(ctx context.Context, symbol string, since time.Time) ([]*database.BOSEvent, error)
}

// Estimator recomputes the session biases on the first cycle of each UTC day
type Estimator struct {
	repo            Repository
	data            market.DataGateway
	logger          zerolog.Logger
	symbol          string
	timeframe       string
	interval        time.Duration
	zWindowDays     int
	minSampleSize   int
	bayesWindowDays int
	now             func() time.Time
	lastRunDate     string
}

// New creates the estimator
func New(repo Repository, data market.DataGateway, logger zerolog.Logger, symbol, timeframe string, interval time.Duration, zWindowDays, minSampleSize, bayesWindowDays int) *Estimator {
	return &Estimator{
		repo:            repo,
		data:            data,
		logger:          logger.With().Str("component", "SessionBias").Logger(),
		symbol:          symbol,
		timeframe:       timeframe,
		interval:        interval,
		zWindowDays:     zWindowDays,
		minSampleSize:   minSampleSize,
		bayesWindowDays: bayesWindowDays,
		now:             time.Now,
	}
}

func (e *Estimator) Name() string            { return "session_bias" }
func (e *Estimator) Description() string     { return "Daily session bias estimation" }
func (e *Estimator) Interval() time.Duration { return e.interval }

// RunOnce recomputes all sessions once per UTC day; later cycles on the
// same day are no-ops.
func (e *Estimator) RunOnce(ctx context.Context) error {
	today := e.now().UTC().Format("2006-01-02")
	if e.lastRunDate == today {
		return nil
	}
	if err := e.EstimateAll(ctx); err != nil {
		return err
	}
	e.lastRunDate = today
	return nil
}

// EstimateAll recomputes and stores the bias for every session
func (e *Estimator) EstimateAll(ctx context.Context) error {
	// candles per day on M15 is 96; fetch the full z-test window
	limit := e.zWindowDays * 96
	candles, err := e.data.Candles(ctx, e.symbol, e.timeframe, limit)
	if err != nil {
		return err
	}

	now := e.now().UTC()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	events, err := e.repo.GetBOSEventsSince(ctx, e.symbol, now.AddDate(0, 0, -e.bayesWindowDays))
	if err != nil {
		return err
	}

	for _, session := range sessions {
		estimate := e.estimateSession(candles, events, session)
		estimate.Symbol = e.symbol
		estimate.Session = session.name
		estimate.Date = date
		if err := e.repo.UpsertSessionBias(ctx, estimate); err != nil {
			return err
		}
		e.logger.Info().
			Str("session", session.name).
			Str("bias", estimate.Bias).
			Float64("posterior", estimate.Posterior).
			Float64("confidence", estimate.Confidence).
			Int("sample_size", estimate.SampleSize).
			Msg("Session bias updated")
	}
	return nil
}

// estimateSession runs the z-test prior and the Bayesian update for one session
func (e *Estimator) estimateSession(candles []market.Candle, events []*database.BOSEvent, session sessionWindow) *database.SessionBias {
	returns := sessionReturns(candles, session)
	n := len(returns)

	mean, std := meanStd(returns)
	if n < e.minSampleSize || std == 0 {
		return &database.SessionBias{
			ZProbBullish: 0.5,
			Posterior:    0.5,
			Bias:         "neutral",
			Confidence:   0.5,
			SampleSize:   n,
		}
	}

	z := mean / (std / math.Sqrt(float64(n)))
	prior := normCDF(z)
	pValue := 1 - normCDF(math.Abs(z))
	confidence := clamp(1-pValue, 0.5, 1.0)

	posterior := bayesUpdate(prior, events, session)

	bias := "bearish"
	if posterior >= 0.5 {
		bias = "bullish"
	}

	return &database.SessionBias{
		ZScore:       z,
		ZProbBullish: prior,
		Posterior:    posterior,
		Bias:         bias,
		Confidence:   confidence,
		SampleSize:   n,
	}
}

// bayesUpdate folds the session's recent BOS directions into the prior with
// add-one smoothing. No events leaves the prior untouched.
func bayesUpdate(prior float64, events []*database.BOSEvent, session sessionWindow) float64 {
	var bull, bear int
	for _, ev := range events {
		hour := ev.CandleTime.UTC().Hour()
		if hour < session.start || hour >= session.end {
			continue
		}
		if ev.Direction == database.DirectionBullish {
			bull++
		} else {
			bear++
		}
	}
	total := bull + bear
	if total == 0 {
		return prior
	}

	likelihoodBull := float64(bull+1) / float64(total+2)
	likelihoodBear := float64(bear+1) / float64(total+2)
	return (likelihoodBull * prior) / (likelihoodBull*prior + likelihoodBear*(1-prior))
}

// sessionReturns extracts close-to-close percentage returns for candles
// inside the session window.
func sessionReturns(candles []market.Candle, session sessionWindow) []float64 {
	var returns []float64
	for i := 1; i < len(candles); i++ {
		hour := candles[i].Time.UTC().Hour()
		if hour < session.start || hour >= session.end {
			continue
		}
		prev := candles[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (candles[i].Close-prev)/prev)
	}
	return returns
}

// meanStd returns the mean and sample standard deviation
func meanStd(values []float64) (mean, std float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	if n < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}

// normCDF is the standard normal cumulative distribution function
func normCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
