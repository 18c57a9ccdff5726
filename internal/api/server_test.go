package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/scheduler"
)

type fakeStore struct {
	healthy bool
	signals []*database.Signal
	trades  map[int64][]*database.Trade
	metric  *database.DailyMetric
	biases  []*database.SessionBias
}

func (f *fakeStore) HealthCheck(context.Context) error {
	if !f.healthy {
		return context.DeadlineExceeded
	}
	return nil
}

func (f *fakeStore) GetRecentSignals(_ context.Context, limit int) ([]*database.Signal, error) {
	if limit < len(f.signals) {
		return f.signals[:limit], nil
	}
	return f.signals, nil
}

func (f *fakeStore) GetTradesBySignal(_ context.Context, signalID int64) ([]*database.Trade, error) {
	return f.trades[signalID], nil
}

func (f *fakeStore) GetDailyMetric(context.Context, time.Time) (*database.DailyMetric, error) {
	if f.metric == nil {
		return nil, database.ErrNotFound
	}
	return f.metric, nil
}

func (f *fakeStore) GetSessionBiasesForDate(context.Context, string, time.Time) ([]*database.SessionBias, error) {
	return f.biases, nil
}

type fakeControls struct {
	statuses []scheduler.Status
	started  []string
	stopped  []string
}

func (f *fakeControls) Statuses() []scheduler.Status { return f.statuses }

func (f *fakeControls) Start(_ context.Context, name string) error {
	if !f.knows(name) {
		return scheduler.ErrServiceNotFound
	}
	f.started = append(f.started, name)
	return nil
}

func (f *fakeControls) Stop(name string) error {
	if !f.knows(name) {
		return scheduler.ErrServiceNotFound
	}
	f.stopped = append(f.stopped, name)
	return nil
}

func (f *fakeControls) knows(name string) bool {
	for _, st := range f.statuses {
		if st.Name == name {
			return true
		}
	}
	return false
}

func newTestServer(store *fakeStore, controls *fakeControls) *Server {
	cfg := Config{Host: "127.0.0.1", Port: 0, AllowedOrigins: "*"}
	return NewServer(cfg, store, controls, zerolog.Nop(), "XAUUSDc")
}

func doRequest(s *Server, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&fakeStore{healthy: true}, &fakeControls{})
	if w := doRequest(s, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Errorf("healthy status = %d, want 200", w.Code)
	}

	s = newTestServer(&fakeStore{healthy: false}, &fakeControls{})
	if w := doRequest(s, http.MethodGet, "/health"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", w.Code)
	}
}

func TestServiceStartStop(t *testing.T) {
	controls := &fakeControls{statuses: []scheduler.Status{
		{Name: "signal_executor", State: "stopped"},
	}}
	s := newTestServer(&fakeStore{healthy: true}, controls)

	if w := doRequest(s, http.MethodPost, "/api/v1/services/signal_executor/start"); w.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}
	if len(controls.started) != 1 || controls.started[0] != "signal_executor" {
		t.Errorf("started = %v", controls.started)
	}

	if w := doRequest(s, http.MethodPost, "/api/v1/services/signal_executor/stop"); w.Code != http.StatusOK {
		t.Fatalf("stop status = %d", w.Code)
	}

	if w := doRequest(s, http.MethodPost, "/api/v1/services/no_such/start"); w.Code != http.StatusNotFound {
		t.Errorf("unknown service status = %d, want 404", w.Code)
	}
}

func TestServicesList(t *testing.T) {
	controls := &fakeControls{statuses: []scheduler.Status{
		{Name: "bos_fvg_pipeline", Description: "BOS + FVG retrace strategy", State: "running"},
		{Name: "signal_executor", Description: "Places orders for pending signals", State: "stopped"},
	}}
	s := newTestServer(&fakeStore{healthy: true}, controls)

	w := doRequest(s, http.MethodGet, "/api/v1/services")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body struct {
		Services []scheduler.Status `json:"services"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Services) != 2 || body.Services[0].Name != "bos_fvg_pipeline" {
		t.Errorf("services = %+v", body.Services)
	}
}

func TestSignalsEndpoint(t *testing.T) {
	store := &fakeStore{
		healthy: true,
		signals: []*database.Signal{
			{ID: 2, Instrument: "XAUUSDc", Action: "buy", Status: "completed"},
			{ID: 1, Instrument: "XAUUSDc", Action: "sell", Status: "failed"},
		},
	}
	s := newTestServer(store, &fakeControls{})

	w := doRequest(s, http.MethodGet, "/api/v1/signals?limit=1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d, want 1", body.Count)
	}

	if w := doRequest(s, http.MethodGet, "/api/v1/signals?limit=0"); w.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", w.Code)
	}
}

func TestDailyMetricEndpoint(t *testing.T) {
	s := newTestServer(&fakeStore{healthy: true}, &fakeControls{})
	if w := doRequest(s, http.MethodGet, "/api/v1/metrics/daily"); w.Code != http.StatusNotFound {
		t.Errorf("missing metric status = %d, want 404", w.Code)
	}

	store := &fakeStore{healthy: true, metric: &database.DailyMetric{StartingBalance: 596.8, EndingBalance: 612.3}}
	s = newTestServer(store, &fakeControls{})
	if w := doRequest(s, http.MethodGet, "/api/v1/metrics/daily"); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	if w := doRequest(s, http.MethodGet, "/api/v1/metrics/daily?date=not-a-date"); w.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", w.Code)
	}
}

func TestSessionBiasEndpoint(t *testing.T) {
	store := &fakeStore{
		healthy: true,
		biases: []*database.SessionBias{
			{Session: "Asia", Bias: "bullish", Confidence: 0.74},
			{Session: "London", Bias: "bearish", Confidence: 0.61},
		},
	}
	s := newTestServer(store, &fakeControls{})

	w := doRequest(s, http.MethodGet, "/api/v1/bias?date=2025-06-10")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Symbol   string                  `json:"symbol"`
		Sessions []*database.SessionBias `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Symbol != "XAUUSDc" || len(body.Sessions) != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	s := newTestServer(&fakeStore{healthy: true}, &fakeControls{})
	w := doRequest(s, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("metrics status = %d, want 200", w.Code)
	}
}
