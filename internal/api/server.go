// Package api exposes the HTTP control surface: service start/stop,
// recent signals, daily risk metrics, session biases and Prometheus
// metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/scheduler"
)

// Store is the subset of the repository the API reads from
type Store interface {
	HealthCheck(ctx context.Context) error
	GetRecentSignals(ctx context.Context, limit int) ([]*database.Signal, error)
	GetTradesBySignal(ctx context.Context, signalID int64) ([]*database.Trade, error)
	GetDailyMetric(ctx context.Context, date time.Time) (*database.DailyMetric, error)
	GetSessionBiasesForDate(ctx context.Context, symbol string, date time.Time) ([]*database.SessionBias, error)
}

// Controls is the scheduler surface the API drives
type Controls interface {
	Statuses() []scheduler.Status
	Start(ctx context.Context, name string) error
	Stop(name string) error
}

// Config holds the HTTP server settings
type Config struct {
	Host           string
	Port           int
	AllowedOrigins string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Server is the HTTP control API
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	store      Store
	controls   Controls
	logger     zerolog.Logger
	symbol     string
}

// NewServer builds the router and wires all routes
func NewServer(cfg Config, store Store, controls Controls, logger zerolog.Logger, symbol string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		store:    store,
		controls: controls,
		logger:   logger.With().Str("component", "APIServer").Logger(),
		symbol:   symbol,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/services", s.handleServices)
		v1.POST("/services/:name/start", s.handleServiceStart)
		v1.POST("/services/:name/stop", s.handleServiceStop)
		v1.GET("/signals", s.handleSignals)
		v1.GET("/signals/:id/trades", s.handleSignalTrades)
		v1.GET("/metrics/daily", s.handleDailyMetric)
		v1.GET("/bias", s.handleSessionBias)
	}
}

// Start begins serving. Blocks until Shutdown is called or the listener
// fails.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
