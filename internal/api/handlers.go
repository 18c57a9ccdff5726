package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gold-trading-bot/internal/database"
	"gold-trading-bot/internal/scheduler"
)

const defaultSignalLimit = 50

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": s.controls.Statuses()})
}

func (s *Server) handleServiceStart(c *gin.Context) {
	name := c.Param("name")
	if err := s.controls.Start(c.Request.Context(), name); err != nil {
		s.serviceError(c, name, err)
		return
	}
	s.logger.Info().Str("service", name).Msg("Service started via API")
	c.JSON(http.StatusOK, gin.H{"service": name, "state": "running"})
}

func (s *Server) handleServiceStop(c *gin.Context) {
	name := c.Param("name")
	if err := s.controls.Stop(name); err != nil {
		s.serviceError(c, name, err)
		return
	}
	s.logger.Info().Str("service", name).Msg("Service stopped via API")
	c.JSON(http.StatusOK, gin.H{"service": name, "state": "stopped"})
}

func (s *Server) serviceError(c *gin.Context, name string, err error) {
	if errors.Is(err, scheduler.ErrServiceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown service: " + name})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handleSignals(c *gin.Context) {
	limit := defaultSignalLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = parsed
	}

	signals, err := s.store.GetRecentSignals(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load signals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (s *Server) handleSignalTrades(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signal id"})
		return
	}

	trades, err := s.store.GetTradesBySignal(c.Request.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Int64("signal_id", id).Msg("Failed to load trades")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trades"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

// handleDailyMetric returns the risk ledger for a day. Defaults to today
// (UTC); an explicit date comes as ?date=YYYY-MM-DD.
func (s *Server) handleDailyMetric(c *gin.Context) {
	date, ok := s.dateParam(c)
	if !ok {
		return
	}

	metric, err := s.store.GetDailyMetric(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no metrics recorded for date"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to load daily metric")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load daily metric"})
		return
	}
	c.JSON(http.StatusOK, metric)
}

func (s *Server) handleSessionBias(c *gin.Context) {
	date, ok := s.dateParam(c)
	if !ok {
		return
	}

	biases, err := s.store.GetSessionBiasesForDate(c.Request.Context(), s.symbol, date)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load session biases")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session biases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": s.symbol, "date": date.Format("2006-01-02"), "sessions": biases})
}

func (s *Server) dateParam(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), true
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return date, true
}
