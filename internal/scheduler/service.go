// Package scheduler runs the bot's background services. Each service is a
// periodic task registered by name; services start and stop independently
// and a crash in one tick never takes the loop down.
package scheduler

import (
	"context"
	"time"
)

// Service is a periodic background task
type Service interface {
	// Name uniquely identifies the service within the scheduler.
	Name() string
	// Description is a short human-readable summary for the status API.
	Description() string
	// Interval is the pause between runs.
	Interval() time.Duration
	// RunOnce performs one cycle of work. Errors are logged by the
	// scheduler; they do not stop the loop.
	RunOnce(ctx context.Context) error
}

// Status describes one registered service for the control API
type Status struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	State       string `json:"state"` // running or stopped
}

// Func adapts a plain function into a Service
type Func struct {
	ServiceName string
	Desc        string
	Every       time.Duration
	Run         func(ctx context.Context) error
}

func (f Func) Name() string                      { return f.ServiceName }
func (f Func) Description() string               { return f.Desc }
func (f Func) Interval() time.Duration           { return f.Every }
func (f Func) RunOnce(ctx context.Context) error { return f.Run(ctx) }
