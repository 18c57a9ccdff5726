package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrServiceNotFound is returned when starting or stopping an unknown service
var ErrServiceNotFound = fmt.Errorf("service not found")

// Scheduler owns the registered services and their run loops
type Scheduler struct {
	mu       sync.Mutex
	services map[string]*managedService
	order    []string
	logger   zerolog.Logger
}

type managedService struct {
	svc    Service
	cancel context.CancelFunc
	done   chan struct{}
}

func (m *managedService) running() bool {
	return m.cancel != nil
}

// New creates an empty scheduler
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		services: make(map[string]*managedService),
		logger:   logger.With().Str("component", "Scheduler").Logger(),
	}
}

// Register adds a service. Registering the same name twice is a no-op.
func (s *Scheduler) Register(svc Service) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[svc.Name()]; exists {
		s.logger.Warn().Str("service", svc.Name()).Msg("Service already registered, skipping")
		return
	}
	s.services[svc.Name()] = &managedService{svc: svc}
	s.order = append(s.order, svc.Name())
	s.logger.Info().
		Str("service", svc.Name()).
		Dur("interval", svc.Interval()).
		Msg("Service registered")
}

// StartAll starts every registered service that is not already running
func (s *Scheduler) StartAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		s.startLocked(ctx, name)
	}
}

// Start starts one service by name
func (s *Scheduler) Start(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[name]; !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	s.startLocked(ctx, name)
	return nil
}

func (s *Scheduler) startLocked(ctx context.Context, name string) {
	ms := s.services[name]
	if ms.running() {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	ms.cancel = cancel
	ms.done = make(chan struct{})

	go s.runLoop(runCtx, ms.svc, ms.done)
	s.logger.Info().Str("service", name).Msg("Service started")
}

// StopAll stops every running service and waits for the loops to exit
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	var stopping []*managedService
	for _, name := range s.order {
		ms := s.services[name]
		if ms.running() {
			ms.cancel()
			stopping = append(stopping, ms)
			ms.cancel = nil
		}
	}
	s.mu.Unlock()

	for _, ms := range stopping {
		<-ms.done
	}
}

// Stop stops one service by name and waits for its loop to exit. A stop
// cancels any in-flight sleep, so the call returns promptly.
func (s *Scheduler) Stop(name string) error {
	s.mu.Lock()
	ms, ok := s.services[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	if !ms.running() {
		s.mu.Unlock()
		return nil
	}
	ms.cancel()
	ms.cancel = nil
	done := ms.done
	s.mu.Unlock()

	<-done
	s.logger.Info().Str("service", name).Msg("Service stopped")
	return nil
}

// Statuses lists all services in registration order
func (s *Scheduler) Statuses() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]Status, 0, len(s.order))
	for _, name := range s.order {
		ms := s.services[name]
		state := "stopped"
		if ms.running() {
			state = "running"
		}
		statuses = append(statuses, Status{
			Name:        name,
			Description: ms.svc.Description(),
			State:       state,
		})
	}
	return statuses
}

// Running reports whether a service is currently running
func (s *Scheduler) Running(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms, ok := s.services[name]
	return ok && ms.running()
}

// runLoop runs the service immediately and then on its interval until the
// context is cancelled.
func (s *Scheduler) runLoop(ctx context.Context, svc Service, done chan struct{}) {
	defer close(done)

	logger := s.logger.With().Str("service", svc.Name()).Logger()

	s.safeRun(ctx, svc, logger)

	ticker := time.NewTicker(svc.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeRun(ctx, svc, logger)
		}
	}
}

// safeRun executes one cycle with panic isolation
func (s *Scheduler) safeRun(ctx context.Context, svc Service, logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Service cycle panicked")
		}
	}()

	if ctx.Err() != nil {
		return
	}

	if err := svc.RunOnce(ctx); err != nil {
		logger.Error().Err(err).Msg("Service cycle failed")
	}
}
