package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auctionhouse/internal/logger"
)

// Engine is the periodic work the scheduler drives.
type Engine interface {
	ProcessEndedAuctions(ctx context.Context) error
}

// Scheduler fires the auction resolution sweep on a fixed interval. It is
// constructed once at process entry and stopped on shutdown; sweeps do not
// overlap under normal interval spacing, and the engine's own atomicity
// covers the case where they do.
type Scheduler struct {
	engine Engine
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func New(engine Engine, log *logger.Logger) *Scheduler {
	return &Scheduler{
		engine: engine,
		logger: log,
	}
}

// Start runs one sweep immediately, then one per interval. Calling Start on
// a running scheduler is a no-op.
func (s *Scheduler) Start(interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("SCHEDULER", "Scheduler is already running")
		return
	}

	s.logger.Info("SCHEDULER", fmt.Sprintf("Starting auction sweep every %s", interval))

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.loop(interval, s.stop, s.done)
}

// Stop cancels the timer and waits for an in-flight sweep to finish.
// Stopping a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("SCHEDULER", "Auction scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	s.sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-stop:
			return
		}
	}
}

// sweep runs one pass of the engine. Errors and panics are contained here
// so the next tick always fires.
func (s *Scheduler) sweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("SCHEDULER", fmt.Sprintf("Sweep panicked: %v", r))
		}
	}()

	s.logger.Debug("SCHEDULER", "Checking for ended auctions")
	if err := s.engine.ProcessEndedAuctions(context.Background()); err != nil {
		s.logger.Error("SCHEDULER", fmt.Sprintf("Sweep failed: %v", err))
	}
}
