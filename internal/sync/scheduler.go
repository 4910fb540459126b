package sync

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"time"
)

// Scheduler re-runs FullSync on a fixed interval until stopped.
//
// Errors inside the timer are caught and logged, never propagated: the
// ticker keeps firing until Stop. A tick that lands while a manually
// triggered cycle is still running observes the single-flight guard
// and skips.
type Scheduler struct {
	engine   *Engine
	tenantID string
	interval time.Duration
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. If logger is nil, a default logger
// writing to stderr is used.
func NewScheduler(engine *Engine, tenantID string, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		engine:   engine,
		tenantID: tenantID,
		interval: interval,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start kicks off an immediate cycle and then the periodic loop.
// Returns promptly; use Stop for teardown.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop cancels the loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	s.logger.Println("Scheduler stopped")
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.logger.Printf("Auto sync every %v for tenant %s", s.interval, s.tenantID)
	s.runOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

// runOnce executes one cycle, containing every failure mode so the
// ticker never dies.
func (s *Scheduler) runOnce() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("Recovered from panic in sync cycle: %v", r)
		}
	}()

	_, err := s.engine.FullSync(s.ctx, s.tenantID)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Println("Sync already running, skipping tick")
	case errors.Is(err, context.Canceled):
	default:
		s.logger.Printf("Sync cycle failed: %v", err)
	}
}
