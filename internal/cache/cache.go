// Package cache memoises derived ledger views between mutations.
package cache

import (
	"context"
	"sync"
	"time"

	"calmledger/internal/log"
)

// Sweepable is anything that can drop its own expired entries.
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically sweeps a fixed set of caches until stopped.
type Sweeper struct {
	interval time.Duration
	targets  []Sweepable
	logger   *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper prepares a sweeper. logger may be nil.
func NewSweeper(logger *log.Logger, interval time.Duration, targets ...Sweepable) *Sweeper {
	if logger == nil {
		logger = log.Discard()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		interval: interval,
		targets:  targets,
		logger:   logger.WithComponent(log.ComponentCache),
	}
}

// Start launches the sweep loop. A second Start while running is a no-op.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Sweeper) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepNow(); n > 0 {
				s.logger.Debug("Evicted expired cache entries", "count", n)
			}
		}
	}
}

// SweepNow runs one pass over every target.
func (s *Sweeper) SweepNow() int {
	n := 0
	for _, t := range s.targets {
		n += t.Sweep()
	}
	return n
}

// Stop ends the loop and waits for it. Safe without Start and when
// called repeatedly.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
