package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultStopGrace = 5 * time.Second

// Manager runs several collectors concurrently, typically one per panel,
// all writing to the same store.
type Manager struct {
	Collectors []*Collector
	// MaxWorkers bounds how many collectors run at once; 0 means all.
	MaxWorkers int
	Logger     *zap.Logger
	// StopGrace is how long Run waits for collectors after ctx is done.
	StopGrace time.Duration
}

// Run blocks until ctx is cancelled and the collectors have stopped (or the
// grace period expired). A collector that fails, typically because its
// topics could not be ensured at startup, stops the others and its error is
// returned.
func (m *Manager) Run(ctx context.Context) error {
	log := m.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxW := m.MaxWorkers
	if maxW <= 0 {
		maxW = len(m.Collectors)
	}
	grace := m.StopGrace
	if grace <= 0 {
		grace = defaultStopGrace
	}
	sem := make(chan struct{}, maxW)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, c := range m.Collectors {
		wg.Add(1)
		go func(c *Collector) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				return
			}
			if err := c.Run(runCtx); err != nil {
				log.Error("collector stopped", zap.String("panel", c.opts.Name), zap.Error(err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("panel %s: %w", c.opts.Name, err))
				mu.Unlock()
				cancel()
			}
		}(c)
	}

	<-runCtx.Done()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(grace):
		log.Warn("timeout waiting for collectors to stop")
	}

	mu.Lock()
	defer mu.Unlock()
	return errors.Join(errs...)
}
