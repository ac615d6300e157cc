/*
scheduler.go - Periodic maintenance

PURPOSE:
  Keeps long-running servers tidy between requests:
  - Reloads the unit catalog, so units upserted by another instance
    sharing the same Postgres database show up here too
  - Drops expired form sessions

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on Start
  - A failed reload keeps the previous snapshot and is logged

USAGE:
  scheduler := NewMaintenanceScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - units/catalog.go: Catalog.Reload
  - sessions.go: Sessions.Prune
*/
package api

import (
	"context"
	"sync"
	"time"
)

// MaintenanceScheduler reloads units and prunes sessions on a ticker.
type MaintenanceScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMaintenanceScheduler creates a scheduler running every 5 minutes.
func NewMaintenanceScheduler(h *Handler) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		Handler:  h,
		Interval: 5 * time.Minute,
		Enabled:  true,
	}
}

// Start begins the scheduler. Calling it twice is a no-op.
func (ms *MaintenanceScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled || ms.Interval <= 0 {
		ms.Handler.log().Info("maintenance scheduler disabled")
		return
	}
	if ms.ticker != nil {
		return
	}

	ms.ticker = time.NewTicker(ms.Interval)
	ms.stop = make(chan struct{})
	ms.wg.Add(1)

	go ms.run(ms.ticker, ms.stop)

	ms.Handler.log().Info("maintenance scheduler started", "interval", ms.Interval)
}

// Stop stops the scheduler and waits for a running pass to finish.
func (ms *MaintenanceScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker == nil {
		return
	}
	ms.ticker.Stop()
	close(ms.stop)
	ms.wg.Wait()
	ms.ticker = nil
	ms.Handler.log().Info("maintenance scheduler stopped")
}

func (ms *MaintenanceScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ms.wg.Done()

	ms.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			ms.RunOnce(context.Background())
		case <-stop:
			return
		}
	}
}

// RunOnce performs one maintenance pass.
func (ms *MaintenanceScheduler) RunOnce(ctx context.Context) {
	h := ms.Handler
	log := h.log()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	before := h.Units.Directory().Len()
	if err := h.Units.Reload(ctx); err != nil {
		log.Warn("unit reload failed, keeping previous snapshot", "err", err)
	} else if after := h.Units.Directory().Len(); after != before {
		log.Info("unit catalog reloaded", "units", after, "was", before)
	}

	if n := h.Sessions.Prune(); n > 0 {
		log.Debug("expired sessions dropped", "count", n)
	}
}
