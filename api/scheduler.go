/*
scheduler.go - Automated fill sweep

PURPOSE:
  Periodically scans upcoming call times for requirements that are still
  short on labor and, when enabled, triggers auto-fill so the SMS round
  goes out without an operator watching the board.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Only considers call times starting within the lead window
  - Skips canceled events and already-filled requirements
  - Always logs shortfalls; committing new requests is opt-in

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - LeadWindow:    How far ahead to look (default: 72 hours)
  - AutoFill:      Whether to commit requests, or only report
  - Enabled:       Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewFillScheduler(store, fulfillment, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: AutoFill endpoint (manual fill)
  - dispatch/service.go: The fulfillment service this drives
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stagecall/staffing-engine/dispatch"
	"github.com/stagecall/staffing-engine/engine"
)

// FillScheduler periodically sweeps upcoming requirements for shortfalls.
type FillScheduler struct {
	Store       dispatch.TxStore
	Fulfillment *dispatch.FulfillmentService
	Logger      *zap.Logger

	CheckInterval time.Duration
	LeadWindow    time.Duration
	AutoFill      bool
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewFillScheduler creates a scheduler that reports but does not commit.
func NewFillScheduler(store dispatch.TxStore, fulfillment *dispatch.FulfillmentService, logger *zap.Logger) *FillScheduler {
	return &FillScheduler{
		Store:         store,
		Fulfillment:   fulfillment,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		LeadWindow:    72 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the sweep loop.
func (fs *FillScheduler) Start() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if !fs.Enabled {
		fs.Logger.Info("fill scheduler disabled, not starting")
		return
	}

	fs.ticker = time.NewTicker(fs.CheckInterval)
	fs.wg.Add(1)
	go fs.run()

	fs.Logger.Info("fill scheduler started",
		zap.Duration("check_interval", fs.CheckInterval),
		zap.Duration("lead_window", fs.LeadWindow),
		zap.Bool("auto_fill", fs.AutoFill))
}

// Stop stops the sweep loop.
func (fs *FillScheduler) Stop() {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.ticker != nil {
		fs.ticker.Stop()
		close(fs.stop)
		fs.wg.Wait()
		fs.Logger.Info("fill scheduler stopped")
	}
}

func (fs *FillScheduler) run() {
	defer fs.wg.Done()

	// Run immediately on start.
	fs.Sweep(context.Background())

	for {
		select {
		case <-fs.ticker.C:
			fs.Sweep(context.Background())
		case <-fs.stop:
			return
		}
	}
}

// Sweep checks every requirement on call times inside the lead window
// and reports (or fills) shortfalls. Exported for tests and admin use.
func (fs *FillScheduler) Sweep(ctx context.Context) {
	now := time.Now()
	horizon := now.Add(fs.LeadWindow)

	events, err := fs.Store.ListEvents(ctx)
	if err != nil {
		fs.Logger.Error("fill sweep: listing events failed", zap.Error(err))
		return
	}

	short := 0
	filled := 0
	for _, event := range events {
		if event.Canceled {
			continue
		}
		callTimes, err := fs.Store.ListCallTimes(ctx, event.ID)
		if err != nil {
			fs.Logger.Error("fill sweep: listing call times failed",
				zap.String("event_id", string(event.ID)), zap.Error(err))
			continue
		}
		for _, ct := range callTimes {
			if ct.StartsAt.Before(now) || ct.StartsAt.After(horizon) {
				continue
			}
			requirements, err := fs.Store.ListRequirements(ctx, ct.ID)
			if err != nil {
				fs.Logger.Error("fill sweep: listing requirements failed",
					zap.String("call_time_id", string(ct.ID)), zap.Error(err))
				continue
			}
			for _, lr := range requirements {
				if fs.sweepRequirement(ctx, ct, lr) {
					short++
				} else {
					filled++
				}
			}
		}
	}

	if short > 0 {
		fs.Logger.Warn("fill sweep completed",
			zap.Int("short_requirements", short),
			zap.Int("filled_requirements", filled))
	}
}

// sweepRequirement reports whether the requirement is still short after
// the sweep touched it.
func (fs *FillScheduler) sweepRequirement(ctx context.Context, ct engine.CallTime, lr engine.LaborRequirement) bool {
	assessment, err := fs.Fulfillment.Assess(ctx, lr.ID)
	if err != nil {
		fs.Logger.Error("fill sweep: assessment failed",
			zap.String("requirement_id", string(lr.ID)), zap.Error(err))
		return false
	}
	if assessment.Filled() {
		return false
	}

	if !fs.AutoFill {
		fs.Logger.Warn("requirement short on labor",
			zap.String("requirement_id", string(lr.ID)),
			zap.String("call_time", ct.Name),
			zap.Time("starts_at", ct.StartsAt),
			zap.Int("positions_needed", assessment.PositionsNeeded))
		return true
	}

	report, err := fs.Fulfillment.AutoFill(ctx, lr.ID)
	if err != nil {
		fs.Logger.Error("fill sweep: auto-fill failed",
			zap.String("requirement_id", string(lr.ID)), zap.Error(err))
		return true
	}
	fs.Logger.Info("fill sweep: auto-filled requirement",
		zap.String("requirement_id", string(lr.ID)),
		zap.Int("selected", len(report.Selected)),
		zap.Int("shortfall", report.Shortfall))
	return report.Shortfall > 0
}
