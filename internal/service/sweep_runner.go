package service

import (
	"context"
	"sync"
	"time"

	"PetAlertAPI/internal/logger"
	"PetAlertAPI/internal/models"
)

// SweepRunner triggers the batch sweep on a fixed interval and prunes the
// trigger log afterwards.
type SweepRunner struct {
	scheduler *BatchScheduler
	limiter   *RateLimiter
	interval  time.Duration
	log       *logger.Logger

	mu      sync.Mutex
	lastRun *models.BatchRunResult

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweepRunner(scheduler *BatchScheduler, limiter *RateLimiter, interval time.Duration, log *logger.Logger) *SweepRunner {
	ctx, cancel := context.WithCancel(context.Background())

	return &SweepRunner{
		scheduler: scheduler,
		limiter:   limiter,
		interval:  interval,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (r *SweepRunner) Start() {
	r.log.Info("Starting alert sweep runner (every %s)", r.interval)

	r.wg.Add(1)
	go r.loop()
}

func (r *SweepRunner) Shutdown() {
	r.log.Info("Shutting down alert sweep runner...")
	r.cancel()
	r.wg.Wait()
	r.log.Info("Alert sweep runner stopped gracefully")
}

// LastRun returns the result of the most recent completed sweep, if any.
func (r *SweepRunner) LastRun() *models.BatchRunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastRun == nil {
		return nil
	}
	res := *r.lastRun
	return &res
}

func (r *SweepRunner) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.log.Info("Alert sweep worker stopping")
			return
		case <-ticker.C:
			r.RunOnce(r.ctx)
		}
	}
}

// RunOnce performs one sweep followed by trigger log pruning.
func (r *SweepRunner) RunOnce(ctx context.Context) {
	result, err := r.scheduler.BatchCheckAlerts(ctx)
	if err != nil {
		r.log.Error("Scheduled alert sweep failed: %v", err)
		return
	}

	r.mu.Lock()
	r.lastRun = &result
	r.mu.Unlock()

	removed, err := r.limiter.Prune(ctx, time.Now())
	if err != nil {
		r.log.Warn("Failed to prune trigger log: %v", err)
		return
	}
	if removed > 0 {
		r.log.Debug("Pruned %d expired trigger log entries", removed)
	}
}
