package worker

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/config"
	"github.com/spec-kit/incident-service/internal/service"
)

const sweepLockKey = "incident:sla-sweep:lock"

// Sweeper runs one SLA sweep pass.
type Sweeper interface {
	SlaSweep(ctx context.Context) (service.SweepResult, error)
}

// SweepWorker periodically runs the SLA sweep on a cron schedule. A Redis
// lock keeps concurrent replicas from sweeping the same deadline window.
type SweepWorker struct {
	lifecycle Sweeper
	redis     *redis.Client
	logger    *zap.Logger
	cfg       config.SweepConfig

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweepWorker constructs the worker.
func NewSweepWorker(lifecycle Sweeper, redisClient *redis.Client, logger *zap.Logger, cfg config.SweepConfig) *SweepWorker {
	return &SweepWorker{
		lifecycle: lifecycle,
		redis:     redisClient,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start schedules the sweep. It returns immediately; runs happen on the
// cron goroutine.
func (w *SweepWorker) Start() error {
	if !w.cfg.Enabled {
		w.logger.Info("sla sweep disabled")
		return nil
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	w.cron = cron.New()
	_, err := w.cron.AddFunc(w.cfg.CronSpec, func() {
		w.wg.Add(1)
		defer w.wg.Done()
		w.runOnce(w.ctx)
	})
	if err != nil {
		w.cancel()
		return err
	}

	w.cron.Start()
	w.logger.Info("sla sweep scheduled", zap.String("cron", w.cfg.CronSpec))
	return nil
}

// Stop cancels in-flight sweeps and waits for them to finish. Cancellation
// happens before the cron drain so a running sweep observes it between
// incidents instead of stalling shutdown.
func (w *SweepWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	w.wg.Wait()
}

// RunNow triggers a single sweep outside the schedule, e.g. from an admin
// endpoint.
func (w *SweepWorker) RunNow(ctx context.Context) (service.SweepResult, error) {
	return w.lifecycle.SlaSweep(ctx)
}

func (w *SweepWorker) runOnce(ctx context.Context) {
	if !w.acquireLock(ctx) {
		w.logger.Debug("sla sweep lock held elsewhere")
		return
	}
	defer w.releaseLock(ctx)

	started := time.Now()
	result, err := w.lifecycle.SlaSweep(ctx)
	if err != nil {
		w.logger.Error("sla sweep failed", zap.Error(err))
		return
	}
	w.logger.Info("sla sweep finished",
		zap.Int("escalated", result.Escalated),
		zap.Int("reassigned", result.Reassigned),
		zap.Int("skipped", result.Skipped),
		zap.Duration("took", time.Since(started)))
}

func (w *SweepWorker) acquireLock(ctx context.Context) bool {
	if w.redis == nil {
		return true
	}
	ok, err := w.redis.SetNX(ctx, sweepLockKey, time.Now().Format(time.RFC3339), w.cfg.LockTTL()).Result()
	if err != nil {
		w.logger.Warn("sla sweep lock error, proceeding without lock", zap.Error(err))
		return true
	}
	return ok
}

func (w *SweepWorker) releaseLock(ctx context.Context) {
	if w.redis == nil {
		return
	}
	if err := w.redis.Del(ctx, sweepLockKey).Err(); err != nil {
		w.logger.Warn("sla sweep lock release failed", zap.Error(err))
	}
}
