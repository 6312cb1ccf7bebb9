package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"price-scout/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrRefreshRunning is returned when a run is requested while one is in flight
var ErrRefreshRunning = errors.New("refresh already running")

// DefaultRunTimeout bounds a single scheduled refresh run
const DefaultRunTimeout = 30 * time.Minute

// schedules use six fields, seconds first
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// RefreshTask re-prices stale catalog products on a cron schedule
type RefreshTask struct {
	refresher service.RefreshService
	schedule  string
	timeout   time.Duration
	logger    *zap.Logger
	cron      *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewRefreshTask validates the schedule and creates the task. Nothing runs
// until Start is called.
func NewRefreshTask(refresher service.RefreshService, schedule string, logger *zap.Logger) (*RefreshTask, error) {
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshTask{
		refresher: refresher,
		schedule:  schedule,
		timeout:   DefaultRunTimeout,
		logger:    logger,
		cron:      cron.New(cron.WithParser(scheduleParser)),
	}, nil
}

// SetTimeout changes the per-run deadline
func (t *RefreshTask) SetTimeout(d time.Duration) {
	if d > 0 {
		t.timeout = d
	}
}

// Start registers the schedule and starts the cron scheduler
func (t *RefreshTask) Start() error {
	_, err := t.cron.AddFunc(t.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if _, err := t.RunNow(ctx); err != nil && !errors.Is(err, ErrRefreshRunning) {
			t.logger.Error("Scheduled refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	t.cron.Start()
	t.logger.Info("Refresh task started", zap.String("schedule", t.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish or ctx
// to expire
func (t *RefreshTask) Stop(ctx context.Context) error {
	done := t.cron.Stop()
	select {
	case <-done.Done():
		t.logger.Info("Refresh task stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow performs one refresh. Overlapping runs are refused.
func (t *RefreshTask) RunNow(ctx context.Context) (*service.RefreshReport, error) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		t.logger.Warn("Refresh skipped, previous run still in progress")
		return nil, ErrRefreshRunning
	}
	t.running = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
	}()

	start := time.Now()
	report, err := t.refresher.RefreshStale(ctx)
	if err != nil {
		return report, err
	}
	t.logger.Info("Refresh run finished",
		zap.Int("checked", report.Checked),
		zap.Int("updated", report.Updated),
		zap.Duration("took", time.Since(start)),
	)
	return report, nil
}
