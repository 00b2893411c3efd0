package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the work a Runner triggers
type Job func(ctx context.Context) error

// Runner triggers a job on a cron schedule. Runs never overlap: a trigger
// that fires while the previous run is still going is skipped.
type Runner struct {
	schedule string
	job      Job
	cron     *cron.Cron
	logger   *slog.Logger

	running atomic.Bool
	skipped atomic.Int64
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	entry   cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

// cronLogger routes cron's own logging through slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// NewRunner validates the standard five-field cron expression and
// creates a stopped runner.
func NewRunner(schedule string, job Job, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	cl := cronLogger{logger: logger}
	return &Runner{
		schedule: schedule,
		job:      job,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		logger:   logger,
	}, nil
}

// Start schedules the job. With runNow the first run starts immediately
// instead of waiting for the next scheduled time.
func (r *Runner) Start(ctx context.Context, runNow bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("runner is already running")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)
	entry, err := r.cron.AddFunc(r.schedule, r.run)
	if err != nil {
		r.cancel()
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	r.entry = entry

	r.cron.Start()
	r.started = true
	r.logger.Info("Sync runner started", "schedule", r.schedule)

	if runNow {
		r.trigger()
	}
	return nil
}

// Trigger starts a run in the background unless one is already running.
// It reports whether a run was started.
func (r *Runner) Trigger() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return false
	}
	return r.trigger()
}

func (r *Runner) trigger() bool {
	if !r.running.CompareAndSwap(false, true) {
		r.skip()
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		r.execute()
	}()
	return true
}

// run is invoked by cron
func (r *Runner) run() {
	if !r.running.CompareAndSwap(false, true) {
		r.skip()
		return
	}
	defer r.running.Store(false)
	r.execute()
}

func (r *Runner) skip() {
	r.skipped.Add(1)
	r.logger.Warn("Previous sync run still in progress, skipping")
}

func (r *Runner) execute() {
	start := time.Now()
	if err := r.job(r.ctx); err != nil {
		r.logger.Error("Sync run failed", "error", err, "duration", time.Since(start))
		return
	}
	r.logger.Debug("Sync run completed", "duration", time.Since(start))
}

// Skipped returns how many triggers were dropped because a run was in progress
func (r *Runner) Skipped() int64 {
	return r.skipped.Load()
}

// Next returns the next scheduled run time, or zero when stopped
func (r *Runner) Next() time.Time {
	entries := r.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop cancels the running job's context and waits for it to return
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}

	r.logger.Info("Stopping sync runner")
	r.cancel()
	<-r.cron.Stop().Done()
	r.wg.Wait()
	r.cron.Remove(r.entry)
	r.started = false
	r.logger.Info("Sync runner stopped")
}
