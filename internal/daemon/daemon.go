package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"squash/internal/config"
	"squash/internal/deps"
	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/history"
	"squash/internal/logging"
)

// ErrAlreadyRunning reports that another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another squash daemon instance is already running")

// Daemon owns the long-running Runtime, enforces single-instance execution
// with a lock file and optionally serves the HTTP status API.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	runtime *Runtime
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   bool
	startedAt time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	StartedAt       time.Time
	Waiting         int
	Active          int
	MaxParallelJobs int
	HistoryPath     string
	LockPath        string
	SocketPath      string
	Dependencies    []deps.Status
}

// New constructs a daemon around a fresh Runtime.
func New(cfg *config.Config, logger *slog.Logger, bus *events.Bus, opts RuntimeOptions) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	rt, err := NewRuntime(cfg, logger, bus, opts)
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		runtime:  rt,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		stopped:  make(chan struct{}),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	if err := d.api.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}
	d.runtime.Start(ctx)
	d.running = true
	d.startedAt = time.Now()
	d.logger.Info("squash daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Int("max_parallel_jobs", d.cfg.MaxParallelJobs()),
	)
	return nil
}

// Stop cancels every unfinished job, flushes history and releases the lock.
// A stopped daemon cannot be restarted.
func (d *Daemon) Stop(ctx context.Context) error {
	d.api.stop()
	err := d.runtime.Close(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return err
	}
	d.running = false
	if unlockErr := d.lock.Unlock(); unlockErr != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.String("lock", d.lockPath),
			logging.String(logging.FieldImpact, "next daemon start may report a running instance"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.Error(unlockErr),
		)
	}
	d.logger.Info("squash daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	return err
}

// Submit queues a job with the configured default preset applied.
func (d *Daemon) Submit(ctx context.Context, sub engine.Submission) (engine.Job, error) {
	return d.runtime.Submit(ctx, sub)
}

// SubmitBatch queues the submissions of one request as a single batch.
func (d *Daemon) SubmitBatch(ctx context.Context, subs []engine.Submission) []SubmitResult {
	return d.runtime.SubmitBatch(ctx, subs)
}

// RequestStop asks the hosting process to shut down. The process observes
// it through StopRequested and then calls Stop.
func (d *Daemon) RequestStop() {
	d.stopOnce.Do(func() { close(d.stopped) })
}

// StopRequested is closed once RequestStop has been called.
func (d *Daemon) StopRequested() <-chan struct{} {
	return d.stopped
}

// Engine exposes the job engine for IPC handlers.
func (d *Daemon) Engine() *engine.Engine { return d.runtime.Engine() }

// Events exposes the event bus for IPC pollers.
func (d *Daemon) Events() *events.Bus { return d.runtime.Bus() }

// History lists recorded history entries.
func (d *Daemon) History(ctx context.Context, filter history.Filter) ([]history.Entry, error) {
	return d.runtime.History().List(ctx, filter)
}

// HistoryStats summarizes recorded history.
func (d *Daemon) HistoryStats(ctx context.Context) (history.Stats, error) {
	return d.runtime.History().Stats(ctx)
}

// ClearHistory removes every recorded entry.
func (d *Daemon) ClearHistory(ctx context.Context) (int64, error) {
	removed, err := d.runtime.History().Clear(ctx)
	if err != nil {
		return 0, err
	}
	d.logger.Info("history cleared",
		logging.String(logging.FieldEventType, "history_clear"),
		logging.Int64("removed_count", removed))
	return removed, nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (d *Daemon) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	d.mu.Lock()
	running, startedAt := d.running, d.startedAt
	d.mu.Unlock()

	waiting, active := d.Engine().Counts()
	return Status{
		Running:         running,
		PID:             os.Getpid(),
		StartedAt:       startedAt,
		Waiting:         waiting,
		Active:          active,
		MaxParallelJobs: min(max(d.cfg.MaxParallelJobs(), engine.MinParallelJobs), engine.MaxParallelJobs),
		HistoryPath:     d.runtime.History().Path(),
		LockPath:        d.lockPath,
		SocketPath:      d.cfg.SocketPath(),
		Dependencies:    deps.CheckBinaries(deps.Requirements(d.cfg)),
	}
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.runtime.Notifier().TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
