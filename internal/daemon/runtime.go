package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"squash/internal/bitrate"
	"squash/internal/config"
	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/history"
	"squash/internal/logging"
	"squash/internal/media/ffprobe"
	"squash/internal/notifications"
	"squash/internal/proc"
)

const subscriberBuffer = 256

// RuntimeOptions overrides collaborators the runtime would otherwise build
// from configuration. Tests use them to avoid spawning real encoders.
type RuntimeOptions struct {
	Launcher proc.Launcher
	Prober   engine.Prober
	Notifier notifications.Service
}

// Runtime assembles one engine with its history store, event bus and
// notification forwarding. The foreground batch command and the daemon
// both run on a Runtime.
type Runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	bus      *events.Bus
	history  *history.Store
	engine   *engine.Engine
	notifier notifications.Service
	batches  *batchTracker

	mu      sync.Mutex
	subs    []*events.Subscription
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// NewRuntime opens the history store and builds the engine. The caller owns
// bus and closes it after Close returns.
func NewRuntime(cfg *config.Config, logger *slog.Logger, bus *events.Bus, opts RuntimeOptions) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("runtime requires configuration")
	}
	if bus == nil {
		return nil, errors.New("runtime requires an event bus")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}

	prober := opts.Prober
	if prober == nil {
		prober = ffprobe.Prober{Binary: cfg.FFprobeBinary(), Timeout: cfg.ProbeTimeout()}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	eng, err := engine.New(engine.Options{
		Settings:         cfg,
		Presets:          catalog,
		History:          store,
		Prober:           prober,
		Launcher:         opts.Launcher,
		Events:           bus,
		Planner:          bitrate.New(cfg.Planner.MinVideoKbps, cfg.Planner.MaxVideoKbps),
		Logger:           logger,
		FallbackDuration: cfg.FallbackDuration(),
		OutputDir:        cfg.Paths.OutputDir,
		OutputSuffix:     cfg.Engine.OutputSuffix,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		history:  store,
		engine:   eng,
		notifier: notifier,
		batches:  newBatchTracker(),
	}, nil
}

// Start launches notification forwarding. It must be called once before
// jobs are submitted for their outcomes to be pushed.
func (r *Runtime) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	forward := r.bus.Subscribe(subscriberBuffer)
	batches := r.bus.Subscribe(subscriberBuffer)
	r.subs = append(r.subs, forward, batches)

	// Forwarders outlive ctx so completions emitted during Close still go out.
	bg := context.WithoutCancel(ctx)
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		notifications.Forward(bg, forward, r.summarize, r.notifier, r.logger)
	}()
	go func() {
		defer r.wg.Done()
		r.trackBatches(bg, batches)
	}()
}

// Close shuts the engine down, waits for forwarders to drain and closes the
// history store.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	shutdownErr := r.engine.Shutdown(ctx)
	for _, sub := range subs {
		sub.Close()
	}
	r.wg.Wait()
	closeErr := r.history.Close()
	return errors.Join(shutdownErr, closeErr)
}

// Submit queues a single job outside any batch, filling in the configured
// default preset.
func (r *Runtime) Submit(ctx context.Context, sub engine.Submission) (engine.Job, error) {
	sub.BatchID = ""
	return r.submit(ctx, sub)
}

func (r *Runtime) submit(ctx context.Context, sub engine.Submission) (engine.Job, error) {
	if strings.TrimSpace(sub.PresetID) == "" {
		sub.PresetID = r.cfg.Engine.DefaultPreset
	}
	return r.engine.Submit(ctx, sub)
}

// Engine exposes the job engine.
func (r *Runtime) Engine() *engine.Engine { return r.engine }

// History exposes the history store.
func (r *Runtime) History() *history.Store { return r.history }

// Bus exposes the event bus.
func (r *Runtime) Bus() *events.Bus { return r.bus }

// Notifier exposes the notification service.
func (r *Runtime) Notifier() notifications.Service { return r.notifier }

func (r *Runtime) summarize(jobID string) (notifications.Summary, notifications.Outcome, bool) {
	job, err := r.engine.Get(jobID)
	if err != nil {
		return notifications.Summary{}, notifications.OutcomeFailed, false
	}
	summary := notifications.Summary{
		JobID:          job.ID,
		InputPath:      job.InputPath,
		OutputPath:     job.OutputPath,
		OriginalSize:   job.InputSize,
		CompressedSize: job.OutputSize,
		Ratio:          job.CompressionRatio,
		Error:          job.Error,
	}
	if !job.StartedAt.IsZero() && !job.FinishedAt.IsZero() {
		summary.Elapsed = job.FinishedAt.Sub(job.StartedAt)
	}
	switch job.Status {
	case engine.StatusCompleted:
		return summary, notifications.OutcomeCompleted, true
	case engine.StatusCancelled:
		return summary, notifications.OutcomeCancelled, true
	default:
		return summary, notifications.OutcomeFailed, true
	}
}
