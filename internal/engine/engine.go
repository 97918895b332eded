package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"squash/internal/bitrate"
	"squash/internal/events"
	"squash/internal/history"
	"squash/internal/logging"
	"squash/internal/media/ffprobe"
	"squash/internal/preset"
	"squash/internal/proc"
)

// Parallelism bounds applied to the settings provider's value.
const (
	MinParallelJobs = 1
	MaxParallelJobs = 8
)

const (
	defaultFallbackDuration = time.Hour
	defaultOutputSuffix     = "-squashed"
	defaultEncoderBinary    = "ffmpeg"
)

// Settings is the read-only configuration the engine consults. Both values
// are read at every admission, so a provider may change them at runtime.
type Settings interface {
	MaxParallelJobs() int
	FFmpegBinary() string
}

// HistorySink receives one entry per terminal job.
type HistorySink interface {
	AddItem(ctx context.Context, entry history.Entry) error
}

// Prober reports duration and stream layout for an input file.
type Prober interface {
	Probe(ctx context.Context, path string) (ffprobe.Info, error)
}

// Presets resolves preset ids.
type Presets interface {
	Lookup(id string) (preset.Preset, error)
}

// Publisher receives engine events.
type Publisher interface {
	Publish(evt events.Event) events.Event
}

// Options wires the engine's collaborators. Settings and Presets are
// required; every other field has a working default.
type Options struct {
	Settings Settings
	Presets  Presets
	History  HistorySink
	Prober   Prober
	Launcher proc.Launcher
	Events   Publisher
	Planner  bitrate.Planner
	Logger   *slog.Logger

	// FallbackDuration is used when probing fails on a quality-mode job.
	FallbackDuration time.Duration

	// OutputDir receives derived outputs; empty keeps them beside the input.
	OutputDir    string
	OutputSuffix string
	TempDir      string
	Now          func() time.Time
}

// Engine owns the job registry, the waiting queue and the running count.
// All three are guarded by mu; events and history entries leave through the
// dispatcher so no collaborator is ever called with mu held.
type Engine struct {
	settings Settings
	presets  Presets
	prober   Prober
	launcher proc.Launcher
	planner  bitrate.Planner
	logger   *slog.Logger
	now      func() time.Time

	fallbackDuration time.Duration
	outputSuffix     string
	outputDir        string
	tempDir          string

	mu       sync.Mutex
	jobs     map[string]*job
	order    []string
	queue    []string
	running  int
	reserved map[string]string
	changed  chan struct{}
	closed   bool

	out *dispatcher
	wg  sync.WaitGroup
}

// New builds an engine ready to accept submissions.
func New(opts Options) (*Engine, error) {
	if opts.Settings == nil {
		return nil, errors.New("engine requires a settings provider")
	}
	if opts.Presets == nil {
		return nil, errors.New("engine requires a preset catalog")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	launcher := opts.Launcher
	if launcher == nil {
		launcher = proc.ExecLauncher{}
	}
	planner := opts.Planner
	if planner == (bitrate.Planner{}) {
		planner = bitrate.New(0, 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	fallback := opts.FallbackDuration
	if fallback <= 0 {
		fallback = defaultFallbackDuration
	}
	suffix := opts.OutputSuffix
	if suffix == "" {
		suffix = defaultOutputSuffix
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	logger = logging.NewComponentLogger(logger, "engine")
	return &Engine{
		settings:         opts.Settings,
		presets:          opts.Presets,
		prober:           opts.Prober,
		launcher:         launcher,
		planner:          planner,
		logger:           logger,
		now:              now,
		fallbackDuration: fallback,
		outputSuffix:     suffix,
		outputDir:        opts.OutputDir,
		tempDir:          tempDir,
		jobs:             make(map[string]*job),
		reserved:         make(map[string]string),
		changed:          make(chan struct{}),
		out:              newDispatcher(opts.History, opts.Events, logger),
	}, nil
}

// Get returns a snapshot of one job.
func (e *Engine) Get(id string) (Job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, ok := e.jobs[id]
	if !ok {
		return Job{}, wrap(ErrJobNotFound, id, nil)
	}
	return j.snapshot(), nil
}

// List returns snapshots of every registered job in submission order.
func (e *Engine) List() []Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Job, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.jobs[id].snapshot())
	}
	return out
}

// Counts reports how many jobs are waiting and how many hold a slot.
func (e *Engine) Counts() (waiting, active int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue), e.running
}

// ClearCompleted removes every terminal job from the registry and returns
// how many were removed.
func (e *Engine) ClearCompleted() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.order[:0]
	removed := 0
	for _, id := range e.order {
		if e.jobs[id].Status.Terminal() {
			delete(e.jobs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	clear(e.order[len(kept):])
	e.order = kept
	return removed
}

// WaitIdle blocks until no job is waiting, running or paused and every
// pending event has been delivered.
func (e *Engine) WaitIdle(ctx context.Context) error {
	for {
		e.mu.Lock()
		idle := len(e.queue) == 0 && e.running == 0
		changed := e.changed
		e.mu.Unlock()
		if idle {
			return e.out.drain(ctx)
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown cancels waiting jobs, kills running and paused ones, waits for
// their supervisors and flushes pending events. Further submissions fail
// with ErrShutdown.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancelled := 0
	for _, id := range e.order {
		j := e.jobs[id]
		if j.Status.Terminal() {
			continue
		}
		e.killLocked(j)
		e.finishLocked(j, StatusCancelled, errors.New(shutdownReason))
		cancelled++
	}
	e.queue = nil
	e.mu.Unlock()

	if cancelled > 0 {
		e.logger.Info("engine shutdown cancelled jobs", logging.Int("count", cancelled))
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.out.close(ctx)
}

func (e *Engine) maxParallel() int {
	return min(max(e.settings.MaxParallelJobs(), MinParallelJobs), MaxParallelJobs)
}

func (e *Engine) encoderBinary() string {
	if bin := e.settings.FFmpegBinary(); bin != "" {
		return bin
	}
	return defaultEncoderBinary
}

// notifyChangedLocked wakes WaitIdle callers.
func (e *Engine) notifyChangedLocked() {
	close(e.changed)
	e.changed = make(chan struct{})
}
