package engine_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/history"
	"squash/internal/media/ffprobe"
	"squash/internal/preset"
	"squash/internal/proc"
)

const waitTimeout = 5 * time.Second

type staticSettings struct {
	max    int
	binary string
}

func (s staticSettings) MaxParallelJobs() int { return s.max }
func (s staticSettings) FFmpegBinary() string { return s.binary }

type fakeProber struct {
	info ffprobe.Info
	err  error
}

func (p fakeProber) Probe(context.Context, string) (ffprobe.Info, error) {
	return p.info, p.err
}

type recordingSink struct {
	mu      sync.Mutex
	entries []history.Entry
}

func (s *recordingSink) AddItem(_ context.Context, entry history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *recordingSink) Entries() []history.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

type fakeProcess struct {
	pid  int
	args []string

	stderrR *io.PipeReader
	stderrW *io.PipeWriter
	done    chan struct{}
	once    sync.Once
	code    int

	mu         sync.Mutex
	killed     bool
	suspended  bool
	suspendErr error
}

func (p *fakeProcess) Pid() int          { return p.pid }
func (p *fakeProcess) Stderr() io.Reader { return p.stderrR }

func (p *fakeProcess) Wait() (int, error) {
	<-p.done
	return p.code, nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(-1)
	return nil
}

func (p *fakeProcess) Suspend() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspendErr != nil {
		return p.suspendErr
	}
	p.suspended = true
	return nil
}

func (p *fakeProcess) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.suspended = false
	return nil
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code = code
		_ = p.stderrW.Close()
		close(p.done)
	})
}

// emit writes one diagnostic line; it returns once the supervisor has read it.
func (p *fakeProcess) emit(line string) {
	_, _ = p.stderrW.Write([]byte(line + "\r"))
}

func (p *fakeProcess) isKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

func (p *fakeProcess) isSuspended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.suspended
}

func (p *fakeProcess) input() string {
	for i, arg := range p.args {
		if arg == "-i" && i+1 < len(p.args) {
			return p.args[i+1]
		}
	}
	return ""
}

func (p *fakeProcess) output() string {
	return p.args[len(p.args)-1]
}

type fakeLauncher struct {
	mu         sync.Mutex
	procs      []*fakeProcess
	started    chan *fakeProcess
	err        error
	suspendErr error
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{started: make(chan *fakeProcess, 64)}
}

func (l *fakeLauncher) Start(_ string, args []string) (proc.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	r, w := io.Pipe()
	p := &fakeProcess{
		pid:        1000 + len(l.procs),
		args:       slices.Clone(args),
		stderrR:    r,
		stderrW:    w,
		done:       make(chan struct{}),
		suspendErr: l.suspendErr,
	}
	l.procs = append(l.procs, p)
	l.started <- p
	return p, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) next(t *testing.T) *fakeProcess {
	t.Helper()
	select {
	case p := <-l.started:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for encoder launch")
		return nil
	}
}

type harness struct {
	engine   *engine.Engine
	launcher *fakeLauncher
	bus      *events.Bus
	sink     *recordingSink
	dir      string
}

type harnessOption func(*engine.Options)

func withProber(p engine.Prober) harnessOption {
	return func(o *engine.Options) { o.Prober = p }
}

func newHarness(t *testing.T, maxParallel int, opts ...harnessOption) *harness {
	t.Helper()
	catalog, err := preset.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	h := &harness{
		launcher: newFakeLauncher(),
		bus:      events.NewBus(4096),
		sink:     &recordingSink{},
		dir:      t.TempDir(),
	}
	options := engine.Options{
		Settings: staticSettings{max: maxParallel, binary: "ffmpeg"},
		Presets:  catalog,
		History:  h.sink,
		Prober:   fakeProber{info: ffprobe.Info{DurationSeconds: 60, HasVideo: true, HasAudio: true}},
		Launcher: h.launcher,
		Events:   h.bus,
		TempDir:  filepath.Join(h.dir, "tmp"),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if err := os.MkdirAll(options.TempDir, 0o755); err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(options)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	h.engine = eng
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = eng.Shutdown(ctx)
		h.bus.Close()
	})
	return h
}

// input writes a sparse source file of the given size.
func (h *harness) input(t *testing.T, name string, size int64) string {
	t.Helper()
	path := filepath.Join(h.dir, "in", name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	return path
}

func (h *harness) submit(t *testing.T, sub engine.Submission) engine.Job {
	t.Helper()
	if sub.OutputPath == "" {
		sub.OutputPath = filepath.Join(h.dir, "out", filepath.Base(sub.InputPath)+".mp4")
	}
	job, err := h.engine.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("Submit(%s): %v", sub.InputPath, err)
	}
	return job
}

// succeed writes the encoder's output with the given size and exits 0.
func succeed(t *testing.T, p *fakeProcess, size int64) {
	t.Helper()
	f, err := os.Create(p.output())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	p.exit(0)
}

func waitStatus(t *testing.T, eng *engine.Engine, id string, want engine.Status) engine.Job {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		job, err := eng.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s status = %s, want %s", id, job.Status, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitProgress(t *testing.T, eng *engine.Engine, id string, want float64) engine.Job {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		job, _ := eng.Get(id)
		if job.Progress >= want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s progress = %v, want >= %v", id, job.Progress, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitIdle(t *testing.T, eng *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := eng.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle: %v", err)
	}
}

// jobEvents returns every recorded event of typ for job id.
func jobEvents(bus *events.Bus, id string, typ events.Type) []events.Event {
	all, _ := bus.Since(0)
	var out []events.Event
	for _, evt := range all {
		if evt.Type == typ && evt.JobID() == id {
			out = append(out, evt)
		}
	}
	return out
}

func statuses(jobs []engine.Job) []engine.Status {
	out := make([]engine.Status, len(jobs))
	for i, job := range jobs {
		out[i] = job.Status
	}
	return out
}
