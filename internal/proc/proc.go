package proc

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// ErrUnsupported is returned by Suspend and Resume on platforms without a
// stop/continue signal pair.
var ErrUnsupported = errors.New("process suspend/resume is not supported on this platform")

// Process is a running external program owned by exactly one supervisor.
type Process interface {
	Pid() int
	// Stderr streams the diagnostic output. It must be drained to EOF
	// before Wait is called.
	Stderr() io.Reader
	// Wait blocks until exit. A normal exit, including one caused by a
	// signal, reports its code with a nil error; code is -1 when the process
	// was terminated by a signal.
	Wait() (code int, err error)
	Kill() error
	Suspend() error
	Resume() error
}

// Launcher starts processes. Tests substitute a fake.
type Launcher interface {
	Start(binary string, args []string) (Process, error)
}

// ExecLauncher starts real OS processes via os/exec.
type ExecLauncher struct{}

// Start resolves binary on PATH and starts it with args. Stdout is
// discarded; stderr is exposed through Process.Stderr.
func (ExecLauncher) Start(binary string, args []string) (Process, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", binary, err)
	}
	cmd := exec.Command(path, args...)
	cmd.Stdout = io.Discard
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	configure(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}
	return &execProcess{cmd: cmd, stderr: stderr}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stderr io.Reader

	mu     sync.Mutex
	exited bool
}

func (p *execProcess) Pid() int          { return p.cmd.Process.Pid }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

func (p *execProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

func (p *execProcess) Kill() error {
	if p.done() {
		return nil
	}
	return kill(p.cmd.Process)
}

func (p *execProcess) Suspend() error {
	if p.done() {
		return errors.New("process already exited")
	}
	return suspend(p.cmd.Process)
}

func (p *execProcess) Resume() error {
	if p.done() {
		return errors.New("process already exited")
	}
	return resume(p.cmd.Process)
}

func (p *execProcess) done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}
