//go:build unix

package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// SupportsSuspend reports whether Suspend and Resume can succeed here.
const SupportsSuspend = true

// configure places the encoder in its own process group; terminal signals
// reach squash only.
func configure(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func kill(p *os.Process) error {
	return signal(p, unix.SIGKILL)
}

func suspend(p *os.Process) error {
	return signal(p, unix.SIGSTOP)
}

func resume(p *os.Process) error {
	return signal(p, unix.SIGCONT)
}

// signal targets the encoder's process group so helpers it spawned stop,
// continue and die with it. A lone pid is the fallback when the group is gone.
func signal(p *os.Process, sig unix.Signal) error {
	if p == nil {
		return errors.New("no process")
	}
	if err := unix.Kill(-p.Pid, sig); err == nil {
		return nil
	}
	if err := unix.Kill(p.Pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal %s to pid %d: %w", unix.SignalName(sig), p.Pid, err)
	}
	return nil
}
