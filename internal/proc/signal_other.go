//go:build !unix

package proc

import (
	"os"
	"os/exec"
)

// SupportsSuspend reports whether Suspend and Resume can succeed here.
const SupportsSuspend = false

func configure(*exec.Cmd) {}

func kill(p *os.Process) error {
	return p.Kill()
}

func suspend(*os.Process) error {
	return ErrUnsupported
}

func resume(*os.Process) error {
	return ErrUnsupported
}
