package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInputNotFound          = errors.New("input not found")
	ErrBinaryNotFound         = errors.New("encoder binary not found")
	ErrSpawn                  = errors.New("spawn error")
	ErrProcessExitNonZero     = errors.New("process exited with non-zero status")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConfigValidation       = errors.New("config validation error")
	ErrJobNotFound            = errors.New("job not found")
	ErrShutdown               = errors.New("engine is shut down")
)

// Error kinds reported by Kind and ErrorKind.
const (
	KindInputNotFound  = "input_not_found"
	KindBinaryNotFound = "binary_not_found"
	KindSpawn          = "spawn_error"
	KindExitNonZero    = "process_exit_nonzero"
	KindInvalidState   = "invalid_state_transition"
	KindValidation     = "config_validation"
	KindNotFound       = "not_found"
	KindShutdown       = "shutdown"
	KindUnclassified   = ""
)

const (
	cancelledReason   = "cancelled"
	shutdownReason    = "cancelled: engine shutdown"
	maxErrorTailRunes = 2000
)

// ErrorClassifier is implemented by errors that name their own kind.
type ErrorClassifier interface {
	ErrorKind() string
}

var kindSentinels = []struct {
	kind string
	err  error
}{
	{KindInputNotFound, ErrInputNotFound},
	{KindBinaryNotFound, ErrBinaryNotFound},
	{KindSpawn, ErrSpawn},
	{KindExitNonZero, ErrProcessExitNonZero},
	{KindInvalidState, ErrInvalidStateTransition},
	{KindValidation, ErrConfigValidation},
	{KindNotFound, ErrJobNotFound},
	{KindShutdown, ErrShutdown},
}

// Kind classifies err against the engine's sentinel errors.
func Kind(err error) string {
	if err == nil {
		return KindUnclassified
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	for _, s := range kindSentinels {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindUnclassified
}

// FromKind rebuilds an error carrying the sentinel for kind, used when errors
// cross a process boundary as plain text.
func FromKind(kind, message string) error {
	for _, s := range kindSentinels {
		if s.kind == kind {
			if message == "" || message == s.err.Error() {
				return s.err
			}
			return fmt.Errorf("%w: %s", s.err, strings.TrimPrefix(message, s.err.Error()+": "))
		}
	}
	return errors.New(message)
}

// ExitError reports an encoder that terminated with a non-zero status.
type ExitError struct {
	Code int
	// Tail holds the last diagnostic lines the encoder printed.
	Tail string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("encoder exited with code %d", e.Code)
	if tail := strings.TrimSpace(e.Tail); tail != "" {
		msg += ":\n" + tail
	}
	return msg
}

// Is makes errors.Is(err, ErrProcessExitNonZero) hold.
func (e *ExitError) Is(target error) bool {
	return target == ErrProcessExitNonZero
}

func (e *ExitError) ErrorKind() string {
	return KindExitNonZero
}

func wrap(marker error, detail string, err error) error {
	detail = strings.TrimSpace(detail)
	switch {
	case err != nil && detail != "":
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	case err != nil:
		return fmt.Errorf("%w: %w", marker, err)
	case detail != "":
		return fmt.Errorf("%w: %s", marker, detail)
	default:
		return marker
	}
}

func truncateTail(tail string) string {
	runes := []rune(tail)
	if len(runes) <= maxErrorTailRunes {
		return tail
	}
	return string(runes[len(runes)-maxErrorTailRunes:])
}
