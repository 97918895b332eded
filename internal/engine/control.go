package engine

import (
	"errors"
	"fmt"
	"time"

	"squash/internal/logging"
)

// Cancel stops a job that has not finished. A waiting job leaves the queue; a
// running or paused job's encoder is killed. The job becomes Cancelled and a
// single failed completion is emitted. Cancelling a terminal job reports
// ErrInvalidStateTransition and changes nothing.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	if j.Status.Terminal() {
		return invalidTransition(j.ID, j.Status, StatusCancelled)
	}
	e.killLocked(j)
	e.finishLocked(j, StatusCancelled, errors.New(cancelledReason))
	return nil
}

// Pause suspends a running job's encoder. Only Running jobs can be paused.
// On platforms without suspend support the error wraps proc.ErrUnsupported
// and the job keeps running.
func (e *Engine) Pause(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	if j.Status != StatusRunning {
		return invalidTransition(j.ID, j.Status, StatusPaused)
	}
	if err := e.suspendLocked(j); err != nil {
		return err
	}
	j.Status = StatusPaused
	j.pausedAt = e.now()
	e.out.enqueue(stateNotice(j.pausedAt, j.ID, StatusRunning, StatusPaused))
	e.logger.Info("job paused", logging.JobID(j.ID), logging.Float64("progress", j.Progress))
	return nil
}

// Resume continues a paused job. Progress carries on from where it stopped.
func (e *Engine) Resume(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	j, err := e.lookupLocked(id)
	if err != nil {
		return err
	}
	if j.Status != StatusPaused {
		return invalidTransition(j.ID, j.Status, StatusRunning)
	}
	if p, ok := j.handle.process(); ok {
		if err := p.Resume(); err != nil {
			return fmt.Errorf("resume job %s: %w", j.ID, err)
		}
	}
	now := e.now()
	if !j.pausedAt.IsZero() {
		j.pausedTotal += now.Sub(j.pausedAt)
		j.pausedAt = time.Time{}
	}
	j.Status = StatusRunning
	e.out.enqueue(stateNotice(now, j.ID, StatusPaused, StatusRunning))
	e.logger.Info("job resumed", logging.JobID(j.ID), logging.Float64("progress", j.Progress))
	return nil
}

func (e *Engine) suspendLocked(j *job) error {
	p, ok := j.handle.process()
	if !ok {
		return nil
	}
	if err := p.Suspend(); err != nil {
		return fmt.Errorf("pause job %s: %w", j.ID, err)
	}
	return nil
}

func (e *Engine) lookupLocked(id string) (*job, error) {
	j, ok := e.jobs[id]
	if !ok {
		return nil, wrap(ErrJobNotFound, id, nil)
	}
	return j, nil
}

func invalidTransition(id string, from, to Status) error {
	return wrap(ErrInvalidStateTransition, fmt.Sprintf("job %s cannot move from %s to %s", id, from, to), nil)
}
