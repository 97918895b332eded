package engine

import (
	"errors"
	"io/fs"
	"os/exec"

	"squash/internal/logging"
)

// admitLocked moves Waiting jobs to Running in arrival order until the queue
// is empty or every slot is taken. It runs on every submission and inside
// every terminal transition, always with mu held, so the running count can
// never exceed the limit and no completion can reorder the queue.
func (e *Engine) admitLocked() {
	limit := e.maxParallel()
	for !e.closed && e.running < limit && len(e.queue) > 0 {
		id := e.queue[0]
		e.queue[0] = ""
		e.queue = e.queue[1:]
		j, ok := e.jobs[id]
		if !ok || j.Status != StatusWaiting {
			continue
		}
		if err := e.startStageLocked(j, 0); err != nil {
			e.terminateLocked(j, StatusFailed, err)
			continue
		}
		from := j.Status
		j.Status = StatusRunning
		j.StartedAt = e.now()
		e.running++
		e.out.enqueue(stateNotice(j.StartedAt, j.ID, from, StatusRunning))
		e.logger.Info("job started",
			logging.JobID(j.ID),
			logging.Pass(j.Pass),
			logging.Int("running", e.running),
			logging.Int("limit", limit),
		)
	}
}

// startStageLocked spawns the encoder for stage idx and hands the process to
// a supervisor goroutine. On failure the job keeps its current status and
// the classified spawn error is returned.
func (e *Engine) startStageLocked(j *job, idx int) error {
	stage := j.stages[idx]
	binary := e.encoderBinary()
	p, err := e.launcher.Start(binary, stage.Args)
	if err != nil {
		return classifySpawn(binary, err)
	}
	j.stage = idx
	j.Pass = stage.Pass.String()
	j.handle = ownedProcess{proc: p, stage: idx}
	e.wg.Add(1)
	go e.supervise(j, p, idx)
	return nil
}

func classifySpawn(binary string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return wrap(ErrBinaryNotFound, binary, err)
	}
	return wrap(ErrSpawn, binary, err)
}
