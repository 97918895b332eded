package engine

import (
	"time"

	"squash/internal/events"
	"squash/internal/history"
	"squash/internal/logging"
)

// finishLocked terminates j and admits the next waiting jobs into the slot it
// released.
func (e *Engine) finishLocked(j *job, status Status, cause error) {
	e.terminateLocked(j, status, cause)
	e.admitLocked()
}

// terminateLocked moves j to a terminal status and queues its history entry,
// state event and completion event, in that order. The job's process handle,
// concurrency slot and reserved output are released.
func (e *Engine) terminateLocked(j *job, status Status, cause error) {
	from := j.Status
	if from.Terminal() || !canTransition(from, status) {
		return
	}
	now := e.now()
	if from == StatusPaused && !j.pausedAt.IsZero() {
		j.pausedTotal += now.Sub(j.pausedAt)
		j.pausedAt = time.Time{}
	}

	j.Status = status
	j.FinishedAt = now
	j.handle = noProcess{}
	if from.Active() {
		e.running--
	}
	if from == StatusWaiting {
		e.removeFromQueueLocked(j.ID)
	}
	delete(e.reserved, j.OutputPath)

	if status == StatusCompleted {
		j.Progress = 100
	} else {
		j.OutputSize = 0
		j.CompressionRatio = 0
	}
	if cause != nil {
		j.Error = cause.Error()
	}

	entry := history.Entry{
		JobID:            j.ID,
		InputPath:        j.InputPath,
		OutputPath:       j.OutputPath,
		PresetID:         j.PresetID,
		OriginalSize:     j.InputSize,
		CompressedSize:   j.OutputSize,
		CompressionRatio: j.CompressionRatio,
		Success:          status == StatusCompleted,
		Error:            j.Error,
		TargetSize:       j.TargetSize,
		CompletedAt:      now,
	}
	if !j.StartedAt.IsZero() {
		entry.Duration = now.Sub(j.StartedAt)
	}

	items := []notice{
		{entry: &entry},
		stateNotice(now, j.ID, from, status),
		{event: &events.Event{
			Type:       events.TypeCompleted,
			Time:       now,
			Completion: &events.Completion{JobID: j.ID, BatchID: j.BatchID, Status: string(status), Success: entry.Success, Error: j.Error},
		}},
	}
	if j.passLogFile != "" {
		items = append(items, notice{cleanup: j.passLogFile})
	}
	e.out.enqueue(items...)
	e.logFinish(j, from, cause)
	e.notifyChangedLocked()
}

// killLocked forcefully terminates the job's process, if it owns one.
func (e *Engine) killLocked(j *job) {
	p, ok := j.handle.process()
	if !ok {
		return
	}
	if err := p.Kill(); err != nil {
		logging.WarnWithContext(e.logger, "encoder kill failed", "process_kill_failed",
			logging.JobID(j.ID),
			logging.Int("pid", p.Pid()),
			logging.String(logging.FieldImpact, "encoder may still be running"),
			logging.String(logging.FieldErrorHint, "terminate the process manually"),
			logging.Error(err),
		)
	}
}

func (e *Engine) removeFromQueueLocked(id string) {
	for i, queued := range e.queue {
		if queued == id {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			return
		}
	}
}

func (e *Engine) logFinish(j *job, from Status, cause error) {
	attrs := []logging.Attr{
		logging.JobID(j.ID),
		logging.String("from", string(from)),
		logging.String("status", string(j.Status)),
	}
	switch j.Status {
	case StatusCompleted:
		attrs = append(attrs,
			logging.Int64("input_bytes", j.InputSize),
			logging.Int64("output_bytes", j.OutputSize),
			logging.Float64("ratio", j.CompressionRatio),
			logging.Duration("elapsed", j.FinishedAt.Sub(j.StartedAt)),
		)
		e.logger.Info("job completed", logging.Args(attrs...)...)
	case StatusCancelled:
		e.logger.Info("job cancelled", logging.Args(attrs...)...)
	default:
		attrs = append(attrs,
			logging.String("error", j.Error),
			logging.String(logging.FieldErrorHint, failureHint(cause)),
		)
		logging.ErrorWithContext(e.logger, "job failed", "job_failed", attrs...)
	}
}

func failureHint(cause error) string {
	switch Kind(cause) {
	case KindBinaryNotFound:
		return "install ffmpeg or set engine.ffmpeg_binary"
	case KindExitNonZero:
		return "inspect the encoder output in the job error"
	case KindSpawn:
		return "check system resources and encoder permissions"
	default:
		return "check logs for details"
	}
}
