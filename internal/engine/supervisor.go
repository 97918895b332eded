package engine

import (
	"errors"
	"fmt"
	"io"
	"time"

	"squash/internal/events"
	"squash/internal/fileutil"
	"squash/internal/logging"
	"squash/internal/proc"
	"squash/internal/progress"
)

const (
	diagnosticTailLines = 20
	readChunkBytes      = 4096
)

// supervise drains one encoder process's diagnostic stream into a progress
// parser, then reaps the process and reports its exit.
func (e *Engine) supervise(j *job, p proc.Process, stage int) {
	defer e.wg.Done()

	parser := progress.NewParser(diagnosticTailLines)
	if stderr := p.Stderr(); stderr != nil {
		buf := make([]byte, readChunkBytes)
		for {
			n, err := stderr.Read(buf)
			if n > 0 {
				if sample, ok := parser.Feed(buf[:n]); ok {
					e.onProgress(j, stage, sample)
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					e.logger.Debug("diagnostic stream closed", logging.JobID(j.ID), logging.Error(err))
				}
				break
			}
		}
	}
	if sample, ok := parser.Flush(); ok {
		e.onProgress(j, stage, sample)
	}

	code, waitErr := p.Wait()
	e.onExit(j, stage, code, waitErr, parser.Tail())
}

// onProgress folds a parsed sample into the job and queues a progress event.
// Stage-relative progress is mapped into the stage's share of the whole job
// and never decreases.
func (e *Engine) onProgress(j *job, stage int, sample progress.Sample) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !j.Status.Active() || j.stage != stage {
		return
	}

	now := e.now()
	st := j.stages[stage]
	if sample.HasElapsed() {
		total := time.Duration(j.DurationSeconds * float64(time.Second))
		pct := progress.Percent(sample.Elapsed, total)
		mapped := st.ProgressStart + pct*(st.ProgressEnd-st.ProgressStart)/100
		j.Progress = max(j.Progress, progress.Clamp(mapped))
	}
	if sample.HasSpeed() {
		j.Speed = sample.Speed
	}
	if sample.HasFPS() {
		j.FPS = sample.FPS
	}
	if sample.HasBitrate() {
		j.Bitrate = sample.Bitrate
	}
	if sample.HasSize() {
		j.Size = sample.Size
	}

	evt := &events.Progress{
		JobID:    j.ID,
		FileID:   j.FileID,
		Status:   string(j.Status),
		Progress: j.Progress,
		Bitrate:  j.Bitrate,
		Size:     j.Size,
	}
	if sample.HasSpeed() {
		evt.Speed = ptr(sample.Speed)
	}
	if sample.HasFPS() {
		evt.FPS = ptr(sample.FPS)
	}
	if sample.HasElapsed() {
		evt.Time = ptr(sample.Elapsed.Seconds())
	}
	if eta, ok := progress.ETA(j.activeWall(now), j.Progress); ok {
		evt.ETA = ptr(eta.Seconds())
	}
	e.out.enqueue(notice{event: &events.Event{Type: events.TypeProgress, Time: now, Progress: evt}})
}

// onExit handles a reaped encoder. A job already terminal (cancelled or shut
// down) is left untouched; its outcome was recorded when it was killed.
func (e *Engine) onExit(j *job, stage int, code int, waitErr error, tail string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if j.Status.Terminal() || j.stage != stage {
		return
	}
	j.handle = noProcess{}

	switch {
	case waitErr != nil:
		e.finishLocked(j, StatusFailed, wrap(ErrSpawn, "wait for encoder", waitErr))
	case code != 0:
		e.finishLocked(j, StatusFailed, &ExitError{Code: code, Tail: truncateTail(tail)})
	case stage+1 < len(j.stages):
		e.logger.Info("encoder pass finished",
			logging.JobID(j.ID),
			logging.Pass(j.Pass),
		)
		if err := e.startStageLocked(j, stage+1); err != nil {
			e.finishLocked(j, StatusFailed, err)
			return
		}
		if j.Status == StatusPaused {
			if err := e.suspendLocked(j); err != nil {
				e.logger.Warn("could not keep next pass paused",
					logging.JobID(j.ID),
					logging.String(logging.FieldEventType, "pause_carry_failed"),
					logging.String(logging.FieldErrorHint, "pause the job again"),
					logging.String(logging.FieldImpact, "encoding continues while the job shows paused"),
					logging.Error(err),
				)
			}
		}
	default:
		size, err := fileutil.RegularFileSize(j.OutputPath)
		if err != nil {
			e.finishLocked(j, StatusFailed, fmt.Errorf("encoder reported success but output is unreadable: %w", err))
			return
		}
		j.OutputSize = size
		if j.InputSize > 0 {
			j.CompressionRatio = float64(size) / float64(j.InputSize)
		}
		e.finishLocked(j, StatusCompleted, nil)
	}
}

func ptr[T any](v T) *T {
	return &v
}
