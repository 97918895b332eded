package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"squash/internal/events"
	"squash/internal/ffmpeg"
	"squash/internal/fileutil"
	"squash/internal/logging"
	"squash/internal/preset"
)

// Submit validates sub, resolves a unique destination and registers a
// Waiting job, then runs an admission pass. Validation failures are returned
// synchronously and no job is created.
func (e *Engine) Submit(ctx context.Context, sub Submission) (Job, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	plan, err := e.prepare(ctx, sub)
	if err != nil {
		return Job{}, err
	}
	if err := fileutil.EnsureParentDir(plan.OutputPath); err != nil {
		return Job{}, wrap(ErrConfigValidation, "", err)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Job{}, ErrShutdown
	}
	output, err := fileutil.UniquePath(plan.OutputPath, func(path string) bool {
		_, taken := e.reserved[path]
		return taken
	})
	if err != nil {
		e.mu.Unlock()
		return Job{}, wrap(ErrConfigValidation, "", err)
	}

	id := uuid.NewString()
	j := &job{Job: plan, handle: noProcess{}}
	j.ID = id
	j.OutputPath = output
	j.Status = StatusWaiting
	j.SubmittedAt = e.now()
	if j.FileID == "" {
		j.FileID = j.InputPath
	}
	if j.TwoPass {
		j.passLogFile = filepath.Join(e.tempDir, "squash-passlog-"+id)
	}
	j.stages = ffmpeg.Stages(ffmpeg.Options{
		Input:            j.InputPath,
		Output:           j.OutputPath,
		Preset:           j.Preset,
		VideoBitrateKbps: j.VideoBitrateKbps,
		TwoPass:          j.TwoPass,
		PassLogFile:      j.passLogFile,
	})

	e.jobs[id] = j
	e.order = append(e.order, id)
	e.queue = append(e.queue, id)
	e.reserved[output] = id
	e.out.enqueue(stateNotice(e.now(), id, "", StatusWaiting))
	e.admitLocked()
	snap := j.snapshot()
	e.mu.Unlock()

	attrs := []logging.Attr{
		logging.JobID(id),
		logging.Input(snap.InputPath),
		logging.Output(snap.OutputPath),
		logging.Preset(snap.PresetID),
	}
	if output != plan.OutputPath {
		attrs = append(attrs, logging.String("requested_output", plan.OutputPath))
	}
	if snap.TwoPass {
		attrs = append(attrs, logging.Int("video_kbps", snap.VideoBitrateKbps))
	}
	e.logger.Info("job submitted", logging.Args(attrs...)...)
	return snap, nil
}

// prepare resolves everything about a submission that does not need the
// registry lock: input checks, preset merge, probing and bitrate planning.
func (e *Engine) prepare(ctx context.Context, sub Submission) (Job, error) {
	input := strings.TrimSpace(sub.InputPath)
	if input == "" {
		return Job{}, wrap(ErrConfigValidation, "input path is required", nil)
	}
	info, err := os.Stat(input)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Job{}, wrap(ErrInputNotFound, input, nil)
	case err != nil:
		return Job{}, wrap(ErrInputNotFound, input, err)
	case !info.Mode().IsRegular():
		return Job{}, wrap(ErrConfigValidation, fmt.Sprintf("%s is not a regular file", input), nil)
	}
	if sub.TargetSize < 0 {
		return Job{}, wrap(ErrConfigValidation, "target size must not be negative", nil)
	}

	base, err := e.presets.Lookup(sub.PresetID)
	if err != nil {
		return Job{}, wrap(ErrConfigValidation, "", err)
	}
	effective := base.Apply(sub.Overrides)
	if err := effective.Validate(); err != nil {
		return Job{}, wrap(ErrConfigValidation, "", err)
	}

	plan := Job{
		FileID:     strings.TrimSpace(sub.FileID),
		InputPath:  input,
		OutputPath: strings.TrimSpace(sub.OutputPath),
		PresetID:   base.ID,
		TargetSize: sub.TargetSize,
		BatchID:    strings.TrimSpace(sub.BatchID),
		InputSize:  info.Size(),
	}

	duration, estimated, err := e.probe(ctx, input, &effective, sub.TargetSize > 0)
	if err != nil {
		return Job{}, err
	}
	plan.DurationSeconds = duration
	plan.DurationEstimated = estimated

	switch {
	case sub.TargetSize > 0:
		if effective.RemoveVideo {
			return Job{}, wrap(ErrConfigValidation, "target size needs a video stream to plan against", nil)
		}
		bits, err := e.planner.Plan(sub.TargetSize, duration, effective.EffectiveAudioKbps())
		if err != nil {
			return Job{}, wrap(ErrConfigValidation, "plan bitrate", err)
		}
		plan.VideoBitrateKbps = bits.VideoKbps
		plan.TwoPass = true
	case effective.TwoPass && effective.Quality == preset.QualityBitrate && !effective.RemoveVideo:
		plan.VideoBitrateKbps = effective.VideoBitrateKbps
		plan.TwoPass = true
	}
	plan.Preset = effective

	if plan.OutputPath == "" {
		plan.OutputPath = fileutil.DeriveOutputPath(input, e.outputDir, e.outputSuffix, ffmpeg.Extension(effective))
	}
	if abs, err := filepath.Abs(plan.OutputPath); err == nil {
		plan.OutputPath = abs
	}
	if abs, err := filepath.Abs(plan.InputPath); err == nil {
		plan.InputPath = abs
	}
	return plan, nil
}

// probe returns the input's duration in seconds and folds missing streams
// into p. When probing fails a quality-mode job falls back to a fixed
// estimate; a target-size job cannot, because its bitrate depends on the
// real duration.
func (e *Engine) probe(ctx context.Context, input string, p *preset.Preset, needExact bool) (float64, bool, error) {
	if e.prober == nil {
		if needExact {
			return 0, false, wrap(ErrConfigValidation, "target size requires a probe service", nil)
		}
		return e.fallbackDuration.Seconds(), true, nil
	}
	info, err := e.prober.Probe(ctx, input)
	if err != nil || info.DurationSeconds <= 0 {
		if err == nil {
			err = errors.New("no duration reported")
		}
		if needExact {
			return 0, false, wrap(ErrConfigValidation, "target size requires the probed duration", err)
		}
		logging.WarnWithContext(e.logger, "probe failed; using fallback duration", "probe_fallback",
			logging.Input(input),
			logging.Float64("fallback_seconds", e.fallbackDuration.Seconds()),
			logging.String(logging.FieldImpact, "progress and ETA are estimates"),
			logging.String(logging.FieldErrorHint, "verify ffprobe is installed and the file is readable"),
			logging.Error(err),
		)
		return e.fallbackDuration.Seconds(), true, nil
	}

	if !info.HasVideo {
		p.RemoveVideo = true
	}
	if !info.HasAudio {
		p.RemoveAudio = true
	}
	if p.RemoveVideo && p.RemoveAudio {
		return 0, false, wrap(ErrConfigValidation, fmt.Sprintf("%s has no stream left to encode", input), nil)
	}
	return info.DurationSeconds, false, nil
}

func stateNotice(at time.Time, id string, from, to Status) notice {
	return notice{event: &events.Event{
		Type:  events.TypeState,
		Time:  at,
		State: &events.State{JobID: id, From: string(from), To: string(to)},
	}}
}
