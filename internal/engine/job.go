package engine

import (
	"time"

	"squash/internal/ffmpeg"
	"squash/internal/preset"
	"squash/internal/proc"
)

// Status is a job's lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Active reports whether s holds a concurrency slot.
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusPaused
}

var transitions = map[Status][]Status{
	StatusWaiting: {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning: {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:  {StatusRunning, StatusCompleted, StatusFailed, StatusCancelled},
}

func canTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Submission is the caller's request to compress one file. A positive
// TargetSize in bytes switches the job to a planned two-pass encode.
type Submission struct {
	InputPath  string            `json:"input_path"`
	OutputPath string            `json:"output_path,omitempty"`
	PresetID   string            `json:"preset_id,omitempty"`
	TargetSize int64             `json:"target_size,omitempty"`
	Overrides  *preset.Overrides `json:"overrides,omitempty"`
	FileID     string            `json:"file_id,omitempty"`
	// BatchID groups jobs queued by one request; the daemon assigns it.
	BatchID    string            `json:"batch_id,omitempty"`
}

// Job is a read-only snapshot of one job.
type Job struct {
	ID         string        `json:"id"`
	FileID     string        `json:"file_id"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path"`
	PresetID   string        `json:"preset_id"`
	Preset     preset.Preset `json:"preset"`
	TargetSize int64         `json:"target_size,omitempty"`
	BatchID    string        `json:"batch_id,omitempty"`

	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	Pass     string  `json:"pass,omitempty"`

	DurationSeconds   float64 `json:"duration_seconds"`
	DurationEstimated bool    `json:"duration_estimated,omitempty"`
	VideoBitrateKbps  int     `json:"video_bitrate_kbps,omitempty"`
	TwoPass           bool    `json:"two_pass,omitempty"`

	Speed   float64 `json:"speed,omitempty"`
	FPS     float64 `json:"fps,omitempty"`
	Bitrate string  `json:"bitrate,omitempty"`
	Size    string  `json:"size,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`

	InputSize        int64   `json:"input_size"`
	OutputSize       int64   `json:"output_size,omitempty"`
	CompressionRatio float64 `json:"compression_ratio,omitempty"`
	Error            string  `json:"error,omitempty"`
}

// processHandle is either noProcess or ownedProcess. A job holds an
// ownedProcess only while Running or Paused.
type processHandle interface {
	process() (proc.Process, bool)
}

type noProcess struct{}

func (noProcess) process() (proc.Process, bool) { return nil, false }

type ownedProcess struct {
	proc  proc.Process
	stage int
}

func (h ownedProcess) process() (proc.Process, bool) { return h.proc, true }

// job is the registry's mutable record; every field is guarded by Engine.mu.
type job struct {
	Job

	stages      []ffmpeg.Stage
	stage       int
	handle      processHandle
	passLogFile string

	pausedAt    time.Time
	pausedTotal time.Duration
}

func (j *job) snapshot() Job {
	return j.Job
}

// activeWall is the wall time spent running, excluding pauses.
func (j *job) activeWall(now time.Time) time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	paused := j.pausedTotal
	if j.Status == StatusPaused && !j.pausedAt.IsZero() {
		paused += now.Sub(j.pausedAt)
	}
	return max(now.Sub(j.StartedAt)-paused, 0)
}
