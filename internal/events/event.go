package events

import "time"

// Type discriminates the payload carried by an Event.
type Type string

const (
	TypeProgress  Type = "progress"
	TypeCompleted Type = "completed"
	TypeState     Type = "state"
	TypeLog       Type = "log"
)

// Event is one entry on the bus. Exactly one payload pointer is set,
// matching Type.
type Event struct {
	Seq        uint64      `json:"seq"`
	Type       Type        `json:"type"`
	Time       time.Time   `json:"time"`
	Progress   *Progress   `json:"progress,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
	State      *State      `json:"state,omitempty"`
	Log        *Log        `json:"log,omitempty"`
}

// JobID returns the job an event refers to, or "" for log events.
func (e Event) JobID() string {
	switch {
	case e.Progress != nil:
		return e.Progress.JobID
	case e.Completion != nil:
		return e.Completion.JobID
	case e.State != nil:
		return e.State.JobID
	default:
		return ""
	}
}

// Progress is emitted on every diagnostic-stream update of a running job.
// Optional fields are nil or empty when the encoder has not reported them.
// Time is the encoded media time and ETA the estimated remaining wall time,
// both in seconds.
type Progress struct {
	JobID    string   `json:"job_id"`
	FileID   string   `json:"file_id"`
	Status   string   `json:"status"`
	Progress float64  `json:"progress"`
	Speed    *float64 `json:"speed,omitempty"`
	FPS      *float64 `json:"fps,omitempty"`
	Bitrate  string   `json:"bitrate,omitempty"`
	Size     string   `json:"size,omitempty"`
	Time     *float64 `json:"time,omitempty"`
	ETA      *float64 `json:"eta,omitempty"`
}

// Completion is emitted exactly once per job when it reaches a terminal state.
type Completion struct {
	JobID   string `json:"job_id"`
	BatchID string `json:"batch_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// State records a job status transition.
type State struct {
	JobID string `json:"job_id"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Log mirrors an info, warn or error log record.
type Log struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// lossy reports whether a slow subscriber may miss this event. Progress and
// log updates are superseded by the next one; completions and transitions
// are not.
func (e Event) lossy() bool {
	return e.Type == TypeProgress || e.Type == TypeLog
}
