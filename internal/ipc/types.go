package ipc

import (
	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/history"
)

// Failure carries an engine error across the socket. Kind is one of the
// engine.Kind* values so the client can rebuild an error that errors.Is
// recognizes.
type Failure struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Err rebuilds the error, or returns nil for a nil Failure.
func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	return engine.FromKind(f.Kind, f.Message)
}

func failureFrom(err error) *Failure {
	if err == nil {
		return nil
	}
	return &Failure{Kind: engine.Kind(err), Message: err.Error()}
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// DependencyStatus describes availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail"`
}

// StatusResponse represents daemon and scheduler state.
type StatusResponse struct {
	Running         bool               `json:"running"`
	PID             int                `json:"pid"`
	StartedAt       string             `json:"started_at"`
	Waiting         int                `json:"waiting"`
	Active          int                `json:"active"`
	MaxParallelJobs int                `json:"max_parallel_jobs"`
	HistoryPath     string             `json:"history_path"`
	LockPath        string             `json:"lock_path"`
	Dependencies    []DependencyStatus `json:"dependencies"`
}

// SubmitRequest queues one job per submission, in order.
type SubmitRequest struct {
	Jobs []engine.Submission `json:"jobs"`
}

// SubmitResult reports one submission: either Job or Failure is set.
type SubmitResult struct {
	InputPath string      `json:"input_path"`
	Job       *engine.Job `json:"job,omitempty"`
	Failure   *Failure    `json:"failure,omitempty"`
}

// SubmitResponse lists results in request order.
type SubmitResponse struct {
	Results []SubmitResult `json:"results"`
}

// ListRequest filters jobs by status; empty means all.
type ListRequest struct {
	Statuses []string `json:"statuses"`
}

// ListResponse contains job snapshots in submission order.
type ListResponse struct {
	Jobs []engine.Job `json:"jobs"`
}

// JobRequest addresses a single job.
type JobRequest struct {
	ID string `json:"id"`
}

// JobResponse returns the job's snapshot after the operation.
type JobResponse struct {
	Job     engine.Job `json:"job"`
	Failure *Failure   `json:"failure,omitempty"`
}

// ClearCompletedRequest removes terminal jobs from the registry.
type ClearCompletedRequest struct{}

// ClearResponse reports number of removed entries.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// EventsRequest polls the event ring. With WaitMillis > 0 the call blocks
// until an event newer than Since exists or the wait elapses.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
	JobID      string `json:"job_id"`
}

// EventsResponse returns events and the cursor for the next poll.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}

// HistoryRequest filters history entries.
type HistoryRequest struct {
	Limit       int  `json:"limit"`
	FailedOnly  bool `json:"failed_only"`
	SuccessOnly bool `json:"success_only"`
}

// HistoryResponse returns matching entries and overall totals.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Stats   history.Stats   `json:"stats"`
}

// HistoryClearRequest removes every history entry.
type HistoryClearRequest struct{}

// StopRequest asks the daemon to cancel its jobs and exit.
type StopRequest struct{}

// StopResponse acknowledges a stop request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
