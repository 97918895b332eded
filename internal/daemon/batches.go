package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"squash/internal/engine"
	"squash/internal/events"
	"squash/internal/logging"
)

// SubmitResult is the outcome of one submission within a batch.
type SubmitResult struct {
	Job engine.Job
	Err error
}

// batch counts the outcomes of the jobs queued by one submit request.
// Completions may arrive before the request finishes queueing, so the batch
// only closes once it is sealed and every accepted job has reported.
type batch struct {
	started   time.Time
	accepted  int
	sealed    bool
	succeeded int
	failed    int
	cancelled int
}

func (b *batch) done() bool {
	return b.sealed && b.succeeded+b.failed+b.cancelled >= b.accepted
}

type batchTracker struct {
	mu   sync.Mutex
	open map[string]*batch
}

func newBatchTracker() *batchTracker {
	return &batchTracker{open: make(map[string]*batch)}
}

func (t *batchTracker) begin(now time.Time) string {
	id := uuid.NewString()
	t.mu.Lock()
	t.open[id] = &batch{started: now}
	t.mu.Unlock()
	return id
}

// record counts one completion and returns the batch if it just closed.
func (t *batchTracker) record(c events.Completion) (batch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.open[c.BatchID]
	if !ok {
		return batch{}, false
	}
	switch {
	case c.Success:
		b.succeeded++
	case engine.Status(c.Status) == engine.StatusCancelled:
		b.cancelled++
	default:
		b.failed++
	}
	return t.closeIfDoneLocked(c.BatchID, b)
}

// seal fixes the number of jobs the request queued.
func (t *batchTracker) seal(id string, accepted int) (batch, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.open[id]
	if !ok {
		return batch{}, false
	}
	b.accepted = accepted
	b.sealed = true
	return t.closeIfDoneLocked(id, b)
}

func (t *batchTracker) closeIfDoneLocked(id string, b *batch) (batch, bool) {
	if !b.done() {
		return batch{}, false
	}
	delete(t.open, id)
	return *b, true
}

// SubmitBatch queues every submission under one batch id. Once all accepted
// jobs have finished, a batch of more than one job yields a single summary
// notification.
func (r *Runtime) SubmitBatch(ctx context.Context, subs []engine.Submission) []SubmitResult {
	id := r.batches.begin(time.Now())
	results := make([]SubmitResult, 0, len(subs))
	accepted := 0
	for _, sub := range subs {
		sub.BatchID = id
		job, err := r.submit(ctx, sub)
		if err == nil {
			accepted++
		}
		results = append(results, SubmitResult{Job: job, Err: err})
	}
	if b, done := r.batches.seal(id, accepted); done {
		r.notifyBatch(context.WithoutCancel(ctx), b, time.Now())
	}
	return results
}

// trackBatches feeds completions into the open batches and sends the
// summary for the batch whose last job just finished.
func (r *Runtime) trackBatches(ctx context.Context, sub *events.Subscription) {
	for evt := range sub.C() {
		if evt.Type != events.TypeCompleted || evt.Completion == nil || evt.Completion.BatchID == "" {
			continue
		}
		if b, done := r.batches.record(*evt.Completion); done {
			r.notifyBatch(ctx, b, evt.Time)
		}
	}
}

func (r *Runtime) notifyBatch(ctx context.Context, b batch, finished time.Time) {
	if b.accepted < 2 {
		return
	}
	if err := r.notifier.NotifyBatchCompleted(ctx, b.succeeded, b.failed, finished.Sub(b.started)); err != nil {
		logging.WarnWithContext(r.logger, "batch notification failed", "notification_failed",
			logging.String(logging.FieldImpact, "batch summary was not pushed"),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			logging.Error(err),
		)
	}
}
