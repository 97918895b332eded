package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"squash/internal/events"
	"squash/internal/history"
	"squash/internal/logging"
)

// notice is one unit of outbound work. Exactly one field is set.
type notice struct {
	entry   *history.Entry
	event   *events.Event
	cleanup string
}

// dispatcher delivers notices in the order the engine queued them, on a
// single goroutine, so listeners see a job's transitions in sequence and a
// history entry is stored before its completion event is published.
type dispatcher struct {
	history HistorySink
	events  Publisher
	logger  *slog.Logger

	mu      sync.Mutex
	pending []notice
	busy    bool
	idle    chan struct{}
	closed  bool
}

func newDispatcher(sink HistorySink, pub Publisher, logger *slog.Logger) *dispatcher {
	idle := make(chan struct{})
	close(idle)
	return &dispatcher{history: sink, events: pub, logger: logger, idle: idle}
}

// enqueue appends notices. A progress event replaces a still-pending progress
// event for the same job.
func (d *dispatcher) enqueue(items ...notice) {
	if len(items) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	for _, item := range items {
		if n := len(d.pending); n > 0 && coalesces(d.pending[n-1], item) {
			d.pending[n-1] = item
			continue
		}
		d.pending = append(d.pending, item)
	}
	if !d.busy {
		d.busy = true
		d.idle = make(chan struct{})
		go d.run()
	}
}

func coalesces(prev, next notice) bool {
	if prev.event == nil || next.event == nil {
		return false
	}
	if prev.event.Type != events.TypeProgress || next.event.Type != events.TypeProgress {
		return false
	}
	return prev.event.Progress.JobID == next.event.Progress.JobID
}

func (d *dispatcher) run() {
	for {
		d.mu.Lock()
		if len(d.pending) == 0 {
			d.busy = false
			close(d.idle)
			d.mu.Unlock()
			return
		}
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()

		for _, item := range batch {
			d.deliver(item)
		}
	}
}

func (d *dispatcher) deliver(item notice) {
	switch {
	case item.entry != nil:
		if d.history == nil {
			return
		}
		if err := d.history.AddItem(context.Background(), *item.entry); err != nil {
			logging.WarnWithContext(d.logger, "history write failed", "history_write_failed",
				logging.JobID(item.entry.JobID),
				logging.String(logging.FieldErrorHint, "check that the data directory is writable"),
				logging.Error(err),
			)
		}
	case item.event != nil:
		if d.events != nil {
			d.events.Publish(*item.event)
		}
	case item.cleanup != "":
		removePassLogs(item.cleanup, d.logger)
	}
}

// drain waits until every queued notice has been delivered.
func (d *dispatcher) drain(ctx context.Context) error {
	d.mu.Lock()
	idle := d.idle
	d.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains outstanding notices and rejects new ones.
func (d *dispatcher) close(ctx context.Context) error {
	err := d.drain(ctx)
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return err
}

// removePassLogs deletes every file the encoder wrote under the pass-log
// prefix, such as prefix-0.log and prefix-0.log.mbtree.
func removePassLogs(prefix string, logger *slog.Logger) {
	matches, err := filepath.Glob(prefix + "*")
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Debug("pass log cleanup failed", logging.String("path", path), logging.Error(err))
		}
	}
}
