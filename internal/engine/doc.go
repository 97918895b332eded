// Package engine schedules and supervises encoder jobs.
//
// An Engine owns the job registry, a FIFO waiting queue and the count of
// jobs holding a concurrency slot, all behind one mutex. Submissions and
// terminal transitions both run an admission pass that starts waiting jobs
// in arrival order until the configured limit is reached. Each admitted job
// gets one supervisor goroutine per encoder pass that feeds the diagnostic
// stream to a progress parser and reports the exit.
//
// Outbound work (history entries, state, progress and completion events)
// is queued while the lock is held and delivered in order by a dispatcher
// goroutine, so collaborators never run under the registry lock.
//
// Job states:
//
//	waiting -> running -> completed | failed | cancelled
//	running <-> paused
//	waiting -> cancelled | failed
//
// No transition leaves a terminal state.
package engine
