// Package daemon assembles and hosts the long-running squash process.
//
// Runtime wires configuration into one engine: the SQLite history store,
// the ffprobe-backed prober, the bitrate planner bounds and the event bus,
// plus goroutines that forward completion events to ntfy and summarize
// finished batches. The foreground "squash run" command uses a Runtime
// directly; Daemon adds a flock-based single-instance guard and the
// optional read-only HTTP API on top of it.
//
// The IPC server in package ipc drives a Daemon; keep request handling
// there and lifecycle concerns here.
package daemon
