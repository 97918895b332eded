// Package notifications pushes job outcomes to ntfy.
//
// NewService returns an ntfy-backed Service when a topic is configured and a
// no-op otherwise; per-outcome switches in the [notifications] section decide
// which finished jobs are announced. Forward bridges the engine's completion
// events to a Service so neither side depends on the other.
package notifications
