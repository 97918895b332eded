// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships
// the matching client used by the CLI.
//
// Engine errors cross the socket as a Failure holding the error kind and
// message; the client rebuilds them with engine.FromKind so callers can
// still test them with errors.Is. Transport problems surface as plain
// errors from the client methods.
package ipc
