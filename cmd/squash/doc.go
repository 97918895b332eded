// Package main hosts the squash CLI entrypoint and command graph.
//
// Most commands translate into IPC calls against a running daemon (add, list,
// cancel, watch and friends). `squash run` instead hosts an engine in-process
// for one batch, and the planning and preset commands work offline.
package main
