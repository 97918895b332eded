// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Info: the duration and stream-presence summary the engine consumes
//   - Prober: runs ffprobe with a timeout and returns Info
//
// Inspect executes ffprobe and returns the parsed Result; Decode parses
// already captured output.
package ffprobe
