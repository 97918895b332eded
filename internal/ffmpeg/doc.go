// Package ffmpeg turns an effective preset into ffmpeg argument vectors.
//
// The builder is pure: it never touches the filesystem or looks up the
// binary. Single-pass encodes produce one Stage; two-pass encodes produce an
// analysis stage that writes only the pass log and a final stage that reads
// it back and writes the audio-included output.
package ffmpeg
