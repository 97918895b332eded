// Package config loads, normalizes, and validates squash configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SQUASH_FFMPEG. The Config type centralizes every knob the engine, daemon,
// and CLI need and doubles as the engine's read-only settings provider.
//
// Custom presets come from [presets.<id>] tables and from preset_files, which
// may be TOML or YAML catalogs.
package config
