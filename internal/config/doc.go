// Package config loads, normalizes, and validates hlsmerge configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// HLSMERGE_FFMPEG. The Config type centralizes every knob the CLI and the
// batch orchestrator need, so the state directory, transcoder invocation
// details, and history backend are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
