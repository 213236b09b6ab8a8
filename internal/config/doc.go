// Package config loads, normalizes, and validates subpilot configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SUBPILOT_SERVICE_URL. The Config type centralizes every knob the CLI and the
// orchestrator need: where the transcription service lives, how the event
// channel is reached, which files are accepted, and how sessions time out.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical transports, and clear validation errors.
package config
