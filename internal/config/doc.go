// Package config loads, normalizes, and validates template filler configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as TEMPLATE_FILLER_DEBUG
// and the standard AWS credential variables. The Config type centralizes every
// knob the HTTP service and CLI need: store locations, archive limits, the
// template schema path, fill policies, and the storage backend.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policy names, and clear validation errors.
package config
