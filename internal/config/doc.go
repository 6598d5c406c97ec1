// Package config loads, validates, and normalizes aimatrix configuration.
//
// Configuration is a single TOML file with sections per subsystem (paths,
// logging, workflow, backends, fan-out, segmentation). Load resolves the file
// from an explicit path or the default location, applies defaults for unset
// values, expands user paths, and validates the result so downstream code can
// assume a fully-populated Config.
//
// CreateSample writes the embedded annotated sample for `aimatrix config init`.
package config
