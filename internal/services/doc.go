// Package services defines shared utilities consumed by the workflow manager
// and the backend adapters.
//
// Key responsibilities:
//   - Sentinel error markers plus the Wrap helper that keep failure
//     classification consistent across adapters, the manager, and the
//     fan-out pool.
//   - Context helpers that stamp job IDs, backend names, and correlation
//     identifiers for logging.
//
// Use these helpers when wiring new backend logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
