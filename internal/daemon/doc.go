// Package daemon composes the workflow manager, the asset store, and the
// single-instance lock into one long-running service. It owns the lifecycle:
// Start initializes every backend, Stop cancels outstanding jobs, tears the
// backends down, and releases the lock. All IPC operations route through the
// Daemon so callers never touch the manager or store directly.
package daemon
