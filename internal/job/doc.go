// Package job defines the workflow request and job lifecycle models shared by
// the manager and the backend adapters.
//
// A Workflow is the caller-supplied execution request; a Job is one unit of
// execution an adapter tracks from pending through running to a terminal
// completed/failed/cancelled state. Terminal states are sticky: once a job
// reaches one, no later transition may overwrite it, and Table enforces that
// rule under its lock so a cancel racing a completion has exactly one winner.
//
// Treat this package as the single source of truth for lifecycle semantics;
// when you add new statuses or result fields, update the transition rules and
// the snapshot shape together.
package job
