// Package workflow dispatches execution requests to backend adapters.
//
// The manager owns a registry mapping accepted job ids to the workflow that
// produced them, which lets status and cancel calls find the right adapter
// without the caller naming it. Adapters remain the sole authority on job
// ids and lifecycle; the manager never invents ids or mutates job state
// directly.
package workflow
