package adapter

import (
	"context"
	"encoding/json"

	"aimatrix/internal/job"
)

// Adapter describes the contract the workflow manager needs from each
// backend. Execute returns as soon as the job is accepted; callers poll
// Status with the returned job id and may Cancel at any time.
type Adapter interface {
	Name() job.Type
	Initialize(context.Context) error
	Execute(context.Context, *job.Workflow) (job.Result, error)
	Status(context.Context, string) (job.Snapshot, error)
	Cancel(context.Context, string) error
	Cleanup(context.Context) error
	HealthCheck(context.Context) Health
}

// Health summarizes the readiness of a backend adapter.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Backend is the blocking half an adapter wraps: one call per job, expected
// to honor context cancellation. Run's error is recorded on the job, never
// propagated to the submitting caller.
type Backend interface {
	Ping(context.Context) error
	Run(context.Context, *job.Workflow) (json.RawMessage, error)
}
