// Package toolcall runs workflows through an installed tool capability
// provider (the plugin system's execute surface).
//
// The provider is an opaque collaborator: one Execute(action, params) call
// per job, with the workflow's params bag passed through untouched. Sandbox
// and capability checks live behind the provider, not here.
package toolcall

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"aimatrix/internal/adapter"
	"aimatrix/internal/clock"
	"aimatrix/internal/config"
	"aimatrix/internal/ident"
	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

// Provider is the tool capability surface this adapter dispatches to.
type Provider interface {
	// Actions lists the action names the provider can execute.
	Actions(ctx context.Context) ([]string, error)
	// Execute invokes one action with opaque parameters.
	Execute(ctx context.Context, action string, params json.RawMessage) (json.RawMessage, error)
}

// New constructs the tool-call adapter around a capability provider.
func New(cfg *config.Config, provider Provider, clk clock.Clock, ids ident.Generator, logger *slog.Logger) *adapter.Runner {
	return adapter.NewRunner(job.TypeToolCall, &backend{provider: provider}, adapter.RunnerOptions{
		Clock:     clk,
		IDs:       ids,
		Logger:    logger,
		Retention: cfg.Workflow.JobRetention,
		Nominal:   time.Duration(cfg.ToolCall.NominalSeconds) * time.Second,
	})
}

type backend struct {
	provider Provider
}

// params is the tool-call shape of a workflow's opaque config bag.
type params struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
}

// Ping verifies the provider is present and answering.
func (b *backend) Ping(ctx context.Context) error {
	if b.provider == nil {
		return services.Wrap(services.ErrBackendUnavailable, "tool-call", "ping", "no tool provider installed", nil)
	}
	if _, err := b.provider.Actions(ctx); err != nil {
		return services.Wrap(services.ErrBackendUnavailable, "tool-call", "ping", "tool provider not responding", err)
	}
	return nil
}

// Run invokes the workflow's declared action once.
func (b *backend) Run(ctx context.Context, wf *job.Workflow) (json.RawMessage, error) {
	var p params
	if len(wf.Params) > 0 {
		if err := json.Unmarshal(wf.Params, &p); err != nil {
			return nil, services.Wrap(services.ErrValidation, "tool-call", "run", "malformed tool params", err)
		}
	}
	if p.Action == "" {
		return nil, services.Wrap(services.ErrValidation, "tool-call", "run", "workflow params missing action", nil)
	}

	output, err := b.provider.Execute(ctx, p.Action, p.Params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrExecutionFailed, "tool-call", p.Action, "", err)
	}
	return output, nil
}
