package workflow

import (
	"context"

	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

// DefinitionStore persists reusable workflow definitions.
type DefinitionStore interface {
	SaveDefinition(ctx context.Context, wf *job.Workflow) error
	LoadDefinition(ctx context.Context, id string) (*job.Workflow, error)
	ListDefinitions(ctx context.Context) ([]*job.Workflow, error)
}

// ValidateWorkflow checks structural requirements before a workflow reaches
// an adapter or the definition store.
func ValidateWorkflow(wf *job.Workflow) error {
	if wf == nil {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "workflow config is required", nil)
	}
	if wf.ID == "" {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "workflow id is required", nil)
	}
	if wf.Name == "" {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "workflow name is required", nil)
	}
	if _, ok := job.ParseType(string(wf.Type)); !ok {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "unknown workflow type "+string(wf.Type), nil)
	}
	if len(wf.Inputs) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "at least one input port is required", nil)
	}
	if len(wf.Outputs) == 0 {
		return services.Wrap(services.ErrValidation, "workflow", "validate", "at least one output port is required", nil)
	}
	return nil
}

// SaveWorkflow validates and persists a workflow definition.
func (m *Manager) SaveWorkflow(ctx context.Context, wf *job.Workflow) error {
	if m.defs == nil {
		return services.Wrap(services.ErrNotImplemented, "workflow", "save", "no definition store configured", nil)
	}
	if err := ValidateWorkflow(wf); err != nil {
		return err
	}
	return m.defs.SaveDefinition(ctx, wf)
}

// LoadWorkflow fetches a saved definition by id.
func (m *Manager) LoadWorkflow(ctx context.Context, id string) (*job.Workflow, error) {
	if m.defs == nil {
		return nil, services.Wrap(services.ErrNotImplemented, "workflow", "load", "no definition store configured", nil)
	}
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "workflow", "load", "definition id is required", nil)
	}
	return m.defs.LoadDefinition(ctx, id)
}

// ListWorkflows returns every saved definition.
func (m *Manager) ListWorkflows(ctx context.Context) ([]*job.Workflow, error) {
	if m.defs == nil {
		return nil, services.Wrap(services.ErrNotImplemented, "workflow", "list", "no definition store configured", nil)
	}
	return m.defs.ListDefinitions(ctx)
}
