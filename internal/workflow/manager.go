package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"aimatrix/internal/adapter"
	"aimatrix/internal/job"
	"aimatrix/internal/logging"
	"aimatrix/internal/services"
)

// Manager routes workflow execution requests to backend adapters and tracks
// which adapter owns each job. The adapter is the single id authority: the
// manager's registry keys off the job id the adapter produced, and callers
// always use the id returned to them.
type Manager struct {
	logger *slog.Logger
	defs   DefinitionStore

	mu          sync.RWMutex
	adapters    map[job.Type]adapter.Adapter
	order       []job.Type
	registry    map[string]*job.Workflow
	initialized bool
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithDefinitionStore wires workflow definition persistence. Without it the
// save/load/list operations fail with services.ErrNotImplemented.
func WithDefinitionStore(defs DefinitionStore) Option {
	return func(m *Manager) {
		m.defs = defs
	}
}

// NewManager constructs a manager over the given adapters.
func NewManager(logger *slog.Logger, adapters []adapter.Adapter, opts ...Option) *Manager {
	m := &Manager{
		logger:   logging.NewComponentLogger(logger, "workflow"),
		adapters: make(map[job.Type]adapter.Adapter, len(adapters)),
		registry: make(map[string]*job.Workflow),
	}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		if _, dup := m.adapters[a.Name()]; dup {
			continue
		}
		m.adapters[a.Name()] = a
		m.order = append(m.order, a.Name())
		// Adapters with a retention cap evict old terminal jobs; the
		// registry forgets them at the same moment so late status queries
		// report an unknown job instead of a bookkeeping mismatch.
		if hooked, ok := a.(evictionNotifier); ok {
			hooked.SetEvictionHook(m.forget)
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize brings up every adapter sequentially, short-circuiting on the
// first failure so the daemon never runs with a partial backend set.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	if len(m.order) == 0 {
		return services.Wrap(services.ErrBackendUnavailable, "workflow", "initialize", "no adapters configured", nil)
	}
	for _, name := range m.order {
		if err := m.adapters[name].Initialize(ctx); err != nil {
			m.logger.Error("adapter initialization failed",
				logging.String(logging.FieldBackend, string(name)),
				logging.Error(err),
				logging.String(logging.FieldEventType, "adapter_init_failed"),
				logging.String(logging.FieldErrorHint, "check the backend's connectivity settings"),
			)
			return err
		}
	}
	m.initialized = true
	m.logger.Info("workflow manager initialized",
		logging.Int("adapters", len(m.order)),
		logging.String(logging.FieldEventType, "manager_initialized"),
	)
	return nil
}

// Execute dispatches a workflow to the adapter declared by its type and
// records the accepted job in the registry.
func (m *Manager) Execute(ctx context.Context, wf *job.Workflow) (job.Result, error) {
	if wf == nil {
		return job.Result{}, errors.New("workflow: execute: nil workflow config")
	}
	a, err := m.adapterFor(wf.Type)
	if err != nil {
		return job.Result{}, err
	}

	res, err := a.Execute(ctx, wf)
	if err != nil {
		return job.Result{}, err
	}
	if res.Success && res.JobID != "" {
		m.mu.Lock()
		m.registry[res.JobID] = wf
		m.mu.Unlock()
	}
	return res, nil
}

// Status resolves the owning adapter through the registry and returns the
// job snapshot.
func (m *Manager) Status(ctx context.Context, jobID string) (job.Snapshot, error) {
	a, err := m.resolve(jobID, "status")
	if err != nil {
		return job.Snapshot{}, err
	}
	snap, err := a.Status(ctx, jobID)
	if err != nil {
		return job.Snapshot{}, m.noteBookkeepingMismatch(jobID, "status", err)
	}
	return snap, nil
}

// Cancel resolves the owning adapter through the registry and requests a
// best-effort stop.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	a, err := m.resolve(jobID, "cancel")
	if err != nil {
		return err
	}
	if err := a.Cancel(ctx, jobID); err != nil {
		return m.noteBookkeepingMismatch(jobID, "cancel", err)
	}
	return nil
}

// Cleanup cancels every tracked job best-effort, then tears down all
// adapters unconditionally. One stuck job never blocks the rest of shutdown.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	tracked := make(map[string]job.Type, len(m.registry))
	for id, wf := range m.registry {
		tracked[id] = wf.Type
	}
	m.registry = make(map[string]*job.Workflow)
	adapters := make([]adapter.Adapter, 0, len(m.order))
	for _, name := range m.order {
		adapters = append(adapters, m.adapters[name])
	}
	m.mu.Unlock()

	ids := make([]string, 0, len(tracked))
	for id := range tracked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a, err := m.adapterFor(tracked[id])
		if err != nil {
			continue
		}
		if err := a.Cancel(ctx, id); err != nil {
			m.logger.Warn("cancel during cleanup failed",
				logging.String(logging.FieldJobID, id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cleanup_cancel_failed"),
				logging.String(logging.FieldErrorHint, "job state is dropped at shutdown regardless"),
			)
		}
	}

	for _, a := range adapters {
		if err := a.Cleanup(ctx); err != nil {
			m.logger.Warn("adapter cleanup failed",
				logging.String(logging.FieldBackend, string(a.Name())),
				logging.Error(err),
				logging.String(logging.FieldEventType, "adapter_cleanup_failed"),
			)
		}
	}
	m.logger.Info("workflow manager cleaned up",
		logging.Int("jobs_cancelled", len(ids)),
		logging.String(logging.FieldEventType, "manager_cleanup"),
	)
	return nil
}

// Jobs returns snapshots of every tracked job across all adapters, ordered
// by start time.
func (m *Manager) Jobs() []job.Snapshot {
	m.mu.RLock()
	adapters := make([]adapter.Adapter, 0, len(m.order))
	for _, name := range m.order {
		adapters = append(adapters, m.adapters[name])
	}
	m.mu.RUnlock()

	var out []job.Snapshot
	for _, a := range adapters {
		if lister, ok := a.(interface{ Jobs() []job.Snapshot }); ok {
			out = append(out, lister.Jobs()...)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].StartedAt.Equal(out[k].StartedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].StartedAt.Before(out[k].StartedAt)
	})
	return out
}

// Health reports every adapter's readiness.
func (m *Manager) Health(ctx context.Context) []adapter.Health {
	m.mu.RLock()
	adapters := make([]adapter.Adapter, 0, len(m.order))
	for _, name := range m.order {
		adapters = append(adapters, m.adapters[name])
	}
	m.mu.RUnlock()

	out := make([]adapter.Health, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, a.HealthCheck(ctx))
	}
	return out
}

func (m *Manager) adapterFor(t job.Type) (adapter.Adapter, error) {
	m.mu.RLock()
	a, ok := m.adapters[t]
	m.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrUnsupportedType, "workflow", "dispatch", "no adapter for type "+string(t), nil)
	}
	return a, nil
}

// evictionNotifier is implemented by adapters that prune terminal jobs under
// a retention cap and can report the evicted ids.
type evictionNotifier interface {
	SetEvictionHook(fn func(ids []string))
}

// forget drops evicted job ids from the registry.
func (m *Manager) forget(ids []string) {
	m.mu.Lock()
	for _, id := range ids {
		delete(m.registry, id)
	}
	m.mu.Unlock()
	m.logger.Debug("evicted jobs dropped from registry",
		logging.Int("count", len(ids)),
		logging.String(logging.FieldEventType, "jobs_evicted"),
	)
}

func (m *Manager) resolve(jobID, operation string) (adapter.Adapter, error) {
	m.mu.RLock()
	wf, ok := m.registry[jobID]
	m.mu.RUnlock()
	if !ok {
		return nil, services.Wrap(services.ErrJobNotFound, "workflow", operation, "unknown job "+jobID, nil)
	}
	return m.adapterFor(wf.Type)
}

// noteBookkeepingMismatch flags the case where the registry knows a job but
// its adapter does not. That split means manager and adapter state diverged.
func (m *Manager) noteBookkeepingMismatch(jobID, operation string, err error) error {
	if errors.Is(err, services.ErrNotFound) {
		m.logger.Error("registry and adapter disagree about job",
			logging.String(logging.FieldJobID, jobID),
			logging.String("operation", operation),
			logging.Error(err),
			logging.String(logging.FieldEventType, "registry_mismatch"),
			logging.String(logging.FieldErrorHint, "this indicates a bookkeeping bug, not a caller error"),
		)
	}
	return err
}
