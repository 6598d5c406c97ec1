package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aimatrix/internal/clock"
	"aimatrix/internal/ident"
	"aimatrix/internal/job"
	"aimatrix/internal/logging"
	"aimatrix/internal/services"
)

// RunnerOptions configures the shared adapter machinery.
type RunnerOptions struct {
	Clock clock.Clock
	IDs   ident.Generator
	// Logger receives lifecycle events; nil means no output.
	Logger *slog.Logger
	// Retention caps terminal jobs kept for late status queries.
	Retention int
	// Nominal is the expected duration of one backend run, used only for
	// the advisory progress estimate while a job is running.
	Nominal time.Duration
}

// Runner implements the full Adapter lifecycle around a Backend. Each
// concrete adapter owns one Runner; the job table it carries is private to
// that adapter and is only reached through Adapter methods.
type Runner struct {
	name    job.Type
	backend Backend
	clock   clock.Clock
	ids     ident.Generator
	logger  *slog.Logger
	nominal time.Duration
	table   *job.Table

	mu          sync.Mutex
	cancels     map[string]context.CancelFunc
	initialized bool

	wg sync.WaitGroup
}

// NewRunner builds the shared runner for one backend.
func NewRunner(name job.Type, backend Backend, opts RunnerOptions) *Runner {
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}
	ids := opts.IDs
	if ids == nil {
		ids = ident.New(clk)
	}
	nominal := opts.Nominal
	if nominal <= 0 {
		nominal = time.Minute
	}
	return &Runner{
		name:    name,
		backend: backend,
		clock:   clk,
		ids:     ids,
		logger:  logging.NewComponentLogger(opts.Logger, string(name)),
		nominal: nominal,
		table:   job.NewTable(clk, opts.Retention),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Name returns the workflow type this runner serves.
func (r *Runner) Name() job.Type { return r.name }

// SetEvictionHook registers a callback invoked with the ids of terminal jobs
// dropped by retention pruning, so upstream bookkeeping can forget them too.
// It must be set before the adapter accepts work.
func (r *Runner) SetEvictionHook(fn func(ids []string)) {
	r.table.SetEvictionHook(fn)
}

// Initialize checks backend connectivity once. Failure is fatal to manager
// startup.
func (r *Runner) Initialize(ctx context.Context) error {
	if r.backend == nil {
		return services.Wrap(services.ErrBackendUnavailable, string(r.name), "initialize", "no backend configured", nil)
	}
	if err := r.backend.Ping(ctx); err != nil {
		return services.Wrap(services.ErrBackendUnavailable, string(r.name), "initialize", "connectivity check failed", err)
	}
	r.mu.Lock()
	r.initialized = true
	r.mu.Unlock()
	r.logger.Debug("adapter initialized")
	return nil
}

// Execute accepts a workflow, creates its job, and starts the backend run in
// the background. It never blocks on job completion and never returns an
// error for ordinary backend failures; those land on the job instead. The
// error return is reserved for caller bugs (nil or mistyped config, execute
// before initialize).
func (r *Runner) Execute(ctx context.Context, wf *job.Workflow) (job.Result, error) {
	start := r.clock.Now()
	if wf == nil {
		return job.Result{}, fmt.Errorf("%s: execute: nil workflow config", r.name)
	}
	if wf.Type != r.name {
		return job.Result{}, fmt.Errorf("%s: execute: workflow type %q routed to wrong adapter", r.name, wf.Type)
	}
	r.mu.Lock()
	ready := r.initialized
	r.mu.Unlock()
	if !ready {
		return job.Result{}, fmt.Errorf("%s: execute: adapter not initialized", r.name)
	}

	id := r.ids.NewID()
	r.table.Create(id, wf)

	// The job outlives the submitting call: detach from the caller's
	// deadline but keep its values for logging.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = services.WithJobID(runCtx, id)
	runCtx = services.WithBackend(runCtx, string(r.name))

	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(runCtx, id, wf)

	r.logger.Info("job accepted",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldWorkflow, wf.Name),
		logging.String(logging.FieldEventType, "job_accepted"),
	)
	return job.Result{
		Success:       true,
		JobID:         id,
		ExecutionTime: r.clock.Now().Sub(start),
	}, nil
}

func (r *Runner) run(ctx context.Context, id string, wf *job.Workflow) {
	defer r.wg.Done()
	defer r.releaseCancel(id)

	logger := logging.WithContext(ctx, r.logger)

	_, applied, err := r.table.MarkRunning(id, "backend started")
	if err != nil || !applied {
		// Cancelled before the backend started; never invoke it.
		logger.Debug("job left pending before start; skipping backend run")
		return
	}

	output, runErr := r.backend.Run(ctx, wf)
	switch {
	case runErr == nil:
		if _, applied, _ := r.table.Complete(id, output); !applied {
			logger.Debug("backend finished after terminal state; result discarded")
			return
		}
		logger.Info("job completed", logging.String(logging.FieldEventType, "job_completed"))
	case errors.Is(runErr, context.Canceled):
		if ctx.Err() == nil {
			// The backend reported cancellation on its own, with no local
			// Cancel to have made the job terminal. Record it here or the
			// job would sit in running forever.
			if _, applied, _ := r.table.Cancel(id, "cancelled by backend"); applied {
				logger.Info("job cancelled by backend",
					logging.String(logging.FieldEventType, "job_cancelled"),
				)
			}
			return
		}
		// Local cancel already moved the job to its terminal state.
		logger.Debug("backend run cancelled")
	default:
		if _, applied, _ := r.table.Fail(id, services.UserMessage(runErr)); !applied {
			logger.Debug("backend failed after terminal state; error discarded")
			return
		}
		logger.Warn("job failed",
			logging.Error(runErr),
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, "inspect the job message and backend logs"),
		)
	}
}

// Status returns the job snapshot, synthesizing a monotonically
// non-decreasing progress estimate while the job runs. The estimate is
// advisory only.
func (r *Runner) Status(_ context.Context, id string) (job.Snapshot, error) {
	snap, err := r.table.Get(id)
	if err != nil {
		return job.Snapshot{}, err
	}
	if snap.Status == job.StatusRunning {
		elapsed := r.clock.Now().Sub(snap.StartedAt)
		estimate := int(elapsed * 95 / r.nominal)
		r.table.SetProgress(id, estimate)
		return r.table.Get(id)
	}
	return snap, nil
}

// Cancel transitions a pending or running job to cancelled and best-effort
// signals the backend to stop. Cancelling a terminal job is a no-op success.
func (r *Runner) Cancel(_ context.Context, id string) error {
	_, applied, err := r.table.Cancel(id, "cancel requested")
	if err != nil {
		return err
	}
	if applied {
		r.signalCancel(id)
		r.logger.Info("job cancelled",
			logging.String(logging.FieldJobID, id),
			logging.String(logging.FieldEventType, "job_cancelled"),
		)
	}
	return nil
}

// Cleanup force-cancels all outstanding jobs, waits for their backend calls
// to unwind, and clears the job table. Idempotent.
func (r *Runner) Cleanup(_ context.Context) error {
	cancelled := r.table.CancelActive(job.ShutdownCancelMessage)
	for _, id := range cancelled {
		r.signalCancel(id)
	}
	r.wg.Wait()

	r.mu.Lock()
	r.cancels = make(map[string]context.CancelFunc)
	r.mu.Unlock()
	r.table.Clear()

	if len(cancelled) > 0 {
		r.logger.Info("outstanding jobs cancelled at shutdown",
			logging.Int("count", len(cancelled)),
			logging.String(logging.FieldEventType, "adapter_cleanup"),
		)
	}
	return nil
}

// HealthCheck reports backend readiness without mutating any job state.
func (r *Runner) HealthCheck(ctx context.Context) Health {
	if r.backend == nil {
		return Unhealthy(string(r.name), "no backend configured")
	}
	if err := r.backend.Ping(ctx); err != nil {
		return Unhealthy(string(r.name), err.Error())
	}
	return Healthy(string(r.name))
}

// Jobs lists snapshots of every job this adapter tracks.
func (r *Runner) Jobs() []job.Snapshot {
	return r.table.List()
}

func (r *Runner) signalCancel(id string) {
	r.mu.Lock()
	cancel := r.cancels[id]
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Runner) releaseCancel(id string) {
	r.mu.Lock()
	cancel := r.cancels[id]
	delete(r.cancels, id)
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
