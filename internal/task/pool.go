package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"aimatrix/internal/ident"
	"aimatrix/internal/logging"
	"aimatrix/internal/services"
)

// Status is the lifecycle of one pooled task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Spec describes one unit of background work.
type Spec struct {
	Name string
	Run  func(ctx context.Context) (json.RawMessage, error)
}

// Snapshot is an immutable view of one task's state.
type Snapshot struct {
	ID     string          `json:"id"`
	Name   string          `json:"name,omitempty"`
	Status Status          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Result pairs one task id from a batch wait with its outcome. Err is nil
// only for tasks that completed inside the wait window.
type Result struct {
	ID     string
	Output json.RawMessage
	Err    error
}

type task struct {
	id     string
	name   string
	status Status
	output json.RawMessage
	err    error
}

// Pool runs independent tasks with a fixed concurrency ceiling. The ceiling
// is a constructor parameter enforced by the pool itself, never left to
// caller discipline.
type Pool struct {
	logger *slog.Logger
	ids    ident.Generator
	sem    chan struct{}
	poll   time.Duration

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

// Option configures a Pool.
type Option func(*Pool)

// WithPollInterval overrides how often waits re-check task status.
func WithPollInterval(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.poll = d
		}
	}
}

// WithIDGenerator overrides the task id source.
func WithIDGenerator(ids ident.Generator) Option {
	return func(p *Pool) {
		if ids != nil {
			p.ids = ids
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "task")
		}
	}
}

// New constructs a pool with the given concurrency ceiling.
func New(maxConcurrent int, opts ...Option) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	p := &Pool{
		logger: logging.NewNop(),
		ids:    &ident.Sequence{Prefix: "task"},
		sem:    make(chan struct{}, maxConcurrent),
		poll:   time.Second,
		tasks:  make(map[string]*task),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Create registers the work and returns its id immediately. The work itself
// runs on a goroutine once a concurrency slot frees up.
func (p *Pool) Create(ctx context.Context, spec Spec) (string, error) {
	if spec.Run == nil {
		return "", services.Wrap(services.ErrValidation, "task", "create", "spec has no work function", nil)
	}
	t := &task{
		id:     p.ids.NewID(),
		name:   spec.Name,
		status: StatusPending,
	}
	p.mu.Lock()
	p.tasks[t.id] = t
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, t, spec.Run)
	return t.id, nil
}

func (p *Pool) run(ctx context.Context, t *task, work func(context.Context) (json.RawMessage, error)) {
	defer p.wg.Done()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		p.finish(t, nil, ctx.Err())
		return
	}
	defer func() { <-p.sem }()

	p.mu.Lock()
	t.status = StatusRunning
	p.mu.Unlock()

	out, err := work(ctx)
	p.finish(t, out, err)
	if err != nil {
		p.logger.Warn("task failed",
			logging.String(logging.FieldTaskID, t.id),
			logging.Error(err),
		)
	}
}

func (p *Pool) finish(t *task, out json.RawMessage, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		t.status = StatusFailed
		t.err = err
		return
	}
	t.status = StatusCompleted
	t.output = out
}

// Status returns a snapshot of one task.
func (p *Pool) Status(id string) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tasks[id]
	if !ok {
		return Snapshot{}, services.Wrap(services.ErrNotFound, "task", "status", "unknown task "+id, nil)
	}
	return t.snapshot(), nil
}

func (t *task) snapshot() Snapshot {
	snap := Snapshot{ID: t.id, Name: t.name, Status: t.status}
	if len(t.output) > 0 {
		snap.Output = append(json.RawMessage(nil), t.output...)
	}
	if t.err != nil {
		snap.Error = t.err.Error()
	}
	return snap
}

// Wait blocks until the task reaches a terminal status or timeout elapses,
// polling at the pool's interval. A failed task yields ErrTaskFailed
// wrapping the underlying cause; exceeding timeout yields ErrTimeout.
func (p *Pool) Wait(ctx context.Context, id string, timeout time.Duration) (json.RawMessage, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	for {
		p.mu.Lock()
		t, ok := p.tasks[id]
		if !ok {
			p.mu.Unlock()
			return nil, services.Wrap(services.ErrNotFound, "task", "wait", "unknown task "+id, nil)
		}
		status := t.status
		out := t.output
		cause := t.err
		p.mu.Unlock()

		switch status {
		case StatusCompleted:
			return out, nil
		case StatusFailed:
			return nil, services.Wrap(services.ErrTaskFailed, "task", "wait", "task "+id+" failed", cause)
		}

		select {
		case <-ticker.C:
		case <-deadline.C:
			return nil, services.Wrap(services.ErrTimeout, "task", "wait", "task "+id+" did not finish in time", nil)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// WaitAll waits for every task concurrently within a single shared window.
// results[i] always corresponds to ids[i]. On failure or timeout the
// returned error belongs to the first offending task in slice order, and
// results still carry the outcomes of every task that did finish.
func (p *Pool) WaitAll(ctx context.Context, ids []string, timeout time.Duration) ([]Result, error) {
	results := make([]Result, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			out, err := p.Wait(ctx, id, timeout)
			results[i] = Result{ID: id, Output: out, Err: err}
		}(i, id)
	}
	wg.Wait()

	for _, res := range results {
		if res.Err != nil {
			return results, res.Err
		}
	}
	return results, nil
}

// Close waits for every outstanding task goroutine to return. The pool must
// not be used afterwards.
func (p *Pool) Close() {
	p.wg.Wait()
}
