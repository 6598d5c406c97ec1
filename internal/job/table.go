package job

import (
	"encoding/json"
	"sort"
	"sync"

	"aimatrix/internal/clock"
	"aimatrix/internal/services"
)

// Table is an in-memory job store owned by exactly one adapter. All access
// goes through its methods; the lock makes every lifecycle decision (create,
// transition, cancel) atomic so terminal states stay sticky under races.
//
// Jobs are deliberately not persisted: a process restart loses all job state.
type Table struct {
	mu        sync.Mutex
	clock     clock.Clock
	retention int
	jobs      map[string]*Job
	onEvict   func(ids []string)
}

// NewTable constructs an empty table. retention caps how many terminal jobs
// are kept for late status queries; zero means unlimited.
func NewTable(clk clock.Clock, retention int) *Table {
	if clk == nil {
		clk = clock.System{}
	}
	return &Table{
		clock:     clk,
		retention: retention,
		jobs:      make(map[string]*Job),
	}
}

// SetEvictionHook registers a callback invoked with the ids of terminal jobs
// removed by retention pruning. The hook runs outside the table lock. It must
// be set before the table sees traffic.
func (t *Table) SetEvictionHook(fn func(ids []string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEvict = fn
}

// Create inserts a new pending job for the workflow under the given id.
func (t *Table) Create(id string, wf *Workflow) Snapshot {
	t.mu.Lock()

	j := &Job{
		ID:        id,
		Status:    StatusPending,
		Message:   "queued",
		StartedAt: t.clock.Now(),
	}
	if wf != nil {
		j.WorkflowID = wf.ID
		j.Backend = wf.Type
	}
	t.jobs[id] = j
	evicted := t.pruneLocked()
	snap := j.snapshot()
	hook := t.onEvict
	t.mu.Unlock()

	if len(evicted) > 0 && hook != nil {
		hook(evicted)
	}
	return snap
}

// Get returns a snapshot of the job or services.ErrNotFound.
func (t *Table) Get(id string) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return Snapshot{}, services.Wrap(services.ErrNotFound, "job", "get", "unknown job "+id, nil)
	}
	return j.snapshot(), nil
}

// MarkRunning moves a pending job to running. Returns false without error
// when the job already left pending (for example a cancel won the race).
func (t *Table) MarkRunning(id, message string) (Snapshot, bool, error) {
	return t.transition(id, StatusRunning, func(j *Job) {
		j.Message = message
	})
}

// Complete moves a live job to completed with its result payload.
func (t *Table) Complete(id string, result json.RawMessage) (Snapshot, bool, error) {
	return t.transition(id, StatusCompleted, func(j *Job) {
		j.Progress = 100
		j.Message = "completed"
		j.Result = append(json.RawMessage(nil), result...)
		j.EndedAt = t.clock.Now()
	})
}

// Fail moves a live job to failed with a human-readable message.
func (t *Table) Fail(id, message string) (Snapshot, bool, error) {
	return t.transition(id, StatusFailed, func(j *Job) {
		j.Message = message
		if encoded, err := json.Marshal(map[string]string{"error": message}); err == nil {
			j.Result = encoded
		}
		j.EndedAt = t.clock.Now()
	})
}

// Cancel moves a pending or running job to cancelled. Cancelling a job that
// is already terminal is a no-op success, so repeated cancels are idempotent.
func (t *Table) Cancel(id, message string) (Snapshot, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return Snapshot{}, false, services.Wrap(services.ErrNotFound, "job", "cancel", "unknown job "+id, nil)
	}
	if j.Status.Terminal() {
		return j.snapshot(), false, nil
	}
	j.Status = StatusCancelled
	j.Message = message
	j.EndedAt = t.clock.Now()
	return j.snapshot(), true, nil
}

// CancelActive force-cancels every pending or running job and returns the ids
// that were transitioned. Used by adapter Cleanup.
func (t *Table) CancelActive(message string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cancelled []string
	for id, j := range t.jobs {
		if j.Status.Terminal() {
			continue
		}
		j.Status = StatusCancelled
		j.Message = message
		j.EndedAt = t.clock.Now()
		cancelled = append(cancelled, id)
	}
	sort.Strings(cancelled)
	return cancelled
}

// SetProgress records an advisory progress value for a running job. The
// stored value never decreases and is clamped to [0, 99] while running.
func (t *Table) SetProgress(id string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok || j.Status != StatusRunning {
		return
	}
	if progress > 99 {
		progress = 99
	}
	if progress > j.Progress {
		j.Progress = progress
	}
}

// List returns snapshots of every tracked job ordered by start time.
func (t *Table) List() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Snapshot, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j.snapshot())
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].StartedAt.Equal(out[k].StartedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].StartedAt.Before(out[k].StartedAt)
	})
	return out
}

// Clear drops all job state. Idempotent.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = make(map[string]*Job)
}

// Len reports the number of tracked jobs.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}

func (t *Table) transition(id string, next Status, mutate func(*Job)) (Snapshot, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	j, ok := t.jobs[id]
	if !ok {
		return Snapshot{}, false, services.Wrap(services.ErrNotFound, "job", "transition", "unknown job "+id, nil)
	}
	if !j.Status.CanTransition(next) {
		// Sticky terminal state: the earlier transition won.
		return j.snapshot(), false, nil
	}
	j.Status = next
	if mutate != nil {
		mutate(j)
	}
	return j.snapshot(), true, nil
}

// pruneLocked evicts the oldest terminal jobs once the table exceeds the
// retention cap and returns their ids. Live jobs are never evicted.
func (t *Table) pruneLocked() []string {
	if t.retention <= 0 || len(t.jobs) <= t.retention {
		return nil
	}
	var terminal []*Job
	for _, j := range t.jobs {
		if j.Status.Terminal() {
			terminal = append(terminal, j)
		}
	}
	excess := len(t.jobs) - t.retention
	if excess > len(terminal) {
		excess = len(terminal)
	}
	if excess <= 0 {
		return nil
	}
	sort.Slice(terminal, func(i, k int) bool {
		return terminal[i].EndedAt.Before(terminal[k].EndedAt)
	})
	evicted := make([]string, 0, excess)
	for _, j := range terminal[:excess] {
		delete(t.jobs, j.ID)
		evicted = append(evicted, j.ID)
	}
	return evicted
}
