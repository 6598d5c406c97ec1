package adapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"aimatrix/internal/adapter"
	"aimatrix/internal/clock"
	"aimatrix/internal/ident"
	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

// fakeBackend blocks each Run until released, so tests control completion
// order deterministically.
type fakeBackend struct {
	pingErr  error
	runErr   error
	output   json.RawMessage
	release  chan struct{}
	started  chan struct{}
	runCount atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		output:  json.RawMessage(`{"video":"out.mp4"}`),
		release: make(chan struct{}),
		started: make(chan struct{}, 16),
	}
}

func (f *fakeBackend) Ping(context.Context) error { return f.pingErr }

func (f *fakeBackend) Run(ctx context.Context, _ *job.Workflow) (json.RawMessage, error) {
	f.runCount.Add(1)
	f.started <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.release:
	}
	if f.runErr != nil {
		return nil, f.runErr
	}
	return f.output, nil
}

func testWorkflow(t job.Type) *job.Workflow {
	return &job.Workflow{
		ID:      "wf-1",
		Name:    "scene renders",
		Type:    t,
		Inputs:  []job.Port{{ID: "text", Name: "chapter", Type: job.PortText, Required: true}},
		Outputs: []job.Port{{ID: "video", Name: "clip", Type: job.PortVideo}},
	}
}

func newRunner(t *testing.T, backend adapter.Backend) (*adapter.Runner, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	runner := adapter.NewRunner(job.TypeLocalPipeline, backend, adapter.RunnerOptions{
		Clock:   fake,
		IDs:     &ident.Sequence{Prefix: "job"},
		Nominal: time.Minute,
	})
	if err := runner.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return runner, fake
}

func waitForStatus(t *testing.T, runner *adapter.Runner, id string, want job.Status) job.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := runner.Status(context.Background(), id)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if snap.Status == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return job.Snapshot{}
}

func TestExecuteReturnsBeforeBackendFinishes(t *testing.T) {
	backend := newFakeBackend()
	runner, _ := newRunner(t, backend)

	// Submission must not block on the (still unreleased) backend run.
	res, err := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || res.JobID == "" {
		t.Fatalf("result = %+v", res)
	}

	<-backend.started
	snap := waitForStatus(t, runner, res.JobID, job.StatusRunning)
	if snap.Status != job.StatusRunning {
		t.Fatalf("status = %s", snap.Status)
	}

	close(backend.release)
	snap = waitForStatus(t, runner, res.JobID, job.StatusCompleted)
	if string(snap.Result) != `{"video":"out.mp4"}` {
		t.Fatalf("result payload = %s", snap.Result)
	}
	if snap.Progress != 100 {
		t.Fatalf("completed progress = %d", snap.Progress)
	}
}

func TestBackendFailureLandsOnJobNotCaller(t *testing.T) {
	backend := newFakeBackend()
	backend.runErr = services.Wrap(services.ErrExecutionFailed, "local-pipeline", "render", "GPU out of memory", nil)
	runner, _ := newRunner(t, backend)

	res, err := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline))
	if err != nil {
		t.Fatalf("Execute must not surface backend failures: %v", err)
	}
	close(backend.release)

	snap := waitForStatus(t, runner, res.JobID, job.StatusFailed)
	if snap.Message == "" || snap.EndedAt.IsZero() {
		t.Fatalf("failed snapshot missing message or end time: %+v", snap)
	}
}

func TestExecuteRejectsCallerBugs(t *testing.T) {
	runner, _ := newRunner(t, newFakeBackend())

	if _, err := runner.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil workflow")
	}
	wrong := testWorkflow(job.TypeToolCall)
	if _, err := runner.Execute(context.Background(), wrong); err == nil {
		t.Fatal("expected error for mistyped workflow")
	}
}

func TestExecuteBeforeInitialize(t *testing.T) {
	runner := adapter.NewRunner(job.TypeLocalPipeline, newFakeBackend(), adapter.RunnerOptions{})
	if _, err := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline)); err == nil {
		t.Fatal("expected error before Initialize")
	}
}

func TestInitializeFailureIsBackendUnavailable(t *testing.T) {
	backend := newFakeBackend()
	backend.pingErr = errors.New("connection refused")
	runner := adapter.NewRunner(job.TypeAutomation, backend, adapter.RunnerOptions{})
	err := runner.Initialize(context.Background())
	if !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("Initialize error = %v", err)
	}
}

func TestCancelRunningJob(t *testing.T) {
	backend := newFakeBackend()
	runner, _ := newRunner(t, backend)

	res, err := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	<-backend.started
	waitForStatus(t, runner, res.JobID, job.StatusRunning)

	if err := runner.Cancel(context.Background(), res.JobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	snap := waitForStatus(t, runner, res.JobID, job.StatusCancelled)
	if snap.EndedAt.IsZero() {
		t.Fatal("cancel must set end time")
	}

	// Second cancel is a no-op success.
	if err := runner.Cancel(context.Background(), res.JobID); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
}

func TestCancelBeforeBackendStartSkipsRun(t *testing.T) {
	backend := newFakeBackend()
	fake := clock.NewFake(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	runner := adapter.NewRunner(job.TypeLocalPipeline, backend, adapter.RunnerOptions{
		Clock: fake,
		IDs:   &ident.Sequence{Prefix: "job"},
	})
	if err := runner.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// Cancel immediately after submission; whichever way the race resolves,
	// the job must end cancelled and a pre-start cancel must keep the
	// backend from running at all.
	for attempt := 0; attempt < 10; attempt++ {
		res, err := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if err := runner.Cancel(context.Background(), res.JobID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		snap := waitForStatus(t, runner, res.JobID, job.StatusCancelled)
		if snap.Status != job.StatusCancelled {
			t.Fatalf("status = %s", snap.Status)
		}
	}
	// However the races resolved, cancelled jobs stay cancelled.
	for _, snap := range runner.Jobs() {
		if snap.Status != job.StatusCancelled {
			t.Fatalf("job %s finished %s after cancel", snap.ID, snap.Status)
		}
	}
}

func TestStatusProgressIsMonotonicWhileRunning(t *testing.T) {
	backend := newFakeBackend()
	runner, fake := newRunner(t, backend)

	res, _ := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline))
	<-backend.started
	waitForStatus(t, runner, res.JobID, job.StatusRunning)

	fake.Advance(15 * time.Second)
	first, err := runner.Status(context.Background(), res.JobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	fake.Advance(15 * time.Second)
	second, err := runner.Status(context.Background(), res.JobID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if first.Progress < 0 || first.Progress > 99 || second.Progress > 99 {
		t.Fatalf("progress out of range: %d then %d", first.Progress, second.Progress)
	}
	if second.Progress < first.Progress {
		t.Fatalf("progress decreased: %d -> %d", first.Progress, second.Progress)
	}
	close(backend.release)
}

// remoteCancelBackend reports cancellation on its own, the way a remote
// backend does when its operator stops the job server-side. The local
// context is never cancelled.
type remoteCancelBackend struct{}

func (remoteCancelBackend) Ping(context.Context) error { return nil }

func (remoteCancelBackend) Run(context.Context, *job.Workflow) (json.RawMessage, error) {
	return nil, context.Canceled
}

func TestRemoteCancellationTerminatesJob(t *testing.T) {
	runner, _ := newRunner(t, remoteCancelBackend{})

	res, err := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	snap := waitForStatus(t, runner, res.JobID, job.StatusCancelled)
	if snap.Message != "cancelled by backend" {
		t.Fatalf("message = %q", snap.Message)
	}
	if snap.EndedAt.IsZero() {
		t.Fatal("remote cancellation must set end time")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	runner, _ := newRunner(t, newFakeBackend())
	if _, err := runner.Status(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Status error = %v", err)
	}
	if err := runner.Cancel(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Cancel error = %v", err)
	}
}

func TestCleanupCancelsOutstandingJobsAndClears(t *testing.T) {
	backend := newFakeBackend()
	runner, _ := newRunner(t, backend)

	res1, _ := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline))
	res2, _ := runner.Execute(context.Background(), testWorkflow(job.TypeLocalPipeline))
	<-backend.started
	<-backend.started

	if err := runner.Cleanup(context.Background()); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	for _, id := range []string{res1.JobID, res2.JobID} {
		if _, err := runner.Status(context.Background(), id); !errors.Is(err, services.ErrNotFound) {
			t.Fatalf("job %s should be cleared after cleanup, err = %v", id, err)
		}
	}

	// Idempotent: nothing left to cancel, no error.
	if err := runner.Cleanup(context.Background()); err != nil {
		t.Fatalf("second Cleanup: %v", err)
	}
}
