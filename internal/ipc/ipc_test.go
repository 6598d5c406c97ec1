package ipc_test

import (
	"context"
	"strings"
	"testing"

	"aimatrix/internal/adapter"
	"aimatrix/internal/clock"
	"aimatrix/internal/daemon"
	"aimatrix/internal/ipc"
	"aimatrix/internal/job"
	"aimatrix/internal/logging"
	"aimatrix/internal/testsupport"
	"aimatrix/internal/workflow"
)

type stubAdapter struct {
	name job.Type
}

func (s *stubAdapter) Name() job.Type { return s.name }

func (s *stubAdapter) Initialize(context.Context) error { return nil }

func (s *stubAdapter) Execute(ctx context.Context, wf *job.Workflow) (job.Result, error) {
	return job.Result{Success: true, JobID: "job-1"}, nil
}

func (s *stubAdapter) Status(ctx context.Context, jobID string) (job.Snapshot, error) {
	return job.Snapshot{ID: jobID, Status: job.StatusRunning, Progress: 10}, nil
}

func (s *stubAdapter) Cancel(context.Context, string) error { return nil }

func (s *stubAdapter) Cleanup(context.Context) error { return nil }

func (s *stubAdapter) HealthCheck(context.Context) adapter.Health {
	return adapter.Healthy(string(s.name))
}

func startServer(t *testing.T) *ipc.Client {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, clock.System{})
	mgr := workflow.NewManager(logging.NewNop(),
		[]adapter.Adapter{&stubAdapter{name: job.TypeLocalPipeline}},
		workflow.WithDefinitionStore(store))

	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start daemon: %v", err)
	}

	server, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logging.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	server.Serve()
	t.Cleanup(func() {
		server.Close()
		d.Stop()
		cancel()
	})

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func wireWorkflow() job.Workflow {
	return job.Workflow{
		ID:      "wf-1",
		Name:    "novel to video",
		Type:    job.TypeLocalPipeline,
		Inputs:  []job.Port{{ID: "text", Name: "text", Type: job.PortText}},
		Outputs: []job.Port{{ID: "video", Name: "video", Type: job.PortVideo}},
	}
}

func TestStatusOverSocket(t *testing.T) {
	client := startServer(t)

	resp, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !resp.Running {
		t.Fatal("daemon should report running")
	}
	if len(resp.Backends) != 1 || !resp.Backends[0].Ready {
		t.Fatalf("unexpected backends: %+v", resp.Backends)
	}
	if resp.SocketPath == "" || resp.LockPath == "" {
		t.Fatalf("paths missing: %+v", resp)
	}
}

func TestWorkflowRoundTripOverSocket(t *testing.T) {
	client := startServer(t)

	exec, err := client.WorkflowExecute(ipc.WorkflowExecuteRequest{Workflow: wireWorkflow()})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !exec.Result.Success || exec.Result.JobID != "job-1" {
		t.Fatalf("unexpected result: %+v", exec.Result)
	}

	status, err := client.WorkflowStatus(exec.Result.JobID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Job.Status != job.StatusRunning {
		t.Fatalf("unexpected job: %+v", status.Job)
	}

	cancelResp, err := client.WorkflowCancel(exec.Result.JobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelResp.Cancelled {
		t.Fatal("cancel should be accepted")
	}
}

func TestWorkflowExecuteValidationOverSocket(t *testing.T) {
	client := startServer(t)

	bad := wireWorkflow()
	bad.Inputs = nil
	_, err := client.WorkflowExecute(ipc.WorkflowExecuteRequest{Workflow: bad})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "input") {
		t.Fatalf("error should carry the user message, got %v", err)
	}
}

func TestWorkflowStatusUnknownJobOverSocket(t *testing.T) {
	client := startServer(t)
	if _, err := client.WorkflowStatus("missing"); err == nil {
		t.Fatal("expected unknown-job error")
	}
}

func TestDefinitionsOverSocket(t *testing.T) {
	client := startServer(t)

	if _, err := client.WorkflowSave(ipc.WorkflowSaveRequest{Workflow: wireWorkflow()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	load, err := client.WorkflowLoad("wf-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if load.Workflow.Name != "novel to video" {
		t.Fatalf("unexpected definition: %+v", load.Workflow)
	}
	defs, err := client.WorkflowDefinitions()
	if err != nil {
		t.Fatalf("definitions: %v", err)
	}
	if len(defs.Workflows) != 1 {
		t.Fatalf("expected 1 definition, got %d", len(defs.Workflows))
	}
}

func TestSplitOverSocket(t *testing.T) {
	client := startServer(t)

	resp, err := client.Split(ipc.SplitRequest{Text: "第一章 开始\nHello\n第二章 继续\nWorld"})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(resp.Scenes) != 2 || resp.Scenes[0].Title != "第一章 开始" {
		t.Fatalf("unexpected scenes: %+v", resp.Scenes)
	}
}

func TestLogTailOverSocket(t *testing.T) {
	client := startServer(t)

	// No daemon log has been written yet; the tail comes back empty.
	resp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("log tail: %v", err)
	}
	if len(resp.Lines) != 0 {
		t.Fatalf("expected no lines, got %v", resp.Lines)
	}
}

func TestStopOverSocket(t *testing.T) {
	client := startServer(t)

	resp, err := client.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("stop should report success")
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("daemon should report stopped")
	}
}
