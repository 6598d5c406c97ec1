package localpipe

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

func restoreHooks(t *testing.T) {
	t.Helper()
	origCommand := commandContext
	origLook := lookPath
	t.Cleanup(func() {
		commandContext = origCommand
		lookPath = origLook
	})
}

func testWorkflow() *job.Workflow {
	return &job.Workflow{
		ID:      "wf-1",
		Name:    "render",
		Type:    job.TypeLocalPipeline,
		Inputs:  []job.Port{{ID: "text", Type: job.PortText, Required: true}},
		Outputs: []job.Port{{ID: "video", Type: job.PortVideo}},
	}
}

func TestPingFailsWhenExecutableMissing(t *testing.T) {
	restoreHooks(t)
	lookPath = func(string) (string, error) {
		return "", exec.ErrNotFound
	}
	b := &backend{command: "aimatrix-pipeline"}
	if err := b.Ping(context.Background()); !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("Ping error = %v", err)
	}
}

func TestRunReturnsJSONStdout(t *testing.T) {
	restoreHooks(t)
	lookPath = func(string) (string, error) { return "/bin/sh", nil }
	commandContext = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", `echo '{"video":"scene.mp4"}'`)
	}

	b := &backend{command: "aimatrix-pipeline"}
	out, err := b.Run(context.Background(), testWorkflow())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded["video"] != "scene.mp4" {
		t.Fatalf("output = %v", decoded)
	}
}

func TestRunWrapsPlainTextOutput(t *testing.T) {
	restoreHooks(t)
	commandContext = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo done")
	}

	b := &backend{command: "aimatrix-pipeline"}
	out, err := b.Run(context.Background(), testWorkflow())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var decoded map[string]string
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded["output"] != "done" {
		t.Fatalf("output = %v", decoded)
	}
}

func TestRunSurfacesStderrOnFailure(t *testing.T) {
	restoreHooks(t)
	commandContext = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", "echo 'CUDA device lost' >&2; exit 3")
	}

	b := &backend{command: "aimatrix-pipeline"}
	_, err := b.Run(context.Background(), testWorkflow())
	if !errors.Is(err, services.ErrExecutionFailed) {
		t.Fatalf("Run error = %v", err)
	}
	if msg := services.UserMessage(err); !strings.Contains(msg, "CUDA device lost") {
		t.Fatalf("stderr not surfaced: %q", msg)
	}
}
