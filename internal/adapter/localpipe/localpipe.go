// Package localpipe runs workflows on the local GPU pipeline executable.
//
// The backend launches the configured command once per job, feeds it the
// workflow config as JSON on stdin, and treats its stdout as the job result
// payload. Context cancellation kills the process, which is how cooperative
// job cancellation reaches in-flight renders.
package localpipe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"aimatrix/internal/adapter"
	"aimatrix/internal/clock"
	"aimatrix/internal/config"
	"aimatrix/internal/ident"
	"aimatrix/internal/job"
	"aimatrix/internal/services"
)

var commandContext = exec.CommandContext

var lookPath = exec.LookPath

// New constructs the local pipeline adapter from configuration.
func New(cfg *config.Config, clk clock.Clock, ids ident.Generator, logger *slog.Logger) *adapter.Runner {
	backend := &backend{
		command: cfg.LocalPipeline.Command,
		args:    append([]string{}, cfg.LocalPipeline.Args...),
		workDir: cfg.LocalPipeline.WorkDir,
	}
	return adapter.NewRunner(job.TypeLocalPipeline, backend, adapter.RunnerOptions{
		Clock:     clk,
		IDs:       ids,
		Logger:    logger,
		Retention: cfg.Workflow.JobRetention,
		Nominal:   time.Duration(cfg.LocalPipeline.NominalSeconds) * time.Second,
	})
}

type backend struct {
	command string
	args    []string
	workDir string
}

// Ping verifies the pipeline executable is resolvable.
func (b *backend) Ping(context.Context) error {
	if strings.TrimSpace(b.command) == "" {
		return services.Wrap(services.ErrBackendUnavailable, "local-pipeline", "ping", "no command configured", nil)
	}
	if _, err := lookPath(b.command); err != nil {
		return services.Wrap(services.ErrBackendUnavailable, "local-pipeline", "ping", "pipeline executable not found", err)
	}
	return nil
}

// Run executes one pipeline invocation for the workflow.
func (b *backend) Run(ctx context.Context, wf *job.Workflow) (json.RawMessage, error) {
	payload, err := json.Marshal(wf)
	if err != nil {
		return nil, services.Wrap(services.ErrExecutionFailed, "local-pipeline", "run", "encode workflow config", err)
	}

	cmd := commandContext(ctx, b.command, b.args...) //nolint:gosec
	cmd.Dir = b.workDir
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, services.Wrap(services.ErrExecutionFailed, "local-pipeline", "run", detail, err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 || !json.Valid(out) {
		// Pipelines that emit plain text still produce a usable result.
		encoded, err := json.Marshal(map[string]string{"output": string(out)})
		if err != nil {
			return nil, services.Wrap(services.ErrExecutionFailed, "local-pipeline", "run", "encode output", err)
		}
		return encoded, nil
	}
	return json.RawMessage(out), nil
}
