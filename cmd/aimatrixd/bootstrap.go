package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"log/slog"

	"aimatrix/internal/adapter"
	"aimatrix/internal/adapter/automation"
	"aimatrix/internal/adapter/localpipe"
	"aimatrix/internal/adapter/toolcall"
	"aimatrix/internal/assetstore"
	"aimatrix/internal/clock"
	"aimatrix/internal/config"
	"aimatrix/internal/daemon"
	"aimatrix/internal/ident"
	"aimatrix/internal/segment"
	"aimatrix/internal/services"
	"aimatrix/internal/task"
	"aimatrix/internal/workflow"
)

func buildDaemon(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := assetstore.Open(cfg, clk)
	if err != nil {
		return nil, fmt.Errorf("open asset store: %w", err)
	}

	ids := ident.New(clk)
	adapters := buildAdapters(cfg, store, clk, ids, logger)
	mgr := workflow.NewManager(logger, adapters, workflow.WithDefinitionStore(store))

	d, err := daemon.New(cfg, store, logger, mgr)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}

func buildAdapters(cfg *config.Config, store *assetstore.Store, clk clock.Clock, ids ident.Generator, logger *slog.Logger) []adapter.Adapter {
	var adapters []adapter.Adapter
	if cfg.LocalPipeline.Enabled {
		adapters = append(adapters, localpipe.New(cfg, clk, ids, logger))
	}
	if cfg.Automation.Enabled {
		adapters = append(adapters, automation.New(cfg, clk, ids, logger))
	}
	if cfg.ToolCall.Enabled {
		adapters = append(adapters, toolcall.New(cfg, newToolProvider(cfg, store, logger), clk, ids, logger))
	}
	return adapters
}

// toolProvider is the built-in tool-call capability set: text splitting,
// asset registration, and fanned-out scene rendering, exposed so tool-call
// workflows work without an external plugin host.
type toolProvider struct {
	cfg   *config.Config
	store *assetstore.Store
	pool  *task.Pool
}

func newToolProvider(cfg *config.Config, store *assetstore.Store, logger *slog.Logger) *toolProvider {
	pool := task.New(cfg.FanOut.MaxConcurrent,
		task.WithPollInterval(time.Duration(cfg.FanOut.PollIntervalSeconds)*time.Second),
		task.WithLogger(logger))
	return &toolProvider{cfg: cfg, store: store, pool: pool}
}

const (
	actionSplitChapters = "split-chapters"
	actionStoreAsset    = "store-asset"
	actionRenderScenes  = "render-scenes"
)

func (p *toolProvider) Actions(ctx context.Context) ([]string, error) {
	return []string{actionSplitChapters, actionStoreAsset, actionRenderScenes}, nil
}

func (p *toolProvider) Execute(ctx context.Context, action string, params json.RawMessage) (json.RawMessage, error) {
	switch action {
	case actionSplitChapters:
		var req struct {
			Text      string `json:"text"`
			ChunkSize int    `json:"chunk_size"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, services.Wrap(services.ErrValidation, "toolcall", action, "malformed params", err)
		}
		size := req.ChunkSize
		if size <= 0 {
			size = p.cfg.Segmentation.ChunkSize
		}
		scenes := segment.SplitSize(req.Text, size)
		return json.Marshal(map[string]any{"scenes": scenes})
	case actionStoreAsset:
		var spec assetstore.Spec
		if err := json.Unmarshal(params, &spec); err != nil {
			return nil, services.Wrap(services.ErrValidation, "toolcall", action, "malformed params", err)
		}
		asset, err := p.store.CreateAsset(ctx, spec)
		if err != nil {
			return nil, err
		}
		return json.Marshal(asset)
	case actionRenderScenes:
		return p.renderScenes(ctx, params)
	default:
		return nil, services.Wrap(services.ErrValidation, "toolcall", "execute", "unknown action "+action, nil)
	}
}

// renderScenes fans one pipeline invocation per scene out through the task
// pool, bounded by the configured concurrency ceiling.
func (p *toolProvider) renderScenes(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	var req struct {
		Scenes  []segment.Scene `json:"scenes"`
		Command string          `json:"command"`
		Args    []string        `json:"args"`
	}
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, services.Wrap(services.ErrValidation, "toolcall", actionRenderScenes, "malformed params", err)
	}
	if len(req.Scenes) == 0 {
		return nil, services.Wrap(services.ErrValidation, "toolcall", actionRenderScenes, "no scenes to render", nil)
	}
	command := strings.TrimSpace(req.Command)
	if command == "" {
		command = p.cfg.LocalPipeline.Command
	}
	if command == "" {
		return nil, services.Wrap(services.ErrValidation, "toolcall", actionRenderScenes, "no render command configured", nil)
	}

	ids := make([]string, 0, len(req.Scenes))
	for _, scene := range req.Scenes {
		scene := scene
		id, err := p.pool.Create(ctx, task.Spec{
			Name: scene.Title,
			Run: func(ctx context.Context) (json.RawMessage, error) {
				return runSceneCommand(ctx, command, req.Args, scene)
			},
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	timeout := time.Duration(p.cfg.FanOut.WaitTimeoutSeconds) * time.Second
	results, err := p.pool.WaitAll(ctx, ids, timeout)
	if err != nil && errors.Is(err, services.ErrTimeout) {
		// A stuck scene fails the batch; ordinary per-scene failures are
		// reported entry by entry below.
		return nil, services.Wrap(services.ErrExecutionFailed, "toolcall", actionRenderScenes, "scene batch timed out", err)
	}

	entries := make([]map[string]any, 0, len(results))
	for i, result := range results {
		entry := map[string]any{"title": req.Scenes[i].Title}
		if result.Err != nil {
			entry["error"] = result.Err.Error()
		} else {
			entry["output"] = result.Output
		}
		entries = append(entries, entry)
	}
	return json.Marshal(map[string]any{"results": entries})
}

func runSceneCommand(ctx context.Context, command string, args []string, scene segment.Scene) (json.RawMessage, error) {
	payload, err := json.Marshal(scene)
	if err != nil {
		return nil, services.Wrap(services.ErrExecutionFailed, "toolcall", actionRenderScenes, "encode scene", err)
	}

	cmd := exec.CommandContext(ctx, command, args...) //nolint:gosec
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
		return nil, services.Wrap(services.ErrExecutionFailed, "toolcall", actionRenderScenes, detail, err)
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 || !json.Valid(out) {
		encoded, err := json.Marshal(map[string]string{"output": string(out)})
		if err != nil {
			return nil, services.Wrap(services.ErrExecutionFailed, "toolcall", actionRenderScenes, "encode output", err)
		}
		return encoded, nil
	}
	return json.RawMessage(out), nil
}
