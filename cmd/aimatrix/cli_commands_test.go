package main

import (
	"os"
	"path/filepath"
	"testing"
)

const workflowJSON = `{
  "id": "wf-cli",
  "name": "CLI workflow",
  "type": "local-pipeline",
  "inputs": [{"id": "in", "name": "novel", "type": "text"}],
  "outputs": [{"id": "out", "name": "video", "type": "video"}]
}`

func writeWorkflowFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	if err := os.WriteFile(path, []byte(workflowJSON), 0o644); err != nil {
		t.Fatalf("write workflow file: %v", err)
	}
	return path
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
}

func TestStatusCommandReportsBackends(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running: yes")
	requireContains(t, out, "local-pipeline")
}

func TestWorkflowExecuteStatusAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeWorkflowFile(t)

	out, _, err := runCLI(t, []string{"workflow", "execute", path}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workflow execute: %v", err)
	}
	requireContains(t, out, "dispatched to local-pipeline")

	out, _, err = runCLI(t, []string{"workflow", "list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workflow list: %v", err)
	}
	requireContains(t, out, "wf-cli")
}

func TestWorkflowExecuteRejectsInvalidInput(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLIWithInput(t,
		[]string{"workflow", "execute"},
		env.socketPath, env.configPath,
		`{"id": "bad", "name": "no ports", "type": "local-pipeline"}`,
	)
	if err == nil {
		t.Fatal("expected error for workflow without ports")
	}
}

func TestWorkflowSaveAndDefinitions(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writeWorkflowFile(t)

	out, _, err := runCLI(t, []string{"workflow", "save", path}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workflow save: %v", err)
	}
	requireContains(t, out, "Workflow wf-cli saved")

	out, _, err = runCLI(t, []string{"workflow", "definitions"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workflow definitions: %v", err)
	}
	requireContains(t, out, "wf-cli")
	requireContains(t, out, "CLI workflow")

	out, _, err = runCLI(t, []string{"workflow", "load", "wf-cli"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("workflow load: %v", err)
	}
	requireContains(t, out, `"local-pipeline"`)
}

func TestSplitCommandReadsStdin(t *testing.T) {
	env := setupCLITestEnv(t)

	text := "第一章 启程\n主角离开山村。\n第二章 风暴\n海上遇险。\n"
	out, _, err := runCLIWithInput(t, []string{"split"}, env.socketPath, env.configPath, text)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	requireContains(t, out, "第一章 启程")
	requireContains(t, out, "第二章 风暴")
}

func TestLogsCommandEmptyLog(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"logs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}

func TestAssetsCommandEmptyStore(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"assets", "--job", "missing"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("assets: %v", err)
	}
	requireContains(t, out, "No assets found")
}
