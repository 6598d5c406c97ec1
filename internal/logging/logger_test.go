package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aimatrix/internal/logging"
	"aimatrix/internal/services"
)

func TestNewJSONWritesStructuredLines(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	logger, err := logging.New(logging.Options{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("job accepted", logging.String(logging.FieldJobID, "1712-ab"), logging.String(logging.FieldBackend, "local-pipeline"))

	contents, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := strings.TrimSpace(string(contents))
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("parse log line %q: %v", line, err)
	}
	if payload["msg"] != "job accepted" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["job_id"] != "1712-ab" {
		t.Fatalf("unexpected job_id: %v", payload["job_id"])
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleIncludesComponentAndAttrs(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "console.log")

	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "console",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	component := logging.NewComponentLogger(logger, "workflow")
	component.Info("stage started", logging.String(logging.FieldBackend, "tool-call"))

	contents, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(contents)
	if !strings.Contains(line, "[workflow]") {
		t.Fatalf("missing component tag: %q", line)
	}
	if !strings.Contains(line, "backend=tool-call") {
		t.Fatalf("missing backend attr: %q", line)
	}
}

func TestWithContextAddsStandardFields(t *testing.T) {
	ctx := services.WithJobID(context.Background(), "job-77")
	ctx = services.WithBackend(ctx, "remote-automation")

	fields := logging.ContextFields(ctx)
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		keys[f.Key] = true
	}
	if !keys[logging.FieldJobID] || !keys[logging.FieldBackend] {
		t.Fatalf("expected job and backend fields, got %v", keys)
	}

	// Nil logger must not panic; WithContext substitutes a no-op.
	logging.WithContext(ctx, nil).Info("ignored")
}
