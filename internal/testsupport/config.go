package testsupport

import (
	"path/filepath"
	"testing"

	"aimatrix/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// The local pipeline backend is enabled against a harmless executable so
// adapter constructors can be exercised without external services.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.StageDir = filepath.Join(base, "staging")
	cfg.Paths.SocketDir = filepath.Join(base, "sock")
	cfg.LocalPipeline.Enabled = true
	cfg.LocalPipeline.Command = "true"
	cfg.Automation.Enabled = false
	cfg.ToolCall.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithAutomation enables the remote automation backend against the given URL.
func WithAutomation(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Automation.Enabled = true
		cfg.Automation.BaseURL = baseURL
	}
}

// WithPipelineCommand overrides the local pipeline executable.
func WithPipelineCommand(command string, args ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LocalPipeline.Enabled = true
		cfg.LocalPipeline.Command = command
		cfg.LocalPipeline.Args = args
	}
}
