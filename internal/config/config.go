package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	LogDir    string `toml:"log_dir"`
	StageDir  string `toml:"stage_dir"`
	SocketDir string `toml:"socket_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Workflow contains configuration for the workflow manager.
type Workflow struct {
	// StatusPollInterval is the CLI polling cadence in seconds.
	StatusPollInterval int `toml:"status_poll_interval"`
	// JobRetention caps how many terminal jobs each adapter keeps for
	// late status queries before Cleanup. Zero keeps every job until
	// shutdown.
	JobRetention int `toml:"job_retention"`
}

// LocalPipeline contains configuration for the local GPU pipeline backend.
type LocalPipeline struct {
	Enabled bool     `toml:"enabled"`
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	WorkDir string   `toml:"work_dir"`
	// NominalSeconds drives the advisory progress estimate while a
	// pipeline run is in flight.
	NominalSeconds int `toml:"nominal_seconds"`
}

// Automation contains configuration for the remote automation server backend.
type Automation struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
	NominalSeconds int    `toml:"nominal_seconds"`
}

// ToolCall contains configuration for the tool-call backend.
type ToolCall struct {
	Enabled        bool `toml:"enabled"`
	NominalSeconds int  `toml:"nominal_seconds"`
}

// FanOut contains configuration for bounded generation fan-out.
type FanOut struct {
	MaxConcurrent       int `toml:"max_concurrent"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	WaitTimeoutSeconds  int `toml:"wait_timeout_seconds"`
}

// Segmentation contains configuration for chapter splitting.
type Segmentation struct {
	ChunkSize int `toml:"chunk_size"`
}

// Config encapsulates all configuration values for aimatrix.
//
// Configuration sections by subsystem:
//   - Paths: data, log, staging, and socket directories
//   - Logging: log format and level
//   - Workflow: manager polling and retention settings
//   - LocalPipeline: local GPU pipeline command and timing
//   - Automation: remote automation server connection
//   - ToolCall: tool-call service backend
//   - FanOut: bounded concurrency for generation fan-out
//   - Segmentation: chapter splitting thresholds
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Workflow      Workflow      `toml:"workflow"`
	LocalPipeline LocalPipeline `toml:"local_pipeline"`
	Automation    Automation    `toml:"automation"`
	ToolCall      ToolCall      `toml:"tool_call"`
	FanOut        FanOut        `toml:"fan_out"`
	Segmentation  Segmentation  `toml:"segmentation"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aimatrix/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.StageDir, c.Paths.SocketDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the daemon control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.SocketDir, "aimatrix.sock")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "aimatrix.lock")
}

// LogFilePath returns the daemon log file location.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "aimatrix.log")
}

// DatabasePath returns the asset/definition store location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "aimatrix.db")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves ~ prefixes and returns an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			trimmed = home
		} else {
			trimmed = filepath.Join(home, trimmed[2:])
		}
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}
