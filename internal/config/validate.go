package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if err := c.validateFanOut(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.SocketDir) == "" {
		return errors.New("paths.socket_dir must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateBackends() error {
	if !c.LocalPipeline.Enabled && !c.Automation.Enabled && !c.ToolCall.Enabled {
		return errors.New("at least one backend must be enabled")
	}
	if c.LocalPipeline.Enabled && strings.TrimSpace(c.LocalPipeline.Command) == "" {
		return errors.New("local_pipeline.command must be set when the local pipeline is enabled")
	}
	if c.Automation.Enabled {
		base := strings.TrimSpace(c.Automation.BaseURL)
		if base == "" {
			return errors.New("automation.base_url must be set when automation is enabled")
		}
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			return fmt.Errorf("automation.base_url must be an http(s) URL, got %q", base)
		}
	}
	return nil
}

func (c *Config) validateFanOut() error {
	if c.FanOut.MaxConcurrent > 32 {
		return fmt.Errorf("fan_out.max_concurrent is capped at 32, got %d", c.FanOut.MaxConcurrent)
	}
	return nil
}
