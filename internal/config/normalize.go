package config

import "strings"

// normalize expands user paths and fills zero values with defaults so the
// rest of the system never sees partially-populated sections.
func (c *Config) normalize() error {
	pathFields := []*string{
		&c.Paths.DataDir,
		&c.Paths.LogDir,
		&c.Paths.StageDir,
		&c.Paths.SocketDir,
	}
	for _, field := range pathFields {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}

	if strings.TrimSpace(c.Logging.Format) == "" {
		c.Logging.Format = defaultLogFormat
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Workflow.StatusPollInterval <= 0 {
		c.Workflow.StatusPollInterval = defaultStatusPollInterval
	}
	if c.Workflow.JobRetention < 0 {
		c.Workflow.JobRetention = defaultJobRetention
	}
	if c.LocalPipeline.NominalSeconds <= 0 {
		c.LocalPipeline.NominalSeconds = defaultNominalSeconds
	}
	if c.Automation.NominalSeconds <= 0 {
		c.Automation.NominalSeconds = defaultNominalSeconds
	}
	if c.Automation.RequestTimeout <= 0 {
		c.Automation.RequestTimeout = defaultRequestTimeout
	}
	if c.ToolCall.NominalSeconds <= 0 {
		c.ToolCall.NominalSeconds = defaultNominalSeconds
	}
	if c.FanOut.MaxConcurrent <= 0 {
		c.FanOut.MaxConcurrent = defaultFanOutConcurrency
	}
	if c.FanOut.PollIntervalSeconds <= 0 {
		c.FanOut.PollIntervalSeconds = defaultFanOutPollInterval
	}
	if c.FanOut.WaitTimeoutSeconds <= 0 {
		c.FanOut.WaitTimeoutSeconds = defaultFanOutWaitTimeout
	}
	if c.Segmentation.ChunkSize <= 0 {
		c.Segmentation.ChunkSize = defaultChunkSize
	}
	c.Automation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Automation.BaseURL), "/")
	return nil
}
