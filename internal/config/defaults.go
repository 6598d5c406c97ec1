package config

const (
	defaultDataDir            = "~/.local/share/aimatrix"
	defaultLogDir             = "~/.local/share/aimatrix/logs"
	defaultStageDir           = "~/.local/share/aimatrix/staging"
	defaultSocketDir          = "~/.local/share/aimatrix"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultStatusPollInterval = 2
	defaultJobRetention       = 0
	defaultNominalSeconds     = 60
	defaultRequestTimeout     = 30
	defaultFanOutConcurrency  = 3
	defaultFanOutPollInterval = 1
	defaultFanOutWaitTimeout  = 300
	defaultChunkSize          = 1000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			StageDir:  defaultStageDir,
			SocketDir: defaultSocketDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Workflow: Workflow{
			StatusPollInterval: defaultStatusPollInterval,
			JobRetention:       defaultJobRetention,
		},
		LocalPipeline: LocalPipeline{
			Enabled:        true,
			Command:        "aimatrix-pipeline",
			NominalSeconds: defaultNominalSeconds,
		},
		Automation: Automation{
			Enabled:        false,
			BaseURL:        "http://127.0.0.1:8188",
			RequestTimeout: defaultRequestTimeout,
			NominalSeconds: defaultNominalSeconds,
		},
		ToolCall: ToolCall{
			Enabled:        true,
			NominalSeconds: defaultNominalSeconds,
		},
		FanOut: FanOut{
			MaxConcurrent:       defaultFanOutConcurrency,
			PollIntervalSeconds: defaultFanOutPollInterval,
			WaitTimeoutSeconds:  defaultFanOutWaitTimeout,
		},
		Segmentation: Segmentation{
			ChunkSize: defaultChunkSize,
		},
	}
}
