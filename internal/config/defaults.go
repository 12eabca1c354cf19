package config

const (
	DefaultSystemPrompt      = "You are PiLobster, a helpful AI assistant."
	DefaultOllamaHost        = "http://localhost:11434"
	DefaultOllamaModel       = "tinyllama"
	DefaultKeepAlive         = "-1"
	DefaultContextLength     = 4096
	DefaultTemperature       = 0.7
	DefaultOllamaTimeout     = 300
	DefaultWorkspacePath     = "./workspace"
	DefaultDatabase          = "./pilobster.db"
	DefaultMaxHistory        = 50
	DefaultFireTimeout       = 120
	DefaultRetentionDays     = 30
	DefaultReapInterval      = 60
	DefaultScope             = "all"
	DefaultPoolSize          = 2
	DefaultQueueSize         = 16
	DefaultHTTPAddr          = "127.0.0.1:8088"
	DefaultTelegramSend      = 30
	DefaultTelegramPoll      = 30
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultLogOutput         = "stdout"
	DefaultSchedulerTimezone = "UTC"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values.
func applyDefaults(c *Config) {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}

	if c.Telegram.SendTimeoutSeconds == 0 {
		c.Telegram.SendTimeoutSeconds = DefaultTelegramSend
	}
	if c.Telegram.PollTimeoutSeconds == 0 {
		c.Telegram.PollTimeoutSeconds = DefaultTelegramPoll
	}

	if c.Ollama.Host == "" {
		c.Ollama.Host = DefaultOllamaHost
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = DefaultOllamaModel
	}
	if c.Ollama.KeepAlive == "" {
		c.Ollama.KeepAlive = DefaultKeepAlive
	}
	if c.Ollama.ContextLength == 0 {
		c.Ollama.ContextLength = DefaultContextLength
	}
	if c.Ollama.Temperature == 0 {
		c.Ollama.Temperature = DefaultTemperature
	}
	if c.Ollama.TimeoutSeconds == 0 {
		c.Ollama.TimeoutSeconds = DefaultOllamaTimeout
	}

	if c.Workspace.Path == "" {
		c.Workspace.Path = DefaultWorkspacePath
	}

	if c.Scheduler.UTCOffset == "" {
		c.Scheduler.UTCOffset = DefaultSchedulerTimezone
	}
	if c.Scheduler.FireTimeoutSeconds == 0 {
		c.Scheduler.FireTimeoutSeconds = DefaultFireTimeout
	}
	if c.Scheduler.RetentionDays == 0 {
		c.Scheduler.RetentionDays = DefaultRetentionDays
	}
	if c.Scheduler.ReapIntervalMinutes == 0 {
		c.Scheduler.ReapIntervalMinutes = DefaultReapInterval
	}
	if c.Scheduler.DefaultScope == "" {
		c.Scheduler.DefaultScope = DefaultScope
	}

	if c.Memory.Database == "" {
		c.Memory.Database = DefaultDatabase
	}
	if c.Memory.MaxHistory == 0 {
		c.Memory.MaxHistory = DefaultMaxHistory
	}

	if c.Workers.PoolSize == 0 {
		c.Workers.PoolSize = DefaultPoolSize
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = DefaultQueueSize
	}

	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = DefaultLogOutput
	}
}
