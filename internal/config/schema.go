// Package config provides configuration loading and validation for PiLobster.
// It reads TOML by default and YAML when the file ends in .yaml or .yml,
// expands environment variables, applies defaults and validates the result.
//
// Configuration structure:
//   - [telegram]: bot token and the users allowed to talk to it
//   - [ollama]: local model server, model and inference parameters
//   - [workspace]: directory for saved files and notes
//   - [scheduler]: timezone offset, fire timeout, retention, default scope
//   - [memory]: SQLite database path and history length
//   - [workers]: executor pool sizing
//   - [http]: admin API listener
//   - [logging]: level, format and output
//   - system_prompt: top-level string
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}.
// For example: token = "${TELEGRAM_BOT_TOKEN}"
package config

// Config represents the main application configuration.
type Config struct {
	SystemPrompt string          `toml:"system_prompt" yaml:"system_prompt"`
	Telegram     TelegramConfig  `toml:"telegram" yaml:"telegram"`
	Ollama       OllamaConfig    `toml:"ollama" yaml:"ollama"`
	Workspace    WorkspaceConfig `toml:"workspace" yaml:"workspace"`
	Scheduler    SchedulerConfig `toml:"scheduler" yaml:"scheduler"`
	Memory       MemoryConfig    `toml:"memory" yaml:"memory"`
	Workers      WorkersConfig   `toml:"workers" yaml:"workers"`
	HTTP         HTTPConfig      `toml:"http" yaml:"http"`
	Logging      LoggingConfig   `toml:"logging" yaml:"logging"`
}

// TelegramConfig configures the bot. An empty AllowedUsers denies everyone.
type TelegramConfig struct {
	Token              string  `toml:"token" yaml:"token"`
	AllowedUsers       []int64 `toml:"allowed_users" yaml:"allowed_users"`
	SendTimeoutSeconds int     `toml:"send_timeout_seconds" yaml:"send_timeout_seconds"`
	PollTimeoutSeconds int     `toml:"poll_timeout_seconds" yaml:"poll_timeout_seconds"`
}

type OllamaConfig struct {
	Host           string    `toml:"host" yaml:"host"`
	Model          string    `toml:"model" yaml:"model"`
	KeepAlive      KeepAlive `toml:"keep_alive" yaml:"keep_alive"`
	ContextLength  int       `toml:"context_length" yaml:"context_length"`
	Temperature    float64   `toml:"temperature" yaml:"temperature"`
	TimeoutSeconds int       `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

type WorkspaceConfig struct {
	Path string `toml:"path" yaml:"path"`
}

// SchedulerConfig configures the cron engine.
type SchedulerConfig struct {
	// Enabled defaults to true when omitted.
	Enabled             *bool  `toml:"enabled" yaml:"enabled"`
	UTCOffset           string `toml:"utc_offset" yaml:"utc_offset"`
	FireTimeoutSeconds  int    `toml:"fire_timeout_seconds" yaml:"fire_timeout_seconds"`
	RetentionDays       int    `toml:"retention_days" yaml:"retention_days"`
	ReapIntervalMinutes int    `toml:"reap_interval_minutes" yaml:"reap_interval_minutes"`
	DefaultScope        string `toml:"default_scope" yaml:"default_scope"`
}

// IsEnabled reports whether the scheduler should run.
func (c SchedulerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type MemoryConfig struct {
	Database   string `toml:"database" yaml:"database"`
	MaxHistory int    `toml:"max_history" yaml:"max_history"`
}

// WorkersConfig sizes the pool that runs scheduled fires.
type WorkersConfig struct {
	PoolSize  int `toml:"pool_size" yaml:"pool_size"`
	QueueSize int `toml:"queue_size" yaml:"queue_size"`
}

// HTTPConfig configures the admin API. It is off unless Enabled.
type HTTPConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Output string `toml:"output" yaml:"output"`
}
