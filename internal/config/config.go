package config

import (
	"bytes"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pilobster/pilobster/internal/clock"
	"github.com/pilobster/pilobster/internal/registry"
)

// isYAML reports whether path names a YAML file.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load reads the configuration file, applies defaults and expands
// environment variables. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data, isYAML(path))
}

// Parse decodes configuration text; yamlFormat selects YAML over TOML.
func Parse(data []byte, yamlFormat bool) (*Config, error) {
	var cfg Config
	if yamlFormat {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	expandEnvVars(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// Write encodes c to path in the format its extension selects. An existing
// file is not overwritten.
func Write(path string, c *Config) error {
	var buf bytes.Buffer
	if isYAML(path) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
	} else if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}

// Location returns the scheduler's fixed-offset zone.
func (c *Config) Location() (*time.Location, error) {
	return clock.ParseOffset(c.Scheduler.UTCOffset)
}

// Validate returns every problem found, or nil.
func (c *Config) Validate() []error {
	var errs []error

	if c.Telegram.Token != "" {
		if err := validateTelegramToken(c.Telegram.Token); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range c.Telegram.AllowedUsers {
		if id <= 0 {
			errs = append(errs, fmt.Errorf("telegram.allowed_users contains invalid user id %d", id))
		}
	}
	if c.Telegram.SendTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("telegram.send_timeout_seconds must be positive"))
	}

	if u, err := url.Parse(c.Ollama.Host); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid ollama.host: %q (expected http(s)://host:port)", c.Ollama.Host))
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		errs = append(errs, fmt.Errorf("ollama.model is required"))
	}
	if err := validateKeepAlive(c.Ollama.KeepAlive); err != nil {
		errs = append(errs, err)
	}
	if c.Ollama.ContextLength < 0 {
		errs = append(errs, fmt.Errorf("ollama.context_length must be positive (got %d)", c.Ollama.ContextLength))
	}
	if c.Ollama.Temperature < 0 || c.Ollama.Temperature > 2 {
		errs = append(errs, fmt.Errorf("ollama.temperature must be between 0 and 2 (got %g)", c.Ollama.Temperature))
	}

	if err := validatePath(c.Workspace.Path, "workspace.path"); err != nil {
		errs = append(errs, err)
	}
	if err := validatePath(c.Memory.Database, "memory.database"); err != nil {
		errs = append(errs, err)
	}
	if c.Memory.MaxHistory < 0 {
		errs = append(errs, fmt.Errorf("memory.max_history must be positive (got %d)", c.Memory.MaxHistory))
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.utc_offset: %w", err))
	}
	if c.Scheduler.FireTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("scheduler.fire_timeout_seconds must be positive"))
	}
	if c.Scheduler.ReapIntervalMinutes < 0 {
		errs = append(errs, fmt.Errorf("scheduler.reap_interval_minutes must be positive"))
	}
	if _, err := registry.ParseScope(c.Scheduler.DefaultScope); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.default_scope: %w", err))
	}

	if c.Workers.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("workers.pool_size must be >= 1"))
	}
	if c.Workers.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("workers.queue_size must be >= 1"))
	}

	if c.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
			errs = append(errs, fmt.Errorf("invalid http.addr: %w", err))
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	return errs
}

// RetentionWindow is how long cancelled jobs are kept. Zero disables the
// reaper (retention_days < 0).
func (c *Config) RetentionWindow() time.Duration {
	if c.Scheduler.RetentionDays < 0 {
		return 0
	}
	return time.Duration(c.Scheduler.RetentionDays) * 24 * time.Hour
}

func validateKeepAlive(k KeepAlive) error {
	s := strings.TrimSpace(string(k))
	if _, err := strconv.Atoi(s); err == nil {
		return nil
	}
	if _, err := time.ParseDuration(s); err == nil {
		return nil
	}
	return fmt.Errorf("invalid ollama.keep_alive: %q (expected seconds or a duration like 5m)", s)
}

func validateTelegramToken(token string) error {
	parts := strings.Split(token, ":")
	if len(parts) != 2 {
		return formatValidationError("telegram.token",
			"invalid format (expected format: <bot_id>:<token>)", maskTelegramToken(token))
	}

	botID := parts[0]
	botToken := parts[1]

	if len(botID) < 3 || len(botID) > 15 {
		return fmt.Errorf("telegram token has invalid bot ID length (expected 3-15 digits, got %d digits)", len(botID))
	}
	for _, r := range botID {
		if r < '0' || r > '9' {
			return fmt.Errorf("telegram token has invalid bot ID (expected digits only, got: %s)", botID)
		}
	}
	if len(botToken) < 10 || len(botToken) > 50 {
		return fmt.Errorf("telegram token has invalid token length (expected 10-50 characters, got %d)", len(botToken))
	}
	return nil
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if strings.HasPrefix(path, "~") {
		return nil
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}
	return nil
}

// expandEnvVars expands ${VAR} references and ~ in string settings.
func expandEnvVars(c *Config) {
	for _, s := range []*string{
		&c.SystemPrompt,
		&c.Telegram.Token,
		&c.Ollama.Host,
		&c.Ollama.Model,
		&c.Workspace.Path,
		&c.Scheduler.UTCOffset,
		&c.Scheduler.DefaultScope,
		&c.Memory.Database,
		&c.HTTP.Addr,
		&c.Logging.Output,
	} {
		*s = expandEnv(*s)
	}
	c.Ollama.KeepAlive = KeepAlive(expandEnv(string(c.Ollama.KeepAlive)))

	c.Workspace.Path = expandHome(c.Workspace.Path)
	c.Memory.Database = expandHome(c.Memory.Database)
}
