package config

import (
	"strings"

	"github.com/pilobster/pilobster/internal/logger"
)

// maskSecret keeps the first and last four characters.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) < 8 {
		return "***"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}

// maskTelegramToken leaves the bot id visible for diagnostics.
func maskTelegramToken(token string) string {
	if token == "" {
		return ""
	}
	botID, secret, ok := strings.Cut(token, ":")
	if !ok || strings.Contains(secret, ":") {
		return maskSecret(token)
	}
	return botID + ":" + maskSecret(secret)
}

// formatValidationError builds a ValidationError that shows the masked value.
func formatValidationError(field, message, maskedValue string) error {
	errorMsg := field + ": " + message
	if maskedValue != "" {
		errorMsg += " (value: " + maskedValue + ")"
	}
	return &ValidationError{Field: field, Message: errorMsg}
}

// ValidationError is a validation failure tied to one field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// LogFields summarizes the configuration for the startup log with secrets
// masked.
func (c *Config) LogFields() []logger.Field {
	return []logger.Field{
		{Key: "telegram_token", Value: maskTelegramToken(c.Telegram.Token)},
		{Key: "allowed_users", Value: len(c.Telegram.AllowedUsers)},
		{Key: "ollama_host", Value: c.Ollama.Host},
		{Key: "model", Value: c.Ollama.Model},
		{Key: "context_length", Value: c.Ollama.ContextLength},
		{Key: "workspace", Value: c.Workspace.Path},
		{Key: "database", Value: c.Memory.Database},
		{Key: "utc_offset", Value: c.Scheduler.UTCOffset},
		{Key: "scheduler_enabled", Value: c.Scheduler.IsEnabled()},
	}
}
