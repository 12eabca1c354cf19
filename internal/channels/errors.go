// Package channels holds what the chat transports share.
package channels

import (
	"errors"
	"time"

	"github.com/pilobster/pilobster/internal/logger"
)

// ErrSessionClosed is returned by a deliverer whose transport has gone away.
var ErrSessionClosed = errors.New("session closed")

// ErrorDetails describes a transport send failure.
type ErrorDetails interface {
	Error() string

	// IsRetryable reports whether sending again may succeed.
	IsRetryable() bool

	// RetryAfter is the delay the transport asked for, or zero.
	RetryAfter() time.Duration

	LogFields() []logger.Field
}

// TelegramErrorDetails describes a Telegram Bot API failure.
type TelegramErrorDetails struct {
	ErrorCode     int
	Description   string
	RetryAfterSec int
	ChatID        int64
	Timestamp     time.Time
}

func (d *TelegramErrorDetails) Error() string {
	return d.Description
}

// IsRetryable is true for rate limiting (429) and server errors.
func (d *TelegramErrorDetails) IsRetryable() bool {
	return d.ErrorCode == 429 || (d.ErrorCode >= 500 && d.ErrorCode < 600)
}

func (d *TelegramErrorDetails) RetryAfter() time.Duration {
	if d.RetryAfterSec > 0 {
		return time.Duration(d.RetryAfterSec) * time.Second
	}
	if d.ErrorCode >= 500 && d.ErrorCode < 600 {
		return 5 * time.Second
	}
	return 0
}

func (d *TelegramErrorDetails) LogFields() []logger.Field {
	return []logger.Field{
		{Key: "error_code", Value: d.ErrorCode},
		{Key: "error_description", Value: d.Description},
		{Key: "retry_after", Value: d.RetryAfterSec},
		{Key: "chat_id", Value: d.ChatID},
	}
}
