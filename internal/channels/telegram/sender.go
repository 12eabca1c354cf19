package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	telegoapi "github.com/mymmrac/telego/telegoapi"

	"github.com/pilobster/pilobster/internal/channels"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/memory"
	"github.com/pilobster/pilobster/internal/messages"
	"github.com/pilobster/pilobster/internal/registry"
)

// maxMessageRunes stays under Telegram's 4096 character limit.
const maxMessageRunes = 4000

// splitMessage cuts text into chunks of at most limit runes, preferring
// line boundaries.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

// isEntityParseError reports whether Telegram rejected the Markdown markup.
func isEntityParseError(err *telegoapi.Error) bool {
	if err.ErrorCode != 400 {
		return false
	}
	desc := err.Description
	return strings.Contains(desc, "can't parse entities") ||
		strings.Contains(desc, "Can't find end of the entity") ||
		strings.Contains(desc, "wrong number of entities") ||
		strings.Contains(desc, "specified new message entity")
}

// errorDetails converts a Bot API failure into channels.TelegramErrorDetails.
// Other errors are returned unchanged.
func errorDetails(err error, chatID int64) error {
	var telErr *telegoapi.Error
	if !errors.As(err, &telErr) {
		return err
	}
	details := &channels.TelegramErrorDetails{
		ErrorCode:   telErr.ErrorCode,
		Description: telErr.Description,
		ChatID:      chatID,
		Timestamp:   time.Now(),
	}
	if telErr.Parameters != nil {
		details.RetryAfterSec = telErr.Parameters.RetryAfter
	}
	return details
}

// sendText delivers text to chatID as Markdown, chunked. A chunk Telegram
// cannot parse is resent as plain text.
func (c *Connector) sendText(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, maxMessageRunes) {
		if err := c.sendChunk(ctx, chatID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) sendChunk(ctx context.Context, chatID int64, chunk string) error {
	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.SendTimeout)
	defer cancel()

	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      chunk,
		ParseMode: telego.ModeMarkdown,
	}
	_, err := c.bot.SendMessage(sendCtx, params)
	if err == nil {
		return nil
	}

	var telErr *telegoapi.Error
	if errors.As(err, &telErr) && isEntityParseError(telErr) {
		c.logger.WarnCtx(ctx, "markdown parse error, resending as plain text",
			logger.Field{Key: "chat_id", Value: chatID},
			logger.Field{Key: "error", Value: telErr.Description})

		plain := &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: chatID},
			Text:   chunk,
		}
		if _, err = c.bot.SendMessage(sendCtx, plain); err == nil {
			return nil
		}
	}

	details := errorDetails(err, chatID)
	c.logger.ErrorCtx(ctx, "failed to send telegram message", details,
		logger.Field{Key: "chat_id", Value: chatID})
	return details
}

// chatDeliverer is the registry's handle on one Telegram chat.
type chatDeliverer struct {
	conn   *Connector
	chatID int64
}

func (d *chatDeliverer) Deliver(ctx context.Context, msg registry.Message) error {
	if d.conn.ctx == nil || d.conn.ctx.Err() != nil {
		return channels.ErrSessionClosed
	}
	text := msg.Text
	if msg.Tag == memory.TagScheduled {
		text = messages.FormatScheduled(text)
	}
	return d.conn.sendText(ctx, d.chatID, text)
}
