package telegram

import (
	"strconv"

	"github.com/mymmrac/telego"
	"github.com/patrickmn/go-cache"

	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/messages"
	"github.com/pilobster/pilobster/internal/registry"
)

// poll handles updates one at a time until the channel closes or the
// connector stops.
func (c *Connector) poll(updates <-chan telego.Update) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				c.logger.Info("telegram updates channel closed")
				return
			}
			c.handleUpdate(update)
		}
	}
}

// handleUpdate answers one text message.
func (c *Connector) handleUpdate(update telego.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" || msg.From == nil {
		return
	}

	// Long polling may redeliver after a reconnect.
	if err := c.seen.Add(strconv.Itoa(update.UpdateID), struct{}{}, cache.DefaultExpiration); err != nil {
		c.logger.Debug("duplicate update ignored", logger.Field{Key: "update_id", Value: update.UpdateID})
		return
	}

	chatID := msg.Chat.ID
	userID := msg.From.ID
	if !c.isAllowedUser(userID) {
		c.logger.WarnCtx(c.ctx, "unauthorized telegram user",
			logger.Field{Key: "user_id", Value: userID},
			logger.Field{Key: "username", Value: msg.From.Username})
		if err := c.sendText(c.ctx, chatID, constants.MsgUnauthorized); err != nil {
			c.logger.ErrorCtx(c.ctx, "failed to send unauthorized reply", err)
		}
		return
	}

	lineage := c.ensureSession(chatID)
	c.logger.InfoCtx(c.ctx, "telegram message received",
		logger.Field{Key: "chat_id", Value: chatID},
		logger.Field{Key: "user_id", Value: userID},
		logger.Field{Key: "length", Value: len(msg.Text)})

	c.typing.Start(chatID)
	replies, err := c.handler.Handle(c.ctx, commands.Request{
		Lineage: lineage,
		Kind:    registry.KindTelegram,
		Text:    msg.Text,
	})
	c.typing.Stop(chatID)
	if err != nil {
		c.logger.ErrorCtx(c.ctx, "failed to handle message", err, logger.Field{Key: "chat_id", Value: chatID})
		replies = []string{messages.FormatError(err)}
	}

	for _, reply := range replies {
		if reply == "" {
			continue
		}
		if err := c.sendText(c.ctx, chatID, reply); err != nil {
			return
		}
	}
}
