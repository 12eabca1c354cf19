package telegram

import (
	"context"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/pilobster/pilobster/internal/logger"
)

// typingInterval is below Telegram's five second expiry for chat actions.
const typingInterval = 4 * time.Second

// TypingManager keeps the "typing…" indicator alive while a reply is built.
type TypingManager struct {
	bot    BotInterface
	logger *logger.Logger
	ctx    context.Context

	mu      sync.Mutex
	cancels map[int64]context.CancelFunc
}

// NewTypingManager creates a typing manager bound to ctx.
func NewTypingManager(ctx context.Context, bot BotInterface, log *logger.Logger) *TypingManager {
	return &TypingManager{
		bot:     bot,
		logger:  log,
		ctx:     ctx,
		cancels: make(map[int64]context.CancelFunc),
	}
}

// Start sends the indicator now and then periodically until Stop.
func (tm *TypingManager) Start(chatID int64) {
	tm.mu.Lock()
	if _, exists := tm.cancels[chatID]; exists {
		tm.mu.Unlock()
		return
	}
	typingCtx, cancel := context.WithCancel(tm.ctx)
	tm.cancels[chatID] = cancel
	tm.mu.Unlock()

	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		tm.send(typingCtx, chatID)
		for {
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
				tm.send(typingCtx, chatID)
			}
		}
	}()
}

// Stop ends the indicator for chatID.
func (tm *TypingManager) Stop(chatID int64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if cancel, exists := tm.cancels[chatID]; exists {
		cancel()
		delete(tm.cancels, chatID)
	}
}

// StopAll ends every indicator.
func (tm *TypingManager) StopAll() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for chatID, cancel := range tm.cancels {
		cancel()
		delete(tm.cancels, chatID)
	}
}

func (tm *TypingManager) send(ctx context.Context, chatID int64) {
	err := tm.bot.SendChatAction(ctx, &telego.SendChatActionParams{
		ChatID: telego.ChatID{ID: chatID},
		Action: telego.ChatActionTyping,
	})
	if err != nil {
		if ctx.Err() == nil {
			tm.logger.WarnCtx(ctx, "failed to send typing indicator",
				logger.Field{Key: "chat_id", Value: chatID},
				logger.Field{Key: "error", Value: err.Error()})
		}
		return
	}
	tm.logger.DebugCtx(ctx, "typing indicator sent", logger.Field{Key: "chat_id", Value: chatID})
}
