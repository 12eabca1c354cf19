// Package telegram connects the bot to Telegram with long polling.
//
// Features:
//   - Whitelist-based user authorization (an empty list denies everyone)
//   - Duplicate update suppression
//   - One registry session per chat, so scheduled output reaches it
//   - Markdown replies chunked to Telegram's size limit, with a plain-text
//     fallback when entities do not parse
package telegram

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"github.com/patrickmn/go-cache"

	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/registry"
)

const (
	defaultSendTimeout = 30 * time.Second
	defaultPollTimeout = 30
	dedupeWindow       = 10 * time.Minute
)

// Handler answers one inbound message. commands.Router implements it.
type Handler interface {
	Handle(ctx context.Context, req commands.Request) ([]string, error)
}

// Config configures the connector.
type Config struct {
	Token        string
	AllowedUsers []int64
	SendTimeout  time.Duration
	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int
}

// Connector represents the Telegram bot connector.
type Connector struct {
	cfg      Config
	handler  Handler
	registry *registry.Registry
	logger   *logger.Logger
	metrics  *metrics.Metrics

	bot    BotInterface
	typing *TypingManager
	seen   *cache.Cache

	mu       sync.Mutex
	sessions map[int64]uuid.UUID
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a connector. m may be nil.
func New(cfg Config, handler Handler, reg *registry.Registry, log *logger.Logger, m *metrics.Metrics) *Connector {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Connector{
		cfg:      cfg,
		handler:  handler,
		registry: reg,
		logger:   log,
		metrics:  m,
		seen:     cache.New(dedupeWindow, 2*dedupeWindow),
		sessions: make(map[int64]uuid.UUID),
	}
}

// WithBot replaces the Telegram client, for tests. Call before Start.
func (c *Connector) WithBot(bot BotInterface) *Connector {
	c.bot = bot
	return c
}

// Start connects, registers commands, greets the allowed users and starts
// polling. It returns once polling is running.
func (c *Connector) Start(ctx context.Context) error {
	c.logger.Info(constants.MsgTelegramStartup,
		logger.Field{Key: "allowed_users", Value: len(c.cfg.AllowedUsers)})

	if c.bot == nil {
		if c.cfg.Token == "" {
			return fmt.Errorf("telegram token is required")
		}
		bot, err := telego.NewBot(c.cfg.Token)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
		c.bot = NewBotAdapter(bot)
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.typing = NewTypingManager(c.ctx, c.bot, c.logger)

	botUser, err := c.bot.GetMe(c.ctx)
	if err != nil {
		c.cancel()
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	c.logger.Info("telegram bot initialized",
		logger.Field{Key: "bot_id", Value: botUser.ID},
		logger.Field{Key: "username", Value: botUser.Username})

	if err := c.registerCommands(); err != nil {
		c.logger.ErrorCtx(c.ctx, "failed to register bot commands", err)
	}

	updates, err := c.bot.UpdatesViaLongPolling(c.ctx, &telego.GetUpdatesParams{
		Timeout: c.cfg.PollTimeout,
	})
	if err != nil {
		c.cancel()
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	for _, id := range c.cfg.AllowedUsers {
		c.ensureSession(id)
	}
	c.sendStartupMessage()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(updates)
	}()
	return nil
}

// Stop ends polling, detaches every chat session and waits for the update
// in progress to finish.
func (c *Connector) Stop() error {
	c.logger.Info("stopping telegram connector")

	if c.cancel != nil {
		c.cancel()
	}
	if c.typing != nil {
		c.typing.StopAll()
	}
	c.wg.Wait()

	c.mu.Lock()
	ids := make([]uuid.UUID, 0, len(c.sessions))
	for _, id := range c.sessions {
		ids = append(ids, id)
	}
	c.sessions = make(map[int64]uuid.UUID)
	c.mu.Unlock()

	for _, id := range ids {
		c.registry.Detach(id)
	}
	c.metrics.SetSessions(string(registry.KindTelegram), 0)

	c.logger.Info("telegram connector stopped gracefully")
	return nil
}

func (c *Connector) registerCommands() error {
	params := &telego.SetMyCommandsParams{}
	for _, cmd := range constants.BotCommands {
		params.Commands = append(params.Commands, telego.BotCommand{
			Command:     cmd.Name,
			Description: cmd.Description,
		})
	}

	if err := c.bot.SetMyCommands(c.ctx, params); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	c.logger.Info("bot commands registered successfully")
	return nil
}

// isAllowedUser reports whether userID is whitelisted.
func (c *Connector) isAllowedUser(userID int64) bool {
	return slices.Contains(c.cfg.AllowedUsers, userID)
}

// sendStartupMessage greets every allowed user. Private chats share the
// user's id.
func (c *Connector) sendStartupMessage() {
	if len(c.cfg.AllowedUsers) == 0 {
		c.logger.Warn("no allowed users configured, every message will be refused")
		return
	}

	for _, userID := range c.cfg.AllowedUsers {
		if err := c.sendText(c.ctx, userID, constants.MsgTelegramOnline); err != nil {
			c.logger.ErrorCtx(c.ctx, "failed to send startup message", err,
				logger.Field{Key: "user_id", Value: userID})
			continue
		}
		c.logger.InfoCtx(c.ctx, "startup message sent",
			logger.Field{Key: "user_id", Value: userID})
	}
}

// ensureSession attaches chatID to the registry once.
func (c *Connector) ensureSession(chatID int64) string {
	lineage := registry.Lineage(registry.KindTelegram, strconv.FormatInt(chatID, 10))

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[chatID]; ok {
		return lineage
	}

	sess := c.registry.Attach(registry.KindTelegram, lineage, &chatDeliverer{conn: c, chatID: chatID})
	c.sessions[chatID] = sess.ID
	c.metrics.SetSessions(string(registry.KindTelegram), len(c.sessions))
	c.logger.Debug("telegram session attached",
		logger.Field{Key: "chat_id", Value: chatID},
		logger.Field{Key: "session_id", Value: sess.ID.String()})
	return lineage
}

// SessionCount returns the number of attached chats.
func (c *Connector) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
