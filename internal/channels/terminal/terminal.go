package terminal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pilobster/pilobster/internal/agent"
	"github.com/pilobster/pilobster/internal/channels"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/memory"
	"github.com/pilobster/pilobster/internal/metrics"
	"github.com/pilobster/pilobster/internal/registry"
)

// DefaultHistoryTurns is how much earlier conversation is replayed on start.
const DefaultHistoryTurns = 20

// Conversations reads a lineage's history.
type Conversations interface {
	History(ctx context.Context, key string, limit int) ([]memory.Turn, error)
}

// HistoryLine is one replayed turn.
type HistoryLine struct {
	User      bool
	Scheduled bool
	Text      string
	At        time.Time
}

type Config struct {
	UserID       int64
	Model        string
	HistoryTurns int
}

// Terminal runs the chat screen as one registry session.
type Terminal struct {
	cfg      Config
	handler  Handler
	convs    Conversations
	registry *registry.Registry
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

// New creates the terminal surface. convs and m may be nil.
func New(cfg Config, handler Handler, convs Conversations, reg *registry.Registry, log *logger.Logger, m *metrics.Metrics) *Terminal {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = DefaultHistoryTurns
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Terminal{cfg: cfg, handler: handler, convs: convs, registry: reg, logger: log, metrics: m}
}

// Lineage is the conversation key of the local user.
func (t *Terminal) Lineage() string {
	return registry.Lineage(registry.KindTerminal, strconv.FormatInt(t.cfg.UserID, 10))
}

// Run shows the chat screen until the user quits or ctx ends. Extra
// options are passed to bubbletea.
func (t *Terminal) Run(ctx context.Context, opts ...tea.ProgramOption) error {
	lineage := t.Lineage()
	title := fmt.Sprintf("%s (user_id=%d)", t.cfg.Model, t.cfg.UserID)

	model := NewModel(ctx, t.handler, lineage, title)
	model.AddHistory(t.history(ctx, lineage))

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(model, opts...)

	d := &programDeliverer{p: p}
	sess := t.registry.Attach(registry.KindTerminal, lineage, d)
	t.metrics.SetSessions(string(registry.KindTerminal), 1)
	t.logger.Info("terminal session attached",
		logger.Field{Key: "lineage", Value: lineage},
		logger.Field{Key: "session_id", Value: sess.ID.String()})

	defer func() {
		d.closed.Store(true)
		t.registry.Detach(sess.ID)
		t.metrics.SetSessions(string(registry.KindTerminal), 0)
		t.logger.Info("terminal session detached", logger.Field{Key: "lineage", Value: lineage})
	}()

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("terminal ui failed: %w", err)
	}
	return nil
}

func (t *Terminal) history(ctx context.Context, lineage string) []HistoryLine {
	if t.convs == nil {
		return nil
	}
	turns, err := t.convs.History(ctx, lineage, t.cfg.HistoryTurns)
	if err != nil {
		t.logger.ErrorCtx(ctx, "failed to load conversation history", err,
			logger.Field{Key: "lineage", Value: lineage})
		return nil
	}
	return historyLines(turns)
}

func historyLines(turns []memory.Turn) []HistoryLine {
	var out []HistoryLine
	for _, turn := range turns {
		if turn.Role == memory.RoleSystem {
			continue
		}
		text := turn.Content
		if turn.Role == memory.RoleAssistant {
			text = agent.CleanResponse(text)
		}
		if strings.TrimSpace(text) == "" {
			text = "(empty)"
		}
		out = append(out, HistoryLine{
			User:      turn.Role == memory.RoleUser,
			Scheduled: turn.Tag == memory.TagScheduled,
			Text:      text,
			At:        turn.CreatedAt,
		})
	}
	return out
}

// programDeliverer forwards broadcasts into the running program.
type programDeliverer struct {
	p      *tea.Program
	closed atomic.Bool
}

func (d *programDeliverer) Deliver(_ context.Context, msg registry.Message) error {
	if d.closed.Load() {
		return channels.ErrSessionClosed
	}
	d.p.Send(ScheduledMsg{Text: msg.Text, JobID: msg.JobID})
	return nil
}
