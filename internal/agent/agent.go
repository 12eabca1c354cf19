// Package agent runs conversations against the local model: it builds the
// prompt from the system prompt, notes and history window, and splits the
// reply into visible text and the blocks the model uses to act.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pilobster/pilobster/internal/llm"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/memory"
	"github.com/pilobster/pilobster/internal/messages"
)

const (
	DefaultSystemPrompt = "You are PiLobster, a helpful AI assistant."
	DefaultMaxHistory   = 50

	// charsPerToken converts the model context length into a character budget.
	charsPerToken = 4
)

// History is the conversation log the agent reads and appends to.
type History interface {
	Append(ctx context.Context, key string, turn memory.Turn) error
	Window(ctx context.Context, key string, budget memory.Budget) ([]memory.Turn, error)
}

// NotesReader supplies remembered facts for the system prompt.
type NotesReader interface {
	Read() (string, error)
}

type warmer interface {
	WarmUp(ctx context.Context, keepAlive llm.KeepAlive) error
}

// Config holds the agent's collaborators and model parameters.
type Config struct {
	Provider      llm.Provider
	History       History
	Notes         NotesReader
	Logger        *logger.Logger
	SystemPrompt  string
	Model         string
	Temperature   float64
	ContextLength int
	KeepAlive     llm.KeepAlive
	MaxHistory    int
}

// Reply is the outcome of one interactive turn.
type Reply struct {
	// Text is the reply with action blocks removed.
	Text   string
	Raw    string
	Blocks Blocks
}

// Agent is safe for concurrent use across lineages.
type Agent struct {
	cfg      Config
	provider llm.Provider
	history  History
	logger   *logger.Logger
}

// New validates cfg and applies defaults.
func New(cfg Config) (*Agent, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("LLM provider cannot be nil")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("conversation history cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Model == "" {
		cfg.Model = cfg.Provider.GetDefaultModel()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultMaxHistory
	}

	return &Agent{
		cfg:      cfg,
		provider: cfg.Provider,
		history:  cfg.History,
		logger:   cfg.Logger,
	}, nil
}

// Model returns the model name used for requests.
func (a *Agent) Model() string {
	return a.cfg.Model
}

// Budget returns the history window limits.
func (a *Agent) Budget() memory.Budget {
	b := memory.Budget{MaxTurns: a.cfg.MaxHistory}
	if a.cfg.ContextLength > 0 {
		b.MaxChars = a.cfg.ContextLength * charsPerToken
	}
	return b
}

// SystemPrompt returns the configured prompt followed by the notes file.
func (a *Agent) SystemPrompt() string {
	prompt := a.cfg.SystemPrompt
	if a.cfg.Notes == nil {
		return prompt
	}

	notes, err := a.cfg.Notes.Read()
	if err != nil {
		a.logger.Warn("failed to read notes", logger.Field{Key: "error", Value: err.Error()})
		return prompt
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		prompt += "\n\nThings you were asked to remember:\n" + notes
	}
	return prompt
}

// Chat records the user's text in lineage, asks the model with the history
// window and records the reply. Inference errors are returned typed (see
// llm.Classify) and leave only the user turn behind.
func (a *Agent) Chat(ctx context.Context, lineage, text string) (Reply, error) {
	text = Normalize(strings.TrimSpace(text))
	if err := a.history.Append(ctx, lineage, memory.Turn{Role: memory.RoleUser, Content: text}); err != nil {
		return Reply{}, fmt.Errorf("failed to record user message: %w", err)
	}

	window, err := a.history.Window(ctx, lineage, a.Budget())
	if err != nil {
		return Reply{}, fmt.Errorf("failed to load history: %w", err)
	}

	msgs := make([]llm.Message, 0, len(window)+1)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: a.SystemPrompt()})
	for _, t := range window {
		msgs = append(msgs, llm.Message{Role: llm.Role(t.Role), Content: t.Content})
	}

	start := time.Now()
	raw, err := a.generate(ctx, msgs)
	if err != nil {
		a.logger.ErrorCtx(ctx, "chat generation failed", err,
			logger.Field{Key: "lineage", Value: lineage})
		return Reply{}, err
	}

	if err := a.history.Append(ctx, lineage, memory.Turn{Role: memory.RoleAssistant, Content: raw}); err != nil {
		return Reply{}, fmt.Errorf("failed to record reply: %w", err)
	}

	reply := Reply{Text: CleanResponse(raw), Raw: raw, Blocks: ParseBlocks(raw)}
	a.logger.DebugCtx(ctx, "chat reply generated",
		logger.Field{Key: "lineage", Value: lineage},
		logger.Field{Key: "window_turns", Value: len(window)},
		logger.Field{Key: "cron_blocks", Value: len(reply.Blocks.Cron)},
		logger.Field{Key: "save_blocks", Value: len(reply.Blocks.Saves)},
		logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
	return reply, nil
}

// Fire answers a scheduled job's message with no conversation context.
func (a *Agent) Fire(ctx context.Context, prompt string) (string, error) {
	raw, err := a.generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: a.SystemPrompt()},
		{Role: llm.RoleUser, Content: Normalize(prompt)},
	})
	if err != nil {
		return "", err
	}

	text := CleanResponse(raw)
	if text == "" {
		return "", &llm.MalformedResponseError{Body: raw, Err: fmt.Errorf("empty reply")}
	}
	return text, nil
}

// WarmUp loads the model when the provider supports it.
func (a *Agent) WarmUp(ctx context.Context) error {
	w, ok := a.provider.(warmer)
	if !ok {
		return nil
	}
	return w.WarmUp(ctx, a.cfg.KeepAlive)
}

func (a *Agent) generate(ctx context.Context, msgs []llm.Message) (string, error) {
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Messages:      msgs,
		Model:         a.cfg.Model,
		Temperature:   a.cfg.Temperature,
		ContextLength: a.cfg.ContextLength,
		KeepAlive:     a.cfg.KeepAlive,
	})
	if err != nil {
		return "", llm.Classify(a.cfg.Model, err)
	}
	return messages.CleanContent(resp.Content), nil
}
