package builders

import (
	"fmt"

	"github.com/pilobster/pilobster/internal/agent"
	"github.com/pilobster/pilobster/internal/config"
	"github.com/pilobster/pilobster/internal/llm"
	"github.com/pilobster/pilobster/internal/logger"
)

type AgentBuilder struct {
	config   *config.Config
	logger   *logger.Logger
	provider llm.Provider
	storage  *Storage
}

func NewAgentBuilder(cfg *config.Config, log *logger.Logger, provider llm.Provider, st *Storage) *AgentBuilder {
	return &AgentBuilder{
		config:   cfg,
		logger:   log,
		provider: provider,
		storage:  st,
	}
}

func (b *AgentBuilder) Build() (*agent.Agent, error) {
	a, err := agent.New(agent.Config{
		Provider:      b.provider,
		History:       b.storage.Memory,
		Notes:         b.storage.Workspace.Notes(),
		Logger:        b.logger,
		SystemPrompt:  b.config.SystemPrompt,
		Model:         b.config.Ollama.Model,
		Temperature:   b.config.Ollama.Temperature,
		ContextLength: b.config.Ollama.ContextLength,
		KeepAlive:     llm.KeepAlive(b.config.Ollama.KeepAlive),
		MaxHistory:    b.config.Memory.MaxHistory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}
	return a, nil
}
