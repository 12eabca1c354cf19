package builders

import (
	"github.com/pilobster/pilobster/internal/config"
	"github.com/pilobster/pilobster/internal/llm"
	"github.com/pilobster/pilobster/internal/logger"
)

type LLMBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewLLMBuilder(cfg *config.Config, log *logger.Logger) *LLMBuilder {
	return &LLMBuilder{
		config: cfg,
		logger: log,
	}
}

func (b *LLMBuilder) Build() llm.Provider {
	provider := llm.NewOllamaProvider(llm.OllamaConfig{
		Host:           b.config.Ollama.Host,
		Model:          b.config.Ollama.Model,
		TimeoutSeconds: b.config.Ollama.TimeoutSeconds,
	}, b.logger)
	b.logger.Info("LLM provider initialized",
		logger.Field{Key: "provider", Value: "ollama"},
		logger.Field{Key: "host", Value: b.config.Ollama.Host},
		logger.Field{Key: "model", Value: b.config.Ollama.Model})
	return provider
}
