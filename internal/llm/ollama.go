package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pilobster/pilobster/internal/logger"
)

const (
	// DefaultOllamaHost is where a local Ollama server listens.
	DefaultOllamaHost = "http://localhost:11434"
	// DefaultModel is the smallest model that fits a Raspberry Pi.
	DefaultModel = "tinyllama"
	// OllamaRequestTimeout bounds a request when the caller sets no deadline.
	OllamaRequestTimeout = 5 * time.Minute
)

// OllamaConfig configures the Ollama provider.
type OllamaConfig struct {
	Host           string
	Model          string
	TimeoutSeconds int
}

// OllamaProvider implements Provider against the Ollama HTTP API.
type OllamaProvider struct {
	client *http.Client
	config OllamaConfig
	host   string
	logger *logger.Logger
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumCtx      int      `json:"num_ctx,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaRequest struct {
	Model     string          `json:"model"`
	Messages  []ollamaMessage `json:"messages"`
	Stream    bool            `json:"stream"`
	KeepAlive KeepAlive       `json:"keep_alive,omitempty"`
	Options   *ollamaOptions  `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model           string         `json:"model"`
	Message         *ollamaMessage `json:"message"`
	Done            bool           `json:"done"`
	DoneReason      string         `json:"done_reason"`
	PromptEvalCount int            `json:"prompt_eval_count"`
	EvalCount       int            `json:"eval_count"`
	Error           string         `json:"error"`
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaProvider creates a provider for cfg.Host.
func NewOllamaProvider(cfg OllamaConfig, log *logger.Logger) *OllamaProvider {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = OllamaRequestTimeout
	}

	return &OllamaProvider{
		client: &http.Client{Timeout: timeout},
		config: cfg,
		host:   strings.TrimRight(cfg.Host, "/"),
		logger: log,
	}
}

// GetDefaultModel returns the configured model.
func (p *OllamaProvider) GetDefaultModel() string {
	return p.config.Model
}

// Host returns the server base URL.
func (p *OllamaProvider) Host() string {
	return p.host
}

// Chat sends a non-streaming /api/chat request.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	p.logger.DebugCtx(ctx, "sending chat request to Ollama",
		logger.Field{Key: "model", Value: model},
		logger.Field{Key: "messages_count", Value: len(req.Messages)})

	body, err := json.Marshal(p.mapChatRequest(model, req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, err := p.doRequest(ctx, model, http.MethodPost, "/api/chat", body)
	if err != nil {
		return nil, err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		p.logger.ErrorCtx(ctx, "failed to unmarshal Ollama response", err,
			logger.Field{Key: "response_body", Value: string(respBody)})
		return nil, &MalformedResponseError{Body: string(respBody), Err: err}
	}
	if resp.Error != "" {
		return nil, &InferenceUnavailableError{Model: model, Err: errors.New(resp.Error)}
	}
	if resp.Message == nil {
		return nil, &MalformedResponseError{Body: string(respBody), Err: errors.New("response has no message")}
	}

	return p.mapChatResponse(model, &resp), nil
}

// WarmUp loads the model into memory with the configured keep-alive so the
// first real message does not pay the load time.
func (p *OllamaProvider) WarmUp(ctx context.Context, keepAlive KeepAlive) error {
	start := time.Now()
	_, err := p.Chat(ctx, ChatRequest{
		Messages:  []Message{{Role: RoleUser, Content: "hi"}},
		KeepAlive: keepAlive,
	})
	if err != nil {
		return fmt.Errorf("failed to warm up model %s: %w", p.config.Model, err)
	}

	p.logger.InfoCtx(ctx, "model warmed up",
		logger.Field{Key: "model", Value: p.config.Model},
		logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
	return nil
}

// Models lists the models installed on the server.
func (p *OllamaProvider) Models(ctx context.Context) ([]string, error) {
	respBody, err := p.doRequest(ctx, p.config.Model, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return nil, err
	}

	var tags ollamaTags
	if err := json.Unmarshal(respBody, &tags); err != nil {
		return nil, &MalformedResponseError{Body: string(respBody), Err: err}
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Ping reports whether the server answers.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	_, err := p.Models(ctx)
	return err
}

func (p *OllamaProvider) doRequest(ctx context.Context, model, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, p.host+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		if classified := Classify(model, err); classified != err {
			return nil, classified
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request cancelled: %w", ctxErr)
		}
		p.logger.ErrorCtx(ctx, "failed to reach Ollama", err, logger.Field{Key: "host", Value: p.host})
		return nil, &InferenceUnavailableError{Model: model, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if classified := Classify(model, err); classified != err {
			return nil, classified
		}
		return nil, &InferenceUnavailableError{Model: model, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.ErrorCtx(ctx, "Ollama returned error status", nil,
			logger.Field{Key: "status_code", Value: httpResp.StatusCode},
			logger.Field{Key: "response_body", Value: string(respBody)})

		httpErr := &HTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
		if httpResp.StatusCode == http.StatusNotFound || httpResp.StatusCode >= 500 {
			return nil, &InferenceUnavailableError{Model: model, StatusCode: httpResp.StatusCode, Err: httpErr}
		}
		return nil, httpErr
	}

	p.logger.DebugCtx(ctx, "raw Ollama response body",
		logger.Field{Key: "response_body", Value: string(respBody)})

	return respBody, nil
}

func (p *OllamaProvider) mapChatRequest(model string, req ChatRequest) ollamaRequest {
	messages := make([]ollamaMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = ollamaMessage{Role: string(msg.Role), Content: msg.Content}
	}

	temperature := req.Temperature
	return ollamaRequest{
		Model:     model,
		Messages:  messages,
		Stream:    false,
		KeepAlive: req.KeepAlive,
		Options: &ollamaOptions{
			NumCtx:      req.ContextLength,
			Temperature: &temperature,
		},
	}
}

func (p *OllamaProvider) mapChatResponse(model string, resp *ollamaResponse) *ChatResponse {
	if resp.Model != "" {
		model = resp.Model
	}
	return &ChatResponse{
		Content:      resp.Message.Content,
		FinishReason: resp.DoneReason,
		Usage: Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		},
		Model: model,
	}
}
