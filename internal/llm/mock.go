package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// MockMode selects how MockProvider answers.
type MockMode int

const (
	// MockModeEcho answers "Echo: <last user message>".
	MockModeEcho MockMode = iota
	// MockModeFixed always answers the first configured response.
	MockModeFixed
	// MockModeFixtures rotates through the configured responses.
	MockModeFixtures
	// MockModeError always fails with the configured error.
	MockModeError
)

// MockConfig configures a MockProvider.
type MockConfig struct {
	Mode      MockMode
	Responses []string
	// Delay is waited before answering; a done context aborts the wait.
	Delay time.Duration
	// Err is returned in MockModeError. Defaults to an unavailable error.
	Err   error
	Model string
}

// MockProvider is an in-process Provider for tests and offline runs. It is
// safe for concurrent use.
type MockProvider struct {
	mu            sync.Mutex
	cfg           MockConfig
	responseIndex int
	requests      []ChatRequest
}

// NewMockProvider creates a mock provider.
func NewMockProvider(cfg MockConfig) *MockProvider {
	if cfg.Model == "" {
		cfg.Model = "mock"
	}
	return &MockProvider{cfg: cfg}
}

// NewEchoProvider echoes the last user message.
func NewEchoProvider() *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeEcho})
}

// NewFixedProvider always returns response.
func NewFixedProvider(response string) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeFixed, Responses: []string{response}})
}

// NewFixturesProvider cycles through responses.
func NewFixturesProvider(responses []string) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeFixtures, Responses: responses})
}

// NewErrorProvider always fails with err.
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeError, Err: err})
}

// Chat implements Provider.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	cfg := m.cfg
	m.mu.Unlock()

	if cfg.Delay > 0 {
		timer := time.NewTimer(cfg.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, Classify(cfg.Model, ctx.Err())
		case <-timer.C:
		}
	}

	if cfg.Mode == MockModeError {
		if cfg.Err != nil {
			return nil, cfg.Err
		}
		return nil, &InferenceUnavailableError{Model: cfg.Model, Err: errors.New("mock provider error")}
	}

	var userMessage string
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == RoleUser {
		userMessage = req.Messages[n-1].Content
	}

	var response string
	switch cfg.Mode {
	case MockModeEcho:
		response = fmt.Sprintf("Echo: %s", userMessage)
	case MockModeFixed:
		response = "Fixed response: no responses configured"
		if len(cfg.Responses) > 0 {
			response = cfg.Responses[0]
		}
	case MockModeFixtures:
		response = "Fixtures: no responses configured"
		m.mu.Lock()
		if len(m.cfg.Responses) > 0 {
			response = m.cfg.Responses[m.responseIndex]
			m.responseIndex = (m.responseIndex + 1) % len(m.cfg.Responses)
		}
		m.mu.Unlock()
	}

	model := req.Model
	if model == "" {
		model = cfg.Model
	}
	return &ChatResponse{
		Content:      response,
		Model:        model,
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     len(userMessage),
			CompletionTokens: len(response),
		},
	}, nil
}

// GetDefaultModel implements Provider.
func (m *MockProvider) GetDefaultModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Model
}

// SetDelay changes the answer delay for subsequent calls.
func (m *MockProvider) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Delay = d
}

// SetError switches the provider into error mode (err != nil) or back to
// fixed mode with the previous responses (err == nil).
func (m *MockProvider) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.cfg.Mode = MockModeError
		m.cfg.Err = err
		return
	}
	m.cfg.Mode = MockModeFixed
	m.cfg.Err = nil
}

// GetCallCount returns the number of Chat calls.
func (m *MockProvider) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
