package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRequest(text string) ChatRequest {
	return ChatRequest{Messages: []Message{{Role: RoleUser, Content: text}}}
}

func TestMockProvider_Modes(t *testing.T) {
	ctx := context.Background()

	resp, err := NewEchoProvider().Chat(ctx, userRequest("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Echo: hello", resp.Content)

	resp, err = NewFixedProvider("fixed").Chat(ctx, userRequest("x"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", resp.Content)

	fixtures := NewFixturesProvider([]string{"a", "b"})
	var got []string
	for i := 0; i < 3; i++ {
		resp, err := fixtures.Chat(ctx, userRequest("x"))
		require.NoError(t, err)
		got = append(got, resp.Content)
	}
	assert.Equal(t, []string{"a", "b", "a"}, got)

	_, err = NewErrorProvider(nil).Chat(ctx, userRequest("x"))
	var unavailable *InferenceUnavailableError
	assert.True(t, errors.As(err, &unavailable))

	custom := errors.New("custom")
	_, err = NewErrorProvider(custom).Chat(ctx, userRequest("x"))
	assert.Equal(t, custom, err)
}

func TestMockProvider_DelayHonoursContext(t *testing.T) {
	p := NewMockProvider(MockConfig{Mode: MockModeFixed, Responses: []string{"late"}, Delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.Chat(ctx, userRequest("x"))
	var timeoutErr *InferenceTimeoutError
	assert.True(t, errors.As(err, &timeoutErr))
}

func TestMockProvider_SetErrorAndConcurrency(t *testing.T) {
	p := NewFixedProvider("ok")
	p.SetError(errors.New("down"))
	_, err := p.Chat(context.Background(), userRequest("x"))
	assert.EqualError(t, err, "down")

	p.SetError(nil)
	p.SetDelay(time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := p.Chat(context.Background(), userRequest("x"))
			assert.NoError(t, err)
			assert.Equal(t, "ok", resp.Content)
		}()
	}
	wg.Wait()

	assert.Equal(t, 21, p.GetCallCount())
	assert.Len(t, p.Requests(), 21)
	assert.Equal(t, "mock", p.GetDefaultModel())
}
