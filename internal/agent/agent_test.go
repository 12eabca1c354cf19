package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilobster/pilobster/internal/llm"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/memory"
	"github.com/pilobster/pilobster/internal/storage"
)

type staticNotes string

func (n staticNotes) Read() (string, error) { return string(n), nil }

func newTestMemory(t *testing.T) *memory.Memory {
	t.Helper()
	db, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return memory.New(db, logger.Nop())
}

func newTestAgent(t *testing.T, provider llm.Provider, notes NotesReader) (*Agent, *memory.Memory) {
	t.Helper()
	mem := newTestMemory(t)
	a, err := New(Config{
		Provider:      provider,
		History:       mem,
		Notes:         notes,
		Model:         "tinyllama",
		Temperature:   0.7,
		ContextLength: 4096,
		KeepAlive:     "-1",
	})
	require.NoError(t, err)
	return a, mem
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{History: newTestMemory(t)})
	assert.Error(t, err)
	_, err = New(Config{Provider: llm.NewEchoProvider()})
	assert.Error(t, err)

	a, err := New(Config{Provider: llm.NewEchoProvider(), History: newTestMemory(t)})
	require.NoError(t, err)
	assert.Equal(t, "mock", a.Model())
	assert.Equal(t, DefaultSystemPrompt, a.SystemPrompt())
	assert.Equal(t, memory.Budget{MaxTurns: DefaultMaxHistory}, a.Budget())
}

func TestChat_RecordsTurnsAndSendsWindow(t *testing.T) {
	provider := llm.NewFixturesProvider([]string{"Hello there!", "Still here."})
	a, mem := newTestAgent(t, provider, nil)
	ctx := context.Background()

	reply, err := a.Chat(ctx, "telegram:1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", reply.Text)

	_, err = a.Chat(ctx, "telegram:1", "you there?")
	require.NoError(t, err)

	reqs := provider.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1]
	assert.Equal(t, "tinyllama", last.Model)
	assert.Equal(t, 4096, last.ContextLength)
	assert.Equal(t, llm.KeepAlive("-1"), last.KeepAlive)
	require.Len(t, last.Messages, 4)
	assert.Equal(t, llm.RoleSystem, last.Messages[0].Role)
	assert.Equal(t, "hi", last.Messages[1].Content)
	assert.Equal(t, "Hello there!", last.Messages[2].Content)
	assert.Equal(t, "you there?", last.Messages[3].Content)

	turns, err := mem.Log(ctx, "telegram:1")
	require.NoError(t, err)
	assert.Len(t, turns, 4)

	other, err := mem.Log(ctx, "terminal:0")
	require.NoError(t, err)
	assert.Empty(t, other, "lineages are independent")
}

func TestChat_ParsesBlocks(t *testing.T) {
	raw := "Sure!\n```cron\n{\"schedule\": \"0 9 * * *\", \"task\": \"Daily fact\", \"message\": \"Tell me a fact\"}\n```\n" +
		"```save:hello.py\nprint(\"hi\")\n```\nDone."
	a, _ := newTestAgent(t, llm.NewFixedProvider(raw), nil)

	reply, err := a.Chat(context.Background(), "terminal:0", "schedule it")
	require.NoError(t, err)
	assert.Equal(t, "Sure!\n\nDone.", reply.Text)
	assert.Equal(t, raw, reply.Raw)
	require.Len(t, reply.Blocks.Cron, 1)
	assert.Equal(t, "0 9 * * *", reply.Blocks.Cron[0].Schedule)
	require.Len(t, reply.Blocks.Saves, 1)
	assert.Equal(t, "hello.py", reply.Blocks.Saves[0].Filename)
}

func TestChat_InferenceErrorIsTyped(t *testing.T) {
	provider := llm.NewFixedProvider("never")
	provider.SetDelay(time.Second)
	a, mem := newTestAgent(t, provider, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := a.Chat(ctx, "terminal:0", "hello")

	var timeoutErr *llm.InferenceTimeoutError
	require.ErrorAs(t, err, &timeoutErr)

	turns, err := mem.Log(context.Background(), "terminal:0")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, memory.RoleUser, turns[0].Role)
}

func TestSystemPrompt_IncludesNotes(t *testing.T) {
	a, _ := newTestAgent(t, llm.NewEchoProvider(), staticNotes("- [2026-03-02] likes tea\n"))
	prompt := a.SystemPrompt()
	assert.Contains(t, prompt, DefaultSystemPrompt)
	assert.Contains(t, prompt, "likes tea")
}

func TestFire_IsStateless(t *testing.T) {
	provider := llm.NewFixedProvider("<think>plan</think>A fun fact.")
	a, mem := newTestAgent(t, provider, nil)
	ctx := context.Background()

	_, err := a.Chat(ctx, "terminal:0", "earlier chat")
	require.NoError(t, err)

	out, err := a.Fire(ctx, "Tell me a fact")
	require.NoError(t, err)
	assert.Equal(t, "A fun fact.", out)

	reqs := provider.Requests()
	fire := reqs[len(reqs)-1]
	require.Len(t, fire.Messages, 2)
	assert.Equal(t, "Tell me a fact", fire.Messages[1].Content)

	turns, err := mem.Log(ctx, "terminal:0")
	require.NoError(t, err)
	assert.Len(t, turns, 2, "fires do not touch history")
}

func TestFire_EmptyReplyIsMalformed(t *testing.T) {
	a, _ := newTestAgent(t, llm.NewFixedProvider("```cron\n{}\n```"), nil)
	_, err := a.Fire(context.Background(), "x")

	var malformed *llm.MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
}

func TestFire_ProviderError(t *testing.T) {
	a, _ := newTestAgent(t, llm.NewErrorProvider(errors.New("boom")), nil)
	_, err := a.Fire(context.Background(), "x")
	assert.EqualError(t, err, "boom")
}

func TestWarmUp_SkipsProvidersWithoutSupport(t *testing.T) {
	a, _ := newTestAgent(t, llm.NewEchoProvider(), nil)
	assert.NoError(t, a.WarmUp(context.Background()))
}
