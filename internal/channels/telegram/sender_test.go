package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/mymmrac/telego"
	telegoapi "github.com/mymmrac/telego/telegoapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pilobster/pilobster/internal/channels"
	"github.com/pilobster/pilobster/internal/logger"
)

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	lines := strings.Repeat("abcd\n", 5)
	chunks := splitMessage(lines, 12)
	assert.Equal(t, lines, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 12)
		assert.True(t, strings.HasSuffix(c, "\n"), "chunk %q should end on a line boundary", c)
	}

	long := strings.Repeat("🦞", 9001)
	chunks = splitMessage(long, maxMessageRunes)
	require.Len(t, chunks, 3)
	assert.Equal(t, maxMessageRunes, utf8.RuneCountInString(chunks[0]))
	assert.Equal(t, 1001, utf8.RuneCountInString(chunks[2]))
	assert.Equal(t, long, strings.Join(chunks, ""))
}

func newSendConnector(bot *MockBot) *Connector {
	return New(Config{SendTimeout: time.Second}, nil, nil, logger.Nop(), nil).WithBot(bot)
}

func TestSendText_Markdown(t *testing.T) {
	bot := &MockBot{}
	bot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
		return p.ParseMode == telego.ModeMarkdown && p.Text == "*hi*"
	})).Return(&telego.Message{}, nil).Once()

	require.NoError(t, newSendConnector(bot).sendText(context.Background(), 42, "*hi*"))
	bot.AssertExpectations(t)
}

func TestSendText_PlainFallback(t *testing.T) {
	bot := &MockBot{}
	parseErr := &telegoapi.Error{ErrorCode: 400, Description: "Bad Request: can't parse entities: unclosed"}
	bot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
		return p.ParseMode == telego.ModeMarkdown
	})).Return(nil, parseErr).Once()
	bot.On("SendMessage", mock.Anything, mock.MatchedBy(func(p *telego.SendMessageParams) bool {
		return p.ParseMode == "" && p.Text == "a_b*c"
	})).Return(&telego.Message{}, nil).Once()

	require.NoError(t, newSendConnector(bot).sendText(context.Background(), 42, "a_b*c"))
	bot.AssertExpectations(t)
}

func TestSendText_APIError(t *testing.T) {
	bot := &MockBot{}
	bot.On("SendMessage", mock.Anything, mock.Anything).Return(nil, &telegoapi.Error{
		ErrorCode:   429,
		Description: "Too Many Requests",
		Parameters:  &telegoapi.ResponseParameters{RetryAfter: 7},
	}).Once()

	err := newSendConnector(bot).sendText(context.Background(), 42, "hi")

	var details *channels.TelegramErrorDetails
	require.ErrorAs(t, err, &details)
	assert.Equal(t, 429, details.ErrorCode)
	assert.Equal(t, int64(42), details.ChatID)
	assert.True(t, details.IsRetryable())
	assert.Equal(t, 7*time.Second, details.RetryAfter())
	bot.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestErrorDetails_PassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("network down")
	assert.Same(t, plain, errorDetails(plain, 1))
}

func TestIsEntityParseError(t *testing.T) {
	assert.True(t, isEntityParseError(&telegoapi.Error{ErrorCode: 400, Description: "Bad Request: Can't find end of the entity starting at byte offset 3"}))
	assert.False(t, isEntityParseError(&telegoapi.Error{ErrorCode: 400, Description: "Bad Request: chat not found"}))
	assert.False(t, isEntityParseError(&telegoapi.Error{ErrorCode: 500, Description: "can't parse entities"}))
}

func TestTypingManager(t *testing.T) {
	bot := &MockBot{}
	bot.On("SendChatAction", mock.Anything, mock.MatchedBy(func(p *telego.SendChatActionParams) bool {
		return p.ChatID.ID == 42 && p.Action == telego.ChatActionTyping
	})).Return(nil)

	tm := NewTypingManager(context.Background(), bot, logger.Nop())
	tm.Start(42)
	tm.Start(42)

	require.Eventually(t, func() bool {
		tm.mu.Lock()
		defer tm.mu.Unlock()
		return len(tm.cancels) == 1
	}, time.Second, 10*time.Millisecond)

	tm.StopAll()
	tm.mu.Lock()
	assert.Empty(t, tm.cancels)
	tm.mu.Unlock()
}
