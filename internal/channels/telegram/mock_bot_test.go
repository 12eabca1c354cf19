package telegram

import (
	"context"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/mock"
)

// MockBot records BotInterface calls.
type MockBot struct {
	mock.Mock
}

func (m *MockBot) GetMe(ctx context.Context) (*telego.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telego.User), args.Error(1)
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telego.Message), args.Error(1)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, opts ...telego.LongPollingOption) (<-chan telego.Update, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(chan telego.Update), args.Error(1)
}

func (m *MockBot) SendChatAction(ctx context.Context, params *telego.SendChatActionParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// newStartableBot returns a mock that accepts Start, typing and any send,
// plus the update channel it polls.
func newStartableBot() (*MockBot, chan telego.Update) {
	bot := &MockBot{}
	updates := make(chan telego.Update, 8)
	bot.On("GetMe", mock.Anything).Return(&telego.User{ID: 1, Username: "pilobster_bot", IsBot: true}, nil)
	bot.On("SetMyCommands", mock.Anything, mock.Anything).Return(nil)
	bot.On("UpdatesViaLongPolling", mock.Anything, mock.Anything).Return(updates, nil)
	bot.On("SendChatAction", mock.Anything, mock.Anything).Return(nil).Maybe()
	return bot, updates
}

// sentTo matches a SendMessage to chatID with exactly text.
func sentTo(chatID int64, text string) any {
	return mock.MatchedBy(func(p *telego.SendMessageParams) bool {
		return p != nil && p.ChatID.ID == chatID && p.Text == text
	})
}
