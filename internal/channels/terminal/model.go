// Package terminal is the local chat surface, a bubbletea program.
package terminal

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pilobster/pilobster/internal/commands"
	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/messages"
	"github.com/pilobster/pilobster/internal/registry"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208")).Padding(0, 1)
	frameStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	thinkingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	scheduledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	senderStyle    = lipgloss.NewStyle().Bold(true)
)

const (
	helpLine    = "Enter: send  Ctrl+L: clear  Ctrl+S: status  Ctrl+C: quit"
	thinkingMsg = "⟳ thinking…"

	// chrome is the rows taken by header, frame borders, input and status.
	chrome = 8
)

// Handler answers one inbound message. commands.Router implements it.
type Handler interface {
	Handle(ctx context.Context, req commands.Request) ([]string, error)
}

type lineKind int

const (
	lineUser lineKind = iota
	lineAssistant
	lineScheduled
	lineNotice
)

type line struct {
	kind lineKind
	text string
	at   time.Time
}

// ScheduledMsg carries job output delivered through the registry.
type ScheduledMsg struct {
	Text  string
	JobID int64
}

// repliesMsg carries the handler's answer back to the event loop.
type repliesMsg struct {
	replies []string
	err     error
}

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx     context.Context
	handler Handler
	lineage string
	title   string
	now     func() time.Time

	width, height int
	lines         []line
	thinking      bool

	viewport viewport.Model
	input    textarea.Model
}

// NewModel builds the chat screen for lineage. title is shown in the header.
func NewModel(ctx context.Context, handler Handler, lineage, title string) *Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message… (Enter to send)"
	ta.Focus()
	ta.CharLimit = 4000
	ta.SetWidth(60)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	return &Model{
		ctx:      ctx,
		handler:  handler,
		lineage:  lineage,
		title:    title,
		now:      time.Now,
		viewport: viewport.New(60, 10),
		input:    ta,
	}
}

// AddHistory renders earlier turns before the first prompt.
func (m *Model) AddHistory(lines []HistoryLine) {
	if len(lines) == 0 {
		return
	}
	m.appendLine(lineNotice, "─── Previous Conversation ───")
	for _, h := range lines {
		kind := lineAssistant
		switch {
		case h.User:
			kind = lineUser
		case h.Scheduled:
			kind = lineScheduled
		}
		m.lines = append(m.lines, line{kind: kind, text: h.Text, at: h.At})
	}
	m.refresh()
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+l":
			m.lines = nil
			m.refresh()
			return m, nil
		case "ctrl+s":
			return m, m.submit("/" + constants.CommandStatus)
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" || m.thinking {
				return m, nil
			}
			switch strings.ToLower(text) {
			case "/quit", "/exit":
				return m, tea.Quit
			}
			m.appendLine(lineUser, text)
			return m, m.submit(text)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case repliesMsg:
		m.thinking = false
		if msg.err != nil {
			m.appendLine(lineNotice, messages.FormatError(msg.err))
		}
		for _, r := range msg.replies {
			m.appendLine(lineAssistant, r)
		}
		return m, nil

	case ScheduledMsg:
		m.appendLine(lineScheduled, msg.Text)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit hands text to the router off the event loop.
func (m *Model) submit(text string) tea.Cmd {
	if m.thinking {
		return nil
	}
	m.thinking = true
	m.refresh()

	ctx, handler, lineage := m.ctx, m.handler, m.lineage
	return func() tea.Msg {
		replies, err := handler.Handle(ctx, commands.Request{
			Lineage: lineage,
			Kind:    registry.KindTerminal,
			Text:    text,
		})
		return repliesMsg{replies: replies, err: err}
	}
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Initializing…"
	}
	innerW := m.width - 2

	header := headerStyle.Render("🦞 PiLobster  ›  " + m.title)
	body := frameStyle.Width(innerW).Render(m.viewport.View())
	input := frameStyle.Width(innerW).Render(m.input.View())

	status := helpLine
	if m.thinking {
		status = thinkingStyle.Render(thinkingMsg) + "  " + status
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, input, statusStyle.Render(status))
}

func (m *Model) appendLine(kind lineKind, text string) {
	m.lines = append(m.lines, line{kind: kind, text: text, at: m.now()})
	m.refresh()
}

func (m *Model) layout() {
	w := m.width - 4
	if w < 10 {
		w = 10
	}
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.viewport.Width = w
	m.viewport.Height = h
	m.input.SetWidth(w)
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m *Model) render() string {
	if len(m.lines) == 0 && !m.thinking {
		return noticeStyle.Render("No messages yet. Type something below!")
	}

	wrap := lipgloss.NewStyle().Width(m.viewport.Width)
	var sb strings.Builder
	for _, l := range m.lines {
		ts := l.at.Format("15:04")
		var s string
		switch l.kind {
		case lineUser:
			s = userStyle.Render("[" + ts + "] " + senderStyle.Render("You") + ": " + l.text)
		case lineAssistant:
			s = assistantStyle.Render("[" + ts + "] " + senderStyle.Render("PiLobster 🦞") + ": " + l.text)
		case lineScheduled:
			s = scheduledStyle.Render("[" + ts + "] " + messages.FormatScheduled(l.text))
		default:
			s = noticeStyle.Render(l.text)
		}
		sb.WriteString(wrap.Render(s))
		sb.WriteString("\n")
	}
	if m.thinking {
		sb.WriteString(thinkingStyle.Render(thinkingMsg) + "\n")
	}
	return sb.String()
}
