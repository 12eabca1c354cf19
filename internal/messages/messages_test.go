package messages

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pilobster/pilobster/internal/constants"
	"github.com/pilobster/pilobster/internal/store"
	"github.com/pilobster/pilobster/internal/workspace"
)

func TestFormatJobs(t *testing.T) {
	assert.Equal(t, constants.MsgJobsEmpty, FormatJobs(nil))

	got := FormatJobs([]store.Job{
		{ID: 1, Task: "Daily fact", Schedule: "0 9 * * *"},
		{ID: 3, Task: "Stand up", Schedule: "30 14 * * 1-5"},
	})
	want := "🕐 *Scheduled Jobs*\n\n" +
		"#1 — Daily fact\n  Schedule: `0 9 * * *`\n" +
		"#3 — Stand up\n  Schedule: `30 14 * * 1-5`"
	assert.Equal(t, want, got)
}

func TestFormatJobScheduled(t *testing.T) {
	got := FormatJobScheduled(store.Job{ID: 7, Task: "Tell me a joke", Schedule: "*/3 * * * *"})
	assert.Equal(t, "✅ Scheduled job #7: Tell me a joke\nSchedule: `*/3 * * * *`", got)
}

func TestFormatCronErrors(t *testing.T) {
	assert.Empty(t, FormatCronErrors(nil))
	got := FormatCronErrors([]error{errors.New("bad schedule"), errors.New("missing message")})
	assert.Equal(t, "⚠️ Cron job errors:\n• bad schedule\n• missing message", got)
}

func TestFormatValidationErrors(t *testing.T) {
	assert.Empty(t, FormatValidationErrors(nil))
	got := FormatValidationErrors([]error{errors.New("a"), errors.New("b")})
	assert.Equal(t, "❌ Configuration validation failed:\n  - 1. a\n  - 2. b\n", got)
}

func TestFormatWorkspace(t *testing.T) {
	assert.Equal(t, constants.MsgWorkspaceEmpty, FormatWorkspace(nil))
	got := FormatWorkspace([]workspace.FileInfo{{Name: "fib.py", Size: 2048, ModTime: time.Now()}})
	assert.Equal(t, "📁 *Workspace Files*\n\n`fib.py` (2.0 KB)", got)
}

func TestFormatNotes(t *testing.T) {
	assert.Equal(t, constants.MsgNotesEmpty, FormatNotes("  \n"))
	assert.Equal(t, "🧠 *Notes*\n\n- tea", FormatNotes("- tea\n"))
}

func TestFormatScheduled(t *testing.T) {
	assert.Equal(t, "⏰ hello", FormatScheduled("hello"))
}

func TestCleanContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  hello  ", "hello"},
		{"closed block", "<think>hmm\nok</think>\n\nAnswer", "Answer"},
		{"unclosed tail", "Answer\n<think>still going", "Answer"},
		{"stray close", "</think>\nAnswer", "Answer"},
		{"newlines", "a\n\n\n\nb", "a\n\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanContent(tt.in))
		})
	}
}
