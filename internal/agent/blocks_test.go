package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlocks_Cron(t *testing.T) {
	text := "ok\n```cron\n{\"schedule\": \"*/5 * * * *\", \"task\": \"Joke\", \"message\": \"Tell a joke\"}\n```\n" +
		"```cron\nnot json\n```\n" +
		"```cron\n{\"schedule\": \"0 9 * * *\", \"task\": \"No message\"}\n```"

	b := ParseBlocks(text)
	require.Len(t, b.Cron, 1)
	assert.Equal(t, CronBlock{Schedule: "*/5 * * * *", Task: "Joke", Message: "Tell a joke"}, b.Cron[0])
	assert.Len(t, b.CronErrors, 2)
}

func TestParseBlocks_SaveAndMemory(t *testing.T) {
	text := "```save:fib.py\ndef fib(n):\n    return n\n```\n```memory\nUser likes tea\n```\n```memory\n   \n```"

	b := ParseBlocks(text)
	require.Len(t, b.Saves, 1)
	assert.Equal(t, "fib.py", b.Saves[0].Filename)
	assert.Equal(t, "def fib(n):\n    return n", b.Saves[0].Content)
	assert.Equal(t, []string{"User likes tea"}, b.Memory)
}

func TestParseBlocks_NormalizesUnicode(t *testing.T) {
	text := "```cron\n{\"schedule\": \"0 9 * * *\", \"task\": \"Cafe\u0301\", \"message\": \"x\"}\n```"
	b := ParseBlocks(text)
	require.Len(t, b.Cron, 1)
	assert.Equal(t, "Caf\u00e9", b.Cron[0].Task)
}

func TestCodeBlocks(t *testing.T) {
	text := "a\n```python\nprint(1)\n```\nb\n```\nplain\n```"
	blocks := CodeBlocks(text)
	require.Len(t, blocks, 2)
	assert.Equal(t, CodeBlock{Language: "python", Content: "print(1)"}, blocks[0])
	assert.Equal(t, CodeBlock{Language: "text", Content: "plain"}, blocks[1])
}

func TestCleanResponse(t *testing.T) {
	text := "Here you go.\n\n```cron\n{}\n```\n\n\n```save:a.txt\nx\n```\n```memory\nfact\n```\n\n```go\nfmt.Println()\n```"
	assert.Equal(t, "Here you go.\n\n```go\nfmt.Println()\n```", CleanResponse(text))
}
