package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wasilibs/go-re2"
	"golang.org/x/text/unicode/norm"
)

var (
	cronBlock   = re2.MustCompile("(?s)```cron\\s*\\n(.*?)\\n\\s*```")
	saveBlock   = re2.MustCompile("(?s)```save:(\\S+)\\s*\\n(.*?)\\n\\s*```")
	memoryBlock = re2.MustCompile("(?s)```memory\\s*\\n(.*?)\\n\\s*```")
	codeBlock   = re2.MustCompile("(?s)```([\\w+-]*)[^\\n]*\\n(.*?)\\n\\s*```")
	blankRuns   = re2.MustCompile(`\n{3,}`)
)

// CronBlock is a scheduling request emitted by the model.
type CronBlock struct {
	Schedule string `json:"schedule"`
	Task     string `json:"task"`
	Message  string `json:"message"`
	Scope    string `json:"scope,omitempty"`
}

// SaveBlock is a file the model asked to write to the workspace.
type SaveBlock struct {
	Filename string
	Content  string
}

// CodeBlock is any fenced block.
type CodeBlock struct {
	Language string
	Content  string
}

// Blocks are the structured parts of a reply.
type Blocks struct {
	Cron []CronBlock
	// CronErrors holds blocks that were not valid JSON or missed a field.
	CronErrors []error
	Saves      []SaveBlock
	Memory     []string
}

// Normalize applies NFC so that visually equal text parses the same.
func Normalize(text string) string {
	return norm.NFC.String(text)
}

// ParseBlocks extracts cron, save and memory blocks from text.
func ParseBlocks(text string) Blocks {
	text = Normalize(text)
	var b Blocks

	for _, m := range cronBlock.FindAllStringSubmatch(text, -1) {
		raw := strings.TrimSpace(m[1])
		var job CronBlock
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			b.CronErrors = append(b.CronErrors, fmt.Errorf("unreadable cron block: %w", err))
			continue
		}
		if job.Schedule == "" || job.Task == "" || job.Message == "" {
			b.CronErrors = append(b.CronErrors, fmt.Errorf("cron block needs schedule, task and message"))
			continue
		}
		b.Cron = append(b.Cron, job)
	}

	for _, m := range saveBlock.FindAllStringSubmatch(text, -1) {
		b.Saves = append(b.Saves, SaveBlock{Filename: m[1], Content: m[2]})
	}

	for _, m := range memoryBlock.FindAllStringSubmatch(text, -1) {
		if facts := strings.TrimSpace(m[1]); facts != "" {
			b.Memory = append(b.Memory, facts)
		}
	}
	return b
}

// CodeBlocks returns every fenced block in text, in order. Blocks without a
// language are reported as "text".
func CodeBlocks(text string) []CodeBlock {
	var out []CodeBlock
	for _, m := range codeBlock.FindAllStringSubmatch(Normalize(text), -1) {
		lang := m[1]
		if lang == "" {
			lang = "text"
		}
		out = append(out, CodeBlock{Language: lang, Content: strings.TrimSpace(m[2])})
	}
	return out
}

// CleanResponse removes cron, save and memory blocks for display.
func CleanResponse(text string) string {
	text = Normalize(text)
	text = cronBlock.ReplaceAllString(text, "")
	text = saveBlock.ReplaceAllString(text, "")
	text = memoryBlock.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
