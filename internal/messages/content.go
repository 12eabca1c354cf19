package messages

import (
	"strings"

	"github.com/wasilibs/go-re2"
)

var (
	thinkBlock      = re2.MustCompile(`(?s)<think>.*?</think>`)
	thinkUnclosed   = re2.MustCompile(`(?s)<think>.*$`)
	thinkStrayClose = re2.MustCompile(`^\s*</think>\s*`)
	excessNewlines  = re2.MustCompile(`\n{3,}`)
)

// CleanContent strips reasoning blocks that some local models emit before
// the answer, including an unterminated trailing block.
func CleanContent(content string) string {
	cleaned := thinkBlock.ReplaceAllString(content, "")
	cleaned = thinkUnclosed.ReplaceAllString(cleaned, "")
	cleaned = thinkStrayClose.ReplaceAllString(cleaned, "")
	cleaned = excessNewlines.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}
