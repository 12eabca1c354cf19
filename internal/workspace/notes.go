package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pilobster/pilobster/internal/logger"
)

const (
	// NotesFile holds facts the assistant was asked to remember.
	NotesFile = "MEMORY.md"

	// NotesWarnSize is the size past which the notes file bloats every prompt.
	NotesWarnSize = 8 * 1024
)

// Notes is the append-only notes file included in the system prompt.
type Notes struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

func newNotes(path string, log *logger.Logger) *Notes {
	return &Notes{path: path, log: log}
}

// Path returns the notes file location.
func (n *Notes) Path() string {
	return n.path
}

// Read returns the notes, or "" when the file does not exist yet.
func (n *Notes) Read() (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := os.ReadFile(n.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read notes: %w", err)
	}
	return string(data), nil
}

// Append adds a dated entry for each non-empty line of facts.
func (n *Notes) Append(facts string, at time.Time) error {
	var b strings.Builder
	for _, line := range strings.Split(facts, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line == "" {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", at.Format("2006-01-02"), line)
	}
	if b.Len() == 0 {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(n.path), 0o755); err != nil {
		return fmt.Errorf("failed to create notes directory: %w", err)
	}
	f, err := os.OpenFile(n.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open notes: %w", err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to append notes: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close notes: %w", err)
	}

	if info, err := os.Stat(n.path); err == nil && info.Size() > NotesWarnSize {
		n.log.Warn("notes file is getting large",
			logger.Field{Key: "path", Value: n.path},
			logger.Field{Key: "bytes", Value: info.Size()})
	}
	return nil
}

// Clear empties the notes file.
func (n *Notes) Clear() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	err := os.Remove(n.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to clear notes: %w", err)
	}
	return nil
}
