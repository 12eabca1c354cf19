// Package workspace manages the directory where generated files and the
// notes file live.
//
//	ws := workspace.New("~/pilobster/workspace", db, log)
//	if err := ws.EnsureDir(); err != nil {
//	    return err
//	}
//	name, err := ws.Save(ctx, "fib.py", code, "saved from chat")
package workspace

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pilobster/pilobster/internal/logger"
)

// Workspace is a directory plus an optional database log of saved files.
type Workspace struct {
	path     string // expanded
	basePath string // as configured
	files    *fileLog
	notes    *Notes
}

// New creates a workspace rooted at path. db may be nil, in which case saves
// are not recorded.
func New(path string, db *sql.DB, log *logger.Logger) *Workspace {
	if log == nil {
		log = logger.Nop()
	}
	w := &Workspace{
		path:     expandHome(path),
		basePath: path,
	}
	if db != nil {
		w.files = &fileLog{db: db}
	}
	w.notes = newNotes(w.Subpath(NotesFile), log)
	return w
}

// Path returns the expanded workspace path.
func (w *Workspace) Path() string {
	return w.path
}

// BasePath returns the path as configured (may contain ~).
func (w *Workspace) BasePath() string {
	return w.basePath
}

// Notes returns the notes file.
func (w *Workspace) Notes() *Notes {
	return w.notes
}

// EnsureDir creates the workspace directory if it doesn't exist.
func (w *Workspace) EnsureDir() error {
	if w.path == "" {
		return fmt.Errorf("workspace path is empty")
	}

	info, err := os.Stat(w.path)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("workspace path exists but is not a directory: %s", w.path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access workspace path %s: %w", w.path, err)
	}

	if err := os.MkdirAll(w.path, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace directory %s: %w", w.path, err)
	}
	return nil
}

// Subpath joins name onto the workspace path.
func (w *Workspace) Subpath(name string) string {
	return filepath.Join(w.path, name)
}

// ResolvePath resolves a workspace-relative path, rejecting anything that
// would escape the workspace.
func (w *Workspace) ResolvePath(relPath string) (string, error) {
	if relPath == "" {
		return "", fmt.Errorf("path is empty")
	}
	if filepath.IsAbs(relPath) {
		return "", fmt.Errorf("path must be relative to the workspace: %s", relPath)
	}

	absWorkspace, err := filepath.Abs(w.path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute workspace path: %w", err)
	}
	absJoined := filepath.Join(absWorkspace, filepath.Clean(relPath))

	rel, err := filepath.Rel(absWorkspace, absJoined)
	if err != nil {
		return "", fmt.Errorf("failed to check path relationship: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path attempts to escape workspace: %s", relPath)
	}
	return absJoined, nil
}

// expandHome expands a leading ~ to the user's home directory.
func expandHome(path string) string {
	if len(path) > 0 && path[0] == '~' && (len(path) == 1 || path[1] == '/') {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if len(path) == 1 {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
