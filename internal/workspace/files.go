package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DefaultFilename is used when a requested name sanitizes to nothing.
const DefaultFilename = "untitled.txt"

type fileLog struct {
	db *sql.DB
}

// FileInfo describes a file in the workspace.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Sanitize reduces a requested filename to a safe base name.
func Sanitize(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return DefaultFilename
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`<>:"|?*`, r):
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return DefaultFilename
	}
	return name
}

// Save writes content under a sanitized name without overwriting: an
// existing name gets a numeric suffix (notes.txt, notes_1.txt, ...). It
// returns the name actually written.
func (w *Workspace) Save(ctx context.Context, name, content, description string) (string, error) {
	if err := w.EnsureDir(); err != nil {
		return "", err
	}

	base := Sanitize(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for i := 0; ; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}

		f, err := os.OpenFile(w.Subpath(candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", candidate, err)
		}

		_, werr := f.WriteString(content)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("failed to write %s: %w", candidate, errors.Join(werr, cerr))
		}

		if w.files != nil {
			if _, err := w.files.db.ExecContext(ctx,
				`INSERT INTO workspace_files (filename, description, created_at) VALUES (?, ?, ?)`,
				candidate, description, time.Now().Unix()); err != nil {
				return candidate, fmt.Errorf("failed to record %s: %w", candidate, err)
			}
		}
		return candidate, nil
	}
}

// List returns the regular files in the workspace, sorted by name. The notes
// file is included.
func (w *Workspace) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(w.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	slices.SortFunc(files, func(a, b FileInfo) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

// Read returns the content of a workspace file.
func (w *Workspace) Read(name string) (string, error) {
	path, err := w.ResolvePath(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

// SavedCount returns the number of recorded saves, or zero without a database.
func (w *Workspace) SavedCount(ctx context.Context) (int, error) {
	if w.files == nil {
		return 0, nil
	}
	var n int
	if err := w.files.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workspace_files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count workspace files: %w", err)
	}
	return n, nil
}
