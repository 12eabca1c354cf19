package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/storage"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(context.Background(), filepath.Join(dir, "pilobster.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(filepath.Join(dir, "workspace"), db, logger.Nop())
}

func TestEnsureDir(t *testing.T) {
	ws := newTestWorkspace(t)
	require.NoError(t, ws.EnsureDir())
	require.NoError(t, ws.EnsureDir())

	info, err := os.Stat(ws.Path())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, New(file, nil, nil).EnsureDir())
	assert.Error(t, New("", nil, nil).EnsureDir())
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, "ws"), expandHome("~/ws"))
	assert.Equal(t, "./ws", expandHome("./ws"))
	assert.Equal(t, "~other/ws", expandHome("~other/ws"))
}

func TestResolvePath(t *testing.T) {
	ws := New(t.TempDir(), nil, nil)

	p, err := ws.ResolvePath("notes/a.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, ws.Path()))

	for _, bad := range []string{"", "..", "../x", "a/../../x", "/etc/passwd"} {
		_, err := ws.ResolvePath(bad)
		assert.Error(t, err, bad)
	}
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"fib.py":           "fib.py",
		"  fib.py ":        "fib.py",
		"../../etc/passwd": "passwd",
		`dir\evil.sh`:      "evil.sh",
		".bashrc":          "bashrc",
		"":                 DefaultFilename,
		"..":               DefaultFilename,
		"what?.txt":        "what_.txt",
	}
	for in, want := range tests {
		assert.Equal(t, want, Sanitize(in), in)
	}
}

func TestSave_NeverOverwrites(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	first, err := ws.Save(ctx, "fib.py", "print(1)", "")
	require.NoError(t, err)
	second, err := ws.Save(ctx, "fib.py", "print(2)", "")
	require.NoError(t, err)
	third, err := ws.Save(ctx, "fib.py", "print(3)", "")
	require.NoError(t, err)

	assert.Equal(t, "fib.py", first)
	assert.Equal(t, "fib_1.py", second)
	assert.Equal(t, "fib_2.py", third)

	content, err := ws.Read("fib.py")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", content)

	n, err := ws.SavedCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSave_NoDatabase(t *testing.T) {
	ws := New(t.TempDir(), nil, nil)
	name, err := ws.Save(context.Background(), "", "hello", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultFilename, name)

	n, err := ws.SavedCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestList(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	files, err := ws.List()
	require.NoError(t, err)
	assert.Empty(t, files, "missing directory lists as empty")

	_, err = ws.Save(ctx, "b.txt", "bb", "")
	require.NoError(t, err)
	_, err = ws.Save(ctx, "a.txt", "a", "")
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(ws.Subpath("sub"), 0o755))

	files, err = ws.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, int64(1), files[0].Size)
	assert.Equal(t, "b.txt", files[1].Name)
}

func TestNotes(t *testing.T) {
	ws := New(t.TempDir(), nil, nil)
	notes := ws.Notes()
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	content, err := notes.Read()
	require.NoError(t, err)
	assert.Empty(t, content)

	require.NoError(t, notes.Append("- likes tea\n\n  prefers metric units  ", at))
	require.NoError(t, notes.Append("   ", at))

	content, err = notes.Read()
	require.NoError(t, err)
	assert.Equal(t, "- [2026-03-02] likes tea\n- [2026-03-02] prefers metric units\n", content)

	require.NoError(t, notes.Clear())
	require.NoError(t, notes.Clear())
	content, err = notes.Read()
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestNotes_LargeFileStillAppends(t *testing.T) {
	ws := New(t.TempDir(), nil, nil)
	big := strings.Repeat("x", NotesWarnSize)
	require.NoError(t, ws.Notes().Append(big, time.Now()))
	require.NoError(t, ws.Notes().Append("one more", time.Now()))

	content, err := ws.Notes().Read()
	require.NoError(t, err)
	assert.Contains(t, content, "one more")
}
