package builders

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilobster/pilobster/internal/clock"
	"github.com/pilobster/pilobster/internal/config"
	"github.com/pilobster/pilobster/internal/cron"
	"github.com/pilobster/pilobster/internal/llm"
	"github.com/pilobster/pilobster/internal/logger"
	"github.com/pilobster/pilobster/internal/registry"
	"github.com/pilobster/pilobster/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Memory.Database = filepath.Join(dir, "data", "pilobster.db")
	cfg.Workspace.Path = filepath.Join(dir, "workspace")
	return cfg
}

func buildStorage(t *testing.T, cfg *config.Config) *Storage {
	t.Helper()
	st, err := NewStorageBuilder(cfg, logger.Nop()).Build(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStorageBuilder(t *testing.T) {
	cfg := testConfig(t)
	st := buildStorage(t, cfg)

	assert.DirExists(t, cfg.Workspace.Path)
	assert.FileExists(t, cfg.Memory.Database)

	job, err := st.Store.Create(context.Background(), store.NewJob{Schedule: "0 9 * * *", Message: "Morning"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.ID)
}

func TestStorageBuilder_BadWorkspace(t *testing.T) {
	cfg := testConfig(t)
	cfg.Workspace.Path = cfg.Memory.Database

	// The database file exists once opened, so the workspace cannot be a directory there.
	_, err := NewStorageBuilder(cfg, logger.Nop()).Build(context.Background())
	assert.ErrorContains(t, err, "workspace")
}

func TestLLMBuilder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ollama.Model = "qwen2.5:0.5b"

	provider := NewLLMBuilder(cfg, logger.Nop()).Build()
	assert.IsType(t, &llm.OllamaProvider{}, provider)
	assert.Equal(t, "qwen2.5:0.5b", provider.GetDefaultModel())
}

func TestAgentBuilder(t *testing.T) {
	cfg := testConfig(t)
	cfg.SystemPrompt = "Be brief."
	cfg.Memory.MaxHistory = 8
	st := buildStorage(t, cfg)

	a, err := NewAgentBuilder(cfg, logger.Nop(), llm.NewEchoProvider(), st).Build()
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", a.SystemPrompt())
	assert.Equal(t, 8, a.Budget().MaxTurns)

	_, err = NewAgentBuilder(cfg, logger.Nop(), nil, st).Build()
	assert.Error(t, err)
}

func TestCronBuilder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.UTCOffset = "+02:00"
	cfg.Workers.PoolSize = 3
	st := buildStorage(t, cfg)
	reg := registry.New(registry.Config{}, logger.Nop(), nil)

	a, err := NewAgentBuilder(cfg, logger.Nop(), llm.NewEchoProvider(), st).Build()
	require.NoError(t, err)

	c, err := NewCronBuilder(cfg, logger.Nop(), nil).Build(st, a, reg, nil)
	require.NoError(t, err)
	t.Cleanup(c.Pool.Stop)

	assert.Equal(t, 3, c.Pool.WorkerCount())
	assert.Equal(t, cron.StateIdle, c.Scheduler.State())

	source := clock.NewManualSource(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), nil)
	c2, err := NewCronBuilder(cfg, logger.Nop(), nil).Build(st, a, reg, source)
	require.NoError(t, err)
	t.Cleanup(c2.Pool.Stop)

	cfg.Scheduler.UTCOffset = "Mars/Olympus"
	_, err = NewCronBuilder(cfg, logger.Nop(), nil).Build(st, a, reg, nil)
	assert.ErrorContains(t, err, "utc_offset")
}
