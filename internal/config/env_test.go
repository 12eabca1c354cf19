package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nPL_ENV_ONE=value1\nPL_ENV_TWO=\"value with spaces\"\n\nPL_ENV_KEEP=from-file\n"), 0o644))

	t.Setenv("PL_ENV_KEEP", "from-env")
	t.Setenv("PL_ENV_ONE", "")
	t.Setenv("PL_ENV_TWO", "")
	require.NoError(t, os.Unsetenv("PL_ENV_ONE"))
	require.NoError(t, os.Unsetenv("PL_ENV_TWO"))

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "value1", os.Getenv("PL_ENV_ONE"))
	assert.Equal(t, "value with spaces", os.Getenv("PL_ENV_TWO"))
	assert.Equal(t, "from-env", os.Getenv("PL_ENV_KEEP"))
}

func TestLoadEnvOptional(t *testing.T) {
	assert.NoError(t, LoadEnvOptional(filepath.Join(t.TempDir(), "missing.env")))
	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
