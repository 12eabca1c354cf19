package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads KEY=VALUE pairs from a .env file. Variables already set in
// the environment keep their value.
func LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoadEnvOptional is LoadEnv that ignores a missing file.
func LoadEnvOptional(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return LoadEnv(path)
}

// expandEnv replaces ${VAR} and ${VAR:default} references anywhere in s.
// An unset variable without a default expands to "".
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	var b strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			b.WriteString(s)
			break
		}
		end += start

		b.WriteString(s[:start])
		key, def, hasDefault := strings.Cut(s[start+2:end], ":")
		if val, ok := os.LookupEnv(key); ok && val != "" {
			b.WriteString(val)
		} else if hasDefault {
			b.WriteString(def)
		}
		s = s[end+1:]
	}
	return b.String()
}

// expandHome expands a leading ~/.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
