package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, ProviderOllama, cfg.EmbedProvider)
	assert.Equal(t, 384, cfg.EmbedDimension)
	assert.Equal(t, 5000, cfg.ContextTokenBudget)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minne.yaml")
	data := []byte("surrealdb_namespace: fromfile\ncontext_token_budget: 2000\nlog_level: debug\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	t.Setenv("MINNE_CONFIG", path)
	t.Setenv("SURREALDB_NAMESPACE", "fromenv")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "fromenv", cfg.SurrealDBNamespace, "env should win over file")
	assert.Equal(t, 2000, cfg.ContextTokenBudget, "file should win over default")
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadRejectsBadBudget(t *testing.T) {
	t.Setenv("MINNE_CONTEXT_TOKEN_BUDGET", "-5")

	_, err := Load()
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"Warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
