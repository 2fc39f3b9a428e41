package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsHonorsAdvisorHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ADVISOR_HOME", dir)

	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, dir, p.Base)
	assert.Equal(t, filepath.Join(dir, "config.yaml"), p.Config)
	assert.Equal(t, filepath.Join(dir, ".env"), p.DotEnv)
	assert.Equal(t, filepath.Join(dir, "data", "advisor.db"), p.Database)

	require.NoError(t, p.EnsureDirs())
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestResolvePathsDefaultBase(t *testing.T) {
	t.Setenv("ADVISOR_HOME", "")
	p, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, defaultBaseDir, filepath.Base(p.Base))
}

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"section", "gateway", []string{"gateway"}, false},
		{"nested", "agent.instanceUrl", []string{"agent", "instanceUrl"}, false},
		{"deep", "gateway.auth.mode", []string{"gateway", "auth", "mode"}, false},
		{"empty", "", nil, true},
		{"empty segment", "agent..mode", nil, true},
		{"trailing dot", "agent.", nil, true},
		{"unknown section", "channels.irc", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueAtPath(t *testing.T) {
	root := map[string]any{
		"agent": map[string]any{"mode": "mock"},
		"store": "flat",
	}

	v, ok := GetValueAtPath(root, []string{"agent", "mode"})
	require.True(t, ok)
	assert.Equal(t, "mock", v)

	_, ok = GetValueAtPath(root, []string{"store", "path"})
	assert.False(t, ok, "cannot descend into a scalar")

	SetValueAtPath(root, []string{"gateway", "auth", "token"}, "abc")
	v, ok = GetValueAtPath(root, []string{"gateway", "auth", "token"})
	require.True(t, ok)
	assert.Equal(t, "abc", v)

	SetValueAtPath(root, []string{"store", "path"}, "/tmp/a.db")
	assert.Equal(t, map[string]any{"path": "/tmp/a.db"}, root["store"])

	assert.True(t, UnsetValueAtPath(root, []string{"agent", "mode"}))
	assert.False(t, UnsetValueAtPath(root, []string{"agent", "mode"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "key"}))
}
