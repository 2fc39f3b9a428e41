package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/advisor/internal/version"
)

// runCLI executes the root command against an isolated ADVISOR_HOME.
func runCLI(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ADVISOR_HOME", home)
	t.Setenv("ADVISOR_GATEWAY_TOKEN", "")
	cfgFile, envFile, logLevel = "", "", ""

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "advisor "), out)

	out, err = runCLI(t, t.TempDir(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)

	out, err = runCLI(t, t.TempDir(), "version", "--json")
	require.NoError(t, err)
	var b version.Build
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, version.Current(), b)

	_, err = runCLI(t, t.TempDir(), "version", "--short", "--json")
	assert.Error(t, err)
}

func TestConfigCmd_SetGetUnset(t *testing.T) {
	home := t.TempDir()

	out, err := runCLI(t, home, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)

	_, err = runCLI(t, home, "config", "set", "gateway.port", "4000")
	require.NoError(t, err)
	_, err = runCLI(t, home, "config", "set", "gateway.controlUi.allowedOrigins", "[http://localhost:5173]")
	require.NoError(t, err)

	out, err = runCLI(t, home, "config", "get", "gateway.port")
	require.NoError(t, err)
	assert.Equal(t, "4000\n", out)

	out, err = runCLI(t, home, "config", "get", "gateway.controlUi.allowedOrigins")
	require.NoError(t, err)
	assert.Equal(t, "- http://localhost:5173\n", out)

	_, err = runCLI(t, home, "config", "unset", "gateway.port")
	require.NoError(t, err)
	_, err = runCLI(t, home, "config", "get", "gateway.port")
	assert.ErrorContains(t, err, "not found")

	_, err = runCLI(t, home, "config", "get", "models.default")
	assert.Error(t, err)
}

func TestConfigCmd_SetWarnsOnInvalid(t *testing.T) {
	out, err := runCLI(t, t.TempDir(), "config", "set", "agent.mode", "psychic")
	require.NoError(t, err)
	assert.Contains(t, out, "warning: agent.mode")
}

func TestConfigCmd_ShowRedactsSecrets(t *testing.T) {
	home := t.TempDir()
	_, err := runCLI(t, home, "config", "set", "gateway.auth.token", "s3cret")
	require.NoError(t, err)

	out, err := runCLI(t, home, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 3001")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "s3cret")
}

func TestPersonasCmd(t *testing.T) {
	home := t.TempDir()

	out, err := runCLI(t, home, "personas", "--space", "b2b")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 4)

	out, err = runCLI(t, home, "personas")
	require.NoError(t, err)
	assert.Contains(t, out, "mike")

	_, err = runCLI(t, home, "personas", "--space", "mall")
	assert.ErrorContains(t, err, "unknown space")
}

func TestSummariesCmd(t *testing.T) {
	home := t.TempDir()

	out, err := runCLI(t, home, "summaries", "list")
	require.NoError(t, err)
	assert.Equal(t, "No summaries.\n", out)

	out, err = runCLI(t, home, "summaries", "search", "paint")
	require.NoError(t, err)
	assert.Equal(t, "No summaries.\n", out)

	_, err = runCLI(t, home, "config", "set", "store.driver", "memory")
	require.NoError(t, err)
	_, err = runCLI(t, home, "summaries", "list")
	assert.ErrorContains(t, err, "memory")
}

func TestStatusCmd(t *testing.T) {
	home := t.TempDir()

	out, err := runCLI(t, home, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not found (using defaults)")
	assert.Contains(t, out, "Gateway: port=3001 bind=loopback auth=none")
	assert.Contains(t, out, "Agent:   mock")
	assert.Contains(t, out, "Store:   sqlite "+filepath.Join(home, "data", "advisor.db"))
	assert.NotContains(t, out, "Validation issues")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"False", false},
		{"3001", 3001},
		{"0.5", 0.5},
		{"loopback", "loopback"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"[a, b]", []any{"a", "b"}},
		{"key: value", "key: value"},
		{"", ""},
		{"[unterminated", "[unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestParseSpace(t *testing.T) {
	for _, in := range []string{"consumer", "B2B"} {
		_, err := parseSpace(in)
		assert.NoError(t, err, in)
	}
	_, err := parseSpace("")
	assert.Error(t, err)
}
