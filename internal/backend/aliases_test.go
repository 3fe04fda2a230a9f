package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

func TestLoadAliasesYAMLMergesIntoExistingBackend(t *testing.T) {
	cfg := Config{Backends: map[string]coretypes.BackendSpec{
		"claude": {Command: "claude"},
	}}

	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backends:
  claude:
    model_aliases:
      fast: claude-haiku
      smart: claude-opus
`), 0o600))

	require.NoError(t, LoadAliasesYAML(&cfg, path))

	spec := cfg.Backends["claude"]
	assert.Equal(t, "claude-haiku", spec.ModelAliases["fast"])
	assert.Equal(t, "claude-opus", spec.ModelAliases["smart"])
}

func TestLoadAliasesYAMLIgnoresUnknownBackend(t *testing.T) {
	cfg := Config{Backends: map[string]coretypes.BackendSpec{}}

	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backends:
  ghost:
    model_aliases: {fast: x}
`), 0o600))

	require.NoError(t, LoadAliasesYAML(&cfg, path))
	assert.Empty(t, cfg.Backends)
}

func TestLoadAliasesYAMLMissingFileIsNotError(t *testing.T) {
	cfg := Config{Backends: map[string]coretypes.BackendSpec{}}
	require.NoError(t, LoadAliasesYAML(&cfg, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestApplyDefaultsFillsUnsetEnums(t *testing.T) {
	cfg := Config{Backends: map[string]coretypes.BackendSpec{
		"claude": {Command: "claude", Input: coretypes.InputArg, Output: coretypes.OutputText},
	}}
	cfg.ApplyDefaults()

	spec := cfg.Backends["claude"]
	assert.Equal(t, coretypes.SessionIdNone, spec.SessionMode)
	assert.Equal(t, coretypes.SystemPromptFirst, spec.SystemPromptWhen)
}
