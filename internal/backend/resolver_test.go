package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

func testConfig() Config {
	return Config{
		Backends: map[string]coretypes.BackendSpec{
			"claude": {
				Command:     "claude",
				SessionMode: coretypes.SessionIdExisting,
				Output:      coretypes.OutputStreamJSONL,
				Input:       coretypes.InputArg,
				ModelAliases: map[string]string{
					"Sonnet": "claude-sonnet-4",
				},
			},
		},
	}
}

func TestResolveUnknownBackend(t *testing.T) {
	r := NewResolver(testConfig())
	_, _, err := r.Resolve("does-not-exist")
	require.Error(t, err)
	var ub *coretypes.UnknownBackendError
	require.ErrorAs(t, err, &ub)
}

func TestResolveKnownBackend(t *testing.T) {
	r := NewResolver(testConfig())
	id, spec, err := r.Resolve("claude")
	require.NoError(t, err)
	assert.Equal(t, "claude", id)
	assert.Equal(t, "claude", spec.Command)
}

func TestNormalizeModelExactAndCaseInsensitiveFallback(t *testing.T) {
	_, spec, err := NewResolver(testConfig()).Resolve("claude")
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4", NormalizeModel(spec, "Sonnet"))
	assert.Equal(t, "claude-sonnet-4", NormalizeModel(spec, "sonnet"))
	assert.Equal(t, "claude-sonnet-4", NormalizeModel(spec, "SONNET"))
	assert.Equal(t, "opus", NormalizeModel(spec, "opus"))
}

func TestConfigValidateRejectsBadBackend(t *testing.T) {
	cfg := Config{Backends: map[string]coretypes.BackendSpec{
		"bad": {Command: "", SessionMode: coretypes.SessionIdNone, Output: coretypes.OutputText, Input: coretypes.InputArg},
	}}
	require.Error(t, cfg.Validate())
}
