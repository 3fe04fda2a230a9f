package clirunner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStoppedStatus(t *testing.T) {
	assert.True(t, isStoppedStatus("T"))
	assert.True(t, isStoppedStatus("stop (T)"))
	assert.False(t, isStoppedStatus("R"))
	assert.False(t, isStoppedStatus("S"))
}

func TestBuildResumeCmdlinePattern(t *testing.T) {
	pat := BuildResumeCmdlinePattern("claude", []string{"--resume", "{sessionId}"}, "abc-123")
	require.NotNil(t, pat)
	assert.True(t, pat.MatchString("claude --resume abc-123"))
	assert.False(t, pat.MatchString("claude --resume xyz-999"))
}

func TestBuildResumeCmdlinePatternEmptyArgs(t *testing.T) {
	assert.Nil(t, BuildResumeCmdlinePattern("claude", nil, "abc"))
}

func TestCleanupStaleBeforeNoOpWithoutPatterns(t *testing.T) {
	killed, err := CleanupStaleBefore(context.Background(), nil, nil, 0, func(pid int32) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, killed)
}
