package clirunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	e := New(nil)
	res, err := e.Run(context.Background(), ExecInput{
		Argv:      []string{"/bin/sh", "-c", "echo hi; exit 0"},
		TimeoutMs: 2000,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, "hi")
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Killed)
}

func TestRunNonZeroExit(t *testing.T) {
	e := New(nil)
	res, err := e.Run(context.Background(), ExecInput{
		Argv:      []string{"/bin/sh", "-c", "echo bad-auth 1>&2; exit 3"},
		TimeoutMs: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Killed)
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	e := New(nil)
	start := time.Now()
	res, err := e.Run(context.Background(), ExecInput{
		Argv:      []string{"/bin/sh", "-c", "sleep 5"},
		TimeoutMs: 100,
	})
	require.NoError(t, err)
	assert.True(t, res.Killed)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestClassifyFailoverReason(t *testing.T) {
	cases := []struct {
		stderr string
		want   coretypes.FailoverReason
	}{
		{"429 Too Many Requests", coretypes.FailoverRateLimit},
		{"401 Unauthorized: invalid api key", coretypes.FailoverAuth},
		{"insufficient_quota", coretypes.FailoverQuota},
		{"ECONNREFUSED", coretypes.FailoverNetwork},
		{"model not found: gpt-nope", coretypes.FailoverModelUnavailable},
		{"something else entirely", coretypes.FailoverUnknown},
	}
	for _, c := range cases {
		got := ClassifyFailoverReason(ExecResult{Stderr: c.stderr})
		assert.Equal(t, c.want, got, c.stderr)
	}
	assert.Equal(t, coretypes.FailoverTimeout, ClassifyFailoverReason(ExecResult{Killed: true}))
}
