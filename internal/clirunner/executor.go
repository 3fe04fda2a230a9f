// Package clirunner implements the process executor (C3): spawning the
// child CLI command directly or inside a sandbox container, streaming and
// capping stdout/stderr, enforcing a hard timeout, and classifying exit
// codes into FailoverReason.
//
// Grounded on internal/ai/run.go's toolTerminalExec
// (exec.CommandContext + limited buffers) and internal/ai/sidecar_process.go
// (long-lived child process lifecycle, stdin/stdout pipes), which rely on
// context cancellation alone since their child is a co-designed sidecar.
// Process-group signalling on timeout is new here: an arbitrary CLI
// backend may fork helpers that context cancellation won't reach, so this
// executor also sends the group a kill signal, following the
// golang.org/x/sys/unix convention for Setpgid-based job control.
package clirunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

const defaultCapturedBytes = 1 << 20 // 1 MiB per stream

// ExecResult is the outcome of one process invocation.
type ExecResult struct {
	Stdout string
	Stderr string
	ExitCode int
	Signal string
	Killed bool
}

// ExecInput bundles the process executor's inputs.
type ExecInput struct {
	Argv []string
	Cwd string
	Env []string
	StdinPayload string
	TimeoutMs int64
	Sandbox *coretypes.SandboxContext
	SandboxMode coretypes.SandboxMode
}

// Executor runs child processes. It is stateless beyond its logger.
type Executor struct {
	log *slog.Logger
}

// New builds an Executor. A nil logger falls back to slog.Default().
func New(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{log: log.With("component", "clirunner")}
}

// Run spawns argv (wrapped in a sandbox exec when applicable), streams
// stdin, captures stdout/stderr up to a cap, and enforces timeoutMs as a
// hard deadline. On timeout the process (and its process group, on POSIX)
// is killed and Killed is set true; the caller is expected to map that into
// a FailoverError{Reason: timeout}.
func (e *Executor) Run(ctx context.Context, in ExecInput) (ExecResult, error) {
	if len(in.Argv) == 0 {
		return ExecResult{}, errors.New("clirunner: empty argv")
	}

	argv := in.Argv
	if shouldSandbox(in.SandboxMode, in.Sandbox) {
		argv = buildSandboxArgv(in.Argv, *in.Sandbox)
	}

	timeout := time.Duration(in.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	if in.Cwd != "" {
		cmd.Dir = in.Cwd
	}
	if len(in.Env) > 0 {
		cmd.Env = in.Env
	}
	setProcessGroup(cmd)
	// On deadline, kill the whole group rather than only argv[0]: a
	// grandchild still holding the stdout/stderr pipes would otherwise keep
	// Wait blocked until it exits on its own.
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return nil
	}

	stdoutBuf := newLimitedBuffer(defaultCapturedBytes)
	stderrBuf := newLimitedBuffer(defaultCapturedBytes)
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	var stdin io.WriteCloser
	if in.StdinPayload != "" {
		var err error
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return ExecResult{}, fmt.Errorf("clirunner: stdin pipe: %w", err)
		}
	}

	if err := cmd.Start(); err != nil {
		return ExecResult{}, fmt.Errorf("clirunner: start: %w", err)
	}

	if stdin != nil {
		go func() {
			defer stdin.Close()
			_, _ = io.Copy(stdin, bytes.NewBufferString(in.StdinPayload))
		}()
	}

	runErr := cmd.Wait()

	result := ExecResult{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	if execCtx.Err() == context.DeadlineExceeded {
		result.Killed = true
		killProcessGroup(cmd)
		result.ExitCode = -1
		result.Signal = "KILL"
		e.log.Warn("clirunner: run timed out", "argv0", argv[0], "timeout_ms", in.TimeoutMs)
		return result, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			if exitErr.ProcessState != nil {
				if ws, ok := exitErr.ProcessState.Sys().(interface{ Signaled() bool }); ok && ws.Signaled() {
					result.Signal = "terminated"
				}
			}
			return result, nil
		}
		return result, fmt.Errorf("clirunner: wait: %w", runErr)
	}

	return result, nil
}

// ClassifyFailoverReason derives a FailoverReason from a non-zero exit's
// captured stderr/stdout text. It is a pure function of the message,
// matching "derivation is a pure function of the error
// message" invariant.
func ClassifyFailoverReason(res ExecResult) coretypes.FailoverReason {
	if res.Killed {
		return coretypes.FailoverTimeout
	}
	text := strings.ToLower(res.Stderr + "\n" + res.Stdout)
	switch {
	case strings.Contains(text, "rate limit") || strings.Contains(text, "429") || strings.Contains(text, "too many requests"):
		return coretypes.FailoverRateLimit
	case strings.Contains(text, "unauthorized") || strings.Contains(text, "401") || strings.Contains(text, "invalid api key") || strings.Contains(text, "authentication"):
		return coretypes.FailoverAuth
	case strings.Contains(text, "quota") || strings.Contains(text, "insufficient_quota") || strings.Contains(text, "billing"):
		return coretypes.FailoverQuota
	case strings.Contains(text, "econnrefused") || strings.Contains(text, "timeout") || strings.Contains(text, "network") || strings.Contains(text, "dns"):
		return coretypes.FailoverNetwork
	case strings.Contains(text, "model_not_found") || strings.Contains(text, "model not found") || strings.Contains(text, "does not exist") || strings.Contains(text, "unavailable"):
		return coretypes.FailoverModelUnavailable
	default:
		return coretypes.FailoverUnknown
	}
}

// NewFailoverError builds the caller-facing error for a non-zero exit,
// consulting ClassifyFailoverReason.
func NewFailoverError(res ExecResult, provider string, model string) *coretypes.FailoverError {
	return &coretypes.FailoverError{
		Reason: ClassifyFailoverReason(res),
		Provider: provider,
		Model: model,
		Status: res.ExitCode,
	}
}
