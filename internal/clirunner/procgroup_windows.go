//go:build windows

package clirunner

import "os/exec"

// setProcessGroup is a no-op on Windows; process-tree cleanup relies on
// context cancellation only, matching stale.go's Windows-degrades-to-a-no-op
// behavior for the same reason.
func setProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup falls back to killing just the direct child process.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
