// Package clirunner's stale-process cleanup: before each run, enumerate
// processes via a platform listing and kill stopped ("T" state) entries
// matching the backend's session-id patterns once they exceed a
// threshold, plus kill any process line matching a resume command for the
// run being resumed.
//
// Grounded on internal/monitor/service.go, which walks
// process.ProcessesWithContext from github.com/shirou/gopsutil/v4 to build
// its process table; this reuses the same library for a narrower purpose.
package clirunner

import (
	"context"
	"regexp"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

const defaultStaleThreshold = 10

// StaleProcessInfo is the subset of process state the cleanup routine needs.
type StaleProcessInfo struct {
	PID int32
	Cmdline string
	Status string
}

// listProcesses enumerates processes via gopsutil (POSIX and Windows alike;
// on Windows the "stopped" state never appears, so CleanupStale's first
// step degrades to a no-op there).
func listProcesses(ctx context.Context) ([]StaleProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StaleProcessInfo, 0, len(procs))
	for _, p := range procs {
		cmdline, _ := p.CmdlineWithContext(ctx)
		statuses, _ := p.StatusWithContext(ctx)
		status := ""
		if len(statuses) > 0 {
			status = statuses[0]
		}
		out = append(out, StaleProcessInfo{PID: p.Pid, Cmdline: cmdline, Status: status})
	}
	return out, nil
}

// isStoppedStatus reports whether status marks a stopped process: either
// gopsutil's process.Stop value or a `ps`-style state code containing "T".
func isStoppedStatus(status string) bool {
	return status == process.Stop || strings.Contains(status, "T")
}

// KillFunc sends a force-kill signal to pid. Exposed so tests can stub it.
type KillFunc func(pid int32) error

// CleanupStaleBefore runs a two-step cleanup:
// 1. kill stopped processes matching sessionIDPattern once their count
// exceeds threshold (0 uses the default of 10);
// 2. if resuming (resumeCmdlinePattern != ""), kill any process whose
// command line matches command.*<resumeArgs-with-session-id-substituted>.
//
// Returns the PIDs that were killed, for logging/testing.
func CleanupStaleBefore(ctx context.Context, sessionIDPattern *regexp.Regexp, resumeCmdlinePattern *regexp.Regexp, threshold int, kill KillFunc) ([]int32, error) {
	if runtime.GOOS == "windows" {
		return nil, nil
	}
	if threshold <= 0 {
		threshold = defaultStaleThreshold
	}

	procs, err := listProcesses(ctx)
	if err != nil {
		return nil, err
	}

	var killed []int32

	if sessionIDPattern != nil {
		stopped := make([]StaleProcessInfo, 0)
		for _, p := range procs {
			if isStoppedStatus(p.Status) && sessionIDPattern.MatchString(p.Cmdline) {
				stopped = append(stopped, p)
			}
		}
		if len(stopped) > threshold {
			for _, p := range stopped {
				if err := kill(p.PID); err == nil {
					killed = append(killed, p.PID)
				}
			}
		}
	}

	if resumeCmdlinePattern != nil {
		for _, p := range procs {
			if resumeCmdlinePattern.MatchString(p.Cmdline) {
				if err := kill(p.PID); err == nil {
					killed = append(killed, p.PID)
				}
			}
		}
	}

	return killed, nil
}

// BuildResumeCmdlinePattern builds the `command.*<resumeArgs>` regexp used
// in step 2, substituting {sessionId} in the resume args template before
// quoting them for regexp use.
func BuildResumeCmdlinePattern(command string, resumeArgs []string, sessionID string) *regexp.Regexp {
	if len(resumeArgs) == 0 {
		return nil
	}
	parts := make([]string, 0, len(resumeArgs))
	for _, a := range resumeArgs {
		parts = append(parts, regexp.QuoteMeta(substituteSessionID(a, sessionID)))
	}
	pattern := regexp.QuoteMeta(command) + ".*" + strings.Join(parts, ".*")
	return regexp.MustCompile(pattern)
}
