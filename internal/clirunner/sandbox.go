package clirunner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

// shellSingleQuote single-quotes s for safe embedding in a POSIX `sh -lc`
// command line: every `'` is replaced with `'\''`. Untrusted prompt
// contents must never be interpretable by the shell.
func shellSingleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// buildSandboxArgv wraps argv as `docker exec -i [-w <workdir>] [-e K=V]...
// <container> sh -lc '<cmd>'`, single-quoting every token of the inner
// command so the payload is opaque to the shell.
func buildSandboxArgv(argv []string, sc coretypes.SandboxContext) []string {
	out := []string{"docker", "exec", "-i"}
	if strings.TrimSpace(sc.Workdir) != "" {
		out = append(out, "-w", sc.Workdir)
	}
	keys := make([]string, 0, len(sc.Env))
	for k := range sc.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, "-e", fmt.Sprintf("%s=%s", k, sc.Env[k]))
	}
	out = append(out, sc.Container, "sh", "-lc", buildInnerShellCommand(argv))
	return out
}

// buildInnerShellCommand single-quotes every argv token and joins them with
// spaces, producing the literal string passed to `sh -lc`.
func buildInnerShellCommand(argv []string) string {
	quoted := make([]string, 0, len(argv))
	for _, a := range argv {
		quoted = append(quoted, shellSingleQuote(a))
	}
	return strings.Join(quoted, " ")
}

// shouldSandbox reports whether spec.SandboxMode and the run's sandbox
// context together require wrapping the command.
func shouldSandbox(mode coretypes.SandboxMode, sc *coretypes.SandboxContext) bool {
	if sc == nil || !sc.Enabled {
		return false
	}
	switch mode {
	case coretypes.SandboxInherit, coretypes.SandboxAlways:
		return true
	default:
		return false
	}
}

// mergeEnv builds the union of a default PATH, caller env, container env,
// and backend overrides, in that precedence order (later wins).
func mergeEnv(callerEnv []string, containerEnv map[string]string, backendOverrides map[string]string) []string {
	merged := map[string]string{"PATH": "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"}
	for _, kv := range callerEnv {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}
	for k, v := range containerEnv {
		merged[k] = v
	}
	for k, v := range backendOverrides {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}
