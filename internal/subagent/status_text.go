package subagent

import (
	"fmt"
	"strings"
)

// StatusTextForPrompt builds the Markdown block injected into the
// parent's system prompt: a "(used/MAX_RETAINED)" header followed by one
// line per running/completed subagent. Returns "" if the session has none.
func (m *Manager) StatusTextForPrompt(sessionKey string) string {
	running, completed := m.ForSession(sessionKey)
	if len(running) == 0 && len(completed) == 0 {
		return ""
	}

	used := len(running) + len(completed)
	var b strings.Builder
	fmt.Fprintf(&b, "**Subagents (%d/%d):**\n", used, MaxRetained)

	for _, c := range running {
		b.WriteString(statusLine(c.RunID, taskLabel(c.Label, c.Task), "running", c.PlanMode, nil))
		b.WriteByte('\n')
	}
	for _, r := range completed {
		b.WriteString(statusLine(r.RunID, taskLabel(r.Label, r.Task), string(r.Outcome.Status), r.PlanMode, r.PlanApproved))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func taskLabel(label, task string) string {
	if label != "" {
		return label
	}
	if len(task) > 50 {
		return task[:50]
	}
	return task
}

func statusLine(runID, label, status string, planMode bool, planApproved *bool) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	line := fmt.Sprintf("- `%s` %s — %s", short, label, status)
	if planMode {
		switch {
		case planApproved == nil:
			line += " [PLAN:AWAITING APPROVAL]"
		case *planApproved:
			line += " [PLAN:APPROVED]"
		default:
			line += " [PLAN]"
		}
	}
	return line
}
