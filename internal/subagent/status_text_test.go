package subagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskLabelPrefersLabelThenTruncatesTask(t *testing.T) {
	assert.Equal(t, "explicit", taskLabel("explicit", "some long task description"))

	long := "this task description is definitely longer than fifty characters total"
	assert.Equal(t, long[:50], taskLabel("", long))

	assert.Equal(t, "short task", taskLabel("", "short task"))
}

func TestStatusLinePlanAnnotations(t *testing.T) {
	approved := true
	denied := false

	assert.Contains(t, statusLine("r1", "task", "running", true, nil), "[PLAN:AWAITING APPROVAL]")
	assert.Contains(t, statusLine("r1", "task", "running", true, &approved), "[PLAN:APPROVED]")
	assert.Contains(t, statusLine("r1", "task", "running", true, &denied), "[PLAN]")
	assert.NotContains(t, statusLine("r1", "task", "running", false, nil), "PLAN")
}

func TestStatusTextForPromptEmptyWhenNoSubagents(t *testing.T) {
	m := newTestManager(t)
	assert.Empty(t, m.StatusTextForPrompt("S"))
}
