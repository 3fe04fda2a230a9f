package subagent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

type fakeCaller struct {
	mu    sync.Mutex
	calls []string
	agent map[string]any
}

func (f *fakeCaller) CallGateway(ctx context.Context, method string, params map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if method == "agent" {
		f.agent = params
	}
	if method == "agent.wait" {
		return map[string]any{"status": "ok"}, nil
	}
	return map[string]any{}, nil
}

func TestExtractSummaryPrefersMarker(t *testing.T) {
	assert.Equal(t, "did the thing", extractSummary("blah blah\nSUMMARY: did the thing"))
}

func TestExtractSummaryFallsBackToTrailingChars(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'x'
	}
	got := extractSummary(string(long))
	assert.Len(t, got, 200)
}

func TestAnnounceFlowDirectDeliveryWhenNoQueueMode(t *testing.T) {
	caller := &fakeCaller{}
	deps := AnnounceDeps{
		Caller: caller,
		QueueModeFor: func(string) coretypes.QueueMode { return coretypes.QueueOff },
	}
	result := coretypes.SubagentResult{
		SubagentContext: coretypes.SubagentContext{
			RunID:               "r1",
			RequesterSessionKey: "parent",
			ChildSessionKey:     "child",
			Task:                "do the thing",
			StartedAt:           time.Now().Add(-time.Minute),
		},
		EndedAt: time.Now(),
		Outcome: coretypes.SubagentOutcome{Status: coretypes.OutcomeOK},
	}

	RunSubagentAnnounceFlow(context.Background(), deps, result, 5000)

	caller.mu.Lock()
	defer caller.mu.Unlock()
	assert.Contains(t, caller.calls, "agent")
	require.NotNil(t, caller.agent)
	assert.Equal(t, "parent", caller.agent["sessionKey"])
}

func TestAnnounceFlowQueuesWhenParentActive(t *testing.T) {
	caller := &fakeCaller{}
	var queued []string
	deps := AnnounceDeps{
		Caller:          caller,
		QueueModeFor:    func(string) coretypes.QueueMode { return coretypes.QueueFollowup },
		ParentRunActive: func(string) bool { return true },
		EnqueueAnnounce: func(sessionKey, message string) { queued = append(queued, message) },
	}
	result := coretypes.SubagentResult{
		SubagentContext: coretypes.SubagentContext{RunID: "r1", RequesterSessionKey: "parent", ChildSessionKey: "child"},
		EndedAt:         time.Now(),
		Outcome:         coretypes.SubagentOutcome{Status: coretypes.OutcomeOK},
	}

	RunSubagentAnnounceFlow(context.Background(), deps, result, 5000)

	assert.Len(t, queued, 1)
	caller.mu.Lock()
	defer caller.mu.Unlock()
	assert.NotContains(t, caller.calls, "agent")
}

func TestAnnounceFlowSteersWhenModeIsSteer(t *testing.T) {
	caller := &fakeCaller{}
	steered := false
	deps := AnnounceDeps{
		Caller:       caller,
		QueueModeFor: func(string) coretypes.QueueMode { return coretypes.QueueSteer },
		Steer: func(ctx context.Context, sessionKey, message string) bool {
			steered = true
			return true
		},
	}
	result := coretypes.SubagentResult{
		SubagentContext: coretypes.SubagentContext{RunID: "r1", RequesterSessionKey: "parent"},
		EndedAt:         time.Now(),
		Outcome:         coretypes.SubagentOutcome{Status: coretypes.OutcomeOK},
	}

	RunSubagentAnnounceFlow(context.Background(), deps, result, 5000)

	assert.True(t, steered)
	caller.mu.Lock()
	defer caller.mu.Unlock()
	assert.NotContains(t, caller.calls, "agent")
}

func TestAnnounceFlowDeletesChildWhenCleanupDeleteAndNotPlanMode(t *testing.T) {
	caller := &fakeCaller{}
	deps := AnnounceDeps{Caller: caller, QueueModeFor: func(string) coretypes.QueueMode { return coretypes.QueueOff }}
	result := coretypes.SubagentResult{
		SubagentContext: coretypes.SubagentContext{RunID: "r1", RequesterSessionKey: "parent", ChildSessionKey: "child", Cleanup: "delete"},
		EndedAt:         time.Now(),
		Outcome:         coretypes.SubagentOutcome{Status: coretypes.OutcomeOK},
	}

	RunSubagentAnnounceFlow(context.Background(), deps, result, 5000)

	caller.mu.Lock()
	defer caller.mu.Unlock()
	assert.Contains(t, caller.calls, "sessions.delete")
}

func TestAnnounceFlowNeverDeletesChildInPlanMode(t *testing.T) {
	caller := &fakeCaller{}
	deps := AnnounceDeps{Caller: caller, QueueModeFor: func(string) coretypes.QueueMode { return coretypes.QueueOff }}
	result := coretypes.SubagentResult{
		SubagentContext: coretypes.SubagentContext{RunID: "r1", RequesterSessionKey: "parent", ChildSessionKey: "child", Cleanup: "delete", PlanMode: true},
		EndedAt:         time.Now(),
		Outcome:         coretypes.SubagentOutcome{Status: coretypes.OutcomeOK},
	}

	RunSubagentAnnounceFlow(context.Background(), deps, result, 5000)

	caller.mu.Lock()
	defer caller.mu.Unlock()
	assert.NotContains(t, caller.calls, "sessions.delete")
}
