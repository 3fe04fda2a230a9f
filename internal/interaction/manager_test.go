package interaction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

func abcOptions() []coretypes.InteractionOption {
	return []coretypes.InteractionOption{{Label: "A"}, {Label: "B"}, {Label: "C"}}
}

// TestAnswerParsingMultiSelect is scenario S7.
func TestAnswerParsingMultiSelect(t *testing.T) {
	opts := abcOptions()
	assert.Equal(t, "A, C, B", ParseUserAnswer("1,3,2", opts, true))
	assert.Equal(t, "hello", ParseUserAnswer("hello", opts, true))
}

func TestAnswerParsingNoOptions(t *testing.T) {
	assert.Equal(t, "free text", ParseUserAnswer(" free text ", nil, false))
}

func TestAnswerParsingSingleIndex(t *testing.T) {
	opts := abcOptions()
	assert.Equal(t, "B", ParseUserAnswer("2", opts, false))
}

func TestAnswerParsingCaseInsensitiveLabelMatch(t *testing.T) {
	opts := abcOptions()
	assert.Equal(t, "A", ParseUserAnswer("a", opts, false))
}

func TestAnswerParsingFreeformFallback(t *testing.T) {
	opts := abcOptions()
	assert.Equal(t, "not an option", ParseUserAnswer("not an option", opts, false))
}

// TestAnswerParsingIdempotence is testable property 9.
func TestAnswerParsingIdempotence(t *testing.T) {
	opts := abcOptions()
	inputs := []struct {
		text string
		multiSelect bool
	}{
		{"1,3,2", true},
		{"2", false},
		{"a", false},
		{"not an option", false},
	}
	for _, in := range inputs {
		once := ParseUserAnswer(in.text, opts, in.multiSelect)
		twice := ParseUserAnswer(once, opts, in.multiSelect)
		assert.Equal(t, once, twice, "input=%q", in.text)
	}
}

func TestSetReplacesPriorPendingInteraction(t *testing.T) {
	m := New()
	defer m.Shutdown()

	m.Set("sess-1", coretypes.DetectedInteraction{ToolCallID: "t1", Type: coretypes.InteractionAskUserQuestion, Question: "Q1"}, "cli-1", "agent-1", "claude", time.Minute)
	m.Set("sess-1", coretypes.DetectedInteraction{ToolCallID: "t2", Type: coretypes.InteractionAskUserQuestion, Question: "Q2"}, "cli-1", "agent-1", "claude", time.Minute)

	pi, ok := m.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "t2", pi.ToolCallID)
}

func TestGetExpiresAndDeletes(t *testing.T) {
	m := New()
	defer m.Shutdown()
	fakeNow := time.Now()
	m.nowFn = func() time.Time { return fakeNow }

	m.Set("sess-1", coretypes.DetectedInteraction{ToolCallID: "t1"}, "cli-1", "", "", time.Second)

	m.nowFn = func() time.Time { return fakeNow.Add(2 * time.Second) }
	_, ok := m.Get("sess-1")
	assert.False(t, ok)

	m.nowFn = func() time.Time { return fakeNow }
	_, ok = m.Get("sess-1")
	assert.False(t, ok, "expired entry must have been deleted, not merely hidden")
}

func TestClear(t *testing.T) {
	m := New()
	defer m.Shutdown()
	m.Set("sess-1", coretypes.DetectedInteraction{ToolCallID: "t1"}, "cli-1", "", "", time.Minute)
	m.Clear("sess-1")
	_, ok := m.Get("sess-1")
	assert.False(t, ok)
}
