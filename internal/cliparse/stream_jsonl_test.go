package cliparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

// TestStreamParsingAskUserQuestion is scenario S3.
func TestStreamParsingAskUserQuestion(t *testing.T) {
	line := `{"type":"assistant","session_id":"sid","message":{"content":[{"type":"tool_use","id":"t1","name":"AskUserQuestion","input":{"questions":[{"question":"Proceed?","options":[{"label":"Yes"},{"label":"No"}],"multiSelect":false}]}}]}}`

	out, ok := Parse(coretypes.OutputStreamJSONL, line, nil)
	require.True(t, ok)

	assert.Equal(t, "", out.Text)
	require.Len(t, out.ToolUses, 1)
	assert.Equal(t, "t1", out.ToolUses[0].ID)
	assert.Equal(t, "AskUserQuestion", out.ToolUses[0].Name)
	assert.Empty(t, out.ToolResults)
	assert.Equal(t, "sid", out.SessionID)

	require.NotNil(t, out.PendingInteraction)
	assert.Equal(t, coretypes.InteractionAskUserQuestion, out.PendingInteraction.Type)
	assert.Equal(t, "t1", out.PendingInteraction.ToolCallID)
	assert.Equal(t, "Proceed?", out.PendingInteraction.Question)
	assert.Equal(t, []coretypes.InteractionOption{{Label: "Yes"}, {Label: "No"}}, out.PendingInteraction.Options)
	assert.False(t, out.PendingInteraction.MultiSelect)
}

// TestToolResultArrayFlattening is scenario S4.
func TestToolResultArrayFlattening(t *testing.T) {
	lines := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"toolu_1","name":"read_file","input":{}}]}}
{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_1","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}]}}`

	out, ok := Parse(coretypes.OutputStreamJSONL, lines, nil)
	require.True(t, ok)
	require.Len(t, out.ToolResults, 1)
	assert.Equal(t, "toolu_1", out.ToolResults[0].ToolUseID)
	assert.Equal(t, "ab", out.ToolResults[0].Content)
	assert.False(t, out.ToolResults[0].IsError)
	assert.Nil(t, out.PendingInteraction)
}

// TestRoundTripStreamJSONL is testable property 8.
func TestRoundTripStreamJSONL(t *testing.T) {
	lines := `{"type":"assistant","session_id":"sid-99","message":{"content":[{"type":"text","text":"Working on it. "},{"type":"tool_use","id":"tu1","name":"run_cmd","input":{"cmd":"ls"}}],"usage":{"input_tokens":10,"output_tokens":5}}}
{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu1","content":"file1\nfile2"}]}}
{"type":"result","usage":{"total_tokens":15},"result":"Working on it. "}`

	out, ok := Parse(coretypes.OutputStreamJSONL, lines, nil)
	require.True(t, ok)

	assert.Equal(t, "Working on it. ", out.Text)
	require.Len(t, out.ToolUses, 1)
	assert.Equal(t, "tu1", out.ToolUses[0].ID)
	assert.Equal(t, "run_cmd", out.ToolUses[0].Name)
	require.Len(t, out.ToolResults, 1)
	assert.Equal(t, "file1\nfile2", out.ToolResults[0].Content)
	assert.Equal(t, int64(10), out.Usage.InputTokens)
	assert.Equal(t, int64(5), out.Usage.OutputTokens)
	assert.Equal(t, int64(15), out.Usage.TotalTokens)
	assert.Equal(t, "sid-99", out.SessionID)
	assert.Nil(t, out.PendingInteraction)
}

func TestResultTextFallbackWhenAssistantTextEmpty(t *testing.T) {
	lines := `{"type":"assistant","message":{"content":[]}}
{"type":"result","result":"final text only from result"}`
	out, ok := Parse(coretypes.OutputStreamJSONL, lines, nil)
	require.True(t, ok)
	assert.Equal(t, "final text only from result", out.Text)
}

func TestExitPlanModeDetection(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"p1","name":"ExitPlanMode","input":{}}]}}`
	out, ok := Parse(coretypes.OutputStreamJSONL, line, nil)
	require.True(t, ok)
	require.NotNil(t, out.PendingInteraction)
	assert.Equal(t, coretypes.InteractionPlanApproval, out.PendingInteraction.Type)
	assert.Equal(t, "p1", out.PendingInteraction.ToolCallID)
}

func TestPendingInteractionOnlyLatestUnanswered(t *testing.T) {
	lines := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"AskUserQuestion","input":{"questions":[{"question":"Q1","options":[{"label":"Y"}]}]}}]}}
{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1","content":"answered"}]}}`
	out, ok := Parse(coretypes.OutputStreamJSONL, lines, nil)
	require.True(t, ok)
	assert.Nil(t, out.PendingInteraction)
}

func TestParseInvalidReturnsFalse(t *testing.T) {
	_, ok := Parse(coretypes.OutputStreamJSONL, "not json at all", nil)
	assert.False(t, ok)
}
