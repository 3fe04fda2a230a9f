package gatewayrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAgentParamsToMapOmitsEmptyOptionals(t *testing.T) {
	p := AgentParams{SessionKey: "s1", Message: "hi", Deliver: true}
	m := p.ToMap()

	assert.Equal(t, "s1", m["sessionKey"])
	assert.Equal(t, "hi", m["message"])
	assert.Equal(t, true, m["deliver"])
	_, hasChannel := m["channel"]
	assert.False(t, hasChannel)
}

func TestAgentParamsToMapIncludesSetOptionals(t *testing.T) {
	p := AgentParams{
		SessionKey:     "s1",
		Message:        "hi",
		Channel:        "slack",
		AccountID:      "acct-1",
		To:             "u1",
		ThreadID:       "t1",
		IdempotencyKey: "idem-1",
	}
	m := p.ToMap()

	assert.Equal(t, "slack", m["channel"])
	assert.Equal(t, "acct-1", m["accountId"])
	assert.Equal(t, "u1", m["to"])
	assert.Equal(t, "t1", m["threadId"])
	assert.Equal(t, "idem-1", m["idempotencyKey"])
}

func TestParseAgentWaitResultDefaultsToOK(t *testing.T) {
	res := ParseAgentWaitResult(map[string]any{})
	assert.Equal(t, AgentWaitOK, res.Status)
}

func TestParseAgentWaitResultReadsFields(t *testing.T) {
	res := ParseAgentWaitResult(map[string]any{
		"status":    "timeout",
		"startedAt": float64(1000),
		"endedAt":   float64(2000),
		"error":     "boom",
	})
	assert.Equal(t, AgentWaitTimeout, res.Status)
	assert.EqualValues(t, 1000, res.StartedAt)
	assert.EqualValues(t, 2000, res.EndedAt)
	assert.Equal(t, "boom", res.Error)
}

func TestSubagentToolSchemasCoverExpectedTools(t *testing.T) {
	schemas := SubagentToolSchemas()
	names := make(map[string]bool, len(schemas))
	for _, s := range schemas {
		names[s.Name] = true
	}
	for _, want := range []string{"sessions_spawn", "sessions_subagent_remove", "sessions_history", "sessions_send", "sessions_list"} {
		assert.True(t, names[want], "missing tool schema %q", want)
	}
}
