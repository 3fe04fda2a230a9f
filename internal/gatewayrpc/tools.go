package gatewayrpc

// ToolSchema is a JSON-schema-shaped tool declaration, restricted to
// string/number/bool/array/object leaves — no anyOf/oneOf/allOf.
type ToolSchema struct {
	Name string `json:"name"`
	Description string `json:"description"`
	Parameters map[string]any `json:"parameters"`
}

// SubagentToolSchemas returns the tool surface exposed to LLM runs by the
// subagent subsystem.
func SubagentToolSchemas() []ToolSchema {
	return []ToolSchema{
		{
			Name: "sessions_spawn",
			Description: "Spawn a subagent to work on a task in the background and report back when done.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task": map[string]any{"type": "string"},
					"label": map[string]any{"type": "string"},
					"planMode": map[string]any{"type": "boolean"},
					"cleanup": map[string]any{"type": "string"},
				},
				"required": []string{"task"},
			},
		},
		{
			Name: "sessions_subagent_remove",
			Description: "Remove a completed subagent record. Cannot remove a subagent that is still running.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"runId": map[string]any{"type": "string"},
				},
				"required": []string{"runId"},
			},
		},
		{
			Name: "sessions_history",
			Description: "Read the transcript of a session by key.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sessionKey": map[string]any{"type": "string"},
				},
				"required": []string{"sessionKey"},
			},
		},
		{
			Name: "sessions_send",
			Description: "Send a message into a session (e.g. a running child subagent).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sessionKey": map[string]any{"type": "string"},
					"message": map[string]any{"type": "string"},
				},
				"required": []string{"sessionKey", "message"},
			},
		},
		{
			Name: "sessions_list",
			Description: "List sessions visible to the current run.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{},
			},
		},
	}
}

// SpawnToolResult is the structured reply to sessions_spawn.
type SpawnToolResult struct {
	RunID string `json:"runId,omitempty"`
	ChildSessionKey string `json:"childSessionKey,omitempty"`
	Error string `json:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// RemoveToolResult is the structured reply to sessions_subagent_remove.
type RemoveToolResult struct {
	Status string `json:"status"`
	Message string `json:"message,omitempty"`
	Error string `json:"error,omitempty"`
}
