// Package cliparse implements the output parser (C4): turning raw CLI
// stdout into a normalized ParsedOutput for the four supported output
// modes, and detecting pending AskUserQuestion / Plan-approval
// interactions in the stream-jsonl form.
//
// Grounded on internal/ai/run.go's stream handling (assistant
// message content walking, tool_use/tool_result accumulation) and its use
// of github.com/tidwall/gjson for tolerant reads of loosely-typed JSON
// payloads instead of hand-rolled map[string]any assertions.
package cliparse

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

var defaultSessionIDFields = []string{"session_id", "sessionId", "conversation_id", "conversationId"}

// Parse dispatches to the mode-specific parser. It never returns a nil
// *ParsedOutput on success; on malformed input it returns (nil, false) so
// the caller can fall back to treating stdout as raw text.
func Parse(mode coretypes.OutputMode, stdout string, sessionIDFields []string) (*coretypes.ParsedOutput, bool) {
	fields := sessionIDFields
	if len(fields) == 0 {
		fields = defaultSessionIDFields
	}
	switch mode {
	case coretypes.OutputText:
		return &coretypes.ParsedOutput{Text: strings.TrimSpace(stdout)}, true
	case coretypes.OutputJSON:
		return parseJSON(stdout, fields)
	case coretypes.OutputJSONL:
		return parseJSONL(stdout, fields)
	case coretypes.OutputStreamJSONL:
		return parseStreamJSONL(stdout, fields)
	default:
		return nil, false
	}
}

func extractSessionID(root gjson.Result, fields []string) string {
	for _, f := range fields {
		if v := root.Get(f); v.Exists() {
			s := strings.TrimSpace(v.String())
			if s != "" {
				return s
			}
		}
	}
	return ""
}

func extractUsage(root gjson.Result) coretypes.Usage {
	u := root.Get("usage")
	if !u.Exists() {
		return coretypes.Usage{}
	}
	return usageFromResult(u)
}

func usageFromResult(u gjson.Result) coretypes.Usage {
	get := func(keys...string) int64 {
		for _, k := range keys {
			if v := u.Get(k); v.Exists() {
				return v.Int()
			}
		}
		return 0
	}
	return coretypes.Usage{
		InputTokens: get("input_tokens", "inputTokens"),
		OutputTokens: get("output_tokens", "outputTokens"),
		CacheReadInputTokens: get("cache_read_input_tokens", "cacheReadInputTokens"),
		CacheWriteInputTokens: get("cache_write_input_tokens", "cacheWriteInputTokens", "cache_creation_input_tokens"),
		TotalTokens: get("total_tokens", "totalTokens"),
	}
}

func parseJSON(stdout string, fields []string) (*coretypes.ParsedOutput, bool) {
	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" || !gjson.Valid(trimmed) {
		return nil, false
	}
	root := gjson.Parse(trimmed)

	var textParts []string
	for _, key := range []string{"message", "content", "result"} {
		if v := root.Get(key); v.Exists() && v.Type == gjson.String {
			if s := strings.TrimSpace(v.String()); s != "" {
				textParts = append(textParts, s)
			}
		}
	}

	return &coretypes.ParsedOutput{
		Text: strings.Join(textParts, ""),
		SessionID: extractSessionID(root, fields),
		Usage: extractUsage(root),
	}, true
}

func parseJSONL(stdout string, fields []string) (*coretypes.ParsedOutput, bool) {
	lines := splitNonEmptyLines(stdout)
	if len(lines) == 0 {
		return nil, false
	}

	out := &coretypes.ParsedOutput{}
	var textParts []string
	sawValid := false
	for _, line := range lines {
		if !gjson.Valid(line) {
			continue
		}
		sawValid = true
		root := gjson.Parse(line)
		out.Usage.Add(extractUsage(root))
		if out.SessionID == "" {
			out.SessionID = extractSessionID(root, fields)
		}
		for _, key := range []string{"message", "content", "result", "text"} {
			if v := root.Get(key); v.Exists() && v.Type == gjson.String {
				if s := strings.TrimSpace(v.String()); s != "" {
					textParts = append(textParts, s)
				}
			}
		}
	}
	if !sawValid {
		return nil, false
	}
	out.Text = strings.Join(textParts, "")
	return out, true
}

func splitNonEmptyLines(s string) []string {
	raw := strings.Split(s, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
