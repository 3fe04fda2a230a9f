package cliparse

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

// parseStreamJSONL parses the "stream-jsonl" output mode: each line is
// a JSON object tagged by "type" in {assistant, user, result}. Assistant
// lines contribute text and tool_use events, user lines contribute
// tool_result events, and the terminal result line supplies a text
// fallback and final usage merge.
func parseStreamJSONL(stdout string, fields []string) (*coretypes.ParsedOutput, bool) {
	lines := splitNonEmptyLines(stdout)
	if len(lines) == 0 {
		return nil, false
	}

	out := &coretypes.ParsedOutput{}
	var textParts []string
	var resultText string
	sawValid := false

	for _, line := range lines {
		if !gjson.Valid(line) {
			continue
		}
		sawValid = true
		root := gjson.Parse(line)

		if out.SessionID == "" {
			if sid := root.Get("session_id"); sid.Exists() {
				out.SessionID = strings.TrimSpace(sid.String())
			}
		}
		if out.SessionID == "" {
			out.SessionID = extractSessionID(root, fields)
		}

		switch root.Get("type").String() {
		case "assistant":
			msg := root.Get("message")
			out.Usage.Add(usageFromResult(msg.Get("usage")))
			msg.Get("content").ForEach(func(_, block gjson.Result) bool {
				switch block.Get("type").String() {
				case "text":
					if t := block.Get("text"); t.Exists() {
						textParts = append(textParts, t.String())
					}
				case "tool_use":
					out.ToolUses = append(out.ToolUses, coretypes.CliToolUseEvent{
						ID: block.Get("id").String(),
						Name: block.Get("name").String(),
						Input: toolUseInput(block.Get("input")),
					})
				}
				return true
			})
		case "user":
			msg := root.Get("message")
			msg.Get("content").ForEach(func(_, block gjson.Result) bool {
				if block.Get("type").String() != "tool_result" {
					return true
				}
				out.ToolResults = append(out.ToolResults, coretypes.CliToolResultEvent{
					ToolUseID: block.Get("tool_use_id").String(),
					Content: flattenToolResultContent(block.Get("content")),
					IsError: block.Get("is_error").Bool(),
				})
				return true
			})
		case "result":
			out.Usage.Add(usageFromResult(root.Get("usage")))
			if r := root.Get("result"); r.Exists() {
				resultText = r.String()
			}
		}
	}

	if !sawValid {
		return nil, false
	}

	out.Text = strings.Join(textParts, "")
	if out.Text == "" {
		out.Text = resultText
	}
	out.PendingInteraction = detectPendingInteraction(out.ToolUses, out.ToolResults)
	return out, true
}

// flattenToolResultContent handles both the plain-string and array forms of
// tool_result content, concatenating each array element's "text" field in
// order.
func flattenToolResultContent(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var sb strings.Builder
		content.ForEach(func(_, el gjson.Result) bool {
			if el.Type == gjson.String {
				sb.WriteString(el.String())
				return true
			}
			if t := el.Get("text"); t.Exists() {
				sb.WriteString(t.String())
			}
			return true
		})
		return sb.String()
	}
	return ""
}

func toolUseInput(v gjson.Result) map[string]any {
	if !v.Exists() {
		return map[string]any{}
	}
	m, ok := v.Value().(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// detectPendingInteraction finds the highest-indexed tool_use whose id has
// no matching tool_result, and classifies it into a DetectedInteraction.
func detectPendingInteraction(uses []coretypes.CliToolUseEvent, results []coretypes.CliToolResultEvent) *coretypes.DetectedInteraction {
	answered := make(map[string]bool, len(results))
	for _, r := range results {
		answered[r.ToolUseID] = true
	}

	for i := len(uses) - 1; i >= 0; i-- {
		u := uses[i]
		if answered[u.ID] {
			continue
		}
		switch u.Name {
		case "AskUserQuestion":
			return detectAskUserQuestion(u)
		case "ExitPlanMode":
			return &coretypes.DetectedInteraction{
				Type: coretypes.InteractionPlanApproval,
				ToolCallID: u.ID,
				Question: "AI has finished planning, approve execution?",
			}
		default:
			return nil
		}
	}
	return nil
}

func detectAskUserQuestion(u coretypes.CliToolUseEvent) *coretypes.DetectedInteraction {
	questionsRaw, ok := u.Input["questions"]
	if !ok {
		return nil
	}
	questions, ok := questionsRaw.([]any)
	if !ok || len(questions) == 0 {
		return nil
	}
	q0, ok := questions[0].(map[string]any)
	if !ok {
		return nil
	}
	question, _ := q0["question"].(string)
	multiSelect, _ := q0["multiSelect"].(bool)

	var options []coretypes.InteractionOption
	if rawOpts, ok := q0["options"].([]any); ok {
		for _, ro := range rawOpts {
			om, ok := ro.(map[string]any)
			if !ok {
				continue
			}
			label, _ := om["label"].(string)
			desc, _ := om["description"].(string)
			options = append(options, coretypes.InteractionOption{Label: label, Description: desc})
		}
	}

	return &coretypes.DetectedInteraction{
		Type: coretypes.InteractionAskUserQuestion,
		ToolCallID: u.ID,
		Question: question,
		Options: options,
		MultiSelect: multiSelect,
	}
}
