package clirunner

import (
	"encoding/json"
	"strings"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

// BuildArgvOptions carries the per-run decisions the builder needs beyond
// the immutable BackendSpec.
type BuildArgvOptions struct {
	IsFirstCallInSession bool
	SystemPrompt string
	ModelID string
}

// BuildArgv assembles the child process argv from a BackendSpec and
// RunRequest: model, system prompt (first-call only when configured that
// way), session flags, image flags, and either the prompt as an argument
// or via stdin (in which case the argv omits the prompt entirely).
func BuildArgv(spec coretypes.BackendSpec, req coretypes.RunRequest, opts BuildArgvOptions) []string {
	resuming := req.CliSessionID != ""
	argv := make([]string, 0, 16)
	argv = append(argv, spec.Command)

	base := spec.Args
	if resuming && len(spec.ResumeArgs) > 0 {
		base = spec.ResumeArgs
	}
	argv = append(argv, base...)

	if spec.ModelArg != "" && opts.ModelID != "" {
		argv = append(argv, spec.ModelArg, opts.ModelID)
	}

	if spec.SystemPromptArg != "" && opts.SystemPrompt != "" {
		switch spec.SystemPromptWhen {
		case coretypes.SystemPromptAlways:
			argv = append(argv, spec.SystemPromptArg, opts.SystemPrompt)
		case coretypes.SystemPromptFirst:
			if opts.IsFirstCallInSession {
				argv = append(argv, spec.SystemPromptArg, opts.SystemPrompt)
			}
		case coretypes.SystemPromptNever, "":
		}
	}

	argv = append(argv, sessionArgs(spec, req, resuming)...)
	argv = append(argv, imageArgs(spec, req)...)

	if spec.Input == coretypes.InputArg {
		prompt := req.Prompt
		if spec.MaxPromptArgChars > 0 && len(prompt) > spec.MaxPromptArgChars {
			prompt = prompt[:spec.MaxPromptArgChars]
		}
		if prompt != "" {
			argv = append(argv, prompt)
		}
	}

	return argv
}

func sessionArgs(spec coretypes.BackendSpec, req coretypes.RunRequest, resuming bool) []string {
	switch spec.SessionMode {
	case coretypes.SessionIdNone:
		return nil
	case coretypes.SessionIdExisting:
		if !resuming {
			return nil
		}
	case coretypes.SessionIdAlways:
	default:
		return nil
	}

	sessionID := req.CliSessionID
	if sessionID == "" {
		sessionID = req.SessionID
	}
	if sessionID == "" {
		return nil
	}

	if len(spec.SessionArgs) > 0 {
		out := make([]string, len(spec.SessionArgs))
		for i, tmpl := range spec.SessionArgs {
			out[i] = substituteSessionID(tmpl, sessionID)
		}
		return out
	}
	if spec.SessionArg != "" {
		return []string{spec.SessionArg, sessionID}
	}
	return nil
}

func substituteSessionID(tmpl string, sessionID string) string {
	return strings.ReplaceAll(tmpl, "{sessionId}", sessionID)
}

func imageArgs(spec coretypes.BackendSpec, req coretypes.RunRequest) []string {
	if spec.ImageArg == "" || len(req.Images) == 0 {
		return nil
	}
	switch spec.ImageMode {
	case coretypes.ImageModeList:
		return []string{spec.ImageArg, strings.Join(req.Images, ",")}
	default: // ImageModeRepeat, or unset
		out := make([]string, 0, len(req.Images)*2)
		for _, img := range req.Images {
			out = append(out, spec.ImageArg, img)
		}
		return out
	}
}

// BuildStdinPayload builds the stdin payload for a run. When ToolResult is
// set and the run is resuming, stdin is a single JSON line
// {"type":"tool_result","tool_use_id":...,"content":...}.
// Otherwise, for InputStdin backends, stdin carries the prompt verbatim.
func BuildStdinPayload(spec coretypes.BackendSpec, req coretypes.RunRequest) string {
	if req.ToolResult != nil && req.CliSessionID != "" {
		payload := struct {
			Type string `json:"type"`
			ToolUseID string `json:"tool_use_id"`
			Content string `json:"content"`
		}{Type: "tool_result", ToolUseID: req.ToolResult.ToolUseID, Content: req.ToolResult.Content}
		b, err := json.Marshal(payload)
		if err != nil {
			return ""
		}
		return string(b) + "\n"
	}
	if spec.Input == coretypes.InputStdin {
		return req.Prompt
	}
	return ""
}
