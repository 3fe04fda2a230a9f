// Package coretypes holds the data model shared across the subagent
// orchestration core: run requests, CLI events, pending interactions and
// usage accounting. Components depend on these types instead of on each
// other's packages directly.
package coretypes

import "time"

// SessionIdMode controls how a backend expects to be told about session
// continuity.
type SessionIdMode string

const (
	SessionIdAlways SessionIdMode = "always"
	SessionIdExisting SessionIdMode = "existing"
	SessionIdNone SessionIdMode = "none"
)

// SystemPromptWhen controls when the system prompt argument is emitted.
type SystemPromptWhen string

const (
	SystemPromptFirst SystemPromptWhen = "first"
	SystemPromptAlways SystemPromptWhen = "always"
	SystemPromptNever SystemPromptWhen = "never"
)

// ImageMode controls how multiple image attachments are passed on argv.
type ImageMode string

const (
	ImageModeRepeat ImageMode = "repeat"
	ImageModeList ImageMode = "list"
)

// InputMode controls whether the prompt is passed as an argv token or piped
// via stdin.
type InputMode string

const (
	InputArg InputMode = "arg"
	InputStdin InputMode = "stdin"
)

// OutputMode selects the output parser variant for a backend.
type OutputMode string

const (
	OutputText OutputMode = "text"
	OutputJSON OutputMode = "json"
	OutputJSONL OutputMode = "jsonl"
	OutputStreamJSONL OutputMode = "stream-jsonl"
)

// SandboxMode controls whether a run may be wrapped in a container exec.
type SandboxMode string

const (
	SandboxOff SandboxMode = "off"
	SandboxInherit SandboxMode = "inherit"
	SandboxAlways SandboxMode = "always"
)

// BackendSpec is the immutable, per-process declarative description of how
// to invoke one CLI backend.
type BackendSpec struct {
	Command string `json:"command"`
	Args []string `json:"args"`

	ResumeArgs []string `json:"resumeArgs,omitempty"`
	SessionArg string `json:"sessionArg,omitempty"`
	SessionArgs []string `json:"sessionArgs,omitempty"`
	SessionMode SessionIdMode `json:"sessionMode"`

	SystemPromptArg string `json:"systemPromptArg,omitempty"`
	SystemPromptWhen SystemPromptWhen `json:"systemPromptWhen"`

	ModelArg string `json:"modelArg,omitempty"`
	ModelAliases map[string]string `json:"modelAliases,omitempty"`

	ImageArg string `json:"imageArg,omitempty"`
	ImageMode ImageMode `json:"imageMode,omitempty"`

	Input InputMode `json:"input"`
	MaxPromptArgChars int `json:"maxPromptArgChars,omitempty"`

	Output OutputMode `json:"output"`
	ResumeOutput OutputMode `json:"resumeOutput,omitempty"`

	Env map[string]string `json:"env,omitempty"`
	ClearEnv bool `json:"clearEnv,omitempty"`

	SandboxMode SandboxMode `json:"sandboxMode,omitempty"`
	SandboxOverrides map[string]string `json:"sandboxOverrides,omitempty"`

	Serialize bool `json:"serialize"`
	EnableTools bool `json:"enableTools,omitempty"`

	SessionIdFields []string `json:"sessionIdFields,omitempty"`

	// Cost, per-million-token, used by the announce flow's stats line.
	// Zero means unknown ("n/a" is rendered instead of a computed figure).
	CostInputPerM float64 `json:"costInputPerM,omitempty"`
	CostOutputPerM float64 `json:"costOutputPerM,omitempty"`
}

// EffectiveResumeOutput returns ResumeOutput if set, else Output.
func (b BackendSpec) EffectiveResumeOutput() OutputMode {
	if b.ResumeOutput != "" {
		return b.ResumeOutput
	}
	return b.Output
}

// EffectiveSessionIdFields returns the configured id fields, or the default
// set.
func (b BackendSpec) EffectiveSessionIdFields() []string {
	if len(b.SessionIdFields) > 0 {
		return b.SessionIdFields
	}
	return []string{"session_id", "sessionId", "conversation_id", "conversationId"}
}

// SandboxContext carries the per-run decision of whether/how to sandbox the
// child process.
type SandboxContext struct {
	Enabled bool
	Container string
	Workdir string
	Env map[string]string
}

// RunRequest is one end-to-end CLI backend invocation request.
type RunRequest struct {
	SessionID string
	SessionKey string
	SessionFile string
	WorkspaceDir string
	Prompt string
	Provider string
	Model string
	TimeoutMs int64
	RunID string
	Images []string
	CliSessionID string
	ToolResult *ToolResultInput
	SandboxCtx *SandboxContext
}

// ToolResultInput carries a resumption payload for an interaction answer.
type ToolResultInput struct {
	ToolUseID string
	Content string
}

// CliToolUseEvent is one tool invocation requested by the model.
type CliToolUseEvent struct {
	ID string
	Name string
	Input map[string]any
}

// CliToolResultEvent is one tool result observed in the CLI's output.
type CliToolResultEvent struct {
	ToolUseID string
	Content string
	IsError bool
}

// Usage accumulates token accounting across one parsed run.
type Usage struct {
	InputTokens int64
	OutputTokens int64
	CacheReadInputTokens int64
	CacheWriteInputTokens int64
	TotalTokens int64
}

// Add merges another usage snapshot into this one.
func (u *Usage) Add(o Usage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadInputTokens += o.CacheReadInputTokens
	u.CacheWriteInputTokens += o.CacheWriteInputTokens
	u.TotalTokens += o.TotalTokens
}

// InteractionType tags the two kinds of pending interaction.
type InteractionType string

const (
	InteractionAskUserQuestion InteractionType = "ask_user_question"
	InteractionPlanApproval InteractionType = "plan_approval"
)

// InteractionOption is one selectable answer to a pending question.
type InteractionOption struct {
	Label string `json:"label"`
	Description string `json:"description,omitempty"`
}

// DetectedInteraction is what the output parser yields when it finds an
// unanswered tool-use requiring user input.
type DetectedInteraction struct {
	Type InteractionType
	ToolCallID string
	Question string
	Options []InteractionOption
	MultiSelect bool
}

// PendingInteraction is the durable, keyed-by-session record of a
// DetectedInteraction awaiting a user answer.
type PendingInteraction struct {
	ID string
	CliSessionID string
	SessionKey string
	ToolCallID string
	Type InteractionType
	Question string
	Options []InteractionOption
	MultiSelect bool
	CreatedAt time.Time
	ExpiresAt time.Time
	AgentID string
	Provider string
}

// ParsedOutput is the normalized result of parsing one backend invocation's
// raw output, regardless of OutputMode.
type ParsedOutput struct {
	Text string
	SessionID string
	Usage Usage
	ToolUses []CliToolUseEvent
	ToolResults []CliToolResultEvent
	PendingInteraction *DetectedInteraction
}

// SubagentOutcomeStatus tags how a subagent run ended.
type SubagentOutcomeStatus string

const (
	OutcomeOK SubagentOutcomeStatus = "ok"
	OutcomeError SubagentOutcomeStatus = "error"
	OutcomeTimeout SubagentOutcomeStatus = "timeout"
	OutcomeUnknown SubagentOutcomeStatus = "unknown"
)

// SubagentOutcome is the terminal disposition of a subagent run.
type SubagentOutcome struct {
	Status SubagentOutcomeStatus
	Error string
}

// SubagentContext describes a subagent while it is running.
type SubagentContext struct {
	RunID string
	ChildSessionKey string
	RequesterSessionKey string
	Task string
	Label string
	StartedAt time.Time
	Model string
	PlanMode bool

	// Cleanup is the sessions_spawn "cleanup" argument ("delete" or "").
	// Consumed by the announce flow's step 7.
	Cleanup string

	// DeniedTools carries the child tool deny-list through to the caller
	// that constructs the child RunRequest; the core does not dispatch
	// tools itself.
	DeniedTools []string

	// OriginChannel/OriginTo/OriginThreadID capture where the spawn request
	// originated, for announce-time delivery.
	OriginChannel string
	OriginTo string
	OriginThreadID string
}

// SubagentResult is a completed subagent's record, kept in memory.
type SubagentResult struct {
	SubagentContext
	EndedAt time.Time
	Outcome SubagentOutcome
	Summary string
	Notified bool
	CompletedAt time.Time
	PlanApproved *bool
	Usage Usage
}

// SubagentReservation is a slot hold created by admission control.
type SubagentReservation struct {
	ReserveID string
	RequesterSessionKey string
	ReservedAt time.Time
}

// QueueMode is the parent session's dispatch-time branch selector for
// incoming announcements while a run is active.
type QueueMode string

const (
	QueueOff QueueMode = "off"
	QueueFollowup QueueMode = "followup"
	QueueCollect QueueMode = "collect"
	QueueInterrupt QueueMode = "interrupt"
	QueueSteer QueueMode = "steer"
	QueueSteerBacklog QueueMode = "steer-backlog"
)

// SessionOrigin captures where a message should be routed back to on a
// channel: the last known channel/to/threadId for a session, or the
// values a spawn request captured at spawn time.
type SessionOrigin struct {
	Channel string
	To string
	ThreadID string
}

// Merge overlays non-empty fields from more recent (requester-captured)
// onto o, since fresher values take precedence.
func (o SessionOrigin) Merge(fresher SessionOrigin) SessionOrigin {
	out := o
	if fresher.Channel != "" {
		out.Channel = fresher.Channel
	}
	if fresher.To != "" {
		out.To = fresher.To
	}
	if fresher.ThreadID != "" {
		out.ThreadID = fresher.ThreadID
	}
	return out
}

// SubagentRunRecord is the durable, on-disk shape of a subagent run.
type SubagentRunRecord struct {
	SubagentContext
	CreatedAt time.Time `json:"createdAt"`
	EndedAt *time.Time `json:"endedAt,omitempty"`
	Outcome *SubagentOutcome `json:"outcome,omitempty"`
	Summary string `json:"summary,omitempty"`
	Notified bool `json:"notified"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	PlanApproved *bool `json:"planApproved,omitempty"`
}
