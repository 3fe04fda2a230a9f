package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/openclaw/subagent-core/internal/coretypes"
	"github.com/openclaw/subagent-core/internal/gatewayrpc"
	"github.com/openclaw/subagent-core/internal/transcript"
)

// AnnounceDeps bundles the externally supplied hooks runSubagentAnnounceFlow
// needs. The core never talks to the gateway, dispatcher, or session store
// directly outside this seam — every field here is best-effort.
//
// Grounded on other_examples/jholhewres-goclaw__subagent.go's announce
// callback (a push-style notification fired from completeRun) and on
// internal/ai/sidecar_process.go's wrap-log-and-swallow idiom, used for
// every outbound RPC below.
type AnnounceDeps struct {
	Caller gatewayrpc.Caller

	// TranscriptPath resolves a child session key to its transcript file.
	TranscriptPath func(childSessionKey string) string

	// QueueModeFor and ParentRunActive describe the parent session's
	// dispatcher state at announce time.
	QueueModeFor func(parentSessionKey string) coretypes.QueueMode
	ParentRunActive func(parentSessionKey string) bool

	// Steer attempts to inject message into the parent's running LLM run.
	// Returns true on success.
	Steer func(ctx context.Context, parentSessionKey, message string) bool

	// SteerLimiter gates repeated steer attempts into the same session
	// (SUPPLEMENTED FEATURES item 3). Nil disables rate limiting.
	SteerLimiter *SteerLimiter

	// EnqueueAnnounce hands message to the dispatcher's announce queue.
	EnqueueAnnounce func(parentSessionKey, message string)

	// OriginFor returns the session's stored lastChannel/lastTo/lastThreadId.
	OriginFor func(sessionKey string) coretypes.SessionOrigin

	// CostPerM resolves a model name to its configured per-million-token
	// input/output cost; ok is false when unknown.
	CostPerM func(model string) (inputPerM, outputPerM float64, ok bool)

	Log *slog.Logger
}

func (d AnnounceDeps) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// RunSubagentAnnounceFlow reports a finished child run back to its
// requester: wait for final status, read the child's latest reply,
// extract a summary, build a stats line and trigger message, then
// dispatch and clean up the child session.
// It is always called with a record already moved to completed by
// MarkCompleted; failures at every outbound step are logged and swallowed.
func RunSubagentAnnounceFlow(ctx context.Context, deps AnnounceDeps, result coretypes.SubagentResult, timeoutMs int64) {
	log := deps.log().With("run_id", result.RunID, "child_session_key", result.ChildSessionKey)

	startedAt, endedAt := result.StartedAt, result.EndedAt
	if deps.Caller != nil {
		waitMs := timeoutMs
		if waitMs <= 0 || waitMs > 60_000 {
			waitMs = 60_000
		}
		waitCtx, cancel := context.WithTimeout(ctx, time.Duration(waitMs)*time.Millisecond)
		raw, err := deps.Caller.CallGateway(waitCtx, "agent.wait", map[string]any{
			"runId": result.RunID,
			"timeoutMs": waitMs,
		})
		cancel()
		if err != nil {
			log.Warn("announce: agent.wait failed", "error", err)
		} else {
			wr := gatewayrpc.ParseAgentWaitResult(raw)
			if startedAt.IsZero() && wr.StartedAt != 0 {
				startedAt = time.UnixMilli(wr.StartedAt)
			}
			if endedAt.IsZero() && wr.EndedAt != 0 {
				endedAt = time.UnixMilli(wr.EndedAt)
			}
		}
	}

	var childReply string
	transcriptPath := ""
	if deps.TranscriptPath != nil {
		transcriptPath = deps.TranscriptPath(result.ChildSessionKey)
		if transcriptPath != "" {
			if text, ok := transcript.LatestAssistantText(transcriptPath); ok {
				childReply = text
			}
		}
	}

	summary := extractSummary(childReply)
	stats := buildStatsLine(deps, result, startedAt, endedAt, transcriptPath)
	message := buildTriggerMessage(result, summary, stats)

	deliverAnnounce(ctx, deps, result, message, log)

	if deps.Caller != nil {
		if _, err := deps.Caller.CallGateway(ctx, "sessions.patch", map[string]any{
			"key": result.ChildSessionKey,
			"label": fmt.Sprintf("done: %s", summary),
		}); err != nil {
			log.Warn("announce: sessions.patch failed", "error", err)
		}

		if shouldDeleteChild(result) {
			if _, err := deps.Caller.CallGateway(ctx, "sessions.delete", map[string]any{
				"key": result.ChildSessionKey,
				"deleteTranscript": true,
			}); err != nil {
				log.Warn("announce: sessions.delete failed", "error", err)
			}
		}
	}
}

// extractSummary trims the child's reply to a short, human-scannable
// completion summary: text after a trailing SUMMARY: marker if present,
// else the last 200 characters.
func extractSummary(reply string) string {
	const marker = "SUMMARY:"
	if idx := strings.LastIndex(reply, marker); idx != -1 {
		s := strings.TrimSpace(reply[idx+len(marker):])
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	if len(reply) > 200 {
		return reply[len(reply)-200:]
	}
	return reply
}

// buildStatsLine formats the compact runtime/token/cost/transcript line
// appended to every completion message.
func buildStatsLine(deps AnnounceDeps, result coretypes.SubagentResult, startedAt, endedAt time.Time, transcriptPath string) string {
	runtime := "n/a"
	if !startedAt.IsZero() && !endedAt.IsZero() && endedAt.After(startedAt) {
		runtime = endedAt.Sub(startedAt).Round(time.Second).String()
	}

	tokensIn, tokensOut, tokensTotal := "n/a", "n/a", "n/a"
	if result.Usage.TotalTokens > 0 || result.Usage.InputTokens > 0 || result.Usage.OutputTokens > 0 {
		tokensIn = humanize.Comma(result.Usage.InputTokens)
		tokensOut = humanize.Comma(result.Usage.OutputTokens)
		tokensTotal = humanize.Comma(result.Usage.TotalTokens)
	}

	cost := "n/a"
	if deps.CostPerM != nil {
		if inPerM, outPerM, ok := deps.CostPerM(result.Model); ok {
			total := (float64(result.Usage.InputTokens)/1_000_000)*inPerM + (float64(result.Usage.OutputTokens)/1_000_000)*outPerM
			cost = "$" + humanize.Commaf(total)
		}
	}

	tp := transcriptPath
	if tp == "" {
		tp = "n/a"
	}

	return fmt.Sprintf(
		"runtime: %s | tokens: in=%s out=%s total=%s | cost: %s | child: %s (%s) | transcript: %s",
		runtime, tokensIn, tokensOut, tokensTotal, cost, result.ChildSessionKey, result.RunID, tp,
	)
}

// buildTriggerMessage renders the message injected into (or delivered to)
// the requester session once a child run finishes.
func buildTriggerMessage(result coretypes.SubagentResult, summary, stats string) string {
	label := result.Label
	if label == "" {
		label = result.RunID[:min(8, len(result.RunID))]
	}

	if result.PlanMode {
		if result.Outcome.Status == coretypes.OutcomeOK {
			return fmt.Sprintf("Subagent %q submitted a plan for approval.\n\n%s\n\n%s", label, summary, stats)
		}
		return fmt.Sprintf("Subagent %q's plan could not be completed (%s).\n\n%s", label, result.Outcome.Status, stats)
	}

	return fmt.Sprintf(
		"Subagent %q finished.\nStatus: %s\nTask: %s\nSummary: %s\nStats: %s",
		label, result.Outcome.Status, result.Task, summary, stats,
	)
}

// deliverAnnounce picks the delivery path — steer, queue, or a direct
// gateway send — based on the requester's queue mode and activity.
func deliverAnnounce(ctx context.Context, deps AnnounceDeps, result coretypes.SubagentResult, message string, log *slog.Logger) {
	mode := coretypes.QueueOff
	if deps.QueueModeFor != nil {
		mode = deps.QueueModeFor(result.RequesterSessionKey)
	}

	if (mode == coretypes.QueueSteer || mode == coretypes.QueueSteerBacklog) && deps.Steer != nil {
		allowed := deps.SteerLimiter == nil || deps.SteerLimiter.Allow(result.RequesterSessionKey)
		if allowed && deps.Steer(ctx, result.RequesterSessionKey, message) {
			return
		}
	}

	parentActive := deps.ParentRunActive != nil && deps.ParentRunActive(result.RequesterSessionKey)
	queueable := mode == coretypes.QueueFollowup || mode == coretypes.QueueCollect ||
		mode == coretypes.QueueSteerBacklog || mode == coretypes.QueueInterrupt || mode == coretypes.QueueSteer

	if queueable && parentActive {
		if deps.EnqueueAnnounce != nil {
			deps.EnqueueAnnounce(result.RequesterSessionKey, message)
		}
		return
	}

	if deps.Caller == nil {
		log.Warn("announce: no gateway caller configured, dropping message")
		return
	}

	origin := resolveOrigin(deps, result)
	params := gatewayrpc.AgentParams{
		SessionKey: result.RequesterSessionKey,
		Message: message,
		Channel: origin.Channel,
		To: origin.To,
		ThreadID: origin.ThreadID,
		Deliver: true,
		IdempotencyKey: "announce:" + result.RunID,
	}
	if _, err := deps.Caller.CallGateway(ctx, "agent", params.ToMap()); err != nil {
		log.Warn("announce: direct agent delivery failed", "error", err)
	}
}

// resolveOrigin merges the requester session's stored origin with the
// origin captured at spawn time; captured values (fresher) take
// precedence over the session's stored last-known origin.
func resolveOrigin(deps AnnounceDeps, result coretypes.SubagentResult) coretypes.SessionOrigin {
	stored := coretypes.SessionOrigin{}
	if deps.OriginFor != nil {
		stored = deps.OriginFor(result.RequesterSessionKey)
	}
	captured := coretypes.SessionOrigin{
		Channel: result.OriginChannel,
		To: result.OriginTo,
		ThreadID: result.OriginThreadID,
	}
	return stored.Merge(captured)
}

// shouldDeleteChild reports whether the child session should be deleted
// after announcing: cleanup was requested as "delete" and the run was not
// a plan-mode run.
func shouldDeleteChild(result coretypes.SubagentResult) bool {
	return result.Cleanup == "delete" && !result.PlanMode
}
