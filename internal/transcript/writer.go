// Package transcript implements the session transcript writer (C5): an
// append-only JSON-lines log per session, used later for memory indexing.
// Writer errors are logged and swallowed — transcript writing never fails
// the run.
//
// Grounded on internal/ai/threadstore/store.go's AppendMessage, which
// likewise appends role-tagged records and publishes an update after each
// write; this package trades threadstore's SQLite table for a mandated
// append-only JSONL file, matching the durable persistence layout's
// explicit file format for transcripts.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/openclaw/subagent-core/internal/coretypes"
	"github.com/openclaw/subagent-core/internal/eventbus"
)

const TopicSessionTranscriptUpdate = "sessionTranscriptUpdate"

// HeaderRecord is the mandatory first line of every transcript file.
type HeaderRecord struct {
	Type string `json:"type"`
	Version int `json:"version"`
	ID string `json:"id"`
	Timestamp int64 `json:"timestamp"`
	Cwd string `json:"cwd"`
}

// ToolCallRecordEntry is one structured tool call captured in an assistant
// record.
type ToolCallRecordEntry struct {
	ID string `json:"id"`
	Name string `json:"name"`
	Input map[string]any `json:"input"`
}

// AssistantRecord is the transcript line for one run's assistant turn.
type AssistantRecord struct {
	Role string `json:"role"`
	Timestamp int64 `json:"timestamp"`
	ToolCalls []ToolCallRecordEntry `json:"toolCalls,omitempty"`
	Text string `json:"text,omitempty"`
	StopReason string `json:"stopReason"`
	Usage coretypes.Usage `json:"usage"`
}

// ToolResultRecord is one appended tool-result line, ordered after its
// assistant record.
type ToolResultRecord struct {
	Role string `json:"role"`
	Timestamp int64 `json:"timestamp"`
	ToolUseID string `json:"toolUseId"`
	Content string `json:"content"`
	IsError bool `json:"isError"`
}

// Writer appends records to one session's transcript file.
type Writer struct {
	log *slog.Logger
	bus *eventbus.Bus
	idx *Index
	mu sync.Mutex
	nowFn func() time.Time
	sessionIDs map[string]string
}

// New builds a Writer. A nil bus disables event publication; a nil logger
// falls back to slog.Default().
func New(log *slog.Logger, bus *eventbus.Bus) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{log: log.With("component", "transcript"), bus: bus, nowFn: time.Now, sessionIDs: make(map[string]string)}
}

// SetIndex attaches an optional searchable index that AppendRun keeps in
// sync, best-effort. A nil idx disables index writes.
func (w *Writer) SetIndex(idx *Index) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.idx = idx
}

func (w *Writer) now() time.Time {
	if w.nowFn != nil {
		return w.nowFn()
	}
	return time.Now()
}

// EnsureHeader creates the transcript file with its header record if it
// does not already exist. Safe to call on every run.
func (w *Writer) EnsureHeader(path string, sessionID string, cwd string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sessionIDs[path] = sessionID

	if _, err := os.Stat(path); err == nil {
		return
	}

	header := HeaderRecord{
		Type: "session",
		Version: 1,
		ID: sessionID,
		Timestamp: w.now().UnixMilli(),
		Cwd: cwd,
	}
	if err := w.appendLineLocked(path, header); err != nil {
		w.log.Warn("transcript: failed to write header", "path", path, "error", err)
	}
}

// AppendRun writes one assistant record (tool calls, if any, plus text)
// followed by one toolResult record per result, in order, with strictly
// increasing timestamps. It is a no-op if there are no tool events and no
// text; a plain text-only reply still gets an assistant record so the
// transcript remains a faithful turn log.
func (w *Writer) AppendRun(path string, uses []coretypes.CliToolUseEvent, results []coretypes.CliToolResultEvent, text string, usage coretypes.Usage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(uses) == 0 && len(results) == 0 && text == "" {
		return
	}

	baseTS := w.now().UnixMilli()
	stopReason := "stop"
	toolCalls := make([]ToolCallRecordEntry, 0, len(uses))
	for _, u := range uses {
		toolCalls = append(toolCalls, ToolCallRecordEntry{ID: u.ID, Name: u.Name, Input: u.Input})
	}
	if len(toolCalls) > 0 {
		stopReason = "toolUse"
	}

	assistant := AssistantRecord{
		Role: "assistant",
		Timestamp: baseTS,
		ToolCalls: toolCalls,
		Text: text,
		StopReason: stopReason,
		Usage: usage,
	}
	if err := w.appendLineLocked(path, assistant); err != nil {
		w.log.Warn("transcript: failed to append assistant record", "path", path, "error", err)
		return
	}

	for i, r := range results {
		rec := ToolResultRecord{
			Role: "toolResult",
			Timestamp: baseTS + int64(i) + 1,
			ToolUseID: r.ToolUseID,
			Content: r.Content,
			IsError: r.IsError,
		}
		if err := w.appendLineLocked(path, rec); err != nil {
			w.log.Warn("transcript: failed to append tool result", "path", path, "error", err)
			return
		}
	}

	if w.idx != nil {
		sessionKey := w.sessionIDs[path]
		if sessionKey == "" {
			sessionKey = path
		}
		if text != "" {
			if err := w.idx.Record(context.Background(), sessionKey, "assistant", text, baseTS); err != nil {
				w.log.Warn("transcript: failed to index assistant record", "error", err)
			}
		}
		for i, r := range results {
			if err := w.idx.Record(context.Background(), sessionKey, "toolResult", r.Content, baseTS+int64(i)+1); err != nil {
				w.log.Warn("transcript: failed to index tool result", "error", err)
			}
		}
	}

	if w.bus != nil {
		w.bus.Publish(eventbus.Event{Topic: TopicSessionTranscriptUpdate, Payload: path})
	}
}

func (w *Writer) appendLineLocked(path string, v any) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal transcript record: %w", err)
	}
	b = append(b, '\n')
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("write transcript record: %w", err)
	}
	return nil
}
