// Package interaction implements the interaction manager (C6): a
// process-wide map from sessionKey to a single PendingInteraction, with
// TTL expiry and answer parsing.
//
// Grounded on internal/ai/ask_user_policy.go (the closest
// analogue in the pack for classifying/normalizing an ask-user signal) for
// the overall shape of trimming/normalizing free-form answers, generalized
// here into the keyed, TTL'd store describes.
package interaction

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

const (
	DefaultTTL = 5 * time.Minute
	cleanupTickerInterval = 60 * time.Second
)

// Manager tracks pending interactions keyed by sessionKey.
type Manager struct {
	mu sync.Mutex
	entries map[string]coretypes.PendingInteraction

	nowFn func() time.Time

	cleanupMu sync.Mutex
	cleanupTicker *time.Ticker
	cleanupStop chan struct{}
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		entries: make(map[string]coretypes.PendingInteraction),
		nowFn: time.Now,
	}
}

func (m *Manager) now() time.Time {
	if m.nowFn != nil {
		return m.nowFn()
	}
	return time.Now()
}

// Set replaces any existing pending interaction for sessionKey and starts
// the cleanup timer if it is not already running.
func (m *Manager) Set(sessionKey string, d coretypes.DetectedInteraction, cliSessionID string, agentID string, provider string, ttl time.Duration) coretypes.PendingInteraction {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.now()
	pi := coretypes.PendingInteraction{
		ID: uuid.NewString(),
		CliSessionID: cliSessionID,
		SessionKey: sessionKey,
		ToolCallID: d.ToolCallID,
		Type: d.Type,
		Question: d.Question,
		Options: d.Options,
		MultiSelect: d.MultiSelect,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		AgentID: agentID,
		Provider: provider,
	}

	m.mu.Lock()
	m.entries[sessionKey] = pi
	m.mu.Unlock()

	m.startCleanupTimer()
	return pi
}

// Get returns the pending interaction for sessionKey if present and not
// expired. An expired entry is deleted as a side effect.
func (m *Manager) Get(sessionKey string) (coretypes.PendingInteraction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pi, ok := m.entries[sessionKey]
	if !ok {
		return coretypes.PendingInteraction{}, false
	}
	if m.now().After(pi.ExpiresAt) {
		delete(m.entries, sessionKey)
		return coretypes.PendingInteraction{}, false
	}
	return pi, true
}

// Clear removes any pending interaction for sessionKey.
func (m *Manager) Clear(sessionKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, sessionKey)
}

// CleanupExpired scans and deletes all expired entries, and stops the
// cleanup timer once the map is empty.
func (m *Manager) CleanupExpired() {
	now := m.now()
	m.mu.Lock()
	for k, v := range m.entries {
		if now.After(v.ExpiresAt) {
			delete(m.entries, k)
		}
	}
	empty := len(m.entries) == 0
	m.mu.Unlock()

	if empty {
		m.stopCleanupTimer()
	}
}

func (m *Manager) startCleanupTimer() {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()
	if m.cleanupTicker != nil {
		return
	}
	m.cleanupTicker = time.NewTicker(cleanupTickerInterval)
	m.cleanupStop = make(chan struct{})
	ticker := m.cleanupTicker
	stop := m.cleanupStop
	go func() {
		for {
			select {
			case <-ticker.C:
				m.CleanupExpired()
			case <-stop:
				return
			}
		}
	}()
}

func (m *Manager) stopCleanupTimer() {
	m.cleanupMu.Lock()
	defer m.cleanupMu.Unlock()
	if m.cleanupTicker == nil {
		return
	}
	m.cleanupTicker.Stop()
	close(m.cleanupStop)
	m.cleanupTicker = nil
	m.cleanupStop = nil
}

// Shutdown stops the background cleanup goroutine, if running. Non-blocking
// to process exit.
func (m *Manager) Shutdown() {
	m.stopCleanupTimer()
}

// ParseUserAnswer normalizes a free-text or option-index reply against
// the offered options. It is a pure function of (input, options,
// multiSelect).
func ParseUserAnswer(input string, options []coretypes.InteractionOption, multiSelect bool) string {
	trimmed := strings.TrimSpace(input)

	if len(options) == 0 {
		return trimmed
	}

	if multiSelect && strings.Contains(trimmed, ",") {
		if labels, ok := parseMultiSelectIndices(trimmed, options); ok {
			return strings.Join(labels, ", ")
		}
	}

	if idx, err := strconv.Atoi(trimmed); err == nil {
		if idx >= 1 && idx <= len(options) {
			return options[idx-1].Label
		}
	}

	lower := strings.ToLower(trimmed)
	for _, o := range options {
		if strings.ToLower(o.Label) == lower {
			return o.Label
		}
	}

	return trimmed
}

func parseMultiSelectIndices(input string, options []coretypes.InteractionOption) ([]string, bool) {
	tokens := strings.Split(input, ",")
	seen := make(map[int]bool, len(tokens))
	var labels []string
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		idx, err := strconv.Atoi(tok)
		if err != nil || idx < 1 || idx > len(options) {
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		labels = append(labels, options[idx-1].Label)
	}
	if len(labels) == 0 {
		return nil, false
	}
	return labels, true
}
