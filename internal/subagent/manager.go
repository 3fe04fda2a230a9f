package subagent

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/subagent-core/internal/coretypes"
	"github.com/openclaw/subagent-core/internal/eventbus"
)

// Admission limits for the reserved/running/completed triple, which is
// one logical resource guarded by Manager.mu.
const (
	MaxConcurrent = 5
	MaxRetained = 15
	ReservationTTL = 30 * time.Second
)

const (
	TopicSpawned = "spawned"
	TopicCompleted = "completed"
)

// AdmissionResult is reserveSlot's structured, never-raised outcome:
// admission denial is returned as a structured tool result, never raised
// as an error.
type AdmissionResult struct {
	Allowed bool
	ReserveID string
	Reason coretypes.AdmissionReason
	Suggestions []string
}

// Manager holds the reserved/running/completed triple for every requester
// session and enforces the admission-control invariants.
//
// Grounded on other_examples/jholhewres-goclaw__subagent.go's
// SubagentManager (mutex-guarded maps, persistRun on every mutation,
// announce callback fired from completeRun) generalized to the
// reserved/running/completed three-state model and the count-only
// retention policy selects.
type Manager struct {
	mu sync.Mutex

	reserved map[string]coretypes.SubagentReservation
	running map[string]coretypes.SubagentContext
	completed map[string]coretypes.SubagentResult

	registry *Registry
	bus *eventbus.Bus
	log *slog.Logger
	nowFn func() time.Time

	gcMu sync.Mutex
	gcStop map[string]chan struct{}

	// onHeartbeat is invoked (coalesced to 1s per session) after markCompleted
	// to wake the parent's dispatcher. The dispatcher itself is out of scope for this core.
	onHeartbeat func(sessionKey string)

	heartbeatMu sync.Mutex
	heartbeatPending map[string]bool

	// MaxSpawnDepth bounds recursive subagent-spawns-subagent nesting
	// (SUPPLEMENTED FEATURES item 1). 0 means DefaultMaxSpawnDepth.
	MaxSpawnDepth int
}

// NewManager builds an empty Manager. registry may be nil to run without
// durable persistence (e.g. in tests).
func NewManager(registry *Registry, bus *eventbus.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		reserved: make(map[string]coretypes.SubagentReservation),
		running: make(map[string]coretypes.SubagentContext),
		completed: make(map[string]coretypes.SubagentResult),
		registry: registry,
		bus: bus,
		log: log.With("component", "subagent_manager"),
		nowFn: time.Now,
		gcStop: make(map[string]chan struct{}),
		heartbeatPending: make(map[string]bool),
	}
}

// SetHeartbeat installs the callback markCompleted uses to wake the
// parent's dispatcher.
func (m *Manager) SetHeartbeat(fn func(sessionKey string)) {
	m.onHeartbeat = fn
}

func (m *Manager) now() time.Time {
	if m.nowFn != nil {
		return m.nowFn()
	}
	return time.Now()
}

// LoadFromRegistry replays durable records at startup.
func (m *Manager) LoadFromRegistry() error {
	if m.registry == nil {
		return nil
	}
	records, err := m.registry.Load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		m.syncFromRecordLocked(rec)
	}
	return nil
}

// syncFromRecordLocked must be called with m.mu held.
func (m *Manager) syncFromRecordLocked(rec coretypes.SubagentRunRecord) {
	if rec.EndedAt != nil && rec.Outcome != nil {
		m.completed[rec.RunID] = coretypes.SubagentResult{
			SubagentContext: rec.SubagentContext,
			EndedAt: *rec.EndedAt,
			Outcome: *rec.Outcome,
			Summary: rec.Summary,
			Notified: true,
			PlanApproved: rec.PlanApproved,
		}
		if rec.CompletedAt != nil {
			m.completed[rec.RunID] = withCompletedAt(m.completed[rec.RunID], *rec.CompletedAt)
		}
		return
	}
	// Still running as of the last durable write: re-register and observe.
	m.running[rec.RunID] = rec.SubagentContext
}

func withCompletedAt(r coretypes.SubagentResult, t time.Time) coretypes.SubagentResult {
	r.CompletedAt = t
	return r
}

// ReserveSlot runs the admission algorithm (depth, then concurrency, then
// capacity) atomically under m.mu. ctx is consulted for the caller's spawn
// depth; pass context.Background() where depth tracking is not wired up
// by the caller.
func (m *Manager) ReserveSlot(ctx context.Context, requesterSessionKey string) AdmissionResult {
	if !CheckSpawnDepth(ctx, m.MaxSpawnDepth) {
		return AdmissionResult{Allowed: false, Reason: coretypes.AdmissionDepth}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var reservedForSession, runningForSession, completedForSession int
	for _, r := range m.reserved {
		if r.RequesterSessionKey == requesterSessionKey {
			reservedForSession++
		}
	}
	for _, c := range m.running {
		if c.RequesterSessionKey == requesterSessionKey {
			runningForSession++
		}
	}
	for _, c := range m.completed {
		if c.RequesterSessionKey == requesterSessionKey {
			completedForSession++
		}
	}

	active := runningForSession + reservedForSession
	if active >= MaxConcurrent {
		return AdmissionResult{Allowed: false, Reason: coretypes.AdmissionConcurrency}
	}

	total := runningForSession + completedForSession + reservedForSession
	if total >= MaxRetained {
		return AdmissionResult{
			Allowed: false,
			Reason: coretypes.AdmissionCapacity,
			Suggestions: m.oldestCompletedLocked(requesterSessionKey, 3),
		}
	}

	reserveID := uuid.NewString()
	m.reserved[reserveID] = coretypes.SubagentReservation{
		ReserveID: reserveID,
		RequesterSessionKey: requesterSessionKey,
		ReservedAt: m.now(),
	}
	m.startReservationGC(reserveID)
	return AdmissionResult{Allowed: true, ReserveID: reserveID}
}

// oldestCompletedLocked must be called with m.mu held. It returns up to n
// runIds of the oldest completed runs for a session, oldest first.
func (m *Manager) oldestCompletedLocked(requesterSessionKey string, n int) []string {
	type entry struct {
		runID string
		ended time.Time
	}
	var candidates []entry
	for runID, c := range m.completed {
		if c.RequesterSessionKey != requesterSessionKey {
			continue
		}
		candidates = append(candidates, entry{runID: runID, ended: c.EndedAt})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ended.Before(candidates[j].ended) })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.runID
	}
	return out
}

// startReservationGC arms the 30s reservation-TTL reclaim for reserveID
// ( property 2, scenario S1's "after 30s the slot is reclaimed").
func (m *Manager) startReservationGC(reserveID string) {
	stop := make(chan struct{})
	m.gcMu.Lock()
	m.gcStop[reserveID] = stop
	m.gcMu.Unlock()

	go func() {
		t := time.NewTimer(ReservationTTL)
		defer t.Stop()
		select {
		case <-t.C:
			m.reclaimReservation(reserveID)
		case <-stop:
		}
	}()
}

func (m *Manager) reclaimReservation(reserveID string) {
	m.mu.Lock()
	delete(m.reserved, reserveID)
	m.mu.Unlock()

	m.gcMu.Lock()
	delete(m.gcStop, reserveID)
	m.gcMu.Unlock()
}

func (m *Manager) cancelReservationGC(reserveID string) {
	m.gcMu.Lock()
	stop, ok := m.gcStop[reserveID]
	if ok {
		delete(m.gcStop, reserveID)
	}
	m.gcMu.Unlock()
	if ok {
		close(stop)
	}
}

// Register atomically consumes reserveId and inserts ctx into running,
// then publishes "spawned".
func (m *Manager) Register(ctx coretypes.SubagentContext, reserveID string) bool {
	m.mu.Lock()
	_, ok := m.reserved[reserveID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.reserved, reserveID)
	m.running[ctx.RunID] = ctx
	m.mu.Unlock()

	m.cancelReservationGC(reserveID)
	m.persist(ctx, nil, "")

	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Topic: TopicSpawned, Payload: ctx})
	}
	return true
}

// MarkCompleted moves a running record to completed. It never injects
// announce messages itself. usage is the run's accumulated token
// accounting, folded into the completed record for the announce flow's
// stats line.
func (m *Manager) MarkCompleted(runID string, outcome coretypes.SubagentOutcome, summary string, endedAt time.Time, usage coretypes.Usage) {
	m.mu.Lock()
	ctx, ok := m.running[runID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.running, runID)
	if endedAt.IsZero() {
		endedAt = m.now()
	}
	result := coretypes.SubagentResult{
		SubagentContext: ctx,
		EndedAt: endedAt,
		Outcome: outcome,
		Summary: summary,
		Notified: false,
		Usage: usage,
	}
	m.completed[runID] = result
	m.mu.Unlock()

	m.persist(ctx, &result, summary)

	if m.bus != nil {
		m.bus.Publish(eventbus.Event{Topic: TopicCompleted, Payload: result})
	}
	m.requestHeartbeat(ctx.RequesterSessionKey)
}

// requestHeartbeat coalesces wake-ups for a session to at most one per
// second.
func (m *Manager) requestHeartbeat(sessionKey string) {
	if m.onHeartbeat == nil {
		return
	}
	m.heartbeatMu.Lock()
	if m.heartbeatPending[sessionKey] {
		m.heartbeatMu.Unlock()
		return
	}
	m.heartbeatPending[sessionKey] = true
	m.heartbeatMu.Unlock()

	go func() {
		time.Sleep(time.Second)
		m.heartbeatMu.Lock()
		delete(m.heartbeatPending, sessionKey)
		m.heartbeatMu.Unlock()
		m.onHeartbeat(sessionKey)
	}()
}

// MarkNotified flips Notified on a completed record after the announce
// flow finishes delivering it, so a duplicate registry-listener firing
// does not re-announce.
func (m *Manager) MarkNotified(runID string) {
	m.mu.Lock()
	r, ok := m.completed[runID]
	if ok {
		r.Notified = true
		m.completed[runID] = r
	}
	m.mu.Unlock()
	if ok {
		m.persist(r.SubagentContext, &r, r.Summary)
	}
}

// RemoveSubagent deletes a completed record for its owning requester,
// rejecting a run that is still running or owned by a different session.
func (m *Manager) RemoveSubagent(runID string, requesterSessionKey string) error {
	m.mu.Lock()
	if _, running := m.running[runID]; running {
		m.mu.Unlock()
		return &coretypes.RunningSubagentError{RunID: runID}
	}
	r, ok := m.completed[runID]
	if !ok {
		m.mu.Unlock()
		return &coretypes.RunningSubagentError{RunID: runID}
	}
	if r.RequesterSessionKey != requesterSessionKey {
		m.mu.Unlock()
		return &coretypes.PermissionDeniedError{RunID: runID}
	}
	delete(m.completed, runID)
	m.mu.Unlock()

	if m.registry != nil {
		m.registry.Delete(runID)
	}
	return nil
}

// Get returns the running context or completed result for runID, if any.
func (m *Manager) Get(runID string) (running *coretypes.SubagentContext, completed *coretypes.SubagentResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.running[runID]; ok {
		cc := c
		return &cc, nil
	}
	if r, ok := m.completed[runID]; ok {
		rr := r
		return nil, &rr
	}
	return nil, nil
}

// ForSession returns snapshots of the running and completed records for a
// session, running first, each ordered oldest-first.
func (m *Manager) ForSession(sessionKey string) (running []coretypes.SubagentContext, completed []coretypes.SubagentResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.running {
		if c.RequesterSessionKey == sessionKey {
			running = append(running, c)
		}
	}
	for _, r := range m.completed {
		if r.RequesterSessionKey == sessionKey {
			completed = append(completed, r)
		}
	}
	sort.Slice(running, func(i, j int) bool { return running[i].StartedAt.Before(running[j].StartedAt) })
	sort.Slice(completed, func(i, j int) bool { return completed[i].EndedAt.Before(completed[j].EndedAt) })
	return running, completed
}

// PruneOlderThan removes completed records older than d from both the
// in-memory table and the durable registry (SUPPLEMENTED FEATURES item 4).
func (m *Manager) PruneOlderThan(d time.Duration) int {
	cutoff := m.now().Add(-d)

	m.mu.Lock()
	var toDelete []string
	for id, r := range m.completed {
		if r.EndedAt.Before(cutoff) {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		delete(m.completed, id)
	}
	m.mu.Unlock()

	if m.registry != nil {
		for _, id := range toDelete {
			m.registry.Delete(id)
		}
	}
	return len(toDelete)
}

func (m *Manager) persist(ctx coretypes.SubagentContext, result *coretypes.SubagentResult, summary string) {
	if m.registry == nil {
		return
	}
	rec := coretypes.SubagentRunRecord{
		SubagentContext: ctx,
		CreatedAt: ctx.StartedAt,
	}
	if result != nil {
		endedAt := result.EndedAt
		rec.EndedAt = &endedAt
		outcome := result.Outcome
		rec.Outcome = &outcome
		rec.Summary = summary
		rec.Notified = result.Notified
		rec.PlanApproved = result.PlanApproved
		if !result.CompletedAt.IsZero() {
			completedAt := result.CompletedAt
			rec.CompletedAt = &completedAt
		}
	}
	m.registry.Upsert(rec)
}
