// Package subagent implements the subagent manager, its durable registry,
// and the completion-announce flow (C7): admission control, lifecycle
// tracking, and reporting a finished child run back into its parent
// session.
//
// Grounded on other_examples/jholhewres-goclaw__subagent.go's
// SubagentManager (concurrency semaphore, persistRun/loadRunFromDB,
// cleanupStaleRunning, announce callback) and on
// internal/ai/subagent_manager.go for the mutex-guarded map idiom. The
// reference implementation persists to SQLite; this module uses one JSON
// file per host instead, with an atomic rewrite on every mutation, via the
// same write-temp-then-rename pattern used for materialized sidecar bundles
// (internal/ai/sidecar_process.go materializeSidecar).
package subagent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

// Registry durably persists SubagentRunRecords to a single JSON file,
// rewritten atomically on every mutation.
type Registry struct {
	path string
	log *slog.Logger

	mu sync.Mutex
	records map[string]coretypes.SubagentRunRecord
}

// NewRegistry builds a Registry backed by path. It does not load existing
// records — call Load explicitly at startup.
func NewRegistry(path string, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		path: path,
		log: log.With("component", "subagent_registry"),
		records: make(map[string]coretypes.SubagentRunRecord),
	}
}

// Load reads all records from disk. A missing file is not an error (first
// run on a fresh host).
func (r *Registry) Load() ([]coretypes.SubagentRunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("subagent registry: read %s: %w", r.path, err)
	}
	if len(b) == 0 {
		return nil, nil
	}

	var list []coretypes.SubagentRunRecord
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, fmt.Errorf("subagent registry: parse %s: %w", r.path, err)
	}
	for _, rec := range list {
		r.records[rec.RunID] = rec
	}
	return list, nil
}

// Upsert writes/updates one record and persists the whole table.
func (r *Registry) Upsert(rec coretypes.SubagentRunRecord) {
	r.mu.Lock()
	r.records[rec.RunID] = rec
	err := r.persistLocked()
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("subagent registry: failed to persist", "run_id", rec.RunID, "error", err)
	}
}

// Delete removes one record and persists the remaining table.
func (r *Registry) Delete(runID string) {
	r.mu.Lock()
	delete(r.records, runID)
	err := r.persistLocked()
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("subagent registry: failed to persist after delete", "run_id", runID, "error", err)
	}
}

// PruneOlderThan deletes completed records older than d, keyed on
// EndedAt, and returns the count removed. Records still running (no
// EndedAt) are never touched.
//
// This is an operator-invoked maintenance operation distinct from the
// automatic count-based MAX_RETAINED eviction that must never happen
// implicitly — it is explicit and separately invoked, not a background
// timer.
// Grounded on other_examples/jholhewres-goclaw__subagent.go's PruneOldRuns.
func (r *Registry) PruneOlderThan(d time.Duration) int {
	cutoff := time.Now().Add(-d)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.records {
		if rec.EndedAt == nil || rec.EndedAt.After(cutoff) {
			continue
		}
		delete(r.records, id)
		removed++
	}
	if removed > 0 {
		if err := r.persistLocked(); err != nil {
			r.log.Warn("subagent registry: failed to persist after prune", "error", err)
		}
	}
	return removed
}

// persistLocked must be called with r.mu held. It writes the whole table to
// a temp file and renames it over the target path — an atomic replace on
// POSIX filesystems.
func (r *Registry) persistLocked() error {
	list := make([]coretypes.SubagentRunRecord, 0, len(r.records))
	for _, rec := range r.records {
		list = append(list, rec)
	}

	b, err := json.MarshalIndent(list, "", " ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("mkdir registry dir: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename temp registry: %w", err)
	}
	return nil
}
