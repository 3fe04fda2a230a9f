// Package queue implements the per-backend run queue (C2): a map from
// queueKey to a tail task, chaining submissions so that at most one task per
// queueKey runs at a time when the backend requires serialization.
//
// Grounded on the mutex-protected map idiom used throughout
// internal/ai/subagent_manager.go (sync.RWMutex guarding a map[string]*T),
// generalized here to chain futures instead of guarding counts.
package queue

import (
	"context"
	"sync"

	"github.com/openclaw/subagent-core/internal/coretypes"
)

// Task is the unit of work submitted to a queue: it must not block forever
// and should honor ctx cancellation.
type Task func(ctx context.Context) error

// tailEntry is the currently-chained tail for one queueKey. Submit compares
// by pointer identity against this value to decide whether it "owns" the
// map entry when its own task finishes.
type tailEntry struct {
	done chan struct{}
}

// Queue serializes or parallelizes runs per backend according to
// BackendSpec.Serialize.
type Queue struct {
	mu sync.Mutex
	tails map[string]*tailEntry
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{tails: make(map[string]*tailEntry)}
}

// KeyFor computes the queueKey for a backend/run pair:
// backendId alone when serialize=true, else backendId+":"+runId.
func KeyFor(backendID string, runID string, serialize bool) string {
	if serialize {
		return backendID
	}
	return backendID + ":" + runID
}

// Submit chains task after the existing tail for queueKey (if any),
// ignoring whether that prior task succeeded or failed, and replaces the
// map entry with the new tail. The entry is erased once this task's tail
// finishes, but only if no later Submit has replaced it in the meantime.
//
// Submit itself does not block; it returns a channel that closes when task
// has run to completion (or ctx was canceled before its turn arrived).
func (q *Queue) Submit(ctx context.Context, queueKey string, task Task) <-chan error {
	resultCh := make(chan error, 1)

	q.mu.Lock()
	prev := q.tails[queueKey]
	self := &tailEntry{done: make(chan struct{})}
	q.tails[queueKey] = self
	q.mu.Unlock()

	go func() {
		defer close(self.done)
		defer func() {
			q.mu.Lock()
			if q.tails[queueKey] == self {
				delete(q.tails, queueKey)
			}
			q.mu.Unlock()
		}()

		if prev != nil {
			select {
			case <-prev.done:
			case <-ctx.Done():
				resultCh <- ctx.Err()
				close(resultCh)
				return
			}
		}

		err := task(ctx)
		resultCh <- err
		close(resultCh)
	}()

	return resultCh
}

// SubmitRun is a convenience wrapper computing the queueKey from a
// BackendSpec and RunRequest.
func (q *Queue) SubmitRun(ctx context.Context, backendID string, spec coretypes.BackendSpec, req coretypes.RunRequest, task Task) <-chan error {
	key := KeyFor(backendID, req.RunID, spec.Serialize)
	return q.Submit(ctx, key, task)
}

// Depth reports how many queueKeys currently have an in-flight tail. Useful
// for tests and diagnostics only.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tails)
}
