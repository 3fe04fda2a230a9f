package subagent

import "context"

// contextKeySpawnDepth carries how many subagent-spawn hops deep the
// current run is, so ReserveSlot can enforce MaxSpawnDepth.
//
// Grounded on other_examples/jholhewres-goclaw__subagent.go's
// contextKeySpawnDepth/SpawnDepthFromContext/ContextWithSpawnDepth
// (SUPPLEMENTED FEATURES item 1).
type contextKeySpawnDepth struct{}

// DefaultMaxSpawnDepth matches the reference implementation's
// no-nesting-by-default posture.
const DefaultMaxSpawnDepth = 1

// SpawnDepthFromContext returns the current spawn depth, 0 at the top
// level (a run started directly by a user message, not by another
// subagent).
func SpawnDepthFromContext(ctx context.Context) int {
	if v := ctx.Value(contextKeySpawnDepth{}); v != nil {
		if d, ok := v.(int); ok {
			return d
		}
	}
	return 0
}

// ContextWithSpawnDepth returns a child context carrying depth, to be
// used as the context a spawned child's run (and its ReserveSlot calls)
// executes with.
func ContextWithSpawnDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, contextKeySpawnDepth{}, depth)
}

// CheckSpawnDepth reports whether a spawn at the given depth is allowed
// under maxDepth. maxDepth<=0 falls back to DefaultMaxSpawnDepth.
func CheckSpawnDepth(ctx context.Context, maxDepth int) bool {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxSpawnDepth
	}
	return SpawnDepthFromContext(ctx) < maxDepth
}
