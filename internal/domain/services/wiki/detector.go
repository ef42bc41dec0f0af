package wiki

import (
	"context"
)

// SweepStats summarizes one detector pass.
type SweepStats struct {
	Scanned        int `json:"scanned"`
	Detected       int `json:"detected"`
	SystemResolved int `json:"system_resolved"`
}

// DetectorService cross-checks every restricted folder's permission ids
// against the external identity source. Sweeps are idempotent: re-running
// with no upstream changes creates no duplicate DETECTED entries, and a
// previously flagged node whose ids all resolve again is system-resolved
// (resolvedBy=null) in the same pass, best-effort.
type DetectorService interface {
	// Sweep runs one full detection pass. An identity lookup failure
	// degrades the whole pass (no node is touched) and is reported to the
	// caller for logging, never to end users.
	Sweep(ctx context.Context) (*SweepStats, error)

	// CheckNode runs detection for a single node. Used by the scheduler's
	// opportunistic nudge path.
	CheckNode(ctx context.Context, nodeID string) error

	// Nudge asynchronously requests a single-node check. Never blocks;
	// drops the request when the backlog is full.
	Nudge(nodeID string)
}
