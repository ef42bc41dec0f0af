package wiki

import (
	"context"
	"time"

	"arbor/internal/domain/models/wiki"
)

// PermissionLogRepository persists the append-mostly audit trail. Rows are
// never deleted; the only mutation is writing resolution fields onto an open
// DETECTED row.
type PermissionLogRepository interface {
	// Create inserts a new log entry and fills its ID.
	Create(ctx context.Context, log *wiki.PermissionLog) error

	// GetOpenByNode returns the unresolved DETECTED entry for the node, or
	// nil when none exists. At most one open entry per node is maintained.
	GetOpenByNode(ctx context.Context, nodeID string) (*wiki.PermissionLog, error)

	// Resolve flips an open entry to RESOLVED, setting resolvedAt and
	// resolvedBy (nil for system-initiated resolution) and appending the
	// note. Already-RESOLVED rows are never touched; resolving one returns
	// domain.ErrNotFound.
	Resolve(ctx context.Context, logID string, resolvedAt time.Time, resolvedBy *string, note string) error

	// List returns entries filtered by resolution state, newest first.
	// resolved == nil lists everything.
	List(ctx context.Context, resolved *bool, limit int) ([]wiki.PermissionLog, error)

	// ListOpenNodeIDs returns the node ids carrying an unresolved DETECTED
	// entry.
	ListOpenNodeIDs(ctx context.Context) ([]string, error)

	// ListUnresolvedExcludingDismissed returns DETECTED entries the given
	// operator has not dismissed, newest first.
	ListUnresolvedExcludingDismissed(ctx context.Context, operatorID string) ([]wiki.PermissionLog, error)

	// Exists reports whether a log row with the id exists.
	Exists(ctx context.Context, logID string) (bool, error)
}

// DismissalRepository persists per-operator suppression rows.
type DismissalRepository interface {
	// Dismiss upserts the suppression row. Returns false when the row
	// already existed (dismissing twice is a no-op, not an error).
	Dismiss(ctx context.Context, d *wiki.DismissedLog) (bool, error)

	// ListByOperator returns the log ids the operator has dismissed for the
	// given log type.
	ListByOperator(ctx context.Context, logType, operatorID string) ([]string, error)
}
