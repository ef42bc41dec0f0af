package wiki

import (
	"context"

	"arbor/internal/domain/models/wiki"
)

// NotificationService surfaces unresolved permission logs per operator and
// records per-operator dismissals. Dismissal is bookkeeping only: it never
// changes the underlying log's action or resolution fields.
type NotificationService interface {
	// ListUnread returns DETECTED logs the operator has not dismissed.
	ListUnread(ctx context.Context, operatorID string) ([]wiki.PermissionLog, error)

	// ListLogs returns the full audit trail filtered by resolution state
	// (nil = all), regardless of dismissals.
	ListLogs(ctx context.Context, resolved *bool, limit int) ([]wiki.PermissionLog, error)

	// Dismiss records suppression rows for the given log ids, skipping ids
	// that resolve to no log and ids already dismissed by this operator,
	// and reports exact per-outcome counts.
	Dismiss(ctx context.Context, logIDs []string, operatorID string) (*wiki.DismissResult, error)
}
