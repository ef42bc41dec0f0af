package wiki

import (
	"time"
)

// LogTypeWikiPermission is the log family covered by this subsystem. The
// column exists so other CMS log families can share the dismissal table.
const LogTypeWikiPermission = "wiki-permission"

// DismissedLog is a per-operator "don't show again" marker over a
// permission log entry. It never affects the log's own state; the same log
// stays visible to every other operator and in full-audit listings.
// Unique per (LogType, LogID, OperatorID); dismissing twice is a no-op.
type DismissedLog struct {
	LogType     string    `json:"log_type" db:"log_type"`
	LogID       string    `json:"log_id" db:"log_id"`
	OperatorID  string    `json:"operator_id" db:"operator_id"`
	DismissedAt time.Time `json:"dismissed_at" db:"dismissed_at"`
}

// DismissResult reports the per-id outcome of a batch dismissal.
type DismissResult struct {
	Dismissed        int `json:"dismissed"`
	AlreadyDismissed int `json:"already_dismissed"`
	NotFound         int `json:"not_found"`
}
