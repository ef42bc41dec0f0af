package wiki

import (
	"time"
)

// LogAction is the lifecycle state of a permission audit entry.
type LogAction string

const (
	LogActionDetected LogAction = "DETECTED"
	LogActionResolved LogAction = "RESOLVED"
	// Reserved states; written by no current code path but accepted on read.
	LogActionNotified LogAction = "NOTIFIED"
	LogActionRemoved  LogAction = "REMOVED"
)

// PermissionLog is the audit record of a detected or resolved authorization
// inconsistency on a node. Rows are never deleted. Resolution does not create
// a second row: the open DETECTED row gains its resolution fields and flips
// action to RESOLVED.
type PermissionLog struct {
	ID     string `json:"id" db:"id"`
	NodeID string `json:"node_id" db:"node_id"`

	// Which identifier codes failed to resolve upstream, per category.
	InvalidDepartmentIDs []string `json:"invalid_department_ids"`
	InvalidRankIDs       []string `json:"invalid_rank_ids"`
	InvalidPositionIDs   []string `json:"invalid_position_ids"`

	// Snapshot of the node's permission configuration at detection time.
	Snapshot PolicySnapshot `json:"snapshot"`

	Action LogAction `json:"action" db:"action"`
	Note   string    `json:"note" db:"note"`

	DetectedAt time.Time  `json:"detected_at" db:"detected_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	// Nil ResolvedBy on a RESOLVED row marks a system-initiated resolution
	// (upstream re-activated the identifier) rather than an operator repair.
	ResolvedBy *string `json:"resolved_by,omitempty" db:"resolved_by"`
}

// PolicySnapshot captures a folder's full permission configuration.
type PolicySnapshot struct {
	IsPublic      bool     `json:"is_public"`
	DepartmentIDs []string `json:"permission_department_ids"`
	RankIDs       []string `json:"permission_rank_ids"`
	PositionIDs   []string `json:"permission_position_ids"`
}

// SnapshotOf captures the given node's current policy.
func SnapshotOf(n *Node) PolicySnapshot {
	s := PolicySnapshot{IsPublic: n.IsPublic}
	if p := n.Policy(); p != nil {
		s.DepartmentIDs = append([]string(nil), p.DepartmentIDs...)
		s.RankIDs = append([]string(nil), p.RankIDs...)
		s.PositionIDs = append([]string(nil), p.PositionIDs...)
	}
	return s
}

// IsResolved reports whether the entry has reached its terminal state.
func (l *PermissionLog) IsResolved() bool { return l.Action == LogActionResolved }
