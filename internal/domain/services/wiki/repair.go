package wiki

import (
	"context"
)

// Remap replaces one stale identifier with its successor.
type Remap struct {
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`
}

// RepairRequest is an operator-initiated permission repair on one node.
type RepairRequest struct {
	Departments []Remap `json:"departments,omitempty"`
	Ranks       []Remap `json:"ranks,omitempty"`
	Positions   []Remap `json:"positions,omitempty"`
	Note        string  `json:"note,omitempty"`
	OperatorID  string  `json:"-"`
}

// RepairResult reports the outcome of a repair.
type RepairResult struct {
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	ReplacedDepartments int    `json:"replaced_departments"`
	ReplacedRanks       int    `json:"replaced_ranks"`
	ReplacedPositions   int    `json:"replaced_positions"`
}

// RepairService atomically remaps stale permission identifiers on a node.
// The node row is locked for the duration of the transaction, so concurrent
// repairs on the same node serialize; the node update and its RESOLVED audit
// entry commit together or not at all.
type RepairService interface {
	ReplacePermissions(ctx context.Context, nodeID string, req *RepairRequest) (*RepairResult, error)
}
