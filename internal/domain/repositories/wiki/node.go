package wiki

import (
	"context"

	"arbor/internal/domain/models/wiki"
)

// NodeRepository persists tree nodes. Structural writes (Create, Move,
// SoftDeleteSubtree) also maintain the closure index inside the caller's
// transaction; no other component writes closure edges.
type NodeRepository interface {
	// Create inserts the node and its closure edges (self-edge plus one
	// edge per ancestor of the parent). Fills ID and timestamps.
	Create(ctx context.Context, node *wiki.Node) error

	// GetByID returns a live (not soft-deleted) node.
	GetByID(ctx context.Context, id string) (*wiki.Node, error)

	// GetByIDForUpdate loads the node under an exclusive row lock. Must be
	// called inside a transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*wiki.Node, error)

	// Update persists name, parent pointer, depth, policy and content
	// fields with an optimistic version check: the row's version must still
	// equal node.Version, and is bumped on success.
	Update(ctx context.Context, node *wiki.Node) error

	// ListChildren returns the live immediate children of a node, or the
	// roots when parentID is nil, ordered by sort order then name.
	ListChildren(ctx context.Context, parentID *string) ([]wiki.Node, error)

	// ListSubtree returns every live node of the subtree rooted at
	// ancestorID (the root included), via the closure index.
	ListSubtree(ctx context.Context, ancestorID string) ([]wiki.Node, error)

	// ListRestricted returns live folders carrying at least one non-empty
	// permission id list. Detector input.
	ListRestricted(ctx context.Context) ([]wiki.Node, error)

	// Move re-parents the node: updates its parent pointer, shifts the
	// depth of the whole subtree by delta, and rewrites every closure edge
	// crossing the subtree boundary. Must run inside a transaction.
	Move(ctx context.Context, node *wiki.Node, newParentID *string, depthDelta int) error

	// SoftDeleteSubtree marks the node and all descendants deleted, by
	// closure lookup rather than recursion.
	SoftDeleteSubtree(ctx context.Context, id string) (int, error)

	// IsDescendant reports whether candidate lies in the subtree rooted at
	// ancestorID (self included, via the self-edge).
	IsDescendant(ctx context.Context, ancestorID, candidateID string) (bool, error)

	// NearestAncestorFolder returns the closest live ancestor folder of the
	// node, or nil when the node has none.
	NearestAncestorFolder(ctx context.Context, id string) (*wiki.Node, error)

	// Path returns the node's ancestor chain root-first, self included.
	Path(ctx context.Context, id string) ([]wiki.Node, error)

	// Search matches live file titles and bodies against the query.
	Search(ctx context.Context, query string, limit int) ([]wiki.Node, error)
}
