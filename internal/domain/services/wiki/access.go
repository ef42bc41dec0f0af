package wiki

import (
	"context"

	"arbor/internal/domain/models/wiki"
)

// AccessService computes effective access policies by applying the cascade
// rules: files with is_public=false are private to everyone, files with
// is_public=true defer to the nearest ancestor folder, and folders are
// always authoritative for themselves. Pure reads, no side effects.
type AccessService interface {
	// Resolve returns the policy actually governing the node, with
	// inheritance metadata for the UI.
	Resolve(ctx context.Context, nodeID string) (*wiki.EffectivePolicy, error)

	// Check resolves the node's policy and evaluates it against the
	// principal's memberships. A nil principal carries no memberships.
	Check(ctx context.Context, nodeID string, principal *wiki.Principal) (*wiki.AccessDecision, error)
}
