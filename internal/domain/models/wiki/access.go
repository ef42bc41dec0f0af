package wiki

// Principal is a requesting identity's org memberships, as reported by the
// external identity lookup. This subsystem never stores principals.
type Principal struct {
	DepartmentIDs []string `json:"department_ids"`
	RankIDs       []string `json:"rank_ids"`
	PositionIDs   []string `json:"position_ids"`
}

// EffectivePolicy is the access policy that actually governs a node after
// cascade resolution.
type EffectivePolicy struct {
	// DenyAll is set for a file with is_public=false: no principal, admin
	// reads included, may access.
	DenyAll bool `json:"deny_all"`
	// AllowAll is set when the governing folder is public, or when a
	// deferring file has no ancestor folder at all.
	AllowAll bool `json:"allow_all"`

	DepartmentIDs []string `json:"permission_department_ids,omitempty"`
	RankIDs       []string `json:"permission_rank_ids,omitempty"`
	PositionIDs   []string `json:"permission_position_ids,omitempty"`

	// IsInherited is true when the queried node was a file that deferred to
	// an ancestor folder; InheritedFrom then identifies that folder.
	IsInherited     bool    `json:"is_permission_inherited"`
	InheritedFromID *string `json:"inherited_from_id,omitempty"`
	InheritedFrom   string  `json:"inherited_from,omitempty"`
}

// AccessDecision is the outcome of checking a principal against a node.
type AccessDecision struct {
	Allowed bool             `json:"allowed"`
	Policy  *EffectivePolicy `json:"policy"`
}

// Permits evaluates the OR condition across the three membership lists.
// Empty policy lists contribute nothing; a nil principal has no memberships.
func (p *EffectivePolicy) Permits(principal *Principal) bool {
	if p.DenyAll {
		return false
	}
	if p.AllowAll {
		return true
	}
	if principal == nil {
		return false
	}
	return intersects(p.DepartmentIDs, principal.DepartmentIDs) ||
		intersects(p.RankIDs, principal.RankIDs) ||
		intersects(p.PositionIDs, principal.PositionIDs)
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
