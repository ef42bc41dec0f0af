// Package identity wraps the external identity/directory provider. The wiki
// core treats it as a black box returning department/rank/position
// membership data; nothing here is a source of truth for this service.
package identity

import (
	"context"
)

// OrgUnit is one department, rank or position as known upstream.
type OrgUnit struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// OrgSnapshot is the full set of identifiers known to the directory at one
// point in time. Inactive entries are included so callers can distinguish
// soft-retired identifiers from ones that never existed.
type OrgSnapshot struct {
	Departments []OrgUnit `json:"departments"`
	Ranks       []OrgUnit `json:"ranks"`
	Positions   []OrgUnit `json:"positions"`
}

// IDSet classifies one category's identifiers.
type IDSet struct {
	Active   map[string]struct{}
	Inactive map[string]struct{}
}

// Contains reports whether the id is active upstream.
func (s IDSet) Contains(id string) bool {
	_, ok := s.Active[id]
	return ok
}

// Retired reports whether the id exists upstream but is deactivated.
func (s IDSet) Retired(id string) bool {
	_, ok := s.Inactive[id]
	return ok
}

// Sets splits the snapshot into per-category id sets.
func (s *OrgSnapshot) Sets() (departments, ranks, positions IDSet) {
	return buildSet(s.Departments), buildSet(s.Ranks), buildSet(s.Positions)
}

func buildSet(units []OrgUnit) IDSet {
	set := IDSet{
		Active:   make(map[string]struct{}, len(units)),
		Inactive: make(map[string]struct{}),
	}
	for _, u := range units {
		if u.Active {
			set.Active[u.ID] = struct{}{}
		} else {
			set.Inactive[u.ID] = struct{}{}
		}
	}
	return set
}

// Lookup is the identity provider contract consumed by the detector and the
// access check path.
type Lookup interface {
	// ListMemberships returns the org snapshot. When includeInactive is
	// false, deactivated entries are omitted.
	ListMemberships(ctx context.Context, includeInactive bool) (*OrgSnapshot, error)

	// ResolveNames maps identifier codes to display names. Unknown ids are
	// absent from the result, not an error.
	ResolveNames(ctx context.Context, ids []string) (map[string]string, error)
}
