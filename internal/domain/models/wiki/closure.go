package wiki

// ClosureEdge is one (ancestor, descendant, distance) triple of the
// materialized hierarchy index. Every node owns a self-edge at distance 0.
// The set is derived state: it is fully recomputable from the parent
// pointers and is written only by the node repository's structural paths.
type ClosureEdge struct {
	AncestorID   string `json:"ancestor_id" db:"ancestor_id"`
	DescendantID string `json:"descendant_id" db:"descendant_id"`
	Depth        int    `json:"depth" db:"depth"`
}
