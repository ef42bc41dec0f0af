package models

import "github.com/golang-jwt/jwt/v5"

// OperatorClaims is the JWT claims structure issued by the identity provider.
// Membership claims mirror the directory's department/rank/position codes and
// feed the access check without an extra directory round trip.
type OperatorClaims struct {
	jwt.RegisteredClaims          // Standard JWT claims (sub, iss, aud, exp, iat, etc.)
	Email                string   `json:"email"`
	Role                 string   `json:"role"` // "authenticated" or "anon"
	DepartmentIDs        []string `json:"department_ids"`
	RankIDs              []string `json:"rank_ids"`
	PositionIDs          []string `json:"position_ids"`
	SessionID            string   `json:"session_id"`
}

// GetOperatorID returns the operator id from the JWT subject claim.
// This is the primary identifier for the authenticated operator.
func (c *OperatorClaims) GetOperatorID() string {
	return c.Subject
}
