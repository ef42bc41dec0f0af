package wiki

import (
	"time"
)

// TreeNode is one entry of the nested structure returned by the structure
// endpoint. Children are ordered by sort order, then name.
type TreeNode struct {
	ID        string      `json:"id"`
	Type      NodeType    `json:"type"`
	Name      string      `json:"name"`
	Path      string      `json:"path"`
	Depth     int         `json:"depth"`
	SortOrder int         `json:"sort_order"`
	IsPublic  bool        `json:"is_public"`
	UpdatedAt time.Time   `json:"updated_at"`
	Children  []*TreeNode `json:"children,omitempty"`
}
