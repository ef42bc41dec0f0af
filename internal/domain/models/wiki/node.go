package wiki

import (
	"time"
)

// NodeType tags a node as a folder or a file.
type NodeType string

const (
	NodeTypeFolder NodeType = "folder"
	NodeTypeFile   NodeType = "file"
)

// Node is a single entry in the wiki hierarchy. The Folder and File payloads
// are mutually exclusive: exactly one of them is non-nil, matching Type.
// Persistence flattens both into one physical table; the tagged payloads keep
// type-conditional fields out of reach for the wrong node kind.
type Node struct {
	ID        string   `json:"id" db:"id"`
	Type      NodeType `json:"type" db:"node_type"`
	Name      string   `json:"name" db:"name"`
	ParentID  *string  `json:"parent_id" db:"parent_id"` // NULL = root level
	Depth     int      `json:"depth" db:"depth"`
	SortOrder int      `json:"sort_order" db:"sort_order"`

	// IsPublic means "no restriction" on a folder. On a file it controls
	// inheritance: true defers to the nearest ancestor folder, false makes
	// the file private to everyone.
	IsPublic bool `json:"is_public" db:"is_public"`

	Folder *FolderPolicy `json:"folder,omitempty"`
	File   *FileContent  `json:"file,omitempty"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedBy string     `json:"created_by" db:"created_by"`
	UpdatedBy string     `json:"updated_by" db:"updated_by"`
	Version   int        `json:"version" db:"version"`
}

// FolderPolicy is the access restriction carried by a folder. All three id
// lists are ignored while IsPublic is true. Empty lists contribute nothing
// to the OR condition.
type FolderPolicy struct {
	DepartmentIDs []string `json:"permission_department_ids"`
	RankIDs       []string `json:"permission_rank_ids"`
	PositionIDs   []string `json:"permission_position_ids"`
}

// HasRestrictions reports whether any of the three id lists is non-empty.
func (p *FolderPolicy) HasRestrictions() bool {
	if p == nil {
		return false
	}
	return len(p.DepartmentIDs) > 0 || len(p.RankIDs) > 0 || len(p.PositionIDs) > 0
}

// FileContent is the content payload carried by a file node.
type FileContent struct {
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Attachment  *BlobRef  `json:"attachment,omitempty"`
	Attachments []BlobRef `json:"attachments,omitempty"`
}

// BlobRef points at an uploaded blob in external storage.
type BlobRef struct {
	FileName string `json:"file_name"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool { return n.Type == NodeTypeFolder }

// IsFile reports whether the node is a file.
func (n *Node) IsFile() bool { return n.Type == NodeTypeFile }

// Policy returns the folder's restriction lists, or nil for files.
func (n *Node) Policy() *FolderPolicy {
	if n.IsFolder() {
		return n.Folder
	}
	return nil
}
