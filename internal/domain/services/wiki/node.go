package wiki

import (
	"context"

	"arbor/internal/domain/models/wiki"
)

// CreateFolderRequest creates a folder node.
type CreateFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	// Folders default to public (no restriction).
	IsPublic      *bool    `json:"is_public,omitempty"`
	DepartmentIDs []string `json:"permission_department_ids,omitempty"`
	RankIDs       []string `json:"permission_rank_ids,omitempty"`
	PositionIDs   []string `json:"permission_position_ids,omitempty"`
	OperatorID    string   `json:"-"`
}

// CreateFileRequest creates a file node. Files never carry their own
// restriction lists; IsPublic=false makes the file fully private,
// IsPublic=true (the default) inherits the nearest ancestor folder's policy.
type CreateFileRequest struct {
	Name        string         `json:"name"`
	ParentID    *string        `json:"parent_id,omitempty"`
	IsPublic    *bool          `json:"is_public,omitempty"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Attachment  *wiki.BlobRef  `json:"attachment,omitempty"`
	Attachments []wiki.BlobRef `json:"attachments,omitempty"`
	OperatorID  string         `json:"-"`
}

// RenameRequest renames a node.
type RenameRequest struct {
	Name       string `json:"name"`
	OperatorID string `json:"-"`
}

// MoveRequest re-parents a node. Nil ParentID moves it to the root. A
// non-nil Name renames the node in the same transaction, so a combined
// rename-and-move commits or fails as one.
type MoveRequest struct {
	ParentID   *string `json:"parent_id"`
	Name       *string `json:"name,omitempty"`
	OperatorID string  `json:"-"`
}

// UpdateContentRequest updates a file's content fields. Nil fields are left
// unchanged.
type UpdateContentRequest struct {
	Title       *string         `json:"title,omitempty"`
	Body        *string         `json:"body,omitempty"`
	IsPublic    *bool           `json:"is_public,omitempty"`
	Attachment  **wiki.BlobRef  `json:"-"`
	Attachments *[]wiki.BlobRef `json:"attachments,omitempty"`
	OperatorID  string          `json:"-"`
}

// UpdatePermissionsRequest replaces a folder's access policy. Setting
// IsPublic clears the three id lists.
type UpdatePermissionsRequest struct {
	IsPublic      bool     `json:"is_public"`
	DepartmentIDs []string `json:"permission_department_ids,omitempty"`
	RankIDs       []string `json:"permission_rank_ids,omitempty"`
	PositionIDs   []string `json:"permission_position_ids,omitempty"`
	OperatorID    string   `json:"-"`
}

// NodeService owns every structural and content mutation of the tree, and is
// the only writer of the closure index (through its repository).
type NodeService interface {
	CreateFolder(ctx context.Context, req *CreateFolderRequest) (*wiki.Node, error)
	CreateFile(ctx context.Context, req *CreateFileRequest) (*wiki.Node, error)
	Rename(ctx context.Context, id string, req *RenameRequest) (*wiki.Node, error)
	Move(ctx context.Context, id string, req *MoveRequest) (*wiki.Node, error)
	UpdateContent(ctx context.Context, id string, req *UpdateContentRequest) (*wiki.Node, error)
	UpdatePermissions(ctx context.Context, id string, req *UpdatePermissionsRequest) (*wiki.Node, error)

	// Delete soft-deletes the node and, by closure cascade, every
	// descendant. Returns the number of nodes removed.
	Delete(ctx context.Context, id string, operatorID string) (int, error)

	GetByID(ctx context.Context, id string) (*wiki.Node, error)
	GetChildren(ctx context.Context, parentID *string) ([]wiki.Node, error)

	// GetStructure builds the nested tree under ancestorID, or the whole
	// forest when ancestorID is nil.
	GetStructure(ctx context.Context, ancestorID *string) ([]*wiki.TreeNode, error)

	Search(ctx context.Context, query string, limit int) ([]wiki.Node, error)

	// Path returns the display path of a node ("Docs/HR/policy.doc").
	Path(ctx context.Context, id string) (string, error)
}
