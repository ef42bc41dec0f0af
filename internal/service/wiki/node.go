package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"arbor/internal/config"
	"arbor/internal/domain"
	models "arbor/internal/domain/models/wiki"
	"arbor/internal/domain/repositories"
	wikiRepo "arbor/internal/domain/repositories/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
)

type nodeService struct {
	nodeRepo  wikiRepo.NodeRepository
	txManager repositories.TransactionManager
	clock     Clock
	logger    *slog.Logger
}

// NewNodeService creates a new node service.
func NewNodeService(
	nodeRepo wikiRepo.NodeRepository,
	txManager repositories.TransactionManager,
	clock Clock,
	logger *slog.Logger,
) wikiSvc.NodeService {
	return &nodeService{
		nodeRepo:  nodeRepo,
		txManager: txManager,
		clock:     clock,
		logger:    logger,
	}
}

// CreateFolder creates a folder. Folders default to public; a non-public
// folder may carry any of the three permission id lists.
func (s *nodeService) CreateFolder(ctx context.Context, req *wikiSvc.CreateFolderRequest) (*models.Node, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxNodeNameLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := requireOptionalUUID("parent_id", req.ParentID); err != nil {
		return nil, err
	}
	if err := requireUUID("operator_id", req.OperatorID); err != nil {
		return nil, err
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	now := s.clock.Now()
	node := &models.Node{
		Type:      models.NodeTypeFolder,
		Name:      strings.TrimSpace(req.Name),
		ParentID:  req.ParentID,
		IsPublic:  isPublic,
		Folder:    &models.FolderPolicy{},
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: req.OperatorID,
		UpdatedBy: req.OperatorID,
	}
	if !isPublic {
		node.Folder.DepartmentIDs = req.DepartmentIDs
		node.Folder.RankIDs = req.RankIDs
		node.Folder.PositionIDs = req.PositionIDs
	}

	if err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.place(txCtx, node, true)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("folder created", "node_id", node.ID, "parent_id", req.ParentID, "operator", req.OperatorID)
	return node, nil
}

// CreateFile creates a file. Files never carry restriction lists of their
// own; IsPublic=false makes the file private to everyone.
func (s *nodeService) CreateFile(ctx context.Context, req *wikiSvc.CreateFileRequest) (*models.Node, error) {
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxNodeNameLength)),
		validation.Field(&req.Title, validation.Required, validation.Length(1, config.MaxTitleLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := requireOptionalUUID("parent_id", req.ParentID); err != nil {
		return nil, err
	}
	if err := requireUUID("operator_id", req.OperatorID); err != nil {
		return nil, err
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	now := s.clock.Now()
	node := &models.Node{
		Type:     models.NodeTypeFile,
		Name:     strings.TrimSpace(req.Name),
		ParentID: req.ParentID,
		IsPublic: isPublic,
		File: &models.FileContent{
			Title:       req.Title,
			Body:        SanitizeBody(req.Body),
			Attachment:  req.Attachment,
			Attachments: req.Attachments,
		},
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: req.OperatorID,
		UpdatedBy: req.OperatorID,
	}

	if err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.place(txCtx, node, false)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("file created", "node_id", node.ID, "parent_id", req.ParentID, "operator", req.OperatorID)
	return node, nil
}

// place validates the parent, assigns depth and sort order, checks sibling
// collisions for folders, and inserts the node with its closure edges.
// Runs inside the caller's transaction.
func (s *nodeService) place(ctx context.Context, node *models.Node, uniqueName bool) error {
	if node.ParentID != nil {
		parent, err := s.nodeRepo.GetByID(ctx, *node.ParentID)
		if err != nil {
			return fmt.Errorf("parent folder: %w", err)
		}
		if !parent.IsFolder() {
			return fmt.Errorf("%w: parent %s is not a folder", domain.ErrValidation, parent.ID)
		}
		node.Depth = parent.Depth + 1
	}

	siblings, err := s.nodeRepo.ListChildren(ctx, node.ParentID)
	if err != nil {
		return err
	}
	if uniqueName {
		for _, sibling := range siblings {
			if sibling.IsFolder() && sibling.Name == node.Name {
				return &domain.ConflictError{
					Message:      fmt.Sprintf("a folder named %q already exists in this location", node.Name),
					ResourceType: "folder",
					ResourceID:   sibling.ID,
				}
			}
		}
	}
	node.SortOrder = nextSortOrder(siblings)

	return s.nodeRepo.Create(ctx, node)
}

// Rename changes a node's display name.
func (s *nodeService) Rename(ctx context.Context, id string, req *wikiSvc.RenameRequest) (*models.Node, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(req,
		validation.Field(&req.Name, validation.Required, validation.Length(1, config.MaxNodeNameLength)),
	); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := requireUUID("operator_id", req.OperatorID); err != nil {
		return nil, err
	}

	var node *models.Node
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		node, err = s.nodeRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		name := strings.TrimSpace(req.Name)
		if node.IsFolder() {
			siblings, err := s.nodeRepo.ListChildren(txCtx, node.ParentID)
			if err != nil {
				return err
			}
			for _, sibling := range siblings {
				if sibling.ID != node.ID && sibling.IsFolder() && sibling.Name == name {
					return &domain.ConflictError{
						Message:      fmt.Sprintf("a folder named %q already exists in this location", name),
						ResourceType: "folder",
						ResourceID:   sibling.ID,
					}
				}
			}
		}

		node.Name = name
		node.UpdatedBy = req.OperatorID
		return s.nodeRepo.Update(txCtx, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Move re-parents a node. The whole subtree's depth and every closure edge
// crossing the subtree boundary are rewritten within one transaction; the
// row lock on the subtree root serializes concurrent structural edits.
func (s *nodeService) Move(ctx context.Context, id string, req *wikiSvc.MoveRequest) (*models.Node, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	if err := requireOptionalUUID("parent_id", req.ParentID); err != nil {
		return nil, err
	}
	if err := requireUUID("operator_id", req.OperatorID); err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := validation.Validate(*req.Name, validation.Required, validation.Length(1, config.MaxNodeNameLength)); err != nil {
			return nil, fmt.Errorf("%w: name: %v", domain.ErrValidation, err)
		}
	}

	var node *models.Node
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		node, err = s.nodeRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}

		newDepth := 0
		if req.ParentID != nil {
			if *req.ParentID == node.ID {
				return &domain.InvalidMoveError{Message: "cannot move a node under itself"}
			}

			parent, err := s.nodeRepo.GetByID(txCtx, *req.ParentID)
			if err != nil {
				return fmt.Errorf("target folder: %w", err)
			}
			if !parent.IsFolder() {
				return &domain.InvalidMoveError{Message: fmt.Sprintf("target %s is not a folder", parent.ID)}
			}

			descendant, err := s.nodeRepo.IsDescendant(txCtx, node.ID, *req.ParentID)
			if err != nil {
				return err
			}
			if descendant {
				return &domain.InvalidMoveError{Message: "cannot move a node under its own descendant"}
			}
			newDepth = parent.Depth + 1
		}

		node.UpdatedBy = req.OperatorID
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if node.IsFolder() {
				siblings, err := s.nodeRepo.ListChildren(txCtx, req.ParentID)
				if err != nil {
					return err
				}
				for _, sibling := range siblings {
					if sibling.ID != node.ID && sibling.IsFolder() && sibling.Name == name {
						return &domain.ConflictError{
							Message:      fmt.Sprintf("a folder named %q already exists in this location", name),
							ResourceType: "folder",
							ResourceID:   sibling.ID,
						}
					}
				}
			}
			node.Name = name
			if err := s.nodeRepo.Update(txCtx, node); err != nil {
				return err
			}
		}

		return s.nodeRepo.Move(txCtx, node, req.ParentID, newDepth-node.Depth)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("node moved", "node_id", id, "new_parent_id", req.ParentID, "operator", req.OperatorID)
	return node, nil
}

// UpdateContent updates a file's content fields. Rejected for folders.
func (s *nodeService) UpdateContent(ctx context.Context, id string, req *wikiSvc.UpdateContentRequest) (*models.Node, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	if err := requireUUID("operator_id", req.OperatorID); err != nil {
		return nil, err
	}
	if req.Title != nil {
		if err := validation.Validate(*req.Title, validation.Required, validation.Length(1, config.MaxTitleLength)); err != nil {
			return nil, fmt.Errorf("%w: title: %v", domain.ErrValidation, err)
		}
	}

	var node *models.Node
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		node, err = s.nodeRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !node.IsFile() {
			return fmt.Errorf("%w: node %s is a folder, not a file", domain.ErrValidation, id)
		}

		if req.Title != nil {
			node.File.Title = *req.Title
		}
		if req.Body != nil {
			node.File.Body = SanitizeBody(*req.Body)
		}
		if req.IsPublic != nil {
			node.IsPublic = *req.IsPublic
		}
		if req.Attachment != nil {
			node.File.Attachment = *req.Attachment
		}
		if req.Attachments != nil {
			node.File.Attachments = *req.Attachments
		}
		node.UpdatedBy = req.OperatorID
		return s.nodeRepo.Update(txCtx, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// UpdatePermissions replaces a folder's access policy. Files never carry
// their own lists, so the operation is rejected for them; toggling a file's
// inheritance happens through UpdateContent.
func (s *nodeService) UpdatePermissions(ctx context.Context, id string, req *wikiSvc.UpdatePermissionsRequest) (*models.Node, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	if err := requireUUID("operator_id", req.OperatorID); err != nil {
		return nil, err
	}

	var node *models.Node
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		var err error
		node, err = s.nodeRepo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if !node.IsFolder() {
			return fmt.Errorf("%w: node %s is a file; files cannot carry permission lists", domain.ErrValidation, id)
		}

		node.IsPublic = req.IsPublic
		if req.IsPublic {
			node.Folder = &models.FolderPolicy{}
		} else {
			node.Folder = &models.FolderPolicy{
				DepartmentIDs: req.DepartmentIDs,
				RankIDs:       req.RankIDs,
				PositionIDs:   req.PositionIDs,
			}
		}
		node.UpdatedBy = req.OperatorID
		return s.nodeRepo.Update(txCtx, node)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("permissions updated", "node_id", id, "is_public", req.IsPublic, "operator", req.OperatorID)
	return node, nil
}

// Delete soft-deletes the node and every descendant in one transaction.
func (s *nodeService) Delete(ctx context.Context, id string, operatorID string) (int, error) {
	if err := requireUUID("id", id); err != nil {
		return 0, err
	}
	if err := requireUUID("operator_id", operatorID); err != nil {
		return 0, err
	}

	var removed int
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if _, err := s.nodeRepo.GetByIDForUpdate(txCtx, id); err != nil {
			return err
		}
		var err error
		removed, err = s.nodeRepo.SoftDeleteSubtree(txCtx, id)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("subtree deleted", "node_id", id, "removed", removed, "operator", operatorID)
	return removed, nil
}

// GetByID retrieves a live node.
func (s *nodeService) GetByID(ctx context.Context, id string) (*models.Node, error) {
	if err := requireUUID("id", id); err != nil {
		return nil, err
	}
	return s.nodeRepo.GetByID(ctx, id)
}

// GetChildren lists immediate children, roots when parentID is nil.
func (s *nodeService) GetChildren(ctx context.Context, parentID *string) ([]models.Node, error) {
	if err := requireOptionalUUID("parent_id", parentID); err != nil {
		return nil, err
	}
	return s.nodeRepo.ListChildren(ctx, parentID)
}

// GetStructure builds the nested tree under ancestorID, or the whole forest
// when ancestorID is nil. Two passes over a flat subtree listing; no
// recursive queries.
func (s *nodeService) GetStructure(ctx context.Context, ancestorID *string) ([]*models.TreeNode, error) {
	if err := requireOptionalUUID("ancestor_id", ancestorID); err != nil {
		return nil, err
	}

	var nodes []models.Node
	if ancestorID != nil {
		subtree, err := s.nodeRepo.ListSubtree(ctx, *ancestorID)
		if err != nil {
			return nil, err
		}
		if len(subtree) == 0 {
			return nil, fmt.Errorf("node %s: %w", *ancestorID, domain.ErrNotFound)
		}
		nodes = subtree
	} else {
		roots, err := s.nodeRepo.ListChildren(ctx, nil)
		if err != nil {
			return nil, err
		}
		for _, root := range roots {
			subtree, err := s.nodeRepo.ListSubtree(ctx, root.ID)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, subtree...)
		}
	}

	// First pass: materialize tree nodes.
	byID := make(map[string]*models.TreeNode, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = &models.TreeNode{
			ID:        n.ID,
			Type:      n.Type,
			Name:      n.Name,
			Depth:     n.Depth,
			SortOrder: n.SortOrder,
			IsPublic:  n.IsPublic,
			UpdatedAt: n.UpdatedAt,
		}
	}

	// Second pass: connect children to parents; nodes whose parent falls
	// outside the listing become roots of the result.
	var result []*models.TreeNode
	for _, n := range nodes {
		tn := byID[n.ID]
		if n.ParentID != nil {
			if parent, ok := byID[*n.ParentID]; ok {
				parent.Children = append(parent.Children, tn)
				continue
			}
		}
		result = append(result, tn)
	}

	// Resolved display paths, root-first.
	for _, root := range result {
		fillPaths(root, "")
	}
	return result, nil
}

// Search matches file names, titles and bodies.
func (s *nodeService) Search(ctx context.Context, query string, limit int) ([]models.Node, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", domain.ErrValidation)
	}
	if limit <= 0 {
		limit = config.DefaultSearchLimit
	}
	if limit > config.MaxSearchLimit {
		limit = config.MaxSearchLimit
	}
	return s.nodeRepo.Search(ctx, query, limit)
}

// Path returns the display path of a node ("Docs/HR/policy.doc").
func (s *nodeService) Path(ctx context.Context, id string) (string, error) {
	if err := requireUUID("id", id); err != nil {
		return "", err
	}

	chain, err := s.nodeRepo.Path(ctx, id)
	if err != nil {
		return "", err
	}
	if len(chain) == 0 {
		return "", fmt.Errorf("node %s: %w", id, domain.ErrNotFound)
	}

	names := make([]string, len(chain))
	for i, n := range chain {
		names[i] = n.Name
	}
	return strings.Join(names, "/"), nil
}

func fillPaths(tn *models.TreeNode, parentPath string) {
	if parentPath == "" {
		tn.Path = tn.Name
	} else {
		tn.Path = parentPath + "/" + tn.Name
	}
	for _, child := range tn.Children {
		fillPaths(child, tn.Path)
	}
}

func nextSortOrder(siblings []models.Node) int {
	max := -1
	for _, s := range siblings {
		if s.SortOrder > max {
			max = s.SortOrder
		}
	}
	return max + 1
}
