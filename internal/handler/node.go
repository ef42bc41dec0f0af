package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"arbor/internal/blobstore"
	"arbor/internal/domain"
	"arbor/internal/domain/models/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
	"arbor/internal/httputil"
)

// NodeHandler handles folder and file HTTP requests
type NodeHandler struct {
	nodeService   wikiSvc.NodeService
	accessService wikiSvc.AccessService
	detector      wikiSvc.DetectorService
	blobs         blobstore.Client
	logger        *slog.Logger
}

// NewNodeHandler creates a new node handler. detector may be nil; when set,
// detail reads of suspicious nodes queue an opportunistic staleness check.
// blobs may be nil; when set, replaced attachments are deleted best-effort.
func NewNodeHandler(nodeService wikiSvc.NodeService, accessService wikiSvc.AccessService, detector wikiSvc.DetectorService, blobs blobstore.Client, logger *slog.Logger) *NodeHandler {
	return &NodeHandler{
		nodeService:   nodeService,
		accessService: accessService,
		detector:      detector,
		blobs:         blobs,
		logger:        logger,
	}
}

// CreateFolder creates a new folder
// POST /api/wiki/folders
// Returns 201 if created, 409 with the existing folder on a sibling name clash
func (h *NodeHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req wikiSvc.CreateFolderRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OperatorID = operatorID

	folder, err := h.nodeService.CreateFolder(r.Context(), &req)
	if err != nil {
		// On a sibling name clash, return the existing folder with 409.
		HandleCreateConflict(w, err, func() (*wiki.Node, error) {
			var conflictErr *domain.ConflictError
			if errors.As(err, &conflictErr) {
				return h.nodeService.GetByID(r.Context(), conflictErr.ResourceID)
			}
			return nil, err
		})
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, folder)
}

// CreateFile creates a new file
// POST /api/wiki/files
func (h *NodeHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req wikiSvc.CreateFileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OperatorID = operatorID

	file, err := h.nodeService.CreateFile(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, file)
}

// nodeDetailResponse is a node plus the policy actually governing it.
type nodeDetailResponse struct {
	*wiki.Node
	EffectiveAccess *wiki.EffectivePolicy `json:"effective_access,omitempty"`
}

// GetNode retrieves a node by ID
// GET /api/wiki/nodes/{id}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	node, err := h.nodeService.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	// A restricted folder whose department list has gone empty may have
	// been clobbered by upstream retirements; queue a staleness check.
	if h.detector != nil && node.IsFolder() && !node.IsPublic && len(node.Folder.DepartmentIDs) == 0 {
		h.detector.Nudge(node.ID)
	}

	resp := nodeDetailResponse{Node: node}
	if policy, err := h.accessService.Resolve(r.Context(), node.ID); err == nil {
		resp.EffectiveAccess = policy
	} else {
		h.logger.Warn("failed to resolve effective access", "node_id", node.ID, "error", err)
	}

	httputil.RespondJSON(w, http.StatusOK, resp)
}

// GetChildren lists the immediate children of a node
// GET /api/wiki/nodes/{id}/children
func (h *NodeHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	children, err := h.nodeService.GetChildren(r.Context(), &id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"children": children})
}

// ListRoots lists the root-level nodes
// GET /api/wiki/nodes
func (h *NodeHandler) ListRoots(w http.ResponseWriter, r *http.Request) {
	roots, err := h.nodeService.GetChildren(r.Context(), nil)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"children": roots})
}

// updateNodeRequest carries the PATCH fields for a node. Name alone renames;
// a present parent_id re-parents (null moves to the root).
type updateNodeRequest struct {
	Name     *string                   `json:"name,omitempty"`
	ParentID httputil.Optional[string] `json:"parent_id"`
}

// UpdateNode renames and/or moves a node
// PATCH /api/wiki/nodes/{id}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	var req updateNodeRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var node *wiki.Node
	var err error

	switch {
	// A move carrying a name goes through a single transaction so a
	// rename cannot commit while the move fails.
	case req.ParentID.Present:
		node, err = h.nodeService.Move(r.Context(), id, &wikiSvc.MoveRequest{
			ParentID:   req.ParentID.Value,
			Name:       req.Name,
			OperatorID: operatorID,
		})
	case req.Name != nil:
		node, err = h.nodeService.Rename(r.Context(), id, &wikiSvc.RenameRequest{
			Name:       *req.Name,
			OperatorID: operatorID,
		})
	default:
		httputil.RespondError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, node)
}

// updateFileRequest carries the PATCH fields for a file's content. Optional
// fields distinguish absent (unchanged) from null (cleared).
type updateFileRequest struct {
	Title       *string                         `json:"title,omitempty"`
	Body        *string                         `json:"body,omitempty"`
	IsPublic    *bool                           `json:"is_public,omitempty"`
	Attachment  httputil.Optional[wiki.BlobRef] `json:"attachment"`
	Attachments *[]wiki.BlobRef                 `json:"attachments,omitempty"`
}

// UpdateFile updates a file's content fields
// PATCH /api/wiki/files/{id}
func (h *NodeHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "file ID is required")
		return
	}

	var req updateFileRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svcReq := &wikiSvc.UpdateContentRequest{
		Title:       req.Title,
		Body:        req.Body,
		IsPublic:    req.IsPublic,
		Attachments: req.Attachments,
		OperatorID:  operatorID,
	}

	var oldAttachment *wiki.BlobRef
	if req.Attachment.Present {
		// Null clears the attachment, a value replaces it.
		svcReq.Attachment = &req.Attachment.Value

		if h.blobs != nil {
			if current, err := h.nodeService.GetByID(r.Context(), id); err == nil && current.File != nil {
				oldAttachment = current.File.Attachment
			}
		}
	}

	file, err := h.nodeService.UpdateContent(r.Context(), id, svcReq)
	if err != nil {
		handleError(w, err)
		return
	}

	// Best-effort cleanup of the superseded blob, outside the update.
	if oldAttachment != nil {
		replaced := req.Attachment.Value == nil || oldAttachment.URL != req.Attachment.Value.URL
		if replaced {
			if err := h.blobs.Delete(r.Context(), []string{oldAttachment.URL}); err != nil {
				h.logger.Warn("failed to delete replaced attachment",
					"node_id", id,
					"url", oldAttachment.URL,
					"error", err,
				)
			}
		}
	}

	httputil.RespondJSON(w, http.StatusOK, file)
}

// UpdatePermissions replaces a folder's access policy
// PUT /api/wiki/folders/{id}/permissions
func (h *NodeHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "folder ID is required")
		return
	}

	var req wikiSvc.UpdatePermissionsRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OperatorID = operatorID

	folder, err := h.nodeService.UpdatePermissions(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, folder)
}

// DeleteNode soft-deletes a node and its whole subtree
// DELETE /api/wiki/nodes/{id}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	removed, err := h.nodeService.Delete(r.Context(), id, operatorID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// Search matches file names, titles and bodies
// GET /api/wiki/search?q=...&limit=...
func (h *NodeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	hits, err := h.nodeService.Search(r.Context(), query, limit)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"results": hits})
}

// GetPath returns a node's display path
// GET /api/wiki/nodes/{id}/path
func (h *NodeHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	path, err := h.nodeService.Path(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"path": path})
}
