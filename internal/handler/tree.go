package handler

import (
	"log/slog"
	"net/http"

	wikiSvc "arbor/internal/domain/services/wiki"
	"arbor/internal/httputil"
)

// TreeHandler handles HTTP requests for the nested structure view
type TreeHandler struct {
	nodeService wikiSvc.NodeService
	logger      *slog.Logger
}

// NewTreeHandler creates a new tree handler
func NewTreeHandler(nodeService wikiSvc.NodeService, logger *slog.Logger) *TreeHandler {
	return &TreeHandler{
		nodeService: nodeService,
		logger:      logger,
	}
}

// GetStructure returns the nested folder/file tree, the whole forest or one
// subtree when ancestor_id is given
// GET /api/wiki/structure?ancestor_id=...
func (h *TreeHandler) GetStructure(w http.ResponseWriter, r *http.Request) {
	var ancestorID *string
	if raw := r.URL.Query().Get("ancestor_id"); raw != "" {
		ancestorID = &raw
	}

	tree, err := h.nodeService.GetStructure(r.Context(), ancestorID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"structure": tree})
}
