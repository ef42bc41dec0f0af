package handler

import (
	"log/slog"
	"net/http"

	"arbor/internal/domain/models/wiki"
	wikiSvc "arbor/internal/domain/services/wiki"
	"arbor/internal/httputil"
	"arbor/internal/identity"
)

// AccessHandler handles effective-permission HTTP requests
type AccessHandler struct {
	accessService wikiSvc.AccessService
	lookup        identity.Lookup
	logger        *slog.Logger
}

// NewAccessHandler creates a new access handler. lookup may be nil; when set,
// resolved policies carry display names next to the raw identifier codes.
func NewAccessHandler(accessService wikiSvc.AccessService, lookup identity.Lookup, logger *slog.Logger) *AccessHandler {
	return &AccessHandler{
		accessService: accessService,
		lookup:        lookup,
		logger:        logger,
	}
}

// GetAccess resolves a node's effective policy and evaluates it against the
// caller's memberships
// GET /api/wiki/nodes/{id}/access
func (h *AccessHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	decision, err := h.accessService.Check(r.Context(), id, httputil.GetPrincipal(r))
	if err != nil {
		handleError(w, err)
		return
	}

	response := map[string]any{
		"allowed": decision.Allowed,
		"policy":  decision.Policy,
	}
	if names := h.resolveNames(r, decision); len(names) > 0 {
		response["names"] = names
	}

	httputil.RespondJSON(w, http.StatusOK, response)
}

// resolveNames maps the policy's identifier codes to display names,
// best-effort. A directory outage degrades to codes only.
func (h *AccessHandler) resolveNames(r *http.Request, decision *wiki.AccessDecision) map[string]string {
	if h.lookup == nil || decision.Policy == nil {
		return nil
	}

	var ids []string
	ids = append(ids, decision.Policy.DepartmentIDs...)
	ids = append(ids, decision.Policy.RankIDs...)
	ids = append(ids, decision.Policy.PositionIDs...)
	if len(ids) == 0 {
		return nil
	}

	names, err := h.lookup.ResolveNames(r.Context(), ids)
	if err != nil {
		h.logger.Warn("name resolution failed", "error", err)
		return nil
	}
	return names
}
