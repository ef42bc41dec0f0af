package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	wikiSvc "arbor/internal/domain/services/wiki"
	"arbor/internal/httputil"
)

// PermissionLogHandler handles the permission audit trail, notifications and
// operator-initiated repairs
type PermissionLogHandler struct {
	notifyService wikiSvc.NotificationService
	repairService wikiSvc.RepairService
	detector      wikiSvc.DetectorService
	logger        *slog.Logger
}

// NewPermissionLogHandler creates a new permission log handler
func NewPermissionLogHandler(
	notifyService wikiSvc.NotificationService,
	repairService wikiSvc.RepairService,
	detector wikiSvc.DetectorService,
	logger *slog.Logger,
) *PermissionLogHandler {
	return &PermissionLogHandler{
		notifyService: notifyService,
		repairService: repairService,
		detector:      detector,
		logger:        logger,
	}
}

// ListLogs returns the audit trail, optionally filtered by resolution state
// GET /api/wiki/permission-logs?resolved=true|false&limit=...
func (h *PermissionLogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	var resolved *bool
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "resolved must be true or false")
			return
		}
		resolved = &parsed
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}

	logs, err := h.notifyService.ListLogs(r.Context(), resolved, limit)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

// ListUnread returns the open entries the calling operator has not dismissed
// GET /api/wiki/permission-logs/unread
func (h *PermissionLogHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	logs, err := h.notifyService.ListUnread(r.Context(), operatorID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

type dismissRequest struct {
	LogIDs []string `json:"log_ids"`
}

// Dismiss suppresses log entries for the calling operator only
// POST /api/wiki/permission-logs/dismiss
func (h *PermissionLogHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req dismissRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.notifyService.Dismiss(r.Context(), req.LogIDs, operatorID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// ReplacePermissions atomically remaps stale identifiers on a node
// POST /api/wiki/nodes/{id}/replace-permissions
func (h *PermissionLogHandler) ReplacePermissions(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "node ID is required")
		return
	}

	var req wikiSvc.RepairRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.OperatorID = operatorID

	result, err := h.repairService.ReplacePermissions(r.Context(), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// TriggerSweep runs a detector pass immediately
// POST /api/wiki/permission-logs/sweep
func (h *PermissionLogHandler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireOperator(w, r); !ok {
		return
	}

	stats, err := h.detector.Sweep(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, stats)
}
