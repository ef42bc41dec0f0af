package handler

import (
	"log/slog"
	"net/http"

	"arbor/internal/blobstore"
	"arbor/internal/httputil"
)

// maxUploadBytes caps one attachment upload request.
const maxUploadBytes = 50 << 20

// AttachmentHandler handles attachment uploads to blob storage
type AttachmentHandler struct {
	blobs  blobstore.Client
	logger *slog.Logger
}

// NewAttachmentHandler creates a new attachment handler
func NewAttachmentHandler(blobs blobstore.Client, logger *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		blobs:  blobs,
		logger: logger,
	}
}

// Upload stores multipart files and returns their blob references. The
// references are attached to a file node in a separate content update.
// POST /api/wiki/attachments
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := requireOperator(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		httputil.RespondError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	var uploads []blobstore.Upload
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "unreadable multipart file")
			return
		}
		defer f.Close()

		uploads = append(uploads, blobstore.Upload{
			FileName: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Size:     fh.Size,
			Body:     f,
		})
	}

	refs, err := h.blobs.Upload(r.Context(), uploads, "attachments")
	if err != nil {
		h.logger.Error("attachment upload failed", "operator", operatorID, "error", err)
		httputil.RespondError(w, http.StatusBadGateway, "blob storage unavailable")
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, map[string]any{"attachments": refs})
}
