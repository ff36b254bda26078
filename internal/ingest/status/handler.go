package status

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/docuflow/ingestion-platform/pkg/logger"
)

// Handler serves the status query over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default().With("component", "status-handler"),
	}
}

// Get looks up the latest ingestion record for a document. A document with
// no record yields 404 with an explicit NOT_FOUND status; that is a valid
// outcome, not a failure.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("documentId")
	if documentID == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "documentId is required"})
		return
	}

	rec, err := h.service.GetByDocumentID(r.Context(), documentID)
	if err != nil {
		logger.FromContext(r.Context()).Error("status query failed",
			"document_id", documentID,
			"error", err,
		)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "status lookup failed"})
		return
	}
	if rec == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"document_id": documentID,
			"status":      "NOT_FOUND",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
