package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/docuflow/ingestion-platform/internal/document/publisher"
	"github.com/docuflow/ingestion-platform/internal/document/store"
	"github.com/docuflow/ingestion-platform/internal/document/validator"
	"github.com/docuflow/ingestion-platform/pkg/config"
	apperrors "github.com/docuflow/ingestion-platform/pkg/errors"
	"github.com/docuflow/ingestion-platform/pkg/logger"
	"github.com/google/uuid"
)

// Handler serves the upload service's HTTP surface: multipart document
// upload and document lookup.
type Handler struct {
	publisher *publisher.Publisher
	store     *store.Store
	cfg       config.UploadConfig
	logger    *slog.Logger
}

func New(pub *publisher.Publisher, st *store.Store, cfg config.UploadConfig) *Handler {
	return &Handler{
		publisher: pub,
		store:     st,
		cfg:       cfg,
		logger:    slog.Default().With("component", "upload-handler"),
	}
}

// Upload accepts a multipart form with a `file` part and a `userId` field,
// stores the file under the upload directory, and runs the emit-after-commit
// write path.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if err := r.ParseMultipartForm(h.cfg.MaxFileSize); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	userID := r.FormValue("userId")
	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file part is required")
		return
	}
	defer file.Close()

	if err := validator.ValidateUpload(userID, header.Filename, header.Size, h.cfg.MaxFileSize); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fileURL, err := h.saveFile(file, header.Filename)
	if err != nil {
		log.Error("failed to store uploaded file", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	doc, err := h.publisher.CreateDocument(ctx, userID, fileURL)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("upload failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "upload failed")
		return
	}
	log.Info("document uploaded",
		"document_id", doc.ID,
		"user_id", doc.UserID,
	)
	h.writeJSON(w, http.StatusCreated, doc)
}

// Get returns a document by id, or 404 when it does not exist.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			h.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		logger.FromContext(r.Context()).Error("document lookup failed", "document_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// saveFile copies the uploaded content under the configured directory with a
// UUID-prefixed name so concurrent uploads of same-named files never collide.
func (h *Handler) saveFile(file io.Reader, name string) (string, error) {
	if err := os.MkdirAll(h.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	dest := filepath.Join(h.cfg.Dir, fmt.Sprintf("%s-%s", uuid.NewString(), filepath.Base(name)))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("writing upload file: %w", err)
	}
	return dest, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
