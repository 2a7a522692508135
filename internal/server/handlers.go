package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/adforge/adforge-api/internal/pipeline"
	"github.com/adforge/adforge-api/internal/record"
	"github.com/adforge/adforge-api/internal/storage"
)

// DefaultMaxUploadBytes caps uploaded product photos at 16 MiB.
const DefaultMaxUploadBytes = 16 << 20

// allowedUploadExts are the accepted product photo extensions. Non-PNG/JPEG
// uploads are transcoded by the gateway before dispatch.
var allowedUploadExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *pipeline.Service
	repo           record.Repository
	store          storage.Storage
	local          *storage.LocalStorage // nil when artifacts live in S3
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes overrides the upload size cap.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithLocalFiles enables serving stored artifacts from local disk at /files.
func WithLocalFiles(local *storage.LocalStorage) HandlerOption {
	return func(h *Handlers) {
		h.local = local
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *pipeline.Service, repo record.Repository, store storage.Storage, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:        service,
		repo:           repo,
		store:          store,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// userID resolves the calling user from the X-User-ID header. Google auth
// comes later; until then unauthenticated callers share one default user.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "default"
}

// UploadImage handles POST /api/images: multipart upload of a product photo.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body or file too large", "INVALID_UPLOAD")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file provided", "MISSING_IMAGE")
		return
	}
	defer func() { _ = file.Close() }()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedUploadExts[ext] {
		writeError(w, http.StatusBadRequest,
			"invalid file type, allowed types: png, jpg, jpeg, gif, webp", "INVALID_FILE_TYPE")
		return
	}

	user, err := h.repo.GetOrCreateUser(r.Context(), userID(r))
	if err != nil {
		h.logger.Error("failed to resolve user", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store image", "IMAGE_SAVE_FAILED")
		return
	}

	name := "uploads/" + uuid.NewString() + "_" + sanitizeFilename(header.Filename)
	locator, err := h.store.Save(r.Context(), name, file)
	if err != nil {
		h.logger.Error("failed to store upload", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store image", "IMAGE_SAVE_FAILED")
		return
	}

	img := &record.Image{
		UserID:   user.ID,
		FilePath: locator,
		URL:      h.store.PublicURL(name),
	}
	if err := h.repo.CreateImage(r.Context(), img); err != nil {
		// Roll back the stored file so a failed create leaves nothing behind.
		_ = h.store.Delete(r.Context(), locator)
		h.logger.Error("failed to create image record", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store image", "IMAGE_SAVE_FAILED")
		return
	}

	h.logger.Info("image uploaded",
		slog.String("image_id", img.ID),
		slog.String("user_id", user.ID),
		slog.Int64("size", header.Size),
	)

	writeJSON(w, http.StatusCreated, UploadImageResponse{
		Success: true,
		ImageID: img.ID,
		URL:     img.URL,
	})
}

// DeleteImage handles DELETE /api/images/{id}. Deleting an image cascades to
// the personas, scripts and videos generated from it.
func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	img, err := h.repo.GetImage(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}

	if err := h.repo.DeleteImage(r.Context(), id); err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	if err := h.store.Delete(r.Context(), img.FilePath); err != nil {
		h.logger.Warn("failed to delete stored image file",
			slog.String("image_id", id),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// ServeFile handles GET /files/{name...} for locally stored artifacts.
func (h *Handlers) ServeFile(w http.ResponseWriter, r *http.Request) {
	if h.local == nil {
		writeError(w, http.StatusNotFound, "file serving is not enabled", "NOT_FOUND")
		return
	}
	path, err := h.local.Resolve(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file name", "INVALID_FILE_NAME")
		return
	}
	http.ServeFile(w, r, path)
}

// CreateProject handles POST /api/projects.
func (h *Handlers) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.repo.GetOrCreateUser(r.Context(), userID(r))
	if err != nil {
		h.logger.Error("failed to resolve user", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create project", "PROJECT_CREATE_FAILED")
		return
	}

	p := &record.Project{
		UserID:      user.ID,
		Name:        req.Name,
		Description: req.Description,
	}
	if err := h.repo.CreateProject(r.Context(), p); err != nil {
		h.logger.Error("failed to create project", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to create project", "PROJECT_CREATE_FAILED")
		return
	}

	writeJSON(w, http.StatusCreated, ProjectResponse{
		Success:     true,
		ProjectID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
	})
}

// GetProject handles GET /api/projects/{id}.
func (h *Handlers) GetProject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := h.repo.GetProject(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectResponse{
		Success:     true,
		ProjectID:   p.ID,
		Name:        p.Name,
		Description: p.Description,
	})
}

// CreatePersona handles POST /api/personas: stage 1 dispatch.
func (h *Handlers) CreatePersona(w http.ResponseWriter, r *http.Request) {
	var req CreatePersonaRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	p, err := h.service.CreatePersona(r.Context(), pipeline.CreatePersonaInput{
		ProjectID:          req.ProjectID,
		ImageID:            req.ImageID,
		ProductName:        req.ProductName,
		ProductDescription: req.Description,
		PersonDescription:  req.PersonDescription,
	})
	if err != nil {
		h.writeServiceError(w, req.ImageID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, CreatePersonaResponse{
		Success:     true,
		PersonaID:   p.ID,
		Status:      string(p.Status),
		OpenAIJobID: p.OpenAIJobID,
	})
}

// PersonaStatus handles GET /api/personas/{id}/status.
func (h *Handlers) PersonaStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	p, err := h.service.RefreshPersona(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}

	resp := PersonaStatusResponse{
		Success:     true,
		PersonaID:   p.ID,
		Status:      string(p.Status),
		PersonaText: p.PersonaText,
		Error:       p.Error,
	}
	if p.PersonaJSON != "" {
		resp.PersonaJSON = json.RawMessage(p.PersonaJSON)
	}
	if !p.Status.IsTerminal() && p.OpenAIJobID == "" {
		resp.Message = "generation job has not been dispatched yet"
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateScript handles POST /api/scripts: stage 2 dispatch.
func (h *Handlers) CreateScript(w http.ResponseWriter, r *http.Request) {
	var req CreateScriptRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	sc, err := h.service.CreateScript(r.Context(), pipeline.CreateScriptInput{
		PersonaID: req.PersonaID,
		Tone:      req.Tone,
	})
	if err != nil {
		h.writeServiceError(w, req.PersonaID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, CreateScriptResponse{
		Success:     true,
		ScriptID:    sc.ID,
		Status:      string(sc.Status),
		OpenAIJobID: sc.OpenAIJobID,
	})
}

// ScriptStatus handles GET /api/scripts/{id}/status.
func (h *Handlers) ScriptStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sc, err := h.service.RefreshScript(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}

	resp := ScriptStatusResponse{
		Success:    true,
		ScriptID:   sc.ID,
		Status:     string(sc.Status),
		ScriptText: sc.ScriptText,
		Error:      sc.Error,
	}
	if !sc.Status.IsTerminal() && sc.OpenAIJobID == "" {
		resp.Message = "generation job has not been dispatched yet"
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateVideo handles POST /api/videos: stage 3 dispatch.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	v, err := h.service.CreateVideo(r.Context(), pipeline.CreateVideoInput{
		ScriptID: req.ScriptID,
	})
	if err != nil {
		h.writeServiceError(w, req.ScriptID, err)
		return
	}

	writeJSON(w, http.StatusAccepted, CreateVideoResponse{
		Success:     true,
		VideoID:     v.ID,
		Status:      string(v.Status),
		OpenAIJobID: v.OpenAIJobID,
	})
}

// VideoStatus handles GET /api/videos/{id}/status.
func (h *Handlers) VideoStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	v, err := h.service.RefreshVideo(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, id, err)
		return
	}

	resp := VideoStatusResponse{
		Success:  true,
		VideoID:  v.ID,
		Status:   string(v.Status),
		VideoURL: v.VideoURL,
		Error:    v.Error,
	}
	if !v.Status.IsTerminal() && v.OpenAIJobID == "" {
		resp.Message = "generation job has not been dispatched yet"
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeAndValidate decodes the JSON body into req and validates it, writing
// the error response itself when either step fails.
func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.logger.Warn("failed to decode request body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// writeServiceError maps pipeline and repository errors to HTTP responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, record.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMessage(id, err), "NOT_FOUND")
	case errors.Is(err, pipeline.ErrStageNotReady):
		writeError(w, http.StatusConflict, "prior stage has not completed yet", "STAGE_NOT_READY")
	case errors.Is(err, pipeline.ErrStageFailed):
		writeError(w, http.StatusConflict, "prior stage failed", "STAGE_FAILED")
	case errors.Is(err, pipeline.ErrDispatchFailed):
		h.logger.Error("dispatch failed", slog.String("record_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error(), "DISPATCH_FAILED")
	default:
		h.logger.Error("request failed", slog.String("record_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// notFoundMessage prefers the wrapped error text, which names the entity that
// is actually missing (the pipeline wraps reference lookups as
// "project <id>: ..."). The bare sentinel falls back to the requested id.
func notFoundMessage(id string, err error) string {
	if msg := err.Error(); msg != record.ErrNotFound.Error() {
		return msg
	}
	return fmt.Sprintf("record %s not found", id)
}

// sanitizeFilename strips path components and unsafe characters from an
// uploaded filename.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	cleaned := unsafeNameChars.ReplaceAllString(base, "_")
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "upload"
	}
	return cleaned
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}
