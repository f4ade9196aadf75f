// Package http exposes the import pipeline and account store over a
// chi-routed JSON API.
package http

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "tradejournal/internal/errors"
	"tradejournal/internal/importer"
	"tradejournal/internal/operations"
	"tradejournal/internal/services"
	"tradejournal/internal/validation"
	"tradejournal/pkg/contracts/domain"
)

// defaultUserID stands in until multi-user auth lands. Every handler
// threads it so the storage layer is already user-scoped.
const defaultUserID = "local"

var validate = validator.New()

// ImportHandler serves the import session lifecycle.
type ImportHandler struct {
	service   *services.ImportService
	validator *validation.UploadValidator
	errs      *apierrors.ErrorHandler
	logger    *slog.Logger
}

// NewImportHandler creates the handler.
func NewImportHandler(
	service *services.ImportService,
	uploadValidator *validation.UploadValidator,
	errs *apierrors.ErrorHandler,
	logger *slog.Logger,
) *ImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportHandler{
		service:   service,
		validator: uploadValidator,
		errs:      errs,
		logger:    logger.With(slog.String("handler", "import")),
	}
}

// Routes mounts the import endpoints.
func (h *ImportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/session", h.CreateSession)
	r.Get("/{id}", h.GetSession)
	r.Post("/{id}/upload", h.Upload)
	r.Put("/{id}/mapping", h.UpdateMapping)
	r.Post("/{id}/run", h.Run)
	r.Post("/{id}/reset", h.Reset)
	return r
}

// CreateSessionRequest selects the source, destination account,
// timezone and mode for a new import.
type CreateSessionRequest struct {
	Source    string `json:"source" validate:"required,oneof=metatrader ninjatrader tradovate"`
	AccountID string `json:"account_id" validate:"required"`
	Timezone  string `json:"timezone,omitempty"`
	Mode      string `json:"mode,omitempty" validate:"omitempty,oneof=append replace"`
}

// Bind implements render.Binder.
func (req *CreateSessionRequest) Bind(*http.Request) error {
	return validate.Struct(req)
}

// CreateSession opens a session and advances it to the upload step.
func (h *ImportHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	req := &CreateSessionRequest{}
	if err := render.Bind(r, req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	snap, err := h.service.CreateSession(
		r.Context(), defaultUserID,
		domain.DataSource(req.Source), req.AccountID, req.Timezone,
		importer.ImportMode(req.Mode),
	)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, snap)
}

// GetSession returns the current session snapshot.
func (h *ImportHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// Upload receives the broker file as multipart form data under the
// "file" field, parses it and attaches it to the session.
func (h *ImportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	snap, err := h.service.Get(r.Context(), sessionID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.validator.MaxBytes())
	file, header, err := r.FormFile("file")
	if err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer file.Close()

	if err := h.validator.Validate(header.Filename, header.Size, snap.Source); err != nil {
		h.errs.HandleError(w, r, apierrors.ErrValidation("file", err.Error()))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	snap, err = h.service.Upload(r.Context(), sessionID, header.Filename, data)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, UploadResponse{
		Session:  snap,
		Headers:  snap.Parsed.Headers,
		RowCount: len(snap.Parsed.Rows),
	})
}

// UploadResponse returns the advanced session along with what the
// parser discovered, so the mapping screen can render immediately.
type UploadResponse struct {
	Session  operations.SessionView `json:"session"`
	Headers  []string               `json:"headers"`
	RowCount int                    `json:"row_count"`
}

// MappingRequest overrides field-to-column assignments.
type MappingRequest struct {
	Mapping map[string]string `json:"mapping" validate:"required,min=1"`
}

// Bind implements render.Binder.
func (req *MappingRequest) Bind(*http.Request) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	for field := range req.Mapping {
		if !validMappingField(field) {
			return errors.New("unknown mapping field: " + field)
		}
	}
	return nil
}

func validMappingField(name string) bool {
	for _, f := range importer.AllFields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// UpdateMapping applies user mapping overrides on the mapping step.
func (h *ImportHandler) UpdateMapping(w http.ResponseWriter, r *http.Request) {
	req := &MappingRequest{}
	if err := render.Bind(r, req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	overrides := make(importer.ColumnMapping, len(req.Mapping))
	for field, header := range req.Mapping {
		overrides[importer.Field(field)] = header
	}

	snap, err := h.service.UpdateMapping(r.Context(), chi.URLParam(r, "id"), overrides)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// Run executes the import and returns the completed session with its
// stats. Progress streams over the websocket while this blocks.
func (h *ImportHandler) Run(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// Reset discards all session state and returns to source selection.
func (h *ImportHandler) Reset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// handleServiceError translates service and pipeline errors into API
// error responses.
func (h *ImportHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var formatErr *importer.FormatError
	var preErr *importer.PreconditionError

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.errs.HandleError(w, r, apierrors.ErrSessionNotFound)
	case errors.Is(err, services.ErrAccountNotFound):
		h.errs.HandleError(w, r, apierrors.ErrAccountNotFound)
	case errors.Is(err, services.ErrInvalidSource):
		h.errs.HandleError(w, r, apierrors.ErrValidation("source", err.Error()))
	case errors.Is(err, services.ErrInvalidTimezone):
		h.errs.HandleError(w, r, apierrors.ErrValidation("timezone", err.Error()))
	case errors.Is(err, services.ErrInvalidMode):
		h.errs.HandleError(w, r, apierrors.ErrValidation("mode", err.Error()))
	case errors.Is(err, services.ErrEmptyFile):
		h.errs.HandleError(w, r, apierrors.ErrValidation("file", err.Error()))
	case errors.Is(err, operations.ErrMappingIncomplete):
		h.errs.HandleError(w, r, apierrors.ErrValidation("mapping", err.Error()))
	case errors.Is(err, operations.ErrInvalidTransition):
		h.errs.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusConflict, "INVALID_TRANSITION",
			"Operation not allowed in the current import step", err.Error()))
	case errors.As(err, &formatErr):
		h.errs.HandleError(w, r, apierrors.UnsupportedFileError(err))
	case errors.As(err, &preErr):
		h.errs.HandleError(w, r, apierrors.NewWithDetails(
			http.StatusUnprocessableEntity, "IMPORT_PRECONDITION_FAILED",
			"Import could not start", preErr.Reason))
	default:
		h.errs.HandleError(w, r, err)
	}
}
