package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "tradejournal/internal/errors"
	"tradejournal/internal/services"
)

// AccountHandler serves the destination account CRUD surface.
type AccountHandler struct {
	service *services.AccountService
	errs    *apierrors.ErrorHandler
	logger  *slog.Logger
}

// NewAccountHandler creates the handler.
func NewAccountHandler(service *services.AccountService, errs *apierrors.ErrorHandler, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountHandler{
		service: service,
		errs:    errs,
		logger:  logger.With(slog.String("handler", "accounts")),
	}
}

// Routes mounts the account endpoints.
func (h *AccountHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	return r
}

// CreateAccountRequest names a new destination account.
type CreateAccountRequest struct {
	Name     string `json:"name" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3,alpha"`
}

// Bind implements render.Binder.
func (req *CreateAccountRequest) Bind(*http.Request) error {
	return validate.Struct(req)
}

// List returns the user's accounts.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.List(r.Context(), defaultUserID)
	if err != nil {
		h.errs.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, accounts)
}

// Create adds an account.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	req := &CreateAccountRequest{}
	if err := render.Bind(r, req); err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	account, err := h.service.Create(r.Context(), defaultUserID, req.Name, req.Currency)
	if err != nil {
		h.errs.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, account)
}

// Get returns one account.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, services.ErrAccountNotFound) {
			h.errs.HandleError(w, r, apierrors.ErrAccountNotFound)
			return
		}
		h.errs.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, account)
}
