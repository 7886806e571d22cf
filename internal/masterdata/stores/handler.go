package stores

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-retail/atlas-erp/internal/masterdata/shared"
	"github.com/atlas-retail/atlas-erp/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stores", h.list)
	r.Post("/stores", h.create)
	r.Get("/stores/{code}", h.get)
	r.Put("/stores/{code}", h.update)
	r.Delete("/stores/{code}", h.delete)
}

type storeForm struct {
	Code        string  `json:"code" validate:"required,max=10"`
	Name        string  `json:"name" validate:"required,max=255"`
	Type        string  `json:"type" validate:"required,oneof=SHOP WAREHOUSE FIELD OFFICE OTHER"`
	Address     string  `json:"address"`
	Phone       string  `json:"phone" validate:"max=32"`
	CashPrefix  *string `json:"cash_prefix"`
	LaybyPrefix *string `json:"layby_prefix"`
	FieldPrefix *string `json:"field_prefix"`
	IsActive    bool    `json:"is_active"`
}

func (f storeForm) toStore() Store {
	return Store{
		Code:        f.Code,
		Name:        f.Name,
		Type:        StoreType(f.Type),
		Address:     f.Address,
		Phone:       f.Phone,
		CashPrefix:  f.CashPrefix,
		LaybyPrefix: f.LaybyPrefix,
		FieldPrefix: f.FieldPrefix,
		IsActive:    f.IsActive,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := shared.ListFilters{
		Page:      page,
		Limit:     limit,
		Search:    r.URL.Query().Get("search"),
		StoreType: r.URL.Query().Get("type"),
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		isActive := raw == "true"
		filters.IsActive = &isActive
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stores": list, "pagination": filters.Paginate(total)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	store, err := h.service.Get(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form storeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	store, err := h.service.Create(r.Context(), form.toStore())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, store)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var form storeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Update(r.Context(), chi.URLParam(r, "code"), form.toStore()); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", "store code or numbering prefix already in use")
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrRequiredField), errors.Is(err, shared.ErrInvalidID):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("stores request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
