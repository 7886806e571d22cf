package products

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
	r.Get("/products", h.list)
	r.Post("/products", h.create)
	r.Get("/products/{id}", h.get)
	r.Put("/products/{id}", h.update)
	r.Delete("/products/{id}", h.delete)
}

type productForm struct {
	SKU                 string  `json:"sku" validate:"required,max=64"`
	Name                string  `json:"name" validate:"required,max=255"`
	Description         string  `json:"description"`
	CategoryID          int64   `json:"category_id"`
	SupplierID          int64   `json:"supplier_id"`
	UnitOfMeasure       string  `json:"unit_of_measure" validate:"max=16"`
	StandardCost        float64 `json:"standard_cost" validate:"gte=0"`
	ShopPrice           float64 `json:"shop_price" validate:"gte=0"`
	FieldPrice          float64 `json:"field_price" validate:"gte=0"`
	WholesalePrice      float64 `json:"wholesale_price" validate:"gte=0"`
	ReorderLevel        float64 `json:"reorder_level" validate:"gte=0"`
	RequiresBatchNumber bool    `json:"requires_batch_number"`
	RequiresExpiryDate  bool    `json:"requires_expiry_date"`
	IsActive            bool    `json:"is_active"`
}

func (f productForm) toProduct() Product {
	return Product{
		SKU:                 f.SKU,
		Name:                f.Name,
		Description:         f.Description,
		CategoryID:          f.CategoryID,
		SupplierID:          f.SupplierID,
		UnitOfMeasure:       f.UnitOfMeasure,
		StandardCost:        f.StandardCost,
		ShopPrice:           f.ShopPrice,
		FieldPrice:          f.FieldPrice,
		WholesalePrice:      f.WholesalePrice,
		ReorderLevel:        f.ReorderLevel,
		RequiresBatchNumber: f.RequiresBatchNumber,
		RequiresExpiryDate:  f.RequiresExpiryDate,
		IsActive:            f.IsActive,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := listFilters(r)
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": list, "pagination": filters.Paginate(total)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var form productForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.Create(r.Context(), form.toProduct())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var form productForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Update(r.Context(), id, form.toProduct()); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
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
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrRequiredField), errors.Is(err, shared.ErrInvalidID):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("products request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func listFilters(r *http.Request) shared.ListFilters {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	filters := shared.ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  r.URL.Query().Get("search"),
		SortBy:  r.URL.Query().Get("sort"),
		SortDir: r.URL.Query().Get("dir"),
	}
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.CategoryID = &id
		}
	}
	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.SupplierID = &id
		}
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		isActive := raw == "true"
		filters.IsActive = &isActive
	}
	return filters
}
