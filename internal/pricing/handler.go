package pricing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-retail/atlas-erp/internal/platform/httpx"
)

// Handler exposes discount administration endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     *Repository
	resolver *Resolver
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, repo *Repository, resolver *Resolver) *Handler {
	return &Handler{logger: logger, repo: repo, resolver: resolver, validate: validator.New()}
}

// MountRoutes registers pricing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/discounts", h.create)
	r.Get("/discounts/{id}", h.get)
	r.Delete("/discounts/{id}", h.delete)
	r.Post("/discounts/{id}/products", h.attachProduct)
	r.Post("/discounts/{id}/activate", h.setActive(true))
	r.Post("/discounts/{id}/deactivate", h.setActive(false))
	r.Post("/resolve", h.resolve)
}

type createDiscountRequest struct {
	Name             string     `json:"name" validate:"required,max=120"`
	Kind             string     `json:"kind" validate:"required,oneof=PERCENTAGE FIXED_AMOUNT_OFF SPECIAL_PRICE"`
	Value            float64    `json:"value" validate:"gte=0"`
	StartsAt         time.Time  `json:"starts_at" validate:"required"`
	EndsAt           *time.Time `json:"ends_at"`
	CouponCode       string     `json:"coupon_code"`
	Active           bool       `json:"active"`
	StoreIDs         []string   `json:"store_ids"`
	CustomerGroupIDs []int64    `json:"customer_group_ids"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createDiscountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	kind := DiscountKind(req.Kind)
	if kind == KindPercentage && req.Value > 100 {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Value", "percentage discounts cannot exceed 100")
		return
	}
	if req.EndsAt != nil && req.EndsAt.Before(req.StartsAt) {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Window", "ends_at precedes starts_at")
		return
	}
	id, err := h.repo.CreateDiscount(r.Context(), Discount{
		Name:       req.Name,
		Kind:       kind,
		Value:      req.Value,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		CouponCode: req.CouponCode,
		Active:     req.Active,
	}, req.StoreIDs, req.CustomerGroupIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	d, err := h.repo.GetDiscount(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	d, err := h.repo.GetDiscount(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.repo.DeleteDiscount(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attachProductRequest struct {
	ProductID  int64    `json:"product_id" validate:"required,gt=0"`
	MinQty     float64  `json:"min_qty" validate:"gte=0"`
	MaxQty     *float64 `json:"max_qty"`
	Priority   int      `json:"priority"`
	Cumulative bool     `json:"cumulative"`
}

func (h *Handler) attachProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req attachProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if req.MaxQty != nil && *req.MaxQty < req.MinQty {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Band", "max_qty below min_qty")
		return
	}
	if _, err := h.repo.GetDiscount(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	bandID, err := h.repo.AttachProduct(r.Context(), ProductDiscount{
		DiscountID: id,
		ProductID:  req.ProductID,
		MinQty:     req.MinQty,
		MaxQty:     req.MaxQty,
		Priority:   req.Priority,
		Cumulative: req.Cumulative,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": bandID})
}

func (h *Handler) setActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.pathID(w, r)
		if !ok {
			return
		}
		if err := h.repo.SetActive(r.Context(), id, active); err != nil {
			h.respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type resolveRequest struct {
	ProductID       int64      `json:"product_id" validate:"required,gt=0"`
	Quantity        float64    `json:"quantity" validate:"required,gt=0"`
	StoreID         string     `json:"store_id" validate:"required,max=10"`
	CustomerGroupID int64      `json:"customer_group_id"`
	CouponCode      string     `json:"coupon_code"`
	UnitPrice       float64    `json:"unit_price" validate:"gte=0"`
	AsOf            *time.Time `json:"as_of"`
}

// resolve previews the effective discount for a product without touching
// any document.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ResolveInput{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		StoreID:         req.StoreID,
		CustomerGroupID: req.CustomerGroupID,
		CouponCode:      req.CouponCode,
	}
	if req.AsOf != nil {
		input.AsOf = *req.AsOf
	}
	effective, err := h.resolver.Resolve(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	resp := map[string]any{
		"unit_price":      req.UnitPrice,
		"effective_price": effective.Apply(req.UnitPrice),
	}
	if effective != nil {
		resp["adjustments"] = effective.Adjustments
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid discount id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidValue):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Input", err.Error())
	default:
		h.logger.Error("pricing request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		httpx.RespondError(w, err)
	}
}
