package procurement

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

// Handler exposes procurement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/purchase-orders", h.listPOs)
	r.Post("/purchase-orders", h.createPO)
	r.Get("/purchase-orders/{id}", h.getPO)
	r.Get("/purchase-orders/{id}/approvals", h.poApprovals)
	r.Put("/purchase-orders/{id}/lines", h.updatePOLines)
	r.Post("/purchase-orders/{id}/submit", h.submitPO)
	r.Post("/purchase-orders/{id}/approve", h.approvePO)
	r.Post("/purchase-orders/{id}/send", h.sendPO)
	r.Post("/purchase-orders/{id}/cancel", h.cancelPO)
	r.Post("/purchase-orders/{id}/close", h.closePO)
	r.Post("/goods-receipts", h.createGRN)
	r.Get("/goods-receipts/{id}", h.getGRN)
	r.Post("/goods-receipts/{id}/post", h.postGRN)
	r.Post("/goods-receipts/{id}/cancel", h.cancelGRN)
}

type poLineRequest struct {
	ProductID            int64      `json:"product_id" validate:"required,gt=0"`
	QuantityOrdered      float64    `json:"quantity_ordered" validate:"required,gt=0"`
	UnitPrice            float64    `json:"unit_price" validate:"gte=0"`
	Description          string     `json:"description"`
	UnitOfMeasure        string     `json:"unit_of_measure"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	Notes                string     `json:"notes"`
}

type createPORequest struct {
	SupplierID           int64           `json:"supplier_id" validate:"required,gt=0"`
	StoreID              string          `json:"store_id" validate:"required,max=10"`
	OrderDate            *time.Time      `json:"order_date"`
	ExpectedDeliveryDate *time.Time      `json:"expected_delivery_date"`
	ShippingAddress      string          `json:"shipping_address"`
	BillingAddress       string          `json:"billing_address"`
	Notes                string          `json:"notes"`
	TaxAmount            float64         `json:"tax_amount" validate:"gte=0"`
	ShippingCost         float64         `json:"shipping_cost" validate:"gte=0"`
	OtherCharges         float64         `json:"other_charges" validate:"gte=0"`
	Lines                []poLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createPO(w http.ResponseWriter, r *http.Request) {
	var req createPORequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreatePOInput{
		SupplierID:           req.SupplierID,
		StoreID:              req.StoreID,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		ShippingAddress:      req.ShippingAddress,
		BillingAddress:       req.BillingAddress,
		Notes:                req.Notes,
		TaxAmount:            req.TaxAmount,
		ShippingCost:         req.ShippingCost,
		OtherCharges:         req.OtherCharges,
	}
	if req.OrderDate != nil {
		input.OrderDate = *req.OrderDate
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, POLineInput(line))
	}
	po, err := h.service.CreatePurchaseOrder(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) updatePOLines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Lines []poLineRequest `json:"lines" validate:"required,min=1,dive"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inputs := make([]POLineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		inputs = append(inputs, POLineInput(line))
	}
	po, err := h.service.UpdatePurchaseOrderLines(r.Context(), id, inputs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) getPO(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	po, lines, err := h.service.GetPurchaseOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": po, "lines": lines})
}

func (h *Handler) poApprovals(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	trail, err := h.service.ApprovalHistory(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"approvals": trail})
}

func (h *Handler) listPOs(w http.ResponseWriter, r *http.Request) {
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	orders, err := h.service.ListPurchaseOrders(r.Context(), ListFilters{
		Status:     POStatus(r.URL.Query().Get("status")),
		SupplierID: supplierID,
		StoreID:    r.URL.Query().Get("store_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) submitPO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) error { return h.service.SubmitPurchaseOrder(r.Context(), id, actorID(r)) })
}

func (h *Handler) approvePO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) error { return h.service.ApprovePurchaseOrder(r.Context(), id, actorID(r)) })
}

func (h *Handler) sendPO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) error { return h.service.SendPurchaseOrder(r.Context(), id) })
}

func (h *Handler) cancelPO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) error { return h.service.CancelPurchaseOrder(r.Context(), id) })
}

func (h *Handler) closePO(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) error { return h.service.ClosePurchaseOrder(r.Context(), id) })
}

type grnLineRequest struct {
	ProductID        int64      `json:"product_id" validate:"required,gt=0"`
	POLineID         *int64     `json:"po_line_id"`
	QuantityReceived float64    `json:"quantity_received" validate:"required,gt=0"`
	QuantityAccepted float64    `json:"quantity_accepted" validate:"gte=0"`
	QuantityRejected float64    `json:"quantity_rejected" validate:"gte=0"`
	UnitCost         float64    `json:"unit_cost" validate:"gte=0"`
	BatchNumber      string     `json:"batch_number"`
	ExpiryDate       *time.Time `json:"expiry_date"`
	Notes            string     `json:"notes"`
}

type createGRNRequest struct {
	POID              *int64           `json:"po_id"`
	SupplierID        int64            `json:"supplier_id"`
	StoreID           string           `json:"store_id" validate:"required,max=10"`
	ReceiptDate       *time.Time       `json:"receipt_date"`
	SupplierInvoiceNo string           `json:"supplier_invoice_no"`
	Notes             string           `json:"notes"`
	Lines             []grnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) createGRN(w http.ResponseWriter, r *http.Request) {
	var req createGRNRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateGRNInput{
		POID:              req.POID,
		SupplierID:        req.SupplierID,
		StoreID:           req.StoreID,
		SupplierInvoiceNo: req.SupplierInvoiceNo,
		ReceivedBy:        actorID(r),
		Notes:             req.Notes,
	}
	if req.ReceiptDate != nil {
		input.ReceiptDate = *req.ReceiptDate
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, GRNLineInput(line))
	}
	grn, err := h.service.CreateGoodsReceipt(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, grn)
}

func (h *Handler) getGRN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	grn, lines, err := h.service.GetGoodsReceipt(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipt": grn, "lines": lines})
}

func (h *Handler) postGRN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.PostGoodsReceipt(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"over_receipt":       result.OverReceipt,
		"over_receipt_lines": result.OverReceiptLines,
		"po_status":          result.POStatus,
	})
}

func (h *Handler) cancelGRN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelGoodsReceipt(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(id int64) error) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := fn(id); err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrBatchRequired),
		errors.Is(err, ErrExpiryRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidAcceptRejectSplit),
		errors.Is(err, ErrNotApprovable),
		errors.Is(err, ErrLinesImmutable):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Constraint Violation", err.Error())
	default:
		h.logger.Error("procurement request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// actorID pulls the acting user from the X-Actor-ID header. Auth is an
// external collaborator; the engine only records who acted.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
