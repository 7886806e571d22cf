package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/atlas-retail/atlas-erp/internal/platform/httpx"
	"github.com/atlas-retail/atlas-erp/internal/sequence"
)

// Handler exposes sales invoice endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales-invoices", h.list)
	r.Post("/sales-invoices", h.create)
	r.Get("/sales-invoices/{id}", h.get)
	r.Put("/sales-invoices/{id}/lines", h.updateLines)
	r.Post("/sales-invoices/{id}/issue", h.issue)
	r.Post("/sales-invoices/{id}/payments", h.registerPayment)
	r.Post("/sales-invoices/{id}/void", h.void)
	r.Post("/sales-invoices/{id}/cancel", h.cancel)
}

type lineRequest struct {
	ProductID   int64   `json:"product_id" validate:"required,gt=0"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	LineTaxRate float64 `json:"line_tax_rate" validate:"gte=0,lte=1"`
	Description string  `json:"description"`
}

type createInvoiceRequest struct {
	CustomerID            int64         `json:"customer_id" validate:"required,gt=0"`
	StoreID               string        `json:"store_id" validate:"required,max=10"`
	Type                  string        `json:"type" validate:"required,oneof=CASH LAYBY FIELD"`
	InvoiceDate           *time.Time    `json:"invoice_date"`
	DueDate               *time.Time    `json:"due_date"`
	SalespersonID         int64         `json:"salesperson_id"`
	CouponCode            string        `json:"coupon_code"`
	InvoiceDiscountAmount float64       `json:"invoice_discount_amount" validate:"gte=0"`
	OverallTaxRate        float64       `json:"overall_tax_rate" validate:"gte=0,lte=1"`
	ShippingCharges       float64       `json:"shipping_charges" validate:"gte=0"`
	OtherCharges          float64       `json:"other_charges" validate:"gte=0"`
	Notes                 string        `json:"notes"`
	Lines                 []lineRequest `json:"lines" validate:"required,min=1,dive"`
}

// moneyPrinter renders display amounts with thousands separators for
// document views.
var moneyPrinter = message.NewPrinter(language.English)

type invoiceView struct {
	Invoice           SalesInvoice  `json:"invoice"`
	Lines             []InvoiceLine `json:"lines,omitempty"`
	GrandTotalDisplay string        `json:"grand_total_display"`
	BalanceDueDisplay string        `json:"balance_due_display"`
}

func viewOf(inv SalesInvoice, lines []InvoiceLine) invoiceView {
	return invoiceView{
		Invoice:           inv,
		Lines:             lines,
		GrandTotalDisplay: moneyPrinter.Sprintf("%.2f", inv.GrandTotal),
		BalanceDueDisplay: moneyPrinter.Sprintf("%.2f", inv.BalanceDue),
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInvoiceInput{
		CustomerID:            req.CustomerID,
		StoreID:               req.StoreID,
		Type:                  InvoiceType(req.Type),
		DueDate:               req.DueDate,
		SalespersonID:         req.SalespersonID,
		CouponCode:            req.CouponCode,
		InvoiceDiscountAmount: req.InvoiceDiscountAmount,
		OverallTaxRate:        req.OverallTaxRate,
		ShippingCharges:       req.ShippingCharges,
		OtherCharges:          req.OtherCharges,
		Notes:                 req.Notes,
		CreatedBy:             actorID(r),
	}
	if req.InvoiceDate != nil {
		input.InvoiceDate = *req.InvoiceDate
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput(line))
	}
	inv, lines, err := h.service.CreateInvoice(r.Context(), input)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, viewOf(inv, lines))
}

func (h *Handler) updateLines(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Lines []lineRequest `json:"lines" validate:"required,min=1,dive"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inputs := make([]LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		inputs = append(inputs, LineInput(line))
	}
	inv, lines, err := h.service.UpdateInvoiceLines(r.Context(), id, inputs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(inv, lines))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	inv, lines, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(inv, lines))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	customerID, _ := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	invoices, err := h.service.ListInvoices(r.Context(), ListFilters{
		Status:     InvoiceStatus(r.URL.Query().Get("status")),
		Type:       InvoiceType(r.URL.Query().Get("type")),
		CustomerID: customerID,
		StoreID:    r.URL.Query().Get("store_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) error { return h.service.IssueInvoice(r.Context(), id) })
}

type paymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) registerPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	inv, err := h.service.RegisterPayment(r.Context(), id, req.Amount)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(inv, nil))
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) error { return h.service.VoidInvoice(r.Context(), id) })
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id int64) error { return h.service.CancelInvoice(r.Context(), id) })
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
	var overpaid *OverpaymentError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownInvoiceType):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &overpaid),
		errors.Is(err, ErrMixedTaxModes),
		errors.Is(err, ErrLinesImmutable),
		errors.Is(err, sequence.ErrPrefixNotConfigured):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Constraint Violation", err.Error())
	default:
		h.logger.Error("sales request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

// actorID pulls the acting user from the X-Actor-ID header. Auth is an
// external collaborator; the engine only records who acted.
func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
