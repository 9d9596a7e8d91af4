package receivable

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-fin/meridian/internal/platform/httpx"
)

// Handler exposes receivable endpoints.
type Handler struct {
	logger    *slog.Logger
	registry  *Registry
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry, validator: validator.New()}
}

// MountRoutes registers receivable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createInvoice)
	r.Get("/{id}", h.getInvoice)
	r.Post("/{id}/receipts", h.registerReceipt)
}

type createInvoiceRequest struct {
	ClientID int64   `json:"client_id" validate:"required,gt=0"`
	Number   string  `json:"number" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	DueDate  string  `json:"due_date" validate:"required"`
}

type receiptRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reference string  `json:"reference"`
}

type invoiceResponse struct {
	ID                int64   `json:"id"`
	ClientID          int64   `json:"client_id"`
	Number            string  `json:"number"`
	Amount            float64 `json:"amount"`
	OutstandingAmount float64 `json:"outstanding_amount"`
	DueDate           string  `json:"due_date"`
	Status            string  `json:"status"`
}

func toInvoiceResponse(inv Invoice) invoiceResponse {
	return invoiceResponse{
		ID:                inv.ID,
		ClientID:          inv.ClientID,
		Number:            inv.Number,
		Amount:            inv.Amount,
		OutstandingAmount: inv.OutstandingAmount,
		DueDate:           inv.DueDate.Format("2006-01-02"),
		Status:            string(inv.Status),
	}
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "due_date must be YYYY-MM-DD")
		return
	}

	created, err := h.registry.Create(r.Context(), CreateInput{
		ClientID: req.ClientID,
		Number:   req.Number,
		Amount:   req.Amount,
		DueDate:  dueDate,
	})
	if err != nil {
		h.logger.Warn("create receivable invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toInvoiceResponse(created))
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, err := h.registry.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *Handler) registerReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	receipted, err := h.registry.RegisterReceipt(r.Context(), ReceiptInput{
		InvoiceID: id,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		h.logger.Warn("register receipt", slog.Int64("invoice_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toInvoiceResponse(receipted))
}
