package payable

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-fin/meridian/internal/platform/httpx"
)

// Handler exposes payable endpoints.
type Handler struct {
	logger    *slog.Logger
	ledger    *Ledger
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, ledger *Ledger) *Handler {
	return &Handler{logger: logger, ledger: ledger, validator: validator.New()}
}

// MountRoutes registers payable routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.createPayable)
	r.Get("/", h.listPayables)
	r.Get("/{id}", h.getPayable)
	r.Get("/{id}/outstanding", h.getOutstanding)
}

type createPayableRequest struct {
	VendorID      int64   `json:"vendor_id" validate:"required,gt=0"`
	InvoiceNumber string  `json:"invoice_number" validate:"required"`
	Description   string  `json:"description"`
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	DueDate       string  `json:"due_date" validate:"required"`
}

type payableResponse struct {
	ID                int64   `json:"id"`
	VendorID          int64   `json:"vendor_id"`
	InvoiceNumber     string  `json:"invoice_number"`
	Description       string  `json:"description,omitempty"`
	Amount            float64 `json:"amount"`
	OutstandingAmount float64 `json:"outstanding_amount"`
	DueDate           string  `json:"due_date"`
	Status            string  `json:"status"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func toPayableResponse(p Payable) payableResponse {
	return payableResponse{
		ID:                p.ID,
		VendorID:          p.VendorID,
		InvoiceNumber:     p.InvoiceNumber,
		Description:       p.Description,
		Amount:            p.Amount,
		OutstandingAmount: p.OutstandingAmount,
		DueDate:           p.DueDate.Format("2006-01-02"),
		Status:            string(p.Status),
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         p.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) createPayable(w http.ResponseWriter, r *http.Request) {
	var req createPayableRequest
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

	created, err := h.ledger.Create(r.Context(), CreateInput{
		VendorID:      req.VendorID,
		InvoiceNumber: req.InvoiceNumber,
		Description:   req.Description,
		Amount:        req.Amount,
		DueDate:       dueDate,
	})
	if err != nil {
		h.logger.Warn("create payable", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPayableResponse(created))
}

func (h *Handler) listPayables(w http.ResponseWriter, r *http.Request) {
	var vendorID int64
	if raw := r.URL.Query().Get("vendor_id"); raw != "" {
		vendorID, _ = strconv.ParseInt(raw, 10, 64)
	}

	payables, err := h.ledger.List(r.Context(), ListRequest{
		Status:   Status(r.URL.Query().Get("status")),
		VendorID: vendorID,
		Limit:    200,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	out := make([]payableResponse, 0, len(payables))
	for _, p := range payables {
		out = append(out, toPayableResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payables": out})
}

func (h *Handler) getPayable(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payable id")
		return
	}
	p, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPayableResponse(p))
}

func (h *Handler) getOutstanding(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid payable id")
		return
	}
	view, err := h.ledger.GetOutstanding(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"payable_id":         view.PayableID,
		"outstanding_amount": view.OutstandingAmount,
		"status":             string(view.Status),
	})
}
