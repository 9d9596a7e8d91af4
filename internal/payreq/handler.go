package payreq

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-fin/meridian/internal/platform/httpx"
	"github.com/meridian-fin/meridian/internal/shared"
)

// Handler exposes payment request endpoints.
type Handler struct {
	logger      *slog.Logger
	workflow    *Workflow
	idempotency *shared.IdempotencyStore
	validator   *validator.Validate
}

// NewHandler builds Handler instance. The idempotency store may be nil.
func NewHandler(logger *slog.Logger, workflow *Workflow, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{logger: logger, workflow: workflow, idempotency: idempotency, validator: validator.New()}
}

// MountRoutes registers payment request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.submit)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/history", h.history)
	r.Post("/{id}/approve", h.approve)
	r.Post("/{id}/reject", h.reject)
	r.Post("/{id}/settle", h.settle)
}

type submitRequest struct {
	PayableID       int64   `json:"payable_id" validate:"required,gt=0"`
	PaymentType     string  `json:"payment_type" validate:"required,oneof=full partial"`
	RequestedAmount float64 `json:"requested_amount"`
	PaymentChannel  string  `json:"payment_channel" validate:"required"`
	UrgencyLevel    string  `json:"urgency_level" validate:"omitempty,oneof=low normal high urgent"`
	RequestReason   string  `json:"request_reason"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type settleRequest struct {
	PaymentReference string `json:"payment_reference"`
	PaymentNotes     string `json:"payment_notes"`
}

type requestResponse struct {
	ID               int64   `json:"id"`
	PublicID         string  `json:"public_id"`
	PayableID        int64   `json:"payable_id"`
	PaymentType      string  `json:"payment_type"`
	RequestedAmount  float64 `json:"requested_amount"`
	PaymentChannel   string  `json:"payment_channel"`
	UrgencyLevel     string  `json:"urgency_level"`
	RequestReason    string  `json:"request_reason,omitempty"`
	Status           string  `json:"status"`
	RejectionReason  string  `json:"rejection_reason,omitempty"`
	PaymentReference string  `json:"payment_reference,omitempty"`
	PaymentNotes     string  `json:"payment_notes,omitempty"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
}

func toRequestResponse(req PaymentRequest) requestResponse {
	return requestResponse{
		ID:               req.ID,
		PublicID:         req.PublicID.String(),
		PayableID:        req.PayableID,
		PaymentType:      string(req.PaymentType),
		RequestedAmount:  req.RequestedAmount,
		PaymentChannel:   req.PaymentChannel,
		UrgencyLevel:     string(req.UrgencyLevel),
		RequestReason:    req.RequestReason,
		Status:           string(req.Status),
		RejectionReason:  req.RejectionReason,
		PaymentReference: req.PaymentReference,
		PaymentNotes:     req.PaymentNotes,
		CreatedAt:        req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        req.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if h.idempotency != nil && idemKey != "" {
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "payreq.submit"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	created, err := h.workflow.Submit(r.Context(), SubmitInput{
		PayableID:       req.PayableID,
		PaymentType:     PaymentType(req.PaymentType),
		RequestedAmount: req.RequestedAmount,
		PaymentChannel:  req.PaymentChannel,
		UrgencyLevel:    UrgencyLevel(req.UrgencyLevel),
		RequestReason:   req.RequestReason,
	})
	if err != nil {
		// Release the key so the caller can retry after fixing input.
		if h.idempotency != nil && idemKey != "" {
			if delErr := h.idempotency.Delete(r.Context(), idemKey); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRequestResponse(created))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var payableID int64
	if raw := r.URL.Query().Get("payable_id"); raw != "" {
		payableID, _ = strconv.ParseInt(raw, 10, 64)
	}

	requests, err := h.workflow.List(r.Context(), ListRequest{
		PayableID: payableID,
		Status:    RequestStatus(r.URL.Query().Get("status")),
		Limit:     200,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	out := make([]requestResponse, 0, len(requests))
	for _, req := range requests {
		out = append(out, toRequestResponse(req))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"payment_requests": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	req, err := h.workflow.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(req))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	logs, err := h.workflow.History(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	type entry struct {
		ActorID int64  `json:"actor_id"`
		Action  string `json:"action"`
		Note    string `json:"note,omitempty"`
		At      string `json:"at"`
	}
	out := make([]entry, 0, len(logs))
	for _, l := range logs {
		out = append(out, entry{
			ActorID: l.ActorID,
			Action:  string(l.Action),
			Note:    l.Note,
			At:      l.At.Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": out})
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	approved, err := h.workflow.Approve(r.Context(), id)
	if err != nil {
		h.logger.Warn("approve payment request", slog.Int64("request_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(approved))
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rejected, err := h.workflow.Reject(r.Context(), id, req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(rejected))
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestID(w, r)
	if !ok {
		return
	}
	// Reference and notes are optional metadata; an empty body is a
	// valid settle.
	var req settleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	settled, err := h.workflow.Settle(r.Context(), SettleInput{
		RequestID:        id,
		PaymentReference: req.PaymentReference,
		PaymentNotes:     req.PaymentNotes,
	})
	if err != nil {
		h.logger.Warn("settle payment request", slog.Int64("request_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(settled))
}

func (h *Handler) requestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request id")
		return 0, false
	}
	return id, true
}
