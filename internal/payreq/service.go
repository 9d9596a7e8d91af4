package payreq

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fin/meridian/internal/payable"
	"github.com/meridian-fin/meridian/internal/shared"
)

// approvalModule keys the approval history trail for payment requests.
const approvalModule = "payment_request"

// Repository defines payment request data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	Create(ctx context.Context, req PaymentRequest) (PaymentRequest, error)
	Get(ctx context.Context, id int64) (PaymentRequest, error)
	List(ctx context.Context, req ListRequest) ([]PaymentRequest, error)
}

// TxRepository defines the operations that make up one workflow
// transition. Settlement touches both the request row and the payable
// row inside the same transaction; that pairing is what keeps the
// re-check, the balance mutation and the status flip atomic.
type TxRepository interface {
	GetRequestForUpdate(ctx context.Context, id int64) (PaymentRequest, error)
	UpdateDecision(ctx context.Context, id int64, status RequestStatus, rejectionReason string, actorID int64, at time.Time) error
	MarkPaid(ctx context.Context, id int64, reference, notes string, actorID int64, at time.Time) error

	GetPayableForUpdate(ctx context.Context, payableID int64) (payable.Payable, error)
	UpdatePayableBalance(ctx context.Context, payableID int64, outstanding float64, status payable.Status) error
}

// LedgerPort is the slice of the payable ledger the workflow needs
// outside of settlement transactions.
type LedgerPort interface {
	GetOutstanding(ctx context.Context, payableID int64) (payable.OutstandingView, error)
}

// Workflow enforces the payment request state machine and its
// interaction with the payable ledger.
type Workflow struct {
	repo      Repository
	ledger    LedgerPort
	clock     shared.Clock
	logger    *slog.Logger
	approvals *shared.ApprovalRecorder
}

// NewWorkflow builds a Workflow. The approval recorder may be nil.
func NewWorkflow(repo Repository, ledger LedgerPort, clock shared.Clock, logger *slog.Logger, approvals *shared.ApprovalRecorder) *Workflow {
	return &Workflow{repo: repo, ledger: ledger, clock: clock, logger: logger, approvals: approvals}
}

// Submit validates a new request against the payable's current
// outstanding balance and creates it in pending. The balance is not
// reserved: other requests may settle first, and settlement
// re-validates against the balance current at that moment.
func (w *Workflow) Submit(ctx context.Context, input SubmitInput) (PaymentRequest, error) {
	if input.PayableID <= 0 {
		return PaymentRequest{}, shared.Validationf("payable id required")
	}
	if input.PaymentType != PaymentFull && input.PaymentType != PaymentPartial {
		return PaymentRequest{}, shared.Validationf("payment type must be full or partial")
	}
	if input.PaymentChannel == "" {
		return PaymentRequest{}, shared.Validationf("payment channel required")
	}
	if input.UrgencyLevel == "" {
		input.UrgencyLevel = UrgencyNormal
	}
	if !ValidUrgency(input.UrgencyLevel) {
		return PaymentRequest{}, shared.Validationf("unknown urgency level %q", input.UrgencyLevel)
	}

	view, err := w.ledger.GetOutstanding(ctx, input.PayableID)
	if err != nil {
		return PaymentRequest{}, err
	}

	amount := input.RequestedAmount
	if input.PaymentType == PaymentFull {
		// Full always means the outstanding balance as of submission.
		// A caller-supplied amount that disagrees is a stale view of
		// the payable, not a smaller request.
		if input.RequestedAmount != 0 && input.RequestedAmount != view.OutstandingAmount {
			return PaymentRequest{}, shared.Validationf(
				"full payment must equal outstanding amount %.2f", view.OutstandingAmount)
		}
		amount = view.OutstandingAmount
	}
	if amount <= 0 {
		return PaymentRequest{}, shared.Validationf("requested amount must be positive")
	}
	if amount > view.OutstandingAmount {
		return PaymentRequest{}, shared.Validationf(
			"requested amount %.2f exceeds outstanding %.2f", amount, view.OutstandingAmount)
	}

	now := w.clock.Now()
	created, err := w.repo.Create(ctx, PaymentRequest{
		PublicID:        uuid.New(),
		PayableID:       input.PayableID,
		PaymentType:     input.PaymentType,
		RequestedAmount: amount,
		PaymentChannel:  input.PaymentChannel,
		UrgencyLevel:    input.UrgencyLevel,
		RequestReason:   input.RequestReason,
		Status:          StatusPending,
		RequestedBy:     shared.ActorFromContext(ctx),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return PaymentRequest{}, err
	}

	w.recordApproval(ctx, created, shared.ApprovalSubmit, input.RequestReason)
	return created, nil
}

// Approve transitions pending → approved.
func (w *Workflow) Approve(ctx context.Context, requestID int64) (PaymentRequest, error) {
	return w.decide(ctx, requestID, StatusApproved, "")
}

// Reject transitions pending → rejected with the given reason. It has
// no ledger effect and is permitted on any pending request regardless
// of the payable's state.
func (w *Workflow) Reject(ctx context.Context, requestID int64, reason string) (PaymentRequest, error) {
	if reason == "" {
		return PaymentRequest{}, shared.Validationf("rejection reason required")
	}
	return w.decide(ctx, requestID, StatusRejected, reason)
}

func (w *Workflow) decide(ctx context.Context, requestID int64, to RequestStatus, reason string) (PaymentRequest, error) {
	actorID := shared.ActorFromContext(ctx)
	now := w.clock.Now()

	var decided PaymentRequest
	err := w.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != StatusPending {
			return shared.InvalidTransitionf("request %d is %s, expected pending", requestID, req.Status)
		}
		if err := tx.UpdateDecision(ctx, requestID, to, reason, actorID, now); err != nil {
			return err
		}
		req.Status = to
		req.RejectionReason = reason
		req.DecidedBy = &actorID
		req.DecidedAt = &now
		req.UpdatedAt = now
		decided = req
		return nil
	})
	if err != nil {
		return PaymentRequest{}, err
	}

	action := shared.ApprovalApprove
	if to == StatusRejected {
		action = shared.ApprovalReject
	}
	w.recordApproval(ctx, decided, action, reason)
	return decided, nil
}

// Settle transitions approved → paid. The re-check against the current
// outstanding balance, the ledger decrement and the request status
// flip all happen in one transaction holding the payable row lock.
// When the re-check fails the transaction rolls back and the request
// stays approved for manual reconciliation.
func (w *Workflow) Settle(ctx context.Context, input SettleInput) (PaymentRequest, error) {
	actorID := shared.ActorFromContext(ctx)
	now := w.clock.Now()

	var settled PaymentRequest
	err := w.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		req, err := tx.GetRequestForUpdate(ctx, input.RequestID)
		if err != nil {
			return err
		}
		if req.Status != StatusApproved {
			return shared.InvalidTransitionf("request %d is %s, expected approved", input.RequestID, req.Status)
		}

		locked, err := tx.GetPayableForUpdate(ctx, req.PayableID)
		if err != nil {
			return err
		}

		// Another request may have settled since approval; the rule
		// re-validates against the balance as it stands now.
		updated, err := payable.Settle(locked, req.RequestedAmount, now)
		if err != nil {
			return err
		}
		if err := tx.UpdatePayableBalance(ctx, updated.ID, updated.OutstandingAmount, updated.Status); err != nil {
			return err
		}
		if err := tx.MarkPaid(ctx, req.ID, input.PaymentReference, input.PaymentNotes, actorID, now); err != nil {
			return err
		}

		req.Status = StatusPaid
		req.PaymentReference = input.PaymentReference
		req.PaymentNotes = input.PaymentNotes
		req.SettledBy = &actorID
		req.SettledAt = &now
		req.UpdatedAt = now
		settled = req
		return nil
	})
	if err != nil {
		return PaymentRequest{}, err
	}

	w.recordApproval(ctx, settled, shared.ApprovalSettle, input.PaymentReference)
	return settled, nil
}

// Get returns a payment request by id.
func (w *Workflow) Get(ctx context.Context, requestID int64) (PaymentRequest, error) {
	return w.repo.Get(ctx, requestID)
}

// List returns payment requests matching the filter.
func (w *Workflow) List(ctx context.Context, req ListRequest) ([]PaymentRequest, error) {
	return w.repo.List(ctx, req)
}

// History returns the approval trail for a request.
func (w *Workflow) History(ctx context.Context, requestID int64) ([]shared.ApprovalLog, error) {
	if w.approvals == nil {
		return nil, nil
	}
	req, err := w.repo.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	return w.approvals.List(ctx, approvalModule, req.PublicID)
}

// recordApproval writes the history row after the transition has
// committed. Failures are logged, not propagated: the trail is an
// observability concern and must not unwind a committed transition.
func (w *Workflow) recordApproval(ctx context.Context, req PaymentRequest, action shared.ApprovalAction, note string) {
	if w.approvals == nil {
		return
	}
	if err := w.approvals.Record(ctx, shared.ApprovalLog{
		Module:  approvalModule,
		RefID:   req.PublicID,
		ActorID: shared.ActorFromContext(ctx),
		Action:  action,
		Note:    note,
	}); err != nil {
		w.logger.Warn("record approval history",
			slog.Int64("request_id", req.ID),
			slog.String("action", string(action)),
			slog.Any("error", err))
	}
}
