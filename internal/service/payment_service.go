package service

import (
	"context"

	"tillcore/internal/apierror"
	"tillcore/internal/dto"
	"tillcore/internal/model"
	"tillcore/internal/money"
	"tillcore/internal/repository"
	"tillcore/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProviderCapture is the request sent to the upstream payment service
// provider for card-style tenders. Cash never leaves the building.
type ProviderCapture struct {
	TenantID string
	OrderID  string
	Method   string
	Amount   string
	Provider string
}

// ProviderRefund reverses (part of) a previously captured provider txn.
type ProviderRefund struct {
	TenantID      string
	ProviderTxnID string
	Amount        string
	Provider      string
}

// ProviderGateway talks to the PSP. Implementations live in infra; the
// reconciliation core only sees the returned transaction id.
type ProviderGateway interface {
	Capture(ctx context.Context, req ProviderCapture) (providerTxnID string, err error)
	Refund(ctx context.Context, req ProviderRefund) (providerTxnID string, err error)
}

// PaymentProcessor is the capture/refund collaborator consumed by the
// settlement reconciler: it applies the money effect and persists the
// resulting payment rows, leaving aggregation to the caller.
type PaymentProcessor interface {
	Capture(ctx context.Context, tenantID, orderID, actorID uuid.UUID, req dto.CaptureRequest) (*model.Payment, error)
	Refund(ctx context.Context, tenantID, paymentID, actorID uuid.UUID, req dto.RefundRequest) (*model.PaymentTransaction, error)
}

type paymentService struct {
	payments   repository.PaymentRepository
	orders     repository.OrderRepository
	ledger     CashLedgerService
	intents    PaymentIntentService
	gateway    ProviderGateway
	dispatcher *worker.Dispatcher
}

func NewPaymentService(
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	ledger CashLedgerService,
	intents PaymentIntentService,
	gateway ProviderGateway,
	dispatcher *worker.Dispatcher,
) PaymentProcessor {
	return &paymentService{
		payments:   payments,
		orders:     orders,
		ledger:     ledger,
		intents:    intents,
		gateway:    gateway,
		dispatcher: dispatcher,
	}
}

// providerInternal marks tenders settled inside the store (cash drawer).
const providerInternal = "internal"

// ── Capture ───────────────────────────────────────────────────────────────────

func (s *paymentService) Capture(ctx context.Context, tenantID, orderID, actorID uuid.UUID, req dto.CaptureRequest) (*model.Payment, error) {
	method := model.PaymentMethod(req.Method)
	if !method.Valid() {
		return nil, apierror.BadRequest("invalid payment method")
	}
	amount := money.Quantize(req.Amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apierror.BadRequest("capture amount must be positive")
	}

	order, err := s.orders.FindByID(ctx, nil, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, apierror.NotFound("order not found")
	}
	if order.Status != model.OrderClosed {
		return nil, apierror.Conflict("captures require a closed order")
	}

	provider := providerInternal
	if req.Provider != nil && *req.Provider != "" {
		provider = *req.Provider
	}
	providerTxnID := req.ProviderTxnID
	if provider != providerInternal && providerTxnID == nil && s.gateway != nil {
		txnID, err := s.gateway.Capture(ctx, ProviderCapture{
			TenantID: tenantID.String(),
			OrderID:  orderID.String(),
			Method:   string(method),
			Amount:   money.String2(amount),
			Provider: provider,
		})
		if err != nil {
			return nil, err
		}
		providerTxnID = &txnID
	}

	payment := &model.Payment{
		TenantID:      tenantID,
		OrderID:       orderID,
		Method:        method,
		Amount:        amount,
		Status:        model.PaymentCaptured,
		Provider:      provider,
		ProviderTxnID: providerTxnID,
		CapturedBy:    actorID,
	}
	txErr := runTx(ctx, s.payments.DB(), func(tx *gorm.DB) error {
		if err := s.payments.Create(ctx, tx, payment); err != nil {
			return err
		}
		return s.payments.CreateTransaction(ctx, tx, &model.PaymentTransaction{
			TenantID:  tenantID,
			PaymentID: payment.ID,
			Type:      model.TxnCapture,
			Amount:    amount,
			CreatedBy: actorID,
		})
	})
	if txErr != nil {
		return nil, txErr
	}

	s.afterEffect(ctx, tenantID, orderID, payment.ID, req.StationID)
	return payment, nil
}

// ── Refund ────────────────────────────────────────────────────────────────────

func (s *paymentService) Refund(ctx context.Context, tenantID, paymentID, actorID uuid.UUID, req dto.RefundRequest) (*model.PaymentTransaction, error) {
	payment, err := s.payments.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, apierror.NotFound("payment not found")
	}
	if payment.Status == model.PaymentCanceled {
		return nil, apierror.Conflict("canceled payments cannot be refunded")
	}

	alreadyRefunded, err := s.payments.SumRefundedByPayment(ctx, nil, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	remaining := money.Quantize(payment.Amount).Sub(money.Quantize(alreadyRefunded))
	if remaining.LessThanOrEqual(decimal.Zero) {
		return nil, apierror.Conflict("payment is already fully refunded")
	}

	amount := remaining
	if req.Amount != nil {
		amount = money.Quantize(*req.Amount)
		if amount.LessThanOrEqual(decimal.Zero) {
			return nil, apierror.BadRequest("refund amount must be positive")
		}
		if amount.GreaterThan(remaining) {
			return nil, apierror.BadRequest("refund amount exceeds the refundable balance")
		}
	}

	if payment.Provider != providerInternal && payment.ProviderTxnID != nil && s.gateway != nil {
		if _, err := s.gateway.Refund(ctx, ProviderRefund{
			TenantID:      tenantID.String(),
			ProviderTxnID: *payment.ProviderTxnID,
			Amount:        money.String2(amount),
			Provider:      payment.Provider,
		}); err != nil {
			return nil, err
		}
	}

	refund := &model.PaymentTransaction{
		TenantID:  tenantID,
		PaymentID: paymentID,
		Type:      model.TxnRefund,
		Amount:    amount,
		Reason:    req.Reason,
		CreatedBy: actorID,
	}
	fullyRefunded := amount.Equal(remaining)
	txErr := runTx(ctx, s.payments.DB(), func(tx *gorm.DB) error {
		if err := s.payments.CreateTransaction(ctx, tx, refund); err != nil {
			return err
		}
		if fullyRefunded {
			return s.payments.UpdateStatus(ctx, tx, paymentID, model.PaymentRefunded)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.afterEffect(ctx, tenantID, payment.OrderID, paymentID, nil)
	return refund, nil
}

// afterEffect runs the post-commit hooks shared by capture and refund:
// drawer attachment, intent completion, and the settled event. All
// best-effort — the payment row is already durable.
func (s *paymentService) afterEffect(ctx context.Context, tenantID, orderID, paymentID uuid.UUID, stationID *string) {
	if stationID != nil {
		if err := s.ledger.TryAttachPaymentToOpenSession(ctx, tenantID, paymentID, stationID); err != nil {
			log.Warn().Err(err).Str("payment_id", paymentID.String()).Msg("session attach failed")
		}
	}

	completed, err := s.intents.TryCompleteForOrder(ctx, tenantID, orderID)
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID.String()).Msg("intent completion check failed")
		return
	}
	if completed && s.dispatcher != nil {
		_ = s.dispatcher.EnqueueOrderSettled(ctx, worker.OrderSettledEvent{
			TenantID: tenantID.String(),
			OrderID:  orderID.String(),
		})
	}
}
