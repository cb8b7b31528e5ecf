package service

import (
	"context"
	"time"

	"tillcore/internal/apierror"
	"tillcore/internal/dto"
	"tillcore/internal/model"
	"tillcore/internal/money"
	"tillcore/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Aggregates is the snapshot a reconciliation is computed from.
type Aggregates struct {
	Order      *model.Order
	OrderTotal decimal.Decimal
	Captured   decimal.Decimal
	Refunded   decimal.Decimal
	Net        decimal.Decimal
}

// SettlementService is the facade producing one consistent view of
// {order, intent, summary} and driving capture/refund flows through the
// payment collaborator.
type SettlementService interface {
	ComputeAggregates(ctx context.Context, tenantID, orderID uuid.UUID) (*Aggregates, error)
	Reconcile(ctx context.Context, tenantID, orderID, actorID uuid.UUID) (*dto.ReconcileResponse, error)
	Capture(ctx context.Context, tenantID, orderID, actorID uuid.UUID, req dto.CaptureRequest) (*dto.CaptureResponse, error)
	Refund(ctx context.Context, tenantID, orderID, paymentID, actorID uuid.UUID, req dto.RefundRequest) (*dto.RefundResponse, error)
	ListByOrder(ctx context.Context, tenantID, orderID, actorID uuid.UUID) (*dto.PaymentListResponse, error)
	ListTransactions(ctx context.Context, tenantID, orderID, paymentID uuid.UUID) ([]dto.TransactionResponse, error)
}

type settlementService struct {
	orders    repository.OrderRepository
	payments  repository.PaymentRepository
	intents   PaymentIntentService
	processor PaymentProcessor
}

func NewSettlementService(
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	intents PaymentIntentService,
	processor PaymentProcessor,
) SettlementService {
	return &settlementService{orders: orders, payments: payments, intents: intents, processor: processor}
}

// ── ComputeAggregates ─────────────────────────────────────────────────────────
// One read transaction: order row plus both aggregate legs from the same
// snapshot.

func (s *settlementService) ComputeAggregates(ctx context.Context, tenantID, orderID uuid.UUID) (*Aggregates, error) {
	var agg *Aggregates
	txErr := runTx(ctx, s.orders.DB(), func(tx *gorm.DB) error {
		order, err := s.orders.FindByID(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return apierror.NotFound("order not found")
		}
		captured, err := s.payments.SumCaptured(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		refunded, err := s.payments.SumRefunded(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		capturedQ := money.Quantize(captured)
		refundedQ := money.Quantize(refunded)
		agg = &Aggregates{
			Order:      order,
			OrderTotal: money.Quantize(order.Total),
			Captured:   capturedQ,
			Refunded:   refundedQ,
			Net:        capturedQ.Sub(refundedQ),
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return agg, nil
}

// ── Reconcile ─────────────────────────────────────────────────────────────────

func (s *settlementService) Reconcile(ctx context.Context, tenantID, orderID, actorID uuid.UUID) (*dto.ReconcileResponse, error) {
	agg, err := s.ComputeAggregates(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}

	intent, err := s.intents.CreateOrGet(ctx, tenantID, orderID, actorID, dto.CreateIntentRequest{})
	if err != nil {
		return nil, err
	}

	balance := agg.OrderTotal.Sub(agg.Net)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	// The reported status may run ahead of the persisted row: a zero balance
	// or an order already flagged settled reads as COMPLETED even before the
	// completion hook has caught up.
	status := model.IntentOpen
	if balance.IsZero() || agg.Order.IsSettled || intent.Status == model.IntentCompleted {
		status = model.IntentCompleted
	}

	return &dto.ReconcileResponse{
		Order: dto.OrderView{
			ID:      orderID.String(),
			Total:   money.String2(agg.OrderTotal),
			Paid:    money.String2(agg.Net),
			Balance: money.String2(balance),
		},
		Intent: dto.IntentView{
			ID:        intent.ID.String(),
			Status:    string(status),
			AmountDue: money.String2(intent.AmountDue),
		},
		Summary: dto.SummaryView{
			Captured: money.String2(agg.Captured),
			Refunded: money.String2(agg.Refunded),
			Net:      money.String2(agg.Net),
		},
	}, nil
}

// ── Capture ───────────────────────────────────────────────────────────────────
// The intent is ensured before the capture effect so that its amount_due
// reflects what was still owed going in.

func (s *settlementService) Capture(ctx context.Context, tenantID, orderID, actorID uuid.UUID, req dto.CaptureRequest) (*dto.CaptureResponse, error) {
	if _, err := s.intents.CreateOrGet(ctx, tenantID, orderID, actorID, dto.CreateIntentRequest{}); err != nil {
		return nil, err
	}

	payment, err := s.processor.Capture(ctx, tenantID, orderID, actorID, req)
	if err != nil {
		return nil, err
	}

	rec, err := s.Reconcile(ctx, tenantID, orderID, actorID)
	if err != nil {
		return nil, err
	}
	return &dto.CaptureResponse{
		Payment: paymentToResponse(payment),
		Order:   rec.Order,
		Intent:  rec.Intent,
		Summary: rec.Summary,
	}, nil
}

// ── Refund ────────────────────────────────────────────────────────────────────

func (s *settlementService) Refund(ctx context.Context, tenantID, orderID, paymentID, actorID uuid.UUID, req dto.RefundRequest) (*dto.RefundResponse, error) {
	payment, err := s.payments.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.OrderID != orderID {
		return nil, apierror.NotFound("payment not found")
	}

	refund, err := s.processor.Refund(ctx, tenantID, paymentID, actorID, req)
	if err != nil {
		return nil, err
	}

	rec, err := s.Reconcile(ctx, tenantID, orderID, actorID)
	if err != nil {
		return nil, err
	}
	return &dto.RefundResponse{
		Refund:  transactionToResponse(refund),
		Order:   rec.Order,
		Intent:  rec.Intent,
		Summary: rec.Summary,
	}, nil
}

// ── List projections ──────────────────────────────────────────────────────────

func (s *settlementService) ListByOrder(ctx context.Context, tenantID, orderID, actorID uuid.UUID) (*dto.PaymentListResponse, error) {
	rec, err := s.Reconcile(ctx, tenantID, orderID, actorID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.PaymentResponse, 0, len(payments))
	for i := range payments {
		items = append(items, paymentToResponse(&payments[i]))
	}
	return &dto.PaymentListResponse{Payments: items, Reconciled: *rec}, nil
}

func (s *settlementService) ListTransactions(ctx context.Context, tenantID, orderID, paymentID uuid.UUID) ([]dto.TransactionResponse, error) {
	payment, err := s.payments.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.OrderID != orderID {
		return nil, apierror.NotFound("payment not found")
	}
	txns, err := s.payments.ListTransactions(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, transactionToResponse(&txns[i]))
	}
	return items, nil
}

// ── Mappers ───────────────────────────────────────────────────────────────────

func paymentToResponse(p *model.Payment) dto.PaymentResponse {
	resp := dto.PaymentResponse{
		ID:            p.ID.String(),
		OrderID:       p.OrderID.String(),
		Method:        string(p.Method),
		Amount:        money.String2(p.Amount),
		Status:        string(p.Status),
		Provider:      p.Provider,
		ProviderTxnID: p.ProviderTxnID,
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
	}
	if p.SessionID != nil {
		sid := p.SessionID.String()
		resp.SessionID = &sid
	}
	return resp
}

func transactionToResponse(t *model.PaymentTransaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:        t.ID.String(),
		PaymentID: t.PaymentID.String(),
		Type:      string(t.Type),
		Amount:    money.String2(t.Amount),
		Reason:    t.Reason,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}
