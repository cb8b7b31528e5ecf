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

// PaymentIntentService maintains exactly one live collection target per order.
type PaymentIntentService interface {
	// CreateOrGet returns the order's live intent, creating it when absent.
	// It runs in a single transaction holding a row lock on the order, so
	// concurrent callers racing to create the first intent converge on one
	// winner's row.
	CreateOrGet(ctx context.Context, tenantID, orderID, actorID uuid.UUID, opts dto.CreateIntentRequest) (*model.PaymentIntent, error)
	GetByID(ctx context.Context, tenantID, intentID uuid.UUID) (*model.PaymentIntent, error)
	// TryCompleteForOrder moves the order's OPEN intent to COMPLETED once the
	// net captured amount reaches the order total, reporting whether this
	// call performed the transition. Idempotent: no OPEN intent, missing
	// order, or an already-completed intent are all no-ops.
	TryCompleteForOrder(ctx context.Context, tenantID, orderID uuid.UUID) (bool, error)
}

type paymentIntentService struct {
	intents  repository.IntentRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	currency string
}

func NewPaymentIntentService(
	intents repository.IntentRepository,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	currency string,
) PaymentIntentService {
	return &paymentIntentService{intents: intents, orders: orders, payments: payments, currency: currency}
}

// ── CreateOrGet ───────────────────────────────────────────────────────────────

func (s *paymentIntentService) CreateOrGet(ctx context.Context, tenantID, orderID, actorID uuid.UUID, opts dto.CreateIntentRequest) (*model.PaymentIntent, error) {
	var intent *model.PaymentIntent

	txErr := runTx(ctx, s.intents.DB(), func(tx *gorm.DB) error {
		order, err := s.orders.FindByIDForUpdate(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return apierror.NotFound("order not found")
		}
		if order.Status != model.OrderClosed {
			return apierror.Conflict("payment intents require a closed order")
		}

		orderTotal, netCaptured, err := s.netCaptured(ctx, tx, tenantID, orderID, order.Total)
		if err != nil {
			return err
		}
		remainingDue := orderTotal.Sub(netCaptured)

		if remainingDue.LessThanOrEqual(decimal.Zero) {
			// Order was fully paid before any intent existed. Reuse the
			// latest completed intent, or persist a synthetic one so the
			// audit trail still shows a collection target.
			completed, err := s.intents.FindLatestCompletedByOrder(ctx, tx, tenantID, orderID)
			if err != nil {
				return err
			}
			if completed != nil {
				intent = completed
				return nil
			}
			intent = &model.PaymentIntent{
				TenantID:        tenantID,
				OrderID:         orderID,
				Status:          model.IntentCompleted,
				AmountDue:       orderTotal,
				Currency:        s.currency,
				CreatedByUserID: actorID,
			}
			return s.intents.Create(ctx, tx, intent)
		}

		open, err := s.intents.FindLatestOpenByOrder(ctx, tx, tenantID, orderID)
		if err != nil {
			return err
		}
		if open != nil {
			intent = open
			return nil
		}
		intent = &model.PaymentIntent{
			TenantID:        tenantID,
			OrderID:         orderID,
			Status:          model.IntentOpen,
			AmountDue:       remainingDue,
			Currency:        s.currency,
			CreatedByUserID: actorID,
			ExpiresAt:       opts.ExpiresAt,
		}
		return s.intents.Create(ctx, tx, intent)
	})
	if txErr != nil {
		return nil, txErr
	}
	return intent, nil
}

// ── GetByID ───────────────────────────────────────────────────────────────────

func (s *paymentIntentService) GetByID(ctx context.Context, tenantID, intentID uuid.UUID) (*model.PaymentIntent, error) {
	intent, err := s.intents.FindByID(ctx, tenantID, intentID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, apierror.NotFound("payment intent not found")
	}
	return intent, nil
}

// ── TryCompleteForOrder ───────────────────────────────────────────────────────

func (s *paymentIntentService) TryCompleteForOrder(ctx context.Context, tenantID, orderID uuid.UUID) (bool, error) {
	open, err := s.intents.FindLatestOpenByOrder(ctx, nil, tenantID, orderID)
	if err != nil || open == nil {
		return false, err
	}
	order, err := s.orders.FindByID(ctx, nil, tenantID, orderID)
	if err != nil || order == nil {
		return false, err
	}

	orderTotal, netCaptured, err := s.netCaptured(ctx, nil, tenantID, orderID, order.Total)
	if err != nil {
		return false, err
	}
	if netCaptured.LessThan(orderTotal) {
		return false, nil
	}

	// CAS on the version counter; a false result means a concurrent caller
	// already completed the intent, which is fine.
	return s.intents.CompleteCAS(ctx, nil, open.ID, open.Version)
}

// netCaptured quantizes both aggregate legs before subtracting so the result
// matches what callers see in rendered summaries.
func (s *paymentIntentService) netCaptured(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID, total decimal.Decimal) (orderTotal, net decimal.Decimal, err error) {
	captured, err := s.payments.SumCaptured(ctx, tx, tenantID, orderID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	refunded, err := s.payments.SumRefunded(ctx, tx, tenantID, orderID)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return money.Quantize(total), money.Quantize(captured).Sub(money.Quantize(refunded)), nil
}

// IntentToResponse renders an intent for API consumers.
func IntentToResponse(i *model.PaymentIntent) *dto.IntentResponse {
	resp := &dto.IntentResponse{
		ID:        i.ID.String(),
		OrderID:   i.OrderID.String(),
		Status:    string(i.Status),
		AmountDue: money.String2(i.AmountDue),
		Currency:  i.Currency,
		CreatedAt: i.CreatedAt.Format(time.RFC3339),
	}
	if i.ExpiresAt != nil {
		t := i.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &t
	}
	return resp
}
