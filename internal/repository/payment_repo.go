package repository

import (
	"context"
	"errors"

	"tillcore/internal/model"
	"tillcore/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, p *model.Payment) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status model.PaymentStatus) error
	AttachSession(ctx context.Context, tenantID, paymentID, sessionID uuid.UUID) error
	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.PaymentTransaction) error
	ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]model.Payment, error)
	ListTransactions(ctx context.Context, tenantID, paymentID uuid.UUID) ([]model.PaymentTransaction, error)
	// Aggregates. The tx parameter lets callers run them inside a locking
	// transaction for snapshot consistency; nil falls back to the pool.
	SumCaptured(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error)
	SumRefunded(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error)
	SumRefundedByPayment(ctx context.Context, tx *gorm.DB, tenantID, paymentID uuid.UUID) (decimal.Decimal, error)
	SumCapturedBySession(ctx context.Context, tx *gorm.DB, tenantID, sessionID uuid.UUID) (money.Map, money.CountMap, error)
	DB() *gorm.DB // exposes the DB for transaction creation in the service layer
}

type paymentRepo struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) PaymentRepository { return &paymentRepo{db: db} }

func (r *paymentRepo) DB() *gorm.DB { return r.db }

func (r *paymentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *paymentRepo) Create(ctx context.Context, tx *gorm.DB, p *model.Payment) error {
	return r.conn(tx).WithContext(ctx).Create(p).Error
}

func (r *paymentRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &p, err
}

func (r *paymentRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status model.PaymentStatus) error {
	return r.conn(tx).WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *paymentRepo) AttachSession(ctx context.Context, tenantID, paymentID, sessionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("id = ? AND tenant_id = ?", paymentID, tenantID).
		Update("session_id", sessionID).Error
}

func (r *paymentRepo) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.PaymentTransaction) error {
	return r.conn(tx).WithContext(ctx).Create(t).Error
}

func (r *paymentRepo) ListByOrder(ctx context.Context, tenantID, orderID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", tenantID, orderID).
		Order("created_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) ListTransactions(ctx context.Context, tenantID, paymentID uuid.UUID) ([]model.PaymentTransaction, error) {
	var txns []model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND payment_id = ?", tenantID, paymentID).
		Order("created_at ASC").
		Find(&txns).Error
	return txns, err
}

// SumCaptured totals CAPTURE transactions rather than payment rows so the
// captured leg survives a later status flip to REFUNDED; net stays
// captured − refunded across the payment's whole history. CANCELED payments
// are excluded entirely: a voided capture never counted as collected.
func (r *paymentRepo) SumCaptured(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByOrder(ctx, tx, tenantID, orderID, model.TxnCapture)
}

func (r *paymentRepo) SumRefunded(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByOrder(ctx, tx, tenantID, orderID, model.TxnRefund)
}

func (r *paymentRepo) sumByOrder(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID, typ model.TxnType) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.conn(tx).WithContext(ctx).
		Model(&model.PaymentTransaction{}).
		Select("COALESCE(SUM(payment_transactions.amount), 0)").
		Joins("JOIN payments ON payments.id = payment_transactions.payment_id").
		Where("payment_transactions.tenant_id = ? AND payment_transactions.type = ? AND payments.order_id = ? AND payments.status <> ?",
			tenantID, typ, orderID, model.PaymentCanceled).
		Scan(&total).Error
	return total, err
}

func (r *paymentRepo) SumRefundedByPayment(ctx context.Context, tx *gorm.DB, tenantID, paymentID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.conn(tx).WithContext(ctx).
		Model(&model.PaymentTransaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("tenant_id = ? AND payment_id = ? AND type = ?", tenantID, paymentID, model.TxnRefund).
		Scan(&total).Error
	return total, err
}

// SumCapturedBySession groups captured payment amounts and counts by method
// for one drawer session; feeds the end-of-shift summary.
func (r *paymentRepo) SumCapturedBySession(ctx context.Context, tx *gorm.DB, tenantID, sessionID uuid.UUID) (money.Map, money.CountMap, error) {
	var rows []struct {
		Method model.PaymentMethod
		Total  decimal.Decimal
		N      int64
	}
	err := r.conn(tx).WithContext(ctx).
		Model(&model.Payment{}).
		Select("method, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS n").
		Where("tenant_id = ? AND session_id = ? AND status = ?", tenantID, sessionID, model.PaymentCaptured).
		Group("method").
		Scan(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	byMethod := money.Map{}
	counts := money.CountMap{}
	var total int64
	for _, row := range rows {
		byMethod[string(row.Method)] = row.Total
		counts[string(row.Method)] = row.N
		total += row.N
	}
	counts["total"] = total
	return byMethod, counts, nil
}
