package repository

import (
	"context"
	"errors"

	"tillcore/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IntentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, i *model.PaymentIntent) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.PaymentIntent, error)
	FindLatestOpenByOrder(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID) (*model.PaymentIntent, error)
	FindLatestCompletedByOrder(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID) (*model.PaymentIntent, error)
	// CompleteCAS transitions an OPEN intent to COMPLETED iff the stored
	// version still matches. Returns false when the row was already moved
	// by a concurrent caller.
	CompleteCAS(ctx context.Context, tx *gorm.DB, id uuid.UUID, version int64) (bool, error)
	DB() *gorm.DB
}

type intentRepo struct{ db *gorm.DB }

func NewIntentRepository(db *gorm.DB) IntentRepository { return &intentRepo{db: db} }

func (r *intentRepo) DB() *gorm.DB { return r.db }

func (r *intentRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *intentRepo) Create(ctx context.Context, tx *gorm.DB, i *model.PaymentIntent) error {
	return r.conn(tx).WithContext(ctx).Create(i).Error
}

func (r *intentRepo) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*model.PaymentIntent, error) {
	var i model.PaymentIntent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&i, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &i, err
}

func (r *intentRepo) FindLatestOpenByOrder(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID) (*model.PaymentIntent, error) {
	return r.findLatestByStatus(ctx, tx, tenantID, orderID, model.IntentOpen)
}

func (r *intentRepo) FindLatestCompletedByOrder(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID) (*model.PaymentIntent, error) {
	return r.findLatestByStatus(ctx, tx, tenantID, orderID, model.IntentCompleted)
}

func (r *intentRepo) findLatestByStatus(ctx context.Context, tx *gorm.DB, tenantID, orderID uuid.UUID, status model.IntentStatus) (*model.PaymentIntent, error) {
	var i model.PaymentIntent
	err := r.conn(tx).WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND status = ?", tenantID, orderID, status).
		Order("created_at DESC").
		First(&i).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &i, err
}

func (r *intentRepo) CompleteCAS(ctx context.Context, tx *gorm.DB, id uuid.UUID, version int64) (bool, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&model.PaymentIntent{}).
		Where("id = ? AND version = ? AND status = ?", id, version, model.IntentOpen).
		Updates(map[string]interface{}{
			"status":  model.IntentCompleted,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
