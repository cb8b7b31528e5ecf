package repository

import (
	"context"
	"errors"

	"tillcore/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository reads orders owned by the ordering subsystem. The ForUpdate
// variant acquires a row-level lock and must only be called inside a
// transaction.
type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error)
	DB() *gorm.DB
}

type orderRepo struct{ db *gorm.DB }

func NewOrderRepository(db *gorm.DB) OrderRepository { return &orderRepo{db: db} }

func (r *orderRepo) DB() *gorm.DB { return r.db }

func (r *orderRepo) Create(ctx context.Context, o *model.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *orderRepo) FindByID(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.conn(tx).WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &o, err
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, tenantID, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ?", tenantID).
		First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &o, err
}
