package repository

import (
	"context"
	"errors"
	"time"

	"tillcore/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CashRepository interface {
	CreateSession(ctx context.Context, s *model.CashSession) error
	FindOpenSessionByStation(ctx context.Context, tenantID uuid.UUID, stationID string) (*model.CashSession, error)
	FindSessionByID(ctx context.Context, tenantID, id uuid.UUID) (*model.CashSession, error)
	UpdateSession(ctx context.Context, tx *gorm.DB, s *model.CashSession) error
	CreateMovement(ctx context.Context, m *model.CashMovement) error
	SumMovementsByType(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (map[model.MovementType]decimal.Decimal, error)
	CreateCount(ctx context.Context, c *model.CashCount) error
	FindLatestFinalCount(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*model.CashCount, error)
	ListSessionsOpenedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.CashSession, error)
	ListClosedSessions(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]model.CashSession, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in the service layer
}

type cashRepo struct{ db *gorm.DB }

func NewCashRepository(db *gorm.DB) CashRepository { return &cashRepo{db: db} }

func (r *cashRepo) DB() *gorm.DB { return r.db }

func (r *cashRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *cashRepo) CreateSession(ctx context.Context, s *model.CashSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *cashRepo) FindOpenSessionByStation(ctx context.Context, tenantID uuid.UUID, stationID string) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND station_id = ? AND status = ?", tenantID, stationID, model.SessionOpen).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &s, err
}

func (r *cashRepo) FindSessionByID(ctx context.Context, tenantID, id uuid.UUID) (*model.CashSession, error) {
	var s model.CashSession
	err := r.db.WithContext(ctx).
		Preload("Movements").
		Preload("Counts").
		Where("tenant_id = ?", tenantID).
		First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &s, err
}

func (r *cashRepo) UpdateSession(ctx context.Context, tx *gorm.DB, s *model.CashSession) error {
	return r.conn(tx).WithContext(ctx).Save(s).Error
}

func (r *cashRepo) CreateMovement(ctx context.Context, m *model.CashMovement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *cashRepo) SumMovementsByType(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (map[model.MovementType]decimal.Decimal, error) {
	var rows []struct {
		Type  model.MovementType
		Total decimal.Decimal
	}
	err := r.conn(tx).WithContext(ctx).
		Model(&model.CashMovement{}).
		Select("type, COALESCE(SUM(amount), 0) AS total").
		Where("session_id = ?", sessionID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[model.MovementType]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[row.Type] = row.Total
	}
	return sums, nil
}

func (r *cashRepo) CreateCount(ctx context.Context, c *model.CashCount) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *cashRepo) FindLatestFinalCount(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*model.CashCount, error) {
	var c model.CashCount
	err := r.conn(tx).WithContext(ctx).
		Where("session_id = ? AND kind = ?", sessionID, model.CountFinal).
		Order("created_at DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &c, err
}

func (r *cashRepo) ListSessionsOpenedBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]model.CashSession, error) {
	var sessions []model.CashSession
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND opened_at BETWEEN ? AND ?", tenantID, from, to).
		Order("opened_at ASC").
		Find(&sessions).Error
	return sessions, err
}

func (r *cashRepo) ListClosedSessions(ctx context.Context, tenantID uuid.UUID, page, limit int) ([]model.CashSession, int64, error) {
	var sessions []model.CashSession
	var total int64

	q := r.db.WithContext(ctx).
		Model(&model.CashSession{}).
		Where("tenant_id = ? AND status = ?", tenantID, model.SessionClosed)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("closed_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}
