package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tillcore/internal/money"
)

// SessionStatus is the lifecycle state of a cash-drawer session.
type SessionStatus string

const (
	SessionOpen   SessionStatus = "OPEN"
	SessionClosed SessionStatus = "CLOSED"
)

func (s SessionStatus) Valid() bool {
	return s == SessionOpen || s == SessionClosed
}

// MovementType is a manual drawer adjustment direction.
type MovementType string

const (
	MovementSuprimento MovementType = "SUPRIMENTO" // cash-in
	MovementSangria    MovementType = "SANGRIA"    // cash-out
)

func (t MovementType) Valid() bool {
	return t == MovementSuprimento || t == MovementSangria
}

// CountKind classifies a physical cash count snapshot.
type CountKind string

const (
	CountOpening CountKind = "OPENING"
	CountPartial CountKind = "PARTIAL"
	CountFinal   CountKind = "FINAL"
)

func (k CountKind) Valid() bool {
	return k == CountOpening || k == CountPartial || k == CountFinal
}

// CashSession tracks one cash drawer between open and close for a station.
// At most one OPEN session may exist per (tenant, station) — guarded in the
// service and backed by a partial unique index.
type CashSession struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;index:idx_cash_sessions_tenant_station"`
	StationID      string         `gorm:"type:varchar(64);not null;index:idx_cash_sessions_tenant_station"`
	Status         SessionStatus  `gorm:"type:varchar(10);not null;default:'OPEN'"`
	OpenedByUserID uuid.UUID      `gorm:"type:uuid;not null"`
	OpeningFloat   money.Map      `gorm:"type:jsonb;not null;default:'{}'"`
	// TotalsByMethod and PaymentsCount are frozen at close; fixed-2 strings
	// so the reconciled figures never drift after the fact.
	TotalsByMethod map[string]string `gorm:"type:jsonb;serializer:json"`
	PaymentsCount  money.CountMap    `gorm:"type:jsonb"`
	OpenedAt       time.Time
	ClosedAt       *time.Time
	Notes          *string

	Movements []CashMovement `gorm:"foreignKey:SessionID"`
	Counts    []CashCount    `gorm:"foreignKey:SessionID"`
}

// CashMovement is an immutable manual adjustment against an OPEN session.
// Movements are never updated or deleted.
type CashMovement struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type            MovementType    `gorm:"type:varchar(12);not null"`
	Method          PaymentMethod   `gorm:"type:varchar(20);not null"` // always CASH
	Amount          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason          string          `gorm:"not null"`
	CreatedByUserID uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt       time.Time
}

// CashCount is a physical count snapshot recorded against an OPEN session.
// Denominations keep the raw breakdown exactly as declared by the cashier.
type CashCount struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Kind            CountKind       `gorm:"type:varchar(12);not null"`
	Denominations   []byte          `gorm:"type:jsonb"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CountedByUserID uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt       time.Time
}
