package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentStatus is the state of a payment intent. COMPLETED is terminal.
type IntentStatus string

const (
	IntentOpen      IntentStatus = "OPEN"
	IntentCompleted IntentStatus = "COMPLETED"
)

// PaymentIntent is the single live collection target for an order: how much
// remained due when collection started. At most one OPEN intent exists per
// (tenant, order); completed intents accumulate for audit and are never
// deleted.
type PaymentIntent struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_payment_intents_tenant_order"`
	OrderID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_payment_intents_tenant_order"`
	Status          IntentStatus    `gorm:"type:varchar(12);not null;default:'OPEN'"`
	AmountDue       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency        string          `gorm:"type:varchar(3);not null"`
	CreatedByUserID uuid.UUID       `gorm:"type:uuid;not null"`
	ExpiresAt       *time.Time
	CreatedAt       time.Time
	// Version backs compare-and-swap status updates: the transition to
	// COMPLETED only commits when the observed version still matches.
	Version int64 `gorm:"not null;default:0"`
}
