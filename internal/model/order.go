package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the subset of order states this core cares about: an intent
// may only be created against a CLOSED order.
type OrderStatus string

const (
	OrderDraft    OrderStatus = "DRAFT"
	OrderOpen     OrderStatus = "OPEN"
	OrderClosed   OrderStatus = "CLOSED"
	OrderCanceled OrderStatus = "CANCELED"
)

// Order is owned by the ordering subsystem; this core only reads it and
// locks the row inside intent creation. IsSettled is maintained by the owner.
type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status          OrderStatus     `gorm:"type:varchar(12);not null"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsSettled       bool            `gorm:"not null;default:false"`
	CreatedByUserID uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt       time.Time
	// Version is bumped by the owning subsystem on every mutation; kept here
	// so reads expose it to callers doing optimistic updates elsewhere.
	Version int64 `gorm:"not null;default:0"`
}
