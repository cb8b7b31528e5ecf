package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is the closed set of tender types.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodDebit    PaymentMethod = "DEBIT"
	MethodCredit   PaymentMethod = "CREDIT"
	MethodPix      PaymentMethod = "PIX"
	MethodVoucher  PaymentMethod = "VOUCHER"
	MethodTransfer PaymentMethod = "TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodDebit, MethodCredit, MethodPix, MethodVoucher, MethodTransfer:
		return true
	}
	return false
}

// PaymentStatus is the settlement state of a captured payment.
type PaymentStatus string

const (
	PaymentCaptured PaymentStatus = "CAPTURED"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentCanceled PaymentStatus = "CANCELED"
)

// TxnType classifies a payment transaction.
type TxnType string

const (
	TxnCapture TxnType = "CAPTURE"
	TxnRefund  TxnType = "REFUND"
	TxnVoid    TxnType = "VOID"
)

// Payment is a captured tender against an order. The reconciliation core
// reads these rows and, via the session attach hook, links cash payments to
// the open drawer session of their station.
type Payment struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_payments_tenant_order"`
	OrderID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_payments_tenant_order"`
	SessionID     *uuid.UUID      `gorm:"type:uuid;index"`
	Method        PaymentMethod   `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status        PaymentStatus   `gorm:"type:varchar(12);not null;default:'CAPTURED'"`
	Provider      string          `gorm:"type:varchar(40)"`
	ProviderTxnID *string         `gorm:"type:varchar(128)"`
	CapturedBy    uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt     time.Time

	Transactions []PaymentTransaction `gorm:"foreignKey:PaymentID"`
}

// PaymentTransaction is one capture/refund/void effect on a payment.
type PaymentTransaction struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Type      TxnType         `gorm:"type:varchar(10);not null"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Reason    *string
	CreatedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}
