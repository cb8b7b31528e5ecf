package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateIntentRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

type CaptureRequest struct {
	Method        string          `json:"method"          validate:"required,oneof=CASH DEBIT CREDIT PIX VOUCHER TRANSFER"`
	Amount        decimal.Decimal `json:"amount"          validate:"required,gt=0"`
	Provider      *string         `json:"provider"`
	ProviderTxnID *string         `json:"provider_txn_id"`
	StationID     *string         `json:"station_id"`
}

type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	Reason *string          `json:"reason"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type IntentResponse struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	AmountDue string  `json:"amount_due"`
	Currency  string  `json:"currency"`
	ExpiresAt *string `json:"expires_at"`
	CreatedAt string  `json:"created_at"`
}

// OrderView is the reconciled money position of an order.
type OrderView struct {
	ID      string `json:"id"`
	Total   string `json:"total"`
	Paid    string `json:"paid"`
	Balance string `json:"balance"`
}

// IntentView is the intent as reported by reconcile: the status may read
// COMPLETED ahead of the persisted row when the balance already reached zero.
type IntentView struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	AmountDue string `json:"amount_due"`
}

type SummaryView struct {
	Captured string `json:"captured"`
	Refunded string `json:"refunded"`
	Net      string `json:"net"`
}

type ReconcileResponse struct {
	Order   OrderView   `json:"order"`
	Intent  IntentView  `json:"intent"`
	Summary SummaryView `json:"summary"`
}

type PaymentResponse struct {
	ID            string  `json:"id"`
	OrderID       string  `json:"order_id"`
	SessionID     *string `json:"session_id"`
	Method        string  `json:"method"`
	Amount        string  `json:"amount"`
	Status        string  `json:"status"`
	Provider      string  `json:"provider"`
	ProviderTxnID *string `json:"provider_txn_id"`
	CreatedAt     string  `json:"created_at"`
}

type TransactionResponse struct {
	ID        string  `json:"id"`
	PaymentID string  `json:"payment_id"`
	Type      string  `json:"type"`
	Amount    string  `json:"amount"`
	Reason    *string `json:"reason"`
	CreatedAt string  `json:"created_at"`
}

type CaptureResponse struct {
	Payment PaymentResponse `json:"payment"`
	Order   OrderView       `json:"order"`
	Intent  IntentView      `json:"intent"`
	Summary SummaryView     `json:"summary"`
}

type RefundResponse struct {
	Refund  TransactionResponse `json:"refund"`
	Order   OrderView           `json:"order"`
	Intent  IntentView          `json:"intent"`
	Summary SummaryView         `json:"summary"`
}

type PaymentListResponse struct {
	Payments   []PaymentResponse `json:"payments"`
	Reconciled ReconcileResponse `json:"reconciled"`
}
