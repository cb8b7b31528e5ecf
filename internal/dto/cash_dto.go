package dto

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

type OpenSessionRequest struct {
	StationID    string                     `json:"station_id"    validate:"required,min=1,max=64"`
	OpeningFloat map[string]decimal.Decimal `json:"opening_float" validate:"omitempty,dive,keys,oneof=CASH DEBIT CREDIT PIX VOUCHER TRANSFER,endkeys"`
	Notes        *string                    `json:"notes"`
}

type MovementRequest struct {
	SessionID string          `json:"session_id" validate:"required,uuid"`
	Type      string          `json:"type"       validate:"required,oneof=SUPRIMENTO SANGRIA"`
	Method    string          `json:"method"     validate:"required,oneof=CASH DEBIT CREDIT PIX VOUCHER TRANSFER"`
	Amount    decimal.Decimal `json:"amount"     validate:"required,gt=0"`
	Reason    string          `json:"reason"     validate:"required,min=3"`
}

type CountRequest struct {
	SessionID     string          `json:"session_id"    validate:"required,uuid"`
	Kind          string          `json:"kind"          validate:"required,oneof=OPENING PARTIAL FINAL"`
	Denominations json.RawMessage `json:"denominations"`
	Total         decimal.Decimal `json:"total"         validate:"min=0"`
}

type CloseSessionRequest struct {
	Note *string `json:"note"`
}

type ReopenSessionRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type SessionResponse struct {
	ID             string            `json:"id"`
	StationID      string            `json:"station_id"`
	Status         string            `json:"status"`
	OpenedByUserID string            `json:"opened_by_user_id"`
	OpeningFloat   map[string]string `json:"opening_float"`
	TotalsByMethod map[string]string `json:"totals_by_method,omitempty"`
	PaymentsCount  map[string]int64  `json:"payments_count,omitempty"`
	// CashExpected is the live drawer projection served on single-session
	// reads: opening cash + suprimentos − sangrias + captured cash so far.
	CashExpected *string             `json:"cash_expected,omitempty"`
	Movements    []MovementResponse  `json:"movements,omitempty"`
	Counts       []CountResponse     `json:"counts,omitempty"`
	OpenedAt     string              `json:"opened_at"`
	ClosedAt     *string             `json:"closed_at"`
	Notes        *string             `json:"notes"`
}

type MovementResponse struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Type      string `json:"type"`
	Method    string `json:"method"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
	CreatedAt string `json:"created_at"`
}

type CountResponse struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	Kind          string          `json:"kind"`
	Denominations json.RawMessage `json:"denominations,omitempty"`
	Total         string          `json:"total"`
	CreatedAt     string          `json:"created_at"`
}

// CloseSummaryResponse is the end-of-shift reconciliation: every monetary
// field is a fixed-2 string.
type CloseSummaryResponse struct {
	SessionID        string            `json:"session_id"`
	TotalsByMethod   map[string]string `json:"totals_by_method"`
	PaymentsCount    map[string]int64  `json:"payments_count"`
	OpeningCash      string            `json:"opening_cash"`
	Suprimentos      string            `json:"suprimentos"`
	Sangrias         string            `json:"sangrias"`
	CashExpected     string            `json:"cash_expected"`
	CashCountedFinal *string           `json:"cash_counted_final"`
	CashDelta        *string           `json:"cash_delta"`
	ClosedAt         string            `json:"closed_at"`
}

type DailyReportResponse struct {
	Date   string            `json:"date"`
	Totals map[string]string `json:"totals_by_method"`
}

type SessionListResponse struct {
	Data  []SessionResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
