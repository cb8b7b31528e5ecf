package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"tillcore/internal/service"
)

// captureRequest / refundRequest are the wire shapes of the PSP bridge.
// The bridge fronts the actual acquirer APIs so the core only ever deals
// with one contract regardless of provider.
type captureRequest struct {
	TenantID string `json:"tenant_id"`
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
	Amount   string `json:"amount"`
	Provider string `json:"provider"`
}

type refundRequest struct {
	TenantID      string `json:"tenant_id"`
	ProviderTxnID string `json:"provider_txn_id"`
	Amount        string `json:"amount"`
	Provider      string `json:"provider"`
}

type providerResponse struct {
	TxnID  string `json:"txn_id"`
	Status string `json:"status"` // "approved" | "declined"
	Detail string `json:"detail"`
}

// PSPClient talks to the payment service provider bridge over HTTP.
// All calls run through a circuit breaker so a dead acquirer fast-fails
// instead of tying up request goroutines for the full timeout.
type PSPClient struct {
	http *resty.Client
	cb   *CircuitBreaker
}

var _ service.ProviderGateway = (*PSPClient)(nil)

func NewPSPClient(baseURL string, cb *CircuitBreaker) *PSPClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &PSPClient{http: client, cb: cb}
}

// Capture authorizes and captures in one shot. Returns the provider's
// transaction id on approval.
func (c *PSPClient) Capture(ctx context.Context, req service.ProviderCapture) (string, error) {
	var out providerResponse
	err := c.cb.Execute(func() error {
		return c.post(ctx, "/v1/captures", captureRequest{
			TenantID: req.TenantID,
			OrderID:  req.OrderID,
			Method:   req.Method,
			Amount:   req.Amount,
			Provider: req.Provider,
		}, &out)
	})
	if err != nil {
		return "", err
	}
	if out.Status != "approved" {
		return "", fmt.Errorf("psp: capture declined: %s", out.Detail)
	}
	return out.TxnID, nil
}

// Refund reverses (part of) a captured transaction.
func (c *PSPClient) Refund(ctx context.Context, req service.ProviderRefund) (string, error) {
	var out providerResponse
	err := c.cb.Execute(func() error {
		return c.post(ctx, "/v1/refunds", refundRequest{
			TenantID:      req.TenantID,
			ProviderTxnID: req.ProviderTxnID,
			Amount:        req.Amount,
			Provider:      req.Provider,
		}, &out)
	})
	if err != nil {
		return "", err
	}
	if out.Status != "approved" {
		return "", fmt.Errorf("psp: refund declined: %s", out.Detail)
	}
	return out.TxnID, nil
}

func (c *PSPClient) post(ctx context.Context, path string, body, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		Post(path)
	if err != nil {
		return fmt.Errorf("psp: bridge unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("psp: bridge returned %d", resp.StatusCode())
	}
	return nil
}
