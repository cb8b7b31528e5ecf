package handler

import (
	"net/http"

	"tillcore/internal/dto"
	"tillcore/internal/middleware"
	"tillcore/internal/service"

	"github.com/gin-gonic/gin"
)

type SettlementHandler struct{ svc service.SettlementService }

func NewSettlementHandler(svc service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

// Reconcile godoc
// @Summary Reconciled settlement view of an order
// @Description Order totals, live intent and captured/refunded/net sums in one consistent snapshot.
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.ReconcileResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/reconcile [get]
func (h *SettlementHandler) Reconcile(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.Reconcile(c.Request.Context(), claims.TenantUUID(), orderID, claims.UserUUID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Capture godoc
// @Summary Capture a payment against an order
// @Tags settlement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param Idempotency-Key header string false "Replay protection key"
// @Param body body dto.CaptureRequest true "Capture data"
// @Success 201 {object} dto.CaptureResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/payments [post]
func (h *SettlementHandler) Capture(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CaptureRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.Capture(c.Request.Context(), claims.TenantUUID(), orderID, claims.UserUUID(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Refund godoc
// @Summary Refund (part of) a captured payment
// @Tags settlement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param paymentID path string true "Payment ID"
// @Param Idempotency-Key header string false "Replay protection key"
// @Param body body dto.RefundRequest false "Refund data (omit amount for full remaining)"
// @Success 201 {object} dto.RefundResponse
// @Failure 400 {object} apierror.APIError
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/payments/{paymentID}/refund [post]
func (h *SettlementHandler) Refund(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := pathUUID(c, "paymentID")
	if !ok {
		return
	}
	var req dto.RefundRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.Refund(c.Request.Context(), claims.TenantUUID(), orderID, paymentID, claims.UserUUID(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListPayments godoc
// @Summary List an order's payments with the reconciled summary
// @Tags settlement
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Success 200 {object} dto.PaymentListResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/orders/{id}/payments [get]
func (h *SettlementHandler) ListPayments(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.ListByOrder(c.Request.Context(), claims.TenantUUID(), orderID, claims.UserUUID())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListTransactions returns the capture/refund ledger of one payment.
func (h *SettlementHandler) ListTransactions(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	paymentID, ok := pathUUID(c, "paymentID")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.ListTransactions(c.Request.Context(), claims.TenantUUID(), orderID, paymentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": resp})
}
