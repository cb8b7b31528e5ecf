package handler

import (
	"net/http"

	"tillcore/internal/dto"
	"tillcore/internal/middleware"
	"tillcore/internal/service"

	"github.com/gin-gonic/gin"
)

type IntentHandler struct{ svc service.PaymentIntentService }

func NewIntentHandler(svc service.PaymentIntentService) *IntentHandler {
	return &IntentHandler{svc: svc}
}

// CreateOrGet godoc
// @Summary Get or create the order's payment intent
// @Description Idempotent: repeated calls for the same order return the same live intent.
// @Tags intents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Order ID"
// @Param body body dto.CreateIntentRequest false "Options"
// @Success 200 {object} dto.IntentResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/intent [post]
func (h *IntentHandler) CreateOrGet(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CreateIntentRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	intent, err := h.svc.CreateOrGet(c.Request.Context(), claims.TenantUUID(), orderID, claims.UserUUID(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.IntentToResponse(intent))
}

// GetByID godoc
// @Summary Get a payment intent
// @Tags intents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Intent ID"
// @Success 200 {object} dto.IntentResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/intents/{id} [get]
func (h *IntentHandler) GetByID(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	intent, err := h.svc.GetByID(c.Request.Context(), claims.TenantUUID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.IntentToResponse(intent))
}
