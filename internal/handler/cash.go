package handler

import (
	"net/http"
	"strconv"
	"time"

	"tillcore/internal/apierror"
	"tillcore/internal/dto"
	"tillcore/internal/middleware"
	"tillcore/internal/service"

	"github.com/gin-gonic/gin"
)

type CashHandler struct{ svc service.CashLedgerService }

func NewCashHandler(svc service.CashLedgerService) *CashHandler { return &CashHandler{svc: svc} }

// OpenSession godoc
// @Summary Open a cash drawer session for a station
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.OpenSessionRequest true "Opening data"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/sessions [post]
func (h *CashHandler) OpenSession(c *gin.Context) {
	var req dto.OpenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)

	resp, err := h.svc.OpenSession(c.Request.Context(), claims.TenantUUID(), claims.UserUUID(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetSession godoc
// @Summary Get a cash session with its movements and counts
// @Tags cash
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cash/sessions/{id} [get]
func (h *CashHandler) GetSession(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.GetSession(c.Request.Context(), claims.TenantUUID(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateMovement godoc
// @Summary Record a suprimento (cash-in) or sangria (cash-out)
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovementRequest true "Movement data"
// @Success 201 {object} dto.MovementResponse
// @Failure 400 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/movements [post]
func (h *CashHandler) CreateMovement(c *gin.Context) {
	var req dto.MovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.CreateMovement(c.Request.Context(), claims.TenantUUID(), claims.UserUUID(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CreateCount godoc
// @Summary Record a drawer count (opening, partial or final)
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CountRequest true "Count data"
// @Success 201 {object} dto.CountResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/cash/counts [post]
func (h *CashHandler) CreateCount(c *gin.Context) {
	var req dto.CountRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.CreateCount(c.Request.Context(), claims.TenantUUID(), claims.UserUUID(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// CloseSession godoc
// @Summary Close a session and freeze its settlement totals
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.CloseSessionRequest false "Closing note"
// @Success 200 {object} dto.CloseSummaryResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/sessions/{id}/close [post]
func (h *CashHandler) CloseSession(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseSessionRequest
	if c.Request.ContentLength > 0 && !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.CloseSession(c.Request.Context(), claims.TenantUUID(), id, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ReopenSession godoc
// @Summary Reopen a closed session for supervisor corrections
// @Tags cash
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param body body dto.ReopenSessionRequest true "Audit reason"
// @Success 200 {object} dto.SessionResponse
// @Failure 404 {object} apierror.APIError
// @Failure 409 {object} apierror.APIError
// @Router /v1/cash/sessions/{id}/reopen [post]
func (h *CashHandler) ReopenSession(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req dto.ReopenSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.ReopenSession(c.Request.Context(), claims.TenantUUID(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DailyReport godoc
// @Summary Aggregate totals across all sessions opened on a calendar day (UTC)
// @Tags cash
// @Produce json
// @Security BearerAuth
// @Param date query string false "Day in YYYY-MM-DD (defaults to today)"
// @Success 200 {object} dto.DailyReportResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/cash/reports/daily [get]
func (h *CashHandler) DailyReport(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.ReportDaily(c.Request.Context(), claims.TenantUUID(), date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListSessions returns a paginated history of closed sessions.
func (h *CashHandler) ListSessions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	claims := middleware.GetClaims(c)
	resp, err := h.svc.ListClosedSessions(c.Request.Context(), claims.TenantUUID(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
