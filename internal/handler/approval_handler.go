package handler

import (
	"net/http"

	"collector/internal/middleware"
	"collector/internal/model"
	"collector/internal/service"
	"collector/pkg/pagination"
	"collector/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	batches service.BatchService
	auth    *middleware.Auth
}

func NewApprovalHandler(batches service.BatchService, auth *middleware.Auth) *ApprovalHandler {
	return &ApprovalHandler{batches: batches, auth: auth}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/api/approvals")
	approvals.Use(h.auth.RequireAuth())
	{
		approvals.GET("", h.ListApprovals)
		approvals.PUT("/:id/approve", h.Approve)
		approvals.PUT("/:id/reject", h.Reject)
	}
}

// ListApprovals returns the batches in one of the caller's approval views
// @Summary      List approvals
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        mode   query     string  false  "pending (default), subordinate or approved"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Failure      400    {object}  response.Response
// @Router       /api/approvals [get]
func (h *ApprovalHandler) ListApprovals(c *gin.Context) {
	p := pagination.Parse(c)
	mode := service.ApprovalMode(c.DefaultQuery("mode", string(service.ModePending)))

	batches, total, err := h.batches.ListActionableBatches(c.Request.Context(), middleware.UserID(c), mode, p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"batches": batches,
		"total":   total,
		"page":    p.Page,
		"limit":   p.Limit,
		"mode":    mode,
	}))
}

// Approve approves one approval slot
// @Summary      Approve slot
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true   "Slot id"
// @Param        payload  body      service.DecisionRequest  false  "Optional comment"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/approvals/{id}/approve [put]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, model.SlotApproved)
}

// Reject rejects one approval slot
// @Summary      Reject slot
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true   "Slot id"
// @Param        payload  body      service.DecisionRequest  false  "Optional comment"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/approvals/{id}/reject [put]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, model.SlotRejected)
}

func (h *ApprovalHandler) decide(c *gin.Context, outcome model.SlotStatus) {
	var req service.DecisionRequest
	// the body is optional
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request payload: "+err.Error())
			return
		}
	}

	res, err := h.batches.Decide(c.Request.Context(), middleware.UserID(c), c.Param("id"), outcome, req.Comment)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
