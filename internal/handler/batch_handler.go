package handler

import (
	"net/http"

	"collector/internal/middleware"
	"collector/internal/service"
	"collector/pkg/pagination"
	"collector/pkg/response"

	"github.com/gin-gonic/gin"
)

type BatchHandler struct {
	batches service.BatchService
	auth    *middleware.Auth
}

func NewBatchHandler(batches service.BatchService, auth *middleware.Auth) *BatchHandler {
	return &BatchHandler{batches: batches, auth: auth}
}

func (h *BatchHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/batches")
	group.Use(h.auth.RequireAuth())
	{
		group.POST("", h.CreateBatch)
		group.GET("", h.ListOwnBatches)
		group.GET("/:id", h.GetBatch)
		group.GET("/:id/comments", h.ListComments)
	}
}

// CreateBatch groups pending submissions for approval
// @Summary      Create batch
// @Tags         batches
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateBatchRequest  true  "Batch payload"
// @Success      201      {object}  response.Response{data=service.BatchResponse}
// @Failure      400      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /api/batches [post]
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.batches.CreateBatch(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ListOwnBatches returns the caller's batches with their approval state
// @Summary      List own batches
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/batches [get]
func (h *BatchHandler) ListOwnBatches(c *gin.Context) {
	p := pagination.Parse(c)
	batches, total, err := h.batches.ListOwnBatches(c.Request.Context(), middleware.UserID(c), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"batches": batches,
		"total":   total,
		"page":    p.Page,
		"limit":   p.Limit,
	}))
}

// GetBatch returns a batch with its slots
// @Summary      Get batch
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Batch id"
// @Success      200  {object}  response.Response{data=service.BatchResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/batches/{id} [get]
func (h *BatchHandler) GetBatch(c *gin.Context) {
	res, err := h.batches.GetBatch(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ListComments returns the comment thread of a batch
// @Summary      Batch comments
// @Tags         batches
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Batch id"
// @Success      200  {object}  response.Response{data=[]service.BatchCommentResponse}
// @Router       /api/batches/{id}/comments [get]
func (h *BatchHandler) ListComments(c *gin.Context) {
	res, err := h.batches.ListComments(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
