package handler

import (
	"net/http"

	"collector/internal/middleware"
	"collector/internal/service"
	"collector/pkg/pagination"
	"collector/pkg/response"

	"github.com/gin-gonic/gin"
)

type SubmissionHandler struct {
	submissions service.SubmissionService
	answers     service.AnswerService
	auth        *middleware.Auth
}

func NewSubmissionHandler(submissions service.SubmissionService, answers service.AnswerService, auth *middleware.Auth) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, answers: answers, auth: auth}
}

func (h *SubmissionHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/submissions")
	group.Use(h.auth.RequireAuth())
	{
		group.POST("", h.CreateSubmission)
		group.GET("", h.ListSubmissions)
		group.GET("/unbatched", h.ListUnbatched)
		group.GET("/:id", h.GetSubmission)
		group.POST("/:id/publish", h.PublishSubmission)
		group.PUT("/:id/answers", h.ReplaceAnswers)
		group.GET("/:id/answers", h.ListAnswers)
		group.GET("/:id/history", h.ListHistory)
	}
}

// CreateSubmission stores a new submission with its answers
// @Summary      Create submission
// @Description  Creates a draft, pending or final submission depending on the approval chain
// @Tags         submissions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateSubmissionRequest  true  "Submission payload"
// @Success      201      {object}  response.Response{data=service.SubmissionResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/submissions [post]
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	var req service.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.submissions.CreateSubmission(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ListSubmissions pages through submissions
// @Summary      List submissions
// @Tags         submissions
// @Security     BearerAuth
// @Produce      json
// @Param        form_id  query     string  false  "Form id"
// @Param        status   query     string  false  "draft, pending or final"
// @Param        mine     query     bool    false  "Only the caller's submissions"
// @Param        page     query     int     false  "Page number (default 1)"
// @Param        limit    query     int     false  "Items per page (default 20)"
// @Success      200      {object}  response.Response{data=object}
// @Router       /api/submissions [get]
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.SubmissionListFilter{
		FormID: c.Query("form_id"),
		Status: c.Query("status"),
		Mine:   c.Query("mine") == "true",
		Page:   p.Page,
		Limit:  p.Limit,
	}

	subs, total, err := h.submissions.ListSubmissions(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"submissions": subs,
		"total":       total,
		"page":        p.Page,
		"limit":       p.Limit,
	}))
}

// ListUnbatched returns the caller's pending submissions not yet in a batch
// @Summary      List unbatched submissions
// @Tags         submissions
// @Security     BearerAuth
// @Produce      json
// @Param        form_id  query     string  false  "Form id"
// @Success      200      {object}  response.Response{data=[]service.SubmissionResponse}
// @Router       /api/submissions/unbatched [get]
func (h *SubmissionHandler) ListUnbatched(c *gin.Context) {
	subs, err := h.submissions.ListUnbatched(c.Request.Context(), middleware.UserID(c), c.Query("form_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, subs))
}

// GetSubmission returns one submission
// @Summary      Get submission
// @Tags         submissions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Submission id"
// @Success      200  {object}  response.Response{data=service.SubmissionResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/submissions/{id} [get]
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	res, err := h.submissions.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// PublishSubmission moves a draft into the approval flow
// @Summary      Publish draft
// @Tags         submissions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Submission id"
// @Success      200  {object}  response.Response{data=service.SubmissionResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/submissions/{id}/publish [post]
func (h *SubmissionHandler) PublishSubmission(c *gin.Context) {
	res, err := h.submissions.PublishSubmission(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ReplaceAnswers edits answers and reopens the submission's batch if needed
// @Summary      Replace answers
// @Tags         submissions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Submission id"
// @Param        payload  body      service.ReplaceAnswersRequest  true  "Answers"
// @Success      200      {object}  response.Response{data=[]service.AnswerResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/submissions/{id}/answers [put]
func (h *SubmissionHandler) ReplaceAnswers(c *gin.Context) {
	var req service.ReplaceAnswersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.answers.ReplaceAnswers(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Answers)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ListAnswers returns the current answers of a submission
// @Summary      List answers
// @Tags         submissions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Submission id"
// @Success      200  {object}  response.Response{data=[]service.AnswerResponse}
// @Router       /api/submissions/{id}/answers [get]
func (h *SubmissionHandler) ListAnswers(c *gin.Context) {
	res, err := h.answers.ListAnswers(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// ListHistory returns the replaced answer values, newest first
// @Summary      Answer history
// @Tags         submissions
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Submission id"
// @Success      200  {object}  response.Response{data=[]service.AnswerHistoryResponse}
// @Router       /api/submissions/{id}/history [get]
func (h *SubmissionHandler) ListHistory(c *gin.Context) {
	res, err := h.answers.ListHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
