package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/service"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
	"github.com/noah-isme/fyp-supervision-api/pkg/response"
)

// TeacherHandler exposes the teacher-facing endpoints.
type TeacherHandler struct {
	requests  *service.RequestService
	projects  *service.ProjectService
	reviews   *service.ReviewService
	dashboard *service.DashboardService
}

// NewTeacherHandler constructs TeacherHandler.
func NewTeacherHandler(requests *service.RequestService, projects *service.ProjectService, reviews *service.ReviewService, dashboard *service.DashboardService) *TeacherHandler {
	return &TeacherHandler{requests: requests, projects: projects, reviews: reviews, dashboard: dashboard}
}

// ListRequests godoc
// @Summary List own supervision requests
// @Description Requests targeting the authenticated teacher, enriched with each student's latest project
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers/me/requests [get]
func (h *TeacherHandler) ListRequests(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, err := h.requests.ListForTeacher(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// AcceptRequest godoc
// @Summary Accept a supervision request
// @Description Assigns the teacher to the student's project and settles the request
// @Tags Teachers
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/me/requests/{id}/accept [put]
func (h *TeacherHandler) AcceptRequest(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.requests.Accept(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// RejectRequest godoc
// @Summary Reject a supervision request
// @Tags Teachers
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/me/requests/{id}/reject [put]
func (h *TeacherHandler) RejectRequest(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.requests.Reject(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// MyStudents godoc
// @Summary List supervised projects
// @Tags Teachers
// @Produce json
// @Param status query string false "Filter by project status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /teachers/me/students [get]
func (h *TeacherHandler) MyStudents(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ProjectFilter{SupervisorID: claims.UserID}
	if status := c.Query("status"); status != "" {
		filter.Status = models.ProjectStatus(status)
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	projects, pagination, err := h.projects.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, pagination)
}

// RecordMarks godoc
// @Summary Record review marks for a supervised student
// @Description Writes or overwrites the student's mark sheet; totals and the percentage are computed server side
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.RecordMarksRequest true "Marks payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers/me/students/{id}/marks [put]
func (h *TeacherHandler) RecordMarks(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RecordMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid marks payload"))
		return
	}

	sheet, err := h.reviews.RecordMarks(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// Dashboard godoc
// @Summary Teacher dashboard stats
// @Tags Teachers
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers/me/dashboard [get]
func (h *TeacherHandler) Dashboard(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	stats, err := h.dashboard.TeacherStats(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
