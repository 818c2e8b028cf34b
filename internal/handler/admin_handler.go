package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/service"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
	"github.com/noah-isme/fyp-supervision-api/pkg/response"
)

// AdminHandler exposes the admin endpoints.
type AdminHandler struct {
	users       *service.UserService
	projects    *service.ProjectService
	assignments *service.AssignmentService
	dashboard   *service.DashboardService
	exports     *service.ExportService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(users *service.UserService, projects *service.ProjectService, assignments *service.AssignmentService, dashboard *service.DashboardService, exports *service.ExportService) *AdminHandler {
	return &AdminHandler{users: users, projects: projects, assignments: assignments, dashboard: dashboard, exports: exports}
}

// ListStudents godoc
// @Summary List students
// @Tags Admin
// @Produce json
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/students [get]
func (h *AdminHandler) ListStudents(c *gin.Context) {
	h.listByRole(c, models.RoleStudent)
}

// ListTeachers godoc
// @Summary List teachers
// @Tags Admin
// @Produce json
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/teachers [get]
func (h *AdminHandler) ListTeachers(c *gin.Context) {
	h.listByRole(c, models.RoleTeacher)
}

// ListUsers godoc
// @Summary List all users
// @Tags Admin
// @Produce json
// @Param role query string false "Filter by role"
// @Param search query string false "Search by name or email"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	filter := h.userFilter(c)
	if role := strings.ToUpper(c.Query("role")); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}

	list, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list.Users, &list.Pagination)
}

// GetUser godoc
// @Summary Get user detail
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [get]
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// CreateStudent godoc
// @Summary Create student account
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/students [post]
func (h *AdminHandler) CreateStudent(c *gin.Context) {
	h.createWithRole(c, models.RoleStudent)
}

// CreateTeacher godoc
// @Summary Create teacher account
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.CreateUserRequest true "User payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/teachers [post]
func (h *AdminHandler) CreateTeacher(c *gin.Context) {
	h.createWithRole(c, models.RoleTeacher)
}

// UpdateUser godoc
// @Summary Update user profile
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.UpdateUserRequest true "User payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// DeleteUser godoc
// @Summary Delete user account
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListProjects godoc
// @Summary List projects
// @Tags Admin
// @Produce json
// @Param status query string false "Filter by status"
// @Param supervisorId query string false "Filter by supervisor"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/projects [get]
func (h *AdminHandler) ListProjects(c *gin.Context) {
	filter := h.projectFilter(c)
	projects, pagination, err := h.projects.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projects, pagination)
}

// ExportProjects godoc
// @Summary Export project roster
// @Description Streams the filtered roster as CSV or PDF
// @Tags Admin
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "Filter by status"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /admin/projects/export [get]
func (h *AdminHandler) ExportProjects(c *gin.Context) {
	filter := h.projectFilter(c)
	format := c.DefaultQuery("format", "csv")

	file, err := h.exports.ProjectRoster(c.Request.Context(), filter, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+file.Filename)
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Dashboard godoc
// @Summary Admin dashboard stats
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.dashboard.AdminStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Assign godoc
// @Summary Assign supervisor to project
// @Description Atomically links a teacher to an approved, unsupervised project
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body service.AssignSupervisorRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/assignments [post]
func (h *AdminHandler) Assign(c *gin.Context) {
	var req service.AssignSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	project, err := h.assignments.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, project, nil)
}

func (h *AdminHandler) listByRole(c *gin.Context, role models.UserRole) {
	filter := h.userFilter(c)
	filter.Role = &role

	list, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list.Users, &list.Pagination)
}

func (h *AdminHandler) createWithRole(c *gin.Context, role models.UserRole) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid user payload"))
		return
	}
	req.Role = string(role)

	user, err := h.users.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

func (h *AdminHandler) userFilter(c *gin.Context) models.UserFilter {
	var filter models.UserFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

func (h *AdminHandler) projectFilter(c *gin.Context) models.ProjectFilter {
	var filter models.ProjectFilter
	if status := c.Query("status"); status != "" {
		filter.Status = models.ProjectStatus(status)
	}
	filter.SupervisorID = c.Query("supervisorId")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}
