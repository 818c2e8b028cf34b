package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/service"
	"github.com/noah-isme/fyp-supervision-api/pkg/config"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
	"github.com/noah-isme/fyp-supervision-api/pkg/response"
	"github.com/noah-isme/fyp-supervision-api/pkg/storage"
)

// StudentHandler exposes the student-facing endpoints.
type StudentHandler struct {
	projects *service.ProjectService
	requests *service.RequestService
	reviews  *service.ReviewService
	users    *service.UserService
	files    *storage.LocalStorage
	uploads  config.UploadsConfig
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(projects *service.ProjectService, requests *service.RequestService, reviews *service.ReviewService, users *service.UserService, files *storage.LocalStorage, uploads config.UploadsConfig) *StudentHandler {
	return &StudentHandler{projects: projects, requests: requests, reviews: reviews, users: users, files: files, uploads: uploads}
}

// MyProject godoc
// @Summary Get own project
// @Description Returns the student's current project with feedback and files
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me/project [get]
func (h *StudentHandler) MyProject(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	project, err := h.projects.GetStudentProject(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if project == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "you have not submitted a project yet"))
		return
	}

	snapshot, err := h.projects.GetSnapshot(c.Request.Context(), project.ID, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// SubmitProposal godoc
// @Summary Submit project proposal
// @Description Registers a new pending project; a rejected proposal is replaced
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.SubmitProposalRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/me/project [post]
func (h *StudentHandler) SubmitProposal(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}

	project, err := h.projects.SubmitProposal(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// UploadFiles godoc
// @Summary Upload project deliverables
// @Description Attaches one or more files to the student's project
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Deliverable files"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me/project/files [post]
func (h *StudentHandler) UploadFiles(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	project, err := h.projects.GetStudentProject(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if project == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "you have not submitted a project yet"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "no files provided"))
		return
	}

	var records []models.ProjectFile
	for _, header := range headers {
		if header.Size > h.uploads.MaxFileSizeBytes {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds maximum allowed size"))
			return
		}
		contentType := header.Header.Get("Content-Type")
		if !h.mimeAllowed(contentType) {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file type not allowed"))
			return
		}

		src, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
			return
		}
		storedName := filepath.Join(project.ID, uuid.NewString()+filepath.Ext(header.Filename))
		_, err = h.files.SaveStream(storedName, src)
		src.Close()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload"))
			return
		}

		records = append(records, models.ProjectFile{
			StoredName:   storedName,
			OriginalName: header.Filename,
			ContentType:  contentType,
			SizeBytes:    header.Size,
		})
	}

	saved, err := h.projects.AttachFiles(c.Request.Context(), project.ID, claims.UserID, records)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, saved)
}

// MyMarks godoc
// @Summary Get own review marks
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me/marks [get]
func (h *StudentHandler) MyMarks(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	sheet, err := h.reviews.MyMarks(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// MySupervisor godoc
// @Summary Get assigned supervisor
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/me/supervisor [get]
func (h *StudentHandler) MySupervisor(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if student.SupervisorID == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no supervisor assigned yet"))
		return
	}

	supervisor, err := h.users.Get(c.Request.Context(), *student.SupervisorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, supervisor, nil)
}

// ListSupervisors godoc
// @Summary Browse supervisor directory
// @Description Active teachers with live supervised counts
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /students/supervisors [get]
func (h *StudentHandler) ListSupervisors(c *gin.Context) {
	entries, err := h.users.ListSupervisors(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// CreateRequest godoc
// @Summary Request a supervisor
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.CreateRequestRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/requests [post]
func (h *StudentHandler) CreateRequest(c *gin.Context) {
	claims, ok := claimsFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	request, err := h.requests.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

func (h *StudentHandler) mimeAllowed(contentType string) bool {
	if len(h.uploads.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range h.uploads.AllowedMIMEs {
		if contentType == allowed {
			return true
		}
	}
	return false
}
