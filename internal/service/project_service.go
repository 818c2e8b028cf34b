package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

type projectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error)
	FindLatestByStudent(ctx context.Context, studentID string) (*models.Project, error)
	List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error)
	Create(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error
	SetDeadline(ctx context.Context, id string, deadline time.Time) error
	AddFeedback(ctx context.Context, feedback *models.Feedback) error
	ListFeedback(ctx context.Context, projectID string) ([]models.Feedback, error)
	AddFiles(ctx context.Context, projectID string, files []models.ProjectFile) error
	ListFiles(ctx context.Context, projectID string) ([]models.ProjectFile, error)
	FindFileByID(ctx context.Context, fileID string) (*models.ProjectFile, error)
}

// SubmitProposalRequest describes a proposal submission.
type SubmitProposalRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description" validate:"required,max=1000"`
}

// UpdateProjectStatusRequest describes a status transition payload.
type UpdateProjectStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// AddFeedbackRequest describes a supervisor feedback payload.
type AddFeedbackRequest struct {
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required,max=1000"`
	Type    string `json:"type"`
}

// SetDeadlineRequest describes a deadline payload.
type SetDeadlineRequest struct {
	DueDate time.Time `json:"due_date" validate:"required"`
}

// ProjectSnapshot bundles a project with its appended collections for
// detail views.
type ProjectSnapshot struct {
	Project  *models.ProjectDetail `json:"project"`
	Feedback []models.Feedback     `json:"feedback"`
	Files    []models.ProjectFile  `json:"files"`
}

// ProjectService owns the project lifecycle: proposal submission, the
// status state machine, feedback and files.
type ProjectService struct {
	repo      projectRepository
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProjectService constructs ProjectService.
func NewProjectService(repo projectRepository, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{repo: repo, notifier: notifier, validator: validate, logger: logger}
}

// SubmitProposal registers a new pending project for the student. A
// student owns at most one non-rejected project: an existing rejected
// record is deleted and replaced, anything else conflicts.
func (s *ProjectService) SubmitProposal(ctx context.Context, studentID string, req SubmitProposalRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}

	existing, err := s.repo.FindLatestByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing project")
	}
	if existing != nil {
		if existing.Status != models.ProjectStatusRejected {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a project proposal under review or approved")
		}
		// Replacement, not a status transition: the rejected record is gone.
		if err := s.repo.Delete(ctx, existing.ID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to replace rejected project")
		}
	}

	project := &models.Project{
		StudentID:   studentID,
		Title:       req.Title,
		Description: req.Description,
		Status:      models.ProjectStatusPending,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create project")
	}
	return project, nil
}

// GetStudentProject returns the student's latest project, or nil when
// none exists.
func (s *ProjectService) GetStudentProject(ctx context.Context, studentID string) (*models.Project, error) {
	project, err := s.repo.FindLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	return project, nil
}

// GetSnapshot returns a project with feedback and file metadata,
// restricted to the admin, the owning student and the assigned
// supervisor.
func (s *ProjectService) GetSnapshot(ctx context.Context, id string, actor *models.JWTClaims) (*ProjectSnapshot, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if !canViewProject(actor, &detail.Project) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	feedback, err := s.repo.ListFeedback(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	files, err := s.repo.ListFiles(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load files")
	}
	return &ProjectSnapshot{Project: detail, Feedback: feedback, Files: files}, nil
}

// List returns projects with pagination metadata.
func (s *ProjectService) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, *models.Pagination, error) {
	projects, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list projects")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return projects, pagination, nil
}

// UpdateStatus applies one legal transition of the project state
// machine: pending -> approved | rejected, approved -> completed.
// Authorization and the same-status guard run before any write; the
// only side effect owned here is the persisted status.
func (s *ProjectService) UpdateStatus(ctx context.Context, id string, actor *models.JWTClaims, req UpdateProjectStatusRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target := models.ProjectStatus(req.Status)
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid project status")
	}

	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	if err := canSetStatus(actor, project, target); err != nil {
		return nil, err
	}
	if project.Status == target {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("project already %s", target))
	}
	if !project.Status.CanTransition(target) {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot move a %s project to %s", project.Status, target))
	}

	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update project status")
	}
	project.Status = target
	return project, nil
}

// MarkComplete transitions the project to completed on behalf of its
// supervisor and informs the student.
func (s *ProjectService) MarkComplete(ctx context.Context, id string, actor *models.JWTClaims) (*models.Project, error) {
	project, err := s.UpdateStatus(ctx, id, actor, UpdateProjectStatusRequest{Status: string(models.ProjectStatusCompleted)})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, project.StudentID,
			fmt.Sprintf("Your project %q has been marked as complete", project.Title),
			models.NotificationTypeGeneral, "/students/status", models.NotificationPriorityLow)
	}
	return project, nil
}

// AddFeedback appends a supervisor note and informs the student.
func (s *ProjectService) AddFeedback(ctx context.Context, projectID string, actor *models.JWTClaims, req AddFeedbackRequest) (*models.Feedback, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if !canSupervise(actor, project) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to add feedback to this project")
	}

	feedbackType := models.FeedbackType(req.Type)
	switch feedbackType {
	case models.FeedbackTypePositive, models.FeedbackTypeNegative, models.FeedbackTypeGeneral:
	case "":
		feedbackType = models.FeedbackTypeGeneral
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid feedback type")
	}

	feedback := &models.Feedback{
		ProjectID:    projectID,
		SupervisorID: actor.UserID,
		Title:        req.Title,
		Message:      req.Message,
		Type:         feedbackType,
	}
	if err := s.repo.AddFeedback(ctx, feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add feedback")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, project.StudentID,
			fmt.Sprintf("New feedback added to your project %q", project.Title),
			models.NotificationTypeFeedback, "/students/feedback", models.NotificationPriorityMedium)
	}
	return feedback, nil
}

// AttachFiles appends deliverable metadata for the owning student.
// Bytes are stored by the caller; this core records metadata only.
func (s *ProjectService) AttachFiles(ctx context.Context, projectID, studentID string, files []models.ProjectFile) ([]models.ProjectFile, error) {
	if len(files) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no files uploaded")
	}

	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to upload files for this project")
	}
	if project.Status == models.ProjectStatusRejected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cannot upload files to a rejected project")
	}

	if err := s.repo.AddFiles(ctx, projectID, files); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach files")
	}
	return files, nil
}

// GetFile returns one file's metadata after an access check against its
// project.
func (s *ProjectService) GetFile(ctx context.Context, fileID string, actor *models.JWTClaims) (*models.ProjectFile, error) {
	file, err := s.repo.FindFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	project, err := s.repo.FindByID(ctx, file.ProjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if !canViewProject(actor, project) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	return file, nil
}

// SetDeadline records the project deadline and informs the student.
// Open to the admin and the assigned supervisor.
func (s *ProjectService) SetDeadline(ctx context.Context, projectID string, actor *models.JWTClaims, req SetDeadlineRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid deadline payload")
	}

	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if actor.Role != models.RoleAdmin && !canSupervise(actor, project) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to set a deadline for this project")
	}

	if err := s.repo.SetDeadline(ctx, projectID, req.DueDate.UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set deadline")
	}
	due := req.DueDate.UTC()
	project.Deadline = &due

	if s.notifier != nil {
		s.notifier.Notify(ctx, project.StudentID,
			fmt.Sprintf("A deadline has been set for your project %q: %s", project.Title, due.Format("2 Jan 2006")),
			models.NotificationTypeDeadline, "/students/dashboard", models.NotificationPriorityHigh)
	}
	return project, nil
}
