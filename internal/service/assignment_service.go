package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/repository"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

type assignmentProjectRepo interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error)
	AssignSupervisor(ctx context.Context, projectID, teacherID string) error
}

type userReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type statsInvalidator interface {
	InvalidateStats(ctx context.Context, teacherID string)
}

// AssignSupervisorRequest is the admin direct-assignment payload.
type AssignSupervisorRequest struct {
	ProjectID    string `json:"project_id" validate:"required"`
	SupervisorID string `json:"supervisor_id" validate:"required"`
}

// AssignmentService is the single coordinator for linking a supervisor
// to a project. Both the admin direct path and the request-accept path
// funnel into AssignToProject, so the capacity and null-supervisor
// invariants are checked in exactly one place, inside the store's
// atomic conditional update, not in read-then-write application code.
type AssignmentService struct {
	projects  assignmentProjectRepo
	users     userReader
	notifier  Notifier
	stats     statsInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(projects assignmentProjectRepo, users userReader, notifier Notifier, stats statsInvalidator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{projects: projects, users: users, notifier: notifier, stats: stats, metrics: metrics, validator: validate, logger: logger}
}

// Assign is the admin direct path.
func (s *AssignmentService) Assign(ctx context.Context, req AssignSupervisorRequest) (*models.ProjectDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "projectId and supervisorId are required")
	}
	if err := s.AssignToProject(ctx, req.ProjectID, req.SupervisorID); err != nil {
		return nil, err
	}
	detail, err := s.projects.FindDetailByID(ctx, req.ProjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assigned project")
	}
	return detail, nil
}

// AssignToProject commits the supervisor linkage as one atomic unit.
// On success the student and teacher are both notified best-effort and
// cached dashboards for the teacher are invalidated. On conflict no
// partial writes survive.
func (s *AssignmentService) AssignToProject(ctx context.Context, projectID, teacherID string) error {
	teacher, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if teacher.Role != models.RoleTeacher {
		return appErrors.Clone(appErrors.ErrValidation, "selected user is not a teacher")
	}
	if !teacher.Active {
		return appErrors.Clone(appErrors.ErrConflict, "teacher account is inactive")
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "project not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}

	if err := s.projects.AssignSupervisor(ctx, projectID, teacherID); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			s.metrics.RecordAssignment("conflict")
			return appErrors.Clone(appErrors.ErrNotFound, "project not found")
		case errors.Is(err, repository.ErrSupervisorAssigned):
			s.metrics.RecordAssignment("conflict")
			return appErrors.Clone(appErrors.ErrConflict, "supervisor already assigned")
		case errors.Is(err, repository.ErrProjectNotApproved):
			s.metrics.RecordAssignment("conflict")
			return appErrors.Clone(appErrors.ErrConflict, "project must be approved before assigning a supervisor")
		case errors.Is(err, repository.ErrTeacherAtCapacity):
			s.metrics.RecordAssignment("conflict")
			return appErrors.Clone(appErrors.ErrConflict, "teacher has reached max student capacity")
		default:
			s.metrics.RecordAssignment("error")
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign supervisor")
		}
	}
	s.metrics.RecordAssignment("assigned")

	if s.stats != nil {
		s.stats.InvalidateStats(ctx, teacherID)
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, project.StudentID, "You have been assigned a supervisor",
			models.NotificationTypeApproval, "/students/dashboard", models.NotificationPriorityLow)
		s.notifier.Notify(ctx, teacherID, "You have been assigned a new student project",
			models.NotificationTypeGeneral, "/teachers/dashboard", models.NotificationPriorityLow)
	}
	return nil
}
