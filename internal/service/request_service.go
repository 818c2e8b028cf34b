package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/repository"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

type requestRepository interface {
	FindByID(ctx context.Context, id string) (*models.SupervisorRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, error)
	ExistsPending(ctx context.Context, studentID, supervisorID string) (bool, error)
	Create(ctx context.Context, request *models.SupervisorRequest) error
	Settle(ctx context.Context, id string, status models.RequestStatus) error
}

type latestProjectReader interface {
	FindLatestByStudent(ctx context.Context, studentID string) (*models.Project, error)
	CountBySupervisor(ctx context.Context, teacherID string) (int, error)
}

type assigner interface {
	AssignToProject(ctx context.Context, projectID, teacherID string) error
}

// CreateRequestRequest is the student's supervision request payload.
type CreateRequestRequest struct {
	SupervisorID string `json:"supervisor_id" validate:"required"`
	Message      string `json:"message" validate:"required,max=1000"`
}

// RequestService owns the supervision request ledger. Requests move
// pending -> accepted | rejected exactly once; acceptance delegates the
// supervisor linkage to the assignment coordinator and only settles the
// ledger after that commit succeeds.
type RequestService struct {
	requests  requestRepository
	projects  latestProjectReader
	users     userReader
	assigner  assigner
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs RequestService.
func NewRequestService(requests requestRepository, projects latestProjectReader, users userReader, assigner assigner, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{requests: requests, projects: projects, users: users, assigner: assigner, notifier: notifier, validator: validate, logger: logger}
}

// Create registers a pending supervision request from the student to
// the teacher. A second pending request for the same pair conflicts;
// a request rejected earlier does not block a new one.
func (s *RequestService) Create(ctx context.Context, studentID string, req CreateRequestRequest) (*models.SupervisorRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.SupervisorID != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a supervisor")
	}

	teacher, err := s.users.FindByID(ctx, req.SupervisorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "supervisor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load supervisor")
	}
	if teacher.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid supervisor selected")
	}

	// Advisory only; the binding capacity check runs again inside the
	// assignment transaction when the teacher accepts.
	supervised, err := s.projects.CountBySupervisor(ctx, teacher.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check capacity")
	}
	if !teacher.HasCapacity(supervised) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "selected teacher has reached max student capacity")
	}

	exists, err := s.requests.ExistsPending(ctx, studentID, req.SupervisorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing requests")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you have already sent a request to this supervisor")
	}

	request := &models.SupervisorRequest{
		StudentID:    studentID,
		SupervisorID: req.SupervisorID,
		Message:      req.Message,
		Status:       models.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, teacher.ID,
			fmt.Sprintf("%s has requested you to be their supervisor", student.Name),
			models.NotificationTypeRequest, "/teachers/requests", models.NotificationPriorityMedium)
	}
	return request, nil
}

// ListForTeacher returns the teacher's requests, each enriched at read
// time with the student's most recent project snapshot so the teacher
// can judge whether accepting is currently legal.
func (s *RequestService) ListForTeacher(ctx context.Context, teacherID string) ([]models.SupervisorRequestDetail, error) {
	requests, err := s.requests.List(ctx, models.RequestFilter{SupervisorID: teacherID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	for i := range requests {
		project, err := s.projects.FindLatestByStudent(ctx, requests[i].StudentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student project")
		}
		requests[i].LatestProject = project
	}
	return requests, nil
}

// Accept settles a pending request by delegating the supervisor linkage
// to the assignment coordinator. A coordinator conflict (capacity gone,
// supervisor raced in) propagates unchanged and the request stays
// pending.
func (s *RequestService) Accept(ctx context.Context, requestID, teacherID string) (*models.SupervisorRequest, error) {
	request, err := s.loadOwnedPending(ctx, requestID, teacherID)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.FindLatestByStudent(ctx, request.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student project not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student project")
	}

	if err := s.assigner.AssignToProject(ctx, project.ID, teacherID); err != nil {
		return nil, err
	}

	if err := s.requests.Settle(ctx, requestID, models.RequestStatusAccepted); err != nil {
		if errors.Is(err, repository.ErrRequestSettled) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	request.Status = models.RequestStatusAccepted

	if s.notifier != nil {
		s.notifier.Notify(ctx, request.StudentID, "Your supervisor request has been accepted",
			models.NotificationTypeApproval, "/students/status", models.NotificationPriorityLow)
	}
	return request, nil
}

// Reject settles a pending request without touching the project.
func (s *RequestService) Reject(ctx context.Context, requestID, teacherID string) (*models.SupervisorRequest, error) {
	request, err := s.loadOwnedPending(ctx, requestID, teacherID)
	if err != nil {
		return nil, err
	}

	if err := s.requests.Settle(ctx, requestID, models.RequestStatusRejected); err != nil {
		if errors.Is(err, repository.ErrRequestSettled) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request already processed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}
	request.Status = models.RequestStatusRejected

	if s.notifier != nil {
		s.notifier.Notify(ctx, request.StudentID, "Your supervisor request has been rejected",
			models.NotificationTypeRejection, "/students/status", models.NotificationPriorityHigh)
	}
	return request, nil
}

func (s *RequestService) loadOwnedPending(ctx context.Context, requestID, teacherID string) (*models.SupervisorRequest, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.SupervisorID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request does not target you")
	}
	if request.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request already processed")
	}
	return request, nil
}
