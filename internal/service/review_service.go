package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

type markSheetRepository interface {
	FindByStudent(ctx context.Context, studentID string) (*models.MarkSheet, error)
	Upsert(ctx context.Context, sheet *models.MarkSheet) error
}

// RecordMarksRequest carries the marks for all three review rounds.
// Every round is required so a partial entry cannot silently zero the
// rounds it omits.
type RecordMarksRequest struct {
	Review1 *int `json:"review1" validate:"required,min=0,max=30"`
	Review2 *int `json:"review2" validate:"required,min=0,max=30"`
	Review3 *int `json:"review3" validate:"required,min=0,max=40"`
}

// ReviewService records and serves review marks. Only the assigned
// supervisor may mark a student, and only once the student's project
// has been approved.
type ReviewService struct {
	marks     markSheetRepository
	users     userReader
	projects  latestProjectReader
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(marks markSheetRepository, users userReader, projects latestProjectReader, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{marks: marks, users: users, projects: projects, notifier: notifier, validator: validate, logger: logger}
}

// RecordMarks writes or overwrites the student's mark sheet on behalf
// of the supervising teacher. Totals and the percentage are derived
// here, never taken from the payload.
func (s *ReviewService) RecordMarks(ctx context.Context, studentID, teacherID string, req RecordMarksRequest) (*models.MarkSheet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid marks payload")
	}

	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if student.SupervisorID == nil || *student.SupervisorID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not the supervisor of this student")
	}

	project, err := s.projects.FindLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student has no project to mark")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load project")
	}
	if project.Status != models.ProjectStatusApproved && project.Status != models.ProjectStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrConflict, "marks can only be recorded once the project is approved")
	}

	obtained := *req.Review1 + *req.Review2 + *req.Review3
	sheet := &models.MarkSheet{
		StudentID:     studentID,
		Review1:       *req.Review1,
		Review2:       *req.Review2,
		Review3:       *req.Review3,
		TotalObtained: obtained,
		TotalMarks:    models.TotalMaxMarks,
		Percentage:    math.Round(float64(obtained)/float64(models.TotalMaxMarks)*10000) / 100,
	}
	if err := s.marks.Upsert(ctx, sheet); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save marks")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, studentID,
			fmt.Sprintf("Your review marks were updated: %d/%d (%.2f%%)", sheet.TotalObtained, sheet.TotalMarks, sheet.Percentage),
			models.NotificationTypeGeneral, "", models.NotificationPriorityMedium)
	}

	s.logger.Info("marks recorded",
		zap.String("student_id", studentID),
		zap.String("teacher_id", teacherID),
		zap.Int("total_obtained", sheet.TotalObtained))
	return sheet, nil
}

// MyMarks returns the student's own mark sheet.
func (s *ReviewService) MyMarks(ctx context.Context, studentID string) (*models.MarkSheet, error) {
	sheet, err := s.marks.FindByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "marks have not been recorded yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load marks")
	}
	return sheet, nil
}
