package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

type mockMarkSheetRepo struct {
	sheets map[string]*models.MarkSheet
}

func newMockMarkSheetRepo() *mockMarkSheetRepo {
	return &mockMarkSheetRepo{sheets: map[string]*models.MarkSheet{}}
}

func (m *mockMarkSheetRepo) FindByStudent(ctx context.Context, studentID string) (*models.MarkSheet, error) {
	if sheet, ok := m.sheets[studentID]; ok {
		cp := *sheet
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMarkSheetRepo) Upsert(ctx context.Context, sheet *models.MarkSheet) error {
	cp := *sheet
	m.sheets[sheet.StudentID] = &cp
	return nil
}

func marks(r1, r2, r3 int) RecordMarksRequest {
	return RecordMarksRequest{Review1: &r1, Review2: &r2, Review3: &r3}
}

func newReviewFixture(projectStatus models.ProjectStatus) (*ReviewService, *mockMarkSheetRepo, *mockNotifier) {
	supervisor := "t1"
	users := &mockUserReader{users: map[string]*models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, SupervisorID: &supervisor},
		"t1": {ID: "t1", Role: models.RoleTeacher, MaxStudents: 5},
	}}
	projects := &mockProjectReader{latest: map[string]*models.Project{
		"s1": {ID: "p1", StudentID: "s1", SupervisorID: &supervisor, Status: projectStatus},
	}}
	sheets := newMockMarkSheetRepo()
	notifier := &mockNotifier{}
	return NewReviewService(sheets, users, projects, notifier, nil, nil), sheets, notifier
}

func TestReviewServiceRecordMarks(t *testing.T) {
	svc, sheets, notifier := newReviewFixture(models.ProjectStatusApproved)

	sheet, err := svc.RecordMarks(context.Background(), "s1", "t1", marks(25, 20, 30))
	require.NoError(t, err)
	assert.Equal(t, 75, sheet.TotalObtained)
	assert.Equal(t, 100, sheet.TotalMarks)
	assert.Equal(t, 75.0, sheet.Percentage)
	require.Contains(t, sheets.sheets, "s1")
	require.Len(t, notifier.sentTo("s1"), 1)
}

func TestReviewServiceRecordMarksOverwrites(t *testing.T) {
	svc, sheets, _ := newReviewFixture(models.ProjectStatusCompleted)

	_, err := svc.RecordMarks(context.Background(), "s1", "t1", marks(10, 10, 10))
	require.NoError(t, err)
	sheet, err := svc.RecordMarks(context.Background(), "s1", "t1", marks(28, 27, 38))
	require.NoError(t, err)

	assert.Equal(t, 93, sheet.TotalObtained)
	assert.Equal(t, 93.0, sheet.Percentage)
	assert.Equal(t, 93, sheets.sheets["s1"].TotalObtained)
}

func TestReviewServiceRecordMarksNotSupervisor(t *testing.T) {
	svc, _, _ := newReviewFixture(models.ProjectStatusApproved)

	_, err := svc.RecordMarks(context.Background(), "s1", "t2", marks(10, 10, 10))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestReviewServiceRecordMarksPendingProject(t *testing.T) {
	svc, _, _ := newReviewFixture(models.ProjectStatusPending)

	_, err := svc.RecordMarks(context.Background(), "s1", "t1", marks(10, 10, 10))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestReviewServiceRecordMarksUnknownStudent(t *testing.T) {
	svc, _, _ := newReviewFixture(models.ProjectStatusApproved)

	_, err := svc.RecordMarks(context.Background(), "ghost", "t1", marks(10, 10, 10))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestReviewServiceRecordMarksOverCap(t *testing.T) {
	svc, _, _ := newReviewFixture(models.ProjectStatusApproved)

	_, err := svc.RecordMarks(context.Background(), "s1", "t1", marks(31, 10, 10))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestReviewServiceMyMarks(t *testing.T) {
	svc, _, _ := newReviewFixture(models.ProjectStatusApproved)

	_, err := svc.RecordMarks(context.Background(), "s1", "t1", marks(25, 25, 35))
	require.NoError(t, err)

	sheet, err := svc.MyMarks(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 85, sheet.TotalObtained)
}

func TestReviewServiceMyMarksNotRecorded(t *testing.T) {
	svc, _, _ := newReviewFixture(models.ProjectStatusApproved)

	_, err := svc.MyMarks(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
