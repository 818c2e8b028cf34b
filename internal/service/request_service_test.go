package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/repository"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

type mockRequestRepo struct {
	items     map[string]*models.SupervisorRequest
	listRows  []models.SupervisorRequestDetail
	settleErr error
}

func (m *mockRequestRepo) FindByID(ctx context.Context, id string) (*models.SupervisorRequest, error) {
	if request, ok := m.items[id]; ok {
		cp := *request
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRequestRepo) List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, error) {
	return m.listRows, nil
}

func (m *mockRequestRepo) ExistsPending(ctx context.Context, studentID, supervisorID string) (bool, error) {
	for _, request := range m.items {
		if request.StudentID == studentID && request.SupervisorID == supervisorID && request.Status == models.RequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRequestRepo) Create(ctx context.Context, request *models.SupervisorRequest) error {
	if m.items == nil {
		m.items = make(map[string]*models.SupervisorRequest)
	}
	if request.ID == "" {
		request.ID = "generated"
	}
	cp := *request
	m.items[request.ID] = &cp
	return nil
}

func (m *mockRequestRepo) Settle(ctx context.Context, id string, status models.RequestStatus) error {
	if m.settleErr != nil {
		return m.settleErr
	}
	request, ok := m.items[id]
	if !ok || request.Status != models.RequestStatusPending {
		return repository.ErrRequestSettled
	}
	request.Status = status
	return nil
}

type mockProjectReader struct {
	latest map[string]*models.Project
	counts map[string]int
}

func (m *mockProjectReader) FindLatestByStudent(ctx context.Context, studentID string) (*models.Project, error) {
	if project, ok := m.latest[studentID]; ok {
		cp := *project
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProjectReader) CountBySupervisor(ctx context.Context, teacherID string) (int, error) {
	return m.counts[teacherID], nil
}

type mockAssigner struct {
	err   error
	calls []string
}

func (m *mockAssigner) AssignToProject(ctx context.Context, projectID, teacherID string) error {
	m.calls = append(m.calls, projectID+":"+teacherID)
	return m.err
}

func newRequestFixture(requests *mockRequestRepo, projects *mockProjectReader, users *mockUserReader, assigner *mockAssigner) (*RequestService, *mockNotifier) {
	notifier := &mockNotifier{}
	svc := NewRequestService(requests, projects, users, assigner, notifier, validator.New(), zap.NewNop())
	return svc, notifier
}

func studentUser(id string) *models.User {
	return &models.User{ID: id, Name: "Student " + id, Role: models.RoleStudent, Active: true}
}

func TestRequestServiceCreate(t *testing.T) {
	requests := &mockRequestRepo{}
	projects := &mockProjectReader{counts: map[string]int{"t1": 1}}
	users := &mockUserReader{users: map[string]*models.User{
		"s1": studentUser("s1"),
		"t1": teacherUser("t1", 5),
	}}
	svc, notifier := newRequestFixture(requests, projects, users, &mockAssigner{})

	request, err := svc.Create(context.Background(), "s1", CreateRequestRequest{SupervisorID: "t1", Message: "please supervise my project"})
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, request.Status)
	assert.Len(t, requests.items, 1)
	require.Len(t, notifier.sentTo("t1"), 1)
	assert.Equal(t, models.NotificationTypeRequest, notifier.sentTo("t1")[0].Type)
}

func TestRequestServiceCreateDuplicatePending(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	projects := &mockProjectReader{counts: map[string]int{}}
	users := &mockUserReader{users: map[string]*models.User{
		"s1": studentUser("s1"),
		"t1": teacherUser("t1", 5),
	}}
	svc, _ := newRequestFixture(requests, projects, users, &mockAssigner{})

	_, err := svc.Create(context.Background(), "s1", CreateRequestRequest{SupervisorID: "t1", Message: "again"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Len(t, requests.items, 1)
}

func TestRequestServiceCreateAfterRejection(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusRejected},
	}}
	projects := &mockProjectReader{counts: map[string]int{}}
	users := &mockUserReader{users: map[string]*models.User{
		"s1": studentUser("s1"),
		"t1": teacherUser("t1", 5),
	}}
	svc, _ := newRequestFixture(requests, projects, users, &mockAssigner{})

	_, err := svc.Create(context.Background(), "s1", CreateRequestRequest{SupervisorID: "t1", Message: "second try"})
	require.NoError(t, err)
	assert.Len(t, requests.items, 2)
}

func TestRequestServiceCreateStudentHasSupervisor(t *testing.T) {
	supervisor := "t9"
	student := studentUser("s1")
	student.SupervisorID = &supervisor
	users := &mockUserReader{users: map[string]*models.User{
		"s1": student,
		"t1": teacherUser("t1", 5),
	}}
	svc, _ := newRequestFixture(&mockRequestRepo{}, &mockProjectReader{counts: map[string]int{}}, users, &mockAssigner{})

	_, err := svc.Create(context.Background(), "s1", CreateRequestRequest{SupervisorID: "t1", Message: "please"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRequestServiceCreateTeacherFull(t *testing.T) {
	projects := &mockProjectReader{counts: map[string]int{"t1": 5}}
	users := &mockUserReader{users: map[string]*models.User{
		"s1": studentUser("s1"),
		"t1": teacherUser("t1", 5),
	}}
	svc, _ := newRequestFixture(&mockRequestRepo{}, projects, users, &mockAssigner{})

	_, err := svc.Create(context.Background(), "s1", CreateRequestRequest{SupervisorID: "t1", Message: "please"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRequestServiceListForTeacher(t *testing.T) {
	requests := &mockRequestRepo{listRows: []models.SupervisorRequestDetail{
		{SupervisorRequest: models.SupervisorRequest{ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending}, StudentName: "Student One"},
		{SupervisorRequest: models.SupervisorRequest{ID: "r2", StudentID: "s2", SupervisorID: "t1", Status: models.RequestStatusPending}, StudentName: "Student Two"},
	}}
	projects := &mockProjectReader{latest: map[string]*models.Project{
		"s1": {ID: "p1", StudentID: "s1", Status: models.ProjectStatusApproved},
	}}
	svc, _ := newRequestFixture(requests, projects, &mockUserReader{}, &mockAssigner{})

	rows, err := svc.ListForTeacher(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].LatestProject)
	assert.Equal(t, "p1", rows[0].LatestProject.ID)
	assert.Nil(t, rows[1].LatestProject)
}

func TestRequestServiceAccept(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	projects := &mockProjectReader{latest: map[string]*models.Project{
		"s1": {ID: "p1", StudentID: "s1", Status: models.ProjectStatusApproved},
	}}
	assigner := &mockAssigner{}
	svc, notifier := newRequestFixture(requests, projects, &mockUserReader{}, assigner)

	request, err := svc.Accept(context.Background(), "r1", "t1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, request.Status)
	assert.Equal(t, []string{"p1:t1"}, assigner.calls)
	assert.Equal(t, models.RequestStatusAccepted, requests.items["r1"].Status)
	require.Len(t, notifier.sentTo("s1"), 1)
	assert.Equal(t, models.NotificationTypeApproval, notifier.sentTo("s1")[0].Type)
}

// Scenario: the coordinator reports the teacher's last slot is gone.
// The conflict propagates and the request must stay pending so the
// teacher can retry once capacity frees up.
func TestRequestServiceAcceptCapacityConflictLeavesPending(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	projects := &mockProjectReader{latest: map[string]*models.Project{
		"s1": {ID: "p1", StudentID: "s1", Status: models.ProjectStatusApproved},
	}}
	assigner := &mockAssigner{err: appErrors.Clone(appErrors.ErrConflict, "teacher has reached max student capacity")}
	svc, notifier := newRequestFixture(requests, projects, &mockUserReader{}, assigner)

	_, err := svc.Accept(context.Background(), "r1", "t1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, models.RequestStatusPending, requests.items["r1"].Status)
	assert.Empty(t, notifier.sent)
}

func TestRequestServiceAcceptWrongTeacher(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	svc, _ := newRequestFixture(requests, &mockProjectReader{}, &mockUserReader{}, &mockAssigner{})

	_, err := svc.Accept(context.Background(), "r1", "t2")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestRequestServiceAcceptAlreadyProcessed(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusAccepted},
	}}
	assigner := &mockAssigner{}
	svc, _ := newRequestFixture(requests, &mockProjectReader{}, &mockUserReader{}, assigner)

	_, err := svc.Accept(context.Background(), "r1", "t1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, assigner.calls)
}

func TestRequestServiceAcceptNoProject(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	svc, _ := newRequestFixture(requests, &mockProjectReader{}, &mockUserReader{}, &mockAssigner{})

	_, err := svc.Accept(context.Background(), "r1", "t1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, models.RequestStatusPending, requests.items["r1"].Status)
}

func TestRequestServiceReject(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	assigner := &mockAssigner{}
	svc, notifier := newRequestFixture(requests, &mockProjectReader{}, &mockUserReader{}, assigner)

	request, err := svc.Reject(context.Background(), "r1", "t1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusRejected, request.Status)
	assert.Empty(t, assigner.calls)
	require.Len(t, notifier.sentTo("s1"), 1)
	assert.Equal(t, models.NotificationTypeRejection, notifier.sentTo("s1")[0].Type)
}

func TestRequestServiceRejectAlreadyProcessed(t *testing.T) {
	requests := &mockRequestRepo{items: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusRejected},
	}}
	svc, _ := newRequestFixture(requests, &mockProjectReader{}, &mockUserReader{}, &mockAssigner{})

	_, err := svc.Reject(context.Background(), "r1", "t1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}
