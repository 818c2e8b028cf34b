package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/middleware"
	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/service"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

type fakeRequestRepo struct {
	requests map[string]*models.SupervisorRequest
}

func (f *fakeRequestRepo) FindByID(ctx context.Context, id string) (*models.SupervisorRequest, error) {
	if request, ok := f.requests[id]; ok {
		cp := *request
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRequestRepo) List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, error) {
	return nil, nil
}

func (f *fakeRequestRepo) ExistsPending(ctx context.Context, studentID, supervisorID string) (bool, error) {
	return false, nil
}

func (f *fakeRequestRepo) Create(ctx context.Context, request *models.SupervisorRequest) error {
	return nil
}

func (f *fakeRequestRepo) Settle(ctx context.Context, id string, status models.RequestStatus) error {
	request, ok := f.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	request.Status = status
	return nil
}

type fakeProjectReader struct {
	latest map[string]*models.Project
}

func (f *fakeProjectReader) FindLatestByStudent(ctx context.Context, studentID string) (*models.Project, error) {
	if project, ok := f.latest[studentID]; ok {
		cp := *project
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeProjectReader) CountBySupervisor(ctx context.Context, teacherID string) (int, error) {
	return 0, nil
}

type fakeAssigner struct {
	err   error
	calls int
}

func (f *fakeAssigner) AssignToProject(ctx context.Context, projectID, teacherID string) error {
	f.calls++
	return f.err
}

func newTeacherFixture(requests *fakeRequestRepo, assigner *fakeAssigner) *TeacherHandler {
	projects := &fakeProjectReader{latest: map[string]*models.Project{
		"s1": {ID: "p1", StudentID: "s1", Status: models.ProjectStatusPending},
	}}
	requestSvc := service.NewRequestService(requests, projects, nil, assigner, nil, nil, zap.NewNop())
	return NewTeacherHandler(requestSvc, nil, nil, nil)
}

func teacherContext(t *testing.T, method, path string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher})
	return c, rec
}

func TestTeacherHandlerAcceptRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeRequestRepo{requests: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	assigner := &fakeAssigner{}
	handler := newTeacherFixture(repo, assigner)

	c, rec := teacherContext(t, http.MethodPut, "/teachers/me/requests/r1/accept", "")
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.AcceptRequest(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, assigner.calls)
	assert.Equal(t, models.RequestStatusAccepted, repo.requests["r1"].Status)

	var envelope struct {
		Data models.SupervisorRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.RequestStatusAccepted, envelope.Data.Status)
}

func TestTeacherHandlerAcceptRequestCapacityConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeRequestRepo{requests: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	assigner := &fakeAssigner{err: appErrors.Clone(appErrors.ErrConflict, "supervisor has reached max student capacity")}
	handler := newTeacherFixture(repo, assigner)

	c, rec := teacherContext(t, http.MethodPut, "/teachers/me/requests/r1/accept", "")
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.AcceptRequest(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	// The ledger is settled only after the assignment commits.
	assert.Equal(t, models.RequestStatusPending, repo.requests["r1"].Status)
}

func TestTeacherHandlerRejectRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeRequestRepo{requests: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusPending},
	}}
	handler := newTeacherFixture(repo, &fakeAssigner{})

	c, rec := teacherContext(t, http.MethodPut, "/teachers/me/requests/r1/reject", "")
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.RejectRequest(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.RequestStatusRejected, repo.requests["r1"].Status)
}

func TestTeacherHandlerRejectRequestAlreadyProcessed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeRequestRepo{requests: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", StudentID: "s1", SupervisorID: "t1", Status: models.RequestStatusAccepted},
	}}
	handler := newTeacherFixture(repo, &fakeAssigner{})

	c, rec := teacherContext(t, http.MethodPut, "/teachers/me/requests/r1/reject", "")
	c.Params = gin.Params{{Key: "id", Value: "r1"}}

	handler.RejectRequest(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

type fakeMarkSheetRepo struct {
	sheets map[string]*models.MarkSheet
}

func (f *fakeMarkSheetRepo) FindByStudent(ctx context.Context, studentID string) (*models.MarkSheet, error) {
	if sheet, ok := f.sheets[studentID]; ok {
		cp := *sheet
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMarkSheetRepo) Upsert(ctx context.Context, sheet *models.MarkSheet) error {
	cp := *sheet
	f.sheets[sheet.StudentID] = &cp
	return nil
}

type fakeUserReader struct {
	users map[string]*models.User
}

func (f *fakeUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := f.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func TestTeacherHandlerRecordMarksNotSupervisor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	otherTeacher := "t2"
	users := &fakeUserReader{users: map[string]*models.User{
		"s1": {ID: "s1", Role: models.RoleStudent, SupervisorID: &otherTeacher},
	}}
	projects := &fakeProjectReader{latest: map[string]*models.Project{
		"s1": {ID: "p1", StudentID: "s1", Status: models.ProjectStatusApproved},
	}}
	reviewSvc := service.NewReviewService(&fakeMarkSheetRepo{sheets: map[string]*models.MarkSheet{}}, users, projects, nil, nil, zap.NewNop())
	handler := NewTeacherHandler(nil, nil, reviewSvc, nil)

	c, rec := teacherContext(t, http.MethodPut, "/teachers/me/students/s1/marks", `{"review1":20,"review2":20,"review3":30}`)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	handler.RecordMarks(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
