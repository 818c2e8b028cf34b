package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/repository"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

type sentNotification struct {
	UserID   string
	Message  string
	Type     models.NotificationType
	Link     string
	Priority models.NotificationPriority
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (m *mockNotifier) Notify(ctx context.Context, userID, message string, ntype models.NotificationType, link string, priority models.NotificationPriority) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentNotification{UserID: userID, Message: message, Type: ntype, Link: link, Priority: priority})
}

func (m *mockNotifier) sentTo(userID string) []sentNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentNotification
	for _, n := range m.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

// mockAssignmentStore mimics the store's atomic conditional update: the
// capacity check and the null-supervisor guard are evaluated under one
// lock, so concurrent calls serialize the way the SQL transaction does.
type mockAssignmentStore struct {
	mu        sync.Mutex
	projects  map[string]*models.Project
	capacity  map[string]int
	assignErr error
}

func (m *mockAssignmentStore) FindByID(ctx context.Context, id string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if project, ok := m.projects[id]; ok {
		cp := *project
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssignmentStore) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	project, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ProjectDetail{Project: *project, StudentName: "Student"}, nil
}

func (m *mockAssignmentStore) AssignSupervisor(ctx context.Context, projectID, teacherID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignErr != nil {
		return m.assignErr
	}
	project, ok := m.projects[projectID]
	if !ok {
		return sql.ErrNoRows
	}
	supervised := 0
	for _, p := range m.projects {
		if p.SupervisorID != nil && *p.SupervisorID == teacherID {
			supervised++
		}
	}
	if supervised >= m.capacity[teacherID] {
		return repository.ErrTeacherAtCapacity
	}
	if project.SupervisorID != nil {
		return repository.ErrSupervisorAssigned
	}
	if project.Status != models.ProjectStatusApproved {
		return repository.ErrProjectNotApproved
	}
	tid := teacherID
	project.SupervisorID = &tid
	return nil
}

type mockStats struct {
	mu          sync.Mutex
	invalidated []string
}

func (m *mockStats) InvalidateStats(ctx context.Context, teacherID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, teacherID)
}

func teacherUser(id string, max int) *models.User {
	return &models.User{ID: id, Name: "Teacher " + id, Role: models.RoleTeacher, MaxStudents: max, Active: true}
}

func approvedProject(id, studentID string) *models.Project {
	return &models.Project{ID: id, StudentID: studentID, Status: models.ProjectStatusApproved}
}

func newAssignmentFixture(store *mockAssignmentStore, users *mockUserReader) (*AssignmentService, *mockNotifier, *mockStats) {
	notifier := &mockNotifier{}
	stats := &mockStats{}
	svc := NewAssignmentService(store, users, notifier, stats, nil, validator.New(), zap.NewNop())
	return svc, notifier, stats
}

func TestAssignmentServiceAssign(t *testing.T) {
	store := &mockAssignmentStore{
		projects: map[string]*models.Project{"p1": approvedProject("p1", "s1")},
		capacity: map[string]int{"t1": 3},
	}
	users := &mockUserReader{users: map[string]*models.User{"t1": teacherUser("t1", 3)}}
	svc, notifier, stats := newAssignmentFixture(store, users)

	detail, err := svc.Assign(context.Background(), AssignSupervisorRequest{ProjectID: "p1", SupervisorID: "t1"})
	require.NoError(t, err)
	require.NotNil(t, detail.SupervisorID)
	assert.Equal(t, "t1", *detail.SupervisorID)
	assert.Equal(t, []string{"t1"}, stats.invalidated)
	assert.Len(t, notifier.sentTo("s1"), 1)
	assert.Len(t, notifier.sentTo("t1"), 1)
}

func TestAssignmentServiceAssignPendingProject(t *testing.T) {
	store := &mockAssignmentStore{
		projects: map[string]*models.Project{"p1": {ID: "p1", StudentID: "s1", Status: models.ProjectStatusPending}},
		capacity: map[string]int{"t1": 3},
	}
	users := &mockUserReader{users: map[string]*models.User{"t1": teacherUser("t1", 3)}}
	svc, notifier, _ := newAssignmentFixture(store, users)

	_, err := svc.Assign(context.Background(), AssignSupervisorRequest{ProjectID: "p1", SupervisorID: "t1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Nil(t, store.projects["p1"].SupervisorID)
	assert.Empty(t, notifier.sent)
}

func TestAssignmentServiceAssignSupervisorTaken(t *testing.T) {
	taken := "t2"
	store := &mockAssignmentStore{
		projects: map[string]*models.Project{"p1": {ID: "p1", StudentID: "s1", Status: models.ProjectStatusApproved, SupervisorID: &taken}},
		capacity: map[string]int{"t1": 3, "t2": 3},
	}
	users := &mockUserReader{users: map[string]*models.User{"t1": teacherUser("t1", 3)}}
	svc, _, _ := newAssignmentFixture(store, users)

	_, err := svc.Assign(context.Background(), AssignSupervisorRequest{ProjectID: "p1", SupervisorID: "t1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, "t2", *store.projects["p1"].SupervisorID)
}

func TestAssignmentServiceAssignTeacherMissing(t *testing.T) {
	store := &mockAssignmentStore{
		projects: map[string]*models.Project{"p1": approvedProject("p1", "s1")},
		capacity: map[string]int{},
	}
	users := &mockUserReader{users: map[string]*models.User{}}
	svc, _, _ := newAssignmentFixture(store, users)

	_, err := svc.Assign(context.Background(), AssignSupervisorRequest{ProjectID: "p1", SupervisorID: "missing"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestAssignmentServiceAssignNotATeacher(t *testing.T) {
	store := &mockAssignmentStore{
		projects: map[string]*models.Project{"p1": approvedProject("p1", "s1")},
		capacity: map[string]int{},
	}
	users := &mockUserReader{users: map[string]*models.User{
		"s2": {ID: "s2", Role: models.RoleStudent, Active: true},
	}}
	svc, _, _ := newAssignmentFixture(store, users)

	_, err := svc.Assign(context.Background(), AssignSupervisorRequest{ProjectID: "p1", SupervisorID: "s2"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestAssignmentServiceAssignInactiveTeacher(t *testing.T) {
	inactive := teacherUser("t1", 3)
	inactive.Active = false
	store := &mockAssignmentStore{
		projects: map[string]*models.Project{"p1": approvedProject("p1", "s1")},
		capacity: map[string]int{"t1": 3},
	}
	users := &mockUserReader{users: map[string]*models.User{"t1": inactive}}
	svc, _, _ := newAssignmentFixture(store, users)

	_, err := svc.Assign(context.Background(), AssignSupervisorRequest{ProjectID: "p1", SupervisorID: "t1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

// Two students race for a teacher with a single remaining slot. Exactly
// one assignment succeeds; the loser sees a capacity conflict and the
// winner's project is the only one linked.
func TestAssignmentServiceLastSlotRace(t *testing.T) {
	existing := "t1"
	store := &mockAssignmentStore{
		projects: map[string]*models.Project{
			"p0": {ID: "p0", StudentID: "s0", Status: models.ProjectStatusApproved, SupervisorID: &existing},
			"p1": approvedProject("p1", "s1"),
			"p2": approvedProject("p2", "s2"),
		},
		capacity: map[string]int{"t1": 2},
	}
	users := &mockUserReader{users: map[string]*models.User{"t1": teacherUser("t1", 2)}}
	svc, _, _ := newAssignmentFixture(store, users)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, projectID := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(i int, projectID string) {
			defer wg.Done()
			errs[i] = svc.AssignToProject(context.Background(), projectID, "t1")
		}(i, projectID)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if appErrors.Is(err, appErrors.ErrConflict) {
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	assigned := 0
	for _, p := range store.projects {
		if p.SupervisorID != nil && *p.SupervisorID == "t1" {
			assigned++
		}
	}
	assert.Equal(t, 2, assigned)
}

func TestAssignmentServiceValidation(t *testing.T) {
	svc, _, _ := newAssignmentFixture(&mockAssignmentStore{}, &mockUserReader{})

	_, err := svc.Assign(context.Background(), AssignSupervisorRequest{ProjectID: "", SupervisorID: ""})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
