package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/middleware"
	"github.com/noah-isme/fyp-supervision-api/internal/models"
	"github.com/noah-isme/fyp-supervision-api/internal/service"
	"github.com/noah-isme/fyp-supervision-api/pkg/config"
)

type fakeNotificationRepo struct {
	items map[string]*models.Notification
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	return nil
}

func (f *fakeNotificationRepo) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.items {
		if n.UserID == filter.UserID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, n := range f.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
	n, ok := f.items[id]
	if !ok || n.UserID != userID {
		return sql.ErrNoRows
	}
	n.IsRead = true
	return nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	return nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, id, userID string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func newNotificationHandler(repo *fakeNotificationRepo) *NotificationHandler {
	svc := service.NewNotificationService(repo, config.NotificationsConfig{}, nil, zap.NewNop())
	return NewNotificationHandler(svc)
}

func TestNotificationHandlerListUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newNotificationHandler(&fakeNotificationRepo{items: map[string]*models.Notification{}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notifications", nil)

	handler.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotificationHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newNotificationHandler(&fakeNotificationRepo{items: map[string]*models.Notification{
		"n1": {ID: "n1", UserID: "s1", Message: "hello"},
		"n2": {ID: "n2", UserID: "s2", Message: "not yours"},
	}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notifications", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data service.NotificationList `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Notifications, 1)
	assert.Equal(t, "hello", envelope.Data.Notifications[0].Message)
	assert.Equal(t, 1, envelope.Data.UnreadCount)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newNotificationHandler(&fakeNotificationRepo{items: map[string]*models.Notification{}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPut, "/notifications/nope/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	handler.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationHandlerDelete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeNotificationRepo{items: map[string]*models.Notification{
		"n1": {ID: "n1", UserID: "s1"},
	}}
	handler := newNotificationHandler(repo)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/notifications/n1", nil)
	c.Params = gin.Params{{Key: "id", Value: "n1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "s1", Role: models.RoleStudent})

	handler.Delete(c)
	// Handlers invoked outside a gin engine never flush a bodiless
	// status to the recorder; force the header write so rec.Code
	// reflects what response.NoContent set.
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, repo.items)
}
