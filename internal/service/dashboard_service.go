package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

const (
	adminStatsCacheKey       = "dashboard:admin"
	teacherStatsCacheKeyFmt  = "dashboard:teacher:%s"
	teacherStatsCachePattern = "dashboard:teacher:*"
)

type dashboardProjectRepo interface {
	CountAll(ctx context.Context) (int, error)
	CountBySupervisor(ctx context.Context, teacherID string) (int, error)
	CountByStatus(ctx context.Context, status models.ProjectStatus, supervisorID string) (int, error)
}

type dashboardRequestRepo interface {
	CountPending(ctx context.Context) (int, error)
	CountPendingBySupervisor(ctx context.Context, supervisorID string) (int, error)
}

type dashboardUserRepo interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type recentNotificationReader interface {
	ListRecent(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService aggregates counts for the admin and teacher landing
// pages, with a short-lived cache in front of the aggregate queries.
type DashboardService struct {
	projects      dashboardProjectRepo
	requests      dashboardRequestRepo
	users         dashboardUserRepo
	notifications recentNotificationReader
	cache         statsCache
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewDashboardService constructs DashboardService. cache may be nil.
func NewDashboardService(projects dashboardProjectRepo, requests dashboardRequestRepo, users dashboardUserRepo, notifications recentNotificationReader, cache statsCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		projects:      projects,
		requests:      requests,
		users:         users,
		notifications: notifications,
		cache:         cache,
		cacheTTL:      cacheTTL,
		logger:        logger,
	}
}

// AdminStats returns department-wide counts.
func (s *DashboardService) AdminStats(ctx context.Context) (*models.AdminDashboardStats, error) {
	if s.cache != nil {
		var cached models.AdminDashboardStats
		if err := s.cache.Get(ctx, adminStatsCacheKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", adminStatsCacheKey), zap.Error(err))
		}
	}

	stats := &models.AdminDashboardStats{}
	var err error
	if stats.TotalStudents, err = s.users.CountByRole(ctx, models.RoleStudent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if stats.TotalTeachers, err = s.users.CountByRole(ctx, models.RoleTeacher); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count teachers")
	}
	if stats.TotalProjects, err = s.projects.CountAll(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count projects")
	}
	if stats.PendingRequests, err = s.requests.CountPending(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending requests")
	}
	if stats.CompletedProjects, err = s.projects.CountByStatus(ctx, models.ProjectStatusCompleted, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed projects")
	}
	if stats.PendingProjects, err = s.projects.CountByStatus(ctx, models.ProjectStatusPending, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending projects")
	}

	s.store(ctx, adminStatsCacheKey, stats)
	return stats, nil
}

// TeacherStats returns one teacher's supervision load plus their most
// recent notifications. Notifications are read fresh on every call so
// the cache only covers the counts.
func (s *DashboardService) TeacherStats(ctx context.Context, teacherID string) (*models.TeacherDashboardStats, error) {
	key := fmt.Sprintf(teacherStatsCacheKeyFmt, teacherID)

	var stats *models.TeacherDashboardStats
	if s.cache != nil {
		var cached models.TeacherDashboardStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			stats = &cached
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	if stats == nil {
		teacher, err := s.users.FindByID(ctx, teacherID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}

		stats = &models.TeacherDashboardStats{MaxStudents: teacher.MaxStudents}
		if stats.AssignedStudents, err = s.projects.CountBySupervisor(ctx, teacherID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count assigned students")
		}
		if stats.PendingRequests, err = s.requests.CountPendingBySupervisor(ctx, teacherID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending requests")
		}
		if stats.CompletedProjects, err = s.projects.CountByStatus(ctx, models.ProjectStatusCompleted, teacherID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed projects")
		}
		if stats.ActiveProjects, err = s.projects.CountByStatus(ctx, models.ProjectStatusApproved, teacherID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active projects")
		}
		s.store(ctx, key, stats)
	}

	recent, err := s.notifications.ListRecent(ctx, teacherID, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent notifications")
	}
	if recent == nil {
		recent = []models.Notification{}
	}
	stats.RecentNotifications = recent
	return stats, nil
}

// InvalidateStats drops cached dashboards touched by an assignment or
// status change. Failures are logged only; the cache self-heals on TTL.
func (s *DashboardService) InvalidateStats(ctx context.Context, teacherID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, adminStatsCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("key", adminStatsCacheKey), zap.Error(err))
	}
	pattern := teacherStatsCachePattern
	if teacherID != "" {
		pattern = fmt.Sprintf(teacherStatsCacheKeyFmt, teacherID)
	}
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.String("key", pattern), zap.Error(err))
	}
}

func (s *DashboardService) store(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
