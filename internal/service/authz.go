package service

import (
	"github.com/noah-isme/fyp-supervision-api/internal/models"
	appErrors "github.com/noah-isme/fyp-supervision-api/pkg/errors"
)

// The capability predicates below are the single source of truth for
// actor authority over a project. Both the status transition path and
// the assignment coordinator consult these instead of scattering role
// string checks.

// canViewProject permits the admin, the owning student, and the
// assigned supervisor.
func canViewProject(actor *models.JWTClaims, project *models.Project) bool {
	if actor == nil || project == nil {
		return false
	}
	if actor.Role == models.RoleAdmin {
		return true
	}
	if actor.UserID == project.StudentID {
		return true
	}
	return project.SupervisorID != nil && *project.SupervisorID == actor.UserID
}

// canSetStatus gates status transitions by actor: approve and reject
// belong to the admin, completion belongs to the assigned supervisor.
func canSetStatus(actor *models.JWTClaims, project *models.Project, target models.ProjectStatus) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch target {
	case models.ProjectStatusApproved, models.ProjectStatusRejected:
		if actor.Role != models.RoleAdmin {
			return appErrors.Clone(appErrors.ErrForbidden, "only an admin can approve or reject projects")
		}
	case models.ProjectStatusCompleted:
		if project.SupervisorID == nil || *project.SupervisorID != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the assigned supervisor can mark a project complete")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "invalid project status")
	}
	return nil
}

// canSupervise permits feedback and deadline writes by the assigned
// supervisor; deadlines are additionally open to the admin.
func canSupervise(actor *models.JWTClaims, project *models.Project) bool {
	if actor == nil || project == nil {
		return false
	}
	return project.SupervisorID != nil && *project.SupervisorID == actor.UserID
}
