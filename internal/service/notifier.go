package service

import (
	"context"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
)

// Notifier is the fire-and-forget side channel consumed by the core
// services. Implementations must never block the caller on delivery and
// must swallow (log) their own failures: the signature has no error
// return on purpose.
type Notifier interface {
	Notify(ctx context.Context, userID, message string, ntype models.NotificationType, link string, priority models.NotificationPriority)
}
