package models

import "time"

// NotificationType categorises notification payloads.
type NotificationType string

const (
	NotificationTypeRequest   NotificationType = "request"
	NotificationTypeApproval  NotificationType = "approval"
	NotificationTypeRejection NotificationType = "rejection"
	NotificationTypeFeedback  NotificationType = "feedback"
	NotificationTypeDeadline  NotificationType = "deadline"
	NotificationTypeGeneral   NotificationType = "general"
	NotificationTypeSystem    NotificationType = "system"
)

// NotificationPriority orders notifications for display.
type NotificationPriority string

const (
	NotificationPriorityHigh   NotificationPriority = "high"
	NotificationPriorityMedium NotificationPriority = "medium"
	NotificationPriorityLow    NotificationPriority = "low"
)

// Notification is a best-effort in-app message. Delivery failures are
// logged by the emitter and never surface to the triggering operation.
type Notification struct {
	ID        string               `db:"id" json:"id"`
	UserID    string               `db:"user_id" json:"user_id"`
	Message   string               `db:"message" json:"message"`
	Type      NotificationType     `db:"type" json:"type"`
	Priority  NotificationPriority `db:"priority" json:"priority"`
	Link      *string              `db:"link" json:"link,omitempty"`
	IsRead    bool                 `db:"is_read" json:"is_read"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
}

// NotificationFilter captures filtering criteria for listing notifications.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}
