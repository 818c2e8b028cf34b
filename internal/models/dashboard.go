package models

// AdminDashboardStats aggregates department-wide counts for the admin
// landing page.
type AdminDashboardStats struct {
	TotalStudents     int `json:"total_students"`
	TotalTeachers     int `json:"total_teachers"`
	TotalProjects     int `json:"total_projects"`
	PendingRequests   int `json:"pending_requests"`
	CompletedProjects int `json:"completed_projects"`
	PendingProjects   int `json:"pending_projects"`
}

// TeacherDashboardStats aggregates a single teacher's supervision load.
type TeacherDashboardStats struct {
	AssignedStudents    int            `json:"assigned_students"`
	MaxStudents         int            `json:"max_students"`
	PendingRequests     int            `json:"pending_requests"`
	CompletedProjects   int            `json:"completed_projects"`
	ActiveProjects      int            `json:"active_projects"`
	RecentNotifications []Notification `json:"recent_notifications"`
}
