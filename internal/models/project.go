package models

import "time"

// ProjectStatus enumerates the project lifecycle states.
type ProjectStatus string

const (
	ProjectStatusPending   ProjectStatus = "pending"
	ProjectStatusApproved  ProjectStatus = "approved"
	ProjectStatusRejected  ProjectStatus = "rejected"
	ProjectStatusCompleted ProjectStatus = "completed"
)

// Valid reports whether the value is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusPending, ProjectStatusApproved, ProjectStatusRejected, ProjectStatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from this
// status. A rejected project is replaced on resubmission, never reopened.
func (s ProjectStatus) Terminal() bool {
	return s == ProjectStatusRejected || s == ProjectStatusCompleted
}

// CanTransition encodes the legal status moves:
// pending -> approved | rejected, approved -> completed.
func (s ProjectStatus) CanTransition(target ProjectStatus) bool {
	switch s {
	case ProjectStatusPending:
		return target == ProjectStatusApproved || target == ProjectStatusRejected
	case ProjectStatusApproved:
		return target == ProjectStatusCompleted
	}
	return false
}

// Project is a student's final-year project record. The owning student
// is immutable after creation and the supervisor field is write-once.
type Project struct {
	ID           string        `db:"id" json:"id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	SupervisorID *string       `db:"supervisor_id" json:"supervisor_id"`
	Title        string        `db:"title" json:"title"`
	Description  string        `db:"description" json:"description"`
	Status       ProjectStatus `db:"status" json:"status"`
	Deadline     *time.Time    `db:"deadline" json:"deadline,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ProjectDetail enriches a project with the names relevant to list views.
type ProjectDetail struct {
	Project
	StudentName     string  `db:"student_name" json:"student_name"`
	StudentEmail    string  `db:"student_email" json:"student_email"`
	SupervisorName  *string `db:"supervisor_name" json:"supervisor_name,omitempty"`
	SupervisorEmail *string `db:"supervisor_email" json:"supervisor_email,omitempty"`
}

// FeedbackType categorises supervisor feedback entries.
type FeedbackType string

const (
	FeedbackTypePositive FeedbackType = "positive"
	FeedbackTypeNegative FeedbackType = "negative"
	FeedbackTypeGeneral  FeedbackType = "general"
)

// Feedback is an append-only supervisor note on a project.
type Feedback struct {
	ID           string       `db:"id" json:"id"`
	ProjectID    string       `db:"project_id" json:"project_id"`
	SupervisorID string       `db:"supervisor_id" json:"supervisor_id"`
	Title        string       `db:"title" json:"title"`
	Message      string       `db:"message" json:"message"`
	Type         FeedbackType `db:"type" json:"type"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// ProjectFile is append-only metadata about an uploaded deliverable.
// Binary bytes live on disk outside this record.
type ProjectFile struct {
	ID           string    `db:"id" json:"id"`
	ProjectID    string    `db:"project_id" json:"project_id"`
	StoredName   string    `db:"stored_name" json:"-"`
	OriginalName string    `db:"original_name" json:"original_name"`
	ContentType  string    `db:"content_type" json:"content_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// ProjectFilter captures filtering criteria for listing projects.
type ProjectFilter struct {
	SupervisorID string
	Status       ProjectStatus
	Page         int
	PageSize     int
}
