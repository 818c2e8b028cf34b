package models

import "time"

// RequestStatus enumerates supervision request outcomes. Pending is the
// only non-terminal state; accepted and rejected are never revisited.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// Terminal reports whether the request outcome is settled.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusRejected
}

// SupervisorRequest records a student asking a teacher to supervise
// their project.
type SupervisorRequest struct {
	ID           string        `db:"id" json:"id"`
	StudentID    string        `db:"student_id" json:"student_id"`
	SupervisorID string        `db:"supervisor_id" json:"supervisor_id"`
	Message      string        `db:"message" json:"message"`
	Status       RequestStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// SupervisorRequestDetail is the teacher-facing list row. LatestProject
// is recomputed at read time so the teacher can judge whether accepting
// is currently legal; it is never stored denormalized.
type SupervisorRequestDetail struct {
	SupervisorRequest
	StudentName   string   `db:"student_name" json:"student_name"`
	StudentEmail  string   `db:"student_email" json:"student_email"`
	LatestProject *Project `db:"-" json:"latest_project,omitempty"`
}

// RequestFilter captures filtering criteria for listing requests.
type RequestFilter struct {
	SupervisorID string
	StudentID    string
	Status       RequestStatus
}
