package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
// Teachers carry a supervision capacity; students carry a denormalized
// pointer to their current supervisor.
type User struct {
	ID           string         `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Role         UserRole       `db:"role" json:"role"`
	Department   string         `db:"department" json:"department"`
	Expertise    pq.StringArray `db:"expertise" json:"expertise,omitempty"`
	MaxStudents  int            `db:"max_students" json:"max_students,omitempty"`
	SupervisorID *string        `db:"supervisor_id" json:"supervisor_id,omitempty"`
	Active       bool           `db:"active" json:"active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// HasCapacity reports whether the teacher can take on one more student
// given the supplied live supervised count. Advisory only: the binding
// check happens inside the assignment transaction.
func (u *User) HasCapacity(supervised int) bool {
	if u.Role != RoleTeacher {
		return false
	}
	return supervised < u.MaxStudents
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SupervisorDirectoryEntry is the read model students browse when
// choosing a supervisor. SupervisedCount is computed from projects at
// read time, never stored.
type SupervisorDirectoryEntry struct {
	ID              string         `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	Email           string         `db:"email" json:"email"`
	Department      string         `db:"department" json:"department"`
	Expertise       pq.StringArray `db:"expertise" json:"expertise"`
	MaxStudents     int            `db:"max_students" json:"max_students"`
	SupervisedCount int            `db:"supervised_count" json:"supervised_count"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
