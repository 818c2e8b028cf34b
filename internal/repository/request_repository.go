package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
)

// ErrRequestSettled is returned when a conditional update finds the
// request already in a terminal status.
var ErrRequestSettled = errors.New("request already processed")

// RequestRepository persists the supervision request ledger.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// FindByID returns a request by its ID.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.SupervisorRequest, error) {
	const query = `SELECT id, student_id, supervisor_id, message, status, created_at, updated_at
		FROM supervisor_requests WHERE id = $1`
	var request models.SupervisorRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns request rows joined with student identity, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.SupervisorRequestDetail, error) {
	base := `
SELECT sr.id, sr.student_id, sr.supervisor_id, sr.message, sr.status, sr.created_at, sr.updated_at,
       s.name AS student_name, s.email AS student_email
FROM supervisor_requests sr
JOIN users s ON s.id = sr.student_id`
	var conditions []string
	var args []interface{}

	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("sr.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("sr.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := base + clause + " ORDER BY sr.created_at DESC"
	var requests []models.SupervisorRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list supervisor requests: %w", err)
	}
	return requests, nil
}

// ExistsPending checks for an open request on the (student, teacher) pair.
func (r *RequestRepository) ExistsPending(ctx context.Context, studentID, supervisorID string) (bool, error) {
	const query = `SELECT 1 FROM supervisor_requests
		WHERE student_id = $1 AND supervisor_id = $2 AND status = 'pending' LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, supervisorID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return true, nil
}

// Create inserts a new pending request.
func (r *RequestRepository) Create(ctx context.Context, request *models.SupervisorRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = models.RequestStatusPending
	}
	const query = `INSERT INTO supervisor_requests (id, student_id, supervisor_id, message, status, created_at, updated_at)
		VALUES (:id, :student_id, :supervisor_id, :message, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create supervisor request: %w", err)
	}
	return nil
}

// Settle moves a pending request into a terminal status. The WHERE
// clause enforces monotonicity at the store: a request that already left
// pending is never rewritten, and the caller sees ErrRequestSettled.
func (r *RequestRepository) Settle(ctx context.Context, id string, status models.RequestStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE supervisor_requests SET status = $1, updated_at = $2 WHERE id = $3 AND status = 'pending'`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("settle supervisor request: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle supervisor request rows affected: %w", err)
	}
	if affected == 0 {
		return ErrRequestSettled
	}
	return nil
}

// CountPendingBySupervisor returns the teacher's open request count.
func (r *RequestRepository) CountPendingBySupervisor(ctx context.Context, supervisorID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM supervisor_requests WHERE supervisor_id = $1 AND status = 'pending'`, supervisorID); err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}
	return count, nil
}

// CountPending returns the total open request count.
func (r *RequestRepository) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM supervisor_requests WHERE status = 'pending'`); err != nil {
		return 0, fmt.Errorf("count pending requests: %w", err)
	}
	return count, nil
}
