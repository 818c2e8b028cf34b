package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
)

// ReviewRepository persists per-student mark sheets.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// FindByStudent returns the student's mark sheet, or sql.ErrNoRows when
// marks have not been recorded.
func (r *ReviewRepository) FindByStudent(ctx context.Context, studentID string) (*models.MarkSheet, error) {
	var sheet models.MarkSheet
	const query = `SELECT id, student_id, review1, review2, review3, total_obtained, total_marks, percentage, created_at, updated_at
		FROM mark_sheets WHERE student_id = $1`
	if err := r.db.GetContext(ctx, &sheet, query, studentID); err != nil {
		return nil, err
	}
	return &sheet, nil
}

// Upsert inserts the student's mark sheet or overwrites the existing
// one. The student_id column carries a unique constraint.
func (r *ReviewRepository) Upsert(ctx context.Context, sheet *models.MarkSheet) error {
	now := time.Now().UTC()
	if sheet.ID == "" {
		sheet.ID = uuid.NewString()
	}
	if sheet.CreatedAt.IsZero() {
		sheet.CreatedAt = now
	}
	sheet.UpdatedAt = now

	const query = `INSERT INTO mark_sheets (id, student_id, review1, review2, review3, total_obtained, total_marks, percentage, created_at, updated_at)
		VALUES (:id, :student_id, :review1, :review2, :review3, :total_obtained, :total_marks, :percentage, :created_at, :updated_at)
		ON CONFLICT (student_id) DO UPDATE SET
			review1 = EXCLUDED.review1,
			review2 = EXCLUDED.review2,
			review3 = EXCLUDED.review3,
			total_obtained = EXCLUDED.total_obtained,
			total_marks = EXCLUDED.total_marks,
			percentage = EXCLUDED.percentage,
			updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, sheet); err != nil {
		return fmt.Errorf("upsert mark sheet: %w", err)
	}
	return nil
}
