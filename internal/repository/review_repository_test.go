package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/fyp-supervision-api/internal/models"
)

func newReviewMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func markSheetRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "review1", "review2", "review3", "total_obtained", "total_marks", "percentage", "created_at", "updated_at"})
}

func TestReviewRepositoryFindByStudent(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectQuery("(?s)SELECT .+ FROM mark_sheets WHERE student_id").
		WithArgs("s1").
		WillReturnRows(markSheetRows().AddRow("m1", "s1", 25, 20, 30, 75, 100, 75.0, time.Now(), time.Now()))

	sheet, err := repo.FindByStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 75, sheet.TotalObtained)
	assert.Equal(t, 75.0, sheet.Percentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryFindByStudentMissing(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectQuery("(?s)SELECT .+ FROM mark_sheets WHERE student_id").
		WithArgs("ghost").
		WillReturnRows(markSheetRows())

	_, err := repo.FindByStudent(context.Background(), "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newReviewMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("(?s)INSERT INTO mark_sheets.+ON CONFLICT \\(student_id\\) DO UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sheet := &models.MarkSheet{StudentID: "s1", Review1: 25, Review2: 20, Review3: 30, TotalObtained: 75, TotalMarks: 100, Percentage: 75.0}
	require.NoError(t, repo.Upsert(context.Background(), sheet))
	assert.NotEmpty(t, sheet.ID)
	assert.False(t, sheet.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
