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

// Assignment sentinels returned by AssignSupervisor when the atomic
// conditional update finds an invariant no longer holding at commit time.
var (
	ErrSupervisorAssigned = errors.New("supervisor already assigned")
	ErrTeacherAtCapacity  = errors.New("teacher at capacity")
	ErrProjectNotApproved = errors.New("project not approved")
)

// ProjectRepository handles persistence of projects, feedback and file
// metadata.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, student_id, supervisor_id, title, description, status, deadline, created_at, updated_at`

// FindByID returns a project by its ID.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, id); err != nil {
		return nil, err
	}
	return &project, nil
}

// FindDetailByID returns a project joined with student and supervisor names.
func (r *ProjectRepository) FindDetailByID(ctx context.Context, id string) (*models.ProjectDetail, error) {
	const query = `
SELECT p.id, p.student_id, p.supervisor_id, p.title, p.description, p.status, p.deadline, p.created_at, p.updated_at,
       s.name AS student_name, s.email AS student_email, t.name AS supervisor_name, t.email AS supervisor_email
FROM projects p
JOIN users s ON s.id = p.student_id
LEFT JOIN users t ON t.id = p.supervisor_id
WHERE p.id = $1`
	var detail models.ProjectDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindLatestByStudent returns the student's most recent project record.
func (r *ProjectRepository) FindLatestByStudent(ctx context.Context, studentID string) (*models.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1`, projectColumns)
	var project models.Project
	if err := r.db.GetContext(ctx, &project, query, studentID); err != nil {
		return nil, err
	}
	return &project, nil
}

// List returns projects filtered by the provided criteria.
func (r *ProjectRepository) List(ctx context.Context, filter models.ProjectFilter) ([]models.ProjectDetail, int, error) {
	base := `FROM projects p
JOIN users s ON s.id = p.student_id
LEFT JOIN users t ON t.id = p.supervisor_id`
	var conditions []string
	var args []interface{}

	if filter.SupervisorID != "" {
		conditions = append(conditions, fmt.Sprintf("p.supervisor_id = $%d", len(args)+1))
		args = append(args, filter.SupervisorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.supervisor_id, p.title, p.description, p.status, p.deadline, p.created_at, p.updated_at,
        s.name AS student_name, s.email AS student_email, t.name AS supervisor_name, t.email AS supervisor_email
        %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var projects []models.ProjectDetail
	if err := r.db.SelectContext(ctx, &projects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list projects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count projects: %w", err)
	}
	return projects, total, nil
}

// Create inserts a new pending project.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.ProjectStatusPending
	}
	const query = `INSERT INTO projects (id, student_id, supervisor_id, title, description, status, deadline, created_at, updated_at)
		VALUES (:id, :student_id, :supervisor_id, :title, :description, :status, :deadline, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// Delete removes a project record. Used only for the rejected-resubmission
// replacement rule.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete project rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus persists a new project status.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, id string, status models.ProjectStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update project status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetDeadline persists the project deadline.
func (r *ProjectRepository) SetDeadline(ctx context.Context, id string, deadline time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE projects SET deadline = $1, updated_at = $2 WHERE id = $3`, deadline, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set project deadline: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set project deadline rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountBySupervisor returns the number of projects supervised by the teacher.
func (r *ProjectRepository) CountBySupervisor(ctx context.Context, teacherID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM projects WHERE supervisor_id = $1`, teacherID); err != nil {
		return 0, fmt.Errorf("count supervised projects: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of projects in the given status,
// optionally restricted to one supervisor.
func (r *ProjectRepository) CountByStatus(ctx context.Context, status models.ProjectStatus, supervisorID string) (int, error) {
	var count int
	var err error
	if supervisorID != "" {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM projects WHERE status = $1 AND supervisor_id = $2`, status, supervisorID)
	} else {
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM projects WHERE status = $1`, status)
	}
	if err != nil {
		return 0, fmt.Errorf("count projects by status: %w", err)
	}
	return count, nil
}

// CountAll returns the total number of projects.
func (r *ProjectRepository) CountAll(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM projects`); err != nil {
		return 0, fmt.Errorf("count projects: %w", err)
	}
	return count, nil
}

// AssignSupervisor links the teacher to the project as one atomic unit.
// The teacher's user row is locked first so concurrent assignments to
// the same teacher serialize on the capacity check; the project UPDATE
// then only fires while the supervisor slot is still empty and the
// project is approved. Both conditions therefore hold at commit time,
// not merely at the start of the call: two callers racing for the same
// last slot cannot both succeed. The student's denormalized supervisor
// cache is written in the same transaction.
func (r *ProjectRepository) AssignSupervisor(ctx context.Context, projectID, teacherID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var maxStudents int
	if err := tx.GetContext(ctx, &maxStudents, `SELECT max_students FROM users WHERE id = $1 FOR UPDATE`, teacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock teacher row: %w", err)
	}

	var supervised int
	if err := tx.GetContext(ctx, &supervised, `SELECT COUNT(*) FROM projects WHERE supervisor_id = $1`, teacherID); err != nil {
		return fmt.Errorf("count supervised projects: %w", err)
	}
	if supervised >= maxStudents {
		return ErrTeacherAtCapacity
	}

	const assign = `
UPDATE projects SET supervisor_id = $1, updated_at = $2
WHERE id = $3 AND supervisor_id IS NULL AND status = 'approved'`
	result, err := tx.ExecContext(ctx, assign, teacherID, time.Now().UTC(), projectID)
	if err != nil {
		return fmt.Errorf("assign supervisor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("assign supervisor rows affected: %w", err)
	}
	if affected == 0 {
		return r.diagnoseAssignFailure(ctx, tx, projectID)
	}

	var studentID string
	if err := tx.GetContext(ctx, &studentID, `SELECT student_id FROM projects WHERE id = $1`, projectID); err != nil {
		return fmt.Errorf("load assigned project: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET supervisor_id = $1, updated_at = $2 WHERE id = $3`, teacherID, time.Now().UTC(), studentID); err != nil {
		return fmt.Errorf("update student supervisor cache: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment tx: %w", err)
	}
	return nil
}

// diagnoseAssignFailure re-reads the guarded project row to report which
// condition broke. The transaction is rolled back by the caller's defer;
// no partial writes survive.
func (r *ProjectRepository) diagnoseAssignFailure(ctx context.Context, tx *sqlx.Tx, projectID string) error {
	var project models.Project
	if err := tx.GetContext(ctx, &project, fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns), projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("diagnose assignment: %w", err)
	}
	if project.SupervisorID != nil {
		return ErrSupervisorAssigned
	}
	if project.Status != models.ProjectStatusApproved {
		return ErrProjectNotApproved
	}
	return ErrSupervisorAssigned
}

// AddFeedback appends a supervisor feedback entry.
func (r *ProjectRepository) AddFeedback(ctx context.Context, feedback *models.Feedback) error {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = time.Now().UTC()
	}
	if feedback.Type == "" {
		feedback.Type = models.FeedbackTypeGeneral
	}
	const query = `INSERT INTO project_feedback (id, project_id, supervisor_id, title, message, type, created_at)
		VALUES (:id, :project_id, :supervisor_id, :title, :message, :type, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, feedback); err != nil {
		return fmt.Errorf("add feedback: %w", err)
	}
	return nil
}

// ListFeedback returns feedback entries for a project, newest first.
func (r *ProjectRepository) ListFeedback(ctx context.Context, projectID string) ([]models.Feedback, error) {
	const query = `SELECT id, project_id, supervisor_id, title, message, type, created_at
		FROM project_feedback WHERE project_id = $1 ORDER BY created_at DESC`
	var feedback []models.Feedback
	if err := r.db.SelectContext(ctx, &feedback, query, projectID); err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return feedback, nil
}

// AddFiles appends file metadata entries.
func (r *ProjectRepository) AddFiles(ctx context.Context, projectID string, files []models.ProjectFile) error {
	if len(files) == 0 {
		return nil
	}
	now := time.Now().UTC()
	const query = `INSERT INTO project_files (id, project_id, stored_name, original_name, content_type, size_bytes, uploaded_at)
		VALUES (:id, :project_id, :stored_name, :original_name, :content_type, :size_bytes, :uploaded_at)`
	for i := range files {
		if files[i].ID == "" {
			files[i].ID = uuid.NewString()
		}
		files[i].ProjectID = projectID
		if files[i].UploadedAt.IsZero() {
			files[i].UploadedAt = now
		}
		if _, err := r.db.NamedExecContext(ctx, query, &files[i]); err != nil {
			return fmt.Errorf("add project file: %w", err)
		}
	}
	return nil
}

// ListFiles returns file metadata for a project.
func (r *ProjectRepository) ListFiles(ctx context.Context, projectID string) ([]models.ProjectFile, error) {
	const query = `SELECT id, project_id, stored_name, original_name, content_type, size_bytes, uploaded_at
		FROM project_files WHERE project_id = $1 ORDER BY uploaded_at DESC`
	var files []models.ProjectFile
	if err := r.db.SelectContext(ctx, &files, query, projectID); err != nil {
		return nil, fmt.Errorf("list project files: %w", err)
	}
	return files, nil
}

// FindFileByID returns one file metadata row.
func (r *ProjectRepository) FindFileByID(ctx context.Context, fileID string) (*models.ProjectFile, error) {
	const query = `SELECT id, project_id, stored_name, original_name, content_type, size_bytes, uploaded_at
		FROM project_files WHERE id = $1`
	var file models.ProjectFile
	if err := r.db.GetContext(ctx, &file, query, fileID); err != nil {
		return nil, err
	}
	return &file, nil
}
