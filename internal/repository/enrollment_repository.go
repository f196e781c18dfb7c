package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ocms-api/internal/models"
)

const enrollmentColumns = `id, student_id, course_id, status, enrolled_at, completed_at`

const progressRowSelect = `SELECT e.id AS enrollment_id, e.student_id, u.full_name AS student_name, u.email AS student_email,
e.course_id, c.title AS course_title, ins.full_name AS instructor_name, e.status, e.enrolled_at, e.completed_at,
(SELECT COUNT(*) FROM lectures l JOIN modules m ON m.id = l.module_id WHERE m.course_id = e.course_id) AS total_lectures,
(SELECT COUNT(*) FROM lecture_progress lp WHERE lp.enrollment_id = e.id AND lp.completed) AS completed_lectures
FROM enrollments e
JOIN courses c ON c.id = e.course_id
JOIN users u ON u.id = e.student_id
JOIN users ins ON ins.id = c.instructor_id`

const progressCountsQuery = `SELECT
(SELECT COUNT(*) FROM lectures l JOIN modules m ON m.id = l.module_id WHERE m.course_id = e.course_id) AS total,
(SELECT COUNT(*) FROM lecture_progress lp WHERE lp.enrollment_id = e.id AND lp.completed) AS completed
FROM enrollments e WHERE e.id = $1`

// EnrollmentRepository handles persistence of enrollments and lecture progress.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndCourse returns the enrollment of a student in a course.
func (r *EnrollmentRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// IsEnrolled reports whether the student has any enrollment in the course.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// CreateWithSnapshot inserts the enrollment together with one progress row per
// lecture the course has right now. Either everything is written or nothing is.
// It returns the number of lectures tracked.
func (r *EnrollmentRepository) CreateWithSnapshot(ctx context.Context, enrollment *models.Enrollment) (tracked int, err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentActive
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin enrollment tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertEnrollment = `INSERT INTO enrollments (id, student_id, course_id, status, enrolled_at, completed_at)
VALUES (:id, :student_id, :course_id, :status, :enrolled_at, :completed_at)`
	if _, err = tx.NamedExecContext(ctx, insertEnrollment, enrollment); err != nil {
		return 0, fmt.Errorf("create enrollment: %w", err)
	}

	var lectureIDs []string
	const lectureQuery = `SELECT l.id FROM lectures l JOIN modules m ON m.id = l.module_id
WHERE m.course_id = $1 ORDER BY m.position, l.position`
	if err = tx.SelectContext(ctx, &lectureIDs, lectureQuery, enrollment.CourseID); err != nil {
		return 0, fmt.Errorf("list course lectures: %w", err)
	}

	const insertProgress = `INSERT INTO lecture_progress (id, enrollment_id, lecture_id, completed) VALUES ($1, $2, $3, FALSE)`
	for _, lectureID := range lectureIDs {
		if _, err = tx.ExecContext(ctx, insertProgress, uuid.NewString(), enrollment.ID, lectureID); err != nil {
			return 0, fmt.Errorf("create lecture progress: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit enrollment tx: %w", err)
	}
	return len(lectureIDs), nil
}

// ListByStudent returns progress rows for every enrollment of a student, newest first.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentProgressRow, error) {
	query := progressRowSelect + ` WHERE e.student_id = $1 ORDER BY e.enrolled_at DESC`
	var rows []models.EnrollmentProgressRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return rows, nil
}

// ListProgressByCourse returns the roster of a course in enrollment order.
func (r *EnrollmentRepository) ListProgressByCourse(ctx context.Context, courseID string) ([]models.EnrollmentProgressRow, error) {
	query := progressRowSelect + ` WHERE e.course_id = $1 ORDER BY e.enrolled_at ASC`
	var rows []models.EnrollmentProgressRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return rows, nil
}

// FindProgressRow returns the progress row of a single enrollment.
func (r *EnrollmentRepository) FindProgressRow(ctx context.Context, enrollmentID string) (*models.EnrollmentProgressRow, error) {
	query := progressRowSelect + ` WHERE e.id = $1`
	var row models.EnrollmentProgressRow
	if err := r.db.GetContext(ctx, &row, query, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment progress: %w", err)
	}
	return &row, nil
}

// FindProgressForStudentLecture returns the progress row a student owns for a lecture.
func (r *EnrollmentRepository) FindProgressForStudentLecture(ctx context.Context, studentID, lectureID string) (*models.LectureProgress, error) {
	const query = `SELECT lp.id, lp.enrollment_id, lp.lecture_id, lp.completed, lp.completed_at
FROM lecture_progress lp
JOIN enrollments e ON e.id = lp.enrollment_id
WHERE lp.lecture_id = $1 AND e.student_id = $2
LIMIT 1`
	var progress models.LectureProgress
	if err := r.db.GetContext(ctx, &progress, query, lectureID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lecture progress: %w", err)
	}
	return &progress, nil
}

// MarkCompleted flags a progress row as completed. It reports false when the
// row was already completed, in which case completed_at is left untouched.
func (r *EnrollmentRepository) MarkCompleted(ctx context.Context, progressID string, at time.Time) (bool, error) {
	const query = `UPDATE lecture_progress SET completed = TRUE, completed_at = $2 WHERE id = $1 AND completed = FALSE`
	res, err := r.db.ExecContext(ctx, query, progressID, at)
	if err != nil {
		return false, fmt.Errorf("mark lecture completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark lecture completed: %w", err)
	}
	return affected > 0, nil
}

// Counts returns lecture totals for an enrollment.
func (r *EnrollmentRepository) Counts(ctx context.Context, enrollmentID string) (models.ProgressCounts, error) {
	var counts models.ProgressCounts
	if err := r.db.GetContext(ctx, &counts, progressCountsQuery, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return counts, err
		}
		return counts, fmt.Errorf("count enrollment progress: %w", err)
	}
	return counts, nil
}

// ReconcileStatus locks the enrollment, recomputes its progress and promotes
// it to COMPLETED when every lecture is done. Running it again after the
// transition is a no-op.
func (r *EnrollmentRepository) ReconcileStatus(ctx context.Context, enrollmentID string, now time.Time) (result *models.ReconcileResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reconcile tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrollment models.Enrollment
	lockQuery := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &enrollment, lockQuery, enrollmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}

	var counts models.ProgressCounts
	if err = tx.GetContext(ctx, &counts, progressCountsQuery, enrollmentID); err != nil {
		return nil, fmt.Errorf("count enrollment progress: %w", err)
	}

	result = &models.ReconcileResult{Counts: counts}
	if enrollment.Status == models.EnrollmentActive && counts.Complete() {
		const promote = `UPDATE enrollments SET status = $3, completed_at = $2 WHERE id = $1 AND status = $4`
		var res sql.Result
		res, err = tx.ExecContext(ctx, promote, enrollmentID, now, models.EnrollmentCompleted, models.EnrollmentActive)
		if err != nil {
			return nil, fmt.Errorf("complete enrollment: %w", err)
		}
		var affected int64
		if affected, err = res.RowsAffected(); err != nil {
			return nil, fmt.Errorf("complete enrollment: %w", err)
		}
		if affected > 0 {
			completedAt := now
			enrollment.Status = models.EnrollmentCompleted
			enrollment.CompletedAt = &completedAt
			result.Transitioned = true
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reconcile tx: %w", err)
	}
	result.Enrollment = enrollment
	return result, nil
}
