package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ocms-api/internal/models"
)

var enrollmentRowColumns = []string{"id", "student_id", "course_id", "status", "enrolled_at", "completed_at"}

func TestEnrollmentRepositoryCreateWithSnapshot(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	lectures := sqlmock.NewRows([]string{"id"})
	for _, id := range []string{"l1", "l2", "l3", "l4", "l5", "l6"} {
		lectures.AddRow(id)
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT l.id FROM lectures l JOIN modules m ON m.id = l.module_id")).
		WithArgs("course-1").
		WillReturnRows(lectures)
	for i := 0; i < 6; i++ {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lecture_progress")).WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	enrollment := &models.Enrollment{StudentID: "stu-1", CourseID: "course-1"}
	tracked, err := repo.CreateWithSnapshot(context.Background(), enrollment)
	require.NoError(t, err)
	assert.Equal(t, 6, tracked)
	assert.Equal(t, models.EnrollmentActive, enrollment.Status)
	assert.NotEmpty(t, enrollment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDuplicateRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.CreateWithSnapshot(context.Background(), &models.Enrollment{StudentID: "stu-1", CourseID: "course-1"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateProgressFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT l.id FROM lectures").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("l1"))
	mock.ExpectExec("INSERT INTO lecture_progress").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.CreateWithSnapshot(context.Background(), &models.Enrollment{StudentID: "stu-1", CourseID: "course-1"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryMarkCompletedOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	at := time.Now().UTC()
	query := regexp.QuoteMeta("UPDATE lecture_progress SET completed = TRUE, completed_at = $2 WHERE id = $1 AND completed = FALSE")
	mock.ExpectExec(query).WithArgs("p1", at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("p1", at).WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.MarkCompleted(context.Background(), "p1", at)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkCompleted(context.Background(), "p1", at)
	require.NoError(t, err)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReconcileTransitions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).AddRow("enr-1", "stu-1", "c1", "ACTIVE", now, nil))
	mock.ExpectQuery(regexp.QuoteMeta("AS completed FROM enrollments e WHERE e.id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed"}).AddRow(3, 3))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $3, completed_at = $2 WHERE id = $1 AND status = $4")).
		WithArgs("enr-1", now, models.EnrollmentCompleted, models.EnrollmentActive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.ReconcileStatus(context.Background(), "enr-1", now)
	require.NoError(t, err)
	assert.True(t, result.Transitioned)
	assert.Equal(t, models.EnrollmentCompleted, result.Enrollment.Status)
	require.NotNil(t, result.Enrollment.CompletedAt)
	assert.Equal(t, 100.0, result.Counts.Percentage())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReconcileAlreadyCompletedIsNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).AddRow("enr-1", "stu-1", "c1", "COMPLETED", now, now))
	mock.ExpectQuery("AS completed FROM enrollments e").
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed"}).AddRow(3, 3))
	mock.ExpectCommit()

	result, err := repo.ReconcileStatus(context.Background(), "enr-1", now)
	require.NoError(t, err)
	assert.False(t, result.Transitioned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReconcileNoLecturesStaysActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).AddRow("enr-1", "stu-1", "c1", "ACTIVE", now, nil))
	mock.ExpectQuery("AS completed FROM enrollments e").
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed"}).AddRow(0, 0))
	mock.ExpectCommit()

	result, err := repo.ReconcileStatus(context.Background(), "enr-1", now)
	require.NoError(t, err)
	assert.False(t, result.Transitioned)
	assert.Equal(t, 0.0, result.Counts.Percentage())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReconcileOneLectureShortStaysActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns).AddRow("enr-1", "stu-1", "c1", "ACTIVE", now, nil))
	mock.ExpectQuery("AS completed FROM enrollments e").
		WillReturnRows(sqlmock.NewRows([]string{"total", "completed"}).AddRow(20000, 19999))
	mock.ExpectCommit()

	result, err := repo.ReconcileStatus(context.Background(), "enr-1", now)
	require.NoError(t, err)
	assert.False(t, result.Transitioned)
	assert.Equal(t, models.EnrollmentActive, result.Enrollment.Status)
	assert.Nil(t, result.Enrollment.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryReconcileMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.ReconcileStatus(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsEnrolled(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 LIMIT 1")).
		WithArgs("stu-1", "c1").
		WillReturnError(sql.ErrNoRows)

	enrolled, err := repo.IsEnrolled(context.Background(), "stu-1", "c1")
	require.NoError(t, err)
	assert.False(t, enrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
