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

func TestReviewRepositoryListByCourse(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_name", "rating", "comment", "created_at"}).
		AddRow("r1", "Ada", 5, "great", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.course_id = $1\nORDER BY r.created_at DESC")).
		WithArgs("c1").WillReturnRows(rows)

	items, err := repo.ListByCourse(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ada", items[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryFindListItem(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_name", "rating", "comment", "created_at"}).
		AddRow("r1", "Ada", 4, "clear", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON u.id = r.student_id\nWHERE r.id = $1")).
		WithArgs("r1").WillReturnRows(rows)

	item, err := repo.FindListItem(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", item.StudentName)
	assert.Equal(t, 4, item.Rating)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.id = $1")).WithArgs("gone").WillReturnError(sql.ErrNoRows)
	_, err = repo.FindListItem(context.Background(), "gone")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryFindByIDAndStudentNonAuthor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM reviews WHERE id = $1 AND student_id = $2")).
		WithArgs("r1", "other").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIDAndStudent(context.Background(), "r1", "other")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("INSERT INTO reviews").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Review{StudentID: "s1", CourseID: "c1", Rating: 4})
	assert.True(t, IsUniqueViolation(err))
}

func TestReviewRepositoryCourseRating(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(r.id) AS total_reviews")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "course_title", "average_rating", "total_reviews"}).
			AddRow("c1", "Go", "4.50", 2))

	rating, err := repo.CourseRating(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, rating.AverageRating)
	assert.Equal(t, 2, rating.TotalReviews)
	assert.NoError(t, mock.ExpectationsWereMet())
}
