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

const reviewColumns = `id, student_id, course_id, rating, comment, created_at, updated_at`

// ReviewRepository persists course reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// ListByCourse returns the public review list of a course, newest first.
func (r *ReviewRepository) ListByCourse(ctx context.Context, courseID string) ([]models.ReviewListItem, error) {
	const query = `SELECT r.id, u.full_name AS student_name, r.rating, r.comment, r.created_at
FROM reviews r
JOIN users u ON u.id = r.student_id
WHERE r.course_id = $1
ORDER BY r.created_at DESC`
	var items []models.ReviewListItem
	if err := r.db.SelectContext(ctx, &items, query, courseID); err != nil {
		return nil, fmt.Errorf("list course reviews: %w", err)
	}
	return items, nil
}

// FindListItem returns the public projection of one review.
func (r *ReviewRepository) FindListItem(ctx context.Context, id string) (*models.ReviewListItem, error) {
	const query = `SELECT r.id, u.full_name AS student_name, r.rating, r.comment, r.created_at
FROM reviews r
JOIN users u ON u.id = r.student_id
WHERE r.id = $1`
	var item models.ReviewListItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review item: %w", err)
	}
	return &item, nil
}

// ListByStudent returns the reviews written by a student, newest first.
func (r *ReviewRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE student_id = $1 ORDER BY created_at DESC`
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, query, studentID); err != nil {
		return nil, fmt.Errorf("list student reviews: %w", err)
	}
	return reviews, nil
}

// FindByIDAndStudent returns a review only when it was written by studentID.
func (r *ReviewRepository) FindByIDAndStudent(ctx context.Context, id, studentID string) (*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1 AND student_id = $2`
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, id, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	return &review, nil
}

// Exists reports whether the student already reviewed the course.
func (r *ReviewRepository) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT 1 FROM reviews WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check review: %w", err)
	}
	return true, nil
}

// Create inserts a review.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now
	const query = `INSERT INTO reviews (id, student_id, course_id, rating, comment, created_at, updated_at)
VALUES (:id, :student_id, :course_id, :rating, :comment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// Update overwrites rating and comment.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reviews SET rating = :rating, comment = :comment, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, review)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return expectAffected(res)
}

// CourseRating aggregates the reviews of a course. Average is 0 without reviews.
func (r *ReviewRepository) CourseRating(ctx context.Context, courseID string) (*models.CourseRating, error) {
	const query = `SELECT c.id AS course_id, c.title AS course_title,
COALESCE(ROUND(AVG(r.rating)::numeric, 2), 0) AS average_rating,
COUNT(r.id) AS total_reviews
FROM courses c
LEFT JOIN reviews r ON r.course_id = c.id
WHERE c.id = $1
GROUP BY c.id, c.title`
	var rating models.CourseRating
	if err := r.db.GetContext(ctx, &rating, query, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("course rating: %w", err)
	}
	return &rating, nil
}
