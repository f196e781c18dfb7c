package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/ocms-api/internal/models"
)

// InstructorTotals are the headline numbers of an instructor dashboard.
type InstructorTotals struct {
	TotalCourses  int     `db:"total_courses"`
	TotalStudents int     `db:"total_students"`
	TotalRevenue  float64 `db:"total_revenue"`
	AverageRating float64 `db:"average_rating"`
}

// DashboardRepository serves the aggregate queries behind the dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountUsersByRole counts accounts holding role.
func (r *DashboardRepository) CountUsersByRole(ctx context.Context, role models.UserRole) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users WHERE role = $1`, role); err != nil {
		return 0, fmt.Errorf("count users by role: %w", err)
	}
	return total, nil
}

// CountPublishedCourses counts courses visible in the catalog.
func (r *DashboardRepository) CountPublishedCourses(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses WHERE is_published = TRUE`); err != nil {
		return 0, fmt.Errorf("count published courses: %w", err)
	}
	return total, nil
}

// CountEnrollments counts every enrollment.
func (r *DashboardRepository) CountEnrollments(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM enrollments`); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return total, nil
}

// ReviewStats returns the number of reviews and their average rating.
func (r *DashboardRepository) ReviewStats(ctx context.Context) (int, float64, error) {
	var stats struct {
		Total   int     `db:"total"`
		Average float64 `db:"average"`
	}
	const query = `SELECT COUNT(*) AS total, COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average FROM reviews`
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return 0, 0, fmt.Errorf("review stats: %w", err)
	}
	return stats.Total, stats.Average, nil
}

// TopCourses ranks published courses by enrollment count.
func (r *DashboardRepository) TopCourses(ctx context.Context, limit int) ([]models.TopCourse, error) {
	const query = `SELECT c.id, c.title, u.full_name AS instructor_name,
(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrollment_count,
COALESCE((SELECT ROUND(AVG(r.rating)::numeric, 2) FROM reviews r WHERE r.course_id = c.id), 0) AS average_rating
FROM courses c
JOIN users u ON u.id = c.instructor_id
WHERE c.is_published = TRUE
ORDER BY enrollment_count DESC, c.created_at DESC
LIMIT $1`
	var courses []models.TopCourse
	if err := r.db.SelectContext(ctx, &courses, query, limit); err != nil {
		return nil, fmt.Errorf("top courses: %w", err)
	}
	return courses, nil
}

// RecentEnrollments returns the latest enrollments as activity entries.
func (r *DashboardRepository) RecentEnrollments(ctx context.Context, limit int) ([]models.Activity, error) {
	const query = `SELECT 'enrollment' AS type, 'Enrolled in ' || c.title AS description, u.full_name AS user_name, e.enrolled_at AS timestamp
FROM enrollments e
JOIN courses c ON c.id = e.course_id
JOIN users u ON u.id = e.student_id
ORDER BY e.enrolled_at DESC
LIMIT $1`
	return r.selectActivity(ctx, query, limit, "recent enrollments")
}

// RecentReviews returns the latest reviews as activity entries.
func (r *DashboardRepository) RecentReviews(ctx context.Context, limit int) ([]models.Activity, error) {
	const query = `SELECT 'review' AS type, 'Reviewed ' || c.title || ' - ' || rv.rating || '★' AS description, u.full_name AS user_name, rv.created_at AS timestamp
FROM reviews rv
JOIN courses c ON c.id = rv.course_id
JOIN users u ON u.id = rv.student_id
ORDER BY rv.created_at DESC
LIMIT $1`
	return r.selectActivity(ctx, query, limit, "recent reviews")
}

// RecentCourses returns the latest published courses as activity entries.
func (r *DashboardRepository) RecentCourses(ctx context.Context, limit int) ([]models.Activity, error) {
	const query = `SELECT 'course' AS type, 'New course: ' || c.title AS description, u.full_name AS user_name, c.created_at AS timestamp
FROM courses c
JOIN users u ON u.id = c.instructor_id
WHERE c.is_published = TRUE
ORDER BY c.created_at DESC
LIMIT $1`
	return r.selectActivity(ctx, query, limit, "recent courses")
}

func (r *DashboardRepository) selectActivity(ctx context.Context, query string, limit int, label string) ([]models.Activity, error) {
	var items []models.Activity
	if err := r.db.SelectContext(ctx, &items, query, limit); err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return items, nil
}

// InstructorTotals aggregates an instructor's courses, students, revenue and rating.
// Revenue is the sum of the instructor's course list prices.
func (r *DashboardRepository) InstructorTotals(ctx context.Context, instructorID string) (*InstructorTotals, error) {
	const query = `SELECT
(SELECT COUNT(*) FROM courses c WHERE c.instructor_id = $1) AS total_courses,
(SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.instructor_id = $1) AS total_students,
(SELECT COALESCE(SUM(c.price), 0) FROM courses c WHERE c.instructor_id = $1) AS total_revenue,
(SELECT COALESCE(ROUND(AVG(rv.rating)::numeric, 2), 0) FROM reviews rv JOIN courses c ON c.id = rv.course_id WHERE c.instructor_id = $1) AS average_rating`
	var totals InstructorTotals
	if err := r.db.GetContext(ctx, &totals, query, instructorID); err != nil {
		return nil, fmt.Errorf("instructor totals: %w", err)
	}
	return &totals, nil
}

// InstructorRecentCourses returns an instructor's newest courses with their stats.
func (r *DashboardRepository) InstructorRecentCourses(ctx context.Context, instructorID string, limit int) ([]models.InstructorCourseStat, error) {
	const query = `SELECT c.id, c.title,
(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrollments,
COALESCE((SELECT ROUND(AVG(rv.rating)::numeric, 2) FROM reviews rv WHERE rv.course_id = c.id), 0) AS rating
FROM courses c
WHERE c.instructor_id = $1
ORDER BY c.created_at DESC
LIMIT $2`
	var courses []models.InstructorCourseStat
	if err := r.db.SelectContext(ctx, &courses, query, instructorID, limit); err != nil {
		return nil, fmt.Errorf("instructor recent courses: %w", err)
	}
	return courses, nil
}
