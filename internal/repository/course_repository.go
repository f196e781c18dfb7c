package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ocms-api/internal/models"
)

const courseColumns = `id, title, description, price, level, instructor_id, category_id, is_published, created_at, updated_at`

const courseListSelect = `SELECT c.id, c.title, c.description, c.price, c.level, u.full_name AS instructor_name, cat.name AS category_name, c.is_published,
(SELECT COUNT(*) FROM modules m WHERE m.course_id = c.id) AS total_modules,
(SELECT COUNT(*) FROM lectures l JOIN modules m ON m.id = l.module_id WHERE m.course_id = c.id) AS total_lectures,
c.created_at
FROM courses c
JOIN users u ON u.id = c.instructor_id
LEFT JOIN categories cat ON cat.id = c.category_id`

var courseOrderings = map[string]string{
	"price":       "c.price ASC",
	"-price":      "c.price DESC",
	"created_at":  "c.created_at ASC",
	"-created_at": "c.created_at DESC",
	"title":       "c.title ASC",
	"-title":      "c.title DESC",
}

// CourseRepository persists courses and serves catalog listings.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns course list items matching the filter with the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, int, error) {
	var conditions []string
	var args []interface{}

	if filter.PublishedOnly {
		conditions = append(conditions, "c.is_published = TRUE")
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Level != nil {
		conditions = append(conditions, fmt.Sprintf("c.level = $%d", len(args)+1))
		args = append(args, *filter.Level)
	}
	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("c.category_id = $%d", len(args)+1))
		args = append(args, filter.CategoryID)
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("c.price >= $%d", len(args)+1))
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("c.price <= $%d", len(args)+1))
		args = append(args, *filter.MaxPrice)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(c.title ILIKE $%d OR c.description ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+search+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	orderBy, ok := courseOrderings[filter.Ordering]
	if !ok {
		orderBy = "c.created_at DESC"
	}

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY %s, c.id LIMIT %d OFFSET %d", courseListSelect, where, orderBy, pageSize, offset)
	var items []models.CourseListItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM courses c%s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return items, total, nil
}

// ListItemsByIDs returns list items for the given course ids in no particular order.
func (r *CourseRepository) ListItemsByIDs(ctx context.Context, ids []string) ([]models.CourseListItem, error) {
	if len(ids) == 0 {
		return []models.CourseListItem{}, nil
	}
	query := courseListSelect + " WHERE c.id = ANY($1)"
	var items []models.CourseListItem
	if err := r.db.SelectContext(ctx, &items, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list courses by ids: %w", err)
	}
	return items, nil
}

// FindByID returns a course regardless of publication state.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Level == "" {
		course.Level = models.LevelBeginner
	}
	const query = `INSERT INTO courses (id, title, description, price, level, instructor_id, category_id, is_published, created_at, updated_at)
VALUES (:id, :title, :description, :price, :level, :instructor_id, :category_id, :is_published, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists all mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, price = :price, level = :level,
category_id = :category_id, is_published = :is_published, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a course; modules, lectures, enrollments and reviews cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return expectAffected(res)
}
