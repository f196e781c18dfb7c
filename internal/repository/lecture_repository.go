package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/ocms-api/internal/models"
)

const lectureColumns = `id, module_id, title, video_url, notes, position, duration, created_at`

// LectureRepository persists lectures.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

// ListByModule returns the lectures of a module ordered by position.
func (r *LectureRepository) ListByModule(ctx context.Context, moduleID string) ([]models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures WHERE module_id = $1 ORDER BY position ASC`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, moduleID); err != nil {
		return nil, fmt.Errorf("list lectures: %w", err)
	}
	return lectures, nil
}

// ListByModules returns the lectures of several modules ordered by module then position.
func (r *LectureRepository) ListByModules(ctx context.Context, moduleIDs []string) ([]models.Lecture, error) {
	if len(moduleIDs) == 0 {
		return []models.Lecture{}, nil
	}
	query := `SELECT ` + lectureColumns + ` FROM lectures WHERE module_id = ANY($1) ORDER BY module_id, position ASC`
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, pq.Array(moduleIDs)); err != nil {
		return nil, fmt.Errorf("list module lectures: %w", err)
	}
	return lectures, nil
}

// FindByID returns a lecture.
func (r *LectureRepository) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	query := `SELECT ` + lectureColumns + ` FROM lectures WHERE id = $1`
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lecture: %w", err)
	}
	return &lecture, nil
}

// Create inserts a lecture. A duplicate position within the module surfaces
// as a unique violation.
func (r *LectureRepository) Create(ctx context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	if lecture.CreatedAt.IsZero() {
		lecture.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lectures (id, module_id, title, video_url, notes, position, duration, created_at)
VALUES (:id, :module_id, :title, :video_url, :notes, :position, :duration, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	return nil
}

// Update persists all mutable lecture fields.
func (r *LectureRepository) Update(ctx context.Context, lecture *models.Lecture) error {
	const query = `UPDATE lectures SET title = :title, video_url = :video_url, notes = :notes, position = :position, duration = :duration WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, lecture)
	if err != nil {
		return fmt.Errorf("update lecture: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a lecture; its progress rows cascade.
func (r *LectureRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lectures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}
	return expectAffected(res)
}
