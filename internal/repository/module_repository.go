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

const moduleColumns = `id, course_id, title, position, created_at`

// ModuleRepository persists course modules.
type ModuleRepository struct {
	db *sqlx.DB
}

// NewModuleRepository constructs the repository.
func NewModuleRepository(db *sqlx.DB) *ModuleRepository {
	return &ModuleRepository{db: db}
}

// ListByCourse returns the modules of a course ordered by position.
func (r *ModuleRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE course_id = $1 ORDER BY position ASC`
	var modules []models.Module
	if err := r.db.SelectContext(ctx, &modules, query, courseID); err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	return modules, nil
}

// FindByID returns a module.
func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*models.Module, error) {
	query := `SELECT ` + moduleColumns + ` FROM modules WHERE id = $1`
	var module models.Module
	if err := r.db.GetContext(ctx, &module, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find module: %w", err)
	}
	return &module, nil
}

// Create inserts a module. A duplicate position within the course surfaces
// as a unique violation.
func (r *ModuleRepository) Create(ctx context.Context, module *models.Module) error {
	if module.ID == "" {
		module.ID = uuid.NewString()
	}
	if module.CreatedAt.IsZero() {
		module.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO modules (id, course_id, title, position, created_at)
VALUES (:id, :course_id, :title, :position, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, module); err != nil {
		return fmt.Errorf("create module: %w", err)
	}
	return nil
}

// Update persists title and position.
func (r *ModuleRepository) Update(ctx context.Context, module *models.Module) error {
	const query = `UPDATE modules SET title = :title, position = :position WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, module)
	if err != nil {
		return fmt.Errorf("update module: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a module and, by cascade, its lectures.
func (r *ModuleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete module: %w", err)
	}
	return expectAffected(res)
}
