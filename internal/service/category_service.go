package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/repository"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

type categoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	FindByID(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, category *models.Category) error
	Update(ctx context.Context, category *models.Category) error
	Delete(ctx context.Context, id string) error
}

type catalogInvalidator interface {
	Catalog(ctx context.Context, courseID string)
}

// CategoryService manages course categories.
type CategoryService struct {
	repo        categoryRepository
	invalidator catalogInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCategoryService constructs the service.
func NewCategoryService(repo categoryRepository, invalidator catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *CategoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CategoryService{repo: repo, invalidator: invalidator, validator: validate, logger: logger}
}

// List returns every category ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list categories")
	}
	return categories, nil
}

// Get returns a category.
func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	category, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "category not found")
		}
		return nil, appErrors.Internal(err, "failed to load category")
	}
	return category, nil
}

// Create adds a category, deriving the slug from the name when none is given.
func (s *CategoryService) Create(ctx context.Context, req models.CategoryRequest) (*models.Category, error) {
	category, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, category); err != nil {
		return nil, s.mapWriteError(err, "failed to create category")
	}
	s.invalidator.Catalog(ctx, "")
	return category, nil
}

// Update renames a category.
func (s *CategoryService) Update(ctx context.Context, id string, req models.CategoryRequest) (*models.Category, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	existing.Name = updated.Name
	existing.Slug = updated.Slug
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, s.mapWriteError(err, "failed to update category")
	}
	s.invalidator.Catalog(ctx, "")
	return existing, nil
}

// Delete removes a category. Its courses become uncategorised.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapWriteError(err, "failed to delete category")
	}
	s.invalidator.Catalog(ctx, "")
	return nil
}

func (s *CategoryService) prepare(req models.CategoryRequest) (*models.Category, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Slug = strings.TrimSpace(req.Slug)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid category payload")
	}
	slug := req.Slug
	if slug == "" {
		slug = req.Name
	}
	slug = Slugify(slug)
	if slug == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slug must contain letters or digits")
	}
	return &models.Category{Name: req.Name, Slug: slug}, nil
}

const categoryNameConstraint = "categories_name_key"

func (s *CategoryService) mapWriteError(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "category not found")
	case repository.IsUniqueViolation(err) && repository.ConstraintName(err) == categoryNameConstraint:
		return appErrors.Clone(appErrors.ErrValidation, "category with this name already exists")
	case repository.IsUniqueViolation(err):
		return appErrors.Clone(appErrors.ErrValidation, "category with this slug already exists")
	default:
		return appErrors.Internal(err, message)
	}
}

// Slugify lower-cases s, strips accents and joins the remaining words with dashes.
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r == '_' || r == '-' || unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
