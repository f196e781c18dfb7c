package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/internal/repository"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

type moduleRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Module, error)
	FindByID(ctx context.Context, id string) (*models.Module, error)
	Create(ctx context.Context, module *models.Module) error
	Update(ctx context.Context, module *models.Module) error
	Delete(ctx context.Context, id string) error
}

type lectureRepository interface {
	ListByModule(ctx context.Context, moduleID string) ([]models.Lecture, error)
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	Create(ctx context.Context, lecture *models.Lecture) error
	Update(ctx context.Context, lecture *models.Lecture) error
	Delete(ctx context.Context, id string) error
}

type ownedCourseLoader interface {
	LoadOwned(ctx context.Context, actor permission.Actor, id string) (*models.Course, error)
}

// CurriculumService manages the modules and lectures of owned courses.
type CurriculumService struct {
	courses     ownedCourseLoader
	modules     moduleRepository
	lectures    lectureRepository
	invalidator catalogInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCurriculumService constructs the service.
func NewCurriculumService(courses ownedCourseLoader, modules moduleRepository, lectures lectureRepository, invalidator catalogInvalidator, validate *validator.Validate, logger *zap.Logger) *CurriculumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CurriculumService{
		courses:     courses,
		modules:     modules,
		lectures:    lectures,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
	}
}

// ListModules returns the modules of an owned course.
func (s *CurriculumService) ListModules(ctx context.Context, actor permission.Actor, courseID string) ([]models.Module, error) {
	if _, err := s.courses.LoadOwned(ctx, actor, courseID); err != nil {
		return nil, err
	}
	modules, err := s.modules.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list modules")
	}
	if modules == nil {
		modules = []models.Module{}
	}
	return modules, nil
}

// CreateModule appends a module. Without an explicit order it goes last.
func (s *CurriculumService) CreateModule(ctx context.Context, actor permission.Actor, courseID string, req models.ModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid module payload")
	}
	title, err := requiredTitle(req.Title)
	if err != nil {
		return nil, err
	}
	existing, err := s.ListModules(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	module := &models.Module{CourseID: courseID, Title: title}
	if req.Order != nil {
		module.Order = *req.Order
	} else {
		for _, m := range existing {
			if m.Order >= module.Order {
				module.Order = m.Order + 1
			}
		}
	}
	if err := s.modules.Create(ctx, module); err != nil {
		return nil, mapCurriculumWriteError(err, "module", "course", "failed to create module")
	}
	s.invalidator.Catalog(ctx, courseID)
	return module, nil
}

// GetModule returns a module of an owned course.
func (s *CurriculumService) GetModule(ctx context.Context, actor permission.Actor, id string) (*models.Module, error) {
	module, err := s.modules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
		}
		return nil, appErrors.Internal(err, "failed to load module")
	}
	if _, err := s.courses.LoadOwned(ctx, actor, module.CourseID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found")
	}
	return module, nil
}

// UpdateModule patches title and order.
func (s *CurriculumService) UpdateModule(ctx context.Context, actor permission.Actor, id string, req models.ModuleRequest) (*models.Module, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid module payload")
	}
	module, err := s.GetModule(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		title, err := requiredTitle(req.Title)
		if err != nil {
			return nil, err
		}
		module.Title = title
	}
	if req.Order != nil {
		module.Order = *req.Order
	}
	if err := s.modules.Update(ctx, module); err != nil {
		return nil, mapCurriculumWriteError(err, "module", "course", "failed to update module")
	}
	s.invalidator.Catalog(ctx, module.CourseID)
	return module, nil
}

// DeleteModule removes a module and its lectures.
func (s *CurriculumService) DeleteModule(ctx context.Context, actor permission.Actor, id string) error {
	module, err := s.GetModule(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.modules.Delete(ctx, id); err != nil {
		return mapCurriculumWriteError(err, "module", "course", "failed to delete module")
	}
	s.invalidator.Catalog(ctx, module.CourseID)
	return nil
}

// ListLectures returns the lectures of a module in an owned course.
func (s *CurriculumService) ListLectures(ctx context.Context, actor permission.Actor, moduleID string) ([]models.Lecture, error) {
	if _, err := s.GetModule(ctx, actor, moduleID); err != nil {
		return nil, err
	}
	lectures, err := s.lectures.ListByModule(ctx, moduleID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list lectures")
	}
	if lectures == nil {
		lectures = []models.Lecture{}
	}
	return lectures, nil
}

// CreateLecture appends a lecture to a module. Students already enrolled do
// not get a progress row for it.
func (s *CurriculumService) CreateLecture(ctx context.Context, actor permission.Actor, moduleID string, req models.LectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid lecture payload")
	}
	title, err := requiredTitle(req.Title)
	if err != nil {
		return nil, err
	}
	module, err := s.GetModule(ctx, actor, moduleID)
	if err != nil {
		return nil, err
	}

	lecture := &models.Lecture{ModuleID: moduleID, Title: title}
	applyLectureFields(lecture, req)
	if req.Order == nil {
		existing, err := s.lectures.ListByModule(ctx, moduleID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list lectures")
		}
		for _, l := range existing {
			if l.Order >= lecture.Order {
				lecture.Order = l.Order + 1
			}
		}
	}
	if err := s.lectures.Create(ctx, lecture); err != nil {
		return nil, mapCurriculumWriteError(err, "lecture", "module", "failed to create lecture")
	}
	s.invalidator.Catalog(ctx, module.CourseID)
	return lecture, nil
}

// GetLecture returns a lecture of an owned course.
func (s *CurriculumService) GetLecture(ctx context.Context, actor permission.Actor, id string) (*models.Lecture, *models.Module, error) {
	lecture, err := s.lectures.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, nil, appErrors.Internal(err, "failed to load lecture")
	}
	module, err := s.GetModule(ctx, actor, lecture.ModuleID)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
	}
	return lecture, module, nil
}

// UpdateLecture patches a lecture.
func (s *CurriculumService) UpdateLecture(ctx context.Context, actor permission.Actor, id string, req models.LectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid lecture payload")
	}
	lecture, module, err := s.GetLecture(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		title, err := requiredTitle(req.Title)
		if err != nil {
			return nil, err
		}
		lecture.Title = title
	}
	applyLectureFields(lecture, req)
	if err := s.lectures.Update(ctx, lecture); err != nil {
		return nil, mapCurriculumWriteError(err, "lecture", "module", "failed to update lecture")
	}
	s.invalidator.Catalog(ctx, module.CourseID)
	return lecture, nil
}

// DeleteLecture removes a lecture and the progress rows pointing at it.
func (s *CurriculumService) DeleteLecture(ctx context.Context, actor permission.Actor, id string) error {
	_, module, err := s.GetLecture(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.lectures.Delete(ctx, id); err != nil {
		return mapCurriculumWriteError(err, "lecture", "module", "failed to delete lecture")
	}
	s.invalidator.Catalog(ctx, module.CourseID)
	return nil
}

func applyLectureFields(lecture *models.Lecture, req models.LectureRequest) {
	if req.VideoURL != nil {
		lecture.VideoURL = strings.TrimSpace(*req.VideoURL)
	}
	if req.Notes != nil {
		lecture.Notes = *req.Notes
	}
	if req.Order != nil {
		lecture.Order = *req.Order
	}
	if req.Duration != nil {
		lecture.Duration = *req.Duration
	}
}

func requiredTitle(raw *string) (string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	return strings.TrimSpace(*raw), nil
}

func mapCurriculumWriteError(err error, entity, parent, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, entity+" not found")
	case repository.IsUniqueViolation(err):
		return appErrors.Clone(appErrors.ErrValidation, "order already used in this "+parent)
	default:
		return appErrors.Internal(err, message)
	}
}
