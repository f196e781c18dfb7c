package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, int, error)
	ListItemsByIDs(ctx context.Context, ids []string) ([]models.CourseListItem, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type curriculumReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Module, error)
}

type lectureReader interface {
	ListByModules(ctx context.Context, moduleIDs []string) ([]models.Lecture, error)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CourseService serves the public catalog and the instructor course workspace.
type CourseService struct {
	courses     courseRepository
	categories  categoryRepository
	modules     curriculumReader
	lectures    lectureReader
	users       userLookup
	audit       auditWriter
	cache       *CacheService
	invalidator catalogInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// CourseServiceDeps bundles the collaborators of CourseService.
type CourseServiceDeps struct {
	Courses     courseRepository
	Categories  categoryRepository
	Modules     curriculumReader
	Lectures    lectureReader
	Users       userLookup
	Audit       auditWriter
	Cache       *CacheService
	Invalidator catalogInvalidator
}

// NewCourseService constructs the service.
func NewCourseService(deps CourseServiceDeps, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{
		courses:     deps.Courses,
		categories:  deps.Categories,
		modules:     deps.Modules,
		lectures:    deps.Lectures,
		users:       deps.Users,
		audit:       deps.Audit,
		cache:       deps.Cache,
		invalidator: deps.Invalidator,
		validator:   validate,
		logger:      logger,
	}
}

// ListPublished returns the public catalog page. Only the unfiltered first
// page is served from cache; the bool reports a cache hit.
func (s *CourseService) ListPublished(ctx context.Context, filter models.CourseFilter) (*models.CourseListResult, bool, error) {
	filter.PublishedOnly = true
	filter.InstructorID = ""
	if filter.Level != nil && !filter.Level.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "invalid level")
	}
	if filter.IsDefault() {
		return cacheAside(ctx, s.cache, CacheKeyPublishedCourses, PublishedCoursesTTL, func(ctx context.Context) (*models.CourseListResult, error) {
			return s.list(ctx, filter)
		})
	}
	result, err := s.list(ctx, filter)
	return result, false, err
}

// ListForInstructor returns the caller's courses including drafts. Admins see every course.
func (s *CourseService) ListForInstructor(ctx context.Context, actor permission.Actor, filter models.CourseFilter) (*models.CourseListResult, error) {
	filter.PublishedOnly = false
	filter.InstructorID = actor.ID
	if actor.Role == models.RoleAdmin {
		filter.InstructorID = ""
	}
	return s.list(ctx, filter)
}

func (s *CourseService) list(ctx context.Context, filter models.CourseFilter) (*models.CourseListResult, error) {
	items, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list courses")
	}
	if items == nil {
		items = []models.CourseListItem{}
	}
	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	return &models.CourseListResult{
		Items:      items,
		Pagination: models.Pagination{Page: page, PageSize: pageSize, TotalCount: total},
	}, nil
}

// GetPublished returns the full tree of a published course.
func (s *CourseService) GetPublished(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if !course.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return s.detail(ctx, course)
}

// GetOwned returns a course tree the actor may manage.
func (s *CourseService) GetOwned(ctx context.Context, actor permission.Actor, id string) (*models.CourseDetail, error) {
	course, err := s.LoadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, course)
}

// LoadOwned fetches a course and checks the actor may mutate it. Courses of
// other instructors are reported as missing.
func (s *CourseService) LoadOwned(ctx context.Context, actor permission.Actor, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if !permission.CanMutateCourse(actor, course) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// Create adds a course owned by the actor.
func (s *CourseService) Create(ctx context.Context, actor permission.Actor, req models.CreateCourseRequest, meta models.RequestMeta) (*models.Course, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid course payload")
	}
	categoryID, err := s.resolveCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}

	course := &models.Course{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		Level:        req.Level,
		InstructorID: actor.ID,
		CategoryID:   categoryID,
		IsPublished:  req.IsPublished,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Internal(err, "failed to create course")
	}

	s.invalidator.Catalog(ctx, course.ID)
	s.recordAudit(ctx, actor, models.AuditActionCourseWrite, course.ID, nil, course, meta)
	return course, nil
}

// Update patches a course the actor owns.
func (s *CourseService) Update(ctx context.Context, actor permission.Actor, id string, req models.UpdateCourseRequest, meta models.RequestMeta) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid course payload")
	}
	course, err := s.LoadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	before := *course

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title may not be blank")
		}
		course.Title = title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Level != nil {
		course.Level = *req.Level
	}
	if req.CategoryID != nil {
		categoryID, err := s.resolveCategory(ctx, req.CategoryID)
		if err != nil {
			return nil, err
		}
		course.CategoryID = categoryID
	}
	if req.IsPublished != nil {
		course.IsPublished = *req.IsPublished
	}

	if err := s.courses.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to update course")
	}

	s.invalidator.Catalog(ctx, course.ID)
	s.recordAudit(ctx, actor, models.AuditActionCourseWrite, course.ID, &before, course, meta)
	return course, nil
}

// Delete removes a course the actor owns together with its curriculum,
// enrollments and reviews.
func (s *CourseService) Delete(ctx context.Context, actor permission.Actor, id string, meta models.RequestMeta) error {
	course, err := s.LoadOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Internal(err, "failed to delete course")
	}
	s.invalidator.Catalog(ctx, id)
	s.recordAudit(ctx, actor, models.AuditActionCourseDelete, id, course, nil, meta)
	return nil
}

func (s *CourseService) resolveCategory(ctx context.Context, raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id := strings.TrimSpace(*raw)
	if _, err := s.categories.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "category not found")
		}
		return nil, appErrors.Internal(err, "failed to load category")
	}
	return &id, nil
}

func (s *CourseService) detail(ctx context.Context, course *models.Course) (*models.CourseDetail, error) {
	detail := &models.CourseDetail{Course: *course, Modules: []models.ModuleDetail{}}

	instructor, err := s.users.FindByID(ctx, course.InstructorID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to load instructor")
	}
	if instructor != nil {
		detail.Instructor = models.UserSummary{ID: instructor.ID, FullName: instructor.FullName, Email: instructor.Email}
	}

	if course.CategoryID != nil {
		category, err := s.categories.FindByID(ctx, *course.CategoryID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Internal(err, "failed to load category")
		}
		detail.Category = category
	}

	modules, err := s.modules.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load modules")
	}
	if len(modules) == 0 {
		return detail, nil
	}

	moduleIDs := make([]string, len(modules))
	for i, module := range modules {
		moduleIDs[i] = module.ID
	}
	lectures, err := s.lectures.ListByModules(ctx, moduleIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load lectures")
	}
	byModule := make(map[string][]models.Lecture, len(modules))
	for _, lecture := range lectures {
		byModule[lecture.ModuleID] = append(byModule[lecture.ModuleID], lecture)
	}
	for _, module := range modules {
		items := byModule[module.ID]
		if items == nil {
			items = []models.Lecture{}
		}
		detail.Modules = append(detail.Modules, models.ModuleDetail{Module: module, Lectures: items})
	}
	return detail, nil
}

func (s *CourseService) recordAudit(ctx context.Context, actor permission.Actor, action, courseID string, before, after *models.Course, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "courses",
		ResourceID: &courseID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record course audit log", zap.String("course_id", courseID), zap.Error(err))
	}
}
