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

type reviewRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ReviewListItem, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Review, error)
	FindListItem(ctx context.Context, id string) (*models.ReviewListItem, error)
	FindByIDAndStudent(ctx context.Context, id, studentID string) (*models.Review, error)
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, review *models.Review) error
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id string) error
	CourseRating(ctx context.Context, courseID string) (*models.CourseRating, error)
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
}

type reviewInvalidator interface {
	Reviews(ctx context.Context, courseID string)
}

const (
	msgReviewNotEnrolled = "You must be enrolled in this course to review it"
	msgReviewDuplicate   = "You have already reviewed this course"
	msgReviewRating      = "Rating must be between 1 and 5"
	msgReviewDeleted     = "Review deleted successfully"
)

// ReviewService manages course reviews and their cached aggregates.
type ReviewService struct {
	repo        reviewRepository
	courses     courseLookup
	enrollments enrollmentChecker
	cache       *CacheService
	invalidator reviewInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewReviewService constructs the review service.
func NewReviewService(repo reviewRepository, courses courseLookup, enrollments enrollmentChecker, cache *CacheService, invalidator reviewInvalidator, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ReviewService{
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		cache:       cache,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
	}
}

// ListByCourse returns the reviews of a course, newest first.
func (s *ReviewService) ListByCourse(ctx context.Context, courseID string) ([]models.ReviewListItem, bool, error) {
	return cacheAside(ctx, s.cache, CourseReviewsKey(courseID), CourseReviewsTTL, func(ctx context.Context) ([]models.ReviewListItem, error) {
		items, err := s.repo.ListByCourse(ctx, courseID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to list reviews")
		}
		if items == nil {
			items = []models.ReviewListItem{}
		}
		return items, nil
	})
}

// Rating returns the average rating and review count of a course.
func (s *ReviewService) Rating(ctx context.Context, courseID string) (*models.CourseRating, bool, error) {
	return cacheAside(ctx, s.cache, CourseRatingKey(courseID), CourseRatingTTL, func(ctx context.Context) (*models.CourseRating, error) {
		rating, err := s.repo.CourseRating(ctx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return nil, appErrors.Internal(err, "failed to load course rating")
		}
		return rating, nil
	})
}

// Mine lists the reviews written by the student.
func (s *ReviewService) Mine(ctx context.Context, studentID string) ([]models.Review, error) {
	reviews, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list reviews")
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}

// Create posts the student's single review of a published course.
func (s *ReviewService) Create(ctx context.Context, actor permission.Actor, courseID string, req models.ReviewRequest) (*models.ReviewListItem, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if !course.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, actor.ID, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, msgReviewNotEnrolled)
	}

	exists, err := s.repo.Exists(ctx, actor.ID, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check review")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrValidation, msgReviewDuplicate)
	}

	review := &models.Review{
		StudentID: actor.ID,
		CourseID:  courseID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, msgReviewDuplicate)
		}
		return nil, appErrors.Internal(err, "failed to create review")
	}
	s.invalidator.Reviews(ctx, courseID)
	return s.listItem(ctx, review), nil
}

// Update changes rating and comment of the caller's own review.
func (s *ReviewService) Update(ctx context.Context, actor permission.Actor, id string, req models.ReviewRequest) (*models.ReviewListItem, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	review, err := s.loadOwn(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	review.Rating = req.Rating
	review.Comment = strings.TrimSpace(req.Comment)
	if err := s.repo.Update(ctx, review); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Internal(err, "failed to update review")
	}
	s.invalidator.Reviews(ctx, review.CourseID)
	return s.listItem(ctx, review), nil
}

// Delete removes the caller's own review.
func (s *ReviewService) Delete(ctx context.Context, actor permission.Actor, id string) (string, error) {
	review, err := s.loadOwn(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if err := s.repo.Delete(ctx, review.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return "", appErrors.Internal(err, "failed to delete review")
	}
	s.invalidator.Reviews(ctx, review.CourseID)
	return msgReviewDeleted, nil
}

// listItem projects a written review onto the public shape. The write has
// already succeeded, so a failed lookup degrades to an item without the name.
func (s *ReviewService) listItem(ctx context.Context, review *models.Review) *models.ReviewListItem {
	item, err := s.repo.FindListItem(ctx, review.ID)
	if err == nil {
		return item
	}
	s.logger.Warn("review item lookup failed", zap.String("review_id", review.ID), zap.Error(err))
	return &models.ReviewListItem{
		ID:        review.ID,
		Rating:    review.Rating,
		Comment:   review.Comment,
		CreatedAt: review.CreatedAt,
	}
}

func (s *ReviewService) loadOwn(ctx context.Context, actor permission.Actor, id string) (*models.Review, error) {
	review, err := s.repo.FindByIDAndStudent(ctx, id, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Internal(err, "failed to load review")
	}
	if !permission.IsReviewAuthor(actor, review) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
	}
	return review, nil
}

func (s *ReviewService) validate(req models.ReviewRequest) error {
	err := s.validator.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			if fe.Field() == "Rating" {
				return appErrors.Clone(appErrors.ErrValidation, msgReviewRating)
			}
		}
	}
	return appErrors.Invalid(err, "invalid review payload")
}
