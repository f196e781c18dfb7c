package service

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

type fakeReviewRepo struct {
	reviews     map[string]*models.Review
	listCalls   int
	ratingCalls int
	skipExists  bool
}

func (f *fakeReviewRepo) ListByCourse(ctx context.Context, courseID string) ([]models.ReviewListItem, error) {
	f.listCalls++
	var out []models.ReviewListItem
	for _, r := range f.reviews {
		if r.CourseID == courseID {
			out = append(out, models.ReviewListItem{ID: r.ID, StudentName: r.StudentID, Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt})
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) FindListItem(ctx context.Context, id string) (*models.ReviewListItem, error) {
	r, ok := f.reviews[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ReviewListItem{ID: r.ID, StudentName: "name:" + r.StudentID, Rating: r.Rating, Comment: r.Comment, CreatedAt: r.CreatedAt}, nil
}

func (f *fakeReviewRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Review, error) {
	var out []models.Review
	for _, r := range f.reviews {
		if r.StudentID == studentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReviewRepo) FindByIDAndStudent(ctx context.Context, id, studentID string) (*models.Review, error) {
	r, ok := f.reviews[id]
	if !ok || r.StudentID != studentID {
		return nil, sql.ErrNoRows
	}
	copy := *r
	return &copy, nil
}

func (f *fakeReviewRepo) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	if f.skipExists {
		return false, nil
	}
	for _, r := range f.reviews {
		if r.StudentID == studentID && r.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeReviewRepo) Create(ctx context.Context, review *models.Review) error {
	for _, r := range f.reviews {
		if r.StudentID == review.StudentID && r.CourseID == review.CourseID {
			return uniqueViolation()
		}
	}
	review.ID = uuid.NewString()
	review.CreatedAt = time.Now().UTC()
	review.UpdatedAt = review.CreatedAt
	copy := *review
	f.reviews[review.ID] = &copy
	return nil
}

func (f *fakeReviewRepo) Update(ctx context.Context, review *models.Review) error {
	if _, ok := f.reviews[review.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *review
	f.reviews[review.ID] = &copy
	return nil
}

func (f *fakeReviewRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.reviews[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.reviews, id)
	return nil
}

func (f *fakeReviewRepo) CourseRating(ctx context.Context, courseID string) (*models.CourseRating, error) {
	f.ratingCalls++
	rating := &models.CourseRating{CourseID: courseID}
	sum := 0
	for _, r := range f.reviews {
		if r.CourseID == courseID {
			sum += r.Rating
			rating.TotalReviews++
		}
	}
	if rating.TotalReviews > 0 {
		rating.AverageRating = float64(sum) / float64(rating.TotalReviews)
	}
	return rating, nil
}

type reviewFixture struct {
	repo       *fakeReviewRepo
	catalog    *catalogFixture
	enrolled   *fakeEnrollmentStore
	cacheStore *memoryCache
	svc        *ReviewService
}

func newReviewFixture() *reviewFixture {
	f := &reviewFixture{
		repo:     &fakeReviewRepo{reviews: map[string]*models.Review{}},
		catalog:  newCatalogFixture(),
		enrolled: newFakeEnrollmentStore(),
	}
	cache, store := newTestCache()
	f.cacheStore = store
	f.svc = NewReviewService(f.repo, f.catalog.courses, f.enrolled, cache, NewCacheInvalidator(cache), nil, nil)
	f.catalog.addCourse("c1", "inst-1", true)
	f.enrolled.enrollments["e1"] = &models.Enrollment{ID: "e1", StudentID: "stu-1", CourseID: "c1", Status: models.EnrollmentActive}
	return f
}

var reviewer = permission.Actor{ID: "stu-1", Role: models.RoleStudent}

func TestReviewServiceCreate(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	review, err := f.svc.Create(ctx, reviewer, "c1", models.ReviewRequest{Rating: 5, Comment: " Great "})
	require.NoError(t, err)
	assert.Equal(t, "Great", review.Comment)
	assert.Equal(t, "name:stu-1", review.StudentName)
	assert.Equal(t, 5, review.Rating)

	_, err = f.svc.Create(ctx, reviewer, "c1", models.ReviewRequest{Rating: 4})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "You have already reviewed this course", appErr.Message)

	f.repo.skipExists = true
	_, err = f.svc.Create(ctx, reviewer, "c1", models.ReviewRequest{Rating: 4})
	require.Error(t, err)
	assert.Equal(t, "You have already reviewed this course", appErrors.FromError(err).Message)
}

func TestReviewServiceCreateGuards(t *testing.T) {
	f := newReviewFixture()
	f.catalog.addCourse("draft", "inst-1", false)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, reviewer, "c1", models.ReviewRequest{Rating: 6})
	require.Error(t, err)
	assert.Equal(t, "Rating must be between 1 and 5", appErrors.FromError(err).Message)

	_, err = f.svc.Create(ctx, reviewer, "draft", models.ReviewRequest{Rating: 3})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)

	outsider := permission.Actor{ID: "stu-2", Role: models.RoleStudent}
	_, err = f.svc.Create(ctx, outsider, "c1", models.ReviewRequest{Rating: 3})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusForbidden, appErr.Status)
	assert.Equal(t, "You must be enrolled in this course to review it", appErr.Message)
}

func TestReviewServiceRatingBoundsFromTags(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	for _, rating := range []int{0, 6} {
		_, err := f.svc.Create(ctx, reviewer, "c1", models.ReviewRequest{Rating: rating})
		require.Error(t, err)
		assert.Equal(t, "Rating must be between 1 and 5", appErrors.FromError(err).Message)
	}

	_, err := f.svc.Update(ctx, reviewer, "any", models.ReviewRequest{Rating: 3, Comment: strings.Repeat("x", 5001)})
	require.Error(t, err)
	assert.Equal(t, "invalid review payload", appErrors.FromError(err).Message)
}

func TestReviewServiceCachedReadsInvalidatedByWrites(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()

	review, err := f.svc.Create(ctx, reviewer, "c1", models.ReviewRequest{Rating: 4})
	require.NoError(t, err)

	_, hit, err := f.svc.ListByCourse(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, hit)
	rating, hit, err := f.svc.Rating(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 4.0, rating.AverageRating)

	items, hit, err := f.svc.ListByCourse(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, items, 1)
	_, hit, err = f.svc.Rating(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, f.repo.listCalls)
	assert.Equal(t, 1, f.repo.ratingCalls)

	updated, err := f.svc.Update(ctx, reviewer, review.ID, models.ReviewRequest{Rating: 2, Comment: "meh"})
	require.NoError(t, err)
	assert.Equal(t, review.ID, updated.ID)
	assert.Equal(t, "name:stu-1", updated.StudentName)
	assert.Equal(t, 2, updated.Rating)
	assert.False(t, f.cacheStore.has(CourseReviewsKey("c1")))
	assert.False(t, f.cacheStore.has(CourseRatingKey("c1")))

	rating, hit, err = f.svc.Rating(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2.0, rating.AverageRating)
}

func TestReviewServiceAuthorOnly(t *testing.T) {
	f := newReviewFixture()
	ctx := context.Background()
	review, err := f.svc.Create(ctx, reviewer, "c1", models.ReviewRequest{Rating: 4})
	require.NoError(t, err)

	other := permission.Actor{ID: "stu-2", Role: models.RoleStudent}
	_, err = f.svc.Update(ctx, other, review.ID, models.ReviewRequest{Rating: 1})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
	_, err = f.svc.Delete(ctx, other, review.ID)
	require.Error(t, err)

	msg, err := f.svc.Delete(ctx, reviewer, review.ID)
	require.NoError(t, err)
	assert.Equal(t, "Review deleted successfully", msg)
	assert.Empty(t, f.repo.reviews)
}
