package service

import "context"

// CacheInvalidator knows which cached payloads each kind of write makes
// stale. Every write path calls exactly one of its methods.
type CacheInvalidator struct {
	cache *CacheService
}

// NewCacheInvalidator constructs the invalidator.
func NewCacheInvalidator(cache *CacheService) *CacheInvalidator {
	return &CacheInvalidator{cache: cache}
}

// Catalog handles category, course, module and lecture writes. courseID may
// be empty for category writes.
func (i *CacheInvalidator) Catalog(ctx context.Context, courseID string) {
	keys := []string{CacheKeyPublishedCourses, CacheKeyAdminDashboard, CacheKeyAdminTopCourses}
	if courseID != "" {
		keys = append(keys, CourseRatingKey(courseID))
	}
	i.cache.Delete(ctx, keys...)
}

// Reviews handles review create, update and delete.
func (i *CacheInvalidator) Reviews(ctx context.Context, courseID string) {
	i.cache.Delete(ctx,
		CourseReviewsKey(courseID),
		CourseRatingKey(courseID),
		CacheKeyAdminDashboard,
		CacheKeyAdminTopCourses,
	)
}

// Enrollments handles enrollment creation and completion.
func (i *CacheInvalidator) Enrollments(ctx context.Context) {
	i.cache.Delete(ctx, CacheKeyAdminDashboard, CacheKeyAdminTopCourses)
}

// Profiles handles display name changes, which appear in course and review
// listings.
func (i *CacheInvalidator) Profiles(ctx context.Context) {
	i.cache.Delete(ctx, CacheKeyPublishedCourses, CacheKeyAdminTopCourses)
	i.cache.Invalidate(ctx, cacheKeyCourseReviewsPref+"*")
}
