package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/repository"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

const (
	topCoursesLimit     = 10
	activityPerSource   = 5
	activityFeedLimit   = 10
	instructorRecentMax = 5
	studentCoursesMax   = 5
)

type dashboardRepository interface {
	CountUsersByRole(ctx context.Context, role models.UserRole) (int, error)
	CountPublishedCourses(ctx context.Context) (int, error)
	CountEnrollments(ctx context.Context) (int, error)
	ReviewStats(ctx context.Context) (int, float64, error)
	TopCourses(ctx context.Context, limit int) ([]models.TopCourse, error)
	RecentEnrollments(ctx context.Context, limit int) ([]models.Activity, error)
	RecentReviews(ctx context.Context, limit int) ([]models.Activity, error)
	RecentCourses(ctx context.Context, limit int) ([]models.Activity, error)
	InstructorTotals(ctx context.Context, instructorID string) (*repository.InstructorTotals, error)
	InstructorRecentCourses(ctx context.Context, instructorID string, limit int) ([]models.InstructorCourseStat, error)
}

type studentEnrollmentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentProgressRow, error)
}

// DashboardService composes the admin, instructor and student dashboards.
type DashboardService struct {
	repo        dashboardRepository
	enrollments studentEnrollmentLister
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(repo dashboardRepository, enrollments studentEnrollmentLister, cache *CacheService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, enrollments: enrollments, cache: cache, logger: logger}
}

// WithMetrics records the duration of the admin aggregate queries.
func (s *DashboardService) WithMetrics(metrics *MetricsService) *DashboardService {
	s.metrics = metrics
	return s
}

// AdminAnalytics returns the platform-wide totals.
func (s *DashboardService) AdminAnalytics(ctx context.Context) (*models.AdminAnalytics, bool, error) {
	return cacheAside(ctx, s.cache, CacheKeyAdminDashboard, AdminDashboardTTL, s.computeAdminAnalytics)
}

func (s *DashboardService) computeAdminAnalytics(ctx context.Context) (*models.AdminAnalytics, error) {
	defer s.observe("admin_analytics", time.Now())

	var out models.AdminAnalytics
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountUsersByRole(gctx, models.RoleStudent)
		out.TotalStudents = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountUsersByRole(gctx, models.RoleInstructor)
		out.TotalInstructors = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountPublishedCourses(gctx)
		out.TotalCourses = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountEnrollments(gctx)
		out.TotalEnrollments = n
		return err
	})
	g.Go(func() error {
		n, avg, err := s.repo.ReviewStats(gctx)
		out.TotalReviews = n
		out.AverageRating = avg
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Internal(err, "failed to compute analytics")
	}
	return &out, nil
}

// TopCourses ranks published courses by enrollment count.
func (s *DashboardService) TopCourses(ctx context.Context) ([]models.TopCourse, bool, error) {
	return cacheAside(ctx, s.cache, CacheKeyAdminTopCourses, AdminDashboardTTL, func(ctx context.Context) ([]models.TopCourse, error) {
		start := time.Now()
		courses, err := s.repo.TopCourses(ctx, topCoursesLimit)
		s.observe("top_courses", start)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load top courses")
		}
		if courses == nil {
			courses = []models.TopCourse{}
		}
		return courses, nil
	})
}

// RecentActivity merges the latest enrollments, reviews and course launches.
func (s *DashboardService) RecentActivity(ctx context.Context) ([]models.Activity, error) {
	sources := []func(context.Context, int) ([]models.Activity, error){
		s.repo.RecentEnrollments,
		s.repo.RecentReviews,
		s.repo.RecentCourses,
	}
	feed := make([]models.Activity, 0, len(sources)*activityPerSource)
	for _, load := range sources {
		items, err := load(ctx, activityPerSource)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load recent activity")
		}
		feed = append(feed, items...)
	}
	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})
	if len(feed) > activityFeedLimit {
		feed = feed[:activityFeedLimit]
	}
	return feed, nil
}

// Instructor returns the instructor's own dashboard.
func (s *DashboardService) Instructor(ctx context.Context, instructorID string) (*models.InstructorDashboard, error) {
	totals, err := s.repo.InstructorTotals(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load instructor totals")
	}
	recent, err := s.repo.InstructorRecentCourses(ctx, instructorID, instructorRecentMax)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load instructor courses")
	}
	if recent == nil {
		recent = []models.InstructorCourseStat{}
	}
	return &models.InstructorDashboard{
		TotalCourses:  totals.TotalCourses,
		TotalStudents: totals.TotalStudents,
		TotalRevenue:  totals.TotalRevenue,
		AverageRating: totals.AverageRating,
		RecentCourses: recent,
	}, nil
}

// Student returns the student's own dashboard.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	rows, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollments")
	}
	out := &models.StudentDashboard{
		TotalEnrolled: len(rows),
		Courses:       []models.StudentCourseProgress{},
	}
	for _, row := range rows {
		if row.Status == models.EnrollmentCompleted {
			out.CompletedCourses++
			continue
		}
		out.InProgress++
		if len(out.Courses) < studentCoursesMax {
			out.Courses = append(out.Courses, models.StudentCourseProgress{
				EnrollmentID: row.EnrollmentID,
				CourseID:     row.CourseID,
				CourseTitle:  row.CourseTitle,
				Instructor:   row.InstructorName,
				Progress:     row.Counts().Percentage(),
				EnrolledAt:   row.EnrolledAt,
			})
		}
	}
	return out, nil
}

func (s *DashboardService) observe(label string, start time.Time) {
	s.metrics.ObserveDBQuery(label, time.Since(start))
}
