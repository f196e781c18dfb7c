package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/internal/repository"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
	CreateWithSnapshot(ctx context.Context, enrollment *models.Enrollment) (int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentProgressRow, error)
	ListProgressByCourse(ctx context.Context, courseID string) ([]models.EnrollmentProgressRow, error)
	FindProgressRow(ctx context.Context, enrollmentID string) (*models.EnrollmentProgressRow, error)
	FindProgressForStudentLecture(ctx context.Context, studentID, lectureID string) (*models.LectureProgress, error)
	MarkCompleted(ctx context.Context, progressID string, at time.Time) (bool, error)
	ReconcileStatus(ctx context.Context, enrollmentID string, now time.Time) (*models.ReconcileResult, error)
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ListItemsByIDs(ctx context.Context, ids []string) ([]models.CourseListItem, error)
}

type completionNotifier interface {
	CourseCompleted(ctx context.Context, student *models.User, courseTitle string)
}

type certificateIssuer interface {
	IssueCertificate(ctx context.Context, enrollment models.Enrollment) error
}

type enrollmentInvalidator interface {
	Enrollments(ctx context.Context)
}

const (
	msgEnrolled          = "Successfully enrolled in course"
	msgAlreadyEnrolled   = "Already enrolled in this course"
	msgCourseUnavailable = "Course not found or not published"
	msgNotEnrolled       = "Not enrolled in this course"
	msgLectureCompleted  = "Lecture marked as completed"
	msgLectureWasDone    = "Lecture already completed"
)

// EnrollmentService owns enrollment creation, lecture progress and the
// completion transition.
type EnrollmentService struct {
	repo         enrollmentRepository
	courses      enrollmentCourseReader
	owned        ownedCourseLoader
	users        userLookup
	notifier     completionNotifier
	certificates certificateIssuer
	invalidator  enrollmentInvalidator
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// EnrollmentServiceDeps bundles the collaborators of EnrollmentService.
// Notifier, Certificates and Metrics are optional.
type EnrollmentServiceDeps struct {
	Enrollments  enrollmentRepository
	Courses      enrollmentCourseReader
	Owned        ownedCourseLoader
	Users        userLookup
	Notifier     completionNotifier
	Certificates certificateIssuer
	Invalidator  enrollmentInvalidator
	Metrics      *MetricsService
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(deps EnrollmentServiceDeps, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EnrollmentService{
		repo:         deps.Enrollments,
		courses:      deps.Courses,
		owned:        deps.Owned,
		users:        deps.Users,
		notifier:     deps.Notifier,
		certificates: deps.Certificates,
		invalidator:  deps.Invalidator,
		metrics:      deps.Metrics,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Enroll creates the enrollment and its progress snapshot in one transaction.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID string, req models.EnrollRequest) (*models.EnrollResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "course_id is required")
	}
	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, msgCourseUnavailable)
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	if !course.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrValidation, msgCourseUnavailable)
	}

	enrolled, err := s.repo.IsEnrolled(ctx, studentID, course.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}
	if enrolled {
		return nil, appErrors.Clone(appErrors.ErrValidation, msgAlreadyEnrolled)
	}

	enrollment := &models.Enrollment{
		StudentID:  studentID,
		CourseID:   course.ID,
		Status:     models.EnrollmentActive,
		EnrolledAt: s.now(),
	}
	tracked, err := s.repo.CreateWithSnapshot(ctx, enrollment)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, msgAlreadyEnrolled)
		}
		return nil, appErrors.Internal(err, "failed to create enrollment")
	}
	s.logger.Info("student enrolled",
		zap.String("student_id", studentID),
		zap.String("course_id", course.ID),
		zap.Int("lectures_tracked", tracked),
	)
	s.metrics.ObserveLearningEvent(EventEnrolled)
	if s.invalidator != nil {
		s.invalidator.Enrollments(ctx)
	}
	return &models.EnrollResponse{Message: msgEnrolled, EnrollmentID: enrollment.ID}, nil
}

// MyCourses lists the student's enrollments, newest first.
func (s *EnrollmentService) MyCourses(ctx context.Context, studentID string) ([]models.MyCourseItem, error) {
	rows, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	items := make([]models.MyCourseItem, 0, len(rows))
	if len(rows) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.CourseID)
	}
	courses, err := s.courses.ListItemsByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load courses")
	}
	byID := make(map[string]models.CourseListItem, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	for _, row := range rows {
		items = append(items, models.MyCourseItem{
			ID:            row.EnrollmentID,
			CourseDetails: byID[row.CourseID],
			Status:        row.Status,
			EnrolledAt:    row.EnrolledAt,
		})
	}
	return items, nil
}

// MyProgress summarises progress across every enrollment of the student.
func (s *EnrollmentService) MyProgress(ctx context.Context, studentID string) ([]models.ProgressSummary, error) {
	rows, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list enrollments")
	}
	out := make([]models.ProgressSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ProgressSummary{
			CourseID:          row.CourseID,
			CourseTitle:       row.CourseTitle,
			TotalLectures:     row.TotalLectures,
			CompletedLectures: row.CompletedLectures,
			Progress:          row.Counts().Percentage(),
			Status:            row.Status,
			EnrolledAt:        row.EnrolledAt,
		})
	}
	return out, nil
}

// CourseProgress reconciles the enrollment status and returns the progress of
// one course.
func (s *EnrollmentService) CourseProgress(ctx context.Context, studentID, courseID string) (*models.CourseProgress, error) {
	enrollment, err := s.repo.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgNotEnrolled)
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}

	if _, err := s.Reconcile(ctx, enrollment.ID); err != nil {
		return nil, err
	}

	row, err := s.repo.FindProgressRow(ctx, enrollment.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load progress")
	}
	return &models.CourseProgress{
		CourseID:           row.CourseID,
		CourseTitle:        row.CourseTitle,
		TotalLectures:      row.TotalLectures,
		CompletedLectures:  row.CompletedLectures,
		ProgressPercentage: row.Counts().Percentage(),
		Status:             row.Status,
	}, nil
}

// CompleteLecture marks a lecture as done for the requesting student.
// Repeated calls leave completed_at untouched.
func (s *EnrollmentService) CompleteLecture(ctx context.Context, studentID, lectureID string) (*models.CompletionResult, error) {
	progress, err := s.repo.FindProgressForStudentLecture(ctx, studentID, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture progress not found")
		}
		return nil, appErrors.Internal(err, "failed to load lecture progress")
	}
	result := &models.CompletionResult{EnrollmentID: progress.EnrollmentID}
	if progress.Completed {
		result.Message = msgLectureWasDone
		result.AlreadyDone = true
		return result, nil
	}

	updated, err := s.repo.MarkCompleted(ctx, progress.ID, s.now())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to mark lecture completed")
	}
	if !updated {
		// A concurrent request won the guarded update.
		result.Message = msgLectureWasDone
		result.AlreadyDone = true
		return result, nil
	}
	result.Message = msgLectureCompleted
	s.metrics.ObserveLearningEvent(EventLectureCompleted)

	reconciled, err := s.Reconcile(ctx, progress.EnrollmentID)
	if err != nil {
		s.logger.Warn("reconcile after completion failed",
			zap.String("enrollment_id", progress.EnrollmentID),
			zap.Error(err),
		)
		return result, nil
	}
	result.CourseComplete = reconciled.Enrollment.Status == models.EnrollmentCompleted
	return result, nil
}

// Reconcile promotes an enrollment to COMPLETED once every lecture is done and
// fires the completion side effects exactly once.
func (s *EnrollmentService) Reconcile(ctx context.Context, enrollmentID string) (*models.ReconcileResult, error) {
	result, err := s.repo.ReconcileStatus(ctx, enrollmentID, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgNotEnrolled)
		}
		return nil, appErrors.Internal(err, "failed to reconcile enrollment")
	}
	if result.Transitioned {
		s.onCompleted(ctx, result.Enrollment)
	}
	return result, nil
}

func (s *EnrollmentService) onCompleted(ctx context.Context, enrollment models.Enrollment) {
	s.logger.Info("enrollment completed",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("course_id", enrollment.CourseID),
	)
	s.metrics.ObserveLearningEvent(EventCourseCompleted)
	if s.invalidator != nil {
		s.invalidator.Enrollments(ctx)
	}
	if s.certificates != nil {
		if err := s.certificates.IssueCertificate(ctx, enrollment); err != nil {
			s.logger.Warn("failed to queue certificate", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
		}
	}
	if s.notifier == nil || s.users == nil {
		return
	}
	student, err := s.users.FindByID(ctx, enrollment.StudentID)
	if err != nil {
		s.logger.Warn("failed to load student for completion notice", zap.String("student_id", enrollment.StudentID), zap.Error(err))
		return
	}
	title := ""
	if course, err := s.courses.FindByID(ctx, enrollment.CourseID); err == nil {
		title = course.Title
	}
	s.notifier.CourseCompleted(ctx, student, title)
}

// Roster lists the students of an owned course with their progress.
func (s *EnrollmentService) Roster(ctx context.Context, actor permission.Actor, courseID string) ([]models.RosterEntry, error) {
	if _, err := s.owned.LoadOwned(ctx, actor, courseID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListProgressByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list course enrollments")
	}
	out := make([]models.RosterEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.RosterEntry{
			EnrollmentID:      row.EnrollmentID,
			StudentID:         row.StudentID,
			StudentName:       row.StudentName,
			StudentEmail:      row.StudentEmail,
			Status:            row.Status,
			EnrolledAt:        row.EnrolledAt,
			CompletedAt:       row.CompletedAt,
			CompletedLectures: row.CompletedLectures,
			TotalLectures:     row.TotalLectures,
			Progress:          row.Counts().Percentage(),
		})
	}
	return out, nil
}
