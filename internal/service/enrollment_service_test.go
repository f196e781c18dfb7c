package service

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
)

// fakeEnrollmentStore keeps enrollments and their progress snapshots in memory.
type fakeEnrollmentStore struct {
	mu             sync.Mutex
	courseLectures map[string][]string
	enrollments    map[string]*models.Enrollment
	progress       map[string]*models.LectureProgress
	skipPrecheck   bool
	markCalls      int
}

func newFakeEnrollmentStore() *fakeEnrollmentStore {
	return &fakeEnrollmentStore{
		courseLectures: map[string][]string{},
		enrollments:    map[string]*models.Enrollment{},
		progress:       map[string]*models.LectureProgress{},
	}
}

func (f *fakeEnrollmentStore) find(studentID, courseID string) *models.Enrollment {
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e
		}
	}
	return nil
}

func (f *fakeEnrollmentStore) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e := f.find(studentID, courseID); e != nil {
		copy := *e
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentStore) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.skipPrecheck {
		return false, nil
	}
	return f.find(studentID, courseID) != nil, nil
}

func (f *fakeEnrollmentStore) CreateWithSnapshot(ctx context.Context, enrollment *models.Enrollment) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.find(enrollment.StudentID, enrollment.CourseID) != nil {
		return 0, uniqueViolation()
	}
	enrollment.ID = uuid.NewString()
	copy := *enrollment
	f.enrollments[enrollment.ID] = &copy
	lectures := f.courseLectures[enrollment.CourseID]
	for _, lectureID := range lectures {
		id := uuid.NewString()
		f.progress[id] = &models.LectureProgress{ID: id, EnrollmentID: enrollment.ID, LectureID: lectureID}
	}
	return len(lectures), nil
}

func (f *fakeEnrollmentStore) row(e *models.Enrollment) models.EnrollmentProgressRow {
	completed := 0
	for _, p := range f.progress {
		if p.EnrollmentID == e.ID && p.Completed {
			completed++
		}
	}
	return models.EnrollmentProgressRow{
		EnrollmentID:      e.ID,
		StudentID:         e.StudentID,
		StudentName:       "Student " + e.StudentID,
		CourseID:          e.CourseID,
		CourseTitle:       "Course " + e.CourseID,
		InstructorName:    "Instructor of " + e.CourseID,
		Status:            e.Status,
		EnrolledAt:        e.EnrolledAt,
		CompletedAt:       e.CompletedAt,
		TotalLectures:     len(f.courseLectures[e.CourseID]),
		CompletedLectures: completed,
	}
}

func (f *fakeEnrollmentStore) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentProgressRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentProgressRow
	for _, e := range f.enrollments {
		if e.StudentID == studentID {
			out = append(out, f.row(e))
		}
	}
	return out, nil
}

func (f *fakeEnrollmentStore) ListProgressByCourse(ctx context.Context, courseID string) ([]models.EnrollmentProgressRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EnrollmentProgressRow
	for _, e := range f.enrollments {
		if e.CourseID == courseID {
			out = append(out, f.row(e))
		}
	}
	return out, nil
}

func (f *fakeEnrollmentStore) FindProgressRow(ctx context.Context, enrollmentID string) (*models.EnrollmentProgressRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	row := f.row(e)
	return &row, nil
}

func (f *fakeEnrollmentStore) FindProgressForStudentLecture(ctx context.Context, studentID, lectureID string) (*models.LectureProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.progress {
		e := f.enrollments[p.EnrollmentID]
		if p.LectureID == lectureID && e != nil && e.StudentID == studentID {
			copy := *p
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEnrollmentStore) MarkCompleted(ctx context.Context, progressID string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	p, ok := f.progress[progressID]
	if !ok || p.Completed {
		return false, nil
	}
	p.Completed = true
	p.CompletedAt = &at
	return true, nil
}

func (f *fakeEnrollmentStore) ReconcileStatus(ctx context.Context, enrollmentID string, now time.Time) (*models.ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.enrollments[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	counts := f.row(e).Counts()
	result := &models.ReconcileResult{Counts: counts}
	if e.Status == models.EnrollmentActive && counts.Complete() {
		e.Status = models.EnrollmentCompleted
		e.CompletedAt = &now
		result.Transitioned = true
	}
	result.Enrollment = *e
	return result, nil
}

type recordingCompletion struct {
	notified []string
}

func (r *recordingCompletion) CourseCompleted(ctx context.Context, student *models.User, courseTitle string) {
	r.notified = append(r.notified, student.ID+":"+courseTitle)
}

type recordingCertificates struct {
	issued []string
}

func (r *recordingCertificates) IssueCertificate(ctx context.Context, enrollment models.Enrollment) error {
	r.issued = append(r.issued, enrollment.ID)
	return nil
}

type enrollmentFixture struct {
	store        *fakeEnrollmentStore
	catalog      *catalogFixture
	notifier     *recordingCompletion
	certificates *recordingCertificates
	invalidator  *recordingInvalidator
	metrics      *MetricsService
	svc          *EnrollmentService
}

func newEnrollmentFixture() *enrollmentFixture {
	f := &enrollmentFixture{
		store:        newFakeEnrollmentStore(),
		catalog:      newCatalogFixture(),
		notifier:     &recordingCompletion{},
		certificates: &recordingCertificates{},
		invalidator:  &recordingInvalidator{},
		metrics:      NewMetricsService(),
	}
	users := &mockUserRepo{users: map[string]*models.User{
		"stu-1": {ID: "stu-1", FullName: "Grace", Email: "grace@example.com", Role: models.RoleStudent},
	}}
	f.svc = NewEnrollmentService(EnrollmentServiceDeps{
		Enrollments:  f.store,
		Courses:      f.catalog.courses,
		Owned:        f.catalog.courseSvc,
		Users:        users,
		Notifier:     f.notifier,
		Certificates: f.certificates,
		Invalidator:  f.invalidator,
		Metrics:      f.metrics,
	}, nil, nil)
	return f
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	f := newEnrollmentFixture()
	f.catalog.addCourse("c1", "inst-1", true)
	f.store.courseLectures["c1"] = []string{"l1", "l2", "l3", "l4", "l5", "l6"}
	ctx := context.Background()

	resp, err := f.svc.Enroll(ctx, "stu-1", models.EnrollRequest{CourseID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Successfully enrolled in course", resp.Message)
	assert.NotEmpty(t, resp.EnrollmentID)
	assert.Len(t, f.store.progress, 6)
	assert.Equal(t, 1, f.invalidator.enrollments)

	_, err = f.svc.Enroll(ctx, "stu-1", models.EnrollRequest{CourseID: "c1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "Already enrolled in this course", appErr.Message)
	assert.Len(t, f.store.progress, 6)
}

func TestEnrollmentServiceEnrollUniqueViolation(t *testing.T) {
	f := newEnrollmentFixture()
	f.catalog.addCourse("c1", "inst-1", true)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, "stu-1", models.EnrollRequest{CourseID: "c1"})
	require.NoError(t, err)

	f.store.skipPrecheck = true
	_, err = f.svc.Enroll(ctx, "stu-1", models.EnrollRequest{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, "Already enrolled in this course", appErrors.FromError(err).Message)
}

func TestEnrollmentServiceEnrollUnpublished(t *testing.T) {
	f := newEnrollmentFixture()
	f.catalog.addCourse("draft", "inst-1", false)

	for _, id := range []string{"draft", "missing"} {
		_, err := f.svc.Enroll(context.Background(), "stu-1", models.EnrollRequest{CourseID: id})
		require.Error(t, err)
		appErr := appErrors.FromError(err)
		assert.Equal(t, http.StatusBadRequest, appErr.Status)
		assert.Equal(t, "Course not found or not published", appErr.Message)
	}
	assert.Empty(t, f.store.enrollments)
}

func TestEnrollmentServiceCompleteLectureIdempotent(t *testing.T) {
	f := newEnrollmentFixture()
	f.catalog.addCourse("c1", "inst-1", true)
	f.store.courseLectures["c1"] = []string{"l1", "l2"}
	ctx := context.Background()
	_, err := f.svc.Enroll(ctx, "stu-1", models.EnrollRequest{CourseID: "c1"})
	require.NoError(t, err)

	first, err := f.svc.CompleteLecture(ctx, "stu-1", "l1")
	require.NoError(t, err)
	assert.Equal(t, "Lecture marked as completed", first.Message)
	assert.False(t, first.CourseComplete)

	second, err := f.svc.CompleteLecture(ctx, "stu-1", "l1")
	require.NoError(t, err)
	assert.Equal(t, "Lecture already completed", second.Message)
	assert.Equal(t, 1, f.store.markCalls)

	_, err = f.svc.CompleteLecture(ctx, "stu-2", "l1")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestEnrollmentServiceCompletionTransitionsOnce(t *testing.T) {
	f := newEnrollmentFixture()
	f.catalog.addCourse("c1", "inst-1", true)
	f.store.courseLectures["c1"] = []string{"l1", "l2"}
	ctx := context.Background()
	resp, err := f.svc.Enroll(ctx, "stu-1", models.EnrollRequest{CourseID: "c1"})
	require.NoError(t, err)

	_, err = f.svc.CompleteLecture(ctx, "stu-1", "l1")
	require.NoError(t, err)
	result, err := f.svc.CompleteLecture(ctx, "stu-1", "l2")
	require.NoError(t, err)
	assert.True(t, result.CourseComplete)

	progress, err := f.svc.CourseProgress(ctx, "stu-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, progress.ProgressPercentage)
	assert.Equal(t, models.EnrollmentCompleted, progress.Status)

	assert.Equal(t, []string{resp.EnrollmentID}, f.certificates.issued)
	assert.Equal(t, []string{"stu-1:Course c1"}, f.notifier.notified)
	// one for the enrollment, one for the transition
	assert.Equal(t, 2, f.invalidator.enrollments)

	snapshot := f.metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.Enrollments)
	assert.Equal(t, uint64(1), snapshot.CourseCompletions)
}

func TestEnrollmentServiceCourseProgress(t *testing.T) {
	f := newEnrollmentFixture()
	f.catalog.addCourse("empty", "inst-1", true)
	ctx := context.Background()

	_, err := f.svc.CourseProgress(ctx, "stu-1", "empty")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, "Not enrolled in this course", appErr.Message)

	_, err = f.svc.Enroll(ctx, "stu-1", models.EnrollRequest{CourseID: "empty"})
	require.NoError(t, err)
	progress, err := f.svc.CourseProgress(ctx, "stu-1", "empty")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.TotalLectures)
	assert.Equal(t, 0.0, progress.ProgressPercentage)
	assert.Equal(t, models.EnrollmentActive, progress.Status)
	assert.Empty(t, f.certificates.issued)
}

func TestEnrollmentServiceMyCoursesAndRoster(t *testing.T) {
	f := newEnrollmentFixture()
	f.catalog.addCourse("c1", "inst-1", true)
	f.store.courseLectures["c1"] = []string{"l1", "l2", "l3", "l4"}
	ctx := context.Background()
	_, err := f.svc.Enroll(ctx, "stu-1", models.EnrollRequest{CourseID: "c1"})
	require.NoError(t, err)
	_, err = f.svc.CompleteLecture(ctx, "stu-1", "l1")
	require.NoError(t, err)

	courses, err := f.svc.MyCourses(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Course c1", courses[0].CourseDetails.Title)

	summaries, err := f.svc.MyProgress(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 25.0, summaries[0].Progress)

	owner := permission.Actor{ID: "inst-1", Role: models.RoleInstructor}
	roster, err := f.svc.Roster(ctx, owner, "c1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, 1, roster[0].CompletedLectures)

	_, err = f.svc.Roster(ctx, permission.Actor{ID: "inst-9", Role: models.RoleInstructor}, "c1")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
