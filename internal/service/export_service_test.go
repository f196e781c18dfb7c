package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/pkg/storage"
)

type exportFixture struct {
	svc      *ExportService
	store    *storage.LocalStorage
	progress *fakeEnrollmentStore
	catalog  *catalogFixture
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	progress := newFakeEnrollmentStore()
	progress.courseLectures["c1"] = []string{"l1", "l2"}
	completedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	progress.enrollments["e1"] = &models.Enrollment{ID: "e1", StudentID: "stu-1", CourseID: "c1", Status: models.EnrollmentActive, EnrolledAt: completedAt.AddDate(0, -1, 0)}
	progress.enrollments["e2"] = &models.Enrollment{ID: "e2", StudentID: "stu-2", CourseID: "c1", Status: models.EnrollmentCompleted, EnrolledAt: completedAt.AddDate(0, -1, 0), CompletedAt: &completedAt}

	catalog := newCatalogFixture()
	catalog.addCourse("c1", "inst-1", true)
	users := &mockUserRepo{users: map[string]*models.User{
		"inst-1": {ID: "inst-1", FullName: "Ada Lovelace"},
	}}

	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(ExportSources{Enrollments: progress, Courses: catalog.courses, Users: users}, store, signer, ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
	return &exportFixture{svc: svc, store: store, progress: progress, catalog: catalog}
}

func readStored(t *testing.T, store *storage.LocalStorage, relPath string) []byte {
	t.Helper()
	rc, err := store.Open(context.Background(), relPath)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func TestExportServiceGenerateRosterCSV(t *testing.T) {
	f := newExportFixture(t)
	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeCourseRoster,
		Params: models.ReportJobParams{CourseID: "c1", Format: models.ReportFormatCSV},
	}
	result, err := f.svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))
	assert.True(t, strings.HasPrefix(result.RelativePath, "course_roster/c1_"))

	data := readStored(t, f.store, result.RelativePath)
	assert.Contains(t, string(data), "Student,Email,Status,Enrolled At,Completed At")
	assert.Contains(t, string(data), "Student stu-2")
}

func TestExportServiceGenerateProgressPDF(t *testing.T) {
	f := newExportFixture(t)
	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeCourseProgress,
		Params: models.ReportJobParams{CourseID: "c1", Format: models.ReportFormatPDF},
	}
	result, err := f.svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ReportFormatPDF, result.Format)
	assert.True(t, bytes.HasPrefix(readStored(t, f.store, result.RelativePath), []byte("%PDF")))
}

func TestExportServiceGenerateCertificate(t *testing.T) {
	f := newExportFixture(t)
	job := &models.ReportJob{
		ID:     "0b8f2f8e-5d7c-4a59-9a55-3c0f6d3b2a11",
		Type:   models.ReportTypeCertificate,
		Params: models.ReportJobParams{CourseID: "c1", EnrollmentID: "e2", Format: models.ReportFormatPDF},
	}
	result, err := f.svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.RelativePath, "certificate/e2_"))
	assert.True(t, bytes.HasPrefix(readStored(t, f.store, result.RelativePath), []byte("%PDF")))

	job.Params.EnrollmentID = "e1"
	_, err = f.svc.Generate(context.Background(), job)
	require.Error(t, err)
}

func TestCertificateSerial(t *testing.T) {
	assert.Equal(t, "0B8F2F8E5D7C", certificateSerial("0b8f2f8e-5d7c-4a59-9a55-3c0f6d3b2a11"))
	assert.Equal(t, "JOB1", certificateSerial("job-1"))
}
