package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportJobParamsScope(t *testing.T) {
	params := ReportJobParams{CourseID: "course-1", EnrollmentID: "enr-1"}
	assert.Equal(t, "course-1", params.Scope(ReportTypeCourseRoster))
	assert.Equal(t, "enr-1", params.Scope(ReportTypeCertificate))
}

func TestReportJobParamsScanResets(t *testing.T) {
	params := ReportJobParams{CourseID: "stale"}
	require.NoError(t, params.Scan([]byte(`{"course_id":"course-2","format":"pdf"}`)))
	assert.Equal(t, ReportJobParams{CourseID: "course-2", Format: ReportFormatPDF}, params)

	require.NoError(t, params.Scan(nil))
	assert.Equal(t, ReportJobParams{}, params)

	assert.Error(t, params.Scan(42))
}

func TestReportFormatContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ReportFormatPDF.ContentType())
	assert.Equal(t, "text/csv", ReportFormatCSV.ContentType())
}
