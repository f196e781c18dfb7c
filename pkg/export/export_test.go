package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRendersHeaderOrder(t *testing.T) {
	data := Dataset{
		Headers: []string{"Student", "Progress (%)"},
		Rows: []map[string]string{
			{"Progress (%)": "50.00", "Student": "Ada"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Student,Progress (%)\nAda,50.00\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterProducesDocument(t *testing.T) {
	rows := make([]map[string]string, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, map[string]string{"Student": "Ada", "Status": "ACTIVE"})
	}
	out, err := NewPDFExporter().Render(Dataset{Headers: []string{"Student", "Status"}, Rows: rows}, "Course Roster")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestCertificateRenderer(t *testing.T) {
	out, err := NewCertificateRenderer().Render(Certificate{
		SerialNumber: "abc",
		StudentName:  "Ada Lovelace",
		CourseTitle:  "Go Basics",
		CompletedAt:  time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewCertificateRenderer().Render(Certificate{CourseTitle: "Go Basics"})
	assert.Error(t, err)
}

func TestCSVExporterEscapesFormulas(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Student"},
		Rows:    []map[string]string{{"Student": "=HYPERLINK(\"x\")"}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "'=HYPERLINK")
}
