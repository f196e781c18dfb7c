package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Certificate holds the fields printed on a course completion certificate.
type Certificate struct {
	SerialNumber   string
	StudentName    string
	CourseTitle    string
	InstructorName string
	CompletedAt    time.Time
}

// CertificateRenderer draws single page landscape certificates.
type CertificateRenderer struct{}

// NewCertificateRenderer builds a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render returns the certificate as PDF bytes.
func (r *CertificateRenderer) Render(cert Certificate) ([]byte, error) {
	if strings.TrimSpace(cert.StudentName) == "" || strings.TrimSpace(cert.CourseTitle) == "" {
		return nil, fmt.Errorf("certificate requires student name and course title")
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	width, height := pdf.GetPageSize()
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, width-20, height-20, "D")
	pdf.SetLineWidth(0.4)
	pdf.Rect(14, 14, width-28, height-28, "D")

	pdf.SetY(38)
	pdf.SetFont("Times", "B", 32)
	pdf.CellFormat(0, 14, "Certificate of Completion", "", 1, "C", false, 0, "")

	pdf.Ln(8)
	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 8, "This certifies that", "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Times", "BI", 26)
	pdf.CellFormat(0, 12, cert.StudentName, "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Arial", "", 14)
	pdf.CellFormat(0, 8, "has successfully completed the course", "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, cert.CourseTitle, "", 1, "C", false, 0, "")

	pdf.SetY(height - 55)
	pdf.SetFont("Arial", "", 12)
	completed := cert.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	half := (width - 40) / 2
	pdf.CellFormat(half, 8, "Completed on "+completed.UTC().Format("January 2, 2006"), "", 0, "C", false, 0, "")
	instructor := cert.InstructorName
	if instructor == "" {
		instructor = "Course Instructor"
	}
	pdf.CellFormat(half, 8, instructor, "T", 1, "C", false, 0, "")

	if cert.SerialNumber != "" {
		pdf.SetY(height - 25)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, "Certificate No. "+cert.SerialNumber, "", 1, "C", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
