package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/pkg/export"
	"github.com/noah-isme/ocms-api/pkg/storage"
)

type exportEnrollmentSource interface {
	ListProgressByCourse(ctx context.Context, courseID string) ([]models.EnrollmentProgressRow, error)
	FindProgressRow(ctx context.Context, enrollmentID string) (*models.EnrollmentProgressRow, error)
}

type exportCourseSource interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	enrollments  exportEnrollmentSource
	courses      exportCourseSource
	users        userLookup
	storage      storage.Storage
	csv          csvRenderer
	pdf          pdfRenderer
	certificates certificateRenderer
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	cfg          ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type certificateRenderer interface {
	Render(cert export.Certificate) ([]byte, error)
}

// ExportSources groups the read models exports are built from.
type ExportSources struct {
	Enrollments exportEnrollmentSource
	Courses     exportCourseSource
	Users       userLookup
}

// NewExportService constructs an ExportService.
func NewExportService(sources ExportSources, store storage.Storage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		enrollments:  sources.Enrollments,
		courses:      sources.Courses,
		users:        sources.Users,
		storage:      store,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		certificates: export.NewCertificateRenderer(),
		signer:       signer,
		logger:       logger,
		cfg:          cfg,
	}
}

// Generate builds the dataset of the job, stores the rendered file and signs
// a download URL for it.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}

	var (
		payload []byte
		err     error
	)
	if job.Type == models.ReportTypeCertificate {
		payload, err = s.renderCertificate(ctx, job)
	} else {
		payload, err = s.renderReport(ctx, job)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(ctx, filename, payload, job.Params.Format.ContentType())
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/reports/download/%s", prefix, token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a reader over the stored file.
func (s *ExportService) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	return s.storage.Open(ctx, relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(ctx context.Context, relPath string) error {
	return s.storage.Delete(ctx, relPath)
}

// Cleanup removes files older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ctx context.Context, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ctx, ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := sanitizeFilename(job.Params.Scope(job.Type))
	return fmt.Sprintf("%s/%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) renderReport(ctx context.Context, job *models.ReportJob) ([]byte, error) {
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}
	switch job.Params.Format {
	case models.ReportFormatCSV:
		return s.csv.Render(dataset)
	case models.ReportFormatPDF:
		return s.pdf.Render(dataset, title)
	default:
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	course, err := s.courses.FindByID(ctx, job.Params.CourseID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load course %s: %w", job.Params.CourseID, err)
	}
	rows, err := s.enrollments.ListProgressByCourse(ctx, course.ID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	switch job.Type {
	case models.ReportTypeCourseRoster:
		return rosterDataset(rows), fmt.Sprintf("Course Roster - %s", course.Title), nil
	case models.ReportTypeCourseProgress:
		return progressDataset(rows), fmt.Sprintf("Course Progress - %s", course.Title), nil
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func rosterDataset(rows []models.EnrollmentProgressRow) export.Dataset {
	headers := []string{"Student", "Email", "Status", "Enrolled At", "Completed At"}
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		data = append(data, map[string]string{
			"Student":      row.StudentName,
			"Email":        row.StudentEmail,
			"Status":       string(row.Status),
			"Enrolled At":  row.EnrolledAt.UTC().Format(time.RFC3339),
			"Completed At": formatReportTime(row.CompletedAt),
		})
	}
	return export.Dataset{Headers: headers, Rows: data}
}

func progressDataset(rows []models.EnrollmentProgressRow) export.Dataset {
	headers := []string{"Student", "Completed Lectures", "Total Lectures", "Progress (%)", "Status"}
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		data = append(data, map[string]string{
			"Student":            row.StudentName,
			"Completed Lectures": strconv.Itoa(row.CompletedLectures),
			"Total Lectures":     strconv.Itoa(row.TotalLectures),
			"Progress (%)":       fmt.Sprintf("%.2f", row.Counts().Percentage()),
			"Status":             string(row.Status),
		})
	}
	return export.Dataset{Headers: headers, Rows: data}
}

func (s *ExportService) renderCertificate(ctx context.Context, job *models.ReportJob) ([]byte, error) {
	row, err := s.enrollments.FindProgressRow(ctx, job.Params.EnrollmentID)
	if err != nil {
		return nil, fmt.Errorf("load enrollment %s: %w", job.Params.EnrollmentID, err)
	}
	if row.Status != models.EnrollmentCompleted {
		return nil, fmt.Errorf("enrollment %s is not completed", row.EnrollmentID)
	}

	cert := export.Certificate{
		SerialNumber: certificateSerial(job.ID),
		StudentName:  row.StudentName,
		CourseTitle:  row.CourseTitle,
		CompletedAt:  time.Now().UTC(),
	}
	if row.CompletedAt != nil {
		cert.CompletedAt = *row.CompletedAt
	}
	if course, err := s.courses.FindByID(ctx, row.CourseID); err == nil {
		if instructor, err := s.users.FindByID(ctx, course.InstructorID); err == nil {
			cert.InstructorName = instructor.FullName
		}
	}
	return s.certificates.Render(cert)
}

func certificateSerial(jobID string) string {
	serial := strings.ToUpper(strings.ReplaceAll(jobID, "-", ""))
	if len(serial) > 12 {
		serial = serial[:12]
	}
	return serial
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
