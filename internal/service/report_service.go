package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/dto"
	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/internal/repository"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
	"github.com/noah-isme/ocms-api/pkg/jobs"
)

const cleanupBatchSize = 100

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	FindCertificate(ctx context.Context, enrollmentID string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

type enrollmentFinder interface {
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

// ReportService orchestrates report job lifecycle management.
type ReportService struct {
	repo        reportJobStore
	courses     ownedCourseLoader
	enrollments enrollmentFinder
	queue       jobDispatcher
	exporter    *ExportService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ReportServiceConfig
}

// ReportServiceConfig governs cleanup.
type ReportServiceConfig struct {
	ResultTTL time.Duration
}

// ReportDownload aggregates resolved download data.
type ReportDownload struct {
	Reader    io.ReadCloser
	Filename  string
	Format    models.ReportFormat
	ExpiresAt time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, courses ownedCourseLoader, enrollments enrollmentFinder, queue jobDispatcher, exporter *ExportService, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		queue:       queue,
		exporter:    exporter,
		validator:   validator.New(),
		logger:      logger,
		cfg:         cfg,
	}
}

// CreateJob validates request, persists job, and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, actor permission.Actor, req dto.ReportRequest) (*dto.ReportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Invalid(err, "invalid report request")
	}
	if _, err := s.courses.LoadOwned(ctx, actor, req.CourseID); err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		Type:      req.Type,
		Params:    models.ReportJobParams{CourseID: req.CourseID, Format: req.Format},
		Status:    models.ReportStatusQueued,
		CreatedBy: actor.ID,
	}
	if err := s.submit(ctx, job); err != nil {
		return nil, err
	}
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// IssueCertificate queues the certificate of a completed enrollment. An
// existing certificate job is reused.
func (s *ReportService) IssueCertificate(ctx context.Context, enrollment models.Enrollment) error {
	existing, err := s.repo.FindCertificate(ctx, enrollment.ID)
	if err == nil && existing.Status != models.ReportStatusFailed {
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	job := &models.ReportJob{
		Type: models.ReportTypeCertificate,
		Params: models.ReportJobParams{
			CourseID:     enrollment.CourseID,
			StudentID:    enrollment.StudentID,
			EnrollmentID: enrollment.ID,
			Format:       models.ReportFormatPDF,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: enrollment.StudentID,
	}
	return s.submit(ctx, job)
}

func (s *ReportService) submit(ctx context.Context, job *models.ReportJob) error {
	if err := s.repo.Create(ctx, job); err != nil {
		return appErrors.Internal(err, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return appErrors.Internal(err, "failed to enqueue report job")
	}
	return nil
}

// GetStatus exposes job metadata to its creator or an admin.
func (s *ReportService) GetStatus(ctx context.Context, actor permission.Actor, id string) (*dto.ReportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Internal(err, "failed to load report job")
	}
	if !permission.CanViewReport(actor, job) {
		return nil, appErrors.ErrForbidden
	}
	return statusResponse(job), nil
}

// CertificateFor returns the certificate job of the student's enrollment in a course.
func (s *ReportService) CertificateFor(ctx context.Context, studentID, courseID string) (*dto.ReportStatusResponse, error) {
	enrollment, err := s.enrollments.FindByStudentAndCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgNotEnrolled)
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	job, err := s.repo.FindCertificate(ctx, enrollment.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not available")
		}
		return nil, appErrors.Internal(err, "failed to load certificate")
	}
	return statusResponse(job), nil
}

func statusResponse(job *models.ReportJob) *dto.ReportStatusResponse {
	resp := &dto.ReportStatusResponse{
		ID:       job.ID,
		Type:     job.Type,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.ResultURL != nil {
		resp.ResultURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp
}

// ResolveDownload validates token and opens the stored export file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Internal(err, "failed to load report job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	reader, err := s.exporter.Open(ctx, relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to open export file")
	}
	return &ReportDownload{
		Reader:    reader,
		Filename:  path.Base(relPath),
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued report jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending job", "job_id", job.ID, "error", err)
		}
	}
	if len(pending) > 0 {
		s.logger.Sugar().Infow("recovered queued report jobs", "count", len(pending))
	}
}

// CleanupExpired purges the files and rows of jobs that finished before the
// result TTL, then sweeps orphaned files from storage.
func (s *ReportService) CleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	var purged int64
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup list failed", "error", err)
			return
		}
		if len(expired) == 0 {
			break
		}
		ids := make([]string, 0, len(expired))
		for _, job := range expired {
			ids = append(ids, job.ID)
			if job.ResultURL == nil {
				continue
			}
			token := extractToken(*job.ResultURL)
			if token == "" {
				continue
			}
			_, relPath, _, err := s.exporter.ParseToken(token, true)
			if err != nil {
				continue
			}
			if err := s.exporter.Delete(ctx, relPath); err != nil {
				s.logger.Sugar().Warnw("cleanup delete failed", "job_id", job.ID, "error", err)
			}
		}
		deleted, err := s.repo.DeleteByIDs(ctx, ids)
		if err != nil {
			s.logger.Sugar().Warnw("cleanup delete rows failed", "error", err)
			return
		}
		purged += deleted
		if len(expired) < cleanupBatchSize {
			break
		}
	}
	if _, err := s.exporter.Cleanup(ctx, s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("storage cleanup failed", "error", err)
	}
	if purged > 0 {
		s.logger.Sugar().Infow("expired report jobs purged", "count", purged)
	}
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ReportWorker bridges queue jobs to ExportService.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ReportStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job failed", "job_id", job.ID, "error", updateErr)
			}
		} else {
			queued := models.ReportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark job queued", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}
	finished := models.ReportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark job finished", "job_id", job.ID, "error", err)
		return err
	}
	w.logger.Sugar().Infow("report job finished", "job_id", job.ID, "type", record.Type)
	return nil
}
