package dto

import "github.com/noah-isme/ocms-api/internal/models"

// ReportRequest captures the POST /reports payload.
type ReportRequest struct {
	Type     models.ReportType   `json:"type" validate:"required,oneof=course_roster course_progress"`
	CourseID string              `json:"course_id" binding:"required,uuid" validate:"required"`
	Format   models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Type      models.ReportType   `json:"type"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// CertificateResponse points a student at their completion certificate.
type CertificateResponse struct {
	CourseID    string              `json:"course_id"`
	JobID       string              `json:"job_id"`
	Status      models.ReportStatus `json:"status"`
	DownloadURL *string             `json:"download_url,omitempty"`
}
