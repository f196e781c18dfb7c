package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/internal/dto"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/internal/service"
	"github.com/noah-isme/ocms-api/pkg/response"
)

type reportService interface {
	CreateJob(ctx context.Context, actor permission.Actor, req dto.ReportRequest) (*dto.ReportJobResponse, error)
	GetStatus(ctx context.Context, actor permission.Actor, id string) (*dto.ReportStatusResponse, error)
	CertificateFor(ctx context.Context, studentID, courseID string) (*dto.ReportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

// ReportHandler exposes report generation, downloads and certificates.
type ReportHandler struct {
	service reportService
}

// NewReportHandler constructs handler.
func NewReportHandler(svc reportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// Create godoc
// @Summary Queue a course report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body dto.ReportRequest true "Report request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReportRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Report job status
// @Tags Reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Status(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reportID, ok := pathID(c, "report")
	if !ok {
		return
	}
	status, err := h.service.GetStatus(c.Request.Context(), actor, reportID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a generated file
// @Tags Reports
// @Produce application/octet-stream
// @Param token path string true "Signed download token"
// @Success 200
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reports/download/{token} [get]
func (h *ReportHandler) Download(c *gin.Context) {
	download, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, download.Format.ContentType(), download.Reader, nil)
}

// MyCertificate godoc
// @Summary Certificate of a completed course
// @Tags Enrollment
// @Produce json
// @Param course_id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /my-certificates/{course_id} [get]
func (h *ReportHandler) MyCertificate(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := pathUUID(c, "course_id", "course")
	if !ok {
		return
	}
	status, err := h.service.CertificateFor(c.Request.Context(), actor.ID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.CertificateResponse{
		CourseID:    courseID,
		JobID:       status.ID,
		Status:      status.Status,
		DownloadURL: status.ResultURL,
	}, nil)
}
