package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/internal/models"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
	"github.com/noah-isme/ocms-api/pkg/response"
)

type dashboardService interface {
	AdminAnalytics(ctx context.Context) (*models.AdminAnalytics, bool, error)
	TopCourses(ctx context.Context) ([]models.TopCourse, bool, error)
	RecentActivity(ctx context.Context) ([]models.Activity, error)
	Instructor(ctx context.Context, instructorID string) (*models.InstructorDashboard, error)
	Student(ctx context.Context, studentID string) (*models.StudentDashboard, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// AdminAnalytics godoc
// @Summary Platform totals
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/analytics [get]
func (h *DashboardHandler) AdminAnalytics(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	stats, cacheHit, err := h.service.AdminAnalytics(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, stats, nil, cacheHit)
}

// TopCourses godoc
// @Summary Most enrolled published courses
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/top-courses [get]
func (h *DashboardHandler) TopCourses(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	courses, cacheHit, err := h.service.TopCourses(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, courses, nil, cacheHit)
}

// RecentActivity godoc
// @Summary Latest enrollments, reviews and published courses
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/recent-activity [get]
func (h *DashboardHandler) RecentActivity(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	feed, err := h.service.RecentActivity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feed, nil)
}

// Instructor godoc
// @Summary Instructor dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /instructor/dashboard [get]
func (h *DashboardHandler) Instructor(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.Instructor(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Student godoc
// @Summary Student dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/dashboard [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.Student(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
