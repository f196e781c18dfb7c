package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, studentID string, req models.EnrollRequest) (*models.EnrollResponse, error)
	MyCourses(ctx context.Context, studentID string) ([]models.MyCourseItem, error)
	MyProgress(ctx context.Context, studentID string) ([]models.ProgressSummary, error)
	CourseProgress(ctx context.Context, studentID, courseID string) (*models.CourseProgress, error)
	CompleteLecture(ctx context.Context, studentID, lectureID string) (*models.CompletionResult, error)
	Roster(ctx context.Context, actor permission.Actor, courseID string) ([]models.RosterEntry, error)
}

// EnrollmentHandler exposes enrollment and progress endpoints.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Enroll godoc
// @Summary Enroll in a published course
// @Tags Enrollment
// @Accept json
// @Produce json
// @Param payload body models.EnrollRequest true "Course to enroll in"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.EnrollRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	res, err := h.service.Enroll(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// MyCourses godoc
// @Summary Courses the caller is enrolled in
// @Tags Enrollment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /my-courses [get]
func (h *EnrollmentHandler) MyCourses(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.MyCourses(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// MyProgress godoc
// @Summary Progress across every enrollment
// @Tags Enrollment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /my-progress [get]
func (h *EnrollmentHandler) MyProgress(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.MyProgress(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CourseProgress godoc
// @Summary Progress in one course
// @Tags Enrollment
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /course/{id}/progress [get]
func (h *EnrollmentHandler) CourseProgress(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	progress, err := h.service.CourseProgress(c.Request.Context(), actor.ID, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// CompleteLecture godoc
// @Summary Mark a lecture as completed
// @Tags Enrollment
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /lecture/{id}/complete [post]
func (h *EnrollmentHandler) CompleteLecture(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	lectureID, ok := pathID(c, "lecture")
	if !ok {
		return
	}
	result, err := h.service.CompleteLecture(c.Request.Context(), actor.ID, lectureID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Roster godoc
// @Summary Students enrolled in an owned course
// @Tags Instructor
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructor/courses/{id}/enrollments [get]
func (h *EnrollmentHandler) Roster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	entries, err := h.service.Roster(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
