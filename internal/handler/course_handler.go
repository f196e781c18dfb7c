package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	appErrors "github.com/noah-isme/ocms-api/pkg/errors"
	"github.com/noah-isme/ocms-api/pkg/response"
)

type courseService interface {
	ListPublished(ctx context.Context, filter models.CourseFilter) (*models.CourseListResult, bool, error)
	ListForInstructor(ctx context.Context, actor permission.Actor, filter models.CourseFilter) (*models.CourseListResult, error)
	GetPublished(ctx context.Context, id string) (*models.CourseDetail, error)
	GetOwned(ctx context.Context, actor permission.Actor, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, actor permission.Actor, req models.CreateCourseRequest, meta models.RequestMeta) (*models.Course, error)
	Update(ctx context.Context, actor permission.Actor, id string, req models.UpdateCourseRequest, meta models.RequestMeta) (*models.Course, error)
	Delete(ctx context.Context, actor permission.Actor, id string, meta models.RequestMeta) error
}

// CourseHandler exposes the public catalog and instructor course management.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler constructs handler.
func NewCourseHandler(svc courseService) *CourseHandler {
	return &CourseHandler{service: svc}
}

// ListPublished godoc
// @Summary Browse published courses
// @Tags Courses
// @Produce json
// @Param level query string false "Beginner, Intermediate or Advanced"
// @Param category query string false "Category ID"
// @Param min_price query number false "Minimum price"
// @Param max_price query number false "Maximum price"
// @Param search query string false "Search in title and description"
// @Param ordering query string false "price, -price, created_at, -created_at, title, -title"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) ListPublished(c *gin.Context) {
	filter, err := parseCourseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, cacheHit, err := h.service.ListPublished(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := result.Pagination
	respondCached(c, result.Items, &pagination, cacheHit)
}

// GetPublished godoc
// @Summary Course detail with curriculum
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) GetPublished(c *gin.Context) {
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	course, err := h.service.GetPublished(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// ListMine godoc
// @Summary List the instructor's courses including drafts
// @Tags Instructor
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /instructor/courses [get]
func (h *CourseHandler) ListMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter, err := parseCourseFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.ListForInstructor(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := result.Pagination
	response.JSON(c, http.StatusOK, result.Items, &pagination)
}

// Get godoc
// @Summary Get an owned course
// @Tags Instructor
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructor/courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	course, err := h.service.GetOwned(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Create godoc
// @Summary Create a course
// @Tags Instructor
// @Accept json
// @Produce json
// @Param payload body models.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructor/courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateCourseRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	course, err := h.service.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// Update godoc
// @Summary Update an owned course
// @Tags Instructor
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.UpdateCourseRequest true "Course fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /instructor/courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateCourseRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	course, err := h.service.Update(c.Request.Context(), actor, courseID, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Delete godoc
// @Summary Delete an owned course
// @Tags Instructor
// @Param id path string true "Course ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /instructor/courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, courseID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseCourseFilter(c *gin.Context) (models.CourseFilter, error) {
	filter := models.CourseFilter{
		CategoryID: strings.TrimSpace(c.Query("category")),
		Search:     strings.TrimSpace(c.Query("search")),
		Ordering:   strings.TrimSpace(c.Query("ordering")),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 20),
	}
	if level := strings.TrimSpace(c.Query("level")); level != "" {
		l := models.CourseLevel(level)
		filter.Level = &l
	}
	for key, dest := range map[string]**float64{"min_price": &filter.MinPrice, "max_price": &filter.MaxPrice} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value < 0 {
			return filter, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative number")
		}
		*dest = &value
	}
	return filter, nil
}
