package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/pkg/response"
)

type curriculumService interface {
	ListModules(ctx context.Context, actor permission.Actor, courseID string) ([]models.Module, error)
	CreateModule(ctx context.Context, actor permission.Actor, courseID string, req models.ModuleRequest) (*models.Module, error)
	GetModule(ctx context.Context, actor permission.Actor, id string) (*models.Module, error)
	UpdateModule(ctx context.Context, actor permission.Actor, id string, req models.ModuleRequest) (*models.Module, error)
	DeleteModule(ctx context.Context, actor permission.Actor, id string) error
	ListLectures(ctx context.Context, actor permission.Actor, moduleID string) ([]models.Lecture, error)
	CreateLecture(ctx context.Context, actor permission.Actor, moduleID string, req models.LectureRequest) (*models.Lecture, error)
	GetLecture(ctx context.Context, actor permission.Actor, id string) (*models.Lecture, *models.Module, error)
	UpdateLecture(ctx context.Context, actor permission.Actor, id string, req models.LectureRequest) (*models.Lecture, error)
	DeleteLecture(ctx context.Context, actor permission.Actor, id string) error
}

// CurriculumHandler manages modules and lectures of owned courses.
type CurriculumHandler struct {
	service curriculumService
}

// NewCurriculumHandler constructs handler.
func NewCurriculumHandler(svc curriculumService) *CurriculumHandler {
	return &CurriculumHandler{service: svc}
}

// ListModules godoc
// @Summary List modules of a course
// @Tags Instructor
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /instructor/courses/{id}/modules [get]
func (h *CurriculumHandler) ListModules(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	modules, err := h.service.ListModules(c.Request.Context(), actor, courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, modules, nil)
}

// CreateModule godoc
// @Summary Add a module to a course
// @Tags Instructor
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.ModuleRequest true "Module payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructor/courses/{id}/modules [post]
func (h *CurriculumHandler) CreateModule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.ModuleRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	module, err := h.service.CreateModule(c.Request.Context(), actor, courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, module)
}

// GetModule godoc
// @Summary Get a module
// @Tags Instructor
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /instructor/modules/{id} [get]
func (h *CurriculumHandler) GetModule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "module")
	if !ok {
		return
	}
	module, err := h.service.GetModule(c.Request.Context(), actor, moduleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// UpdateModule godoc
// @Summary Update a module
// @Tags Instructor
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body models.ModuleRequest true "Module fields"
// @Success 200 {object} response.Envelope
// @Router /instructor/modules/{id} [put]
func (h *CurriculumHandler) UpdateModule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.ModuleRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	moduleID, ok := pathID(c, "module")
	if !ok {
		return
	}
	module, err := h.service.UpdateModule(c.Request.Context(), actor, moduleID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, module, nil)
}

// DeleteModule godoc
// @Summary Delete a module
// @Tags Instructor
// @Param id path string true "Module ID"
// @Success 204
// @Router /instructor/modules/{id} [delete]
func (h *CurriculumHandler) DeleteModule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "module")
	if !ok {
		return
	}
	if err := h.service.DeleteModule(c.Request.Context(), actor, moduleID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListLectures godoc
// @Summary List lectures of a module
// @Tags Instructor
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} response.Envelope
// @Router /instructor/modules/{id}/lectures [get]
func (h *CurriculumHandler) ListLectures(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	moduleID, ok := pathID(c, "module")
	if !ok {
		return
	}
	lectures, err := h.service.ListLectures(c.Request.Context(), actor, moduleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lectures, nil)
}

// CreateLecture godoc
// @Summary Add a lecture to a module
// @Tags Instructor
// @Accept json
// @Produce json
// @Param id path string true "Module ID"
// @Param payload body models.LectureRequest true "Lecture payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /instructor/modules/{id}/lectures [post]
func (h *CurriculumHandler) CreateLecture(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.LectureRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	moduleID, ok := pathID(c, "module")
	if !ok {
		return
	}
	lecture, err := h.service.CreateLecture(c.Request.Context(), actor, moduleID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lecture)
}

// GetLecture godoc
// @Summary Get a lecture
// @Tags Instructor
// @Produce json
// @Param id path string true "Lecture ID"
// @Success 200 {object} response.Envelope
// @Router /instructor/lectures/{id} [get]
func (h *CurriculumHandler) GetLecture(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	lectureID, ok := pathID(c, "lecture")
	if !ok {
		return
	}
	lecture, _, err := h.service.GetLecture(c.Request.Context(), actor, lectureID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// UpdateLecture godoc
// @Summary Update a lecture
// @Tags Instructor
// @Accept json
// @Produce json
// @Param id path string true "Lecture ID"
// @Param payload body models.LectureRequest true "Lecture fields"
// @Success 200 {object} response.Envelope
// @Router /instructor/lectures/{id} [put]
func (h *CurriculumHandler) UpdateLecture(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.LectureRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	lectureID, ok := pathID(c, "lecture")
	if !ok {
		return
	}
	lecture, err := h.service.UpdateLecture(c.Request.Context(), actor, lectureID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lecture, nil)
}

// DeleteLecture godoc
// @Summary Delete a lecture
// @Tags Instructor
// @Param id path string true "Lecture ID"
// @Success 204
// @Router /instructor/lectures/{id} [delete]
func (h *CurriculumHandler) DeleteLecture(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	lectureID, ok := pathID(c, "lecture")
	if !ok {
		return
	}
	if err := h.service.DeleteLecture(c.Request.Context(), actor, lectureID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
