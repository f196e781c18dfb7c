package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/internal/permission"
	"github.com/noah-isme/ocms-api/pkg/response"
)

type reviewService interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.ReviewListItem, bool, error)
	Rating(ctx context.Context, courseID string) (*models.CourseRating, bool, error)
	Mine(ctx context.Context, studentID string) ([]models.Review, error)
	Create(ctx context.Context, actor permission.Actor, courseID string, req models.ReviewRequest) (*models.ReviewListItem, error)
	Update(ctx context.Context, actor permission.Actor, id string, req models.ReviewRequest) (*models.ReviewListItem, error)
	Delete(ctx context.Context, actor permission.Actor, id string) (string, error)
}

// ReviewHandler exposes course reviews and ratings.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler constructs handler.
func NewReviewHandler(svc reviewService) *ReviewHandler {
	return &ReviewHandler{service: svc}
}

// List godoc
// @Summary Reviews of a course, newest first
// @Tags Reviews
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	reviews, cacheHit, err := h.service.ListByCourse(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, reviews, nil, cacheHit)
}

// Rating godoc
// @Summary Average rating of a course
// @Tags Reviews
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/rating [get]
func (h *ReviewHandler) Rating(c *gin.Context) {
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	rating, cacheHit, err := h.service.Rating(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, rating, nil, cacheHit)
}

// Mine godoc
// @Summary Reviews written by the caller
// @Tags Reviews
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reviews/my [get]
func (h *ReviewHandler) Mine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reviews, err := h.service.Mine(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}

// Create godoc
// @Summary Review an enrolled course
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.ReviewRequest true "Rating and comment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.ReviewRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	courseID, ok := pathID(c, "course")
	if !ok {
		return
	}
	review, err := h.service.Create(c.Request.Context(), actor, courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, review)
}

// Update godoc
// @Summary Edit the caller's review
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Review ID"
// @Param payload body models.ReviewRequest true "Rating and comment"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reviews/{id} [put]
func (h *ReviewHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.ReviewRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	reviewID, ok := pathID(c, "review")
	if !ok {
		return
	}
	review, err := h.service.Update(c.Request.Context(), actor, reviewID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, review, nil)
}

// Delete godoc
// @Summary Delete the caller's review
// @Tags Reviews
// @Produce json
// @Param id path string true "Review ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reviews/{id} [delete]
func (h *ReviewHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	reviewID, ok := pathID(c, "review")
	if !ok {
		return
	}
	message, err := h.service.Delete(c.Request.Context(), actor, reviewID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, message)
}
