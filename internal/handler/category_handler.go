package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/pkg/response"
)

type categoryService interface {
	List(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, id string) (*models.Category, error)
	Create(ctx context.Context, req models.CategoryRequest) (*models.Category, error)
	Update(ctx context.Context, id string, req models.CategoryRequest) (*models.Category, error)
	Delete(ctx context.Context, id string) error
}

// CategoryHandler exposes category endpoints.
type CategoryHandler struct {
	service categoryService
}

// NewCategoryHandler constructs handler.
func NewCategoryHandler(svc categoryService) *CategoryHandler {
	return &CategoryHandler{service: svc}
}

// List godoc
// @Summary List categories
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// Get godoc
// @Summary Get category
// @Tags Categories
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	categoryID, ok := pathID(c, "category")
	if !ok {
		return
	}
	category, err := h.service.Get(c.Request.Context(), categoryID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, category, nil)
}

// Create godoc
// @Summary Create category
// @Tags Categories
// @Accept json
// @Produce json
// @Param payload body models.CategoryRequest true "Category payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req models.CategoryRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	category, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, category)
}

// Update godoc
// @Summary Update category
// @Tags Categories
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param payload body models.CategoryRequest true "Category payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	var req models.CategoryRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	categoryID, ok := pathID(c, "category")
	if !ok {
		return
	}
	category, err := h.service.Update(c.Request.Context(), categoryID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, category, nil)
}

// Delete godoc
// @Summary Delete category
// @Tags Categories
// @Param id path string true "Category ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	categoryID, ok := pathID(c, "category")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), categoryID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
