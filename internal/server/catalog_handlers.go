package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vakspot/vakspot/internal/catalog"
)

type CategoryRequest struct {
	Name        string `json:"name" binding:"required" validate:"max=100"`
	Slug        string `json:"slug" validate:"slug"`
	Description string `json:"description"`
}

// @Router /api/categories [get]
// @Success 200 {array} models.Category
func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.catalogService.ListCategories(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

// @Router /api/admin/categories [post]
// @Param body body CategoryRequest true "Category"
// @Success 201 {object} models.Category
func (s *Server) createCategory(c *gin.Context) {
	var req CategoryRequest
	if !s.bindJSON(c, &req) {
		return
	}

	category, err := s.catalogService.CreateCategory(c.Request.Context(), principal(c), catalog.CategoryParams(req))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// @Router /api/admin/categories/{id} [put]
// @Param id path string true "Category ID"
// @Param body body CategoryRequest true "Category"
// @Success 200 {object} models.Category
func (s *Server) updateCategory(c *gin.Context) {
	var req CategoryRequest
	if !s.bindJSON(c, &req) {
		return
	}

	category, err := s.catalogService.UpdateCategory(c.Request.Context(), principal(c), c.Param("id"), catalog.CategoryParams(req))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// @Router /api/admin/categories/{id} [delete]
// @Param id path string true "Category ID"
// @Success 200 {object} map[string]interface{}
func (s *Server) deleteCategory(c *gin.Context) {
	if err := s.catalogService.DeleteCategory(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}
