package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vakspot/vakspot/internal/accounts"
)

type UpdateMeRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
}

type UpdateProProfileRequest struct {
	CompanyName *string `json:"company_name" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	City        *string `json:"city"`
	KvkNumber   *string `json:"kvk_number" validate:"omitempty,numeric,len=8"`
}

type SetProCategoriesRequest struct {
	CategoryIDs []string `json:"category_ids" binding:"required"`
}

type UpdateUserRequest struct {
	Role *string `json:"role"`
	Name *string `json:"name"`
}

// @Router /api/me [get]
// @Success 200 {object} models.User
func (s *Server) getMe(c *gin.Context) {
	user, err := s.accountsService.Me(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Router /api/me [patch]
// @Param body body UpdateMeRequest true "Account changes"
// @Success 200 {object} models.User
func (s *Server) updateMe(c *gin.Context) {
	var req UpdateMeRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.accountsService.UpdateMe(c.Request.Context(), principal(c), accounts.UpdateMeParams{
		Name:  req.Name,
		Phone: req.Phone,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Router /api/pro/profile [get]
// @Success 200 {object} models.ProProfile
func (s *Server) getProProfile(c *gin.Context) {
	profile, err := s.accountsService.ProProfile(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// @Router /api/pro/profile [patch]
// @Param body body UpdateProProfileRequest true "Profile changes"
// @Success 200 {object} models.ProProfile
func (s *Server) updateProProfile(c *gin.Context) {
	var req UpdateProProfileRequest
	if !s.bindJSON(c, &req) {
		return
	}

	profile, err := s.accountsService.UpdateProProfile(c.Request.Context(), principal(c), accounts.UpdateProProfileParams{
		CompanyName: req.CompanyName,
		Description: req.Description,
		City:        req.City,
		KvkNumber:   req.KvkNumber,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// @Router /api/pro/categories [put]
// @Param body body SetProCategoriesRequest true "Categories the pro covers"
// @Success 200 {object} models.ProProfile
func (s *Server) setProCategories(c *gin.Context) {
	var req SetProCategoriesRequest
	if !s.bindJSON(c, &req) {
		return
	}

	profile, err := s.accountsService.SetProCategories(c.Request.Context(), principal(c), req.CategoryIDs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// @Router /api/admin/users [get]
// @Param role query string false "Filter by role"
// @Success 200 {array} models.User
func (s *Server) listUsers(c *gin.Context) {
	users, err := s.accountsService.ListUsers(c.Request.Context(), principal(c), c.Query("role"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// @Router /api/admin/users/{id} [patch]
// @Param id path string true "User ID"
// @Param body body UpdateUserRequest true "Role or name change"
// @Success 200 {object} models.User
func (s *Server) updateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !s.bindJSON(c, &req) {
		return
	}

	user, err := s.accountsService.UpdateUser(c.Request.Context(), principal(c), c.Param("id"), accounts.UpdateUserParams{
		Role: req.Role,
		Name: req.Name,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// @Router /api/admin/users/{id} [delete]
// @Param id path string true "User ID"
// @Success 200 {object} map[string]interface{}
func (s *Server) deleteUser(c *gin.Context) {
	if err := s.accountsService.DeleteUser(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
