package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vakspot/vakspot/internal/upsell"
)

type ServiceRequest struct {
	Name        string `json:"name" binding:"required" validate:"max=100"`
	Slug        string `json:"slug" validate:"slug"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents" validate:"min=0"`
	Active      *bool  `json:"active"`
}

type PurchaseRequest struct {
	JobID *string `json:"job_id"`
}

func (r ServiceRequest) params() upsell.ServiceParams {
	return upsell.ServiceParams{
		Name:        r.Name,
		Slug:        r.Slug,
		Description: r.Description,
		PriceCents:  r.PriceCents,
		Active:      r.Active,
	}
}

// @Router /api/services [get]
// @Success 200 {array} models.Service
func (s *Server) listServices(c *gin.Context) {
	services, err := s.upsellService.ListServices(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, services)
}

// @Router /api/admin/services [post]
// @Param body body ServiceRequest true "Service"
// @Success 201 {object} models.Service
func (s *Server) createService(c *gin.Context) {
	var req ServiceRequest
	if !s.bindJSON(c, &req) {
		return
	}

	service, err := s.upsellService.CreateService(c.Request.Context(), principal(c), req.params())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, service)
}

// @Router /api/admin/services/{id} [put]
// @Param id path string true "Service ID"
// @Param body body ServiceRequest true "Service"
// @Success 200 {object} models.Service
func (s *Server) updateService(c *gin.Context) {
	var req ServiceRequest
	if !s.bindJSON(c, &req) {
		return
	}

	service, err := s.upsellService.UpdateService(c.Request.Context(), principal(c), c.Param("id"), req.params())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, service)
}

// @Router /api/admin/services/{id} [delete]
// @Param id path string true "Service ID"
// @Success 200 {object} map[string]interface{}
func (s *Server) deleteService(c *gin.Context) {
	if err := s.upsellService.DeleteService(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Service deleted successfully"})
}

// @Router /api/services/{id}/purchase [post]
// @Param id path string true "Service ID"
// @Param body body PurchaseRequest false "Optional job"
// @Success 201 {object} models.ServicePurchase
func (s *Server) purchaseService(c *gin.Context) {
	var req PurchaseRequest
	if !s.bindOptionalJSON(c, &req) {
		return
	}

	purchase, err := s.upsellService.Purchase(c.Request.Context(), principal(c), c.Param("id"), req.JobID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchase)
}

// @Router /api/purchases [get]
// @Router /api/admin/purchases [get]
// @Success 200 {array} models.ServicePurchase
func (s *Server) listPurchases(c *gin.Context) {
	purchases, err := s.upsellService.ListPurchases(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}

// @Router /api/admin/purchases/{id}/paid [post]
// @Param id path string true "Purchase ID"
// @Success 200 {object} models.ServicePurchase
func (s *Server) markPurchasePaid(c *gin.Context) {
	purchase, err := s.upsellService.MarkPaid(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

// @Router /api/admin/purchases/{id}/cancel [post]
// @Param id path string true "Purchase ID"
// @Success 200 {object} models.ServicePurchase
func (s *Server) cancelPurchase(c *gin.Context) {
	purchase, err := s.upsellService.CancelPurchase(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}
