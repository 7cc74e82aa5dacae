package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vakspot/vakspot/internal/bids"
	"github.com/vakspot/vakspot/internal/jobs"
)

type CreateJobRequest struct {
	CategoryID  string   `json:"category_id" binding:"required"`
	Title       string   `json:"title" binding:"required" validate:"max=120"`
	Description string   `json:"description" validate:"max=5000"`
	City        string   `json:"city"`
	Postcode    string   `json:"postcode"`
	BudgetCents *int64   `json:"budget_cents" validate:"omitempty,min=0"`
	PhotoURLs   []string `json:"photo_urls" validate:"max=10"`
}

type UpdateJobRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=120"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	City        *string `json:"city"`
	Postcode    *string `json:"postcode"`
	BudgetCents *int64  `json:"budget_cents" validate:"omitempty,min=0"`
}

type SubmitBidRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required" validate:"gt=0"`
	Message     string `json:"message" validate:"max=2000"`
}

// @Router /api/jobs [post]
// @Param body body CreateJobRequest true "Job"
// @Success 201 {object} models.Job
func (s *Server) createJob(c *gin.Context) {
	var req CreateJobRequest
	if !s.bindJSON(c, &req) {
		return
	}

	job, err := s.jobsService.Create(c.Request.Context(), principal(c), jobs.CreateParams{
		CategoryID:  req.CategoryID,
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		Postcode:    req.Postcode,
		BudgetCents: req.BudgetCents,
		PhotoURLs:   req.PhotoURLs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

// @Router /api/jobs [get]
// @Success 200 {array} jobs.Summary
func (s *Server) listMyJobs(c *gin.Context) {
	list, err := s.jobsService.ListMine(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Router /api/admin/jobs [get]
// @Param status query string false "Filter by status"
// @Success 200 {array} jobs.Summary
func (s *Server) listAllJobs(c *gin.Context) {
	list, err := s.jobsService.ListAll(c.Request.Context(), principal(c), c.Query("status"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Router /api/leads [get]
// @Success 200 {array} models.Job
func (s *Server) listLeads(c *gin.Context) {
	leads, err := s.jobsService.Leads(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, leads)
}

// @Router /api/jobs/{id} [get]
// @Param id path string true "Job ID"
// @Success 200 {object} models.Job
func (s *Server) getJob(c *gin.Context) {
	job, err := s.jobsService.Get(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// @Router /api/jobs/{id} [patch]
// @Param id path string true "Job ID"
// @Param body body UpdateJobRequest true "Job changes"
// @Success 200 {object} models.Job
func (s *Server) updateJob(c *gin.Context) {
	var req UpdateJobRequest
	if !s.bindJSON(c, &req) {
		return
	}

	job, err := s.jobsService.Update(c.Request.Context(), principal(c), c.Param("id"), jobs.UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		City:        req.City,
		Postcode:    req.Postcode,
		BudgetCents: req.BudgetCents,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// @Router /api/jobs/{id}/cancel [post]
// @Param id path string true "Job ID"
// @Success 200 {object} models.Job
func (s *Server) cancelJob(c *gin.Context) {
	job, err := s.jobsService.Cancel(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// @Router /api/jobs/{id}/complete [post]
// @Param id path string true "Job ID"
// @Success 200 {object} models.Job
func (s *Server) completeJob(c *gin.Context) {
	job, err := s.jobsService.Complete(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// @Router /api/jobs/{id} [delete]
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{}
func (s *Server) deleteJob(c *gin.Context) {
	if err := s.jobsService.Delete(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted successfully"})
}

// @Router /api/jobs/{id}/bids [get]
// @Param id path string true "Job ID"
// @Success 200 {array} models.Bid
func (s *Server) listJobBids(c *gin.Context) {
	list, err := s.bidsService.ListForJob(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Router /api/jobs/{id}/bids [post]
// @Param id path string true "Job ID"
// @Param body body SubmitBidRequest true "Bid"
// @Success 201 {object} models.Bid
func (s *Server) submitBid(c *gin.Context) {
	var req SubmitBidRequest
	if !s.bindJSON(c, &req) {
		return
	}

	bid, err := s.bidsService.Submit(c.Request.Context(), principal(c), c.Param("id"), bids.SubmitParams{
		AmountCents: req.AmountCents,
		Message:     req.Message,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

// @Router /api/bids [get]
// @Success 200 {array} models.Bid
func (s *Server) listMyBids(c *gin.Context) {
	list, err := s.bidsService.ListMine(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Router /api/bids/{id}/accept [post]
// @Param id path string true "Bid ID"
// @Success 200 {object} models.Bid
func (s *Server) acceptBid(c *gin.Context) {
	bid, err := s.bidsService.Accept(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bid)
}

// @Router /api/bids/{id}/reject [post]
// @Param id path string true "Bid ID"
// @Success 200 {object} models.Bid
func (s *Server) rejectBid(c *gin.Context) {
	bid, err := s.bidsService.Reject(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bid)
}

// @Router /api/bids/{id}/withdraw [post]
// @Param id path string true "Bid ID"
// @Success 200 {object} models.Bid
func (s *Server) withdrawBid(c *gin.Context) {
	bid, err := s.bidsService.Withdraw(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bid)
}
