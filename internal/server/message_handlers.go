package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type SendMessageRequest struct {
	JobID       string `json:"job_id" binding:"required"`
	RecipientID string `json:"recipient_id" binding:"required"`
	Body        string `json:"body" binding:"required"`
}

// @Router /api/messages [get]
// @Success 200 {array} messaging.Conversation
func (s *Server) listConversations(c *gin.Context) {
	conversations, err := s.messagingService.Conversations(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversations)
}

// @Router /api/messages [post]
// @Param body body SendMessageRequest true "Message"
// @Success 201 {object} models.Message
func (s *Server) sendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !s.bindJSON(c, &req) {
		return
	}

	msg, err := s.messagingService.Send(c.Request.Context(), principal(c), req.JobID, req.RecipientID, req.Body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// @Router /api/messages/{jobId}/{userId} [get]
// @Param jobId path string true "Job ID"
// @Param userId path string true "Counterpart user ID"
// @Success 200 {array} models.Message
func (s *Server) getThread(c *gin.Context) {
	thread, err := s.messagingService.Thread(c.Request.Context(), principal(c), c.Param("jobId"), c.Param("userId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}
