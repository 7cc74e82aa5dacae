package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/storage"
)

// @Router /api/uploads [post]
// @Accept multipart/form-data
// @Param file formData file true "Image"
// @Success 201 {object} map[string]interface{}
func (s *Server) upload(c *gin.Context) {
	p := principal(c)
	if err := auth.Require(p); err != nil {
		s.respondError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, apperrors.Validation("Missing file"))
		return
	}
	if header.Size > storage.MaxUploadSize {
		s.respondError(c, apperrors.Validation("File exceeds %d MB", storage.MaxUploadSize>>20))
		return
	}

	file, err := header.Open()
	if err != nil {
		s.respondError(c, apperrors.Unexpected("failed to open upload", err))
		return
	}
	defer file.Close()

	url, err := storage.Upload(c.Request.Context(), s.store, file)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.Info().Str("user_id", p.ID).Str("url", url).Msg("File uploaded")
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
