package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vakspot/vakspot/internal/apperrors"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/guard"
)

const principalKey = "principal"

func setPrincipal(c *gin.Context, p *auth.Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal returns the request's authenticated principal, if any
func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return nil, false
	}

	p, ok := value.(*auth.Principal)
	return p, ok && p != nil
}

// principal returns the request's principal or nil. Services treat nil as
// unauthenticated.
func principal(c *gin.Context) *auth.Principal {
	p, _ := GetPrincipal(c)
	return p
}

// sessionMiddleware derives the principal from the session cookie or bearer
// token. Requests without valid credentials continue anonymously.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p := s.sessions.Read(c.Request); p != nil {
			setPrincipal(c, p)
		}
		c.Next()
	}
}

// guardMiddleware redirects page requests the principal may not see
func (s *Server) guardMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := s.guard.Decide(c.Request.URL.Path, c.Request.URL.RequestURI(), principal(c))
		if decision.Outcome == guard.Allow {
			c.Next()
			return
		}

		s.logger.Debug().
			Str("path", c.Request.URL.Path).
			Str("outcome", decision.Outcome.String()).
			Str("location", decision.Location).
			Msg("Route guard redirect")
		c.Redirect(http.StatusTemporaryRedirect, decision.Location)
		c.Abort()
	}
}

// requireSession rejects API requests without a principal
func (s *Server) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetPrincipal(c); !ok {
			s.respondError(c, apperrors.Unauthenticated())
			c.Abort()
			return
		}
		c.Next()
	}
}

// respondError writes err as {"error": message} with the status of its kind.
// Unexpected errors are logged and masked.
func (s *Server) respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	if kind == apperrors.KindUnexpected {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	} else {
		s.logger.Debug().Err(err).Str("kind", kind.String()).Str("path", c.Request.URL.Path).Msg("Request rejected")
	}

	c.JSON(status, gin.H{"error": apperrors.PublicMessage(err)})
}

// bindJSON decodes and validates a request body, answering 400 on failure
func (s *Server) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return false
	}
	return s.validate(c, req)
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted. An
// absent or empty body leaves req at its zero value.
func (s *Server) bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		s.logger.Warn().Err(err).Msg("Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return false
	}
	return s.validate(c, req)
}

func (s *Server) validate(c *gin.Context, req any) bool {
	if err := s.validator.Struct(req); err != nil {
		s.logger.Warn().Err(err).Msg("Request validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "details": err.Error()})
		return false
	}
	return true
}
