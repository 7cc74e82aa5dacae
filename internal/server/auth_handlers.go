package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vakspot/vakspot/internal/accounts"
	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/models"
)

// RegisterRequest represents a signup request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Role     string `json:"role" binding:"required" validate:"signuprole"`

	City     string `json:"city"`
	Postcode string `json:"postcode"`

	CompanyName string   `json:"company_name"`
	KvkNumber   string   `json:"kvk_number"`
	Description string   `json:"description"`
	CategoryIDs []string `json:"category_ids"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	CallbackURL string `json:"callback_url"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token    string          `json:"token"`
	User     *auth.Principal `json:"user"`
	Redirect string          `json:"redirect"`
}

// @Summary Register
// @Description Creates a CLIENT or PRO account with its profile
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Signup request"
// @Success 201 {object} models.User
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if !s.bindJSON(c, &req) {
		return
	}

	role, _ := models.ParseRole(req.Role)
	user, err := s.accountsService.Register(c.Request.Context(), accounts.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		Phone:       req.Phone,
		Role:        role,
		City:        req.City,
		Postcode:    req.Postcode,
		CompanyName: req.CompanyName,
		KvkNumber:   req.KvkNumber,
		Description: req.Description,
		CategoryIDs: req.CategoryIDs,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// @Summary Login
// @Description Authenticate with email and password; sets the session cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if !s.bindJSON(c, &req) {
		return
	}

	p, err := s.credentials.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := s.tokens.Issue(*p)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue session token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.setSessionCookie(c, token, int(s.tokens.MaxAge().Seconds()))
	s.logger.Info().Str("user_id", p.ID).Str("role", string(p.Role)).Msg("User logged in")

	redirect := auth.RoleHome(p.Role)
	if isLocalPath(req.CallbackURL) {
		redirect = req.CallbackURL
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, User: p, Redirect: redirect})
}

// @Summary Logout
// @Description Clears the session cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/logout [post]
func (s *Server) logout(c *gin.Context) {
	for _, secure := range []bool{false, true} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     auth.CookieName(secure),
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	c.JSON(http.StatusOK, gin.H{"status": "signed_out"})
}

// @Summary Current session
// @Description Returns the principal derived from the request, or null
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/session [get]
func (s *Server) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": principal(c)})
}

func (s *Server) setSessionCookie(c *gin.Context, token string, maxAge int) {
	secure := s.config.Session.CookieSecure
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     auth.CookieName(secure),
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// isLocalPath accepts same-origin paths only, so callbacks cannot redirect offsite
func isLocalPath(path string) bool {
	return strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "//") && !strings.Contains(path, "\\")
}
