package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vakspot/vakspot/internal/auth"
)

// pageTemplate is the document shell every page is served in. The browser
// app mounts on #app and reads the session from /api/auth/session.
var pageTemplate = template.Must(template.New("page.html").Parse(`<!DOCTYPE html>
<html lang="nl">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} · VakSpot</title>
  <link rel="stylesheet" href="/static/app.css">
</head>
<body data-path="{{.Path}}"{{if .User}} data-role="{{.User.Role}}"{{end}}>
  <header>
    <a href="/">VakSpot</a>
    {{if .User}}<a href="{{.Home}}">{{.User.Email}}</a>{{else}}<a href="/login">Inloggen</a>{{end}}
  </header>
  <main id="app">{{if .NotFound}}<h1>Pagina niet gevonden</h1>{{end}}</main>
  <script src="/static/app.js" defer></script>
</body>
</html>
`))

type pageData struct {
	Title    string
	Path     string
	User     *auth.Principal
	Home     string
	NotFound bool
}

var pageTitles = map[string]string{
	"/":         "Vind een vakman",
	"/login":    "Inloggen",
	"/register": "Registreren",
	"/client":   "Mijn klussen",
	"/pro":      "Leads",
	"/admin":    "Beheer",
	"/messages": "Berichten",
	"/settings": "Instellingen",
	"/profile":  "Profiel",
}

// renderPage serves the page shell for known pages and 404s everything else.
// Guarded paths only reach here after the guard allowed them.
func (s *Server) renderPage(c *gin.Context) {
	path := c.Request.URL.Path
	if strings.HasPrefix(path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	data := pageData{Path: path, User: principal(c)}
	if data.User != nil {
		data.Home = auth.RoleHome(data.User.Role)
	}

	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	if !s.isPage(path) {
		data.Title = "Niet gevonden"
		data.NotFound = true
		c.HTML(http.StatusNotFound, "page.html", data)
		return
	}

	data.Title = pageTitle(path)
	c.HTML(http.StatusOK, "page.html", data)
}

func (s *Server) isPage(path string) bool {
	switch path {
	case "/", "/login", "/register":
		return true
	}
	return s.guard.Protects(path)
}

func pageTitle(path string) string {
	if title, ok := pageTitles[path]; ok {
		return title
	}
	section := "/" + strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
	if title, ok := pageTitles[section]; ok {
		return title
	}
	return "VakSpot"
}
