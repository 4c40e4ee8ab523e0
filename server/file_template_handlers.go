package server

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// Page template names, each rendered inside layout.html
const (
	pageAuthForm    = "auth_form.html"
	pageDashboard   = "dashboard.html"
	pageChooser     = "chooser.html"
	pagePlaceholder = "placeholder.html"
)

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

// pageData is the template model shared by every page.
type pageData struct {
	AppName string
	Kind    principal.Kind
	// Form pages
	Register bool
	Error    string
	Email    string
	Name     string
	Username string
	Phone    string
	// Dashboards
	Principal  principal.Principal
	User       *principal.UserPrincipal
	Owner      *principal.OwnerPrincipal
	LogoutPath string
}

func (d pageData) LoginPath() string      { return d.Kind.LoginPath() }
func (d pageData) RegisterPath() string   { return d.Kind.RegisterPath() }
func (d pageData) IsOwner() bool          { return d.Kind == principal.KindOwner }
func (d pageData) OtherLoginPath() string { return d.Kind.Other().LoginPath() }

type pageTemplates struct {
	pages map[string]*template.Template
}

func parsePageTemplates() (*pageTemplates, error) {
	files := TemplateFilesFS()
	pt := &pageTemplates{pages: make(map[string]*template.Template)}
	for _, name := range []string{pageAuthForm, pageDashboard, pageChooser, pagePlaceholder} {
		tmpl, err := template.New("layout.html").ParseFS(files, "layout.html", name)
		if err != nil {
			return nil, errors.Wrapf(err, "[parsePageTemplates] %s", name)
		}
		pt.pages[name] = tmpl
	}
	return pt, nil
}

// renderPage buffers the page so a template failure can still produce a clean 500.
func (s *Server) renderPage(w http.ResponseWriter, status int, name string, data pageData) {
	tmpl, ok := s.pages.pages[name]
	if !ok {
		log.Error().Str("page", name).Msg("Unknown page template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Err(err).Str("page", name).Msg("Failed to render template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
